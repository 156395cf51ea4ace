package handler_test

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/matthew-heyner/family-finance/internal/handler"
	"github.com/matthew-heyner/family-finance/internal/log"
	"github.com/matthew-heyner/family-finance/internal/middleware"
	"github.com/matthew-heyner/family-finance/internal/models"
	"github.com/matthew-heyner/family-finance/internal/money"
	"github.com/matthew-heyner/family-finance/internal/testutil"
)

func seedReport(t *testing.T, e *env) testutil.Household {
	t.Helper()
	h := testutil.NewHousehold(t, e.db, "report")
	food := testutil.CreateCategory(t, e.db, h.Family.ID, "Food")
	salary := testutil.CreateCategory(t, e.db, h.Family.ID, "Salary")
	add := func(cents int64, day int, typ models.TransactionType, cat *models.Category, status models.TransactionStatus) {
		testutil.CreateTransaction(t, e.db, models.Transaction{
			Amount: testutil.Cents(cents), Date: testutil.Date(2024, time.March, day), Description: "row",
			Type: typ, Status: status, CategoryID: cat.ID, FamilyID: h.Family.ID, CreatedByID: h.Admin.ID,
		})
	}
	add(300000, 1, models.TypeIncome, salary, models.StatusCompleted)
	add(4500, 1, models.TypeExpense, food, models.StatusCompleted)
	add(5500, 2, models.TypeExpense, food, models.StatusCompleted)
	add(9999, 3, models.TypeExpense, food, models.StatusPending)
	return h
}

func TestReportSummary(t *testing.T) {
	e := newEnv(t)
	h := seedReport(t, e)

	w := e.do(h.Member, http.MethodGet, "/api/reports/summary?startDate=2024-03-01&endDate=2024-03-31", nil)
	var s struct {
		Income     money.Amount `json:"income"`
		Expense    money.Amount `json:"expense"`
		Net        money.Amount `json:"net"`
		Count      int64        `json:"count"`
		Categories []struct {
			Name  string       `json:"name"`
			Total money.Amount `json:"total"`
			Count int64        `json:"count"`
		} `json:"categories"`
		Daily []struct {
			Date    string       `json:"date"`
			Expense money.Amount `json:"expense"`
		} `json:"daily"`
	}
	data(t, w, &s)
	assert.Equal(t, testutil.Cents(300000), s.Income)
	assert.Equal(t, testutil.Cents(10000), s.Expense)
	assert.Equal(t, testutil.Cents(290000), s.Net)
	assert.Equal(t, int64(3), s.Count)

	require.Len(t, s.Categories, 2)
	assert.Equal(t, "Salary", s.Categories[0].Name)
	assert.Equal(t, "Food", s.Categories[1].Name)
	assert.Equal(t, int64(2), s.Categories[1].Count)

	require.Len(t, s.Daily, 2)
	assert.Equal(t, "2024-03-01", s.Daily[0].Date)
	assert.Equal(t, testutil.Cents(5500), s.Daily[1].Expense)

	requireError(t, e.do(h.Member, http.MethodGet, "/api/reports/summary?startDate=2024-04-01&endDate=2024-03-01", nil),
		http.StatusBadRequest, "endDate must not be before startDate")
}

func TestReportExport(t *testing.T) {
	e := newEnv(t)
	h := seedReport(t, e)

	w := e.do(h.Admin, http.MethodGet, "/api/reports/export?type=expense&sortBy=date:asc", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Disposition"), ".csv")
	rows, err := csv.NewReader(bytes.NewReader(w.Body.Bytes())).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "Date", rows[0][0])
	assert.Equal(t, []string{"2024-03-01", "expense", "completed", "Food", "row", "45.00"}, rows[1][:6])

	w = e.do(h.Admin, http.MethodGet, "/api/reports/export?format=xlsx&type=income", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	f, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	xrows, err := f.GetRows("Transactions")
	require.NoError(t, err)
	require.Len(t, xrows, 2)
	assert.Equal(t, "Salary", xrows[1][3])
	assert.Equal(t, "3000", xrows[1][5])

	requireError(t, e.do(h.Admin, http.MethodGet, "/api/reports/export?format=pdf", nil),
		http.StatusBadRequest, `Unsupported format "pdf", use csv or xlsx`)
}

// brokenConn accepts headers but fails every body write.
type brokenConn struct{ header http.Header }

func (b *brokenConn) Header() http.Header       { return b.header }
func (b *brokenConn) WriteHeader(int)           {}
func (b *brokenConn) Write([]byte) (int, error) { return 0, errors.New("connection reset by peer") }

func TestReportExport_LogsCSVWriteFailure(t *testing.T) {
	e := newEnv(t)
	h := seedReport(t, e)

	var buf bytes.Buffer
	logger := log.New(log.Config{Level: slog.LevelInfo, Format: "text", Output: &buf})
	c, _ := gin.CreateTestContext(&brokenConn{header: http.Header{}})
	req := httptest.NewRequest(http.MethodGet, "/api/reports/export?format=csv", nil)
	c.Request = req.WithContext(log.NewContext(context.Background(), logger))
	c.Set(middleware.ContextUserKey, h.Admin)

	handler.NewReportHandler(e.db).Export(c)

	assert.Contains(t, buf.String(), "write csv export")
	assert.Contains(t, buf.String(), "connection reset by peer")
}
