package handler

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/matthew-heyner/family-finance/internal/log"
	"github.com/matthew-heyner/family-finance/internal/models"
	"github.com/matthew-heyner/family-finance/internal/money"
	"github.com/matthew-heyner/family-finance/internal/query"
	"github.com/matthew-heyner/family-finance/internal/util"
)

const dayLayout = "2006-01-02"

// ReportHandler summarizes and exports the family ledger.
type ReportHandler struct {
	DB  *gorm.DB
	Now func() time.Time
}

func NewReportHandler(db *gorm.DB) *ReportHandler {
	return &ReportHandler{DB: db, Now: func() time.Time { return time.Now().UTC() }}
}

// window reads startDate/endDate, defaulting to the current month.
func (h *ReportHandler) window(c *gin.Context) (time.Time, time.Time, error) {
	now := h.Now()
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0).Add(-time.Nanosecond)
	if raw := c.Query("startDate"); raw != "" {
		t, err := util.ParseDateBound(raw, false)
		if err != nil {
			return start, end, util.ValidationError("Invalid startDate %q", raw)
		}
		start = t
	}
	if raw := c.Query("endDate"); raw != "" {
		t, err := util.ParseDateBound(raw, true)
		if err != nil {
			return start, end, util.ValidationError("Invalid endDate %q", raw)
		}
		end = t
	}
	if end.Before(start) {
		return start, end, util.ValidationError("endDate must not be before startDate")
	}
	return start, end, nil
}

type categoryTotal struct {
	CategoryID uint                   `json:"categoryId"`
	Name       string                 `json:"name"`
	Color      string                 `json:"color"`
	Type       models.TransactionType `json:"type"`
	Total      money.Amount           `json:"total"`
	Count      int64                  `json:"count"`
}

type dayTotal struct {
	Date    string       `json:"date"`
	Income  money.Amount `json:"income"`
	Expense money.Amount `json:"expense"`
	Net     money.Amount `json:"net"`
}

type summary struct {
	StartDate  time.Time       `json:"startDate"`
	EndDate    time.Time       `json:"endDate"`
	Income     money.Amount    `json:"income"`
	Expense    money.Amount    `json:"expense"`
	Transfer   money.Amount    `json:"transfer"`
	Net        money.Amount    `json:"net"`
	Count      int64           `json:"count"`
	Categories []categoryTotal `json:"categories"`
	Daily      []dayTotal      `json:"daily"`
}

// Summary totals completed transactions in the window: overall, per
// category and per day. The three aggregations run concurrently.
func (h *ReportHandler) Summary(c *gin.Context) {
	_, fid, err := member(c)
	if err != nil {
		util.Error(c, err)
		return
	}
	start, end, err := h.window(c)
	if err != nil {
		util.Error(c, err)
		return
	}

	scope := func(db *gorm.DB) *gorm.DB {
		return db.Where("transactions.family_id = ? AND transactions.status = ?", fid, models.StatusCompleted).
			Where("transactions.date >= ? AND transactions.date <= ?", start, end)
	}
	db := h.DB.WithContext(c.Request.Context())
	out := summary{StartDate: start, EndDate: end, Categories: []categoryTotal{}, Daily: []dayTotal{}}

	g, _ := errgroup.WithContext(c.Request.Context())
	g.Go(func() error {
		var rows []struct {
			Type  models.TransactionType
			Total money.Amount
			Count int64
		}
		if err := db.Model(&models.Transaction{}).Scopes(scope).
			Select("type, COALESCE(SUM(amount), 0) AS total, COUNT(*) AS count").
			Group("type").Scan(&rows).Error; err != nil {
			return fmt.Errorf("totals: %w", err)
		}
		for _, r := range rows {
			switch r.Type {
			case models.TypeIncome:
				out.Income = r.Total
			case models.TypeExpense:
				out.Expense = r.Total
			case models.TypeTransfer:
				out.Transfer = r.Total
			}
			out.Count += r.Count
		}
		out.Net = out.Income - out.Expense
		return nil
	})
	g.Go(func() error {
		if err := db.Model(&models.Transaction{}).Scopes(scope).
			Joins("JOIN categories ON categories.id = transactions.category_id").
			Select("transactions.category_id, categories.name, categories.color, transactions.type, " +
				"COALESCE(SUM(transactions.amount), 0) AS total, COUNT(*) AS count").
			Group("transactions.category_id, categories.name, categories.color, transactions.type").
			Order("total DESC").
			Scan(&out.Categories).Error; err != nil {
			return fmt.Errorf("category totals: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var rows []struct {
			Date   time.Time
			Type   models.TransactionType
			Amount money.Amount
		}
		if err := db.Model(&models.Transaction{}).Scopes(scope).
			Select("date, type, amount").Scan(&rows).Error; err != nil {
			return fmt.Errorf("daily totals: %w", err)
		}
		days := map[string]*dayTotal{}
		for _, r := range rows {
			key := r.Date.UTC().Format(dayLayout)
			d, ok := days[key]
			if !ok {
				d = &dayTotal{Date: key}
				days[key] = d
			}
			switch r.Type {
			case models.TypeIncome:
				d.Income += r.Amount
			case models.TypeExpense:
				d.Expense += r.Amount
			}
		}
		for _, d := range days {
			d.Net = d.Income - d.Expense
			out.Daily = append(out.Daily, *d)
		}
		sort.Slice(out.Daily, func(i, j int) bool { return out.Daily[i].Date < out.Daily[j].Date })
		return nil
	})
	if err := g.Wait(); err != nil {
		util.Error(c, err)
		return
	}
	util.Success(c, out)
}

// ---------- export ----------

var exportHeaders = []string{"Date", "Type", "Status", "Category", "Description", "Amount", "Payment method", "Notes"}

func exportRow(tx *models.Transaction) []string {
	cat := ""
	if tx.Category != nil {
		cat = tx.Category.Name
	}
	return []string{
		tx.Date.UTC().Format(dayLayout),
		string(tx.Type),
		string(tx.Status),
		cat,
		tx.Description,
		tx.Amount.String(),
		tx.PaymentMethod,
		tx.Notes,
	}
}

// Export writes the filtered ledger as CSV (default) or XLSX.
func (h *ReportHandler) Export(c *gin.Context) {
	_, fid, err := member(c)
	if err != nil {
		util.Error(c, err)
		return
	}
	format := c.DefaultQuery("format", "csv")
	if format != "csv" && format != "xlsx" {
		util.Error(c, util.ValidationError("Unsupported format %q, use csv or xlsx", format))
		return
	}
	v := c.Request.URL.Query()
	f, err := query.BuildTransactionFilter(v)
	if err != nil {
		util.Error(c, err)
		return
	}
	order := query.SortFrom(v, query.TransactionSorts, query.TransactionDefaultSort)

	var txs []models.Transaction
	q := query.Apply(h.DB.WithContext(c.Request.Context()).Where("family_id = ?", fid), f)
	if err := q.Preload("Category").Order(order.Clause()).Find(&txs).Error; err != nil {
		util.Error(c, fmt.Errorf("load export: %w", err))
		return
	}

	stamp := h.Now().Format("20060102")
	if format == "xlsx" {
		h.writeXLSX(c, txs, stamp)
		return
	}

	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"transactions_%s.csv\"", stamp))
	c.Status(http.StatusOK)
	w := csv.NewWriter(c.Writer)
	err = w.Write(exportHeaders)
	for i := 0; err == nil && i < len(txs); i++ {
		err = w.Write(exportRow(&txs[i]))
	}
	w.Flush()
	if err == nil {
		err = w.Error()
	}
	if err != nil {
		// headers are already out, the client sees a truncated file
		ctx := c.Request.Context()
		log.FromContext(ctx).ErrorContext(ctx, "write csv export", "rows", len(txs), log.FieldError, err)
	}
}

func (h *ReportHandler) writeXLSX(c *gin.Context, txs []models.Transaction, stamp string) {
	const sheet = "Transactions"
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		util.Error(c, fmt.Errorf("name sheet: %w", err))
		return
	}

	for i, title := range exportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, title)
	}
	for r := range txs {
		tx := &txs[r]
		row := exportRow(tx)
		for i, val := range row {
			cell, _ := excelize.CoordinatesToCellName(i+1, r+2)
			if i == 5 {
				// numeric so spreadsheets can sum the column
				amount, _ := tx.Amount.Decimal().Float64()
				_ = f.SetCellValue(sheet, cell, amount)
				continue
			}
			_ = f.SetCellValue(sheet, cell, val)
		}
	}
	_ = f.SetColWidth(sheet, "A", "A", 12)
	_ = f.SetColWidth(sheet, "D", "E", 24)
	_ = f.SetColWidth(sheet, "H", "H", 30)

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"transactions_%s.xlsx\"", stamp))
	c.Status(http.StatusOK)
	if err := f.Write(c.Writer); err != nil {
		util.Error(c, fmt.Errorf("write xlsx: %w", err))
	}
}
