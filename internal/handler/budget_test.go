package handler_test

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthew-heyner/family-finance/internal/events"
	"github.com/matthew-heyner/family-finance/internal/models"
	"github.com/matthew-heyner/family-finance/internal/testutil"
)

func TestCreateBudget_AllocationsMustSumToTotal(t *testing.T) {
	e := newEnv(t)
	h := testutil.NewHousehold(t, e.db, "budgetsum")
	food := testutil.CreateCategory(t, e.db, h.Family.ID, "Food")
	rent := testutil.CreateCategory(t, e.db, h.Family.ID, "Rent")

	body := func(a, b int) map[string]any {
		return map[string]any{
			"name":        "March",
			"totalAmount": 2000,
			"period":      "monthly",
			"startDate":   "2024-03-01",
			"categories": []map[string]any{
				{"categoryId": food.ID, "amount": a},
				{"categoryId": rent.ID, "amount": b},
			},
		}
	}

	w := e.do(h.Admin, http.MethodPost, "/api/budgets", body(500, 1400))
	requireError(t, w, http.StatusBadRequest, "Sum of category amounts must equal the total budget amount")

	w = e.do(h.Admin, http.MethodPost, "/api/budgets", body(500, 1500))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var b models.Budget
	data(t, w, &b)
	assert.Equal(t, testutil.Cents(200000), b.TotalAmount)
	assert.Equal(t, testutil.Date(2024, time.March, 31), b.EndDate.UTC())
	require.Len(t, b.Categories, 2)
	assert.Equal(t, food.ID, b.Categories[0].CategoryID)
	assert.Equal(t, testutil.Cents(50000), b.Categories[0].Remaining)

	_, ok := e.pub.Last(events.BudgetCreated)
	assert.True(t, ok)
}

func TestGetBudget_AggregatesCompletedExpenses(t *testing.T) {
	e := newEnv(t)
	h := testutil.NewHousehold(t, e.db, "budgetagg")
	food := testutil.CreateCategory(t, e.db, h.Family.ID, "Food")

	w := e.do(h.Admin, http.MethodPost, "/api/budgets", map[string]any{
		"name":        "March",
		"totalAmount": 500,
		"period":      "monthly",
		"startDate":   "2024-03-01",
		"categories":  []map[string]any{{"categoryId": food.ID, "amount": 500}},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created models.Budget
	data(t, w, &created)

	add := func(cents int64, day int, typ models.TransactionType, status models.TransactionStatus) {
		testutil.CreateTransaction(t, e.db, models.Transaction{
			Amount: testutil.Cents(cents), Date: testutil.Date(2024, time.March, day).Add(15 * time.Hour),
			Type: typ, Status: status, CategoryID: food.ID, FamilyID: h.Family.ID, CreatedByID: h.Admin.ID,
		})
	}
	add(12000, 5, models.TypeExpense, models.StatusCompleted)
	add(3000, 31, models.TypeExpense, models.StatusCompleted)
	add(9900, 6, models.TypeExpense, models.StatusPending)
	add(50000, 7, models.TypeIncome, models.StatusCompleted)
	testutil.CreateTransaction(t, e.db, models.Transaction{
		Amount: testutil.Cents(7000), Date: testutil.Date(2024, time.April, 1),
		CategoryID: food.ID, FamilyID: h.Family.ID, CreatedByID: h.Admin.ID,
	})

	w = e.do(h.Member, http.MethodGet, fmt.Sprintf("/api/budgets/%d", created.ID), nil)
	var b models.Budget
	data(t, w, &b)
	require.Len(t, b.Categories, 1)
	assert.Equal(t, testutil.Cents(15000), b.Categories[0].Spent)
	assert.Equal(t, testutil.Cents(35000), b.Categories[0].Remaining)

	w = e.do(h.Member, http.MethodGet, "/api/budgets", nil)
	var list []models.Budget
	data(t, w, &list)
	require.Len(t, list, 1)
	assert.Equal(t, testutil.Cents(15000), list[0].Categories[0].Spent)

	w = e.do(h.Admin, http.MethodPut, fmt.Sprintf("/api/budgets/%d", created.ID), map[string]any{"isActive": false})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	data(t, w, &b)
	assert.Equal(t, testutil.Cents(0), b.Categories[0].Spent)
	assert.Equal(t, testutil.Cents(50000), b.Categories[0].Remaining)
}

func TestUpdateBudget_RevalidatesTotal(t *testing.T) {
	e := newEnv(t)
	h := testutil.NewHousehold(t, e.db, "budgetupd")
	food := testutil.CreateCategory(t, e.db, h.Family.ID, "Food")
	rent := testutil.CreateCategory(t, e.db, h.Family.ID, "Rent")

	w := e.do(h.Admin, http.MethodPost, "/api/budgets", map[string]any{
		"name":        "Q1",
		"totalAmount": 100,
		"period":      "quarterly",
		"startDate":   "2024-01-01",
		"categories":  []map[string]any{{"categoryId": food.ID, "amount": 100}},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var b models.Budget
	data(t, w, &b)
	path := fmt.Sprintf("/api/budgets/%d", b.ID)

	requireError(t, e.do(h.Admin, http.MethodPut, path, map[string]any{"totalAmount": 300}),
		http.StatusBadRequest, "Sum of category amounts must equal the total budget amount")

	w = e.do(h.Admin, http.MethodPut, path, map[string]any{
		"totalAmount": 300,
		"categories": []map[string]any{
			{"categoryId": rent.ID, "amount": 200},
			{"categoryId": food.ID, "amount": 100},
		},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	data(t, w, &b)
	require.Len(t, b.Categories, 2)
	assert.Equal(t, rent.ID, b.Categories[0].CategoryID)

	var n int64
	require.NoError(t, e.db.Model(&models.BudgetCategory{}).Where("budget_id = ?", b.ID).Count(&n).Error)
	assert.Equal(t, int64(2), n)
}

func TestBudget_CustomPeriodNeedsEndDate(t *testing.T) {
	e := newEnv(t)
	h := testutil.NewHousehold(t, e.db, "budgetcustom")

	w := e.do(h.Admin, http.MethodPost, "/api/budgets", map[string]any{
		"name":        "Trip",
		"totalAmount": 0,
		"period":      "custom",
		"startDate":   "2024-06-01",
	})
	requireError(t, w, http.StatusBadRequest, "Please add an end date for a custom budget")
}

func TestDeleteBudget_RemovesAllocations(t *testing.T) {
	e := newEnv(t)
	h := testutil.NewHousehold(t, e.db, "budgetdel")
	other := testutil.NewHousehold(t, e.db, "budgetdelother")
	food := testutil.CreateCategory(t, e.db, h.Family.ID, "Food")

	w := e.do(h.Admin, http.MethodPost, "/api/budgets", map[string]any{
		"name":        "March",
		"totalAmount": 10,
		"period":      "monthly",
		"startDate":   "2024-03-01",
		"categories":  []map[string]any{{"categoryId": food.ID, "amount": 10}},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var b models.Budget
	data(t, w, &b)
	path := fmt.Sprintf("/api/budgets/%d", b.ID)

	w = e.do(other.Admin, http.MethodGet, path, nil)
	requireError(t, w, http.StatusForbidden, "Not authorized to access this resource")
	assert.Empty(t, decode(t, w).Data)
	requireError(t, e.do(other.Admin, http.MethodDelete, path, nil), http.StatusForbidden, "")

	require.Equal(t, http.StatusOK, e.do(h.Admin, http.MethodDelete, path, nil).Code)
	var n int64
	require.NoError(t, e.db.Model(&models.BudgetCategory{}).Where("budget_id = ?", b.ID).Count(&n).Error)
	assert.Zero(t, n)
	assert.Equal(t, http.StatusNotFound, e.do(h.Admin, http.MethodGet, path, nil).Code)
}
