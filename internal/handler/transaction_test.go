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

func newTransaction(catID uint) map[string]any {
	return map[string]any{
		"amount":      "42.50",
		"description": "Groceries",
		"date":        "2024-03-10",
		"type":        "expense",
		"categoryId":  catID,
	}
}

func TestCreateTransaction_MemberStartsPending(t *testing.T) {
	e := newEnv(t)
	h := testutil.NewHousehold(t, e.db, "pending")
	cat := testutil.DefaultCategory(t, e.db)

	w := e.do(h.Member, http.MethodPost, "/api/transactions", newTransaction(cat.ID))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var tx models.Transaction
	data(t, w, &tx)
	assert.Equal(t, models.StatusPending, tx.Status)
	assert.Equal(t, testutil.Cents(4250), tx.Amount)
	assert.Equal(t, h.Family.ID, tx.FamilyID)
	assert.Equal(t, h.Member.ID, tx.CreatedByID)

	_, ok := e.pub.Last(events.TransactionCreated)
	assert.True(t, ok)

	body := newTransaction(cat.ID)
	body["status"] = "completed"
	w = e.do(h.Member, http.MethodPost, "/api/transactions", body)
	requireError(t, w, http.StatusForbidden, "Only admins can approve or reject transactions")
}

func TestCreateTransaction_AdminDefaultsCompleted(t *testing.T) {
	e := newEnv(t)
	h := testutil.NewHousehold(t, e.db, "admincomplete")
	cat := testutil.DefaultCategory(t, e.db)

	w := e.do(h.Admin, http.MethodPost, "/api/transactions", newTransaction(cat.ID))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var tx models.Transaction
	data(t, w, &tx)
	assert.Equal(t, models.StatusCompleted, tx.Status)
}

func TestCreateTransaction_Validation(t *testing.T) {
	e := newEnv(t)
	h := testutil.NewHousehold(t, e.db, "txvalid")
	other := testutil.NewHousehold(t, e.db, "txvalidother")
	cat := testutil.DefaultCategory(t, e.db)
	foreign := testutil.CreateCategory(t, e.db, other.Family.ID, "Theirs")

	body := newTransaction(cat.ID)
	body["amount"] = 0
	requireError(t, e.do(h.Admin, http.MethodPost, "/api/transactions", body), http.StatusBadRequest, "Amount must be greater than 0")

	body = newTransaction(foreign.ID)
	requireError(t, e.do(h.Admin, http.MethodPost, "/api/transactions", body), http.StatusForbidden, "")

	body = newTransaction(cat.ID)
	body["assignedTo"] = other.Member.ID
	requireError(t, e.do(h.Admin, http.MethodPost, "/api/transactions", body), http.StatusBadRequest,
		fmt.Sprintf("User %d is not a member of your family", other.Member.ID))
}

func TestApproveTransaction_StampsApprover(t *testing.T) {
	e := newEnv(t)
	h := testutil.NewHousehold(t, e.db, "approve")
	cat := testutil.DefaultCategory(t, e.db)
	tx := testutil.CreateTransaction(t, e.db, models.Transaction{
		Amount: testutil.Cents(1000), Date: testutil.Date(2024, time.March, 1), Status: models.StatusPending,
		CategoryID: cat.ID, FamilyID: h.Family.ID, CreatedByID: h.Member.ID,
	})
	path := fmt.Sprintf("/api/transactions/%d", tx.ID)

	w := e.do(h.Member, http.MethodPut, path, map[string]string{"status": "completed"})
	requireError(t, w, http.StatusForbidden, "Only admins can approve or reject transactions")

	w = e.do(h.Admin, http.MethodPut, path, map[string]string{"status": "completed"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var got models.Transaction
	data(t, w, &got)
	assert.Equal(t, models.StatusCompleted, got.Status)
	require.NotNil(t, got.ApprovedByID)
	assert.Equal(t, h.Admin.ID, *got.ApprovedByID)

	ev, ok := e.pub.Last(events.TransactionApproved)
	require.True(t, ok)
	assert.Equal(t, h.Family.ID, *ev.FamilyID)
}

func TestCompleteRejectedTransaction_StampsApprover(t *testing.T) {
	e := newEnv(t)
	h := testutil.NewHousehold(t, e.db, "reapprove")
	cat := testutil.DefaultCategory(t, e.db)
	tx := testutil.CreateTransaction(t, e.db, models.Transaction{
		Amount: testutil.Cents(1000), Date: testutil.Date(2024, time.March, 1), Status: models.StatusRejected,
		CategoryID: cat.ID, FamilyID: h.Family.ID, CreatedByID: h.Member.ID,
	})

	w := e.do(h.Admin, http.MethodPut, fmt.Sprintf("/api/transactions/%d", tx.ID), map[string]string{"status": "completed"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var stored models.Transaction
	require.NoError(t, e.db.First(&stored, tx.ID).Error)
	assert.Equal(t, models.StatusCompleted, stored.Status)
	require.NotNil(t, stored.ApprovedByID)
	assert.Equal(t, h.Admin.ID, *stored.ApprovedByID)
}

func TestTransaction_CrossFamilyForbidden(t *testing.T) {
	e := newEnv(t)
	mine := testutil.NewHousehold(t, e.db, "mine")
	theirs := testutil.NewHousehold(t, e.db, "theirs")
	cat := testutil.DefaultCategory(t, e.db)
	tx := testutil.CreateTransaction(t, e.db, models.Transaction{
		Amount: testutil.Cents(500), Date: testutil.Date(2024, time.March, 1),
		CategoryID: cat.ID, FamilyID: theirs.Family.ID, CreatedByID: theirs.Admin.ID,
	})
	path := fmt.Sprintf("/api/transactions/%d", tx.ID)

	for _, method := range []string{http.MethodGet, http.MethodDelete} {
		w := e.do(mine.Admin, method, path, nil)
		requireError(t, w, http.StatusForbidden, "Not authorized to access this resource")
	}
	requireError(t, e.do(mine.Admin, http.MethodGet, "/api/transactions/999999", nil),
		http.StatusNotFound, "Transaction not found with id of 999999")
}

func TestUpdateTransaction_OnlyCreatorAssigneeOrAdmin(t *testing.T) {
	e := newEnv(t)
	h := testutil.NewHousehold(t, e.db, "owner")
	other := testutil.CreateUser(t, e.db, "other@owner.test", models.RoleUser, &h.Family.ID)
	cat := testutil.DefaultCategory(t, e.db)
	tx := testutil.CreateTransaction(t, e.db, models.Transaction{
		Amount: testutil.Cents(500), Date: testutil.Date(2024, time.March, 1), Status: models.StatusPending,
		CategoryID: cat.ID, FamilyID: h.Family.ID, CreatedByID: h.Member.ID,
	})
	path := fmt.Sprintf("/api/transactions/%d", tx.ID)

	requireError(t, e.do(other, http.MethodPut, path, map[string]string{"description": "mine now"}),
		http.StatusForbidden, "Not authorized to update this resource")

	w := e.do(h.Member, http.MethodPut, path, map[string]string{"description": "Weekly shop"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var got models.Transaction
	data(t, w, &got)
	assert.Equal(t, "Weekly shop", got.Description)
}

func TestDeleteTransaction_UnlinksReceipts(t *testing.T) {
	e := newEnv(t)
	h := testutil.NewHousehold(t, e.db, "deltx")
	cat := testutil.DefaultCategory(t, e.db)
	tx := testutil.CreateTransaction(t, e.db, models.Transaction{
		Amount: testutil.Cents(500), Date: testutil.Date(2024, time.March, 1),
		CategoryID: cat.ID, FamilyID: h.Family.ID, CreatedByID: h.Admin.ID,
	})
	r := models.Receipt{
		OriginalFilename: "r.png", StoredName: "r.bin", MimeType: "image/png", Size: 1,
		ProcessingStatus: models.ReceiptPending, TransactionID: &tx.ID, FamilyID: h.Family.ID, CreatedByID: h.Admin.ID,
	}
	require.NoError(t, e.db.Create(&r).Error)

	w := e.do(h.Admin, http.MethodDelete, fmt.Sprintf("/api/transactions/%d", tx.ID), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var reloaded models.Receipt
	require.NoError(t, e.db.First(&reloaded, r.ID).Error)
	assert.Nil(t, reloaded.TransactionID)
}

func TestListTransactions_PaginationEnvelope(t *testing.T) {
	e := newEnv(t)
	h := testutil.NewHousehold(t, e.db, "pages")
	other := testutil.NewHousehold(t, e.db, "pagesother")
	cat := testutil.DefaultCategory(t, e.db)
	for i := 1; i <= 3; i++ {
		testutil.CreateTransaction(t, e.db, models.Transaction{
			Amount: testutil.Cents(int64(i * 100)), Date: testutil.Date(2024, time.March, i),
			CategoryID: cat.ID, FamilyID: h.Family.ID, CreatedByID: h.Admin.ID,
		})
	}
	testutil.CreateTransaction(t, e.db, models.Transaction{
		Amount: testutil.Cents(100), Date: testutil.Date(2024, time.March, 1),
		CategoryID: cat.ID, FamilyID: other.Family.ID, CreatedByID: other.Admin.ID,
	})

	w := e.do(h.Member, http.MethodGet, "/api/transactions?limit=2", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	env := decode(t, w)
	assert.Equal(t, 2, env.Count)
	assert.Equal(t, int64(3), env.Total)
	require.NotNil(t, env.Pagination.Next)
	assert.Equal(t, 2, env.Pagination.Next.Page)
	assert.Nil(t, env.Pagination.Prev)

	var txs []models.Transaction
	data(t, w, &txs)
	require.Len(t, txs, 2)
	assert.Equal(t, testutil.Date(2024, time.March, 3), txs[0].Date.UTC())
	require.NotNil(t, txs[0].Category)

	w = e.do(h.Member, http.MethodGet, "/api/transactions?limit=2&page=2", nil)
	env = decode(t, w)
	assert.Equal(t, 1, env.Count)
	assert.Nil(t, env.Pagination.Next)
	require.NotNil(t, env.Pagination.Prev)

	w = e.do(h.Member, http.MethodGet, "/api/transactions?minAmount=2&sortBy=amount:asc", nil)
	data(t, w, &txs)
	require.Len(t, txs, 2)
	assert.Equal(t, testutil.Cents(200), txs[0].Amount)
}
