package handler

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/matthew-heyner/family-finance/internal/auth"
	"github.com/matthew-heyner/family-finance/internal/events"
	"github.com/matthew-heyner/family-finance/internal/models"
	"github.com/matthew-heyner/family-finance/internal/money"
	"github.com/matthew-heyner/family-finance/internal/query"
	"github.com/matthew-heyner/family-finance/internal/util"
)

const (
	maxTransactionDescription = 100
	maxNotes                  = 500
)

// TransactionHandler serves the family ledger.
type TransactionHandler struct {
	DB          *gorm.DB
	Events      events.Publisher
	PageSize    int
	MaxPageSize int
}

func NewTransactionHandler(db *gorm.DB, pub events.Publisher, pageSize, maxPageSize int) *TransactionHandler {
	return &TransactionHandler{DB: db, Events: pub, PageSize: pageSize, MaxPageSize: maxPageSize}
}

// load fetches a transaction and checks it belongs to the caller's family.
func (h *TransactionHandler) load(c *gin.Context) (*models.User, *models.Transaction, error) {
	p, _, err := member(c)
	if err != nil {
		return nil, nil, err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return nil, nil, err
	}
	var tx models.Transaction
	if err := first(h.DB.WithContext(c.Request.Context()).Preload("Category"), &tx, "Transaction", id); err != nil {
		return nil, nil, err
	}
	if err := auth.AuthorizeFamilyScope(p, tx.FamilyID); err != nil {
		return nil, nil, err
	}
	return p, &tx, nil
}

func (h *TransactionHandler) ListTransactions(c *gin.Context) {
	_, fid, err := member(c)
	if err != nil {
		util.Error(c, err)
		return
	}
	v := c.Request.URL.Query()
	f, err := query.BuildTransactionFilter(v)
	if err != nil {
		util.Error(c, err)
		return
	}
	sort := query.SortFrom(v, query.TransactionSorts, query.TransactionDefaultSort)
	page := query.ParsePage(v, h.PageSize, h.MaxPageSize)

	txs := []models.Transaction{}
	base := h.DB.WithContext(c.Request.Context()).Model(&models.Transaction{}).Where("family_id = ?", fid)
	res, err := query.Paginate(base, f, sort, page, &txs, "Category")
	if err != nil {
		util.Error(c, err)
		return
	}
	util.List(c, txs, len(txs), res.Total, res.Pagination)
}

func (h *TransactionHandler) GetTransaction(c *gin.Context) {
	_, tx, err := h.load(c)
	if err != nil {
		util.Error(c, err)
		return
	}
	util.Success(c, tx)
}

// ---------- create / update ----------

type transactionReq struct {
	Amount        *money.Amount             `json:"amount"`
	Description   *string                   `json:"description"`
	Date          *string                   `json:"date"`
	Type          *models.TransactionType   `json:"type"`
	Status        *models.TransactionStatus `json:"status"`
	CategoryID    *uint                     `json:"categoryId"`
	PaymentMethod *string                   `json:"paymentMethod"`
	Location      *string                   `json:"location"`
	Notes         *string                   `json:"notes"`
	Tags          []string                  `json:"tags"`
	AssignedTo    *uint                     `json:"assignedTo"`
	RecurringID   *uint                     `json:"recurringId"`
}

// apply copies the plain fields present in req onto tx. References and
// status are checked by the caller.
func (req *transactionReq) apply(tx *models.Transaction) error {
	if req.Amount != nil {
		tx.Amount = *req.Amount
	}
	if req.Description != nil {
		tx.Description = strings.TrimSpace(*req.Description)
	}
	if req.Date != nil {
		d, err := parseDateField("date", *req.Date)
		if err != nil {
			return err
		}
		tx.Date = d
	}
	if req.Type != nil {
		tx.Type = *req.Type
	}
	if req.PaymentMethod != nil {
		tx.PaymentMethod = strings.TrimSpace(*req.PaymentMethod)
	}
	if req.Location != nil {
		tx.Location = strings.TrimSpace(*req.Location)
	}
	if req.Notes != nil {
		tx.Notes = strings.TrimSpace(*req.Notes)
	}
	if req.Tags != nil {
		tx.Tags = req.Tags
	}

	if tx.Amount <= 0 {
		return util.ValidationError("Amount must be greater than 0")
	}
	if err := util.ValidateName("description", tx.Description, maxTransactionDescription); err != nil {
		return util.ValidationError("%s", err.Error())
	}
	if tx.Date.IsZero() {
		return util.ValidationError("Please add a date")
	}
	if !tx.Type.Valid() {
		return util.ValidationError("Invalid type %q", tx.Type)
	}
	if len([]rune(tx.Notes)) > maxNotes {
		return util.ValidationError("Notes cannot be more than %d characters", maxNotes)
	}
	return nil
}

// resolveRefs checks category, assignee and recurring template against
// the family.
func (h *TransactionHandler) resolveRefs(db *gorm.DB, fid uint, req *transactionReq, tx *models.Transaction) error {
	if req.CategoryID != nil {
		tx.CategoryID = *req.CategoryID
	}
	if tx.CategoryID == 0 {
		return util.ValidationError("Please add a category")
	}
	if req.CategoryID != nil || tx.Category == nil {
		cat, err := visibleCategory(db, fid, tx.CategoryID)
		if err != nil {
			return err
		}
		tx.Category = cat
	}

	if req.AssignedTo != nil {
		if _, err := familyMember(db, fid, *req.AssignedTo); err != nil {
			return err
		}
		tx.AssignedToID = req.AssignedTo
	}

	if req.RecurringID != nil {
		var r models.RecurringTransaction
		if err := first(db, &r, "Recurring transaction", *req.RecurringID); err != nil {
			return err
		}
		if r.FamilyID != fid {
			return util.ValidationError("Recurring transaction %d is not in your family", r.ID)
		}
		tx.RecurringID = &r.ID
		tx.IsRecurring = true
	}
	return nil
}

func (h *TransactionHandler) CreateTransaction(c *gin.Context) {
	p, fid, err := member(c)
	if err != nil {
		util.Error(c, err)
		return
	}
	var req transactionReq
	if err := bindJSON(c, &req); err != nil {
		util.Error(c, err)
		return
	}

	var requested models.TransactionStatus
	if req.Status != nil {
		requested = *req.Status
	}
	status, err := auth.InitialStatus(p, requested)
	if err != nil {
		util.Error(c, err)
		return
	}

	tx := models.Transaction{
		Type:        models.TypeExpense,
		Status:      status,
		FamilyID:    fid,
		CreatedByID: p.ID,
	}
	if err := req.apply(&tx); err != nil {
		util.Error(c, err)
		return
	}
	ctx := c.Request.Context()
	db := h.DB.WithContext(ctx)
	if err := h.resolveRefs(db, fid, &req, &tx); err != nil {
		util.Error(c, err)
		return
	}
	if err := db.Omit("Category").Create(&tx).Error; err != nil {
		util.Error(c, fmt.Errorf("create transaction: %w", err))
		return
	}

	events.Emit(ctx, h.Events, events.New(events.TransactionCreated, p.ID, &fid, map[string]any{
		"transactionId": tx.ID,
		"amount":        tx.Amount.String(),
		"type":          tx.Type,
		"status":        tx.Status,
	}))
	util.Created(c, tx)
}

// UpdateTransaction is open to the creator, the assignee and admins. Only
// admins may change status; approving a pending transaction stamps the
// approver.
func (h *TransactionHandler) UpdateTransaction(c *gin.Context) {
	p, tx, err := h.load(c)
	if err != nil {
		util.Error(c, err)
		return
	}
	own := auth.Ownership{CreatorID: tx.CreatedByID, AssigneeID: tx.AssignedToID}
	if err := auth.AuthorizeOwnershipOrRole(p, auth.ActionUpdate, own, models.RoleAdmin); err != nil {
		util.Error(c, err)
		return
	}
	var req transactionReq
	if err := bindJSON(c, &req); err != nil {
		util.Error(c, err)
		return
	}

	approved := false
	if req.Status != nil {
		if err := auth.AuthorizeStatusChange(p, tx.Status, *req.Status); err != nil {
			util.Error(c, err)
			return
		}
		if auth.StampsApproval(tx.Status, *req.Status) {
			tx.ApprovedByID = &p.ID
			approved = true
		}
		tx.Status = *req.Status
	}

	if err := req.apply(tx); err != nil {
		util.Error(c, err)
		return
	}
	ctx := c.Request.Context()
	db := h.DB.WithContext(ctx)
	if err := h.resolveRefs(db, tx.FamilyID, &req, tx); err != nil {
		util.Error(c, err)
		return
	}
	if err := db.Omit("Category").Save(tx).Error; err != nil {
		util.Error(c, fmt.Errorf("update transaction: %w", err))
		return
	}

	if approved {
		events.Emit(ctx, h.Events, events.New(events.TransactionApproved, p.ID, &tx.FamilyID, map[string]any{
			"transactionId": tx.ID,
			"createdBy":     tx.CreatedByID,
			"amount":        tx.Amount.String(),
		}))
	}
	util.Success(c, tx)
}

// DeleteTransaction is open to the creator and admins. Linked receipts are
// kept and unlinked.
func (h *TransactionHandler) DeleteTransaction(c *gin.Context) {
	p, tx, err := h.load(c)
	if err != nil {
		util.Error(c, err)
		return
	}
	own := auth.Ownership{CreatorID: tx.CreatedByID}
	if err := auth.AuthorizeOwnershipOrRole(p, auth.ActionDelete, own, models.RoleAdmin); err != nil {
		util.Error(c, err)
		return
	}
	err = h.DB.WithContext(c.Request.Context()).Transaction(func(db *gorm.DB) error {
		if err := db.Model(&models.Receipt{}).Where("transaction_id = ?", tx.ID).
			Update("transaction_id", nil).Error; err != nil {
			return fmt.Errorf("unlink receipts: %w", err)
		}
		if err := db.Delete(&models.Transaction{}, tx.ID).Error; err != nil {
			return fmt.Errorf("delete transaction: %w", err)
		}
		return nil
	})
	if err != nil {
		util.Error(c, err)
		return
	}
	util.Success(c, gin.H{})
}
