package handler

import (
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/matthew-heyner/family-finance/internal/auth"
	"github.com/matthew-heyner/family-finance/internal/models"
	"github.com/matthew-heyner/family-finance/internal/money"
	"github.com/matthew-heyner/family-finance/internal/query"
	"github.com/matthew-heyner/family-finance/internal/recurring"
	"github.com/matthew-heyner/family-finance/internal/util"
)

const maxRecurringTitle = 100

// RecurringHandler serves recurring transaction templates. NextOccurrence
// is recomputed on every write.
type RecurringHandler struct {
	DB          *gorm.DB
	PageSize    int
	MaxPageSize int
	Now         func() time.Time
}

func NewRecurringHandler(db *gorm.DB, pageSize, maxPageSize int) *RecurringHandler {
	return &RecurringHandler{
		DB:          db,
		PageSize:    pageSize,
		MaxPageSize: maxPageSize,
		Now:         func() time.Time { return time.Now().UTC() },
	}
}

func (h *RecurringHandler) load(c *gin.Context) (*models.User, *models.RecurringTransaction, error) {
	p, _, err := member(c)
	if err != nil {
		return nil, nil, err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return nil, nil, err
	}
	var r models.RecurringTransaction
	if err := first(h.DB.WithContext(c.Request.Context()), &r, "Recurring transaction", id); err != nil {
		return nil, nil, err
	}
	if err := auth.AuthorizeFamilyScope(p, r.FamilyID); err != nil {
		return nil, nil, err
	}
	return p, &r, nil
}

func (h *RecurringHandler) ListRecurring(c *gin.Context) {
	_, fid, err := member(c)
	if err != nil {
		util.Error(c, err)
		return
	}
	v := c.Request.URL.Query()
	f, err := query.BuildRecurringFilter(v)
	if err != nil {
		util.Error(c, err)
		return
	}
	sort := query.SortFrom(v, query.RecurringSorts, query.RecurringDefaultSort)
	page := query.ParsePage(v, h.PageSize, h.MaxPageSize)

	items := []models.RecurringTransaction{}
	base := h.DB.WithContext(c.Request.Context()).Model(&models.RecurringTransaction{}).Where("family_id = ?", fid)
	res, err := query.Paginate(base, f, sort, page, &items)
	if err != nil {
		util.Error(c, err)
		return
	}
	util.List(c, items, len(items), res.Total, res.Pagination)
}

func (h *RecurringHandler) GetRecurring(c *gin.Context) {
	_, r, err := h.load(c)
	if err != nil {
		util.Error(c, err)
		return
	}
	util.Success(c, r)
}

type recurringReq struct {
	Title         *string                 `json:"title"`
	Amount        *money.Amount           `json:"amount"`
	Description   *string                 `json:"description"`
	Type          *models.TransactionType `json:"type"`
	CategoryID    *uint                   `json:"categoryId"`
	Frequency     *models.Frequency       `json:"frequency"`
	StartDate     *string                 `json:"startDate"`
	EndDate       *string                 `json:"endDate"`
	DayOfMonth    *int                    `json:"dayOfMonth"`
	DayOfWeek     *int                    `json:"dayOfWeek"`
	IsActive      *bool                   `json:"isActive"`
	PaymentMethod *string                 `json:"paymentMethod"`
	Notes         *string                 `json:"notes"`
}

func (req *recurringReq) apply(r *models.RecurringTransaction) error {
	if req.Title != nil {
		r.Title = strings.TrimSpace(*req.Title)
	}
	if req.Amount != nil {
		r.Amount = *req.Amount
	}
	if req.Description != nil {
		r.Description = strings.TrimSpace(*req.Description)
	}
	if req.Type != nil {
		r.Type = *req.Type
	}
	if req.Frequency != nil {
		r.Frequency = *req.Frequency
	}
	if req.StartDate != nil {
		d, err := parseDateField("startDate", *req.StartDate)
		if err != nil {
			return err
		}
		r.StartDate = d
	}
	if req.EndDate != nil {
		if *req.EndDate == "" {
			r.EndDate = nil
		} else {
			d, err := parseDateField("endDate", *req.EndDate)
			if err != nil {
				return err
			}
			r.EndDate = &d
		}
	}
	if req.DayOfMonth != nil {
		r.DayOfMonth = req.DayOfMonth
	}
	if req.DayOfWeek != nil {
		r.DayOfWeek = req.DayOfWeek
	}
	if req.IsActive != nil {
		r.IsActive = *req.IsActive
	}
	if req.PaymentMethod != nil {
		r.PaymentMethod = strings.TrimSpace(*req.PaymentMethod)
	}
	if req.Notes != nil {
		r.Notes = strings.TrimSpace(*req.Notes)
	}

	if err := util.ValidateName("title", r.Title, maxRecurringTitle); err != nil {
		return util.ValidationError("%s", err.Error())
	}
	if err := util.ValidateName("description", r.Description, maxTransactionDescription); err != nil {
		return util.ValidationError("%s", err.Error())
	}
	if r.Amount <= 0 {
		return util.ValidationError("Amount must be greater than 0")
	}
	if !r.Type.Valid() {
		return util.ValidationError("Invalid type %q", r.Type)
	}
	if r.StartDate.IsZero() {
		return util.ValidationError("Please add a start date")
	}
	if len([]rune(r.Notes)) > maxNotes {
		return util.ValidationError("Notes cannot be more than %d characters", maxNotes)
	}
	return recurring.Validate(r)
}

func (h *RecurringHandler) CreateRecurring(c *gin.Context) {
	p, fid, err := member(c)
	if err != nil {
		util.Error(c, err)
		return
	}
	var req recurringReq
	if err := bindJSON(c, &req); err != nil {
		util.Error(c, err)
		return
	}
	r := models.RecurringTransaction{
		Type:        models.TypeExpense,
		Frequency:   models.FrequencyMonthly,
		IsActive:    true,
		FamilyID:    fid,
		CreatedByID: p.ID,
	}
	if req.CategoryID != nil {
		r.CategoryID = *req.CategoryID
	}
	if err := req.apply(&r); err != nil {
		util.Error(c, err)
		return
	}
	db := h.DB.WithContext(c.Request.Context())
	if r.CategoryID == 0 {
		util.Error(c, util.ValidationError("Please add a category"))
		return
	}
	if _, err := visibleCategory(db, fid, r.CategoryID); err != nil {
		util.Error(c, err)
		return
	}
	r.NextOccurrence = recurring.NextOccurrence(&r, h.Now())
	if err := db.Create(&r).Error; err != nil {
		util.Error(c, fmt.Errorf("create recurring transaction: %w", err))
		return
	}
	util.Created(c, r)
}

func (h *RecurringHandler) UpdateRecurring(c *gin.Context) {
	p, r, err := h.load(c)
	if err != nil {
		util.Error(c, err)
		return
	}
	if err := auth.AuthorizeOwnershipOrRole(p, auth.ActionUpdate, auth.Ownership{CreatorID: r.CreatedByID}, models.RoleAdmin); err != nil {
		util.Error(c, err)
		return
	}
	var req recurringReq
	if err := bindJSON(c, &req); err != nil {
		util.Error(c, err)
		return
	}
	if err := req.apply(r); err != nil {
		util.Error(c, err)
		return
	}
	db := h.DB.WithContext(c.Request.Context())
	if req.CategoryID != nil {
		if _, err := visibleCategory(db, r.FamilyID, *req.CategoryID); err != nil {
			util.Error(c, err)
			return
		}
		r.CategoryID = *req.CategoryID
	}
	r.NextOccurrence = recurring.NextOccurrence(r, h.Now())
	if err := db.Save(r).Error; err != nil {
		util.Error(c, fmt.Errorf("update recurring transaction: %w", err))
		return
	}
	util.Success(c, r)
}

// DeleteRecurring keeps transactions already linked to the template but
// drops the link.
func (h *RecurringHandler) DeleteRecurring(c *gin.Context) {
	p, r, err := h.load(c)
	if err != nil {
		util.Error(c, err)
		return
	}
	if err := auth.AuthorizeOwnershipOrRole(p, auth.ActionDelete, auth.Ownership{CreatorID: r.CreatedByID}, models.RoleAdmin); err != nil {
		util.Error(c, err)
		return
	}
	err = h.DB.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Transaction{}).Where("recurring_id = ?", r.ID).
			Update("recurring_id", nil).Error; err != nil {
			return fmt.Errorf("unlink transactions: %w", err)
		}
		if err := tx.Delete(&models.RecurringTransaction{}, r.ID).Error; err != nil {
			return fmt.Errorf("delete recurring transaction: %w", err)
		}
		return nil
	})
	if err != nil {
		util.Error(c, err)
		return
	}
	util.Success(c, gin.H{})
}
