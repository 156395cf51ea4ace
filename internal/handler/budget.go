package handler

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/matthew-heyner/family-finance/internal/auth"
	"github.com/matthew-heyner/family-finance/internal/budget"
	"github.com/matthew-heyner/family-finance/internal/events"
	"github.com/matthew-heyner/family-finance/internal/models"
	"github.com/matthew-heyner/family-finance/internal/money"
	"github.com/matthew-heyner/family-finance/internal/query"
	"github.com/matthew-heyner/family-finance/internal/util"
)

// BudgetHandler serves budgets with spend derived on every read.
type BudgetHandler struct {
	DB          *gorm.DB
	Aggregator  *budget.Aggregator
	Events      events.Publisher
	PageSize    int
	MaxPageSize int
}

func NewBudgetHandler(db *gorm.DB, agg *budget.Aggregator, pub events.Publisher, pageSize, maxPageSize int) *BudgetHandler {
	return &BudgetHandler{DB: db, Aggregator: agg, Events: pub, PageSize: pageSize, MaxPageSize: maxPageSize}
}

func byPosition(b *models.Budget) {
	slices.SortFunc(b.Categories, func(x, y models.BudgetCategory) int {
		return cmp.Compare(x.Position, y.Position)
	})
}

func (h *BudgetHandler) load(c *gin.Context) (*models.User, *models.Budget, error) {
	p, _, err := member(c)
	if err != nil {
		return nil, nil, err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return nil, nil, err
	}
	var b models.Budget
	if err := first(h.DB.WithContext(c.Request.Context()).Preload("Categories"), &b, "Budget", id); err != nil {
		return nil, nil, err
	}
	if err := auth.AuthorizeFamilyScope(p, b.FamilyID); err != nil {
		return nil, nil, err
	}
	byPosition(&b)
	return p, &b, nil
}

func (h *BudgetHandler) ListBudgets(c *gin.Context) {
	_, fid, err := member(c)
	if err != nil {
		util.Error(c, err)
		return
	}
	v := c.Request.URL.Query()
	f, err := query.BuildBudgetFilter(v)
	if err != nil {
		util.Error(c, err)
		return
	}
	sort := query.SortFrom(v, query.BudgetSorts, query.BudgetDefaultSort)
	page := query.ParsePage(v, h.PageSize, h.MaxPageSize)

	budgets := []models.Budget{}
	ctx := c.Request.Context()
	base := h.DB.WithContext(ctx).Model(&models.Budget{}).Where("family_id = ?", fid)
	res, err := query.Paginate(base, f, sort, page, &budgets, "Categories")
	if err != nil {
		util.Error(c, err)
		return
	}
	for i := range budgets {
		byPosition(&budgets[i])
	}
	if err := h.Aggregator.RefreshAll(ctx, budgets); err != nil {
		util.Error(c, err)
		return
	}
	util.List(c, budgets, len(budgets), res.Total, res.Pagination)
}

func (h *BudgetHandler) GetBudget(c *gin.Context) {
	_, b, err := h.load(c)
	if err != nil {
		util.Error(c, err)
		return
	}
	if err := h.Aggregator.RefreshCategorySpend(c.Request.Context(), b); err != nil {
		util.Error(c, err)
		return
	}
	util.Success(c, b)
}

// ---------- create / update ----------

type allocationReq struct {
	CategoryID uint         `json:"categoryId"`
	Amount     money.Amount `json:"amount"`
}

type budgetReq struct {
	Name        *string              `json:"name"`
	Description *string              `json:"description"`
	TotalAmount *money.Amount        `json:"totalAmount"`
	StartDate   *string              `json:"startDate"`
	EndDate     *string              `json:"endDate"`
	Period      *models.BudgetPeriod `json:"period"`
	Categories  []allocationReq      `json:"categories"`
	IsActive    *bool                `json:"isActive"`
}

// apply copies req onto b and checks everything except allocations. A
// missing end date is derived from the period.
func (req *budgetReq) apply(b *models.Budget) error {
	if req.Name != nil {
		b.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		b.Description = strings.TrimSpace(*req.Description)
	}
	if req.TotalAmount != nil {
		b.TotalAmount = *req.TotalAmount
	}
	if req.Period != nil {
		b.Period = *req.Period
	}
	if req.IsActive != nil {
		b.IsActive = *req.IsActive
	}
	if req.StartDate != nil {
		d, err := parseDateField("startDate", *req.StartDate)
		if err != nil {
			return err
		}
		b.StartDate = d
	}
	if req.EndDate != nil {
		d, err := parseDateField("endDate", *req.EndDate)
		if err != nil {
			return err
		}
		b.EndDate = d
	}

	if err := util.ValidateName("name", b.Name, util.MaxNameLength); err != nil {
		return util.ValidationError("%s", err.Error())
	}
	if len([]rune(b.Description)) > util.MaxDescriptionSize {
		return util.ValidationError("Description cannot be more than %d characters", util.MaxDescriptionSize)
	}
	if !b.Period.Valid() {
		return util.ValidationError("Invalid period %q", b.Period)
	}
	if b.StartDate.IsZero() {
		return util.ValidationError("Please add a start date")
	}
	if b.EndDate.IsZero() {
		end, ok := budget.PeriodEnd(b.StartDate, b.Period)
		if !ok {
			return util.ValidationError("Please add an end date for a custom budget")
		}
		b.EndDate = end
	}
	if b.EndDate.Before(b.StartDate) {
		return util.ValidationError("End date must not be before start date")
	}
	return nil
}

// allocations turns the request list into ordered budget categories, each
// checked against the family.
func allocations(db *gorm.DB, fid uint, in []allocationReq) ([]models.BudgetCategory, error) {
	out := make([]models.BudgetCategory, 0, len(in))
	for i, a := range in {
		if a.CategoryID != 0 {
			if _, err := visibleCategory(db, fid, a.CategoryID); err != nil {
				return nil, err
			}
		}
		out = append(out, models.BudgetCategory{Position: i, CategoryID: a.CategoryID, Amount: a.Amount})
	}
	return out, nil
}

func (h *BudgetHandler) CreateBudget(c *gin.Context) {
	p, fid, err := member(c)
	if err != nil {
		util.Error(c, err)
		return
	}
	var req budgetReq
	if err := bindJSON(c, &req); err != nil {
		util.Error(c, err)
		return
	}
	b := models.Budget{
		Period:      models.PeriodMonthly,
		IsActive:    true,
		FamilyID:    fid,
		CreatedByID: p.ID,
	}
	if err := req.apply(&b); err != nil {
		util.Error(c, err)
		return
	}

	ctx := c.Request.Context()
	db := h.DB.WithContext(ctx)
	cats, err := allocations(db, fid, req.Categories)
	if err != nil {
		util.Error(c, err)
		return
	}
	if err := budget.ValidateAllocations(b.TotalAmount, cats); err != nil {
		util.Error(c, err)
		return
	}
	b.Categories = cats
	if err := db.Create(&b).Error; err != nil {
		util.Error(c, fmt.Errorf("create budget: %w", err))
		return
	}
	if err := h.Aggregator.RefreshCategorySpend(ctx, &b); err != nil {
		util.Error(c, err)
		return
	}

	events.Emit(ctx, h.Events, events.New(events.BudgetCreated, p.ID, &fid, map[string]any{
		"budgetId":    b.ID,
		"name":        b.Name,
		"totalAmount": b.TotalAmount.String(),
		"period":      b.Period,
	}))
	util.Created(c, b)
}

// UpdateBudget replaces allocations when categories are sent. The
// allocation sum is checked against the resulting total either way.
func (h *BudgetHandler) UpdateBudget(c *gin.Context) {
	_, b, err := h.load(c)
	if err != nil {
		util.Error(c, err)
		return
	}
	var req budgetReq
	if err := bindJSON(c, &req); err != nil {
		util.Error(c, err)
		return
	}
	if err := req.apply(b); err != nil {
		util.Error(c, err)
		return
	}

	ctx := c.Request.Context()
	db := h.DB.WithContext(ctx)
	replace := req.Categories != nil
	if replace {
		cats, err := allocations(db, b.FamilyID, req.Categories)
		if err != nil {
			util.Error(c, err)
			return
		}
		b.Categories = cats
	}
	if err := budget.ValidateAllocations(b.TotalAmount, b.Categories); err != nil {
		util.Error(c, err)
		return
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(b).Updates(map[string]any{
			"name":         b.Name,
			"description":  b.Description,
			"total_amount": b.TotalAmount,
			"start_date":   b.StartDate,
			"end_date":     b.EndDate,
			"period":       b.Period,
			"is_active":    b.IsActive,
		}).Error; err != nil {
			return fmt.Errorf("update budget: %w", err)
		}
		if !replace {
			return nil
		}
		if err := tx.Where("budget_id = ?", b.ID).Delete(&models.BudgetCategory{}).Error; err != nil {
			return fmt.Errorf("clear allocations: %w", err)
		}
		for i := range b.Categories {
			b.Categories[i].BudgetID = b.ID
		}
		if len(b.Categories) > 0 {
			if err := tx.Create(&b.Categories).Error; err != nil {
				return fmt.Errorf("save allocations: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		util.Error(c, err)
		return
	}
	if err := h.Aggregator.RefreshCategorySpend(ctx, b); err != nil {
		util.Error(c, err)
		return
	}
	util.Success(c, b)
}

func (h *BudgetHandler) DeleteBudget(c *gin.Context) {
	_, b, err := h.load(c)
	if err != nil {
		util.Error(c, err)
		return
	}
	err = h.DB.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("budget_id = ?", b.ID).Delete(&models.BudgetCategory{}).Error; err != nil {
			return fmt.Errorf("delete allocations: %w", err)
		}
		if err := tx.Delete(&models.Budget{}, b.ID).Error; err != nil {
			return fmt.Errorf("delete budget: %w", err)
		}
		return nil
	})
	if err != nil {
		util.Error(c, err)
		return
	}
	util.Success(c, gin.H{})
}
