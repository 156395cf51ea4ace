package handler

import (
	"context"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/matthew-heyner/family-finance/internal/auth"
	"github.com/matthew-heyner/family-finance/internal/middleware"
	"github.com/matthew-heyner/family-finance/internal/models"
	"github.com/matthew-heyner/family-finance/internal/util"
)

// CategoryHandler serves family categories alongside the shared defaults.
type CategoryHandler struct {
	DB *gorm.DB
}

func NewCategoryHandler(db *gorm.DB) *CategoryHandler {
	return &CategoryHandler{DB: db}
}

func (h *CategoryHandler) load(c *gin.Context) (*models.User, *models.Category, error) {
	p, err := middleware.CurrentUser(c)
	if err != nil {
		return nil, nil, err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return nil, nil, err
	}
	var cat models.Category
	if err := first(h.DB.WithContext(c.Request.Context()), &cat, "Category", id); err != nil {
		return nil, nil, err
	}
	return p, &cat, nil
}

// nameTaken matches case-insensitively within one family.
func (h *CategoryHandler) nameTaken(ctx context.Context, fid uint, name string, exceptID uint) (bool, error) {
	var count int64
	q := h.DB.WithContext(ctx).Model(&models.Category{}).
		Where("family_id = ? AND LOWER(name) = LOWER(?)", fid, name)
	if exceptID != 0 {
		q = q.Where("id <> ?", exceptID)
	}
	if err := q.Count(&count).Error; err != nil {
		return false, fmt.Errorf("check category name: %w", err)
	}
	return count > 0, nil
}

// ListCategories returns the family's categories plus the defaults, by name.
func (h *CategoryHandler) ListCategories(c *gin.Context) {
	p, err := middleware.CurrentUser(c)
	if err != nil {
		util.Error(c, err)
		return
	}
	q := h.DB.WithContext(c.Request.Context()).Where("is_default = ?", true)
	if p.FamilyID != nil {
		q = q.Or("family_id = ?", *p.FamilyID)
	}
	var cats []models.Category
	if err := q.Order("name ASC, id ASC").Find(&cats).Error; err != nil {
		util.Error(c, fmt.Errorf("list categories: %w", err))
		return
	}
	util.Collection(c, cats, len(cats))
}

func (h *CategoryHandler) GetCategory(c *gin.Context) {
	p, cat, err := h.load(c)
	if err != nil {
		util.Error(c, err)
		return
	}
	if err := auth.AuthorizeCategoryRead(p, cat); err != nil {
		util.Error(c, err)
		return
	}
	util.Success(c, cat)
}

type categoryReq struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Color       *string `json:"color"`
	Icon        *string `json:"icon"`
}

// apply copies the fields present in req onto cat and validates the result.
func (req categoryReq) apply(cat *models.Category) error {
	if req.Name != nil {
		cat.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		cat.Description = strings.TrimSpace(*req.Description)
	}
	if req.Color != nil {
		cat.Color = *req.Color
	}
	if req.Icon != nil {
		cat.Icon = strings.TrimSpace(*req.Icon)
	}
	if err := util.ValidateName("name", cat.Name, util.MaxNameLength); err != nil {
		return util.ValidationError("%s", err.Error())
	}
	if len([]rune(cat.Description)) > util.MaxDescriptionSize {
		return util.ValidationError("Description cannot be more than %d characters", util.MaxDescriptionSize)
	}
	if err := util.ValidateColor(cat.Color); err != nil {
		return util.ValidationError("Please use a valid hex color")
	}
	return nil
}

func (h *CategoryHandler) CreateCategory(c *gin.Context) {
	p, fid, err := member(c)
	if err != nil {
		util.Error(c, err)
		return
	}
	var req categoryReq
	if err := bindJSON(c, &req); err != nil {
		util.Error(c, err)
		return
	}
	cat := models.Category{
		Color:       models.DefaultCategoryColor,
		Icon:        models.DefaultCategoryIcon,
		FamilyID:    &fid,
		CreatedByID: &p.ID,
	}
	if err := req.apply(&cat); err != nil {
		util.Error(c, err)
		return
	}

	ctx := c.Request.Context()
	taken, err := h.nameTaken(ctx, fid, cat.Name, 0)
	if err != nil {
		util.Error(c, err)
		return
	}
	if taken {
		util.Error(c, util.ValidationError("Category with this name already exists"))
		return
	}
	if err := h.DB.WithContext(ctx).Create(&cat).Error; err != nil {
		util.Error(c, fmt.Errorf("create category: %w", err))
		return
	}
	util.Created(c, cat)
}

func (h *CategoryHandler) UpdateCategory(c *gin.Context) {
	p, cat, err := h.load(c)
	if err != nil {
		util.Error(c, err)
		return
	}
	if err := auth.AuthorizeCategoryMutation(p, auth.ActionUpdate, cat); err != nil {
		util.Error(c, err)
		return
	}
	var req categoryReq
	if err := bindJSON(c, &req); err != nil {
		util.Error(c, err)
		return
	}
	oldName := cat.Name
	if err := req.apply(cat); err != nil {
		util.Error(c, err)
		return
	}

	ctx := c.Request.Context()
	if !strings.EqualFold(oldName, cat.Name) {
		taken, err := h.nameTaken(ctx, *cat.FamilyID, cat.Name, cat.ID)
		if err != nil {
			util.Error(c, err)
			return
		}
		if taken {
			util.Error(c, util.ValidationError("Category with this name already exists"))
			return
		}
	}
	if err := h.DB.WithContext(ctx).Model(cat).Updates(map[string]any{
		"name":        cat.Name,
		"description": cat.Description,
		"color":       cat.Color,
		"icon":        cat.Icon,
	}).Error; err != nil {
		util.Error(c, fmt.Errorf("update category: %w", err))
		return
	}
	util.Success(c, cat)
}

// DeleteCategory refuses while transactions, budgets or recurring
// templates still point at the category.
func (h *CategoryHandler) DeleteCategory(c *gin.Context) {
	p, cat, err := h.load(c)
	if err != nil {
		util.Error(c, err)
		return
	}
	if err := auth.AuthorizeCategoryMutation(p, auth.ActionDelete, cat); err != nil {
		util.Error(c, err)
		return
	}

	db := h.DB.WithContext(c.Request.Context())
	refs := []struct {
		model any
		what  string
	}{
		{&models.Transaction{}, "transactions"},
		{&models.BudgetCategory{}, "budgets"},
		{&models.RecurringTransaction{}, "recurring transactions"},
	}
	for _, r := range refs {
		var count int64
		if err := db.Model(r.model).Where("category_id = ?", cat.ID).Count(&count).Error; err != nil {
			util.Error(c, fmt.Errorf("count category references: %w", err))
			return
		}
		if count > 0 {
			util.Error(c, util.ValidationError("Category is used by %d %s and cannot be deleted", count, r.what))
			return
		}
	}
	if err := db.Delete(cat).Error; err != nil {
		util.Error(c, fmt.Errorf("delete category: %w", err))
		return
	}
	util.Success(c, gin.H{})
}
