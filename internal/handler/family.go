package handler

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/matthew-heyner/family-finance/internal/auth"
	"github.com/matthew-heyner/family-finance/internal/events"
	"github.com/matthew-heyner/family-finance/internal/middleware"
	"github.com/matthew-heyner/family-finance/internal/models"
	"github.com/matthew-heyner/family-finance/internal/util"
)

// FamilyHandler manages the caller's household and its membership.
type FamilyHandler struct {
	DB     *gorm.DB
	Events events.Publisher
}

func NewFamilyHandler(db *gorm.DB, pub events.Publisher) *FamilyHandler {
	return &FamilyHandler{DB: db, Events: pub}
}

// mine loads the caller's family with its members.
func (h *FamilyHandler) mine(c *gin.Context) (*models.User, *models.Family, error) {
	p, fid, err := member(c)
	if err != nil {
		return nil, nil, err
	}
	db := h.DB.WithContext(c.Request.Context())
	var fam models.Family
	if err := first(db, &fam, "Family", fid); err != nil {
		return nil, nil, err
	}
	if err := db.Where("family_id = ?", fam.ID).Order("id").Find(&fam.Members).Error; err != nil {
		return nil, nil, fmt.Errorf("load members: %w", err)
	}
	return p, &fam, nil
}

type createFamilyReq struct {
	Name string `json:"name"`
}

// CreateFamily founds a family with the caller as admin.
func (h *FamilyHandler) CreateFamily(c *gin.Context) {
	p, err := middleware.CurrentUser(c)
	if err != nil {
		util.Error(c, err)
		return
	}
	if p.FamilyID != nil {
		util.Error(c, util.ValidationError("You already belong to a family"))
		return
	}
	var req createFamilyReq
	if err := bindJSON(c, &req); err != nil {
		util.Error(c, err)
		return
	}
	name := strings.TrimSpace(req.Name)
	if err := util.ValidateName("name", name, util.MaxNameLength); err != nil {
		util.Error(c, util.ValidationError("%s", err.Error()))
		return
	}

	var fam *models.Family
	err = h.DB.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		var err error
		fam, err = auth.FoundFamily(tx, p, name)
		return err
	})
	if err != nil {
		util.Error(c, err)
		return
	}
	fam.Members = []models.User{*p}
	util.Created(c, fam)
}

func (h *FamilyHandler) GetFamily(c *gin.Context) {
	_, fam, err := h.mine(c)
	if err != nil {
		util.Error(c, err)
		return
	}
	util.Success(c, fam)
}

type updateFamilyReq struct {
	Name     string `json:"name"`
	Settings *struct {
		Currency            *string `json:"currency"`
		BudgetNotifications *bool   `json:"budgetNotifications"`
		ExpenseApproval     *bool   `json:"expenseApproval"`
		ChildAccounts       *bool   `json:"childAccounts"`
	} `json:"settings"`
}

func (h *FamilyHandler) UpdateFamily(c *gin.Context) {
	p, fam, err := h.mine(c)
	if err != nil {
		util.Error(c, err)
		return
	}
	if err := auth.AuthorizeFamilyAdmin(p, fam); err != nil {
		util.Error(c, err)
		return
	}
	var req updateFamilyReq
	if err := bindJSON(c, &req); err != nil {
		util.Error(c, err)
		return
	}

	if name := strings.TrimSpace(req.Name); name != "" {
		if err := util.ValidateName("name", name, util.MaxNameLength); err != nil {
			util.Error(c, util.ValidationError("%s", err.Error()))
			return
		}
		fam.Name = name
	}
	if s := req.Settings; s != nil {
		if s.Currency != nil {
			cur := strings.ToUpper(strings.TrimSpace(*s.Currency))
			if len(cur) != 3 {
				util.Error(c, util.ValidationError("Currency must be a 3 letter code"))
				return
			}
			fam.Settings.Currency = cur
		}
		if s.BudgetNotifications != nil {
			fam.Settings.BudgetNotifications = *s.BudgetNotifications
		}
		if s.ExpenseApproval != nil {
			fam.Settings.ExpenseApproval = *s.ExpenseApproval
		}
		if s.ChildAccounts != nil {
			fam.Settings.ChildAccounts = *s.ChildAccounts
		}
	}

	if err := h.DB.WithContext(c.Request.Context()).Model(fam).Updates(map[string]any{
		"name":                          fam.Name,
		"settings_currency":             fam.Settings.Currency,
		"settings_budget_notifications": fam.Settings.BudgetNotifications,
		"settings_expense_approval":     fam.Settings.ExpenseApproval,
		"settings_child_accounts":       fam.Settings.ChildAccounts,
	}).Error; err != nil {
		util.Error(c, fmt.Errorf("update family: %w", err))
		return
	}
	util.Success(c, fam)
}

// ---------- members ----------

type addMemberReq struct {
	Email string `json:"email"`
}

func (h *FamilyHandler) AddMember(c *gin.Context) {
	p, fam, err := h.mine(c)
	if err != nil {
		util.Error(c, err)
		return
	}
	if err := auth.AuthorizeFamilyAdmin(p, fam); err != nil {
		util.Error(c, err)
		return
	}
	var req addMemberReq
	if err := bindJSON(c, &req); err != nil {
		util.Error(c, err)
		return
	}

	ctx := c.Request.Context()
	email := util.NormalizeEmail(req.Email)
	var u models.User
	if err := h.DB.WithContext(ctx).Where("email = ?", email).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			util.Error(c, util.NotFoundError("No user found with email %s", email))
			return
		}
		util.Error(c, fmt.Errorf("find user: %w", err))
		return
	}
	if u.FamilyID != nil {
		util.Error(c, util.ValidationError("User already belongs to a family"))
		return
	}
	if err := h.DB.WithContext(ctx).Model(&u).Update("family_id", fam.ID).Error; err != nil {
		util.Error(c, fmt.Errorf("add member: %w", err))
		return
	}
	u.FamilyID = &fam.ID
	fam.Members = append(fam.Members, u)

	events.Emit(ctx, h.Events, events.New(events.MemberAdded, p.ID, &fam.ID, map[string]any{
		"memberId": u.ID,
		"email":    u.Email,
	}))
	util.Success(c, fam)
}

// RemoveMember detaches a user from the family. The admin always stays.
func (h *FamilyHandler) RemoveMember(c *gin.Context) {
	p, fam, err := h.mine(c)
	if err != nil {
		util.Error(c, err)
		return
	}
	if err := auth.AuthorizeFamilyAdmin(p, fam); err != nil {
		util.Error(c, err)
		return
	}
	id, err := paramID(c, "userId")
	if err != nil {
		util.Error(c, err)
		return
	}
	if id == fam.AdminID {
		util.Error(c, util.ValidationError("The family admin cannot be removed"))
		return
	}

	kept := fam.Members[:0]
	found := false
	for _, m := range fam.Members {
		if m.ID == id {
			found = true
			continue
		}
		kept = append(kept, m)
	}
	if !found {
		util.Error(c, util.NotFoundError("User %d is not a member of this family", id))
		return
	}
	if err := h.DB.WithContext(c.Request.Context()).Model(&models.User{}).Where("id = ?", id).
		Updates(map[string]any{"family_id": nil, "role": models.RoleUser}).Error; err != nil {
		util.Error(c, fmt.Errorf("remove member: %w", err))
		return
	}
	fam.Members = kept
	util.Success(c, fam)
}
