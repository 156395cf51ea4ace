package handler

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/matthew-heyner/family-finance/internal/auth"
	"github.com/matthew-heyner/family-finance/internal/models"
	"github.com/matthew-heyner/family-finance/internal/query"
	"github.com/matthew-heyner/family-finance/internal/util"
)

// UserHandler lets a family admin manage the accounts in their family.
type UserHandler struct {
	DB          *gorm.DB
	Auth        *auth.Service
	PageSize    int
	MaxPageSize int
}

func NewUserHandler(db *gorm.DB, svc *auth.Service, pageSize, maxPageSize int) *UserHandler {
	return &UserHandler{DB: db, Auth: svc, PageSize: pageSize, MaxPageSize: maxPageSize}
}

// load fetches a user of the caller's family.
func (h *UserHandler) load(c *gin.Context) (*models.User, *models.User, error) {
	p, _, err := member(c)
	if err != nil {
		return nil, nil, err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return nil, nil, err
	}
	var u models.User
	if err := first(h.DB.WithContext(c.Request.Context()), &u, "User", id); err != nil {
		return nil, nil, err
	}
	var ufid uint
	if u.FamilyID != nil {
		ufid = *u.FamilyID
	}
	if err := auth.AuthorizeFamilyScope(p, ufid); err != nil {
		return nil, nil, err
	}
	return p, &u, nil
}

func (h *UserHandler) ListUsers(c *gin.Context) {
	_, fid, err := member(c)
	if err != nil {
		util.Error(c, err)
		return
	}
	page := query.ParsePage(c.Request.URL.Query(), h.PageSize, h.MaxPageSize)
	sort := query.SortFrom(c.Request.URL.Query(), query.CreatedSorts, query.CreatedDefaultSort)

	var users []models.User
	base := h.DB.WithContext(c.Request.Context()).Model(&models.User{}).Where("family_id = ?", fid)
	res, err := query.Paginate(base, query.Filter{}, sort, page, &users)
	if err != nil {
		util.Error(c, err)
		return
	}
	util.List(c, users, len(users), res.Total, res.Pagination)
}

func (h *UserHandler) GetUser(c *gin.Context) {
	_, u, err := h.load(c)
	if err != nil {
		util.Error(c, err)
		return
	}
	util.Success(c, u)
}

type createUserReq struct {
	Name     string      `json:"name"`
	Email    string      `json:"email"`
	Password string      `json:"password"`
	Role     models.Role `json:"role"`
}

// CreateUser adds an account directly to the admin's family.
func (h *UserHandler) CreateUser(c *gin.Context) {
	_, fid, err := member(c)
	if err != nil {
		util.Error(c, err)
		return
	}
	var req createUserReq
	if err := bindJSON(c, &req); err != nil {
		util.Error(c, err)
		return
	}
	u, err := h.Auth.CreateUser(c.Request.Context(), auth.CreateUserInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
		FamilyID: &fid,
	})
	if err != nil {
		util.Error(c, err)
		return
	}
	util.Created(c, u)
}

type updateUserReq struct {
	Name  string       `json:"name"`
	Email string       `json:"email"`
	Role  *models.Role `json:"role"`
}

func (h *UserHandler) UpdateUser(c *gin.Context) {
	_, u, err := h.load(c)
	if err != nil {
		util.Error(c, err)
		return
	}
	var req updateUserReq
	if err := bindJSON(c, &req); err != nil {
		util.Error(c, err)
		return
	}

	ctx := c.Request.Context()
	if req.Role != nil && *req.Role != u.Role {
		if !req.Role.Valid() {
			util.Error(c, util.ValidationError("Invalid role %q", *req.Role))
			return
		}
		var fam models.Family
		if err := first(h.DB.WithContext(ctx), &fam, "Family", *u.FamilyID); err != nil {
			util.Error(c, err)
			return
		}
		if fam.AdminID == u.ID && *req.Role != models.RoleAdmin {
			util.Error(c, util.ValidationError("The family admin must keep the admin role"))
			return
		}
		if err := h.DB.WithContext(ctx).Model(u).Update("role", *req.Role).Error; err != nil {
			util.Error(c, fmt.Errorf("update role: %w", err))
			return
		}
		u.Role = *req.Role
	}

	if req.Name != "" || req.Email != "" {
		if u, err = h.Auth.UpdateDetails(ctx, u, req.Name, req.Email); err != nil {
			util.Error(c, err)
			return
		}
	}
	util.Success(c, u)
}

func (h *UserHandler) DeleteUser(c *gin.Context) {
	p, u, err := h.load(c)
	if err != nil {
		util.Error(c, err)
		return
	}
	if u.ID == p.ID {
		util.Error(c, util.ValidationError("You cannot delete your own account"))
		return
	}
	ctx := c.Request.Context()
	var fam models.Family
	if err := first(h.DB.WithContext(ctx), &fam, "Family", *u.FamilyID); err != nil {
		util.Error(c, err)
		return
	}
	if fam.AdminID == u.ID {
		util.Error(c, util.ValidationError("The family admin cannot be deleted"))
		return
	}
	if err := h.DB.WithContext(ctx).Delete(u).Error; err != nil {
		util.Error(c, fmt.Errorf("delete user: %w", err))
		return
	}
	util.Success(c, gin.H{})
}
