// Package handler implements the REST endpoints. Handlers parse input,
// make one policy decision per operation through package auth and hand
// failures to the error middleware with util.Error.
package handler

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/matthew-heyner/family-finance/internal/auth"
	"github.com/matthew-heyner/family-finance/internal/middleware"
	"github.com/matthew-heyner/family-finance/internal/models"
	"github.com/matthew-heyner/family-finance/internal/util"
)

// member returns the principal and the family they act in.
func member(c *gin.Context) (*models.User, uint, error) {
	user, err := middleware.CurrentUser(c)
	if err != nil {
		return nil, 0, err
	}
	fid, err := auth.RequireFamily(user)
	if err != nil {
		return nil, 0, err
	}
	return user, fid, nil
}

func paramID(c *gin.Context, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, util.ValidationError("Invalid id %q", c.Param(name))
	}
	return uint(id), nil
}

func bindJSON(c *gin.Context, dst any) error {
	if err := c.ShouldBindJSON(dst); err != nil {
		return util.ValidationError("Invalid request body: %s", err.Error())
	}
	return nil
}

func notFound(entity string, id uint) error {
	return util.NotFoundError("%s not found with id of %d", entity, id)
}

// first loads dest by primary key, turning a missing row into a 404.
func first(db *gorm.DB, dest any, entity string, id uint) error {
	if err := db.First(dest, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFound(entity, id)
		}
		return fmt.Errorf("load %s %d: %w", entity, id, err)
	}
	return nil
}

// visibleCategory loads a category and checks a member of fid may use it.
func visibleCategory(db *gorm.DB, fid, id uint) (*models.Category, error) {
	var cat models.Category
	if err := first(db, &cat, "Category", id); err != nil {
		return nil, err
	}
	if !cat.VisibleTo(fid) {
		return nil, util.ForbiddenError("Category %d is not available to your family", id)
	}
	return &cat, nil
}

// familyMember checks that user id belongs to family fid.
func familyMember(db *gorm.DB, fid, id uint) (*models.User, error) {
	var u models.User
	if err := first(db, &u, "User", id); err != nil {
		return nil, err
	}
	if !u.InFamily(fid) {
		return nil, util.ValidationError("User %d is not a member of your family", id)
	}
	return &u, nil
}

func parseDateField(field, raw string) (time.Time, error) {
	t, err := util.ParseDate(raw)
	if err != nil {
		return t, util.ValidationError("Invalid %s %q", field, raw)
	}
	return t, nil
}
