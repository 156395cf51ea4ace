package handler_test

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthew-heyner/family-finance/internal/models"
	"github.com/matthew-heyner/family-finance/internal/testutil"
)

func TestListCategories_DefaultsAndOwn(t *testing.T) {
	e := newEnv(t)
	h := testutil.NewHousehold(t, e.db, "catlist")
	other := testutil.NewHousehold(t, e.db, "catlistother")
	testutil.CreateCategory(t, e.db, h.Family.ID, "Pets")
	testutil.CreateCategory(t, e.db, other.Family.ID, "Boat")

	var defaults int64
	require.NoError(t, e.db.Model(&models.Category{}).Where("is_default = ?", true).Count(&defaults).Error)

	w := e.do(h.Member, http.MethodGet, "/api/categories", nil)
	env := decode(t, w)
	assert.Equal(t, int(defaults)+1, env.Count)
	assert.Contains(t, w.Body.String(), "Pets")
	assert.NotContains(t, w.Body.String(), "Boat")
}

func TestDefaultCategories_AreImmutable(t *testing.T) {
	e := newEnv(t)
	h := testutil.NewHousehold(t, e.db, "catdefault")
	def := testutil.DefaultCategory(t, e.db)
	path := fmt.Sprintf("/api/categories/%d", def.ID)

	requireError(t, e.do(h.Admin, http.MethodPut, path, map[string]string{"name": "Renamed"}),
		http.StatusForbidden, "Cannot update default categories")
	requireError(t, e.do(h.Admin, http.MethodDelete, path, nil),
		http.StatusForbidden, "Cannot delete default categories")

	w := e.do(h.Member, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestCreateCategory(t *testing.T) {
	e := newEnv(t)
	h := testutil.NewHousehold(t, e.db, "catcreate")

	w := e.do(h.Member, http.MethodPost, "/api/categories", map[string]string{"name": "Hobbies", "color": "#336699"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var cat models.Category
	data(t, w, &cat)
	assert.False(t, cat.IsDefault)
	require.NotNil(t, cat.FamilyID)
	assert.Equal(t, h.Family.ID, *cat.FamilyID)

	requireError(t, e.do(h.Admin, http.MethodPost, "/api/categories", map[string]string{"name": "hobbies"}),
		http.StatusBadRequest, "Category with this name already exists")
	requireError(t, e.do(h.Admin, http.MethodPost, "/api/categories", map[string]string{"name": "Paint", "color": "blue"}),
		http.StatusBadRequest, "Please use a valid hex color")
}

func TestDeleteCategory_InUse(t *testing.T) {
	e := newEnv(t)
	h := testutil.NewHousehold(t, e.db, "catdel")
	other := testutil.NewHousehold(t, e.db, "catdelother")
	used := testutil.CreateCategory(t, e.db, h.Family.ID, "Used")
	unused := testutil.CreateCategory(t, e.db, h.Family.ID, "Unused")
	testutil.CreateTransaction(t, e.db, models.Transaction{
		Amount: testutil.Cents(100), Date: testutil.Date(2024, time.March, 1),
		CategoryID: used.ID, FamilyID: h.Family.ID, CreatedByID: h.Admin.ID,
	})

	requireError(t, e.do(h.Admin, http.MethodDelete, fmt.Sprintf("/api/categories/%d", used.ID), nil),
		http.StatusBadRequest, "Category is used by 1 transactions and cannot be deleted")
	requireError(t, e.do(other.Admin, http.MethodDelete, fmt.Sprintf("/api/categories/%d", unused.ID), nil),
		http.StatusForbidden, "")

	w := e.do(h.Admin, http.MethodDelete, fmt.Sprintf("/api/categories/%d", unused.ID), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}
