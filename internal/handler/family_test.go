package handler_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthew-heyner/family-finance/internal/events"
	"github.com/matthew-heyner/family-finance/internal/models"
	"github.com/matthew-heyner/family-finance/internal/testutil"
)

func TestCreateFamily(t *testing.T) {
	e := newEnv(t)
	loner := testutil.CreateUser(t, e.db, "loner@example.com", models.RoleUser, nil)

	requireError(t, e.do(loner, http.MethodGet, "/api/transactions", nil), http.StatusForbidden, "")

	w := e.do(loner, http.MethodPost, "/api/families", map[string]string{"name": "Loner"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var fam models.Family
	data(t, w, &fam)
	assert.Equal(t, loner.ID, fam.AdminID)
	assert.Equal(t, "USD", fam.Settings.Currency)

	var reloaded models.User
	require.NoError(t, e.db.First(&reloaded, loner.ID).Error)
	require.NotNil(t, reloaded.FamilyID)
	assert.Equal(t, fam.ID, *reloaded.FamilyID)
	assert.Equal(t, models.RoleAdmin, reloaded.Role)

	requireError(t, e.do(&reloaded, http.MethodPost, "/api/families", map[string]string{"name": "Again"}),
		http.StatusBadRequest, "You already belong to a family")
}

func TestUpdateFamily_AdminOnly(t *testing.T) {
	e := newEnv(t)
	h := testutil.NewHousehold(t, e.db, "famupd")

	body := map[string]any{"settings": map[string]any{"currency": "EUR", "expenseApproval": true}}
	requireError(t, e.do(h.Member, http.MethodPut, "/api/families/me", body), http.StatusForbidden, "Only the family admin can do that")

	w := e.do(h.Admin, http.MethodPut, "/api/families/me", body)
	var fam models.Family
	data(t, w, &fam)
	assert.Equal(t, "EUR", fam.Settings.Currency)
	assert.True(t, fam.Settings.ExpenseApproval)

	body = map[string]any{"settings": map[string]any{"currency": "euro"}}
	requireError(t, e.do(h.Admin, http.MethodPut, "/api/families/me", body), http.StatusBadRequest, "Currency must be a 3 letter code")
}

func TestFamilyMembers(t *testing.T) {
	e := newEnv(t)
	h := testutil.NewHousehold(t, e.db, "members")
	newcomer := testutil.CreateUser(t, e.db, "new@example.com", models.RoleUser, nil)

	w := e.do(h.Admin, http.MethodPost, "/api/families/me/members", map[string]string{"email": "NEW@example.com"})
	var fam models.Family
	data(t, w, &fam)
	assert.Len(t, fam.Members, 3)
	ev, ok := e.pub.Last(events.MemberAdded)
	require.True(t, ok)
	assert.Equal(t, h.Family.ID, *ev.FamilyID)

	requireError(t, e.do(h.Admin, http.MethodPost, "/api/families/me/members", map[string]string{"email": "new@example.com"}),
		http.StatusBadRequest, "User already belongs to a family")
	requireError(t, e.do(h.Admin, http.MethodPost, "/api/families/me/members", map[string]string{"email": "ghost@example.com"}),
		http.StatusNotFound, "No user found with email ghost@example.com")

	requireError(t, e.do(h.Admin, http.MethodDelete, fmt.Sprintf("/api/families/me/members/%d", h.Admin.ID), nil),
		http.StatusBadRequest, "The family admin cannot be removed")

	w = e.do(h.Admin, http.MethodDelete, fmt.Sprintf("/api/families/me/members/%d", newcomer.ID), nil)
	data(t, w, &fam)
	assert.Len(t, fam.Members, 2)

	var reloaded models.User
	require.NoError(t, e.db.First(&reloaded, newcomer.ID).Error)
	assert.Nil(t, reloaded.FamilyID)
}
