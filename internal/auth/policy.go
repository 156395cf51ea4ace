package auth

import (
	"github.com/matthew-heyner/family-finance/internal/models"
	"github.com/matthew-heyner/family-finance/internal/util"
)

// Action names the kind of access being checked.
type Action string

const (
	ActionRead   Action = "read"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

const msgForbidden = "Not authorized to access this resource"

// AuthorizeRole passes when the principal holds one of roles.
func AuthorizeRole(p *models.User, roles ...models.Role) error {
	if p == nil {
		return util.AuthError(msgNotAuthorized)
	}
	for _, r := range roles {
		if p.Role == r {
			return nil
		}
	}
	return util.ForbiddenError("User role %s is not authorized to access this route", p.Role)
}

// RequireFamily returns the principal's family id, or ForbiddenError when
// they have not joined one.
func RequireFamily(p *models.User) (uint, error) {
	if p == nil {
		return 0, util.AuthError(msgNotAuthorized)
	}
	if p.FamilyID == nil {
		return 0, util.ForbiddenError("You must belong to a family to access this resource")
	}
	return *p.FamilyID, nil
}

// AuthorizeFamilyScope passes only when the resource belongs to the
// principal's family.
func AuthorizeFamilyScope(p *models.User, resourceFamilyID uint) error {
	fid, err := RequireFamily(p)
	if err != nil {
		return err
	}
	if fid != resourceFamilyID {
		return util.ForbiddenError(msgForbidden)
	}
	return nil
}

// Ownership describes who created a resource and, optionally, who it is
// assigned to.
type Ownership struct {
	CreatorID  uint
	AssigneeID *uint
}

// AuthorizeOwnershipOrRole passes when the principal holds one of roles,
// created the resource, or (for updates only) is its assignee.
func AuthorizeOwnershipOrRole(p *models.User, action Action, own Ownership, roles ...models.Role) error {
	if p == nil {
		return util.AuthError(msgNotAuthorized)
	}
	for _, r := range roles {
		if p.Role == r {
			return nil
		}
	}
	if p.ID == own.CreatorID {
		return nil
	}
	if action == ActionUpdate && own.AssigneeID != nil && *own.AssigneeID == p.ID {
		return nil
	}
	return util.ForbiddenError("Not authorized to %s this resource", action)
}

// AuthorizeCategoryMutation rejects any change to a default category and
// otherwise requires family scope.
func AuthorizeCategoryMutation(p *models.User, action Action, c *models.Category) error {
	if c.IsDefault {
		return util.ForbiddenError("Cannot %s default categories", action)
	}
	if c.FamilyID == nil {
		return util.ForbiddenError(msgForbidden)
	}
	return AuthorizeFamilyScope(p, *c.FamilyID)
}

// AuthorizeCategoryRead lets anyone see defaults and family members see
// their own categories.
func AuthorizeCategoryRead(p *models.User, c *models.Category) error {
	if c.IsDefault {
		return nil
	}
	if c.FamilyID == nil {
		return util.ForbiddenError(msgForbidden)
	}
	return AuthorizeFamilyScope(p, *c.FamilyID)
}

// InitialStatus decides the status of a new transaction. Non-admins always
// start at pending; asking for anything else is forbidden. Admins default to
// completed.
func InitialStatus(p *models.User, requested models.TransactionStatus) (models.TransactionStatus, error) {
	if requested != "" && !requested.Valid() {
		return "", util.ValidationError("Invalid status %q", requested)
	}
	if p.IsAdmin() {
		if requested == "" {
			return models.StatusCompleted, nil
		}
		return requested, nil
	}
	if requested != "" && requested != models.StatusPending {
		return "", util.ForbiddenError("Only admins can approve or reject transactions")
	}
	return models.StatusPending, nil
}

// AuthorizeStatusChange allows admins any transition; for everyone else the
// status is read-only.
func AuthorizeStatusChange(p *models.User, from, to models.TransactionStatus) error {
	if !to.Valid() {
		return util.ValidationError("Invalid status %q", to)
	}
	if from == to || p.IsAdmin() {
		return nil
	}
	return util.ForbiddenError("Only admins can approve or reject transactions")
}

// StampsApproval reports whether moving from -> to records the approver.
// Every move into completed does, whatever the previous status.
func StampsApproval(from, to models.TransactionStatus) bool {
	return from != to && to == models.StatusCompleted
}

// AuthorizeFamilyAdmin passes for the admin of the principal's family.
func AuthorizeFamilyAdmin(p *models.User, f *models.Family) error {
	if err := AuthorizeFamilyScope(p, f.ID); err != nil {
		return err
	}
	if f.AdminID != p.ID && !p.IsAdmin() {
		return util.ForbiddenError("Only the family admin can do that")
	}
	return nil
}
