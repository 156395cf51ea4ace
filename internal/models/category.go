package models

import "time"

const (
	DefaultCategoryColor = "#6366F1"
	DefaultCategoryIcon  = "tag"
)

// Category labels spending or income. Default categories have no family,
// are visible to everyone and can never be changed.
type Category struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"size:50;not null;index" json:"name"`
	Description string    `gorm:"size:200" json:"description,omitempty"`
	Color       string    `gorm:"size:7;not null" json:"color"`
	Icon        string    `gorm:"size:32" json:"icon"`
	IsDefault   bool      `gorm:"not null;index" json:"isDefault"`
	FamilyID    *uint     `gorm:"index" json:"familyId,omitempty"`
	CreatedByID *uint     `json:"createdBy,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// VisibleTo reports whether a member of familyID may reference the category.
func (c *Category) VisibleTo(familyID uint) bool {
	return c.IsDefault || (c.FamilyID != nil && *c.FamilyID == familyID)
}
