package models

import "time"

// FamilySettings are per-family preferences.
type FamilySettings struct {
	Currency            string `gorm:"size:3;not null" json:"currency"`
	BudgetNotifications bool   `gorm:"not null" json:"budgetNotifications"`
	ExpenseApproval     bool   `gorm:"not null" json:"expenseApproval"`
	ChildAccounts       bool   `gorm:"not null" json:"childAccounts"`
}

func DefaultFamilySettings() FamilySettings {
	return FamilySettings{
		Currency:            "USD",
		BudgetNotifications: true,
		ExpenseApproval:     false,
		ChildAccounts:       false,
	}
}

// Family is the tenancy boundary. Membership is the set of users whose
// FamilyID points here; the admin is always one of them.
type Family struct {
	ID       uint           `gorm:"primaryKey" json:"id"`
	Name     string         `gorm:"size:50;not null" json:"name"`
	AdminID  uint           `gorm:"index;not null" json:"adminId"`
	Settings FamilySettings `gorm:"embedded;embeddedPrefix:settings_" json:"settings"`
	Members  []User         `gorm:"-" json:"members,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
