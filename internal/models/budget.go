package models

import (
	"time"

	"github.com/matthew-heyner/family-finance/internal/money"
)

type BudgetPeriod string

const (
	PeriodMonthly   BudgetPeriod = "monthly"
	PeriodQuarterly BudgetPeriod = "quarterly"
	PeriodYearly    BudgetPeriod = "yearly"
	PeriodCustom    BudgetPeriod = "custom"
)

func (p BudgetPeriod) Valid() bool {
	switch p {
	case PeriodMonthly, PeriodQuarterly, PeriodYearly, PeriodCustom:
		return true
	}
	return false
}

// Budget is a spending plan over [StartDate, EndDate].
// Sum(Categories[i].Amount) == TotalAmount on every write.
type Budget struct {
	ID          uint             `gorm:"primaryKey" json:"id"`
	Name        string           `gorm:"size:50;not null" json:"name"`
	Description string           `gorm:"size:200" json:"description,omitempty"`
	TotalAmount money.Amount     `gorm:"not null" json:"totalAmount"`
	StartDate   time.Time        `gorm:"not null;index" json:"startDate"`
	EndDate     time.Time        `gorm:"not null;index" json:"endDate"`
	Period      BudgetPeriod     `gorm:"size:16;not null;index" json:"period"`
	Categories  []BudgetCategory `gorm:"constraint:OnDelete:CASCADE" json:"categories"`
	IsActive    bool             `gorm:"not null;index" json:"isActive"`
	FamilyID    uint             `gorm:"not null;index" json:"familyId"`
	CreatedByID uint             `gorm:"not null" json:"createdBy"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// BudgetCategory is one allocation. Spent and Remaining are derived on read
// and never stored.
type BudgetCategory struct {
	ID         uint         `gorm:"primaryKey" json:"-"`
	BudgetID   uint         `gorm:"not null;index" json:"-"`
	Position   int          `gorm:"not null" json:"-"`
	CategoryID uint         `gorm:"not null;index" json:"categoryId"`
	Amount     money.Amount `gorm:"not null" json:"amount"`
	Spent      money.Amount `gorm:"-" json:"spent"`
	Remaining  money.Amount `gorm:"-" json:"remaining"`
}
