package models

import (
	"time"

	"github.com/matthew-heyner/family-finance/internal/money"
)

type Frequency string

const (
	FrequencyDaily     Frequency = "daily"
	FrequencyWeekly    Frequency = "weekly"
	FrequencyBiweekly  Frequency = "biweekly"
	FrequencyMonthly   Frequency = "monthly"
	FrequencyQuarterly Frequency = "quarterly"
	FrequencyYearly    Frequency = "yearly"
)

func (f Frequency) Valid() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyBiweekly,
		FrequencyMonthly, FrequencyQuarterly, FrequencyYearly:
		return true
	}
	return false
}

// RecurringTransaction is a template. Nothing generates transactions from
// it; NextOccurrence is kept current on every write.
type RecurringTransaction struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	Title          string          `gorm:"size:100;not null" json:"title"`
	Amount         money.Amount    `gorm:"not null" json:"amount"`
	Description    string          `gorm:"size:100;not null" json:"description"`
	Type           TransactionType `gorm:"size:16;not null;index" json:"type"`
	CategoryID     uint            `gorm:"not null" json:"categoryId"`
	Frequency      Frequency       `gorm:"size:16;not null" json:"frequency"`
	StartDate      time.Time       `gorm:"not null" json:"startDate"`
	EndDate        *time.Time      `json:"endDate,omitempty"`
	NextOccurrence *time.Time      `gorm:"index" json:"nextOccurrence"`
	DayOfMonth     *int            `json:"dayOfMonth,omitempty"`
	DayOfWeek      *int            `json:"dayOfWeek,omitempty"`
	IsActive       bool            `gorm:"not null;index" json:"isActive"`
	PaymentMethod  string          `gorm:"size:50" json:"paymentMethod,omitempty"`
	Notes          string          `gorm:"size:500" json:"notes,omitempty"`
	FamilyID       uint            `gorm:"not null;index" json:"familyId"`
	CreatedByID    uint            `gorm:"not null" json:"createdBy"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
