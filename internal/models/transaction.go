package models

import (
	"time"

	"github.com/matthew-heyner/family-finance/internal/money"
)

type TransactionType string

const (
	TypeExpense  TransactionType = "expense"
	TypeIncome   TransactionType = "income"
	TypeTransfer TransactionType = "transfer"
)

func (t TransactionType) Valid() bool {
	switch t {
	case TypeExpense, TypeIncome, TypeTransfer:
		return true
	}
	return false
}

type TransactionStatus string

const (
	StatusPending   TransactionStatus = "pending"
	StatusCompleted TransactionStatus = "completed"
	StatusRejected  TransactionStatus = "rejected"
)

func (s TransactionStatus) Valid() bool {
	switch s {
	case StatusPending, StatusCompleted, StatusRejected:
		return true
	}
	return false
}

// Transaction is a single financial event inside a family.
type Transaction struct {
	ID            uint              `gorm:"primaryKey" json:"id"`
	Amount        money.Amount      `gorm:"not null;index" json:"amount"`
	Description   string            `gorm:"size:100;not null" json:"description"`
	Date          time.Time         `gorm:"not null;index" json:"date"`
	Type          TransactionType   `gorm:"size:16;not null;index" json:"type"`
	Status        TransactionStatus `gorm:"size:16;not null;index" json:"status"`
	CategoryID    uint              `gorm:"not null;index" json:"categoryId"`
	PaymentMethod string            `gorm:"size:50" json:"paymentMethod,omitempty"`
	Location      string            `gorm:"size:100" json:"location,omitempty"`
	Notes         string            `gorm:"size:500" json:"notes,omitempty"`
	Tags          []string          `gorm:"serializer:json" json:"tags,omitempty"`
	IsRecurring   bool              `gorm:"not null" json:"isRecurring"`
	RecurringID   *uint             `gorm:"index" json:"recurringId,omitempty"`
	FamilyID      uint              `gorm:"not null;index" json:"familyId"`
	CreatedByID   uint              `gorm:"not null;index" json:"createdBy"`
	AssignedToID  *uint             `gorm:"index" json:"assignedTo,omitempty"`
	ApprovedByID  *uint             `json:"approvedBy,omitempty"`

	Category *Category `gorm:"constraint:OnDelete:RESTRICT" json:"category,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
