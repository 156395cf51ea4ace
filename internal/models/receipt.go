package models

import (
	"time"

	"github.com/matthew-heyner/family-finance/internal/money"
)

type ReceiptStatus string

const (
	ReceiptPending    ReceiptStatus = "pending"
	ReceiptProcessing ReceiptStatus = "processing"
	ReceiptCompleted  ReceiptStatus = "completed"
	ReceiptFailed     ReceiptStatus = "failed"
)

func (s ReceiptStatus) Valid() bool {
	switch s {
	case ReceiptPending, ReceiptProcessing, ReceiptCompleted, ReceiptFailed:
		return true
	}
	return false
}

type ReceiptItem struct {
	Description string        `json:"description,omitempty"`
	Amount      *money.Amount `json:"amount,omitempty"`
	Quantity    int           `json:"quantity,omitempty"`
}

// ExtractedData holds fields read off the receipt. It is filled in by
// whoever processes the upload; nothing in this service extracts it.
type ExtractedData struct {
	Vendor string        `json:"vendor,omitempty"`
	Date   *time.Time    `json:"date,omitempty"`
	Total  *money.Amount `json:"total,omitempty"`
	Items  []ReceiptItem `json:"items,omitempty"`
	Tax    *money.Amount `json:"tax,omitempty"`
}

// Receipt is an uploaded document. The file is stored encrypted on disk
// under StoredName.
type Receipt struct {
	ID               uint           `gorm:"primaryKey" json:"id"`
	OriginalFilename string         `gorm:"size:255;not null" json:"originalFilename"`
	StoredName       string         `gorm:"size:64;not null;uniqueIndex" json:"-"`
	MimeType         string         `gorm:"size:100;not null" json:"mimeType"`
	Size             int64          `gorm:"not null" json:"size"`
	ExtractedData    *ExtractedData `gorm:"serializer:json" json:"extractedData,omitempty"`
	ProcessingStatus ReceiptStatus  `gorm:"size:16;not null;index" json:"processingStatus"`
	ProcessingError  string         `gorm:"size:500" json:"processingError,omitempty"`
	TransactionID    *uint          `gorm:"index" json:"transactionId,omitempty"`
	FamilyID         uint           `gorm:"not null;index" json:"familyId"`
	CreatedByID      uint           `gorm:"not null" json:"createdBy"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
