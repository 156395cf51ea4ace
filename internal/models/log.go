package models

import "time"

// AuditLog records a mutating API call. Path and body are stored AES
// encrypted; method, status and client details stay in clear for filtering.
type AuditLog struct {
	ID        uint      `gorm:"primaryKey"`
	UserID    uint      `gorm:"index;not null"`
	FamilyID  *uint     `gorm:"index"`
	Method    string    `gorm:"size:16;index"`
	Status    int       `gorm:"index"`
	PathEnc   string    `gorm:"size:1024"`
	ActionEnc string    `gorm:"size:4096"`
	IP        string    `gorm:"size:64"`
	UserAgent string    `gorm:"size:255"`
	CreatedAt time.Time `gorm:"index"`
}
