package models

import "time"

type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

func (r Role) Valid() bool { return r == RoleAdmin || r == RoleUser }

// User is an account. Email is stored lowercased and unique.
type User struct {
	ID              uint   `gorm:"primaryKey" json:"id"`
	Name            string `gorm:"size:50;not null" json:"name"`
	Email           string `gorm:"size:255;uniqueIndex;not null" json:"email"`
	PasswordHash    string `gorm:"size:255;not null" json:"-"`
	Role            Role   `gorm:"size:16;not null" json:"role"`
	FamilyID        *uint  `gorm:"index" json:"familyId,omitempty"`
	IsEmailVerified bool   `gorm:"not null" json:"isEmailVerified"`

	// only sha256 hashes of the raw tokens are kept
	VerificationToken   string     `gorm:"size:64;index" json:"-"`
	ResetPasswordToken  string     `gorm:"size:64;index" json:"-"`
	ResetPasswordExpire *time.Time `json:"-"`

	FailedLoginAttempts int        `gorm:"default:0" json:"-"`
	LockedUntil         *time.Time `json:"-"`
	LastLoginAt         *time.Time `json:"lastLoginAt,omitempty"`
	LastLoginIP         string     `gorm:"size:64" json:"-"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// InFamily reports whether the user belongs to familyID.
func (u *User) InFamily(familyID uint) bool {
	return u.FamilyID != nil && *u.FamilyID == familyID
}

func (u *User) IsAdmin() bool { return u.Role == RoleAdmin }
