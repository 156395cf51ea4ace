// Package testutil builds in-memory fixtures for package tests.
package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/matthew-heyner/family-finance/internal/config"
	"github.com/matthew-heyner/family-finance/internal/database"
	"github.com/matthew-heyner/family-finance/internal/models"
	"github.com/matthew-heyner/family-finance/internal/money"
)

// Password is the plain password of every user created by CreateUser.
const Password = "password123"

// NewDB opens a migrated, seeded in-memory database closed at test end.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()
	db, err := database.Init(config.DatabaseConfig{Path: database.MemoryPath})
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })
	require.NoError(t, database.Prepare(db))
	return db
}

// Config returns a valid configuration suitable for tests.
func Config(t testing.TB) *config.Config {
	t.Helper()
	return &config.Config{
		Server: config.ServerConfig{Address: "127.0.0.1", Port: 5000, Mode: "test", ShutdownTimeout: time.Second},
		Database: config.DatabaseConfig{
			Path: database.MemoryPath,
		},
		JWT: config.JWTConfig{
			Secret:      "test-secret-0123456789",
			Issuer:      "family-finance-test",
			ExpireHours: 720,
			CookieName:  "token",
		},
		Security: config.SecurityConfig{
			BcryptCost:       bcrypt.MinCost,
			EncryptionKey:    "test-encryption-key",
			ResetTokenTTL:    10 * time.Minute,
			MaxLoginAttempts: 5,
			LockoutDuration:  10 * time.Minute,
		},
		Log:       config.LogConfig{Level: "error", Format: "text"},
		Receipts:  config.ReceiptsConfig{Dir: t.TempDir(), MaxUploadMB: 1},
		RateLimit: config.RateLimitConfig{Requests: 10000, Window: time.Minute},
		AMQP:      config.AMQPConfig{Exchange: "family-finance-test"},
		App:       config.AppSubConfig{PageSize: 10, MaxPageSize: 100},
	}
}

// CreateUser inserts a user whose password is Password.
func CreateUser(t testing.TB, db *gorm.DB, email string, role models.Role, familyID *uint) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(Password), bcrypt.MinCost)
	require.NoError(t, err)
	u := &models.User{
		Name:         email,
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
		FamilyID:     familyID,
	}
	require.NoError(t, db.Create(u).Error)
	return u
}

// CreateFamily makes admin the admin and a member of a new family.
func CreateFamily(t testing.TB, db *gorm.DB, admin *models.User, name string) *models.Family {
	t.Helper()
	f := &models.Family{Name: name, AdminID: admin.ID, Settings: models.DefaultFamilySettings()}
	require.NoError(t, db.Create(f).Error)
	admin.FamilyID = &f.ID
	admin.Role = models.RoleAdmin
	require.NoError(t, db.Save(admin).Error)
	return f
}

// Household is a family with one admin and one regular member.
type Household struct {
	Family *models.Family
	Admin  *models.User
	Member *models.User
}

// NewHousehold creates a family named name with admin@name and member@name.
func NewHousehold(t testing.TB, db *gorm.DB, name string) Household {
	t.Helper()
	admin := CreateUser(t, db, "admin@"+name+".test", models.RoleAdmin, nil)
	fam := CreateFamily(t, db, admin, name)
	member := CreateUser(t, db, "member@"+name+".test", models.RoleUser, &fam.ID)
	return Household{Family: fam, Admin: admin, Member: member}
}

// CreateCategory inserts a family category.
func CreateCategory(t testing.TB, db *gorm.DB, familyID uint, name string) *models.Category {
	t.Helper()
	c := &models.Category{Name: name, Color: models.DefaultCategoryColor, Icon: models.DefaultCategoryIcon, FamilyID: &familyID}
	require.NoError(t, db.Create(c).Error)
	return c
}

// DefaultCategory returns one of the seeded shared categories.
func DefaultCategory(t testing.TB, db *gorm.DB) *models.Category {
	t.Helper()
	var c models.Category
	require.NoError(t, db.Where("is_default = ?", true).Order("id").First(&c).Error)
	return &c
}

// CreateTransaction inserts a transaction directly.
func CreateTransaction(t testing.TB, db *gorm.DB, tx models.Transaction) *models.Transaction {
	t.Helper()
	if tx.Type == "" {
		tx.Type = models.TypeExpense
	}
	if tx.Status == "" {
		tx.Status = models.StatusCompleted
	}
	if tx.Description == "" {
		tx.Description = "test"
	}
	require.NoError(t, db.Create(&tx).Error)
	return &tx
}

// Cents is shorthand for money.FromCents.
func Cents(c int64) money.Amount { return money.FromCents(c) }

// Date builds a UTC midnight date.
func Date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
