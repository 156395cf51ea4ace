package database

import (
	"fmt"

	"github.com/matthew-heyner/family-finance/internal/models"

	"gorm.io/gorm"
)

// AutoMigrate runs database schema migrations for all models.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.Family{},
		&models.User{},
		&models.Category{},
		&models.RecurringTransaction{},
		&models.Transaction{},
		&models.Budget{},
		&models.BudgetCategory{},
		&models.Receipt{},
		&models.AuditLog{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

// DefaultCategories are shared by every family and cannot be modified.
var DefaultCategories = []models.Category{
	{Name: "Housing", Color: "#6366F1", Icon: "home"},
	{Name: "Food & Dining", Color: "#F59E0B", Icon: "utensils"},
	{Name: "Transportation", Color: "#3B82F6", Icon: "car"},
	{Name: "Utilities", Color: "#10B981", Icon: "bolt"},
	{Name: "Healthcare", Color: "#EF4444", Icon: "heart"},
	{Name: "Education", Color: "#8B5CF6", Icon: "book"},
	{Name: "Entertainment", Color: "#EC4899", Icon: "film"},
	{Name: "Shopping", Color: "#F97316", Icon: "bag"},
	{Name: "Savings", Color: "#14B8A6", Icon: "piggy-bank"},
	{Name: "Salary", Color: "#22C55E", Icon: "wallet"},
	{Name: "Other", Color: "#6B7280", Icon: models.DefaultCategoryIcon},
}

// SeedDefaultCategories inserts any missing default category. Safe to re-run.
func SeedDefaultCategories(db *gorm.DB) error {
	return db.Transaction(func(tx *gorm.DB) error {
		for _, c := range DefaultCategories {
			var count int64
			if err := tx.Model(&models.Category{}).
				Where("is_default = ? AND name = ?", true, c.Name).
				Count(&count).Error; err != nil {
				return fmt.Errorf("check default category %q: %w", c.Name, err)
			}
			if count > 0 {
				continue
			}
			cat := c
			cat.IsDefault = true
			if err := tx.Create(&cat).Error; err != nil {
				return fmt.Errorf("seed default category %q: %w", c.Name, err)
			}
		}
		return nil
	})
}

// Prepare migrates and seeds.
func Prepare(db *gorm.DB) error {
	if err := AutoMigrate(db); err != nil {
		return err
	}
	return SeedDefaultCategories(db)
}
