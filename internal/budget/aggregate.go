// Package budget validates allocations and derives per-category spend.
package budget

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/matthew-heyner/family-finance/internal/log"
	"github.com/matthew-heyner/family-finance/internal/models"
	"github.com/matthew-heyner/family-finance/internal/money"
	"github.com/matthew-heyner/family-finance/internal/util"
)

// ValidateAllocations checks that every allocation is non-negative, names
// a category once, and that together they add up to total exactly.
func ValidateAllocations(total money.Amount, cats []models.BudgetCategory) error {
	if total < 0 {
		return util.ValidationError("Total amount cannot be negative")
	}
	seen := make(map[uint]bool, len(cats))
	amounts := make([]money.Amount, 0, len(cats))
	for _, c := range cats {
		if c.CategoryID == 0 {
			return util.ValidationError("Every budget category needs a categoryId")
		}
		if seen[c.CategoryID] {
			return util.ValidationError("Category %d is allocated more than once", c.CategoryID)
		}
		seen[c.CategoryID] = true
		if c.Amount < 0 {
			return util.ValidationError("Category amounts cannot be negative")
		}
		amounts = append(amounts, c.Amount)
	}
	if money.Sum(amounts...) != total {
		return util.ValidationError("Sum of category amounts must equal the total budget amount")
	}
	return nil
}

// Aggregator fills in Spent and Remaining on read. Nothing it computes is
// written back, so concurrent reads cannot disagree.
type Aggregator struct {
	db     *gorm.DB
	logger *log.Logger
}

func NewAggregator(db *gorm.DB, logger *log.Logger) *Aggregator {
	return &Aggregator{db: db, logger: logger.WithComponent(log.ComponentBudget)}
}

type categorySpend struct {
	CategoryID uint
	Total      money.Amount
}

// RefreshCategorySpend sets Spent to the sum of completed expenses in the
// budget's family, category and inclusive date window, and Remaining to
// Amount - Spent. Inactive budgets are left unaggregated: Spent is zero and
// Remaining the full allocation.
func (a *Aggregator) RefreshCategorySpend(ctx context.Context, b *models.Budget) error {
	for i := range b.Categories {
		b.Categories[i].Spent = 0
		b.Categories[i].Remaining = b.Categories[i].Amount
	}
	if !b.IsActive || len(b.Categories) == 0 {
		return nil
	}

	ids := make([]uint, len(b.Categories))
	for i, c := range b.Categories {
		ids[i] = c.CategoryID
	}

	var rows []categorySpend
	err := a.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Select("category_id, COALESCE(SUM(amount), 0) AS total").
		Where("family_id = ? AND type = ? AND status = ?", b.FamilyID, models.TypeExpense, models.StatusCompleted).
		Where("category_id IN ?", ids).
		Where("date >= ? AND date <= ?", b.StartDate, WindowEnd(b)).
		Group("category_id").
		Scan(&rows).Error
	if err != nil {
		return fmt.Errorf("aggregate budget %d: %w", b.ID, err)
	}

	spent := make(map[uint]money.Amount, len(rows))
	for _, r := range rows {
		spent[r.CategoryID] = r.Total
	}
	for i := range b.Categories {
		c := &b.Categories[i]
		c.Spent = spent[c.CategoryID]
		c.Remaining = c.Amount - c.Spent
	}
	a.logger.DebugContext(ctx, "budget aggregated", "budget_id", b.ID, "categories", len(ids))
	return nil
}

// RefreshAll aggregates each budget in turn.
func (a *Aggregator) RefreshAll(ctx context.Context, budgets []models.Budget) error {
	for i := range budgets {
		if err := a.RefreshCategorySpend(ctx, &budgets[i]); err != nil {
			return err
		}
	}
	return nil
}
