package budget

import (
	"time"

	"github.com/matthew-heyner/family-finance/internal/models"
)

// WindowEnd is the last instant the budget covers. An end date at exact
// midnight means that whole day.
func WindowEnd(b *models.Budget) time.Time {
	end := b.EndDate.UTC()
	if end.Hour() == 0 && end.Minute() == 0 && end.Second() == 0 && end.Nanosecond() == 0 {
		return end.Add(24*time.Hour - time.Nanosecond)
	}
	return end
}

// PeriodEnd suggests an end date for a budget starting at start. Custom
// budgets have no implied end.
func PeriodEnd(start time.Time, p models.BudgetPeriod) (time.Time, bool) {
	switch p {
	case models.PeriodMonthly:
		return start.AddDate(0, 1, -1), true
	case models.PeriodQuarterly:
		return start.AddDate(0, 3, -1), true
	case models.PeriodYearly:
		return start.AddDate(1, 0, -1), true
	}
	return time.Time{}, false
}
