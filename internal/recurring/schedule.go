// Package recurring computes when a recurring transaction template is next
// due. Nothing here creates transactions.
package recurring

import (
	"time"

	"github.com/matthew-heyner/family-finance/internal/models"
	"github.com/matthew-heyner/family-finance/internal/util"
)

// Validate checks the template fields that depend on each other.
func Validate(r *models.RecurringTransaction) error {
	if !r.Frequency.Valid() {
		return util.ValidationError("Invalid frequency %q", r.Frequency)
	}
	if r.DayOfMonth != nil && (*r.DayOfMonth < 1 || *r.DayOfMonth > 31) {
		return util.ValidationError("dayOfMonth must be between 1 and 31")
	}
	if r.DayOfWeek != nil && (*r.DayOfWeek < 0 || *r.DayOfWeek > 6) {
		return util.ValidationError("dayOfWeek must be between 0 and 6")
	}
	if r.EndDate != nil && r.EndDate.Before(r.StartDate) {
		return util.ValidationError("endDate cannot be before startDate")
	}
	return nil
}

func midnight(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// addMonths moves t by n months and pins the day to anchor, clamped to the
// length of the target month (31 in February becomes 28 or 29).
func addMonths(t time.Time, n, anchor int) time.Time {
	month := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, n, 0)
	day := anchor
	if last := daysIn(month.Year(), month.Month()); day > last {
		day = last
	}
	return time.Date(month.Year(), month.Month(), day, 0, 0, 0, 0, time.UTC)
}

// first returns the first occurrence on or after the start date.
func first(r *models.RecurringTransaction) time.Time {
	start := midnight(r.StartDate)
	switch r.Frequency {
	case models.FrequencyWeekly, models.FrequencyBiweekly:
		if r.DayOfWeek != nil {
			shift := (*r.DayOfWeek - int(start.Weekday()) + 7) % 7
			return start.AddDate(0, 0, shift)
		}
	case models.FrequencyMonthly, models.FrequencyQuarterly, models.FrequencyYearly:
		if r.DayOfMonth != nil {
			at := addMonths(start, 0, *r.DayOfMonth)
			if at.Before(start) {
				at = addMonths(start, 1, *r.DayOfMonth)
			}
			return at
		}
	}
	return start
}

// step returns the k-th occurrence after origin.
func step(r *models.RecurringTransaction, origin time.Time, anchor, k int) time.Time {
	switch r.Frequency {
	case models.FrequencyDaily:
		return origin.AddDate(0, 0, k)
	case models.FrequencyWeekly:
		return origin.AddDate(0, 0, 7*k)
	case models.FrequencyBiweekly:
		return origin.AddDate(0, 0, 14*k)
	case models.FrequencyMonthly:
		return addMonths(origin, k, anchor)
	case models.FrequencyQuarterly:
		return addMonths(origin, 3*k, anchor)
	case models.FrequencyYearly:
		return addMonths(origin, 12*k, anchor)
	}
	return origin
}

// NextOccurrence is the first occurrence on or after the day of now, or nil
// when the template is inactive or has run past its end date.
func NextOccurrence(r *models.RecurringTransaction, now time.Time) *time.Time {
	if !r.IsActive || !r.Frequency.Valid() {
		return nil
	}
	origin := first(r)
	anchor := origin.Day()
	if r.DayOfMonth != nil {
		anchor = *r.DayOfMonth
	}

	today := midnight(now)
	next := origin
	if next.Before(today) {
		// jump close to today, then walk forward
		k := 0
		switch r.Frequency {
		case models.FrequencyDaily:
			k = int(today.Sub(origin).Hours() / 24)
		case models.FrequencyWeekly:
			k = int(today.Sub(origin).Hours() / (24 * 7))
		case models.FrequencyBiweekly:
			k = int(today.Sub(origin).Hours() / (24 * 14))
		default:
			months := (today.Year()-origin.Year())*12 + int(today.Month()-origin.Month())
			per := map[models.Frequency]int{
				models.FrequencyMonthly:   1,
				models.FrequencyQuarterly: 3,
				models.FrequencyYearly:    12,
			}[r.Frequency]
			k = months / per
		}
		if k < 0 {
			k = 0
		}
		next = step(r, origin, anchor, k)
		for next.Before(today) {
			k++
			next = step(r, origin, anchor, k)
		}
	}

	if r.EndDate != nil && next.After(midnight(*r.EndDate)) {
		return nil
	}
	return &next
}
