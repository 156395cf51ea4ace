// Package query turns list-endpoint query strings into database filters,
// sort orders and page windows.
package query

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"gorm.io/gorm"

	"github.com/matthew-heyner/family-finance/internal/models"
	"github.com/matthew-heyner/family-finance/internal/money"
	"github.com/matthew-heyner/family-finance/internal/util"
)

type Op string

const (
	OpEq  Op = "="
	OpGte Op = ">="
	OpLte Op = "<="
)

// Condition is one predicate. Field is always a column name chosen by this
// package, never raw caller input.
type Condition struct {
	Field string
	Op    Op
	Value any
}

// Filter is an AND of conditions.
type Filter struct {
	Conditions []Condition
}

func (f *Filter) Add(field string, op Op, value any) {
	f.Conditions = append(f.Conditions, Condition{Field: field, Op: op, Value: value})
}

// Get returns the first condition on field with op.
func (f Filter) Get(field string, op Op) (Condition, bool) {
	for _, c := range f.Conditions {
		if c.Field == field && c.Op == op {
			return c, true
		}
	}
	return Condition{}, false
}

// Apply adds every condition of f to db.
func Apply(db *gorm.DB, f Filter) *gorm.DB {
	for _, c := range f.Conditions {
		db = db.Where(fmt.Sprintf("%s %s ?", c.Field, c.Op), c.Value)
	}
	return db
}

// ---------- parsers ----------

func parseID(v url.Values, key string) (uint, bool, error) {
	raw := strings.TrimSpace(v.Get(key))
	if raw == "" {
		return 0, false, nil
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, false, util.ValidationError("Invalid %s", key)
	}
	return uint(id), true, nil
}

func parseBool(v url.Values, key string) (bool, bool, error) {
	raw := strings.TrimSpace(v.Get(key))
	if raw == "" {
		return false, false, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false, util.ValidationError("Invalid %s", key)
	}
	return b, true, nil
}

// dateRange adds inclusive bounds on column. A bare endDate covers the
// whole of that day.
func dateRange(f *Filter, v url.Values, startCol, endCol string) error {
	if raw := strings.TrimSpace(v.Get("startDate")); raw != "" {
		t, err := util.ParseDateBound(raw, false)
		if err != nil {
			return util.ValidationError("Invalid startDate")
		}
		f.Add(startCol, OpGte, t)
	}
	if raw := strings.TrimSpace(v.Get("endDate")); raw != "" {
		t, err := util.ParseDateBound(raw, true)
		if err != nil {
			return util.ValidationError("Invalid endDate")
		}
		f.Add(endCol, OpLte, t)
	}
	return nil
}

func amountBound(f *Filter, v url.Values, key string, op Op) error {
	raw := strings.TrimSpace(v.Get(key))
	if raw == "" {
		return nil
	}
	a, err := money.Parse(raw)
	if err != nil {
		return util.ValidationError("Invalid %s", key)
	}
	f.Add("amount", op, a)
	return nil
}

// BuildTransactionFilter understands startDate, endDate, categoryId, type,
// status, createdBy, assignedTo, minAmount and maxAmount. Other keys are
// ignored. minAmount > maxAmount is allowed and simply matches nothing.
func BuildTransactionFilter(v url.Values) (Filter, error) {
	var f Filter
	if err := dateRange(&f, v, "date", "date"); err != nil {
		return f, err
	}

	ids := []struct{ key, col string }{
		{"categoryId", "category_id"},
		{"createdBy", "created_by_id"},
		{"assignedTo", "assigned_to_id"},
	}
	for _, id := range ids {
		val, ok, err := parseID(v, id.key)
		if err != nil {
			return f, err
		}
		if ok {
			f.Add(id.col, OpEq, val)
		}
	}

	if raw := v.Get("type"); raw != "" {
		t := models.TransactionType(raw)
		if !t.Valid() {
			return f, util.ValidationError("Invalid type %q", raw)
		}
		f.Add("type", OpEq, t)
	}
	if raw := v.Get("status"); raw != "" {
		s := models.TransactionStatus(raw)
		if !s.Valid() {
			return f, util.ValidationError("Invalid status %q", raw)
		}
		f.Add("status", OpEq, s)
	}

	if err := amountBound(&f, v, "minAmount", OpGte); err != nil {
		return f, err
	}
	if err := amountBound(&f, v, "maxAmount", OpLte); err != nil {
		return f, err
	}
	return f, nil
}

// BuildBudgetFilter understands isActive, period and a startDate/endDate
// window. The window matches budgets that overlap it, not ones contained
// in it.
func BuildBudgetFilter(v url.Values) (Filter, error) {
	var f Filter
	active, ok, err := parseBool(v, "isActive")
	if err != nil {
		return f, err
	}
	if ok {
		f.Add("is_active", OpEq, active)
	}

	// overlap: budget.end >= window.start AND budget.start <= window.end
	if err := dateRange(&f, v, "end_date", "start_date"); err != nil {
		return f, err
	}

	if raw := v.Get("period"); raw != "" {
		p := models.BudgetPeriod(raw)
		if !p.Valid() {
			return f, util.ValidationError("Invalid period %q", raw)
		}
		f.Add("period", OpEq, p)
	}
	return f, nil
}

// BuildReceiptFilter understands status and transactionId.
func BuildReceiptFilter(v url.Values) (Filter, error) {
	var f Filter
	if raw := v.Get("status"); raw != "" {
		s := models.ReceiptStatus(raw)
		if !s.Valid() {
			return f, util.ValidationError("Invalid status %q", raw)
		}
		f.Add("processing_status", OpEq, s)
	}
	id, ok, err := parseID(v, "transactionId")
	if err != nil {
		return f, err
	}
	if ok {
		f.Add("transaction_id", OpEq, id)
	}
	return f, nil
}

// BuildRecurringFilter understands isActive, frequency and type.
func BuildRecurringFilter(v url.Values) (Filter, error) {
	var f Filter
	active, ok, err := parseBool(v, "isActive")
	if err != nil {
		return f, err
	}
	if ok {
		f.Add("is_active", OpEq, active)
	}
	if raw := v.Get("frequency"); raw != "" {
		fr := models.Frequency(raw)
		if !fr.Valid() {
			return f, util.ValidationError("Invalid frequency %q", raw)
		}
		f.Add("frequency", OpEq, fr)
	}
	if raw := v.Get("type"); raw != "" {
		t := models.TransactionType(raw)
		if !t.Valid() {
			return f, util.ValidationError("Invalid type %q", raw)
		}
		f.Add("type", OpEq, t)
	}
	return f, nil
}

// BuildAuditFilter understands userId, method, status and a
// startDate/endDate window on the record time.
func BuildAuditFilter(v url.Values) (Filter, error) {
	var f Filter
	if err := dateRange(&f, v, "created_at", "created_at"); err != nil {
		return f, err
	}
	id, ok, err := parseID(v, "userId")
	if err != nil {
		return f, err
	}
	if ok {
		f.Add("user_id", OpEq, id)
	}
	if raw := strings.TrimSpace(v.Get("method")); raw != "" {
		f.Add("method", OpEq, strings.ToUpper(raw))
	}
	if raw := strings.TrimSpace(v.Get("status")); raw != "" {
		code, err := strconv.Atoi(raw)
		if err != nil {
			return f, util.ValidationError("Invalid status")
		}
		f.Add("status", OpEq, code)
	}
	return f, nil
}
