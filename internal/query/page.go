package query

import (
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"

	"gorm.io/gorm"
)

const (
	DefaultPage  = 1
	DefaultLimit = 10
)

// Sort is an ORDER BY on one column, with id as tie breaker so pages are
// stable.
type Sort struct {
	Column string
	Desc   bool
}

func (s Sort) Clause() string {
	dir := "ASC"
	if s.Desc {
		dir = "DESC"
	}
	if s.Column == "id" {
		return "id " + dir
	}
	return fmt.Sprintf("%s %s, id %s", s.Column, dir, dir)
}

// Sortable fields per resource, keyed by the JSON name callers use.
var (
	TransactionSorts = map[string]string{
		"date":        "date",
		"amount":      "amount",
		"description": "description",
		"type":        "type",
		"status":      "status",
		"createdAt":   "created_at",
		"id":          "id",
	}
	BudgetSorts = map[string]string{
		"startDate":   "start_date",
		"endDate":     "end_date",
		"name":        "name",
		"totalAmount": "total_amount",
		"createdAt":   "created_at",
		"id":          "id",
	}
	RecurringSorts = map[string]string{
		"nextOccurrence": "next_occurrence",
		"startDate":      "start_date",
		"amount":         "amount",
		"title":          "title",
		"id":             "id",
	}
	CreatedSorts = map[string]string{
		"createdAt": "created_at",
		"id":        "id",
	}

	TransactionDefaultSort = Sort{Column: "date", Desc: true}
	BudgetDefaultSort      = Sort{Column: "start_date", Desc: true}
	RecurringDefaultSort   = Sort{Column: "next_occurrence"}
	CreatedDefaultSort     = Sort{Column: "created_at", Desc: true}
)

// ParseSort reads a "field:direction" token. An unknown field yields def;
// direction is desc only when spelled so, asc otherwise.
func ParseSort(raw string, allowed map[string]string, def Sort) Sort {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def
	}
	field, dir, _ := strings.Cut(raw, ":")
	col, ok := allowed[strings.TrimSpace(field)]
	if !ok {
		return def
	}
	return Sort{Column: col, Desc: strings.EqualFold(strings.TrimSpace(dir), "desc")}
}

// SortFrom reads sortBy (or sort) from v.
func SortFrom(v url.Values, allowed map[string]string, def Sort) Sort {
	raw := v.Get("sortBy")
	if raw == "" {
		raw = v.Get("sort")
	}
	return ParseSort(raw, allowed, def)
}

type Page struct {
	Page  int
	Limit int
}

func (p Page) Offset() int { return (p.Page - 1) * p.Limit }

// ParsePage reads page and limit. Missing, non-numeric or non-positive
// values fall back to defaults; limit is capped at maxLimit. A page whose
// offset would overflow also falls back, so Offset is never negative.
func ParsePage(v url.Values, defLimit, maxLimit int) Page {
	if defLimit <= 0 {
		defLimit = DefaultLimit
	}
	p := Page{Page: DefaultPage, Limit: defLimit}
	if n, err := strconv.Atoi(v.Get("limit")); err == nil && n > 0 {
		p.Limit = n
	}
	if maxLimit > 0 && p.Limit > maxLimit {
		p.Limit = maxLimit
	}
	if n, err := strconv.Atoi(v.Get("page")); err == nil && n > 0 && n-1 <= math.MaxInt/p.Limit {
		p.Page = n
	}
	return p
}

type PageRef struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

// Pagination links are omitted, not null, when there is no such page.
type Pagination struct {
	Next *PageRef `json:"next,omitempty"`
	Prev *PageRef `json:"prev,omitempty"`
}

func NewPagination(p Page, total int64) Pagination {
	var pg Pagination
	if total-int64(p.Offset()) > int64(p.Limit) {
		pg.Next = &PageRef{Page: p.Page + 1, Limit: p.Limit}
	}
	if p.Offset() > 0 {
		pg.Prev = &PageRef{Page: p.Page - 1, Limit: p.Limit}
	}
	return pg
}

// Result is what a list endpoint returns.
type Result struct {
	Total      int64
	Pagination Pagination
}

// Paginate counts all rows of base matching f, then loads one sorted page
// into dest. base should already carry the model and any scope. preloads
// apply to the page query only.
func Paginate(base *gorm.DB, f Filter, s Sort, p Page, dest any, preloads ...string) (Result, error) {
	q := Apply(base, f)

	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return Result{}, fmt.Errorf("count: %w", err)
	}
	find := q.Session(&gorm.Session{})
	for _, name := range preloads {
		find = find.Preload(name)
	}
	if err := find.
		Order(s.Clause()).
		Limit(p.Limit).
		Offset(p.Offset()).
		Find(dest).Error; err != nil {
		return Result{}, fmt.Errorf("list: %w", err)
	}
	return Result{Total: total, Pagination: NewPagination(p, total)}, nil
}
