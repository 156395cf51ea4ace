package util

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

var (
	emailRe = regexp.MustCompile(`^[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}$`)
	colorRe = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)
)

const (
	dateLayout         = "2006-01-02"
	MinPasswordLength  = 6
	MaxNameLength      = 50
	MaxDescriptionSize = 200
)

// NormalizeEmail trims and lowercases; emails are unique case-insensitively.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail checks the address shape.
func ValidateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email is empty")
	}
	if !emailRe.MatchString(email) {
		return fmt.Errorf("invalid email %q", email)
	}
	return nil
}

// ValidatePassword enforces the minimum length.
func ValidatePassword(pwd string) error {
	if len(pwd) < MinPasswordLength {
		return fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	}
	return nil
}

// ValidateName checks a required, length-limited display string.
func ValidateName(field, name string, max int) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%s is required", field)
	}
	if len([]rune(name)) > max {
		return fmt.Errorf("%s cannot be more than %d characters", field, max)
	}
	return nil
}

// ValidateColor accepts #RRGGBB.
func ValidateColor(color string) error {
	if !colorRe.MatchString(color) {
		return fmt.Errorf("invalid color %q, want #RRGGBB", color)
	}
	return nil
}

// ParseDate accepts RFC3339, a timestamp without zone, or a bare date, and
// normalizes to UTC.
func ParseDate(s string) (time.Time, error) {
	layouts := []string{
		time.RFC3339,
		"2006-01-02T15:04:05",
		dateLayout,
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", s)
}

// ParseDateBound parses an inclusive range bound. A bare date used as an
// upper bound covers the whole day.
func ParseDateBound(s string, upper bool) (time.Time, error) {
	t, err := ParseDate(s)
	if err != nil {
		return t, err
	}
	if upper && isBareDate(s) {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, nil
}

func isBareDate(s string) bool {
	_, err := time.Parse(dateLayout, s)
	return err == nil
}
