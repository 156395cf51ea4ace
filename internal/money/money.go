// Package money holds currency amounts as integer minor units (cents) and
// converts them to and from decimal representations at the edges.
package money

import (
	"bytes"
	"database/sql/driver"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
)

// Amount is a currency value in cents. 12.34 is stored as 1234.
type Amount int64

const scale = 2

// FromCents wraps a raw cent count.
func FromCents(c int64) Amount { return Amount(c) }

// Cents returns the raw minor-unit value.
func (a Amount) Cents() int64 { return int64(a) }

// Decimal returns the value in major units.
func (a Amount) Decimal() decimal.Decimal {
	return decimal.New(int64(a), -scale)
}

func (a Amount) String() string {
	return a.Decimal().StringFixed(scale)
}

// FromDecimal converts d to cents; more than two fractional digits is an error.
func FromDecimal(d decimal.Decimal) (Amount, error) {
	shifted := d.Shift(scale)
	if !shifted.Equal(shifted.Truncate(0)) {
		return 0, fmt.Errorf("amount %s has more than %d decimal places", d.String(), scale)
	}
	if shifted.Abs().GreaterThan(decimal.New(1, 17)) {
		return 0, fmt.Errorf("amount %s out of range", d.String())
	}
	return Amount(shifted.IntPart()), nil
}

// Parse reads "12", "12.5" or "12.34".
func Parse(s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", s)
	}
	return FromDecimal(d)
}

// Sum adds amounts exactly.
func Sum(amounts ...Amount) Amount {
	var total Amount
	for _, a := range amounts {
		total += a
	}
	return total
}

// MarshalJSON writes a bare JSON number in major units, e.g. 2000 or 12.5.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.Decimal().String()), nil
}

// UnmarshalJSON accepts a JSON number or a numeric string.
func (a *Amount) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	s := string(b)
	if len(b) > 0 && b[0] == '"' {
		unq, err := strconv.Unquote(s)
		if err != nil {
			return fmt.Errorf("invalid amount %s", s)
		}
		s = unq
	}
	v, err := Parse(s)
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// Value stores the cent count as an integer column.
func (a Amount) Value() (driver.Value, error) {
	return int64(a), nil
}

// Scan reads an integer column; SUM() results may come back as other types.
func (a *Amount) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*a = 0
	case int64:
		*a = Amount(v)
	case float64:
		*a = Amount(decimal.NewFromFloat(v).Round(0).IntPart())
	case []byte:
		return a.scanString(string(v))
	case string:
		return a.scanString(v)
	default:
		return fmt.Errorf("money: cannot scan %T", src)
	}
	return nil
}

func (a *Amount) scanString(s string) error {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("money: scan %q: %w", s, err)
	}
	*a = Amount(n)
	return nil
}
