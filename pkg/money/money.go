// Package money represents currency amounts as integer minor units (1/100 of the major unit).
package money

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Money is an amount in minor units
type Money int64

const minorDigits = 2

// FromMajor converts a whole major-unit amount (e.g. 100 taka) to Money
func FromMajor(major int64) Money {
	return Money(major * 100)
}

// Parse reads a decimal string such as "1250.50". More than two fractional
// digits are rejected rather than rounded.
func Parse(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty amount")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return FromDecimal(d)
}

// FromDecimal converts an exact decimal to Money
func FromDecimal(d decimal.Decimal) (Money, error) {
	minor := d.Shift(minorDigits)
	if !minor.Equal(minor.Truncate(0)) {
		return 0, fmt.Errorf("amount %s has more than %d decimal places", d.String(), minorDigits)
	}
	return Money(minor.IntPart()), nil
}

// Decimal returns the amount in major units
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(int64(m), -minorDigits)
}

// String renders the amount with two decimal places
func (m Money) String() string {
	return m.Decimal().StringFixed(minorDigits)
}

// Mul multiplies by an integer quantity
func (m Money) Mul(qty int64) Money {
	return m * Money(qty)
}

// Percent returns pct percent of m, rounded half away from zero to a minor unit
func (m Money) Percent(pct decimal.Decimal) Money {
	v := decimal.NewFromInt(int64(m)).Mul(pct).Div(decimal.NewFromInt(100)).Round(0)
	return Money(v.IntPart())
}

func (m Money) IsNegative() bool { return m < 0 }

// MarshalJSON encodes the amount as a JSON number in major units
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON accepts a JSON number or string in major units
func (m *Money) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	s := string(data)
	if unquoted, err := strconv.Unquote(s); err == nil {
		s = unquoted
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
