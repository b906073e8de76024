// Package money provides the exact decimal arithmetic used for every quantity,
// price, rate and monetary amount in the service, plus ISO-4217 currency helpers.
//
// Values are shopspring decimals. Binary floating point never enters a
// calculation; it only appears when a market-data payload is decoded, and is
// converted immediately with FromProviderFloat.
package money

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// DivisionPrecision is the number of fractional digits kept by Div.
// Quantities and prices carry at most MaxInputScale digits, so this leaves
// twelve guard digits for repeated weighted-average merges.
const DivisionPrecision = 20

// MaxInputScale is the maximum number of fractional digits accepted for
// user-supplied quantities and prices.
const MaxInputScale = 8

var (
	hundred = decimal.NewFromInt(100)

	ErrNotPositive   = errors.New("must be greater than zero")
	ErrTooManyDigits = fmt.Errorf("must have at most %d decimal places", MaxInputScale)
	ErrNotANumber    = errors.New("must be a finite decimal number")
)

// Div divides a by b, rounding to DivisionPrecision fractional digits.
// Division by zero panics: every divisor in this service is a quantity or
// total that is invariantly positive where Div is used.
func Div(a, b decimal.Decimal) decimal.Decimal {
	if b.IsZero() {
		panic("money: division by zero")
	}
	return a.DivRound(b, DivisionPrecision)
}

// SafeDiv divides a by b, returning zero when b is zero.
func SafeDiv(a, b decimal.Decimal) decimal.Decimal {
	if b.IsZero() {
		return decimal.Zero
	}
	return Div(a, b)
}

// Percent returns part / whole * 100, or zero when whole is zero.
func Percent(part, whole decimal.Decimal) decimal.Decimal {
	if whole.IsZero() {
		return decimal.Zero
	}
	return Div(part.Mul(hundred), whole)
}

// Sum adds values exactly.
func Sum(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

// ApproxEqual reports whether |a - b| < tolerance.
func ApproxEqual(a, b, tolerance decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThan(tolerance)
}

// ParseAmount parses a user-supplied quantity or price. The value must be a
// finite decimal, strictly positive and have at most MaxInputScale fractional digits.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrNotANumber
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrNotANumber
	}
	if err := CheckAmount(d); err != nil {
		return decimal.Zero, err
	}
	return d, nil
}

// CheckAmount validates an already-decoded quantity or price.
func CheckAmount(d decimal.Decimal) error {
	if !d.IsPositive() {
		return ErrNotPositive
	}
	if Scale(d) > MaxInputScale {
		return ErrTooManyDigits
	}
	return nil
}

// Scale returns the number of significant fractional digits of d
// (trailing zeros are not counted).
func Scale(d decimal.Decimal) int32 {
	exp := d.Exponent()
	if exp >= 0 {
		return 0
	}
	// Normalize away trailing zeros so "1.50000000000" counts as one digit.
	s := d.String()
	i := strings.IndexByte(s, '.')
	if i < 0 {
		return 0
	}
	return int32(len(strings.TrimRight(s[i+1:], "0")))
}

// FromProviderFloat converts a float decoded from a market-data payload.
// NaN and infinities are rejected; the value is rounded to DivisionPrecision
// digits to drop binary noise beyond what the provider actually quoted.
func FromProviderFloat(f float64) (decimal.Decimal, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero, ErrNotANumber
	}
	return decimal.NewFromFloat(f).Round(DivisionPrecision), nil
}
