package money

import (
	"regexp"
	"strings"

	gomoney "github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

var currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)

// NormalizeCurrency trims and upper-cases a currency code.
func NormalizeCurrency(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidCurrency reports whether code is exactly three upper-case letters and
// a known ISO-4217 currency.
func ValidCurrency(code string) bool {
	if !currencyPattern.MatchString(code) {
		return false
	}
	return gomoney.GetCurrency(code) != nil
}

// Fraction returns the number of minor-unit digits of the currency
// (2 for USD, 0 for JPY). Unknown currencies default to 2.
func Fraction(code string) int32 {
	if c := gomoney.GetCurrency(code); c != nil {
		return int32(c.Fraction)
	}
	return 2
}

// Round rounds amount to the currency's minor unit for display.
// Stored and computed values are never rounded this way.
func Round(amount decimal.Decimal, code string) decimal.Decimal {
	return amount.Round(Fraction(code))
}

// Format renders amount with the currency's symbol, separators and fraction,
// e.g. "$1,234.56" or "¥1,235".
func Format(amount decimal.Decimal, code string) string {
	c := gomoney.GetCurrency(code)
	if c == nil {
		return amount.StringFixed(2) + " " + code
	}
	minor := amount.Shift(int32(c.Fraction)).Round(0).IntPart()
	return c.Formatter().Format(minor)
}
