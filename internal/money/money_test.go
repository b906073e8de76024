package money_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ndewijer/portfolio-valuation-backend/internal/money"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestDiv(t *testing.T) {
	// Division keeps more digits than any input carries.
	t.Run("keeps guard digits", func(t *testing.T) {
		got := money.Div(d("2300"), d("15"))
		assert.Equal(t, "153.33333333333333333333", got.String())
	})

	t.Run("panics on zero divisor", func(t *testing.T) {
		assert.Panics(t, func() { money.Div(d("1"), decimal.Zero) })
	})

	t.Run("safe div returns zero on zero divisor", func(t *testing.T) {
		assert.True(t, money.SafeDiv(d("1"), decimal.Zero).IsZero())
	})
}

func TestPercent(t *testing.T) {
	assert.True(t, money.Percent(d("25"), d("200")).Equal(d("12.5")))
	assert.True(t, money.Percent(d("5"), decimal.Zero).IsZero())
	assert.True(t, money.Percent(d("-50"), d("1000")).Equal(d("-5")))
}

func TestNoFloatDrift(t *testing.T) {
	// 0.1 + 0.2 is the classic float failure.
	assert.True(t, money.Sum(d("0.1"), d("0.2")).Equal(d("0.3")))
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{"integer", "10", nil},
		{"eight decimals", "0.00000001", nil},
		{"trailing zeros do not count", "1.5000000000", nil},
		{"nine decimals", "0.000000001", money.ErrTooManyDigits},
		{"zero", "0", money.ErrNotPositive},
		{"negative", "-3", money.ErrNotPositive},
		{"garbage", "abc", money.ErrNotANumber},
		{"empty", "  ", money.ErrNotANumber},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := money.ParseAmount(tt.input)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestFromProviderFloat(t *testing.T) {
	got, err := money.FromProviderFloat(187.42)
	require.NoError(t, err)
	assert.True(t, got.Equal(d("187.42")))
}

func TestCurrency(t *testing.T) {
	t.Run("valid codes", func(t *testing.T) {
		assert.True(t, money.ValidCurrency("USD"))
		assert.True(t, money.ValidCurrency("EUR"))
		assert.True(t, money.ValidCurrency("JPY"))
	})

	t.Run("invalid codes", func(t *testing.T) {
		assert.False(t, money.ValidCurrency("usd"))
		assert.False(t, money.ValidCurrency("US"))
		assert.False(t, money.ValidCurrency("XYZ1"))
		assert.False(t, money.ValidCurrency("QQQ"))
	})

	t.Run("normalize", func(t *testing.T) {
		assert.Equal(t, "GBP", money.NormalizeCurrency(" gbp "))
	})

	t.Run("round to minor units", func(t *testing.T) {
		assert.True(t, money.Round(d("1234.5678"), "USD").Equal(d("1234.57")))
		assert.True(t, money.Round(d("1234.5678"), "JPY").Equal(d("1235")))
	})

	t.Run("format", func(t *testing.T) {
		assert.Equal(t, "$1,234.57", money.Format(d("1234.567"), "USD"))
	})
}
