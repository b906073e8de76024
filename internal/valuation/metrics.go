package valuation

import (
	"github.com/shopspring/decimal"

	"github.com/ndewijer/portfolio-valuation-backend/internal/model"
	"github.com/ndewijer/portfolio-valuation-backend/internal/money"
)

// NativeMetrics values a position in its own currency.
// Without a price, current value is zero and HasPrice is false.
func NativeMetrics(inv model.Investment) model.InvestmentMetrics {
	totalCost := inv.AverageCost.Mul(inv.Quantity)

	currentValue := decimal.Zero
	if inv.CurrentPrice.Valid {
		currentValue = inv.CurrentPrice.Decimal.Mul(inv.Quantity)
	}

	gainLoss := currentValue.Sub(totalCost)

	return model.InvestmentMetrics{
		Currency:     inv.Currency,
		CurrentValue: currentValue,
		TotalCost:    totalCost,
		GainLoss:     gainLoss,
		GainLossPct:  money.Percent(gainLoss, totalCost),
		HasPrice:     inv.CurrentPrice.Valid,
		Rate:         decimal.NewFromInt(1),
	}
}

// NeedsQuoteConversion reports whether inv carries a price quoted in a
// currency other than the one the position is held in.
func NeedsQuoteConversion(inv model.Investment) bool {
	return inv.CurrentPrice.Valid && inv.PriceCurrency != "" && inv.PriceCurrency != inv.Currency
}

// QuoteInPositionCurrency returns inv with its price multiplied by rate (units
// of the position currency per unit of the quote currency).
func QuoteInPositionCurrency(inv model.Investment, rate decimal.Decimal) model.Investment {
	if !inv.CurrentPrice.Valid {
		return inv
	}
	inv.CurrentPrice = decimal.NewNullDecimal(inv.CurrentPrice.Decimal.Mul(rate))
	inv.PriceCurrency = inv.Currency
	return inv
}

// Convert re-expresses metrics in target currency using rate (units of target
// per unit of the metrics' currency). Monetary fields scale; the percentage
// does not, because a ratio of two amounts in the same currency is currency-invariant.
func Convert(m model.InvestmentMetrics, target string, rate decimal.Decimal, stale bool) model.InvestmentMetrics {
	return model.InvestmentMetrics{
		Currency:     target,
		CurrentValue: m.CurrentValue.Mul(rate),
		TotalCost:    m.TotalCost.Mul(rate),
		GainLoss:     m.GainLoss.Mul(rate),
		GainLossPct:  m.GainLossPct,
		HasPrice:     m.HasPrice,
		Rate:         rate,
		RateStale:    stale,
	}
}
