package service

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/ndewijer/portfolio-valuation-backend/internal/model"
	"github.com/ndewijer/portfolio-valuation-backend/internal/money"
	"github.com/ndewijer/portfolio-valuation-backend/internal/valuation"
)

// ValuationService values positions in their own currency and in a target
// currency, obtaining conversion rates through the RateService.
type ValuationService struct {
	rates  *RateService
	logger zerolog.Logger
}

// NewValuationService creates a new ValuationService.
func NewValuationService(rates *RateService, logger zerolog.Logger) *ValuationService {
	return &ValuationService{
		rates:  rates,
		logger: logger.With().Str("service", "valuation").Logger(),
	}
}

// ConvertInvestment returns the position's native metrics and the same metrics
// expressed in target. Same-currency positions are returned unchanged twice.
// A price quoted in another currency is first brought into the position's
// currency. A rate that cannot be obtained fails the conversion; there is no
// fallback to 1. A stale rate at either step marks both results stale.
func (s *ValuationService) ConvertInvestment(ctx context.Context, inv model.Investment, target string) (native, converted model.InvestmentMetrics, err error) {
	quoteStale := false
	if valuation.NeedsQuoteConversion(inv) {
		rate, err := s.rates.GetRate(ctx, inv.PriceCurrency, inv.Currency)
		if err != nil {
			return model.InvestmentMetrics{}, model.InvestmentMetrics{}, err
		}
		if rate.Stale {
			s.logger.Warn().
				Str("investment_id", inv.ID).
				Str("ticker", inv.Ticker).
				Str("from", inv.PriceCurrency).
				Str("to", inv.Currency).
				Msg("pricing position with stale exchange rate")
		}
		inv = valuation.QuoteInPositionCurrency(inv, rate.Rate)
		quoteStale = rate.Stale
	}

	native = valuation.NativeMetrics(inv)
	native.RateStale = quoteStale

	target = money.NormalizeCurrency(target)
	if inv.Currency == target {
		return native, native, nil
	}

	rate, err := s.rates.GetRate(ctx, inv.Currency, target)
	if err != nil {
		return model.InvestmentMetrics{}, model.InvestmentMetrics{}, err
	}
	if rate.Stale {
		s.logger.Warn().
			Str("investment_id", inv.ID).
			Str("ticker", inv.Ticker).
			Str("from", inv.Currency).
			Str("to", target).
			Msg("valuing position with stale exchange rate")
	}

	return native, valuation.Convert(native, target, rate.Rate, rate.Stale || quoteStale), nil
}

// ValuePosition builds one summary line for inv in baseCurrency.
func (s *ValuationService) ValuePosition(ctx context.Context, inv model.Investment, baseCurrency string) (model.PositionValuation, error) {
	native, base, err := s.ConvertInvestment(ctx, inv, baseCurrency)
	if err != nil {
		return model.PositionValuation{}, err
	}
	return model.PositionValuation{
		InvestmentID: inv.ID,
		Ticker:       inv.Ticker,
		Name:         inv.Name,
		AssetClass:   inv.AssetClass,
		Quantity:     inv.Quantity,
		AverageCost:  inv.AverageCost,
		Native:       native,
		Base:         base,
	}, nil
}
