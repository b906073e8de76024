// Package marketdata fetches current prices and exchange rates from an
// external quote provider. Results are never cached here; callers store them
// through the cache package.
package marketdata

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/ndewijer/portfolio-valuation-backend/internal/model"
)

// Provider is the market-data boundary used by the services.
//
// FetchPrice returns the latest quote for ticker. currency is the currency the
// position is held in; crypto tickers are quoted against it.
// FetchExchangeRate returns how many units of to one unit of from buys.
//
// Both return errors of kind apperrors.KindExternalData; timeouts, provider
// outages and rate limiting are marked retryable.
type Provider interface {
	FetchPrice(ctx context.Context, ticker string, class model.AssetClass, currency string) (model.PriceQuote, error)
	FetchExchangeRate(ctx context.Context, from, to string) (decimal.Decimal, error)
}
