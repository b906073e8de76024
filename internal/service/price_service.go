package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/ndewijer/portfolio-valuation-backend/internal/cache"
	"github.com/ndewijer/portfolio-valuation-backend/internal/marketdata"
	"github.com/ndewijer/portfolio-valuation-backend/internal/model"
	"github.com/ndewijer/portfolio-valuation-backend/internal/money"
	"github.com/ndewijer/portfolio-valuation-backend/internal/repository"
	"github.com/ndewijer/portfolio-valuation-backend/internal/telemetry"
)

// refreshConcurrency bounds parallel provider calls during a refresh.
const refreshConcurrency = 4

// PriceService keeps quotes current. Reads never fetch; callers ask for a
// refresh explicitly or through the scheduler.
type PriceService struct {
	store          *cache.Store
	provider       marketdata.Provider
	rates          *RateService
	investmentRepo *repository.InvestmentRepository
	flight         singleflight.Group
	logger         zerolog.Logger
}

// NewPriceService creates a new PriceService.
func NewPriceService(
	store *cache.Store,
	provider marketdata.Provider,
	rates *RateService,
	investmentRepo *repository.InvestmentRepository,
	logger zerolog.Logger,
) *PriceService {
	return &PriceService{
		store:          store,
		provider:       provider,
		rates:          rates,
		investmentRepo: investmentRepo,
		logger:         logger.With().Str("service", "price").Logger(),
	}
}

// RefreshPrice fetches a quote for ticker and stores it on every position
// holding ticker in currency. The quote keeps the currency the provider
// reported; valuation converts it. Concurrent refreshes of the same ticker and currency share one fetch.
func (s *PriceService) RefreshPrice(ctx context.Context, ticker string, class model.AssetClass, currency string) (model.PriceQuote, error) {
	v, err, _ := s.flight.Do(ticker+"/"+currency, func() (any, error) {
		return s.fetchAndStore(ctx, ticker, class, currency)
	})
	if err != nil {
		return model.PriceQuote{}, err
	}
	return v.(model.PriceQuote), nil
}

func (s *PriceService) fetchAndStore(ctx context.Context, ticker string, class model.AssetClass, currency string) (model.PriceQuote, error) {
	const op = "price.RefreshPrice"

	quote, err := s.provider.FetchPrice(ctx, ticker, class, currency)
	if err != nil {
		return model.PriceQuote{}, externalError(op, err)
	}

	quote.Ticker = ticker
	quote.Currency = money.NormalizeCurrency(quote.Currency)
	if quote.Currency == "" {
		quote.Currency = money.NormalizeCurrency(currency)
	}

	n, err := s.store.UpdateCachedPrice(ctx, ticker, currency, quote.Price, quote.Currency)
	if err != nil {
		return model.PriceQuote{}, err
	}
	quote.FetchedAt = s.store.Now()

	s.logger.Debug().
		Str("ticker", ticker).
		Stringer("price", quote.Price).
		Str("currency", quote.Currency).
		Str("position_currency", currency).
		Int64("positions", n).
		Msg("price refreshed")

	return quote, nil
}

// RefreshInvestment refreshes the quote for one position and returns the
// position with the new price applied.
func (s *PriceService) RefreshInvestment(ctx context.Context, inv model.Investment) (model.Investment, error) {
	quote, err := s.RefreshPrice(ctx, inv.Ticker, inv.AssetClass, inv.Currency)
	if err != nil {
		return inv, err
	}
	return applyQuote(inv, quote), nil
}

// RefreshStaleInvestments refreshes every position whose price is missing or
// older than its asset class allows. Failures are logged and the position
// keeps its last known price, or none.
func (s *PriceService) RefreshStaleInvestments(ctx context.Context, investments []model.Investment) []model.Investment {
	policy := s.store.Policy()
	now := s.store.Now()

	out := make([]model.Investment, len(investments))
	copy(out, investments)

	var g errgroup.Group
	g.SetLimit(refreshConcurrency)
	for i := range out {
		if cache.IsFresh(out[i].PriceUpdatedAt, policy.PriceTTL(out[i].AssetClass), now) {
			telemetry.CacheHit("price")
			continue
		}
		telemetry.CacheMiss("price")
		g.Go(func() error {
			refreshed, err := s.RefreshInvestment(ctx, out[i])
			if err != nil {
				s.logger.Warn().
					Err(err).
					Str("investment_id", out[i].ID).
					Str("ticker", out[i].Ticker).
					Msg("price refresh failed, using last known price")
				return nil
			}
			out[i] = refreshed
			return nil
		})
	}
	_ = g.Wait()

	return out
}

// RefreshReport summarizes one scheduled refresh run.
type RefreshReport struct {
	Prices   int // quotes fetched
	Rates    int // pairs confirmed fresh, fetching where needed
	Failures int
	Duration time.Duration
}

// RefreshStale refreshes every held ticker whose cached quote is stale and
// every needed currency pair whose cached rate is stale.
func (s *PriceService) RefreshStale(ctx context.Context) (RefreshReport, error) {
	start := time.Now()
	var report RefreshReport

	tickers, err := s.investmentRepo.ListTickers(ctx)
	if err != nil {
		return report, err
	}
	pairs, err := s.investmentRepo.ListCurrencyPairs(ctx)
	if err != nil {
		return report, err
	}

	for _, ref := range tickers {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		cached, found, err := s.store.GetCachedPrice(ctx, ref.Ticker, ref.AssetClass, ref.Currency)
		if err != nil {
			return report, err
		}
		if found && cached.Fresh {
			continue
		}
		if _, err := s.RefreshPrice(ctx, ref.Ticker, ref.AssetClass, ref.Currency); err != nil {
			report.Failures++
			s.logger.Warn().Err(err).Str("ticker", ref.Ticker).Msg("scheduled price refresh failed")
			continue
		}
		report.Prices++
	}

	for _, pair := range pairs {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		rate, err := s.rates.GetRate(ctx, pair.From, pair.To)
		if err != nil || rate.Stale {
			report.Failures++
			s.logger.Warn().Err(err).Str("from", pair.From).Str("to", pair.To).Msg("scheduled rate refresh failed")
			continue
		}
		report.Rates++
	}

	report.Duration = time.Since(start)
	telemetry.RefreshRun(report.Failures)
	return report, nil
}

func applyQuote(inv model.Investment, quote model.PriceQuote) model.Investment {
	inv.CurrentPrice = decimal.NewNullDecimal(quote.Price)
	inv.PriceCurrency = quote.Currency
	at := quote.FetchedAt
	inv.PriceUpdatedAt = &at
	return inv
}
