package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/ndewijer/portfolio-valuation-backend/internal/apperrors"
	"github.com/ndewijer/portfolio-valuation-backend/internal/cache"
	"github.com/ndewijer/portfolio-valuation-backend/internal/lock"
	"github.com/ndewijer/portfolio-valuation-backend/internal/marketdata"
	"github.com/ndewijer/portfolio-valuation-backend/internal/model"
	"github.com/ndewijer/portfolio-valuation-backend/internal/money"
	"github.com/ndewijer/portfolio-valuation-backend/internal/telemetry"
)

// RateService resolves exchange rates: from the cache while fresh, otherwise
// from the provider under the currency-pair lock.
//
// Concurrent refreshes of one pair collapse twice: singleflight merges callers
// inside this process, and the shared pair lease serializes processes. A waiter
// that gets the lease after someone else refreshed re-reads the cache instead
// of fetching again.
type RateService struct {
	store    *cache.Store
	provider marketdata.Provider
	locker   lock.Locker
	flight   singleflight.Group
	logger   zerolog.Logger
}

// NewRateService creates a new RateService.
func NewRateService(store *cache.Store, provider marketdata.Provider, locker lock.Locker, logger zerolog.Logger) *RateService {
	return &RateService{
		store:    store,
		provider: provider,
		locker:   locker,
		logger:   logger.With().Str("service", "rate").Logger(),
	}
}

// GetRate returns the rate for one unit of from expressed in to.
//
// Identical currencies return exactly 1 without a lookup. When the provider
// fails and a cached rate exists, the cached rate is returned with Stale set.
// When there is no cached rate at all, the provider error is returned: a
// missing rate is never replaced by 1.
func (s *RateService) GetRate(ctx context.Context, from, to string) (model.ExchangeRate, error) {
	const op = "rate.GetRate"

	from, to = money.NormalizeCurrency(from), money.NormalizeCurrency(to)
	if !money.ValidCurrency(from) || !money.ValidCurrency(to) {
		return model.ExchangeRate{}, apperrors.E(apperrors.KindValidation, op,
			fmt.Errorf("%w: %s/%s", apperrors.ErrInvalidCurrency, from, to))
	}

	rate, found, err := s.store.GetCachedRate(ctx, from, to)
	if err != nil {
		return model.ExchangeRate{}, err
	}
	if found && rate.Fresh {
		telemetry.CacheHit("rate")
		return rate, nil
	}
	telemetry.CacheMiss("rate")

	v, err, _ := s.flight.Do(lock.PairKey(from, to), func() (any, error) {
		return s.refresh(ctx, from, to)
	})
	if err != nil {
		return model.ExchangeRate{}, err
	}
	return v.(model.ExchangeRate), nil
}

func (s *RateService) refresh(ctx context.Context, from, to string) (model.ExchangeRate, error) {
	const op = "rate.refresh"

	var result model.ExchangeRate
	err := lock.WithLock(ctx, s.locker, lock.PairKey(from, to), func(ctx context.Context) error {
		cached, found, err := s.store.GetCachedRate(ctx, from, to)
		if err != nil {
			return err
		}
		if found && cached.Fresh {
			result = cached
			return nil
		}

		fetched, fetchErr := s.provider.FetchExchangeRate(ctx, from, to)
		if fetchErr == nil {
			result, err = s.store.UpdateCachedRate(ctx, from, to, fetched)
			if err == nil {
				s.logger.Debug().
					Str("from", from).
					Str("to", to).
					Stringer("rate", result.Rate).
					Msg("exchange rate refreshed")
			}
			return err
		}

		if !found {
			return externalError(op, fetchErr)
		}

		s.logger.Warn().
			Err(fetchErr).
			Str("from", from).
			Str("to", to).
			Time("fetched_at", cached.FetchedAt).
			Msg("exchange rate provider failed, using stale rate")
		telemetry.StaleRateServed()

		cached.Stale = true
		result = cached
		return nil
	})
	return result, err
}

// externalError makes sure a provider failure is classified as external data.
// Unclassified causes (timeouts, cancelled contexts) are retryable.
func externalError(op string, err error) error {
	if apperrors.KindOf(err) == apperrors.KindExternalData {
		return err
	}
	return apperrors.Retryable(apperrors.KindExternalData, op, err)
}
