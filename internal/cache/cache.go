// Package cache stores the last known price per ticker and position currency
// and rate per currency pair and decides whether they are still fresh. It never calls the
// market-data provider and never fetches on write.
package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ndewijer/portfolio-valuation-backend/internal/apperrors"
	"github.com/ndewijer/portfolio-valuation-backend/internal/model"
	"github.com/ndewijer/portfolio-valuation-backend/internal/money"
	"github.com/ndewijer/portfolio-valuation-backend/internal/repository"
)

// Policy holds the freshness windows.
type Policy struct {
	StockTTL        time.Duration // stock, etf and mutual_fund
	CryptoTTL       time.Duration
	ExchangeRateTTL time.Duration
}

// DefaultPolicy is 15 minutes for equities and funds, 5 for crypto and an hour for rates.
var DefaultPolicy = Policy{
	StockTTL:        15 * time.Minute,
	CryptoTTL:       5 * time.Minute,
	ExchangeRateTTL: time.Hour,
}

// PriceTTL returns the freshness window for an asset class.
func (p Policy) PriceTTL(class model.AssetClass) time.Duration {
	if class == model.AssetClassCrypto {
		return p.CryptoTTL
	}
	return p.StockTTL
}

// IsFresh reports whether a value last updated at lastUpdated is younger than ttl.
// A missing timestamp is never fresh.
func IsFresh(lastUpdated *time.Time, ttl time.Duration, now time.Time) bool {
	if lastUpdated == nil || lastUpdated.IsZero() {
		return false
	}
	return now.Sub(*lastUpdated) < ttl
}

// CachedPrice is a stored quote plus its freshness at read time.
type CachedPrice struct {
	model.PriceQuote
	Fresh bool
}

// Store reads and writes the price and exchange-rate caches.
type Store struct {
	db          *sql.DB
	cache       *repository.MarketCacheRepository
	investments *repository.InvestmentRepository
	policy      Policy
	now         func() time.Time
}

// NewStore creates a Store over db using policy.
func NewStore(db *sql.DB, policy Policy) *Store {
	return &Store{
		db:          db,
		cache:       repository.NewMarketCacheRepository(db),
		investments: repository.NewInvestmentRepository(db),
		policy:      policy,
		now:         time.Now,
	}
}

// WithClock returns a copy of the store that reads the time from now.
func (s *Store) WithClock(now func() time.Time) *Store {
	c := *s
	c.now = now
	return &c
}

// Policy returns the freshness windows in use.
func (s *Store) Policy() Policy {
	return s.policy
}

// Now returns the store's current time.
func (s *Store) Now() time.Time {
	return s.now().UTC()
}

// GetCachedPrice returns the quote cached for ticker on behalf of positions
// held in positionCurrency and whether it is fresh for the asset class.
// found is false when nothing is cached.
func (s *Store) GetCachedPrice(ctx context.Context, ticker string, class model.AssetClass, positionCurrency string) (CachedPrice, bool, error) {
	q, err := s.cache.GetPrice(ctx, ticker, money.NormalizeCurrency(positionCurrency))
	if errors.Is(err, apperrors.ErrPriceNotFound) {
		return CachedPrice{}, false, nil
	}
	if err != nil {
		return CachedPrice{}, false, err
	}
	return CachedPrice{
		PriceQuote: q,
		Fresh:      IsFresh(&q.FetchedAt, s.policy.PriceTTL(class), s.now()),
	}, true, nil
}

// UpdateCachedPrice records a quote of price in quoteCurrency and stamps it on
// every position that holds ticker in positionCurrency, in one transaction.
// The price is stored unconverted. Returns the number of positions updated.
func (s *Store) UpdateCachedPrice(ctx context.Context, ticker, positionCurrency string, price decimal.Decimal, quoteCurrency string) (int64, error) {
	const op = "cache.UpdateCachedPrice"

	if !price.IsPositive() {
		return 0, apperrors.E(apperrors.KindValidation, op, apperrors.ErrNonPositiveAmount)
	}

	positionCurrency = money.NormalizeCurrency(positionCurrency)
	quoteCurrency = money.NormalizeCurrency(quoteCurrency)
	if quoteCurrency == "" {
		quoteCurrency = positionCurrency
	}
	at := s.now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, apperrors.E(apperrors.KindPersistence, op, fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := s.cache.WithTx(tx).UpsertPrice(ctx, positionCurrency, model.PriceQuote{
		Ticker:    ticker,
		Price:     price,
		Currency:  quoteCurrency,
		FetchedAt: at,
	}); err != nil {
		return 0, err
	}

	n, err := s.investments.WithTx(tx).UpdatePriceForTicker(ctx, ticker, positionCurrency, price, quoteCurrency, at)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, apperrors.E(apperrors.KindPersistence, op, fmt.Errorf("failed to commit transaction: %w", err))
	}
	return n, nil
}

// GetCachedRate returns the cached rate for the directional pair from->to.
// Identical currencies short-circuit to a fresh rate of exactly 1.
// found is false when nothing is cached.
func (s *Store) GetCachedRate(ctx context.Context, from, to string) (model.ExchangeRate, bool, error) {
	from, to = money.NormalizeCurrency(from), money.NormalizeCurrency(to)
	now := s.now().UTC()

	if from == to {
		return model.ExchangeRate{From: from, To: to, Rate: decimal.NewFromInt(1), FetchedAt: now, Fresh: true}, true, nil
	}

	rate, err := s.cache.GetRate(ctx, from, to)
	if errors.Is(err, apperrors.ErrExchangeRateNotFound) {
		return model.ExchangeRate{}, false, nil
	}
	if err != nil {
		return model.ExchangeRate{}, false, err
	}
	rate.Fresh = IsFresh(&rate.FetchedAt, s.policy.ExchangeRateTTL, now)
	return rate, true, nil
}

// UpdateCachedRate records a new rate for the directional pair from->to.
func (s *Store) UpdateCachedRate(ctx context.Context, from, to string, rate decimal.Decimal) (model.ExchangeRate, error) {
	from, to = money.NormalizeCurrency(from), money.NormalizeCurrency(to)
	if !rate.IsPositive() {
		return model.ExchangeRate{}, apperrors.E(apperrors.KindValidation, "cache.UpdateCachedRate", apperrors.ErrNonPositiveAmount)
	}

	stored := model.ExchangeRate{
		From:      from,
		To:        to,
		Rate:      rate,
		FetchedAt: s.now().UTC(),
		Fresh:     true,
	}
	if err := s.cache.UpsertRate(ctx, stored); err != nil {
		return model.ExchangeRate{}, err
	}
	return stored, nil
}
