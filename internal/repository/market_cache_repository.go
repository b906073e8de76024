package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/ndewijer/portfolio-valuation-backend/internal/apperrors"
	"github.com/ndewijer/portfolio-valuation-backend/internal/model"
)

// MarketCacheRepository stores the last known price per ticker and position
// currency, and the last known exchange rate per directional currency pair.
type MarketCacheRepository struct {
	db *sql.DB
	tx *sql.Tx
}

// NewMarketCacheRepository creates a new MarketCacheRepository with the provided database connection.
func NewMarketCacheRepository(db *sql.DB) *MarketCacheRepository {
	return &MarketCacheRepository{db: db}
}

// WithTx returns a new MarketCacheRepository scoped to the provided transaction.
func (r *MarketCacheRepository) WithTx(tx *sql.Tx) *MarketCacheRepository {
	return &MarketCacheRepository{
		db: r.db,
		tx: tx,
	}
}

// getQuerier returns the active transaction if one is set, otherwise the database connection.
func (r *MarketCacheRepository) getQuerier() querier {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

// GetPrice returns the quote cached for ticker on behalf of positions held in
// positionCurrency, or ErrPriceNotFound. The quote keeps its own currency.
func (r *MarketCacheRepository) GetPrice(ctx context.Context, ticker, positionCurrency string) (model.PriceQuote, error) {
	var q model.PriceQuote
	var price, fetchedAt string

	err := r.getQuerier().QueryRowContext(ctx, `
		SELECT ticker, price, currency, fetched_at
		FROM price_cache
		WHERE ticker = ? AND position_currency = ?`, ticker, positionCurrency).Scan(&q.Ticker, &price, &q.Currency, &fetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.PriceQuote{}, apperrors.ErrPriceNotFound
	}
	if err != nil {
		return model.PriceQuote{}, storageError("cache.GetPrice", err)
	}

	if q.Price, err = decimal.NewFromString(price); err != nil {
		return model.PriceQuote{}, storageError("cache.GetPrice", fmt.Errorf("invalid cached price %q: %w", price, err))
	}
	if q.FetchedAt, err = ParseTime(fetchedAt); err != nil {
		return model.PriceQuote{}, storageError("cache.GetPrice", err)
	}
	return q, nil
}

// UpsertPrice replaces the cached quote for q.Ticker and positionCurrency.
func (r *MarketCacheRepository) UpsertPrice(ctx context.Context, positionCurrency string, q model.PriceQuote) error {
	_, err := r.getQuerier().ExecContext(ctx, `
		INSERT INTO price_cache (ticker, position_currency, price, currency, fetched_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (ticker, position_currency) DO UPDATE SET
			price = excluded.price,
			currency = excluded.currency,
			fetched_at = excluded.fetched_at`,
		q.Ticker,
		positionCurrency,
		q.Price.String(),
		q.Currency,
		FormatTime(q.FetchedAt),
	)
	if err != nil {
		return storageError("cache.UpsertPrice", err)
	}
	return nil
}

// GetRate returns the cached rate for the directional pair or ErrExchangeRateNotFound.
// The Fresh flag of the result is left for the caller to set.
func (r *MarketCacheRepository) GetRate(ctx context.Context, from, to string) (model.ExchangeRate, error) {
	var rate model.ExchangeRate
	var value, fetchedAt string

	err := r.getQuerier().QueryRowContext(ctx, `
		SELECT from_currency, to_currency, rate, fetched_at
		FROM exchange_rate_cache
		WHERE from_currency = ? AND to_currency = ?`, from, to).Scan(&rate.From, &rate.To, &value, &fetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.ExchangeRate{}, apperrors.ErrExchangeRateNotFound
	}
	if err != nil {
		return model.ExchangeRate{}, storageError("cache.GetRate", err)
	}

	if rate.Rate, err = decimal.NewFromString(value); err != nil {
		return model.ExchangeRate{}, storageError("cache.GetRate", fmt.Errorf("invalid cached rate %q: %w", value, err))
	}
	if rate.FetchedAt, err = ParseTime(fetchedAt); err != nil {
		return model.ExchangeRate{}, storageError("cache.GetRate", err)
	}
	return rate, nil
}

// UpsertRate replaces the cached rate for the directional pair.
func (r *MarketCacheRepository) UpsertRate(ctx context.Context, rate model.ExchangeRate) error {
	_, err := r.getQuerier().ExecContext(ctx, `
		INSERT INTO exchange_rate_cache (from_currency, to_currency, rate, fetched_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (from_currency, to_currency) DO UPDATE SET
			rate = excluded.rate,
			fetched_at = excluded.fetched_at`,
		rate.From,
		rate.To,
		rate.Rate.String(),
		FormatTime(rate.FetchedAt),
	)
	if err != nil {
		return storageError("cache.UpsertRate", err)
	}
	return nil
}
