package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ndewijer/portfolio-valuation-backend/internal/apperrors"
	"github.com/ndewijer/portfolio-valuation-backend/internal/model"
)

// MockProvider is an in-memory marketdata.Provider for testing.
// It returns configured prices and rates instead of making actual API calls
// and counts every call so tests can assert on cache hits.
type MockProvider struct {
	mu sync.Mutex

	// Prices maps ticker to price; quotes use the requested currency unless
	// QuoteCurrencies names another.
	Prices          map[string]decimal.Decimal
	QuoteCurrencies map[string]string
	// Rates maps "FROM/TO" to the rate.
	Rates map[string]decimal.Decimal
	// Err, when set, is returned from every call.
	Err error
	// Delay is slept before answering, respecting ctx.
	Delay time.Duration

	PriceCalls int
	RateCalls  int
}

// NewMockProvider creates an empty mock provider.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		Prices:          map[string]decimal.Decimal{},
		QuoteCurrencies: map[string]string{},
		Rates:           map[string]decimal.Decimal{},
	}
}

// WithPrice configures a price for ticker.
func (m *MockProvider) WithPrice(ticker, price string) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Prices[ticker] = decimal.RequireFromString(price)
	return m
}

// WithQuote configures a price for ticker quoted in currency regardless of
// the currency requested, like a USD listing looked up for a EUR position.
func (m *MockProvider) WithQuote(ticker, price, currency string) *MockProvider {
	m.WithPrice(ticker, price)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.QuoteCurrencies[ticker] = currency
	return m
}

// WithRate configures the directional rate from->to.
func (m *MockProvider) WithRate(from, to, rate string) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Rates[from+"/"+to] = decimal.RequireFromString(rate)
	return m
}

// WithError configures the mock to return the specified error.
func (m *MockProvider) WithError(err error) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Err = err
	return m
}

// Unavailable configures the mock to fail like an unreachable provider.
func (m *MockProvider) Unavailable() *MockProvider {
	return m.WithError(apperrors.Retryable(apperrors.KindExternalData, "mock", apperrors.ErrProviderUnavailable))
}

// FetchPrice implements marketdata.Provider.
func (m *MockProvider) FetchPrice(ctx context.Context, ticker string, _ model.AssetClass, currency string) (model.PriceQuote, error) {
	if err := m.wait(ctx); err != nil {
		return model.PriceQuote{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.PriceCalls++

	if m.Err != nil {
		return model.PriceQuote{}, m.Err
	}
	price, ok := m.Prices[ticker]
	if !ok {
		return model.PriceQuote{}, apperrors.E(apperrors.KindExternalData, "mock",
			fmt.Errorf("%w: %s", apperrors.ErrSymbolNotFound, ticker))
	}
	if quoted, ok := m.QuoteCurrencies[ticker]; ok {
		currency = quoted
	}
	return model.PriceQuote{Ticker: ticker, Price: price, Currency: currency, FetchedAt: time.Now().UTC()}, nil
}

// FetchExchangeRate implements marketdata.Provider.
func (m *MockProvider) FetchExchangeRate(ctx context.Context, from, to string) (decimal.Decimal, error) {
	if err := m.wait(ctx); err != nil {
		return decimal.Zero, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.RateCalls++

	if m.Err != nil {
		return decimal.Zero, m.Err
	}
	rate, ok := m.Rates[from+"/"+to]
	if !ok {
		return decimal.Zero, apperrors.E(apperrors.KindExternalData, "mock",
			fmt.Errorf("%w: %s%s=X", apperrors.ErrSymbolNotFound, from, to))
	}
	return rate, nil
}

// Calls returns the number of price and rate calls so far.
func (m *MockProvider) Calls() (prices, rates int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.PriceCalls, m.RateCalls
}

func (m *MockProvider) wait(ctx context.Context) error {
	m.mu.Lock()
	delay := m.Delay
	m.mu.Unlock()
	if delay <= 0 {
		return nil
	}
	select {
	case <-time.After(delay):
		return nil
	case <-ctx.Done():
		return apperrors.Retryable(apperrors.KindExternalData, "mock", ctx.Err())
	}
}
