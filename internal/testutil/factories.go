package testutil

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ndewijer/portfolio-valuation-backend/internal/model"
	"github.com/ndewijer/portfolio-valuation-backend/internal/repository"
)

// DefaultOwner is the owner used by builders unless overridden.
const DefaultOwner = "user-1"

// PortfolioBuilder provides a fluent interface for creating test portfolios.
//
// Example usage:
//
//	// Simple creation with defaults
//	portfolio := testutil.NewPortfolio().Build(t, db)
//
//	// Customized portfolio
//	portfolio := testutil.NewPortfolio().
//	    WithName("Custom Portfolio").
//	    WithBaseCurrency("EUR").
//	    Build(t, db)
type PortfolioBuilder struct {
	ID           string
	OwnerID      string
	Name         string
	Description  string
	BaseCurrency string
}

// NewPortfolio creates a PortfolioBuilder with sensible defaults.
func NewPortfolio() *PortfolioBuilder {
	return &PortfolioBuilder{
		ID:           MakeID(),
		OwnerID:      DefaultOwner,
		Name:         MakePortfolioName("Test Portfolio"),
		Description:  "Test description",
		BaseCurrency: "USD",
	}
}

// WithID sets a custom ID.
func (b *PortfolioBuilder) WithID(id string) *PortfolioBuilder {
	b.ID = id
	return b
}

// WithOwner sets the owning user.
func (b *PortfolioBuilder) WithOwner(ownerID string) *PortfolioBuilder {
	b.OwnerID = ownerID
	return b
}

// WithName sets a custom name.
func (b *PortfolioBuilder) WithName(name string) *PortfolioBuilder {
	b.Name = name
	return b
}

// WithBaseCurrency sets the reporting currency.
func (b *PortfolioBuilder) WithBaseCurrency(code string) *PortfolioBuilder {
	b.BaseCurrency = code
	return b
}

// Build creates the portfolio in the database and returns it.
func (b *PortfolioBuilder) Build(t *testing.T, db *sql.DB) model.Portfolio {
	t.Helper()

	now := time.Now().UTC()
	p := model.Portfolio{
		ID:           b.ID,
		OwnerID:      b.OwnerID,
		Name:         b.Name,
		Description:  b.Description,
		BaseCurrency: b.BaseCurrency,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := repository.NewPortfolioRepository(db).InsertPortfolio(context.Background(), &p); err != nil {
		t.Fatalf("Failed to create test portfolio: %v", err)
	}

	return p
}

// InvestmentBuilder provides a fluent interface for creating test positions.
//
// Example usage:
//
//	inv := testutil.NewInvestment(portfolio.ID, "AAPL").
//	    WithPosition("10", "150").
//	    WithPrice("165").
//	    Build(t, db)
type InvestmentBuilder struct {
	ID             string
	PortfolioID    string
	Ticker         string
	Name           string
	AssetClass     model.AssetClass
	Currency       string
	Quantity       decimal.Decimal
	AverageCost    decimal.Decimal
	CurrentPrice   decimal.NullDecimal
	PriceCurrency  string
	PriceUpdatedAt *time.Time
}

// NewInvestment creates an InvestmentBuilder for ticker with a 1 @ 100 USD stock position.
func NewInvestment(portfolioID, ticker string) *InvestmentBuilder {
	return &InvestmentBuilder{
		ID:          MakeID(),
		PortfolioID: portfolioID,
		Ticker:      ticker,
		Name:        ticker + " Inc.",
		AssetClass:  model.AssetClassStock,
		Currency:    "USD",
		Quantity:    decimal.NewFromInt(1),
		AverageCost: decimal.NewFromInt(100),
	}
}

// WithAssetClass sets the asset class.
func (b *InvestmentBuilder) WithAssetClass(class model.AssetClass) *InvestmentBuilder {
	b.AssetClass = class
	return b
}

// WithCurrency sets the currency the position is held in.
func (b *InvestmentBuilder) WithCurrency(code string) *InvestmentBuilder {
	b.Currency = code
	return b
}

// WithPosition sets quantity and average cost.
func (b *InvestmentBuilder) WithPosition(quantity, averageCost string) *InvestmentBuilder {
	b.Quantity = decimal.RequireFromString(quantity)
	b.AverageCost = decimal.RequireFromString(averageCost)
	return b
}

// WithPrice sets a current price stamped now.
func (b *InvestmentBuilder) WithPrice(price string) *InvestmentBuilder {
	now := time.Now().UTC()
	return b.WithPriceAt(price, now)
}

// WithPriceAt sets a current price stamped at the given time.
func (b *InvestmentBuilder) WithPriceAt(price string, at time.Time) *InvestmentBuilder {
	b.CurrentPrice = decimal.NewNullDecimal(decimal.RequireFromString(price))
	b.PriceUpdatedAt = &at
	return b
}

// WithPriceIn sets a current price quoted in a currency other than the
// position's, stamped now.
func (b *InvestmentBuilder) WithPriceIn(price, currency string) *InvestmentBuilder {
	b.PriceCurrency = currency
	return b.WithPrice(price)
}

// Build creates the investment in the database and returns it.
func (b *InvestmentBuilder) Build(t *testing.T, db *sql.DB) model.Investment {
	t.Helper()

	priceCurrency := b.PriceCurrency
	if b.CurrentPrice.Valid && priceCurrency == "" {
		priceCurrency = b.Currency
	}

	now := time.Now().UTC()
	inv := model.Investment{
		ID:             b.ID,
		PortfolioID:    b.PortfolioID,
		Ticker:         b.Ticker,
		Name:           b.Name,
		AssetClass:     b.AssetClass,
		Currency:       b.Currency,
		Quantity:       b.Quantity,
		AverageCost:    b.AverageCost,
		CurrentPrice:   b.CurrentPrice,
		PriceCurrency:  priceCurrency,
		PriceUpdatedAt: b.PriceUpdatedAt,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := repository.NewInvestmentRepository(db).InsertInvestment(context.Background(), &inv); err != nil {
		t.Fatalf("Failed to create test investment: %v", err)
	}

	return inv
}

// CreateRate stores an exchange rate fetched at the given time.
func CreateRate(t *testing.T, db *sql.DB, from, to, rate string, fetchedAt time.Time) {
	t.Helper()

	err := repository.NewMarketCacheRepository(db).UpsertRate(context.Background(), model.ExchangeRate{
		From:      from,
		To:        to,
		Rate:      decimal.RequireFromString(rate),
		FetchedAt: fetchedAt,
	})
	if err != nil {
		t.Fatalf("Failed to create test exchange rate: %v", err)
	}
}

// CreatePrice stores a cached quote fetched at the given time, for positions
// held in the quote's currency.
func CreatePrice(t *testing.T, db *sql.DB, ticker, price, currency string, fetchedAt time.Time) {
	t.Helper()

	err := repository.NewMarketCacheRepository(db).UpsertPrice(context.Background(), currency, model.PriceQuote{
		Ticker:    ticker,
		Price:     decimal.RequireFromString(price),
		Currency:  currency,
		FetchedAt: fetchedAt,
	})
	if err != nil {
		t.Fatalf("Failed to create test price: %v", err)
	}
}
