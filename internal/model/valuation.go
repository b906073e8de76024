package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// InvestmentMetrics holds the valuation of a single position in one currency.
// HasPrice distinguishes "no quote available" from a quote of zero.
type InvestmentMetrics struct {
	Currency     string          `json:"currency"`
	CurrentValue decimal.Decimal `json:"currentValue"`
	TotalCost    decimal.Decimal `json:"totalCost"`
	GainLoss     decimal.Decimal `json:"gainLoss"`
	GainLossPct  decimal.Decimal `json:"gainLossPct"`
	HasPrice     bool            `json:"hasPrice"`
	Rate         decimal.Decimal `json:"rate"`
	RateStale    bool            `json:"rateStale,omitempty"`
}

// PositionValuation is one line of a portfolio summary.
type PositionValuation struct {
	InvestmentID       string            `json:"investmentId"`
	Ticker             string            `json:"ticker"`
	Name               string            `json:"name"`
	AssetClass         AssetClass        `json:"assetClass"`
	Quantity           decimal.Decimal   `json:"quantity"`
	AverageCost        decimal.Decimal   `json:"averageCost"`
	Native             InvestmentMetrics `json:"native"`
	Base               InvestmentMetrics `json:"base"`
	PercentOfPortfolio decimal.Decimal   `json:"percentOfPortfolio"`
}

// Performer identifies the best or worst position by gain/loss percentage.
type Performer struct {
	InvestmentID string          `json:"investmentId"`
	Ticker       string          `json:"ticker"`
	GainLossPct  decimal.Decimal `json:"gainLossPct"`
}

// AllocationEntry is the share of the portfolio's value held in one asset class.
type AllocationEntry struct {
	AssetClass AssetClass      `json:"assetClass"`
	Value      decimal.Decimal `json:"value"`
	Percent    decimal.Decimal `json:"percent"`
}

// PortfolioSummary is the valuation of a whole portfolio in its base currency.
// BestPerformer and WorstPerformer are nil when no position has a known price.
type PortfolioSummary struct {
	PortfolioID      string              `json:"portfolioId"`
	Name             string              `json:"name"`
	BaseCurrency     string              `json:"baseCurrency"`
	TotalValue       decimal.Decimal     `json:"totalValue"`
	TotalCost        decimal.Decimal     `json:"totalCost"`
	TotalGainLoss    decimal.Decimal     `json:"totalGainLoss"`
	TotalGainLossPct decimal.Decimal     `json:"totalGainLossPct"`
	Positions        []PositionValuation `json:"positions"`
	Allocation       []AllocationEntry   `json:"allocation"`
	BestPerformer    *Performer          `json:"bestPerformer"`
	WorstPerformer   *Performer          `json:"worstPerformer"`
	RateStale        bool                `json:"rateStale"`
	GeneratedAt      time.Time           `json:"generatedAt"`
}
