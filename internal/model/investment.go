package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// AssetClass is the category of an investment. It selects the price freshness
// window and groups positions in the allocation breakdown.
type AssetClass string

const (
	AssetClassStock      AssetClass = "stock"
	AssetClassETF        AssetClass = "etf"
	AssetClassMutualFund AssetClass = "mutual_fund"
	AssetClassCrypto     AssetClass = "crypto"
)

// AssetClasses lists every supported asset class.
var AssetClasses = []AssetClass{AssetClassStock, AssetClassETF, AssetClassMutualFund, AssetClassCrypto}

// Valid reports whether a is a supported asset class.
func (a AssetClass) Valid() bool {
	switch a {
	case AssetClassStock, AssetClassETF, AssetClassMutualFund, AssetClassCrypto:
		return true
	}
	return false
}

// Investment is a position: the aggregate of all purchases of one ticker in one portfolio.
// Quantity and AverageCost are always positive once the position exists.
// CurrentPrice is invalid (not zero) when no quote has ever been stored.
// PriceCurrency is the currency the quote is denominated in, which can differ
// from Currency (a USD listing held in a EUR position).
type Investment struct {
	ID             string              `json:"id"`
	PortfolioID    string              `json:"portfolioId"`
	Ticker         string              `json:"ticker"`
	Name           string              `json:"name"`
	AssetClass     AssetClass          `json:"assetClass"`
	Currency       string              `json:"currency"`
	Quantity       decimal.Decimal     `json:"quantity"`
	AverageCost    decimal.Decimal     `json:"averageCost"`
	CurrentPrice   decimal.NullDecimal `json:"currentPrice"`
	PriceCurrency  string              `json:"currentPriceCurrency,omitempty"`
	PriceUpdatedAt *time.Time          `json:"priceUpdatedAt,omitempty"`
	CreatedAt      time.Time           `json:"createdAt"`
	UpdatedAt      time.Time           `json:"updatedAt"`
}
