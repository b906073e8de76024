package request

import (
	"time"

	"github.com/shopspring/decimal"
)

// PurchaseRequest represents the request body for recording a purchase.
// Quantity and price accept JSON numbers or strings; both are decoded exactly.
// The first purchase of a ticker creates the position, later ones merge into it.
type PurchaseRequest struct {
	Ticker      string          `json:"ticker"`
	Name        string          `json:"name,omitempty"`
	AssetClass  string          `json:"assetClass"`
	Currency    string          `json:"currency"`
	Quantity    decimal.Decimal `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	PurchasedAt *time.Time      `json:"purchasedAt,omitempty"`
	Note        string          `json:"note,omitempty"`
}
