package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionTypeBuy is the only transaction type: positions grow by purchases.
const TransactionTypeBuy = "buy"

// Transaction is an append-only purchase record belonging to an investment.
// Price is denominated in Currency, which always equals the investment's currency.
type Transaction struct {
	ID           string          `json:"id"`
	InvestmentID string          `json:"investmentId"`
	Type         string          `json:"type"`
	Quantity     decimal.Decimal `json:"quantity"`
	Price        decimal.Decimal `json:"price"`
	Currency     string          `json:"currency"`
	Note         string          `json:"note,omitempty"`
	PurchasedAt  time.Time       `json:"purchasedAt"`
	CreatedAt    time.Time       `json:"createdAt"`
}

// PurchaseResult is returned after a purchase has been recorded.
// Aggregated is true when the purchase merged into an existing position.
type PurchaseResult struct {
	InvestmentID  string          `json:"investmentId"`
	TransactionID string          `json:"transactionId"`
	Aggregated    bool            `json:"aggregated"`
	TotalQuantity decimal.Decimal `json:"totalQuantity"`
	AverageCost   decimal.Decimal `json:"averageCost"`
}
