package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceQuote is a cached market price for a ticker.
type PriceQuote struct {
	Ticker    string          `json:"ticker"`
	Price     decimal.Decimal `json:"price"`
	Currency  string          `json:"currency"`
	FetchedAt time.Time       `json:"fetchedAt"`
}

// ExchangeRate converts one unit of From into To. Pairs are directional:
// USD->EUR and EUR->USD are stored independently.
type ExchangeRate struct {
	From      string          `json:"from"`
	To        string          `json:"to"`
	Rate      decimal.Decimal `json:"rate"`
	FetchedAt time.Time       `json:"fetchedAt"`
	Fresh     bool            `json:"fresh"`
	Stale     bool            `json:"stale,omitempty"`
}
