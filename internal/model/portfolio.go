package model

import "time"

// Portfolio represents a portfolio from the database.
// A portfolio belongs to exactly one owner and reports its aggregates in BaseCurrency.
type Portfolio struct {
	ID           string    `json:"id"`
	OwnerID      string    `json:"ownerId"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	BaseCurrency string    `json:"baseCurrency"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}
