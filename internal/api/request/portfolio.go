package request

// CreatePortfolioRequest represents the request body for creating a portfolio
type CreatePortfolioRequest struct {
	Name         string `json:"name"`
	Description  string `json:"description"`
	BaseCurrency string `json:"baseCurrency"`
}

// UpdatePortfolioRequest represents the request body for updating a portfolio.
// Only fields that are present are changed.
type UpdatePortfolioRequest struct {
	Name         *string `json:"name,omitempty"`
	Description  *string `json:"description,omitempty"`
	BaseCurrency *string `json:"baseCurrency,omitempty"`
}
