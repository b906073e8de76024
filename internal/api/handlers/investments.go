package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ndewijer/portfolio-valuation-backend/internal/api/response"
	"github.com/ndewijer/portfolio-valuation-backend/internal/service"
)

// InvestmentHandler handles HTTP requests for individual positions.
type InvestmentHandler struct {
	investmentService *service.InvestmentService
}

// NewInvestmentHandler creates a new InvestmentHandler.
func NewInvestmentHandler(investmentService *service.InvestmentService) *InvestmentHandler {
	return &InvestmentHandler{
		investmentService: investmentService,
	}
}

// GetInvestment handles GET requests for a position valued natively and in its
// portfolio's base currency.
//
// Endpoint: GET /api/investment/{uuid}
// Response: 200 OK with InvestmentDetail
// Error: 404 Not Found if the investment does not exist
// Error: 502 Bad Gateway if the exchange rate cannot be obtained
func (h *InvestmentHandler) GetInvestment(w http.ResponseWriter, r *http.Request) {
	owner, ok := currentOwner(w, r)
	if !ok {
		return
	}

	detail, err := h.investmentService.GetInvestmentMetrics(r.Context(), owner, chi.URLParam(r, "uuid"))
	if err != nil {
		respondServiceError(w, r, "failed to retrieve investment", err)
		return
	}

	response.RespondJSON(w, http.StatusOK, detail)
}

// DeleteInvestment handles DELETE requests. The purchase history is removed with the position.
//
// Endpoint: DELETE /api/investment/{uuid}
// Response: 204 No Content
// Error: 404 Not Found if the investment does not exist
func (h *InvestmentHandler) DeleteInvestment(w http.ResponseWriter, r *http.Request) {
	owner, ok := currentOwner(w, r)
	if !ok {
		return
	}

	if err := h.investmentService.DeleteInvestment(r.Context(), owner, chi.URLParam(r, "uuid")); err != nil {
		respondServiceError(w, r, "failed to delete investment", err)
		return
	}

	response.RespondNoContent(w)
}

// Transactions handles GET requests for the purchase history of a position, oldest first.
//
// Endpoint: GET /api/investment/{uuid}/transaction
// Response: 200 OK with array of Transaction
// Error: 404 Not Found if the investment does not exist
func (h *InvestmentHandler) Transactions(w http.ResponseWriter, r *http.Request) {
	owner, ok := currentOwner(w, r)
	if !ok {
		return
	}

	transactions, err := h.investmentService.GetTransactions(r.Context(), owner, chi.URLParam(r, "uuid"))
	if err != nil {
		respondServiceError(w, r, "failed to retrieve transactions", err)
		return
	}

	response.RespondJSON(w, http.StatusOK, transactions)
}

// RefreshPrice handles POST requests fetching a new quote for a position.
//
// Endpoint: POST /api/investment/{uuid}/price
// Response: 200 OK with the updated Investment
// Error: 404 Not Found if the investment does not exist
// Error: 502 Bad Gateway if the provider fails
func (h *InvestmentHandler) RefreshPrice(w http.ResponseWriter, r *http.Request) {
	owner, ok := currentOwner(w, r)
	if !ok {
		return
	}

	investment, err := h.investmentService.RefreshInvestmentPrice(r.Context(), owner, chi.URLParam(r, "uuid"))
	if err != nil {
		respondServiceError(w, r, "failed to refresh price", err)
		return
	}

	response.RespondJSON(w, http.StatusOK, investment)
}
