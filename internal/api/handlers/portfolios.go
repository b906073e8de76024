package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ndewijer/portfolio-valuation-backend/internal/api/request"
	"github.com/ndewijer/portfolio-valuation-backend/internal/api/response"
	"github.com/ndewijer/portfolio-valuation-backend/internal/service"
	"github.com/ndewijer/portfolio-valuation-backend/internal/validation"
)

// PortfolioHandler handles HTTP requests for portfolio endpoints.
// It serves as the HTTP layer adapter, parsing requests and delegating
// business logic to the portfolio and investment services.
type PortfolioHandler struct {
	portfolioService  *service.PortfolioService
	investmentService *service.InvestmentService
}

// NewPortfolioHandler creates a new PortfolioHandler with the provided service dependencies.
func NewPortfolioHandler(portfolioService *service.PortfolioService, investmentService *service.InvestmentService) *PortfolioHandler {
	return &PortfolioHandler{
		portfolioService:  portfolioService,
		investmentService: investmentService,
	}
}

// Portfolios handles GET requests to retrieve the current user's portfolios.
//
// Endpoint: GET /api/portfolio
// Response: 200 OK with array of Portfolio
// Error: 500 Internal Server Error if retrieval fails
func (h *PortfolioHandler) Portfolios(w http.ResponseWriter, r *http.Request) {
	owner, ok := currentOwner(w, r)
	if !ok {
		return
	}

	portfolios, err := h.portfolioService.GetPortfolios(r.Context(), owner)
	if err != nil {
		respondServiceError(w, r, "failed to retrieve portfolios", err)
		return
	}

	response.RespondJSON(w, http.StatusOK, portfolios)
}

// GetPortfolio handles GET requests to retrieve a single portfolio.
//
// Endpoint: GET /api/portfolio/{uuid}
// Response: 200 OK with Portfolio
// Error: 404 Not Found if the portfolio does not exist or belongs to someone else
func (h *PortfolioHandler) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	owner, ok := currentOwner(w, r)
	if !ok {
		return
	}

	portfolio, err := h.portfolioService.GetPortfolio(r.Context(), owner, chi.URLParam(r, "uuid"))
	if err != nil {
		respondServiceError(w, r, "failed to retrieve portfolio", err)
		return
	}

	response.RespondJSON(w, http.StatusOK, portfolio)
}

// CreatePortfolio handles POST requests to create a portfolio.
//
// Endpoint: POST /api/portfolio
// Request Body: CreatePortfolioRequest (name, baseCurrency, optionally description)
// Response: 201 Created with Portfolio
// Error: 400 Bad Request if validation fails or request body is invalid
func (h *PortfolioHandler) CreatePortfolio(w http.ResponseWriter, r *http.Request) {
	owner, ok := currentOwner(w, r)
	if !ok {
		return
	}

	req, err := parseJSON[request.CreatePortfolioRequest](r)
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	if err := validation.ValidateCreatePortfolio(req); err != nil {
		respondValidation(w, err)
		return
	}

	portfolio, err := h.portfolioService.CreatePortfolio(r.Context(), owner, req)
	if err != nil {
		respondServiceError(w, r, "failed to create portfolio", err)
		return
	}

	response.RespondJSON(w, http.StatusCreated, portfolio)
}

// UpdatePortfolio handles PUT requests to update a portfolio. Absent fields are kept.
//
// Endpoint: PUT /api/portfolio/{uuid}
// Request Body: UpdatePortfolioRequest (all fields optional)
// Response: 200 OK with updated Portfolio
// Error: 400 Bad Request if validation fails
// Error: 404 Not Found if the portfolio does not exist
func (h *PortfolioHandler) UpdatePortfolio(w http.ResponseWriter, r *http.Request) {
	owner, ok := currentOwner(w, r)
	if !ok {
		return
	}

	req, err := parseJSON[request.UpdatePortfolioRequest](r)
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	if err := validation.ValidateUpdatePortfolio(req); err != nil {
		respondValidation(w, err)
		return
	}

	portfolio, err := h.portfolioService.UpdatePortfolio(r.Context(), owner, chi.URLParam(r, "uuid"), req)
	if err != nil {
		respondServiceError(w, r, "failed to update portfolio", err)
		return
	}

	response.RespondJSON(w, http.StatusOK, portfolio)
}

// DeletePortfolio handles DELETE requests. Positions and purchases go with it.
//
// Endpoint: DELETE /api/portfolio/{uuid}
// Response: 204 No Content
// Error: 404 Not Found if the portfolio does not exist
func (h *PortfolioHandler) DeletePortfolio(w http.ResponseWriter, r *http.Request) {
	owner, ok := currentOwner(w, r)
	if !ok {
		return
	}

	if err := h.portfolioService.DeletePortfolio(r.Context(), owner, chi.URLParam(r, "uuid")); err != nil {
		respondServiceError(w, r, "failed to delete portfolio", err)
		return
	}

	response.RespondNoContent(w)
}

// PortfolioSummary handles GET requests for the valuation of a portfolio in its base currency.
// With ?refresh=true stale quotes are fetched first; refresh failures fall back to the last known price.
//
// Endpoint: GET /api/portfolio/{uuid}/summary
// Response: 200 OK with PortfolioSummary
// Error: 404 Not Found if the portfolio does not exist
// Error: 502 Bad Gateway if a needed exchange rate cannot be obtained
func (h *PortfolioHandler) PortfolioSummary(w http.ResponseWriter, r *http.Request) {
	owner, ok := currentOwner(w, r)
	if !ok {
		return
	}

	refresh := false
	if raw := r.URL.Query().Get("refresh"); raw != "" {
		var err error
		if refresh, err = strconv.ParseBool(raw); err != nil {
			response.RespondError(w, http.StatusBadRequest, "invalid refresh parameter", "refresh must be true or false")
			return
		}
	}

	summary, err := h.portfolioService.GetPortfolioSummary(r.Context(), owner, chi.URLParam(r, "uuid"), refresh)
	if err != nil {
		respondServiceError(w, r, "failed to get portfolio summary", err)
		return
	}

	response.RespondJSON(w, http.StatusOK, summary)
}

// PortfolioInvestments handles GET requests listing a portfolio's positions.
//
// Endpoint: GET /api/portfolio/{uuid}/investment
// Response: 200 OK with array of Investment
// Error: 404 Not Found if the portfolio does not exist
func (h *PortfolioHandler) PortfolioInvestments(w http.ResponseWriter, r *http.Request) {
	owner, ok := currentOwner(w, r)
	if !ok {
		return
	}

	investments, err := h.investmentService.GetInvestments(r.Context(), owner, chi.URLParam(r, "uuid"))
	if err != nil {
		respondServiceError(w, r, "failed to retrieve investments", err)
		return
	}

	response.RespondJSON(w, http.StatusOK, investments)
}

// AddPurchase handles POST requests recording a purchase. The first purchase of
// a ticker opens a position; later ones merge into it at a weighted average cost.
//
// Endpoint: POST /api/portfolio/{uuid}/purchase
// Request Body: PurchaseRequest (ticker, assetClass, currency, quantity, price, optionally name, purchasedAt, note)
// Response: 201 Created with PurchaseResult for a new position, 200 OK when merged
// Error: 400 Bad Request if validation fails or the currency differs from the position's
// Error: 404 Not Found if the portfolio does not exist
// Error: 409 Conflict if the position stayed locked past the wait bound (retryable)
func (h *PortfolioHandler) AddPurchase(w http.ResponseWriter, r *http.Request) {
	owner, ok := currentOwner(w, r)
	if !ok {
		return
	}

	req, err := parseJSON[request.PurchaseRequest](r)
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	if err := validation.ValidatePurchase(req); err != nil {
		respondValidation(w, err)
		return
	}

	result, err := h.investmentService.AddPurchase(r.Context(), owner, chi.URLParam(r, "uuid"), req)
	if err != nil {
		respondServiceError(w, r, "failed to record purchase", err)
		return
	}

	status := http.StatusCreated
	if result.Aggregated {
		status = http.StatusOK
	}
	response.RespondJSON(w, status, result)
}
