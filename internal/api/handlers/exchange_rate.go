package handlers

import (
	"net/http"

	"github.com/ndewijer/portfolio-valuation-backend/internal/api/response"
	"github.com/ndewijer/portfolio-valuation-backend/internal/service"
	"github.com/ndewijer/portfolio-valuation-backend/internal/validation"
)

// ExchangeRateHandler serves cached, freshness-checked exchange rates.
type ExchangeRateHandler struct {
	rateService *service.RateService
}

// NewExchangeRateHandler creates a new ExchangeRateHandler.
func NewExchangeRateHandler(rateService *service.RateService) *ExchangeRateHandler {
	return &ExchangeRateHandler{
		rateService: rateService,
	}
}

// GetRate handles GET requests for the rate converting one unit of from into to.
// A stale rate is only returned, flagged, when the provider is unreachable.
//
// Endpoint: GET /api/exchange-rate?from=USD&to=EUR
// Response: 200 OK with ExchangeRate
// Error: 400 Bad Request if either currency is missing or unknown
// Error: 502 Bad Gateway if no rate can be obtained
func (h *ExchangeRateHandler) GetRate(w http.ResponseWriter, r *http.Request) {
	from := r.URL.Query().Get("from")
	to := r.URL.Query().Get("to")

	if err := validation.ValidateCurrencyPair(from, to); err != nil {
		respondValidation(w, err)
		return
	}

	rate, err := h.rateService.GetRate(r.Context(), from, to)
	if err != nil {
		respondServiceError(w, r, "failed to retrieve exchange rate", err)
		return
	}

	response.RespondJSON(w, http.StatusOK, rate)
}
