package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ndewijer/portfolio-valuation-backend/internal/api/request"
	"github.com/ndewijer/portfolio-valuation-backend/internal/api/response"
	"github.com/ndewijer/portfolio-valuation-backend/internal/apperrors"
	"github.com/ndewijer/portfolio-valuation-backend/internal/validation"
)

// TestParseJSON tests the generic body decoder.
// This is an internal test (package handlers, not handlers_test) because
// parseJSON is unexported.
func TestParseJSON(t *testing.T) {
	t.Run("decodes a valid body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"Growth","baseCurrency":"EUR"}`))

		got, err := parseJSON[request.CreatePortfolioRequest](req)
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if got.Name != "Growth" || got.BaseCurrency != "EUR" {
			t.Errorf("Unexpected decode result: %+v", got)
		}
	})

	t.Run("rejects unknown fields", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"Growth","owner":"someone-else"}`))

		if _, err := parseJSON[request.CreatePortfolioRequest](req); err == nil {
			t.Error("Expected error for unknown field")
		}
	})

	t.Run("rejects an empty body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))

		_, err := parseJSON[request.CreatePortfolioRequest](req)
		if err == nil || err.Error() != "request body is required" {
			t.Errorf("Expected 'request body is required', got %v", err)
		}
	})

	t.Run("rejects trailing data", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"A"}{"name":"B"}`))

		if _, err := parseJSON[request.CreatePortfolioRequest](req); err == nil {
			t.Error("Expected error for trailing data")
		}
	})

	t.Run("decodes exact decimals from strings and numbers", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(
			`{"ticker":"aapl","assetClass":"stock","currency":"USD","quantity":"0.1","price":150.25}`))

		got, err := parseJSON[request.PurchaseRequest](req)
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if got.Quantity.String() != "0.1" || got.Price.String() != "150.25" {
			t.Errorf("Expected 0.1 @ 150.25, got %s @ %s", got.Quantity, got.Price)
		}
	})
}

// TestRespondServiceError verifies the error-kind to HTTP status mapping.
//
// Storage and provider failures never expose driver messages or URLs.
func TestRespondServiceError(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		wantStatus    int
		wantRetryable bool
		wantRetryHdr  bool
		wantError     string
		wantDetails   string
	}{
		{
			name:       "validation",
			err:        apperrors.E(apperrors.KindValidation, "investment.AddPurchase", &validation.Error{Fields: map[string]string{"ticker": "is required"}}),
			wantStatus: http.StatusBadRequest,
			wantError:  "validation failed",
		},
		{
			name:       "not found sentinel",
			err:        apperrors.ErrPortfolioNotFound,
			wantStatus: http.StatusNotFound,
			wantError:  "portfolio not found",
		},
		{
			name:          "retryable provider failure",
			err:           apperrors.Retryable(apperrors.KindExternalData, "rates.GetRate", apperrors.ErrProviderUnavailable),
			wantStatus:    http.StatusBadGateway,
			wantRetryable: true,
			wantError:     "op failed",
		},
		{
			name:       "permanent provider failure",
			err:        apperrors.E(apperrors.KindExternalData, "prices.RefreshPrice", apperrors.ErrSymbolNotFound),
			wantStatus: http.StatusBadGateway,
			wantError:  "op failed",
		},
		{
			name: "transport failure does not expose the provider URL",
			err: apperrors.Retryable(apperrors.KindExternalData, "marketdata.FetchPrice",
				fmt.Errorf("%w: Get \"https://query1.finance.yahoo.com/v8/finance/chart/AAPL\": dial tcp: i/o timeout", apperrors.ErrProviderUnavailable)),
			wantStatus:    http.StatusBadGateway,
			wantRetryable: true,
			wantError:     "op failed",
			wantDetails:   "market data provider unavailable",
		},
		{
			name: "unclassified external failure falls back to provider unavailable",
			err: apperrors.Retryable(apperrors.KindExternalData, "marketdata.FetchPrice",
				errors.New(`Get "https://query1.finance.yahoo.com/v8/finance/chart/AAPL": EOF`)),
			wantStatus:    http.StatusBadGateway,
			wantRetryable: true,
			wantError:     "op failed",
			wantDetails:   "market data provider unavailable",
		},
		{
			name:          "lock timeout",
			err:           apperrors.E(apperrors.KindConcurrencyTimeout, "lock.Acquire", apperrors.ErrLockTimeout),
			wantStatus:    http.StatusConflict,
			wantRetryable: true,
			wantRetryHdr:  true,
			wantError:     "op failed",
		},
		{
			name:       "persistence",
			err:        apperrors.E(apperrors.KindPersistence, "investment.InsertInvestment", errors.New("SQL logic error: no such table: investment (1)")),
			wantStatus: http.StatusInternalServerError,
			wantError:  "op failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			w := httptest.NewRecorder()

			respondServiceError(w, req, "op failed", tt.err)

			if w.Code != tt.wantStatus {
				t.Errorf("Expected status %d, got %d", tt.wantStatus, w.Code)
			}

			var body response.ErrorResponse
			if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
				t.Fatalf("Failed to decode response: %v", err)
			}
			if body.Error != tt.wantError {
				t.Errorf("Expected error '%s', got '%s'", tt.wantError, body.Error)
			}
			if body.Retryable != tt.wantRetryable {
				t.Errorf("Expected retryable=%v, got %v", tt.wantRetryable, body.Retryable)
			}
			if got := w.Header().Get("Retry-After") != ""; got != tt.wantRetryHdr {
				t.Errorf("Expected Retry-After present=%v, got %v", tt.wantRetryHdr, got)
			}
			if strings.Contains(fmt.Sprint(body.Details), "SQL") {
				t.Errorf("Driver detail leaked to client: %v", body.Details)
			}
			if strings.Contains(fmt.Sprint(body.Details), "http") {
				t.Errorf("Provider URL leaked to client: %v", body.Details)
			}
			if tt.wantDetails != "" && fmt.Sprint(body.Details) != tt.wantDetails {
				t.Errorf("Expected details '%s', got '%v'", tt.wantDetails, body.Details)
			}
		})
	}

	t.Run("validation details carry every field", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		w := httptest.NewRecorder()

		err := apperrors.E(apperrors.KindValidation, "op", &validation.Error{Fields: map[string]string{
			"ticker":   "is required",
			"quantity": "must be greater than zero",
		}})
		respondServiceError(w, req, "op failed", err)

		var body struct {
			Details map[string]string `json:"details"`
		}
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
		if len(body.Details) != 2 || body.Details["ticker"] != "is required" {
			t.Errorf("Unexpected details: %v", body.Details)
		}
	})
}

func TestCause(t *testing.T) {
	err := apperrors.E(apperrors.KindNotFound, "outer", apperrors.E(apperrors.KindNotFound, "inner", apperrors.ErrInvestmentNotFound))
	if got := cause(err); got != "investment not found" {
		t.Errorf("Expected 'investment not found', got '%s'", got)
	}
}
