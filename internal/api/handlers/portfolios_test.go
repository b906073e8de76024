package handlers_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ndewijer/portfolio-valuation-backend/internal/api/handlers"
	"github.com/ndewijer/portfolio-valuation-backend/internal/api/response"
	"github.com/ndewijer/portfolio-valuation-backend/internal/model"
	"github.com/ndewijer/portfolio-valuation-backend/internal/testutil"
)

func newOwnerRequest(t *testing.T, method, path string, params map[string]string, body any) *http.Request {
	t.Helper()
	return testutil.NewOwnerRequest(t, method, path, testutil.DefaultOwner, params, body)
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) response.ErrorResponse {
	t.Helper()
	var body response.ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode error response: %v", err)
	}
	return body
}

// TestPortfolioHandler_Portfolios tests the GET /api/portfolio endpoint.
//
// Only the caller's portfolios are listed, as a JSON array that is empty
// rather than null when there are none.
func TestPortfolioHandler_Portfolios(t *testing.T) {
	t.Run("GET /api/portfolio returns 200 with empty array", func(t *testing.T) {
		// Setup
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestServices(t, db, testutil.NewMockProvider())
		handler := handlers.NewPortfolioHandler(svc.Portfolio, svc.Investment)

		req := newOwnerRequest(t, http.MethodGet, "/api/portfolio/", nil, nil)
		w := httptest.NewRecorder()

		// Execute
		handler.Portfolios(w, req)

		// Assert HTTP status
		if w.Code != http.StatusOK {
			t.Errorf("Expected status 200, got %d", w.Code)
		}

		// Assert Content-Type
		contentType := w.Header().Get("Content-Type")
		if contentType != "application/json" {
			t.Errorf("Expected Content-Type 'application/json', got '%s'", contentType)
		}

		var portfolios []model.Portfolio
		if err := json.NewDecoder(w.Body).Decode(&portfolios); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
		if len(portfolios) != 0 {
			t.Errorf("Expected empty array, got %d items", len(portfolios))
		}
	})

	t.Run("GET /api/portfolio returns only the caller's portfolios", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestServices(t, db, testutil.NewMockProvider())
		handler := handlers.NewPortfolioHandler(svc.Portfolio, svc.Investment)

		mine := testutil.NewPortfolio().WithName("Mine").Build(t, db)
		testutil.NewPortfolio().WithOwner("user-2").WithName("Theirs").Build(t, db)

		req := newOwnerRequest(t, http.MethodGet, "/api/portfolio/", nil, nil)
		w := httptest.NewRecorder()

		handler.Portfolios(w, req)

		var portfolios []model.Portfolio
		if err := json.NewDecoder(w.Body).Decode(&portfolios); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
		if len(portfolios) != 1 {
			t.Fatalf("Expected 1 portfolio, got %d", len(portfolios))
		}
		if portfolios[0].ID != mine.ID {
			t.Errorf("Expected portfolio %s, got %s", mine.ID, portfolios[0].ID)
		}
	})

	t.Run("returns 401 without a current user", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestServices(t, db, testutil.NewMockProvider())
		handler := handlers.NewPortfolioHandler(svc.Portfolio, svc.Investment)

		req := httptest.NewRequest(http.MethodGet, "/api/portfolio/", nil)
		w := httptest.NewRecorder()

		handler.Portfolios(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Errorf("Expected status 401, got %d", w.Code)
		}
	})
}

func TestPortfolioHandler_CRUD(t *testing.T) {
	t.Run("create returns 201 with the new portfolio", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestServices(t, db, testutil.NewMockProvider())
		handler := handlers.NewPortfolioHandler(svc.Portfolio, svc.Investment)

		req := newOwnerRequest(t, http.MethodPost, "/api/portfolio", nil,
			`{"name":"  Retirement ","description":"long term","baseCurrency":"eur"}`)
		w := httptest.NewRecorder()

		handler.CreatePortfolio(w, req)

		if w.Code != http.StatusCreated {
			t.Fatalf("Expected status 201, got %d: %s", w.Code, w.Body.String())
		}

		var p model.Portfolio
		if err := json.NewDecoder(w.Body).Decode(&p); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
		if p.Name != "Retirement" {
			t.Errorf("Expected trimmed name 'Retirement', got '%s'", p.Name)
		}
		if p.BaseCurrency != "EUR" {
			t.Errorf("Expected base currency 'EUR', got '%s'", p.BaseCurrency)
		}
		if p.OwnerID != testutil.DefaultOwner {
			t.Errorf("Expected owner '%s', got '%s'", testutil.DefaultOwner, p.OwnerID)
		}
	})

	t.Run("create returns 400 with field errors", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestServices(t, db, testutil.NewMockProvider())
		handler := handlers.NewPortfolioHandler(svc.Portfolio, svc.Investment)

		req := newOwnerRequest(t, http.MethodPost, "/api/portfolio", nil, `{"name":"   ","baseCurrency":"XXY"}`)
		w := httptest.NewRecorder()

		handler.CreatePortfolio(w, req)

		if w.Code != http.StatusBadRequest {
			t.Fatalf("Expected status 400, got %d", w.Code)
		}

		var body struct {
			Error   string            `json:"error"`
			Details map[string]string `json:"details"`
		}
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
		if _, ok := body.Details["name"]; !ok {
			t.Errorf("Expected a name error, got %v", body.Details)
		}
		if _, ok := body.Details["baseCurrency"]; !ok {
			t.Errorf("Expected a baseCurrency error, got %v", body.Details)
		}
	})

	t.Run("create returns 400 for malformed JSON", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestServices(t, db, testutil.NewMockProvider())
		handler := handlers.NewPortfolioHandler(svc.Portfolio, svc.Investment)

		req := newOwnerRequest(t, http.MethodPost, "/api/portfolio", nil, `{"name":`)
		w := httptest.NewRecorder()

		handler.CreatePortfolio(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("Expected status 400, got %d", w.Code)
		}
		if body := decodeError(t, w); body.Error != "invalid request body" {
			t.Errorf("Expected 'invalid request body', got '%s'", body.Error)
		}
	})

	t.Run("get returns 404 for another owner's portfolio", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestServices(t, db, testutil.NewMockProvider())
		handler := handlers.NewPortfolioHandler(svc.Portfolio, svc.Investment)

		theirs := testutil.NewPortfolio().WithOwner("user-2").Build(t, db)

		req := newOwnerRequest(t, http.MethodGet, "/api/portfolio/"+theirs.ID, map[string]string{"uuid": theirs.ID}, nil)
		w := httptest.NewRecorder()

		handler.GetPortfolio(w, req)

		if w.Code != http.StatusNotFound {
			t.Errorf("Expected status 404, got %d", w.Code)
		}
		if body := decodeError(t, w); body.Error != "portfolio not found" {
			t.Errorf("Expected 'portfolio not found', got '%s'", body.Error)
		}
	})

	t.Run("update changes only supplied fields", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestServices(t, db, testutil.NewMockProvider())
		handler := handlers.NewPortfolioHandler(svc.Portfolio, svc.Investment)

		p := testutil.NewPortfolio().WithName("Before").WithBaseCurrency("USD").Build(t, db)

		req := newOwnerRequest(t, http.MethodPut, "/api/portfolio/"+p.ID, map[string]string{"uuid": p.ID}, `{"name":"After"}`)
		w := httptest.NewRecorder()

		handler.UpdatePortfolio(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
		}

		var updated model.Portfolio
		if err := json.NewDecoder(w.Body).Decode(&updated); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
		if updated.Name != "After" {
			t.Errorf("Expected name 'After', got '%s'", updated.Name)
		}
		if updated.BaseCurrency != "USD" {
			t.Errorf("Expected base currency to stay 'USD', got '%s'", updated.BaseCurrency)
		}
	})

	t.Run("delete returns 204 then 404", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestServices(t, db, testutil.NewMockProvider())
		handler := handlers.NewPortfolioHandler(svc.Portfolio, svc.Investment)

		p := testutil.NewPortfolio().Build(t, db)
		params := map[string]string{"uuid": p.ID}

		w := httptest.NewRecorder()
		handler.DeletePortfolio(w, newOwnerRequest(t, http.MethodDelete, "/api/portfolio/"+p.ID, params, nil))
		if w.Code != http.StatusNoContent {
			t.Fatalf("Expected status 204, got %d", w.Code)
		}

		w = httptest.NewRecorder()
		handler.DeletePortfolio(w, newOwnerRequest(t, http.MethodDelete, "/api/portfolio/"+p.ID, params, nil))
		if w.Code != http.StatusNotFound {
			t.Errorf("Expected status 404, got %d", w.Code)
		}
	})
}

// TestPortfolioHandler_AddPurchase tests POST /api/portfolio/{uuid}/purchase.
//
// A purchase that opens a position returns 201; one merged into an existing
// position returns 200.
func TestPortfolioHandler_AddPurchase(t *testing.T) {
	t.Run("first purchase returns 201, second merges with 200", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestServices(t, db, testutil.NewMockProvider())
		handler := handlers.NewPortfolioHandler(svc.Portfolio, svc.Investment)

		p := testutil.NewPortfolio().Build(t, db)
		params := map[string]string{"uuid": p.ID}

		w := httptest.NewRecorder()
		handler.AddPurchase(w, newOwnerRequest(t, http.MethodPost, "/api/portfolio/"+p.ID+"/purchase", params,
			`{"ticker":"aapl","assetClass":"stock","currency":"USD","quantity":"10","price":"150"}`))

		if w.Code != http.StatusCreated {
			t.Fatalf("Expected status 201, got %d: %s", w.Code, w.Body.String())
		}

		var first model.PurchaseResult
		if err := json.NewDecoder(w.Body).Decode(&first); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
		if first.Aggregated {
			t.Error("Expected first purchase not to be aggregated")
		}

		w = httptest.NewRecorder()
		handler.AddPurchase(w, newOwnerRequest(t, http.MethodPost, "/api/portfolio/"+p.ID+"/purchase", params,
			`{"ticker":"AAPL","assetClass":"stock","currency":"USD","quantity":5,"price":160}`))

		if w.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
		}

		var second model.PurchaseResult
		if err := json.NewDecoder(w.Body).Decode(&second); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
		if !second.Aggregated {
			t.Error("Expected second purchase to be aggregated")
		}
		if second.InvestmentID != first.InvestmentID {
			t.Errorf("Expected same investment, got %s and %s", first.InvestmentID, second.InvestmentID)
		}
		if !second.TotalQuantity.Equal(decimal.NewFromInt(15)) {
			t.Errorf("Expected total quantity 15, got %s", second.TotalQuantity)
		}
		if second.AverageCost.StringFixed(6) != "153.333333" {
			t.Errorf("Expected average cost 153.333333, got %s", second.AverageCost)
		}
	})

	t.Run("invalid purchase returns 400 and writes nothing", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestServices(t, db, testutil.NewMockProvider())
		handler := handlers.NewPortfolioHandler(svc.Portfolio, svc.Investment)

		p := testutil.NewPortfolio().Build(t, db)

		w := httptest.NewRecorder()
		handler.AddPurchase(w, newOwnerRequest(t, http.MethodPost, "/api/portfolio/"+p.ID+"/purchase",
			map[string]string{"uuid": p.ID},
			`{"ticker":"AAPL","assetClass":"stock","currency":"USD","quantity":"-1","price":"150"}`))

		if w.Code != http.StatusBadRequest {
			t.Fatalf("Expected status 400, got %d", w.Code)
		}

		var count int
		if err := db.QueryRow(`SELECT COUNT(*) FROM investment`).Scan(&count); err != nil {
			t.Fatalf("Failed to count investments: %v", err)
		}
		if count != 0 {
			t.Errorf("Expected no investments, got %d", count)
		}
	})

	t.Run("currency mismatch returns 400", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestServices(t, db, testutil.NewMockProvider())
		handler := handlers.NewPortfolioHandler(svc.Portfolio, svc.Investment)

		p := testutil.NewPortfolio().Build(t, db)
		testutil.NewInvestment(p.ID, "AAPL").WithCurrency("USD").Build(t, db)

		w := httptest.NewRecorder()
		handler.AddPurchase(w, newOwnerRequest(t, http.MethodPost, "/api/portfolio/"+p.ID+"/purchase",
			map[string]string{"uuid": p.ID},
			`{"ticker":"AAPL","assetClass":"stock","currency":"EUR","quantity":"1","price":"150"}`))

		if w.Code != http.StatusBadRequest {
			t.Errorf("Expected status 400, got %d: %s", w.Code, w.Body.String())
		}
	})

	t.Run("unknown portfolio returns 404", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestServices(t, db, testutil.NewMockProvider())
		handler := handlers.NewPortfolioHandler(svc.Portfolio, svc.Investment)

		id := testutil.MakeID()
		w := httptest.NewRecorder()
		handler.AddPurchase(w, newOwnerRequest(t, http.MethodPost, "/api/portfolio/"+id+"/purchase",
			map[string]string{"uuid": id},
			`{"ticker":"AAPL","assetClass":"stock","currency":"USD","quantity":"1","price":"150"}`))

		if w.Code != http.StatusNotFound {
			t.Errorf("Expected status 404, got %d", w.Code)
		}
	})
}

// TestPortfolioHandler_PortfolioSummary tests GET /api/portfolio/{uuid}/summary.
func TestPortfolioHandler_PortfolioSummary(t *testing.T) {
	t.Run("values positions in the base currency", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		provider := testutil.NewMockProvider().WithRate("USD", "EUR", "0.9")
		svc := testutil.NewTestServices(t, db, provider)
		handler := handlers.NewPortfolioHandler(svc.Portfolio, svc.Investment)

		p := testutil.NewPortfolio().WithBaseCurrency("EUR").Build(t, db)
		testutil.NewInvestment(p.ID, "AAPL").WithPosition("10", "100").WithPrice("120").Build(t, db)

		w := httptest.NewRecorder()
		handler.PortfolioSummary(w, newOwnerRequest(t, http.MethodGet, "/api/portfolio/"+p.ID+"/summary",
			map[string]string{"uuid": p.ID}, nil))

		if w.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
		}

		var summary model.PortfolioSummary
		if err := json.NewDecoder(w.Body).Decode(&summary); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
		if summary.BaseCurrency != "EUR" {
			t.Errorf("Expected base currency EUR, got %s", summary.BaseCurrency)
		}
		if !summary.TotalValue.Equal(decimal.NewFromInt(1080)) {
			t.Errorf("Expected total value 1080, got %s", summary.TotalValue)
		}
		if !summary.TotalCost.Equal(decimal.NewFromInt(900)) {
			t.Errorf("Expected total cost 900, got %s", summary.TotalCost)
		}
	})

	t.Run("returns 502 with retryable when a rate is unavailable", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestServices(t, db, testutil.NewMockProvider().Unavailable())
		handler := handlers.NewPortfolioHandler(svc.Portfolio, svc.Investment)

		p := testutil.NewPortfolio().WithBaseCurrency("EUR").Build(t, db)
		testutil.NewInvestment(p.ID, "AAPL").WithPrice("120").Build(t, db)

		w := httptest.NewRecorder()
		handler.PortfolioSummary(w, newOwnerRequest(t, http.MethodGet, "/api/portfolio/"+p.ID+"/summary",
			map[string]string{"uuid": p.ID}, nil))

		if w.Code != http.StatusBadGateway {
			t.Fatalf("Expected status 502, got %d: %s", w.Code, w.Body.String())
		}
		if body := decodeError(t, w); !body.Retryable {
			t.Error("Expected retryable to be true")
		}
	})

	t.Run("refresh=true fetches stale quotes first", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		provider := testutil.NewMockProvider().WithPrice("AAPL", "200")
		svc := testutil.NewTestServices(t, db, provider)
		handler := handlers.NewPortfolioHandler(svc.Portfolio, svc.Investment)

		p := testutil.NewPortfolio().Build(t, db)
		testutil.NewInvestment(p.ID, "AAPL").WithPosition("2", "100").
			WithPriceAt("150", time.Now().Add(-24*time.Hour)).Build(t, db)

		req := newOwnerRequest(t, http.MethodGet, "/api/portfolio/"+p.ID+"/summary?refresh=true",
			map[string]string{"uuid": p.ID}, nil)
		w := httptest.NewRecorder()
		handler.PortfolioSummary(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
		}

		var summary model.PortfolioSummary
		if err := json.NewDecoder(w.Body).Decode(&summary); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
		if !summary.TotalValue.Equal(decimal.NewFromInt(400)) {
			t.Errorf("Expected total value 400, got %s", summary.TotalValue)
		}
	})

	t.Run("invalid refresh parameter returns 400", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestServices(t, db, testutil.NewMockProvider())
		handler := handlers.NewPortfolioHandler(svc.Portfolio, svc.Investment)

		p := testutil.NewPortfolio().Build(t, db)

		w := httptest.NewRecorder()
		handler.PortfolioSummary(w, newOwnerRequest(t, http.MethodGet, "/api/portfolio/"+p.ID+"/summary?refresh=maybe",
			map[string]string{"uuid": p.ID}, nil))

		if w.Code != http.StatusBadRequest {
			t.Errorf("Expected status 400, got %d", w.Code)
		}
	})
}

func TestPortfolioHandler_PortfolioInvestments(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := testutil.NewTestServices(t, db, testutil.NewMockProvider())
	handler := handlers.NewPortfolioHandler(svc.Portfolio, svc.Investment)

	p := testutil.NewPortfolio().Build(t, db)
	testutil.NewInvestment(p.ID, "AAPL").Build(t, db)
	testutil.NewInvestment(p.ID, "MSFT").Build(t, db)

	w := httptest.NewRecorder()
	handler.PortfolioInvestments(w, newOwnerRequest(t, http.MethodGet, "/api/portfolio/"+p.ID+"/investment",
		map[string]string{"uuid": p.ID}, nil))

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var investments []model.Investment
	if err := json.NewDecoder(w.Body).Decode(&investments); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(investments) != 2 {
		t.Errorf("Expected 2 investments, got %d", len(investments))
	}
}
