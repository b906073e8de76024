package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/ndewijer/portfolio-valuation-backend/internal/model"
	"github.com/ndewijer/portfolio-valuation-backend/internal/testutil"
)

// TestPriceService_RefreshStale tests the scheduled refresh.
//
// Fresh quotes are skipped, a failing ticker does not stop the run and every
// currency pair a portfolio needs is refreshed.
func TestPriceService_RefreshStale(t *testing.T) {
	ctx := context.Background()

	// Setup
	db := testutil.SetupTestDB(t)
	provider := testutil.NewMockProvider().
		WithPrice("AAPL", "190").
		WithPrice("BTC", "60000").
		WithRate("USD", "EUR", "0.92")
	svc := testutil.NewTestServices(t, db, provider)

	eur := testutil.NewPortfolio().WithBaseCurrency("EUR").Build(t, db)
	testutil.NewInvestment(eur.ID, "AAPL").Build(t, db)
	testutil.NewInvestment(eur.ID, "BTC").WithAssetClass(model.AssetClassCrypto).Build(t, db)
	testutil.NewInvestment(eur.ID, "DELISTED").Build(t, db)

	usd := testutil.NewPortfolio().Build(t, db)
	testutil.NewInvestment(usd.ID, "MSFT").Build(t, db)
	testutil.CreatePrice(t, db, "MSFT", "400", "USD", time.Now())

	// Execute
	report, err := svc.Prices.RefreshStale(ctx)

	// Assert
	if err != nil {
		t.Fatalf("RefreshStale() returned unexpected error: %v", err)
	}
	if report.Prices != 2 {
		t.Errorf("Expected 2 prices refreshed (AAPL, BTC), got %d", report.Prices)
	}
	if report.Failures != 1 {
		t.Errorf("Expected 1 failure (DELISTED), got %d", report.Failures)
	}
	if report.Rates != 1 {
		t.Errorf("Expected 1 currency pair (USD/EUR), got %d", report.Rates)
	}

	prices, rates := provider.Calls()
	if prices != 3 {
		t.Errorf("Expected 3 price fetches, MSFT skipped as fresh, got %d", prices)
	}
	if rates != 1 {
		t.Errorf("Expected 1 rate fetch, got %d", rates)
	}

	aapl, err := svc.Investment.GetInvestments(ctx, eur.OwnerID, eur.ID)
	if err != nil {
		t.Fatalf("GetInvestments() returned unexpected error: %v", err)
	}
	for _, inv := range aapl {
		if inv.Ticker == "AAPL" && (!inv.CurrentPrice.Valid || !inv.CurrentPrice.Decimal.Equal(dec("190"))) {
			t.Errorf("Expected AAPL price 190 on the position, got %v", inv.CurrentPrice)
		}
	}
}

// TestPriceService_RefreshPrice tests quotes in a foreign currency.
func TestPriceService_RefreshPrice(t *testing.T) {
	ctx := context.Background()

	t.Run("stores the quote on every position holding the ticker", func(t *testing.T) {
		// Setup
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestServices(t, db, testutil.NewMockProvider().WithPrice("VOO", "480.12"))
		p1 := testutil.NewPortfolio().Build(t, db)
		p2 := testutil.NewPortfolio().Build(t, db)
		a := testutil.NewInvestment(p1.ID, "VOO").WithAssetClass(model.AssetClassETF).Build(t, db)
		b := testutil.NewInvestment(p2.ID, "VOO").WithAssetClass(model.AssetClassETF).Build(t, db)

		// Execute
		quote, err := svc.Prices.RefreshPrice(ctx, "VOO", model.AssetClassETF, "USD")

		// Assert
		if err != nil {
			t.Fatalf("RefreshPrice() returned unexpected error: %v", err)
		}
		if !quote.Price.Equal(dec("480.12")) {
			t.Errorf("Expected 480.12, got %s", quote.Price)
		}
		for _, id := range []string{a.ID, b.ID} {
			inv, err := svc.Investment.GetInvestment(ctx, testutil.DefaultOwner, id)
			if err != nil {
				t.Fatalf("GetInvestment() returned unexpected error: %v", err)
			}
			if !inv.CurrentPrice.Valid || !inv.CurrentPrice.Decimal.Equal(dec("480.12")) {
				t.Errorf("Expected price stamped on %s, got %v", id, inv.CurrentPrice)
			}
		}
	})

	t.Run("foreign quote is kept as quoted and valued with a stale rate", func(t *testing.T) {
		// Setup
		db := testutil.SetupTestDB(t)
		provider := testutil.NewMockProvider().WithQuote("AAPL", "100", "USD")
		svc := testutil.NewTestServices(t, db, provider)
		p := testutil.NewPortfolio().WithBaseCurrency("EUR").Build(t, db)
		inv := testutil.NewInvestment(p.ID, "AAPL").WithCurrency("EUR").WithPosition("4", "40").Build(t, db)
		testutil.CreateRate(t, db, "USD", "EUR", "0.50", time.Now().Add(-72*time.Hour))

		// Execute
		quote, err := svc.Prices.RefreshPrice(ctx, "AAPL", model.AssetClassStock, "EUR")

		// Assert
		if err != nil {
			t.Fatalf("RefreshPrice() returned unexpected error: %v", err)
		}
		if !quote.Price.Equal(dec("100")) || quote.Currency != "USD" {
			t.Errorf("Expected 100 USD, got %s %s", quote.Price, quote.Currency)
		}

		stored, err := svc.Investment.GetInvestment(ctx, testutil.DefaultOwner, inv.ID)
		if err != nil {
			t.Fatalf("GetInvestment() returned unexpected error: %v", err)
		}
		if !stored.CurrentPrice.Decimal.Equal(dec("100")) || stored.PriceCurrency != "USD" {
			t.Errorf("Expected stored price 100 USD, got %s %s", stored.CurrentPrice.Decimal, stored.PriceCurrency)
		}

		native, base, err := svc.Valuation.ConvertInvestment(ctx, stored, p.BaseCurrency)
		if err != nil {
			t.Fatalf("ConvertInvestment() returned unexpected error: %v", err)
		}
		if !native.CurrentValue.Equal(dec("200")) {
			t.Errorf("Expected native value 4 x 50 = 200 EUR, got %s", native.CurrentValue)
		}
		if !native.RateStale || !base.RateStale {
			t.Errorf("Expected stale flag on native and base metrics, got %v/%v", native.RateStale, base.RateStale)
		}

		_, rates := provider.Calls()
		if rates != 1 {
			t.Errorf("Expected the stale rate to be refetched once, got %d calls", rates)
		}
	})
}
