package testutil

import (
	"database/sql"
	"math/rand"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ndewijer/portfolio-valuation-backend/internal/cache"
	"github.com/ndewijer/portfolio-valuation-backend/internal/lock"
	"github.com/ndewijer/portfolio-valuation-backend/internal/logging"
	"github.com/ndewijer/portfolio-valuation-backend/internal/marketdata"
	"github.com/ndewijer/portfolio-valuation-backend/internal/repository"
	"github.com/ndewijer/portfolio-valuation-backend/internal/secret"
	"github.com/ndewijer/portfolio-valuation-backend/internal/service"
)

// TestLockOptions keeps lock waits short so contention tests finish quickly.
var TestLockOptions = lock.Options{
	WaitTimeout:  5 * time.Second,
	MaxHold:      10 * time.Second,
	PollInterval: time.Millisecond,
}

// Services is the full service graph wired the same way the server wires it,
// over a test database and a mock provider.
type Services struct {
	Store      *cache.Store
	Locker     *lock.SQLLocker
	Rates      *service.RateService
	Valuation  *service.ValuationService
	Prices     *service.PriceService
	Investment *service.InvestmentService
	Portfolio  *service.PortfolioService
	System     *service.SystemService
}

// NewTestServices wires every service over db. provider may be a *MockProvider
// or any other marketdata.Provider.
//
// Example usage:
//
//	provider := testutil.NewMockProvider().WithRate("USD", "EUR", "0.9")
//	svc := testutil.NewTestServices(t, db, provider)
//	summary, err := svc.Portfolio.GetPortfolioSummary(ctx, owner, id, false)
func NewTestServices(t *testing.T, db *sql.DB, provider marketdata.Provider) *Services {
	t.Helper()
	return NewTestServicesWithStore(t, db, provider, cache.NewStore(db, cache.DefaultPolicy))
}

// NewTestServicesWithStore is NewTestServices with a caller-supplied cache
// store, e.g. one with a fixed clock.
func NewTestServicesWithStore(t *testing.T, db *sql.DB, provider marketdata.Provider, store *cache.Store) *Services {
	t.Helper()

	logger := logging.Nop()

	portfolioRepo := repository.NewPortfolioRepository(db)
	investmentRepo := repository.NewInvestmentRepository(db)
	transactionRepo := repository.NewTransactionRepository(db)

	locker := lock.NewSQLLocker(repository.NewLeaseRepository(db), TestLockOptions, logger)

	rates := service.NewRateService(store, provider, locker, logger)
	valuationService := service.NewValuationService(rates, logger)
	prices := service.NewPriceService(store, provider, rates, investmentRepo, logger)

	return &Services{
		Store:     store,
		Locker:    locker,
		Rates:     rates,
		Valuation: valuationService,
		Prices:    prices,
		Investment: service.NewInvestmentService(
			db,
			portfolioRepo,
			investmentRepo,
			transactionRepo,
			locker,
			valuationService,
			prices,
			logger,
		),
		Portfolio: service.NewPortfolioService(
			portfolioRepo,
			investmentRepo,
			valuationService,
			prices,
			logger,
		),
		System: NewTestSystemService(t, db),
	}
}

// NewTestSystemService creates a SystemService with a freshly generated encryption key.
func NewTestSystemService(t *testing.T, db *sql.DB) *service.SystemService {
	t.Helper()

	key, err := secret.GenerateKey()
	if err != nil {
		t.Fatalf("Failed to generate encryption key: %v", err)
	}
	box, err := secret.NewBox(key)
	if err != nil {
		t.Fatalf("Failed to create secret box: %v", err)
	}

	return service.NewSystemService(db, repository.NewSettingRepository(db), box, map[string]bool{"scheduler": false}, logging.Nop())
}

// MakeID generates a UUID string for use in tests.
//
// Example usage:
//
//	id := testutil.MakeID()
//	// Returns: "550e8400-e29b-41d4-a716-446655440000"
func MakeID() string {
	return uuid.New().String()
}

// MakeTicker generates a unique ticker symbol for testing.
//
// Example usage:
//
//	ticker := testutil.MakeTicker("AAPL")
//	// Returns: "AAPL1A2B"
func MakeTicker(base string) string {
	if base == "" {
		base = "TEST"
	}
	return base + randomAlphanumeric(4)
}

// MakePortfolioName generates a unique portfolio name for testing.
//
// Example usage:
//
//	name := testutil.MakePortfolioName("MyPortfolio")
//	// Returns: "MyPortfolio ABC123"
func MakePortfolioName(base string) string {
	if base == "" {
		base = "Portfolio"
	}
	return base + " " + randomAlphanumeric(6)
}

// randomAlphanumeric generates a random alphanumeric string of specified length.
func randomAlphanumeric(length int) string {
	const charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	result := make([]byte, length)
	for i := range result {
		//nolint:gosec // G404: Using math/rand for test data generation is acceptable
		result[i] = charset[rand.Intn(len(charset))]
	}
	return string(result)
}
