package api

import (
	"expvar"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/ndewijer/portfolio-valuation-backend/internal/api/handlers"
	custommiddleware "github.com/ndewijer/portfolio-valuation-backend/internal/api/middleware"
	"github.com/ndewijer/portfolio-valuation-backend/internal/config"
	"github.com/ndewijer/portfolio-valuation-backend/internal/service"
	"github.com/ndewijer/portfolio-valuation-backend/internal/telemetry"
)

// Services bundles the services the HTTP layer depends on.
type Services struct {
	System     *service.SystemService
	Portfolio  *service.PortfolioService
	Investment *service.InvestmentService
	Rates      *service.RateService
}

// NewRouter creates and configures the HTTP router
func NewRouter(services Services, cfg *config.Config, logger zerolog.Logger) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(custommiddleware.Logger(logger))
	r.Use(middleware.Recoverer)

	// CORS middleware
	corsMiddleware := custommiddleware.NewCORS(cfg.CORS)
	r.Use(corsMiddleware.Handler)

	r.Handle("/debug/vars", expvar.Handler())

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Use(telemetry.APIRequestMetricsMiddleware)

		// System namespace
		r.Route("/system", func(r chi.Router) {
			systemHandler := handlers.NewSystemHandler(services.System)
			r.Get("/health", systemHandler.Health)
			r.Get("/version", systemHandler.Version)
			r.Put("/provider-key", systemHandler.SetProviderKey)
		})

		r.Get("/exchange-rate", handlers.NewExchangeRateHandler(services.Rates).GetRate)

		r.Group(func(r chi.Router) {
			r.Use(custommiddleware.RequireOwner)

			r.Route("/portfolio", func(r chi.Router) {
				portfolioHandler := handlers.NewPortfolioHandler(services.Portfolio, services.Investment)
				r.Get("/", portfolioHandler.Portfolios)
				r.Post("/", portfolioHandler.CreatePortfolio)

				r.Route("/{uuid}", func(r chi.Router) {
					r.Use(custommiddleware.ValidateUUIDMiddleware)
					r.Get("/", portfolioHandler.GetPortfolio)
					r.Put("/", portfolioHandler.UpdatePortfolio)
					r.Delete("/", portfolioHandler.DeletePortfolio)
					r.Get("/summary", portfolioHandler.PortfolioSummary)
					r.Get("/investment", portfolioHandler.PortfolioInvestments)
					r.Post("/purchase", portfolioHandler.AddPurchase)
				})
			})

			r.Route("/investment/{uuid}", func(r chi.Router) {
				investmentHandler := handlers.NewInvestmentHandler(services.Investment)
				r.Use(custommiddleware.ValidateUUIDMiddleware)
				r.Get("/", investmentHandler.GetInvestment)
				r.Delete("/", investmentHandler.DeleteInvestment)
				r.Get("/transaction", investmentHandler.Transactions)
				r.Post("/price", investmentHandler.RefreshPrice)
			})
		})
	})

	return r
}
