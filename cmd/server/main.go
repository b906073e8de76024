package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/ndewijer/portfolio-valuation-backend/internal/api"
	"github.com/ndewijer/portfolio-valuation-backend/internal/cache"
	"github.com/ndewijer/portfolio-valuation-backend/internal/config"
	"github.com/ndewijer/portfolio-valuation-backend/internal/database"
	"github.com/ndewijer/portfolio-valuation-backend/internal/lock"
	"github.com/ndewijer/portfolio-valuation-backend/internal/logging"
	"github.com/ndewijer/portfolio-valuation-backend/internal/marketdata"
	"github.com/ndewijer/portfolio-valuation-backend/internal/repository"
	"github.com/ndewijer/portfolio-valuation-backend/internal/scheduler"
	"github.com/ndewijer/portfolio-valuation-backend/internal/secret"
	"github.com/ndewijer/portfolio-valuation-backend/internal/service"
	"github.com/ndewijer/portfolio-valuation-backend/internal/version"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		bootLogger := logging.New("info", "console")
		bootLogger.Fatal().Err(err).Msg("failed to load configuration")
	}

	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info().Str("version", version.Version).Msg("starting portfolio valuation backend")

	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("server stopped with error")
	}
	logger.Info().Msg("server exited")
}

func run(cfg *config.Config, logger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Open database connection
	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := database.Migrate(ctx, db); err != nil {
		return err
	}
	logger.Info().Str("path", cfg.Database.Path).Msg("connected to database")

	// Create repositories
	portfolioRepo := repository.NewPortfolioRepository(db)
	investmentRepo := repository.NewInvestmentRepository(db)
	transactionRepo := repository.NewTransactionRepository(db)
	quotaRepo := repository.NewQuotaRepository(db)

	store := cache.NewStore(db, cache.Policy{
		StockTTL:        cfg.Cache.StockTTL,
		CryptoTTL:       cfg.Cache.CryptoTTL,
		ExchangeRateTTL: cfg.Cache.ExchangeRateTTL,
	})
	locker := lock.NewSQLLocker(repository.NewLeaseRepository(db), lock.Options{
		WaitTimeout:  cfg.Lock.WaitTimeout,
		MaxHold:      cfg.Lock.MaxHold,
		PollInterval: cfg.Lock.PollInterval,
	}, logger)

	var box *secret.Box
	if cfg.Security.EncryptionKey != "" {
		if box, err = secret.NewBox(cfg.Security.EncryptionKey); err != nil {
			return err
		}
	} else {
		logger.Warn().Msg("ENCRYPTION_KEY not set, storing a provider API key is disabled")
	}

	systemService := service.NewSystemService(db, repository.NewSettingRepository(db), box,
		map[string]bool{"scheduler": cfg.Scheduler.Enabled}, logger)

	provider := marketdata.NewYahooClient(
		marketdata.WithBaseURL(cfg.MarketData.BaseURL),
		marketdata.WithTimeout(cfg.MarketData.Timeout),
		marketdata.WithRateLimit(cfg.MarketData.RateLimit),
		marketdata.WithQuota(quotaRepo, cfg.MarketData.QuotaPerMinute),
		marketdata.WithKeySource(systemService.ProviderKey),
		marketdata.WithLogger(logger),
	)

	// Create services
	rateService := service.NewRateService(store, provider, locker, logger)
	valuationService := service.NewValuationService(rateService, logger)
	priceService := service.NewPriceService(store, provider, rateService, investmentRepo, logger)
	investmentService := service.NewInvestmentService(
		db,
		portfolioRepo,
		investmentRepo,
		transactionRepo,
		locker,
		valuationService,
		priceService,
		logger,
	)
	portfolioService := service.NewPortfolioService(
		portfolioRepo,
		investmentRepo,
		valuationService,
		priceService,
		logger,
	)

	if cfg.Scheduler.Enabled {
		sched, err := scheduler.New(cfg.Scheduler.RefreshSchedule, 2*time.Minute, priceService, quotaRepo, logger)
		if err != nil {
			return err
		}
		sched.Start(ctx)
		defer sched.Stop()
	}

	// Create router
	router := api.NewRouter(api.Services{
		System:     systemService,
		Portfolio:  portfolioService,
		Investment: investmentService,
		Rates:      rateService,
	}, cfg, logger)

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.Server.Addr).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	// Wait for interrupt signal for graceful shutdown
	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}
