package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ndewijer/portfolio-valuation-backend/internal/api/request"
	"github.com/ndewijer/portfolio-valuation-backend/internal/apperrors"
	"github.com/ndewijer/portfolio-valuation-backend/internal/model"
	"github.com/ndewijer/portfolio-valuation-backend/internal/money"
	"github.com/ndewijer/portfolio-valuation-backend/internal/repository"
	"github.com/ndewijer/portfolio-valuation-backend/internal/validation"
	"github.com/ndewijer/portfolio-valuation-backend/internal/valuation"
)

// conversionConcurrency bounds the parallel currency conversions of one summary.
const conversionConcurrency = 8

// PortfolioService handles portfolio-related business logic operations.
// Every operation is scoped to the owning user; a portfolio owned by someone
// else is reported as not found.
type PortfolioService struct {
	portfolioRepo  *repository.PortfolioRepository
	investmentRepo *repository.InvestmentRepository
	valuation      *ValuationService
	prices         *PriceService
	logger         zerolog.Logger
	now            func() time.Time
}

// NewPortfolioService creates a new PortfolioService with the provided dependencies.
func NewPortfolioService(
	portfolioRepo *repository.PortfolioRepository,
	investmentRepo *repository.InvestmentRepository,
	valuationService *ValuationService,
	priceService *PriceService,
	logger zerolog.Logger,
) *PortfolioService {
	return &PortfolioService{
		portfolioRepo:  portfolioRepo,
		investmentRepo: investmentRepo,
		valuation:      valuationService,
		prices:         priceService,
		logger:         logger.With().Str("service", "portfolio").Logger(),
		now:            time.Now,
	}
}

// GetPortfolios retrieves every portfolio owned by ownerID.
func (s *PortfolioService) GetPortfolios(ctx context.Context, ownerID string) ([]model.Portfolio, error) {
	return s.portfolioRepo.GetPortfolios(ctx, ownerID)
}

// GetPortfolio retrieves a single portfolio owned by ownerID.
func (s *PortfolioService) GetPortfolio(ctx context.Context, ownerID, portfolioID string) (model.Portfolio, error) {
	return s.portfolioRepo.GetPortfolio(ctx, ownerID, portfolioID)
}

// CreatePortfolio creates a portfolio for ownerID.
func (s *PortfolioService) CreatePortfolio(ctx context.Context, ownerID string, req request.CreatePortfolioRequest) (model.Portfolio, error) {
	const op = "portfolio.CreatePortfolio"

	if err := validation.ValidateCreatePortfolio(req); err != nil {
		return model.Portfolio{}, apperrors.E(apperrors.KindValidation, op, err)
	}

	now := s.now().UTC()
	p := model.Portfolio{
		ID:           uuid.New().String(),
		OwnerID:      ownerID,
		Name:         strings.TrimSpace(req.Name),
		Description:  strings.TrimSpace(req.Description),
		BaseCurrency: money.NormalizeCurrency(req.BaseCurrency),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.portfolioRepo.InsertPortfolio(ctx, &p); err != nil {
		return model.Portfolio{}, err
	}

	s.logger.Info().Str("portfolio_id", p.ID).Str("base_currency", p.BaseCurrency).Msg("portfolio created")
	return p, nil
}

// UpdatePortfolio applies the fields present in req. Changing the base
// currency only changes how future summaries are reported.
func (s *PortfolioService) UpdatePortfolio(ctx context.Context, ownerID, portfolioID string, req request.UpdatePortfolioRequest) (model.Portfolio, error) {
	const op = "portfolio.UpdatePortfolio"

	if err := validation.ValidateUpdatePortfolio(req); err != nil {
		return model.Portfolio{}, apperrors.E(apperrors.KindValidation, op, err)
	}

	p, err := s.portfolioRepo.GetPortfolio(ctx, ownerID, portfolioID)
	if err != nil {
		return model.Portfolio{}, err
	}

	if req.Name != nil {
		p.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		p.Description = strings.TrimSpace(*req.Description)
	}
	if req.BaseCurrency != nil {
		p.BaseCurrency = money.NormalizeCurrency(*req.BaseCurrency)
	}
	p.UpdatedAt = s.now().UTC()

	if err := s.portfolioRepo.UpdatePortfolio(ctx, &p); err != nil {
		return model.Portfolio{}, err
	}
	return p, nil
}

// DeletePortfolio removes a portfolio with all its positions and purchases.
func (s *PortfolioService) DeletePortfolio(ctx context.Context, ownerID, portfolioID string) error {
	if err := s.portfolioRepo.DeletePortfolio(ctx, ownerID, portfolioID); err != nil {
		return err
	}
	s.logger.Info().Str("portfolio_id", portfolioID).Msg("portfolio deleted")
	return nil
}

// GetPortfolioSummary values every position in the portfolio's base currency
// and aggregates totals, percent of portfolio, allocation and best/worst performers.
//
// With refresh set, stale quotes are refreshed first; a failed refresh keeps
// the last known price. Conversions run in parallel and any failure fails the
// whole summary: partial totals are never returned.
func (s *PortfolioService) GetPortfolioSummary(ctx context.Context, ownerID, portfolioID string, refresh bool) (model.PortfolioSummary, error) {
	p, err := s.portfolioRepo.GetPortfolio(ctx, ownerID, portfolioID)
	if err != nil {
		return model.PortfolioSummary{}, err
	}

	investments, err := s.investmentRepo.GetInvestmentsByPortfolio(ctx, p.ID)
	if err != nil {
		return model.PortfolioSummary{}, err
	}

	if refresh && len(investments) > 0 {
		investments = s.prices.RefreshStaleInvestments(ctx, investments)
	}

	positions := make([]model.PositionValuation, len(investments))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(conversionConcurrency)
	for i, inv := range investments {
		g.Go(func() error {
			pv, err := s.valuation.ValuePosition(gctx, inv, p.BaseCurrency)
			if err != nil {
				return err
			}
			positions[i] = pv
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.logger.Warn().Err(err).Str("portfolio_id", p.ID).Msg("portfolio summary failed")
		return model.PortfolioSummary{}, err
	}

	summary := valuation.Aggregate(p.BaseCurrency, positions)
	summary.PortfolioID = p.ID
	summary.Name = p.Name
	summary.GeneratedAt = s.now().UTC()

	return summary, nil
}
