package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ndewijer/portfolio-valuation-backend/internal/api/request"
	"github.com/ndewijer/portfolio-valuation-backend/internal/apperrors"
	"github.com/ndewijer/portfolio-valuation-backend/internal/lock"
	"github.com/ndewijer/portfolio-valuation-backend/internal/model"
	"github.com/ndewijer/portfolio-valuation-backend/internal/repository"
	"github.com/ndewijer/portfolio-valuation-backend/internal/telemetry"
	"github.com/ndewijer/portfolio-valuation-backend/internal/validation"
	"github.com/ndewijer/portfolio-valuation-backend/internal/valuation"
)

// InvestmentService records purchases and serves positions.
//
// A purchase runs under the position lock for (portfolio, ticker) and inside
// one storage transaction that reads the position, merges the purchase and
// writes both the position and the purchase row. Either both writes land or
// neither does.
type InvestmentService struct {
	db              *sql.DB
	portfolioRepo   *repository.PortfolioRepository
	investmentRepo  *repository.InvestmentRepository
	transactionRepo *repository.TransactionRepository
	locker          lock.Locker
	valuation       *ValuationService
	prices          *PriceService
	logger          zerolog.Logger
	now             func() time.Time
}

// NewInvestmentService creates a new InvestmentService.
func NewInvestmentService(
	db *sql.DB,
	portfolioRepo *repository.PortfolioRepository,
	investmentRepo *repository.InvestmentRepository,
	transactionRepo *repository.TransactionRepository,
	locker lock.Locker,
	valuationService *ValuationService,
	priceService *PriceService,
	logger zerolog.Logger,
) *InvestmentService {
	return &InvestmentService{
		db:              db,
		portfolioRepo:   portfolioRepo,
		investmentRepo:  investmentRepo,
		transactionRepo: transactionRepo,
		locker:          locker,
		valuation:       valuationService,
		prices:          priceService,
		logger:          logger.With().Str("service", "investment").Logger(),
		now:             time.Now,
	}
}

// AddPurchase records a purchase in a portfolio owned by ownerID.
//
// The first purchase of a ticker creates the position verbatim; later ones
// merge into it at the weighted-average cost. If a concurrent writer created
// the position between the read and the insert, the purchase is retried once
// as a merge instead of creating a second position.
func (s *InvestmentService) AddPurchase(ctx context.Context, ownerID, portfolioID string, req request.PurchaseRequest) (model.PurchaseResult, error) {
	const op = "investment.AddPurchase"

	if err := validation.ValidatePurchase(req); err != nil {
		return model.PurchaseResult{}, apperrors.E(apperrors.KindValidation, op, err)
	}
	req = validation.NormalizePurchase(req)

	if _, err := s.portfolioRepo.GetPortfolio(ctx, ownerID, portfolioID); err != nil {
		return model.PurchaseResult{}, err
	}

	var result model.PurchaseResult
	err := lock.WithLock(ctx, s.locker, lock.PositionKey(portfolioID, req.Ticker), func(ctx context.Context) error {
		var err error
		result, err = s.recordPurchase(ctx, portfolioID, req)
		if errors.Is(err, apperrors.ErrDuplicateEntry) {
			s.logger.Warn().
				Str("portfolio_id", portfolioID).
				Str("ticker", req.Ticker).
				Msg("position created concurrently, retrying purchase as merge")
			telemetry.PurchaseConflictRetried()
			result, err = s.recordPurchase(ctx, portfolioID, req)
		}
		return err
	})
	if err != nil {
		return model.PurchaseResult{}, err
	}

	if result.Aggregated {
		telemetry.PurchaseAggregated()
	} else {
		telemetry.PurchaseCreated()
	}

	s.logger.Info().
		Str("portfolio_id", portfolioID).
		Str("investment_id", result.InvestmentID).
		Str("ticker", req.Ticker).
		Bool("aggregated", result.Aggregated).
		Stringer("total_quantity", result.TotalQuantity).
		Msg("purchase recorded")

	return result, nil
}

func (s *InvestmentService) recordPurchase(ctx context.Context, portfolioID string, req request.PurchaseRequest) (model.PurchaseResult, error) {
	const op = "investment.recordPurchase"

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.PurchaseResult{}, apperrors.E(apperrors.KindPersistence, op, fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer func() {
		_ = tx.Rollback()
	}()

	investments := s.investmentRepo.WithTx(tx)

	existing, err := investments.GetInvestmentByTicker(ctx, portfolioID, req.Ticker)
	var holding *valuation.Holding
	switch {
	case err == nil:
		if existing.Currency != req.Currency {
			return model.PurchaseResult{}, apperrors.E(apperrors.KindValidation, op,
				fmt.Errorf("%w: purchase in %s but %s is held in %s",
					apperrors.ErrInvalidCurrency, req.Currency, req.Ticker, existing.Currency))
		}
		holding = &valuation.Holding{Quantity: existing.Quantity, AverageCost: existing.AverageCost}
	case errors.Is(err, apperrors.ErrInvestmentNotFound):
	default:
		return model.PurchaseResult{}, err
	}

	merged, err := valuation.Merge(holding, valuation.Lot{Quantity: req.Quantity, Price: req.Price})
	if err != nil {
		return model.PurchaseResult{}, err
	}

	now := s.now().UTC()
	investmentID := existing.ID

	if merged.Aggregated {
		if err := investments.UpdatePosition(ctx, existing.ID, merged.Quantity, merged.AverageCost, now); err != nil {
			return model.PurchaseResult{}, err
		}
	} else {
		inv := model.Investment{
			ID:          uuid.New().String(),
			PortfolioID: portfolioID,
			Ticker:      req.Ticker,
			Name:        req.Name,
			AssetClass:  model.AssetClass(req.AssetClass),
			Currency:    req.Currency,
			Quantity:    merged.Quantity,
			AverageCost: merged.AverageCost,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := investments.InsertInvestment(ctx, &inv); err != nil {
			return model.PurchaseResult{}, err
		}
		investmentID = inv.ID
	}

	purchasedAt := now
	if req.PurchasedAt != nil && !req.PurchasedAt.IsZero() {
		purchasedAt = req.PurchasedAt.UTC()
	}

	transaction := &model.Transaction{
		ID:           uuid.New().String(),
		InvestmentID: investmentID,
		Type:         model.TransactionTypeBuy,
		Quantity:     req.Quantity,
		Price:        req.Price,
		Currency:     req.Currency,
		Note:         req.Note,
		PurchasedAt:  purchasedAt,
		CreatedAt:    now,
	}
	if err := s.transactionRepo.WithTx(tx).InsertTransaction(ctx, transaction); err != nil {
		return model.PurchaseResult{}, err
	}

	if err := tx.Commit(); err != nil {
		return model.PurchaseResult{}, apperrors.E(apperrors.KindPersistence, op, fmt.Errorf("failed to commit transaction: %w", err))
	}

	return model.PurchaseResult{
		InvestmentID:  investmentID,
		TransactionID: transaction.ID,
		Aggregated:    merged.Aggregated,
		TotalQuantity: merged.Quantity,
		AverageCost:   merged.AverageCost,
	}, nil
}

// GetInvestment retrieves a position owned by ownerID.
func (s *InvestmentService) GetInvestment(ctx context.Context, ownerID, investmentID string) (model.Investment, error) {
	return s.investmentRepo.GetInvestment(ctx, ownerID, investmentID)
}

// GetInvestments retrieves every position of a portfolio owned by ownerID.
func (s *InvestmentService) GetInvestments(ctx context.Context, ownerID, portfolioID string) ([]model.Investment, error) {
	if _, err := s.portfolioRepo.GetPortfolio(ctx, ownerID, portfolioID); err != nil {
		return nil, err
	}
	return s.investmentRepo.GetInvestmentsByPortfolio(ctx, portfolioID)
}

// DeleteInvestment removes a position and its purchase history.
// It takes the position lock so it cannot interleave with a purchase.
func (s *InvestmentService) DeleteInvestment(ctx context.Context, ownerID, investmentID string) error {
	inv, err := s.investmentRepo.GetInvestment(ctx, ownerID, investmentID)
	if err != nil {
		return err
	}
	return lock.WithLock(ctx, s.locker, lock.PositionKey(inv.PortfolioID, inv.Ticker), func(ctx context.Context) error {
		return s.investmentRepo.DeleteInvestment(ctx, ownerID, investmentID)
	})
}

// GetTransactions retrieves the purchase history of a position, oldest first.
func (s *InvestmentService) GetTransactions(ctx context.Context, ownerID, investmentID string) ([]model.Transaction, error) {
	if _, err := s.investmentRepo.GetInvestment(ctx, ownerID, investmentID); err != nil {
		return nil, err
	}
	return s.transactionRepo.GetTransactionsByInvestment(ctx, investmentID)
}

// InvestmentDetail is a position with its valuation in its own currency and
// in its portfolio's base currency.
type InvestmentDetail struct {
	model.Investment
	Native model.InvestmentMetrics `json:"native"`
	Base   model.InvestmentMetrics `json:"base"`
}

// GetInvestmentMetrics values a position natively and in its portfolio's base currency.
func (s *InvestmentService) GetInvestmentMetrics(ctx context.Context, ownerID, investmentID string) (InvestmentDetail, error) {
	inv, err := s.investmentRepo.GetInvestment(ctx, ownerID, investmentID)
	if err != nil {
		return InvestmentDetail{}, err
	}
	portfolio, err := s.portfolioRepo.GetPortfolio(ctx, ownerID, inv.PortfolioID)
	if err != nil {
		return InvestmentDetail{}, err
	}

	native, base, err := s.valuation.ConvertInvestment(ctx, inv, portfolio.BaseCurrency)
	if err != nil {
		return InvestmentDetail{}, err
	}
	return InvestmentDetail{Investment: inv, Native: native, Base: base}, nil
}

// RefreshInvestmentPrice fetches a new quote for a position owned by ownerID.
func (s *InvestmentService) RefreshInvestmentPrice(ctx context.Context, ownerID, investmentID string) (model.Investment, error) {
	inv, err := s.investmentRepo.GetInvestment(ctx, ownerID, investmentID)
	if err != nil {
		return model.Investment{}, err
	}
	return s.prices.RefreshInvestment(ctx, inv)
}
