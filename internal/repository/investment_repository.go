package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ndewijer/portfolio-valuation-backend/internal/apperrors"
	"github.com/ndewijer/portfolio-valuation-backend/internal/model"
)

// InvestmentRepository provides data access methods for the investment table.
// An investment row is a position: one per (portfolio, ticker).
type InvestmentRepository struct {
	db *sql.DB
	tx *sql.Tx
}

// NewInvestmentRepository creates a new InvestmentRepository with the provided database connection.
func NewInvestmentRepository(db *sql.DB) *InvestmentRepository {
	return &InvestmentRepository{db: db}
}

// WithTx returns a new InvestmentRepository scoped to the provided transaction.
func (r *InvestmentRepository) WithTx(tx *sql.Tx) *InvestmentRepository {
	return &InvestmentRepository{
		db: r.db,
		tx: tx,
	}
}

// getQuerier returns the active transaction if one is set, otherwise the database connection.
func (r *InvestmentRepository) getQuerier() querier {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

const investmentColumns = `i.id, i.portfolio_id, i.ticker, i.name, i.asset_class, i.currency,
	i.quantity, i.average_cost, i.current_price, i.current_price_currency, i.price_updated_at,
	i.created_at, i.updated_at`

// TickerRef identifies a ticker that at least one position holds.
type TickerRef struct {
	Ticker     string
	AssetClass model.AssetClass
	Currency   string
}

// CurrencyPair is a conversion some portfolio needs: investment currency to base currency.
type CurrencyPair struct {
	From string
	To   string
}

// GetInvestment retrieves an investment by ID if its portfolio belongs to ownerID.
// Returns ErrInvestmentNotFound otherwise.
func (r *InvestmentRepository) GetInvestment(ctx context.Context, ownerID, investmentID string) (model.Investment, error) {
	query := `SELECT ` + investmentColumns + `
		FROM investment i
		JOIN portfolio p ON p.id = i.portfolio_id
		WHERE i.id = ? AND p.owner_id = ?`

	inv, err := scanInvestment(r.getQuerier().QueryRowContext(ctx, query, investmentID, ownerID))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Investment{}, apperrors.ErrInvestmentNotFound
	}
	if err != nil {
		return model.Investment{}, storageError("investment.GetInvestment", err)
	}
	return inv, nil
}

// GetInvestmentByTicker retrieves the position for ticker in a portfolio.
// Returns ErrInvestmentNotFound when the portfolio does not hold the ticker yet.
func (r *InvestmentRepository) GetInvestmentByTicker(ctx context.Context, portfolioID, ticker string) (model.Investment, error) {
	query := `SELECT ` + investmentColumns + `
		FROM investment i
		WHERE i.portfolio_id = ? AND i.ticker = ?`

	inv, err := scanInvestment(r.getQuerier().QueryRowContext(ctx, query, portfolioID, ticker))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Investment{}, apperrors.ErrInvestmentNotFound
	}
	if err != nil {
		return model.Investment{}, storageError("investment.GetInvestmentByTicker", err)
	}
	return inv, nil
}

// GetInvestmentsByPortfolio retrieves every position of a portfolio ordered by ticker.
// Returns an empty slice for an empty portfolio.
func (r *InvestmentRepository) GetInvestmentsByPortfolio(ctx context.Context, portfolioID string) ([]model.Investment, error) {
	query := `SELECT ` + investmentColumns + `
		FROM investment i
		WHERE i.portfolio_id = ?
		ORDER BY i.ticker`

	rows, err := r.getQuerier().QueryContext(ctx, query, portfolioID)
	if err != nil {
		return nil, storageError("investment.GetInvestmentsByPortfolio", fmt.Errorf("failed to query investment table: %w", err))
	}
	defer rows.Close()

	investments := []model.Investment{}
	for rows.Next() {
		inv, err := scanInvestment(rows)
		if err != nil {
			return nil, storageError("investment.GetInvestmentsByPortfolio", err)
		}
		investments = append(investments, inv)
	}
	if err = rows.Err(); err != nil {
		return nil, storageError("investment.GetInvestmentsByPortfolio", fmt.Errorf("error iterating investment table: %w", err))
	}

	return investments, nil
}

// InsertInvestment stores a new position. A second position for the same
// (portfolio, ticker) fails with ErrDuplicateEntry.
func (r *InvestmentRepository) InsertInvestment(ctx context.Context, inv *model.Investment) error {
	query := `
		INSERT INTO investment (id, portfolio_id, ticker, name, asset_class, currency,
			quantity, average_cost, current_price, current_price_currency, price_updated_at,
			created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.getQuerier().ExecContext(ctx, query,
		inv.ID,
		inv.PortfolioID,
		inv.Ticker,
		inv.Name,
		string(inv.AssetClass),
		inv.Currency,
		inv.Quantity.String(),
		inv.AverageCost.String(),
		nullDecimal(inv.CurrentPrice),
		nullString(inv.PriceCurrency),
		nullTime(inv.PriceUpdatedAt),
		FormatTime(inv.CreatedAt),
		FormatTime(inv.UpdatedAt),
	)
	if err != nil {
		return storageError("investment.InsertInvestment", err)
	}
	return nil
}

// UpdatePosition writes the merged quantity and average cost of a position.
func (r *InvestmentRepository) UpdatePosition(ctx context.Context, investmentID string, quantity, averageCost decimal.Decimal, updatedAt time.Time) error {
	result, err := r.getQuerier().ExecContext(ctx, `
		UPDATE investment
		SET quantity = ?, average_cost = ?, updated_at = ?
		WHERE id = ?`,
		quantity.String(),
		averageCost.String(),
		FormatTime(updatedAt),
		investmentID,
	)
	if err != nil {
		return storageError("investment.UpdatePosition", err)
	}
	return expectOneRow(result, apperrors.ErrInvestmentNotFound)
}

// UpdatePriceForTicker stamps a quote of price in quoteCurrency on every
// position holding ticker in positionCurrency. Positions held in another
// currency are left alone. Returns the number of positions updated.
func (r *InvestmentRepository) UpdatePriceForTicker(ctx context.Context, ticker, positionCurrency string, price decimal.Decimal, quoteCurrency string, at time.Time) (int64, error) {
	result, err := r.getQuerier().ExecContext(ctx, `
		UPDATE investment
		SET current_price = ?, current_price_currency = ?, price_updated_at = ?
		WHERE ticker = ? AND currency = ?`,
		price.String(),
		quoteCurrency,
		FormatTime(at),
		ticker,
		positionCurrency,
	)
	if err != nil {
		return 0, storageError("investment.UpdatePriceForTicker", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, storageError("investment.UpdatePriceForTicker", err)
	}
	return n, nil
}

// DeleteInvestment removes a position owned by ownerID together with its transactions.
func (r *InvestmentRepository) DeleteInvestment(ctx context.Context, ownerID, investmentID string) error {
	result, err := r.getQuerier().ExecContext(ctx, `
		DELETE FROM investment
		WHERE id = ? AND portfolio_id IN (SELECT id FROM portfolio WHERE owner_id = ?)`,
		investmentID, ownerID)
	if err != nil {
		return storageError("investment.DeleteInvestment", err)
	}
	return expectOneRow(result, apperrors.ErrInvestmentNotFound)
}

// ListTickers returns each distinct (ticker, asset class, currency) held by any position.
func (r *InvestmentRepository) ListTickers(ctx context.Context) ([]TickerRef, error) {
	rows, err := r.getQuerier().QueryContext(ctx, `
		SELECT DISTINCT ticker, asset_class, currency
		FROM investment
		ORDER BY ticker`)
	if err != nil {
		return nil, storageError("investment.ListTickers", err)
	}
	defer rows.Close()

	var refs []TickerRef
	for rows.Next() {
		var ref TickerRef
		var class string
		if err := rows.Scan(&ref.Ticker, &class, &ref.Currency); err != nil {
			return nil, storageError("investment.ListTickers", err)
		}
		ref.AssetClass = model.AssetClass(class)
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("investment.ListTickers", err)
	}
	return refs, nil
}

// ListCurrencyPairs returns each distinct conversion valuation needs: quote
// currency to position currency, and position currency to portfolio base
// currency, wherever the two differ.
func (r *InvestmentRepository) ListCurrencyPairs(ctx context.Context) ([]CurrencyPair, error) {
	rows, err := r.getQuerier().QueryContext(ctx, `
		SELECT i.currency, p.base_currency
		FROM investment i
		JOIN portfolio p ON p.id = i.portfolio_id
		WHERE i.currency <> p.base_currency
		UNION
		SELECT current_price_currency, currency
		FROM investment
		WHERE current_price_currency IS NOT NULL AND current_price_currency <> currency
		ORDER BY 1, 2`)
	if err != nil {
		return nil, storageError("investment.ListCurrencyPairs", err)
	}
	defer rows.Close()

	var pairs []CurrencyPair
	for rows.Next() {
		var pair CurrencyPair
		if err := rows.Scan(&pair.From, &pair.To); err != nil {
			return nil, storageError("investment.ListCurrencyPairs", err)
		}
		pairs = append(pairs, pair)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("investment.ListCurrencyPairs", err)
	}
	return pairs, nil
}

func scanInvestment(row rowScanner) (model.Investment, error) {
	var inv model.Investment
	var class, qty, avg string
	var price, priceCurrency, priceUpdatedAt sql.NullString
	var createdAt, updatedAt string

	if err := row.Scan(
		&inv.ID,
		&inv.PortfolioID,
		&inv.Ticker,
		&inv.Name,
		&class,
		&inv.Currency,
		&qty,
		&avg,
		&price,
		&priceCurrency,
		&priceUpdatedAt,
		&createdAt,
		&updatedAt,
	); err != nil {
		return model.Investment{}, err
	}

	inv.AssetClass = model.AssetClass(class)

	var err error
	if inv.Quantity, err = decimal.NewFromString(qty); err != nil {
		return model.Investment{}, fmt.Errorf("invalid stored quantity %q: %w", qty, err)
	}
	if inv.AverageCost, err = decimal.NewFromString(avg); err != nil {
		return model.Investment{}, fmt.Errorf("invalid stored average cost %q: %w", avg, err)
	}
	if price.Valid {
		p, err := decimal.NewFromString(price.String)
		if err != nil {
			return model.Investment{}, fmt.Errorf("invalid stored price %q: %w", price.String, err)
		}
		inv.CurrentPrice = decimal.NewNullDecimal(p)
		inv.PriceCurrency = inv.Currency
		if priceCurrency.Valid && priceCurrency.String != "" {
			inv.PriceCurrency = priceCurrency.String
		}
	}
	if inv.PriceUpdatedAt, err = parseNullTime(priceUpdatedAt); err != nil {
		return model.Investment{}, err
	}
	if inv.CreatedAt, err = ParseTime(createdAt); err != nil {
		return model.Investment{}, err
	}
	if inv.UpdatedAt, err = ParseTime(updatedAt); err != nil {
		return model.Investment{}, err
	}

	return inv, nil
}
