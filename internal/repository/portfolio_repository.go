package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ndewijer/portfolio-valuation-backend/internal/apperrors"
	"github.com/ndewijer/portfolio-valuation-backend/internal/model"
)

// PortfolioRepository provides data access methods for the portfolio table.
// Every read is scoped to an owner: a portfolio owned by someone else is
// reported as not found.
type PortfolioRepository struct {
	db *sql.DB
	tx *sql.Tx
}

// NewPortfolioRepository creates a new PortfolioRepository with the provided database connection.
func NewPortfolioRepository(db *sql.DB) *PortfolioRepository {
	return &PortfolioRepository{db: db}
}

// WithTx returns a new PortfolioRepository scoped to the provided transaction.
func (r *PortfolioRepository) WithTx(tx *sql.Tx) *PortfolioRepository {
	return &PortfolioRepository{
		db: r.db,
		tx: tx,
	}
}

// getQuerier returns the active transaction if one is set, otherwise the database connection.
func (r *PortfolioRepository) getQuerier() querier {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

const portfolioColumns = `id, owner_id, name, description, base_currency, created_at, updated_at`

// GetPortfolios retrieves every portfolio owned by ownerID, ordered by name.
// Returns an empty slice if the owner has no portfolios.
func (r *PortfolioRepository) GetPortfolios(ctx context.Context, ownerID string) ([]model.Portfolio, error) {
	query := `SELECT ` + portfolioColumns + `
		FROM portfolio
		WHERE owner_id = ?
		ORDER BY name, id`

	rows, err := r.getQuerier().QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, storageError("portfolio.GetPortfolios", fmt.Errorf("failed to query portfolio table: %w", err))
	}
	defer rows.Close()

	portfolios := []model.Portfolio{}
	for rows.Next() {
		p, err := scanPortfolio(rows)
		if err != nil {
			return nil, storageError("portfolio.GetPortfolios", err)
		}
		portfolios = append(portfolios, p)
	}

	if err = rows.Err(); err != nil {
		return nil, storageError("portfolio.GetPortfolios", fmt.Errorf("error iterating portfolio table: %w", err))
	}

	return portfolios, nil
}

// GetPortfolio retrieves a portfolio by ID if it belongs to ownerID.
// Returns ErrPortfolioNotFound otherwise.
func (r *PortfolioRepository) GetPortfolio(ctx context.Context, ownerID, portfolioID string) (model.Portfolio, error) {
	query := `SELECT ` + portfolioColumns + `
		FROM portfolio
		WHERE id = ? AND owner_id = ?`

	p, err := scanPortfolio(r.getQuerier().QueryRowContext(ctx, query, portfolioID, ownerID))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Portfolio{}, apperrors.ErrPortfolioNotFound
	}
	if err != nil {
		return model.Portfolio{}, storageError("portfolio.GetPortfolio", err)
	}

	return p, nil
}

// InsertPortfolio stores a new portfolio.
func (r *PortfolioRepository) InsertPortfolio(ctx context.Context, p *model.Portfolio) error {
	query := `INSERT INTO portfolio (` + portfolioColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err := r.getQuerier().ExecContext(ctx, query,
		p.ID,
		p.OwnerID,
		p.Name,
		p.Description,
		p.BaseCurrency,
		FormatTime(p.CreatedAt),
		FormatTime(p.UpdatedAt),
	)
	if err != nil {
		return storageError("portfolio.InsertPortfolio", fmt.Errorf("failed to insert portfolio: %w", err))
	}
	return nil
}

// UpdatePortfolio updates the mutable fields of a portfolio owned by p.OwnerID.
// Returns ErrPortfolioNotFound if no row matched.
func (r *PortfolioRepository) UpdatePortfolio(ctx context.Context, p *model.Portfolio) error {
	query := `
		UPDATE portfolio
		SET name = ?, description = ?, base_currency = ?, updated_at = ?
		WHERE id = ? AND owner_id = ?`

	result, err := r.getQuerier().ExecContext(ctx, query,
		p.Name,
		p.Description,
		p.BaseCurrency,
		FormatTime(p.UpdatedAt),
		p.ID,
		p.OwnerID,
	)
	if err != nil {
		return storageError("portfolio.UpdatePortfolio", fmt.Errorf("failed to update portfolio: %w", err))
	}
	return expectOneRow(result, apperrors.ErrPortfolioNotFound)
}

// DeletePortfolio removes a portfolio and, through ON DELETE CASCADE, its
// investments and their transactions.
func (r *PortfolioRepository) DeletePortfolio(ctx context.Context, ownerID, portfolioID string) error {
	result, err := r.getQuerier().ExecContext(ctx,
		`DELETE FROM portfolio WHERE id = ? AND owner_id = ?`, portfolioID, ownerID)
	if err != nil {
		return storageError("portfolio.DeletePortfolio", fmt.Errorf("failed to delete portfolio: %w", err))
	}
	return expectOneRow(result, apperrors.ErrPortfolioNotFound)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPortfolio(row rowScanner) (model.Portfolio, error) {
	var p model.Portfolio
	var createdAt, updatedAt string

	if err := row.Scan(
		&p.ID,
		&p.OwnerID,
		&p.Name,
		&p.Description,
		&p.BaseCurrency,
		&createdAt,
		&updatedAt,
	); err != nil {
		return model.Portfolio{}, err
	}

	var err error
	if p.CreatedAt, err = ParseTime(createdAt); err != nil {
		return model.Portfolio{}, err
	}
	if p.UpdatedAt, err = ParseTime(updatedAt); err != nil {
		return model.Portfolio{}, err
	}
	return p, nil
}

func expectOneRow(result sql.Result, notFound error) error {
	n, err := result.RowsAffected()
	if err != nil {
		return storageError("rowsAffected", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}
