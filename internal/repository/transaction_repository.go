package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/ndewijer/portfolio-valuation-backend/internal/model"
)

// TransactionRepository provides data access methods for the append-only transaction table.
type TransactionRepository struct {
	db *sql.DB
	tx *sql.Tx
}

// NewTransactionRepository creates a new TransactionRepository with the provided database connection.
func NewTransactionRepository(db *sql.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// WithTx returns a new TransactionRepository scoped to the provided transaction.
func (r *TransactionRepository) WithTx(tx *sql.Tx) *TransactionRepository {
	return &TransactionRepository{
		db: r.db,
		tx: tx,
	}
}

// getQuerier returns the active transaction if one is set, otherwise the database connection.
func (r *TransactionRepository) getQuerier() querier {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

// InsertTransaction appends a purchase record.
func (r *TransactionRepository) InsertTransaction(ctx context.Context, t *model.Transaction) error {
	query := `
		INSERT INTO "transaction" (id, investment_id, type, quantity, price, currency, note, purchased_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.getQuerier().ExecContext(ctx, query,
		t.ID,
		t.InvestmentID,
		t.Type,
		t.Quantity.String(),
		t.Price.String(),
		t.Currency,
		t.Note,
		FormatTime(t.PurchasedAt),
		FormatTime(t.CreatedAt),
	)
	if err != nil {
		return storageError("transaction.InsertTransaction", fmt.Errorf("failed to insert transaction: %w", err))
	}
	return nil
}

// GetTransactionsByInvestment returns the purchase history of an investment, oldest first.
func (r *TransactionRepository) GetTransactionsByInvestment(ctx context.Context, investmentID string) ([]model.Transaction, error) {
	query := `
		SELECT id, investment_id, type, quantity, price, currency, note, purchased_at, created_at
		FROM "transaction"
		WHERE investment_id = ?
		ORDER BY purchased_at, created_at, id`

	rows, err := r.getQuerier().QueryContext(ctx, query, investmentID)
	if err != nil {
		return nil, storageError("transaction.GetTransactionsByInvestment", fmt.Errorf("failed to query transaction table: %w", err))
	}
	defer rows.Close()

	transactions := []model.Transaction{}
	for rows.Next() {
		var t model.Transaction
		var qty, price, purchasedAt, createdAt string

		if err := rows.Scan(
			&t.ID,
			&t.InvestmentID,
			&t.Type,
			&qty,
			&price,
			&t.Currency,
			&t.Note,
			&purchasedAt,
			&createdAt,
		); err != nil {
			return nil, storageError("transaction.GetTransactionsByInvestment", fmt.Errorf("failed to scan transaction: %w", err))
		}

		if t.Quantity, err = decimal.NewFromString(qty); err != nil {
			return nil, storageError("transaction.GetTransactionsByInvestment", err)
		}
		if t.Price, err = decimal.NewFromString(price); err != nil {
			return nil, storageError("transaction.GetTransactionsByInvestment", err)
		}
		if t.PurchasedAt, err = ParseTime(purchasedAt); err != nil {
			return nil, storageError("transaction.GetTransactionsByInvestment", err)
		}
		if t.CreatedAt, err = ParseTime(createdAt); err != nil {
			return nil, storageError("transaction.GetTransactionsByInvestment", err)
		}

		transactions = append(transactions, t)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("transaction.GetTransactionsByInvestment", fmt.Errorf("error iterating transaction table: %w", err))
	}

	return transactions, nil
}
