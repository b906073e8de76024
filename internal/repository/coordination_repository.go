package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/ndewijer/portfolio-valuation-backend/internal/apperrors"
)

// LeaseRepository stores named leases in the lock_lease table. Because the
// table lives in the shared database, a lease excludes holders in every
// process, not just goroutines in this one.
type LeaseRepository struct {
	db *sql.DB
}

// NewLeaseRepository creates a new LeaseRepository with the provided database connection.
func NewLeaseRepository(db *sql.DB) *LeaseRepository {
	return &LeaseRepository{db: db}
}

// TryAcquire takes the lease on key for owner until expiresAt. It succeeds if
// the key is free or its current lease expired at or before now, and reports
// whether the lease was taken. It never waits.
func (r *LeaseRepository) TryAcquire(ctx context.Context, key, owner string, now, expiresAt time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		INSERT INTO lock_lease (key, owner, expires_at)
		VALUES (?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET
			owner = excluded.owner,
			expires_at = excluded.expires_at
		WHERE lock_lease.expires_at <= ?`,
		key,
		owner,
		expiresAt.UnixMilli(),
		now.UnixMilli(),
	)
	if err != nil {
		return false, storageError("lease.TryAcquire", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, storageError("lease.TryAcquire", err)
	}
	return n == 1, nil
}

// Release drops the lease on key if owner still holds it. Reports false when
// the lease had already expired and been taken over by someone else.
func (r *LeaseRepository) Release(ctx context.Context, key, owner string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM lock_lease WHERE key = ? AND owner = ?`, key, owner)
	if err != nil {
		return false, storageError("lease.Release", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, storageError("lease.Release", err)
	}
	return n == 1, nil
}

// QuotaRepository counts outbound provider calls per fixed window in the
// provider_quota table, giving every process the same view of the quota.
type QuotaRepository struct {
	db *sql.DB
}

// NewQuotaRepository creates a new QuotaRepository with the provided database connection.
func NewQuotaRepository(db *sql.DB) *QuotaRepository {
	return &QuotaRepository{db: db}
}

// Increment adds one call to the provider's window and returns the new count.
func (r *QuotaRepository) Increment(ctx context.Context, provider string, windowStart time.Time) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO provider_quota (provider, window_start, count)
		VALUES (?, ?, 1)
		ON CONFLICT (provider, window_start) DO UPDATE SET count = count + 1
		RETURNING count`,
		provider,
		windowStart.Unix(),
	).Scan(&count)
	if err != nil {
		return 0, storageError("quota.Increment", err)
	}
	return count, nil
}

// Prune deletes windows that started before cutoff.
func (r *QuotaRepository) Prune(ctx context.Context, cutoff time.Time) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM provider_quota WHERE window_start < ?`, cutoff.Unix()); err != nil {
		return storageError("quota.Prune", err)
	}
	return nil
}

// SettingRepository stores key/value system settings.
type SettingRepository struct {
	db *sql.DB
}

// NewSettingRepository creates a new SettingRepository with the provided database connection.
func NewSettingRepository(db *sql.DB) *SettingRepository {
	return &SettingRepository{db: db}
}

// Get returns the value stored under key or ErrSettingNotFound.
func (r *SettingRepository) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, `SELECT value FROM system_setting WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", apperrors.ErrSettingNotFound
	}
	if err != nil {
		return "", storageError("setting.Get", err)
	}
	return value, nil
}

// Set stores value under key, replacing any previous value.
func (r *SettingRepository) Set(ctx context.Context, key, value string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO system_setting (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, FormatTime(at))
	if err != nil {
		return storageError("setting.Set", err)
	}
	return nil
}
