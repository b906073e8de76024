// Package lock serializes work on a key across every process that shares the
// database. A lease is a row in lock_lease; it expires after the configured
// maximum hold so a crashed holder never blocks the key forever.
package lock

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"

	"github.com/ndewijer/portfolio-valuation-backend/internal/apperrors"
	"github.com/ndewijer/portfolio-valuation-backend/internal/money"
)

// Locker acquires exclusive leases on string keys.
type Locker interface {
	Acquire(ctx context.Context, key string) (*Lease, error)
}

// LeaseStore is the shared table the SQL locker polls.
type LeaseStore interface {
	TryAcquire(ctx context.Context, key, owner string, now, expiresAt time.Time) (bool, error)
	Release(ctx context.Context, key, owner string) (bool, error)
}

// Options bounds waiting and holding.
type Options struct {
	WaitTimeout  time.Duration
	MaxHold      time.Duration
	PollInterval time.Duration
}

// DefaultOptions matches the configuration defaults.
var DefaultOptions = Options{
	WaitTimeout:  5 * time.Second,
	MaxHold:      10 * time.Second,
	PollInterval: 10 * time.Millisecond,
}

// maxPollInterval caps the exponential back-off between attempts.
const maxPollInterval = 250 * time.Millisecond

const releaseTimeout = 2 * time.Second

var errBusy = errors.New("lease held by another owner")

// SQLLocker implements Locker on a LeaseStore.
type SQLLocker struct {
	store  LeaseStore
	opts   Options
	logger zerolog.Logger
	now    func() time.Time
}

// NewSQLLocker creates a locker over store.
func NewSQLLocker(store LeaseStore, opts Options, logger zerolog.Logger) *SQLLocker {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultOptions.PollInterval
	}
	return &SQLLocker{
		store:  store,
		opts:   opts,
		logger: logger.With().Str("component", "lock").Logger(),
		now:    time.Now,
	}
}

// Acquire waits until key is free or its lease expired, then takes it.
// Waiting longer than WaitTimeout returns a retryable KindConcurrencyTimeout error.
func (l *SQLLocker) Acquire(ctx context.Context, key string) (*Lease, error) {
	const op = "lock.Acquire"

	owner := uuid.NewString()
	started := l.now()

	backoff := retry.NewExponential(l.opts.PollInterval)
	backoff = retry.WithCappedDuration(maxPollInterval, backoff)
	backoff = retry.WithMaxDuration(l.opts.WaitTimeout, backoff)

	var lease *Lease
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		now := l.now()
		expiresAt := now.Add(l.opts.MaxHold)
		ok, err := l.store.TryAcquire(ctx, key, owner, now, expiresAt)
		if err != nil {
			return err
		}
		if !ok {
			return retry.RetryableError(errBusy)
		}
		lease = &Lease{key: key, owner: owner, deadline: expiresAt, locker: l}
		return nil
	})

	switch {
	case err == nil:
		l.logger.Debug().
			Str("key", key).
			Dur("waited", l.now().Sub(started)).
			Msg("lease acquired")
		return lease, nil
	case errors.Is(err, errBusy):
		l.logger.Warn().
			Str("key", key).
			Dur("wait_timeout", l.opts.WaitTimeout).
			Msg("timed out waiting for lease")
		return nil, apperrors.E(apperrors.KindConcurrencyTimeout, op,
			fmt.Errorf("%w: %s", apperrors.ErrLockTimeout, key))
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return nil, apperrors.E(apperrors.KindConcurrencyTimeout, op,
			fmt.Errorf("%w: %s: %v", apperrors.ErrLockTimeout, key, err))
	default:
		return nil, err
	}
}

// Lease is a held lock. It must be released exactly once.
type Lease struct {
	key      string
	owner    string
	deadline time.Time
	locker   *SQLLocker
}

// Key returns the locked key.
func (l *Lease) Key() string {
	return l.key
}

// Deadline is when the lease expires and may be taken over.
func (l *Lease) Deadline() time.Time {
	return l.deadline
}

// Release gives the lease back. It still runs when ctx is already cancelled.
// A lease that expired and was taken over is logged, not returned as an error.
func (l *Lease) Release(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
	defer cancel()

	held, err := l.locker.store.Release(ctx, l.key, l.owner)
	if err != nil {
		return err
	}
	if !held {
		l.locker.logger.Warn().
			Str("key", l.key).
			Time("deadline", l.deadline).
			Msg("lease expired before release")
	}
	return nil
}

// WithLock runs fn while holding key and returns fn's result. fn's context is
// cancelled when the lease's maximum hold elapses. A failed release is logged
// only: fn's work is already done and the lease expires on its own.
func WithLock(ctx context.Context, locker Locker, key string, fn func(ctx context.Context) error) error {
	lease, err := locker.Acquire(ctx, key)
	if err != nil {
		return err
	}
	defer func() {
		if err := lease.Release(ctx); err != nil {
			lease.locker.logger.Error().
				Err(err).
				Str("key", lease.key).
				Time("deadline", lease.deadline).
				Msg("failed to release lease, it will expire")
		}
	}()

	ctx, cancel := context.WithDeadline(ctx, lease.Deadline())
	defer cancel()

	return fn(ctx)
}

// PositionKey identifies the position for ticker in a portfolio. It does not
// depend on the investment id, so the first purchase of a ticker is
// serialized with concurrent first purchases of the same ticker.
func PositionKey(portfolioID, ticker string) string {
	return "position:" + portfolioID + ":" + strings.ToUpper(strings.TrimSpace(ticker))
}

// PairKey identifies a directional currency pair.
func PairKey(from, to string) string {
	return "fx:" + money.NormalizeCurrency(from) + ":" + money.NormalizeCurrency(to)
}
