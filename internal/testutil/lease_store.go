package testutil

import (
	"context"
	"errors"
	"time"

	"github.com/ndewijer/portfolio-valuation-backend/internal/lock"
)

// ErrReleaseFailed is returned by ReleaseFailingStore.Release.
var ErrReleaseFailed = errors.New("lease release failed")

// ReleaseFailingStore acquires through the wrapped store but fails every
// release, like a database that went away after the work committed.
//
// Example usage:
//
//	store := testutil.ReleaseFailingStore{LeaseStore: repository.NewLeaseRepository(db)}
//	locker := lock.NewSQLLocker(store, testutil.TestLockOptions, logging.Nop())
type ReleaseFailingStore struct {
	lock.LeaseStore
}

// TryAcquire implements lock.LeaseStore.
func (s ReleaseFailingStore) TryAcquire(ctx context.Context, key, owner string, now, expiresAt time.Time) (bool, error) {
	return s.LeaseStore.TryAcquire(ctx, key, owner, now, expiresAt)
}

// Release implements lock.LeaseStore.
func (ReleaseFailingStore) Release(context.Context, string, string) (bool, error) {
	return false, ErrReleaseFailed
}
