// Package apperrors defines the error vocabulary shared by every layer of the
// service: sentinel errors for well-known conditions and a Kind-tagged Error
// type that callers classify with errors.As instead of message matching.
package apperrors

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so that callers (and the HTTP layer) can decide
// how to react without inspecting messages.
type Kind int

const (
	// KindInternal is the zero value: an unexpected failure with no better classification.
	KindInternal Kind = iota
	// KindValidation marks rejected input. Never retryable.
	KindValidation
	// KindNotFound marks a missing entity or one the caller does not own.
	KindNotFound
	// KindExternalData marks a market-data provider failure (price or rate).
	KindExternalData
	// KindConcurrencyTimeout marks a lock that could not be acquired within the wait bound.
	KindConcurrencyTimeout
	// KindPersistence marks a storage failure.
	KindPersistence
)

// String returns the lower-case name of the kind.
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindExternalData:
		return "external_data"
	case KindConcurrencyTimeout:
		return "concurrency_timeout"
	case KindPersistence:
		return "persistence"
	default:
		return "internal"
	}
}

// Error is a classified error. Op names the operation that failed
// (e.g. "investment.AddPurchase") and Err carries the cause.
type Error struct {
	Kind      Kind
	Op        string
	Err       error
	Retryable bool
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// E wraps err with a kind and operation name. A nil err returns nil.
// Concurrency timeouts are always retryable.
func E(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{
		Kind:      kind,
		Op:        op,
		Err:       err,
		Retryable: kind == KindConcurrencyTimeout,
	}
}

// Retryable wraps err as a retryable error of the given kind.
func Retryable(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err, Retryable: true}
}

// KindOf reports the kind of the outermost classified error in err's chain.
// Unclassified errors fall back to the kind implied by known sentinels.
func KindOf(err error) Kind {
	if err == nil {
		return KindInternal
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	switch {
	case isNotFound(err):
		return KindNotFound
	case errors.Is(err, ErrLockTimeout):
		return KindConcurrencyTimeout
	}
	return KindInternal
}

// IsRetryable reports whether any classified error in err's chain is marked retryable.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return errors.Is(err, ErrLockTimeout)
}

func isNotFound(err error) bool {
	for _, target := range []error{
		ErrPortfolioNotFound,
		ErrInvestmentNotFound,
		ErrExchangeRateNotFound,
		ErrPriceNotFound,
		ErrSettingNotFound,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// Domain entity errors represent missing entities in the system.
var (
	// ErrPortfolioNotFound indicates that a portfolio with the given ID does not exist
	// or is not owned by the caller.
	ErrPortfolioNotFound = errors.New("portfolio not found")

	// ErrInvestmentNotFound indicates that an investment with the given ID does not exist
	// in a portfolio owned by the caller.
	ErrInvestmentNotFound = errors.New("investment not found")

	// ErrExchangeRateNotFound indicates there is no cached rate for a currency pair.
	ErrExchangeRateNotFound = errors.New("exchange rate for currency pair not found")

	// ErrPriceNotFound indicates there is no cached price for a ticker.
	ErrPriceNotFound = errors.New("price not found")

	// ErrSettingNotFound indicates a system setting has not been configured.
	ErrSettingNotFound = errors.New("setting not found")

	// ErrSymbolNotFound indicates that the market-data provider does not know the ticker.
	ErrSymbolNotFound = errors.New("symbol not found")
)

// Business logic errors represent validation failures or constraint violations.
var (
	// ErrInvalidUUID indicates that a provided ID is not a valid UUID format.
	ErrInvalidUUID = errors.New("invalid UUID format")

	// ErrNonPositiveAmount indicates a quantity or price that is zero or negative.
	ErrNonPositiveAmount = errors.New("amount must be greater than zero")

	// ErrDuplicateEntry indicates that an entity with the same unique constraint already exists.
	ErrDuplicateEntry = errors.New("duplicate entry")

	// ErrMissingOwner indicates a request without a current user.
	ErrMissingOwner = errors.New("current user is required")

	ErrInvalidCurrency = errors.New("invalid currency code")
)

// Infrastructure errors.
var (
	// ErrLockTimeout indicates a position or currency-pair lock was not acquired in time.
	ErrLockTimeout = errors.New("timed out waiting for lock")

	// ErrProviderUnavailable indicates the market-data provider could not be reached.
	ErrProviderUnavailable = errors.New("market data provider unavailable")

	// ErrRateLimited indicates the shared provider quota is exhausted for the current window.
	ErrRateLimited = errors.New("market data provider quota exhausted")

	// ErrDataInconsistency indicates that stored data violates an invariant
	// (e.g. a position with non-positive quantity).
	ErrDataInconsistency = errors.New("data inconsistency detected")
)
