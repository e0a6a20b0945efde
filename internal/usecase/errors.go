package usecase

import (
	"errors"
	"fmt"
)

// Input validation failures. Rejected before any store access.
var (
	ErrEmptyOrder      = errors.New("empty order")
	ErrInvalidQuantity = errors.New("invalid quantity")
)

// Transient concurrency conflicts. Retried up to the attempt budget, then
// surfaced as ErrConflict so callers can tell "try again" from "sold out".
var (
	ErrSerializationConflict = errors.New("serialization conflict")
	ErrStaleVersion          = errors.New("stale product version")
	ErrConflict              = errors.New("placement conflict")
)

// ErrStoreUnavailable covers transport and infrastructure failures, timeouts
// included. The in-flight transaction is always rolled back first.
var ErrStoreUnavailable = errors.New("store unavailable")

// ErrCommitAmbiguous is an ErrStoreUnavailable raised by the COMMIT
// round-trip itself: the transaction may have applied before the
// acknowledgment was lost. Callers see it as store unavailability; the
// resolver must never replay it.
var ErrCommitAmbiguous = fmt.Errorf("%w: commit outcome unknown", ErrStoreUnavailable)

// ErrDuplicateRequest: another attempt holds the idempotency lock for the
// same user+key and has not finished yet.
var ErrDuplicateRequest = errors.New("duplicate request")

type ProductNotFoundError struct {
	ProductID int64
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %d not found", e.ProductID)
}

// InsufficientStockError is raised both by pre-commit validation and by the
// commit-time re-check. AtCommit feeds logs and metrics only; the
// caller-visible shape is identical in both cases.
type InsufficientStockError struct {
	ProductID int64
	Requested int64
	Available int64
	AtCommit  bool
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}
