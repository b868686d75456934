package sim

import (
	"errors"
	"fmt"
	"strings"

	"github.com/adarshjiiidev/Kagazi/store"
)

var (
	// ErrQuoteUnavailable aborts an order before anything is written.
	ErrQuoteUnavailable = errors.New("quote unavailable")
	ErrTradeNotPending  = errors.New("trade is not pending")
)

// ValidationError lists every rule an order broke. It is never retryable.
type ValidationError struct {
	Errors   []string
	Warnings []string
	// Affordable is how many shares the cash covers for a rejected BUY,
	// charges included. Zero for sells.
	Affordable int64
}

func (e *ValidationError) Error() string {
	return "order rejected: " + strings.Join(e.Errors, "; ")
}

// StorageError means the ledger could not be read or written. Nothing from
// the failed operation was committed, so the caller may retry it.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func (e *StorageError) Retryable() bool { return true }

// IsRetryable reports whether err is worth retrying unchanged.
func IsRetryable(err error) bool {
	var se *StorageError
	if errors.As(err, &se) {
		return se.Retryable()
	}
	return errors.Is(err, ErrQuoteUnavailable)
}

// storageError wraps err for the caller. Version conflicts pass through so
// the engine can retry them itself.
func storageError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, store.ErrConflict) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return &StorageError{Op: op, Err: err}
}
