/*
errors.go - Centralized error types for the ledger engine

PURPOSE:
  All error kinds in one place. Callers branch with errors.Is against the
  sentinels; structured errors carry the details and unwrap to them.

ERROR CATEGORIES:
  1. Validation errors - malformed input, caller must correct and retry
  2. Business-rule violations - overpayment, never silently clamped
  3. Store errors - durability/transport failures, caller decides retry

POLICY:
  All validation happens before any write. Once a write is attempted,
  failure leaves the ledger in its prior consistent state. No error is
  swallowed; the only intentional no-op is registering a non-positive
  interest/penalty/discount amount, which returns (nil, nil).

SEE ALSO:
  - engine.go: produces these errors
  - api/handlers.go: maps them to HTTP status codes
*/
package ledger

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidAmount is returned when a money value cannot be parsed
	// or violates a positivity requirement.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrValidation is returned when an event field is malformed or out
	// of range. Wrapped by ValidationError with field detail.
	ErrValidation = errors.New("validation failed")

	// ErrPaymentExceedsBalance is returned when a payment would overdraw
	// the obligation's outstanding balance beyond the 0.005 tolerance.
	ErrPaymentExceedsBalance = errors.New("payment exceeds outstanding balance")

	// ErrNotFound is returned when a referenced obligation or charge
	// event does not exist.
	ErrNotFound = errors.New("not found")

	// ErrStoreUnavailable is returned on durability failure. The caller
	// decides whether to retry or abort.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrDuplicateIdempotencyKey is returned when an append carries an
	// idempotency key that was already recorded. Expected on retries.
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError reports which field failed basic event validation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// PaymentExceedsBalanceError reports the attempted payment and the
// balance it would have overdrawn.
type PaymentExceedsBalanceError struct {
	ObligationID ObligationID
	Paid         Money
	Balance      Money
}

func (e *PaymentExceedsBalanceError) Error() string {
	return fmt.Sprintf("payment %s exceeds outstanding balance %s on obligation %d",
		e.Paid, e.Balance, e.ObligationID)
}

func (e *PaymentExceedsBalanceError) Unwrap() error { return ErrPaymentExceedsBalance }

// NotFoundError identifies the missing record.
type NotFoundError struct {
	Kind string // "obligation", "charge event", "event"
	ID   int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid caller input
// or a business-rule violation; retrying unchanged will fail again.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrPaymentExceedsBalance) ||
		errors.Is(err, ErrDuplicateIdempotencyKey)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool { return errors.Is(err, ErrStoreUnavailable) }
