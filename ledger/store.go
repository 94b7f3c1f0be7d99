/*
store.go - Persistence interfaces for the event ledger

PURPOSE:
  Defines the boundary between the engine and the database. Any backend
  (SQLite, PostgreSQL, in-memory) that honors these contracts works.

APPEND-ONLY CONTRACT:
  AppendEvent is the only event write. No Update, no Delete, ever.
  Corrections are appended as CANCELLATION events.

OBLIGATION ID ALLOCATION:
  NextObligationID computes max(obligation_id)+1. Read-then-write on that
  value is a classic race, so the engine only ever calls it inside WithTx
  together with the append of the defining charge event: allocation and
  first use commit as one atomic unit.

ACCUMULATOR:
  Get/SaveAccumulator back the denormalized per-installment cache. The
  read-modify-write cycle also runs inside WithTx so concurrent payments
  against the same installment serialize instead of losing updates.

IMPLEMENTATIONS:
  - store/sqlite: production store (mattn/go-sqlite3, WAL)
  - ledger/store: in-memory store for tests

SEE ALSO:
  - engine.go: the only caller of NextObligationID
  - installment.go: the only caller of Get/SaveAccumulator
*/
package ledger

import "context"

// =============================================================================
// STORE - Event persistence (append-only)
// =============================================================================

// Store handles persistence of ledger events and accumulator rows.
// Event writes are APPEND-ONLY.
type Store interface {
	// AppendEvent persists the event durably and returns its
	// store-assigned monotonic id. Fails with ErrStoreUnavailable on
	// durability failure and ErrDuplicateIdempotencyKey when the
	// event's idempotency key was already recorded.
	AppendEvent(ctx context.Context, e Event) (EventID, error)

	// NextObligationID returns max(existing obligation id) + 1, or 1
	// when the ledger is empty. Call only inside WithTx, together with
	// the append of the charge event that uses the id.
	NextObligationID(ctx context.Context) (ObligationID, error)

	// EventsFor returns all events of one obligation in insertion
	// order. An unknown id yields an empty slice, not an error.
	EventsFor(ctx context.Context, id ObligationID) ([]Event, error)

	// AllEvents returns events matching the filter, ordered by
	// insertion.
	AllEvents(ctx context.Context, f EventFilter) ([]Event, error)

	// GetAccumulator returns the accumulator row for a charge event,
	// or the zero accumulator if the charge exists but has never been
	// paid against. Fails with NotFoundError when the charge event
	// itself does not exist.
	GetAccumulator(ctx context.Context, chargeEventID EventID) (Accumulator, error)

	// SaveAccumulator upserts the accumulator row.
	SaveAccumulator(ctx context.Context, a Accumulator) error
}

// =============================================================================
// TRANSACTIONAL STORE - atomic multi-step operations
// =============================================================================

// TxStore wraps Store with transaction support. Every multi-step engine
// operation (allocate-id-then-append, read-balance-then-append-payment,
// accumulator read-modify-write) runs inside one WithTx call.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction. If fn returns an error
	// the transaction is rolled back and the error is returned
	// unchanged; otherwise it is committed. The Store passed to fn is
	// only valid for the duration of the call.
	WithTx(ctx context.Context, fn func(Store) error) error
}
