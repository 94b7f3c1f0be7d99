/*
Package ledger implements the obligation ledger engine.

PURPOSE:
  Tracks payable obligations (invoices, card bills, installment loans) as
  an append-only log of signed money events and derives, for each
  obligation, how much is still owed. The ledger is the single source of
  truth: balances are always sums over events, never a separately
  maintained number that can drift.

KEY CONCEPTS IN THIS FILE (types.go):
  - Event: an immutable, signed money fact belonging to one obligation
  - ObligationType / EventCategory: the closed vocabularies of the ledger
  - ObligationID / EventID: store-assigned integer identifiers
  - Accumulator: denormalized per-installment running totals (a cache)

SIGN CONVENTION:
  CHARGE, INTEREST and PENALTY are stored positive (they increase debt).
  PAYMENT, DISCOUNT and LEGACY_ADJUSTMENT are stored negative (they
  decrease debt). CANCELLATION carries the negation of the event it
  reverses. The outstanding balance of an obligation is the plain sum of
  its events' signed amounts.

SEE ALSO:
  - engine.go: validated constructors for each event category
  - balance.go: balance derivation from events
  - store.go: persistence interfaces
*/
package ledger

import "time"

// =============================================================================
// IDENTIFIERS
// =============================================================================

// ObligationID groups the events of one logical debt. Assigned by the
// store as max+1, atomically with the defining charge event.
type ObligationID int64

// EventID is the store-assigned monotonic identifier of a single event.
type EventID int64

// =============================================================================
// OBLIGATION TYPES - what kind of debt this is
// =============================================================================

type ObligationType string

const (
	ObligationInvoice  ObligationType = "INVOICE"
	ObligationCardBill ObligationType = "CARD_BILL"
	ObligationLoan     ObligationType = "LOAN"
	ObligationOther    ObligationType = "OTHER"
)

var allowedObligationTypes = map[ObligationType]bool{
	ObligationInvoice:  true,
	ObligationCardBill: true,
	ObligationLoan:     true,
	ObligationOther:    true,
}

// Valid reports whether t is one of the four allowed obligation types.
func (t ObligationType) Valid() bool { return allowedObligationTypes[t] }

// =============================================================================
// EVENT CATEGORIES
// =============================================================================

type EventCategory string

const (
	CategoryCharge           EventCategory = "CHARGE"
	CategoryPayment          EventCategory = "PAYMENT"
	CategoryInterest         EventCategory = "INTEREST"
	CategoryPenalty          EventCategory = "PENALTY"
	CategoryDiscount         EventCategory = "DISCOUNT"
	CategoryLegacyAdjustment EventCategory = "LEGACY_ADJUSTMENT"
	CategoryCancellation     EventCategory = "CANCELLATION"
)

var allowedCategories = map[EventCategory]bool{
	CategoryCharge:           true,
	CategoryPayment:          true,
	CategoryInterest:         true,
	CategoryPenalty:          true,
	CategoryDiscount:         true,
	CategoryLegacyAdjustment: true,
	CategoryCancellation:     true,
}

// Valid reports whether c is one of the seven allowed event categories.
func (c EventCategory) Valid() bool { return allowedCategories[c] }

// =============================================================================
// EVENT - Immutable signed money fact
// =============================================================================

// Event is one row of the ledger. Events are never updated or deleted;
// corrections are made by appending CANCELLATION events.
type Event struct {
	ID             EventID
	ObligationID   ObligationID
	ObligationType ObligationType
	Category       EventCategory

	// EventDate is the calendar day the fact occurred (time component
	// is ignored). DueDate is nil for events that have no due date.
	EventDate time.Time
	DueDate   *time.Time

	// Amount is signed per the package sign convention.
	Amount Money

	Description string
	Creditor    string

	// Competence is the YYYY-MM accounting period of a charge.
	Competence string

	// Installment position within a series, 0 when not an installment.
	InstallmentNumber int
	InstallmentCount  int

	// Payment routing. CashMovementRef links a PAYMENT to the external
	// cash-movement record that funded it; nil for everything else.
	PaymentMethod   string
	PaymentSource   string
	CashMovementRef *int64

	// IdempotencyKey, when set, makes retried appends rejectable
	// instead of double-recorded.
	IdempotencyKey string

	// Audit fields
	User      string
	CreatedAt time.Time
}

// DateLayout is the canonical calendar-day encoding used throughout the
// ledger ("YYYY-MM-DD").
const DateLayout = "2006-01-02"

// CompetenceOf derives the YYYY-MM competence period from a date.
func CompetenceOf(d time.Time) string { return d.Format("2006-01") }

// =============================================================================
// EVENT FILTER - listing queries
// =============================================================================

// EventFilter narrows AllEvents. Nil fields match everything.
type EventFilter struct {
	ObligationType *ObligationType
	Category       *EventCategory
	From           *time.Time // inclusive, by event date
	To             *time.Time // inclusive, by event date
}

// Matches reports whether e passes the filter. Date comparison is by
// calendar day.
func (f EventFilter) Matches(e Event) bool {
	if f.ObligationType != nil && e.ObligationType != *f.ObligationType {
		return false
	}
	if f.Category != nil && e.Category != *f.Category {
		return false
	}
	if f.From != nil && e.EventDate.Format(DateLayout) < f.From.Format(DateLayout) {
		return false
	}
	if f.To != nil && e.EventDate.Format(DateLayout) > f.To.Format(DateLayout) {
		return false
	}
	return true
}

// =============================================================================
// INSTALLMENT ACCUMULATOR - denormalized cache, one row per charge event
// =============================================================================

type SettlementStatus string

const (
	StatusOpen    SettlementStatus = "OPEN"
	StatusPartial SettlementStatus = "PARTIAL"
	StatusSettled SettlementStatus = "SETTLED"
)

// Accumulator holds the running payment totals of one installment
// (charge event). It is a cache for fast listing: every field must stay
// derivable by replaying the obligation's ledger events.
type Accumulator struct {
	ChargeEventID   EventID
	PaidToDate      Money
	InterestPaid    Money
	PenaltyPaid     Money
	DiscountApplied Money
	Status          SettlementStatus
}

// NewAccumulator returns the zero accumulator for a charge event that
// has received no payments yet.
func NewAccumulator(chargeEventID EventID) Accumulator {
	return Accumulator{ChargeEventID: chargeEventID, Status: StatusOpen}
}
