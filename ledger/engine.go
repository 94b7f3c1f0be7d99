/*
engine.go - Validated event constructors

PURPOSE:
  The Engine is the only writer of ledger events. Each Register*
  operation is a thin, statically-typed constructor over Store.AppendEvent
  that enforces the business invariants before anything is written:

    RegisterCharge            CHARGE            positive, creates obligations
    RegisterPayment           PAYMENT           negative, overpayment guard
    RegisterInterest          INTEREST          positive, no-op when <= 0
    RegisterPenalty           PENALTY           positive, no-op when <= 0
    RegisterDiscount          DISCOUNT          negative, no-op when <= 0
    RegisterLegacyAdjustment  LEGACY_ADJUSTMENT negative, historical backfill
    RegisterCancellation      CANCELLATION      negation of a prior event

  Each operation takes a typed parameter struct carrying only the fields
  meaningful to its category, so invalid field combinations cannot be
  expressed.

ATOMICITY:
  Every multi-step operation runs inside one store transaction:
  - a charge that allocates a new obligation id commits the allocation
    and the defining event together;
  - a payment reads the outstanding balance and appends inside the same
    transaction, so two concurrent payments cannot both pass the
    overpayment check against a stale balance.

SEE ALSO:
  - balance.go: the balance the payment guard checks against
  - installment.go: the per-installment accumulator operation
  - loans.go: bulk schedule generation built on RegisterCharge
*/
package ledger

import (
	"context"
	"fmt"
	"time"
)

// Engine validates and appends ledger events.
type Engine struct {
	store TxStore
}

func NewEngine(store TxStore) *Engine {
	return &Engine{store: store}
}

// Store exposes the engine's store for read-side collaborators.
func (e *Engine) Store() TxStore { return e.store }

// =============================================================================
// BASIC EVENT VALIDATION - shared by every register operation
// =============================================================================

func validateBasic(ev Event) error {
	if ev.ObligationID < 0 {
		return &ValidationError{Field: "obligation_id", Reason: "must be a non-negative integer"}
	}
	if !ev.ObligationType.Valid() {
		return &ValidationError{Field: "obligation_type", Reason: fmt.Sprintf("unknown type %q", ev.ObligationType)}
	}
	if !ev.Category.Valid() {
		return &ValidationError{Field: "event_category", Reason: fmt.Sprintf("unknown category %q", ev.Category)}
	}
	if ev.EventDate.IsZero() {
		return &ValidationError{Field: "event_date", Reason: "must be a calendar date"}
	}
	if ev.Amount.IsZero() {
		return &ValidationError{Field: "amount", Reason: "must be non-zero"}
	}
	if ev.User == "" {
		return &ValidationError{Field: "user", Reason: "is required"}
	}
	return nil
}

// =============================================================================
// CHARGE - establishes or increases a debt
// =============================================================================

// Charge describes a CHARGE event. ObligationID 0 means "new obligation":
// the engine allocates the next id atomically with the append.
type Charge struct {
	ObligationID      ObligationID
	Type              ObligationType
	Total             Money
	EventDate         time.Time
	DueDate           *time.Time
	Description       string
	Creditor          string
	Competence        string // YYYY-MM; defaults to DueDate's month
	InstallmentNumber int
	InstallmentCount  int
	IdempotencyKey    string
	User              string
}

// RegisterCharge appends a CHARGE event and returns it with its assigned
// ids. Fails with ErrInvalidAmount when Total is not positive.
func (e *Engine) RegisterCharge(ctx context.Context, c Charge) (*Event, error) {
	if !c.Total.IsPositive() {
		return nil, fmt.Errorf("%w: charge total must be > 0, got %s", ErrInvalidAmount, c.Total)
	}

	competence := c.Competence
	if competence == "" && c.DueDate != nil {
		competence = CompetenceOf(*c.DueDate)
	}

	ev := Event{
		ObligationID:      c.ObligationID,
		ObligationType:    c.Type,
		Category:          CategoryCharge,
		EventDate:         c.EventDate,
		DueDate:           c.DueDate,
		Amount:            c.Total,
		Description:       c.Description,
		Creditor:          c.Creditor,
		Competence:        competence,
		InstallmentNumber: c.InstallmentNumber,
		InstallmentCount:  c.InstallmentCount,
		IdempotencyKey:    c.IdempotencyKey,
		User:              c.User,
	}
	if err := validateBasic(ev); err != nil {
		return nil, err
	}

	err := e.store.WithTx(ctx, func(s Store) error {
		if ev.ObligationID == 0 {
			id, err := s.NextObligationID(ctx)
			if err != nil {
				return err
			}
			ev.ObligationID = id
		}
		id, err := s.AppendEvent(ctx, ev)
		if err != nil {
			return err
		}
		ev.ID = id
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

// =============================================================================
// PAYMENT - decreases a debt, guarded against overpayment
// =============================================================================

// Payment describes a PAYMENT event. Paid is the positive amount
// disbursed; it is stored negated. CashMovementRef links the payment to
// the external cash-movement record that funded it.
type Payment struct {
	ObligationID    ObligationID
	Type            ObligationType
	Paid            Money
	EventDate       time.Time
	Method          string
	Source          string
	CashMovementRef *int64
	Description     string
	IdempotencyKey  string
	User            string
}

// RegisterPayment appends a PAYMENT event. The outstanding balance is
// read and the event appended inside one transaction; a payment greater
// than balance+0.005 fails with PaymentExceedsBalanceError and writes
// nothing.
func (e *Engine) RegisterPayment(ctx context.Context, p Payment) (*Event, error) {
	if !p.Paid.IsPositive() {
		return nil, fmt.Errorf("%w: payment must be > 0, got %s", ErrInvalidAmount, p.Paid)
	}

	ev := Event{
		ObligationID:    p.ObligationID,
		ObligationType:  p.Type,
		Category:        CategoryPayment,
		EventDate:       p.EventDate,
		Amount:          p.Paid.Neg(),
		Description:     p.Description,
		PaymentMethod:   p.Method,
		PaymentSource:   p.Source,
		CashMovementRef: p.CashMovementRef,
		IdempotencyKey:  p.IdempotencyKey,
		User:            p.User,
	}
	if err := validateBasic(ev); err != nil {
		return nil, err
	}

	err := e.store.WithTx(ctx, func(s Store) error {
		events, err := s.EventsFor(ctx, p.ObligationID)
		if err != nil {
			return err
		}
		balance := sumSigned(events)
		if p.Paid.ExceedsWithTolerance(balance) {
			return &PaymentExceedsBalanceError{
				ObligationID: p.ObligationID,
				Paid:         p.Paid,
				Balance:      balance,
			}
		}
		id, err := s.AppendEvent(ctx, ev)
		if err != nil {
			return err
		}
		ev.ID = id
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

// =============================================================================
// INTEREST / PENALTY / DISCOUNT
// =============================================================================

// Surcharge describes an INTEREST, PENALTY or DISCOUNT amount applied to
// an existing obligation.
type Surcharge struct {
	ObligationID ObligationID
	Type         ObligationType
	Amount       Money
	EventDate    time.Time
	Description  string
	User         string
}

// RegisterInterest appends a positive INTEREST event. A non-positive
// amount is an intentional no-op: there is nothing to record, so it
// returns (nil, nil) rather than an error.
func (e *Engine) RegisterInterest(ctx context.Context, s Surcharge) (*Event, error) {
	return e.registerSurcharge(ctx, s, CategoryInterest, s.Amount)
}

// RegisterPenalty appends a positive PENALTY event; no-op when <= 0.
func (e *Engine) RegisterPenalty(ctx context.Context, s Surcharge) (*Event, error) {
	return e.registerSurcharge(ctx, s, CategoryPenalty, s.Amount)
}

// RegisterDiscount appends a DISCOUNT event stored negative (it reduces
// the debt); no-op when <= 0.
func (e *Engine) RegisterDiscount(ctx context.Context, s Surcharge) (*Event, error) {
	return e.registerSurcharge(ctx, s, CategoryDiscount, s.Amount.Neg())
}

func (e *Engine) registerSurcharge(ctx context.Context, s Surcharge, cat EventCategory, signed Money) (*Event, error) {
	if !s.Amount.IsPositive() {
		// Nothing to record.
		return nil, nil
	}
	ev := Event{
		ObligationID:   s.ObligationID,
		ObligationType: s.Type,
		Category:       cat,
		EventDate:      s.EventDate,
		Amount:         signed,
		Description:    s.Description,
		User:           s.User,
	}
	if err := validateBasic(ev); err != nil {
		return nil, err
	}
	id, err := e.store.AppendEvent(ctx, ev)
	if err != nil {
		return nil, err
	}
	ev.ID = id
	return &ev, nil
}

// =============================================================================
// LEGACY ADJUSTMENT - historical backfill of already-settled debt
// =============================================================================

// LegacyAdjustment imports "already paid past" (old loans etc.). Amount
// is given positive and stored negative. It never represents a real cash
// flow, so it carries no cash-movement link.
type LegacyAdjustment struct {
	ObligationID ObligationID
	Type         ObligationType
	Amount       Money
	EventDate    time.Time
	Description  string
	Creditor     string
	User         string
}

func (e *Engine) RegisterLegacyAdjustment(ctx context.Context, a LegacyAdjustment) (*Event, error) {
	if !a.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: legacy adjustment must be > 0 (it is stored negative), got %s",
			ErrInvalidAmount, a.Amount)
	}
	ev := Event{
		ObligationID:   a.ObligationID,
		ObligationType: a.Type,
		Category:       CategoryLegacyAdjustment,
		EventDate:      a.EventDate,
		Amount:         a.Amount.Neg(),
		Description:    a.Description,
		Creditor:       a.Creditor,
		PaymentMethod:  "LEGACY",
		PaymentSource:  "IMPORT",
		User:           a.User,
	}
	if err := validateBasic(ev); err != nil {
		return nil, err
	}
	id, err := e.store.AppendEvent(ctx, ev)
	if err != nil {
		return nil, err
	}
	ev.ID = id
	return &ev, nil
}

// =============================================================================
// CANCELLATION - reverses a prior event
// =============================================================================

// Cancellation reverses one prior event of an obligation. The appended
// CANCELLATION carries the negation of the reversed event's amount, so
// the pair nets to zero while both remain in the ledger.
type Cancellation struct {
	ObligationID    ObligationID
	ReversedEventID EventID
	EventDate       time.Time
	Description     string
	User            string
}

func (e *Engine) RegisterCancellation(ctx context.Context, c Cancellation) (*Event, error) {
	var ev Event
	err := e.store.WithTx(ctx, func(s Store) error {
		events, err := s.EventsFor(ctx, c.ObligationID)
		if err != nil {
			return err
		}
		var reversed *Event
		for i := range events {
			if events[i].ID == c.ReversedEventID {
				reversed = &events[i]
				break
			}
		}
		if reversed == nil {
			return &NotFoundError{Kind: "event", ID: int64(c.ReversedEventID)}
		}
		if reversed.Category == CategoryCancellation {
			return &ValidationError{Field: "reversed_event_id", Reason: "cannot cancel a cancellation"}
		}

		desc := c.Description
		if desc == "" {
			desc = fmt.Sprintf("reverses event %d", reversed.ID)
		}
		ev = Event{
			ObligationID:   c.ObligationID,
			ObligationType: reversed.ObligationType,
			Category:       CategoryCancellation,
			EventDate:      c.EventDate,
			Amount:         reversed.Amount.Neg(),
			Description:    desc,
			User:           c.User,
		}
		if err := validateBasic(ev); err != nil {
			return err
		}
		id, err := s.AppendEvent(ctx, ev)
		if err != nil {
			return err
		}
		ev.ID = id
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

// sumSigned is the authoritative balance definition: the sum of all
// signed event amounts.
func sumSigned(events []Event) Money {
	total := Zero()
	for _, ev := range events {
		total = total.Add(ev.Amount)
	}
	return total
}
