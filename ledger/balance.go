/*
balance.go - Balance derivation from the event ledger

PURPOSE:
  Answers "how much is currently owed?" for one obligation, and lists all
  obligations that still carry a balance. There is exactly ONE balance
  definition in this system: the sum of an obligation's signed event
  amounts. The per-installment accumulator is a cache for listing and is
  never consulted here, so the two can never disagree about what is owed.

EQUIVALENCE:
  sum(signed amounts)
    = sum(charges) + sum(interest) + sum(penalties)
      - sum(discounts) - sum(|payments|) - sum(|legacy adjustments|)
  because of the sign convention enforced by the engine.

SEE ALSO:
  - engine.go: RegisterPayment uses the same sum inside its transaction
  - types.go: sign convention
*/
package ledger

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Projector derives balances from the ledger.
type Projector struct {
	store Store
}

func NewProjector(store Store) *Projector {
	return &Projector{store: store}
}

// OutstandingBalance returns the sum of signed amounts of all events of
// the obligation. An unknown id yields 0.00, not an error.
func (p *Projector) OutstandingBalance(ctx context.Context, id ObligationID) (Money, error) {
	events, err := p.store.EventsFor(ctx, id)
	if err != nil {
		return Money{}, err
	}
	return sumSigned(events), nil
}

// =============================================================================
// OPEN OBLIGATION LISTING
// =============================================================================

// OpenObligation is one row of the open-obligations listing. Descriptive
// attributes come from the obligation's first charge event.
type OpenObligation struct {
	ObligationID      ObligationID
	ObligationType    ObligationType
	Creditor          string
	Description       string
	Competence        string
	DueDate           *time.Time
	InstallmentNumber int
	InstallmentCount  int
	TotalCharged      Money
	TotalPaid         Money
	Outstanding       Money
	// PercentSettled is TotalPaid / TotalCharged, 0 when nothing was
	// charged. Not a Money: it is a ratio, kept at 4 decimal places.
	PercentSettled decimal.Decimal
}

// OpenObligations lists obligations whose outstanding balance is not
// within 0.005 of zero, optionally filtered by obligation type. Rows are
// ordered by due date ascending with missing due dates last, then by
// obligation id.
func (p *Projector) OpenObligations(ctx context.Context, typ *ObligationType) ([]OpenObligation, error) {
	events, err := p.store.AllEvents(ctx, EventFilter{ObligationType: typ})
	if err != nil {
		return nil, err
	}

	byObligation := make(map[ObligationID]*OpenObligation)
	var order []ObligationID
	for _, ev := range events {
		row, ok := byObligation[ev.ObligationID]
		if !ok {
			row = &OpenObligation{
				ObligationID:   ev.ObligationID,
				ObligationType: ev.ObligationType,
			}
			byObligation[ev.ObligationID] = row
			order = append(order, ev.ObligationID)
		}

		switch ev.Category {
		case CategoryCharge:
			row.TotalCharged = row.TotalCharged.Add(ev.Amount)
			// First charge defines the obligation's attributes.
			if row.Creditor == "" {
				row.Creditor = ev.Creditor
			}
			if row.Description == "" {
				row.Description = ev.Description
			}
			if row.Competence == "" {
				row.Competence = ev.Competence
			}
			if row.DueDate == nil {
				row.DueDate = ev.DueDate
			}
			if row.InstallmentNumber == 0 {
				row.InstallmentNumber = ev.InstallmentNumber
				row.InstallmentCount = ev.InstallmentCount
			}
		case CategoryPayment:
			row.TotalPaid = row.TotalPaid.Add(ev.Amount.Abs())
		}
		row.Outstanding = row.Outstanding.Add(ev.Amount)
	}

	var open []OpenObligation
	for _, id := range order {
		row := byObligation[id]
		if row.Outstanding.WithinEpsilonOfZero() {
			continue
		}
		if row.TotalCharged.IsZero() {
			row.PercentSettled = decimal.Zero
		} else {
			row.PercentSettled = row.TotalPaid.Decimal().
				DivRound(row.TotalCharged.Decimal(), 4)
		}
		open = append(open, *row)
	}

	sort.SliceStable(open, func(i, j int) bool {
		di, dj := open[i].DueDate, open[j].DueDate
		switch {
		case di == nil && dj == nil:
			return open[i].ObligationID < open[j].ObligationID
		case di == nil:
			return false // nulls last
		case dj == nil:
			return true
		case di.Equal(*dj):
			return open[i].ObligationID < open[j].ObligationID
		default:
			return di.Before(*dj)
		}
	})
	return open, nil
}
