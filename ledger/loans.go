/*
loans.go - Installment schedule generation for loans

PURPOSE:
  Expands a contracted loan into its installment charges: one obligation
  per installment, numbered n/total, with due dates advanced month by
  month (clamped to the last day of short months) and competence taken
  from each installment's due month.

BACKFILL:
  Installments already paid before the loan entered the system are
  settled with a LEGACY_ADJUSTMENT event (no cash movement) and their
  accumulator marked SETTLED, so the event-sum balance and the listing
  cache agree from the start.
*/
package ledger

import (
	"context"
	"fmt"
	"time"
)

// LoanSchedule describes a loan to expand into installment charges.
type LoanSchedule struct {
	Creditor          string
	Description       string
	InstallmentAmount Money
	InstallmentCount  int
	InstallmentsPaid  int // prefix already settled before import
	FirstDueDate      time.Time
	DueDay            int // day of month for due dates; 0 = FirstDueDate's day
	User              string
}

// GeneratedSchedule reports what GenerateLoanSchedule created.
type GeneratedSchedule struct {
	ObligationIDs []ObligationID
	ChargeEvents  []EventID
	Created       int
	Backfilled    int
}

// GenerateLoanSchedule creates the LOAN charge events for every
// installment of the schedule and backfills the already-paid prefix.
func (e *Engine) GenerateLoanSchedule(ctx context.Context, ls LoanSchedule) (GeneratedSchedule, error) {
	if ls.InstallmentCount < 1 {
		return GeneratedSchedule{}, &ValidationError{Field: "installment_count", Reason: "must be >= 1"}
	}
	if !ls.InstallmentAmount.IsPositive() {
		return GeneratedSchedule{}, fmt.Errorf("%w: installment amount must be > 0, got %s",
			ErrInvalidAmount, ls.InstallmentAmount)
	}
	if ls.InstallmentsPaid < 0 || ls.InstallmentsPaid > ls.InstallmentCount {
		return GeneratedSchedule{}, &ValidationError{
			Field:  "installments_paid",
			Reason: "must be between 0 and installment_count",
		}
	}
	if ls.FirstDueDate.IsZero() {
		return GeneratedSchedule{}, &ValidationError{Field: "first_due_date", Reason: "must be a calendar date"}
	}

	dueDay := ls.DueDay
	if dueDay <= 0 {
		dueDay = ls.FirstDueDate.Day()
	}
	eventDate := ls.FirstDueDate

	var out GeneratedSchedule
	for n := 1; n <= ls.InstallmentCount; n++ {
		due := installmentDueDate(ls.FirstDueDate, n-1, dueDay)

		ev, err := e.RegisterCharge(ctx, Charge{
			Type:              ObligationLoan,
			Total:             ls.InstallmentAmount,
			EventDate:         eventDate,
			DueDate:           &due,
			Description:       fmt.Sprintf("Installment %d/%d %s", n, ls.InstallmentCount, ls.Description),
			Creditor:          ls.Creditor,
			Competence:        CompetenceOf(due),
			InstallmentNumber: n,
			InstallmentCount:  ls.InstallmentCount,
			User:              ls.User,
		})
		if err != nil {
			return out, err
		}
		out.ObligationIDs = append(out.ObligationIDs, ev.ObligationID)
		out.ChargeEvents = append(out.ChargeEvents, ev.ID)
		out.Created++

		if n <= ls.InstallmentsPaid {
			if _, err := e.RegisterLegacyAdjustment(ctx, LegacyAdjustment{
				ObligationID: ev.ObligationID,
				Type:         ObligationLoan,
				Amount:       ls.InstallmentAmount,
				EventDate:    eventDate,
				Description:  fmt.Sprintf("Backfill installment %d/%d", n, ls.InstallmentCount),
				Creditor:     ls.Creditor,
				User:         ls.User,
			}); err != nil {
				return out, err
			}
			if _, err := e.ApplyInstallmentPayment(ctx, InstallmentPayment{
				ChargeEventID:     ev.ID,
				InstallmentAmount: ls.InstallmentAmount,
				PaidNow:           ls.InstallmentAmount,
				EventDate:         eventDate,
				User:              ls.User,
			}); err != nil {
				return out, err
			}
			out.Backfilled++
		}
	}
	return out, nil
}

// installmentDueDate advances the first due month by offset months and
// clamps the due day to the target month's length (a day-31 schedule
// falls on Feb 28/29, Apr 30, and so on).
func installmentDueDate(first time.Time, offset, dueDay int) time.Time {
	monthStart := time.Date(first.Year(), first.Month(), 1, 0, 0, 0, 0, time.UTC).
		AddDate(0, offset, 0)
	last := daysInMonth(monthStart.Year(), monthStart.Month())
	day := dueDay
	if day > last {
		day = last
	}
	return time.Date(monthStart.Year(), monthStart.Month(), day, 0, 0, 0, 0, time.UTC)
}

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
