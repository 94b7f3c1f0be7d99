/*
installment.go - Per-installment payment accumulation

PURPOSE:
  Maintains the denormalized per-installment cache used for fast listing:
  how much of one charge event has been paid so far, which surcharges and
  discounts were applied, and whether the installment is settled.

NOT IDEMPOTENT:
  Each call represents one real-world payment and ADDS to the running
  totals. Calling twice with the same arguments records two payments.

KNOWN GAP:
  This operation mutates money-relevant cache state without appending a
  ledger event. The cache therefore stays derivable from the ledger only
  when callers also register the corresponding PAYMENT/INTEREST/PENALTY/
  DISCOUNT events. See DESIGN.md.

SEE ALSO:
  - types.go: Accumulator, SettlementStatus
  - store.go: Get/SaveAccumulator contracts
*/
package ledger

import (
	"context"
	"time"
)

// InstallmentPayment describes one payment applied to one installment.
// All amounts are normalized to Money by the caller or constructor.
type InstallmentPayment struct {
	ChargeEventID     EventID
	InstallmentAmount Money // face value of the installment
	PaidNow           Money // total disbursed in this payment
	Interest          Money
	Penalty           Money
	Discount          Money
	EventDate         time.Time
	User              string
}

// InstallmentResult reports the installment state after a payment.
type InstallmentResult struct {
	ChargeEventID     EventID
	InstallmentAmount Money
	SettlementTarget  Money // installment - discount + interest + penalty
	PaidToDate        Money
	Status            SettlementStatus
	Remaining         Money // max(0, target - paid to date)
}

// ApplyInstallmentPayment accumulates a payment onto the installment's
// running totals and recomputes its settlement status. The read of the
// current totals and the write of the new ones happen inside one store
// transaction, so concurrent payments against the same charge event
// serialize instead of losing updates. Fails with NotFoundError when the
// charge event does not exist.
func (e *Engine) ApplyInstallmentPayment(ctx context.Context, p InstallmentPayment) (InstallmentResult, error) {
	target := p.InstallmentAmount.Sub(p.Discount).Add(p.Interest).Add(p.Penalty)

	var res InstallmentResult
	err := e.store.WithTx(ctx, func(s Store) error {
		acc, err := s.GetAccumulator(ctx, p.ChargeEventID)
		if err != nil {
			return err
		}

		acc.PaidToDate = acc.PaidToDate.Add(p.PaidNow)
		acc.InterestPaid = acc.InterestPaid.Add(p.Interest)
		acc.PenaltyPaid = acc.PenaltyPaid.Add(p.Penalty)
		acc.DiscountApplied = acc.DiscountApplied.Add(p.Discount)

		if acc.PaidToDate.Cmp(target) >= 0 {
			acc.Status = StatusSettled
		} else {
			acc.Status = StatusPartial
		}
		if err := s.SaveAccumulator(ctx, acc); err != nil {
			return err
		}

		remaining := target.Sub(acc.PaidToDate)
		if remaining.IsNegative() {
			remaining = Zero()
		}
		res = InstallmentResult{
			ChargeEventID:     p.ChargeEventID,
			InstallmentAmount: p.InstallmentAmount,
			SettlementTarget:  target,
			PaidToDate:        acc.PaidToDate,
			Status:            acc.Status,
			Remaining:         remaining,
		}
		return nil
	})
	if err != nil {
		return InstallmentResult{}, err
	}
	return res, nil
}
