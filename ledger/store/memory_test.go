package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ledgerline/payables/ledger"
	"github.com/ledgerline/payables/ledger/store"
)

func testEvent(obligationID int64) ledger.Event {
	return ledger.Event{
		ObligationID:   ledger.ObligationID(obligationID),
		ObligationType: ledger.ObligationOther,
		Category:       ledger.CategoryCharge,
		EventDate:      time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC),
		Amount:         ledger.MustMoney("10.00"),
		User:           "tester",
	}
}

func TestMemory_AppendAssignsSequentialIDs(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()

	first, err := m.AppendEvent(ctx, testEvent(1))
	if err != nil {
		t.Fatal(err)
	}
	second, err := m.AppendEvent(ctx, testEvent(1))
	if err != nil {
		t.Fatal(err)
	}
	if first != 1 || second != 2 {
		t.Errorf("ids = %d, %d, want 1, 2", first, second)
	}
}

func TestMemory_DuplicateIdempotencyKey_Rejected(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()

	ev := testEvent(1)
	ev.IdempotencyKey = "key-1"
	if _, err := m.AppendEvent(ctx, ev); err != nil {
		t.Fatal(err)
	}
	if _, err := m.AppendEvent(ctx, ev); !errors.Is(err, ledger.ErrDuplicateIdempotencyKey) {
		t.Errorf("err = %v, want ErrDuplicateIdempotencyKey", err)
	}
}

func TestTxMemory_ErrorRestoresSnapshot(t *testing.T) {
	tm := store.NewTxMemory()
	ctx := context.Background()

	if _, err := tm.AppendEvent(ctx, testEvent(1)); err != nil {
		t.Fatal(err)
	}

	sentinel := errors.New("boom")
	err := tm.WithTx(ctx, func(s ledger.Store) error {
		if _, err := s.AppendEvent(ctx, testEvent(2)); err != nil {
			return err
		}
		acc := ledger.NewAccumulator(1)
		acc.PaidToDate = ledger.MustMoney("5.00")
		if err := s.SaveAccumulator(ctx, acc); err != nil {
			return err
		}
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("err = %v, want sentinel", err)
	}

	// The event and the accumulator write were both rolled back.
	events, _ := tm.AllEvents(ctx, ledger.EventFilter{})
	if len(events) != 1 {
		t.Errorf("events = %d, want 1", len(events))
	}
	acc, err := tm.GetAccumulator(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if !acc.PaidToDate.IsZero() {
		t.Errorf("accumulator paid = %s, want 0.00 after rollback", acc.PaidToDate)
	}
}

func TestTxMemory_CommitVisibleAfterReturn(t *testing.T) {
	tm := store.NewTxMemory()
	ctx := context.Background()

	err := tm.WithTx(ctx, func(s ledger.Store) error {
		id, err := s.NextObligationID(ctx)
		if err != nil {
			return err
		}
		_, err = s.AppendEvent(ctx, testEvent(int64(id)))
		return err
	})
	if err != nil {
		t.Fatal(err)
	}

	events, _ := tm.EventsFor(ctx, 1)
	if len(events) != 1 {
		t.Errorf("events for obligation 1 = %d, want 1", len(events))
	}
}
