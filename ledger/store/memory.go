// Package store provides in-memory ledger.Store implementations for
// testing and development.
package store

import (
	"context"
	"sync"
	"time"

	"github.com/ledgerline/payables/ledger"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu           sync.Mutex
	events       []ledger.Event
	byObligation map[ledger.ObligationID][]int // indexes into events
	idempotency  map[string]bool
	accumulators map[ledger.EventID]ledger.Accumulator
	nextEventID  ledger.EventID
	maxOblig     ledger.ObligationID
}

func NewMemory() *Memory {
	return &Memory{
		byObligation: make(map[ledger.ObligationID][]int),
		idempotency:  make(map[string]bool),
		accumulators: make(map[ledger.EventID]ledger.Accumulator),
	}
}

func (m *Memory) AppendEvent(_ context.Context, e ledger.Event) (ledger.EventID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendLocked(e)
}

func (m *Memory) appendLocked(e ledger.Event) (ledger.EventID, error) {
	if e.IdempotencyKey != "" && m.idempotency[e.IdempotencyKey] {
		return 0, ledger.ErrDuplicateIdempotencyKey
	}
	m.nextEventID++
	e.ID = m.nextEventID
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	m.events = append(m.events, e)
	m.byObligation[e.ObligationID] = append(m.byObligation[e.ObligationID], len(m.events)-1)
	if e.IdempotencyKey != "" {
		m.idempotency[e.IdempotencyKey] = true
	}
	if e.ObligationID > m.maxOblig {
		m.maxOblig = e.ObligationID
	}
	return e.ID, nil
}

func (m *Memory) NextObligationID(_ context.Context) (ledger.ObligationID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.maxOblig + 1, nil
}

func (m *Memory) EventsFor(_ context.Context, id ledger.ObligationID) ([]ledger.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.eventsForLocked(id), nil
}

func (m *Memory) eventsForLocked(id ledger.ObligationID) []ledger.Event {
	idxs := m.byObligation[id]
	out := make([]ledger.Event, 0, len(idxs))
	for _, i := range idxs {
		out = append(out, m.events[i])
	}
	return out
}

func (m *Memory) AllEvents(_ context.Context, f ledger.EventFilter) ([]ledger.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.allEventsLocked(f), nil
}

func (m *Memory) allEventsLocked(f ledger.EventFilter) []ledger.Event {
	var out []ledger.Event
	for _, e := range m.events {
		if f.Matches(e) {
			out = append(out, e)
		}
	}
	return out
}

func (m *Memory) GetAccumulator(_ context.Context, chargeEventID ledger.EventID) (ledger.Accumulator, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getAccumulatorLocked(chargeEventID)
}

func (m *Memory) getAccumulatorLocked(chargeEventID ledger.EventID) (ledger.Accumulator, error) {
	if acc, ok := m.accumulators[chargeEventID]; ok {
		return acc, nil
	}
	if chargeEventID < 1 || chargeEventID > m.nextEventID {
		return ledger.Accumulator{}, &ledger.NotFoundError{Kind: "charge event", ID: int64(chargeEventID)}
	}
	return ledger.NewAccumulator(chargeEventID), nil
}

func (m *Memory) SaveAccumulator(_ context.Context, a ledger.Accumulator) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accumulators[a.ChargeEventID] = a
	return nil
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with transaction support. Transactions hold the
// store lock for their whole duration, so they serialize fully; rollback
// restores a snapshot taken at entry.
type TxMemory struct {
	*Memory
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

func (tm *TxMemory) WithTx(_ context.Context, fn func(ledger.Store) error) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	snap := tm.snapshot()
	if err := fn(&txMemoryView{parent: tm.Memory}); err != nil {
		tm.restore(snap)
		return err
	}
	return nil
}

type memorySnapshot struct {
	events       []ledger.Event
	byObligation map[ledger.ObligationID][]int
	idempotency  map[string]bool
	accumulators map[ledger.EventID]ledger.Accumulator
	nextEventID  ledger.EventID
	maxOblig     ledger.ObligationID
}

func (tm *TxMemory) snapshot() memorySnapshot {
	s := memorySnapshot{
		events:       append([]ledger.Event(nil), tm.events...),
		byObligation: make(map[ledger.ObligationID][]int, len(tm.byObligation)),
		idempotency:  make(map[string]bool, len(tm.idempotency)),
		accumulators: make(map[ledger.EventID]ledger.Accumulator, len(tm.accumulators)),
		nextEventID:  tm.nextEventID,
		maxOblig:     tm.maxOblig,
	}
	for k, v := range tm.byObligation {
		s.byObligation[k] = append([]int(nil), v...)
	}
	for k, v := range tm.idempotency {
		s.idempotency[k] = v
	}
	for k, v := range tm.accumulators {
		s.accumulators[k] = v
	}
	return s
}

func (tm *TxMemory) restore(s memorySnapshot) {
	tm.events = s.events
	tm.byObligation = s.byObligation
	tm.idempotency = s.idempotency
	tm.accumulators = s.accumulators
	tm.nextEventID = s.nextEventID
	tm.maxOblig = s.maxOblig
}

// txMemoryView operates on the parent without re-acquiring its lock
// (the lock is held by WithTx for the duration of the transaction).
type txMemoryView struct {
	parent *Memory
}

func (tv *txMemoryView) AppendEvent(_ context.Context, e ledger.Event) (ledger.EventID, error) {
	return tv.parent.appendLocked(e)
}

func (tv *txMemoryView) NextObligationID(_ context.Context) (ledger.ObligationID, error) {
	return tv.parent.maxOblig + 1, nil
}

func (tv *txMemoryView) EventsFor(_ context.Context, id ledger.ObligationID) ([]ledger.Event, error) {
	return tv.parent.eventsForLocked(id), nil
}

func (tv *txMemoryView) AllEvents(_ context.Context, f ledger.EventFilter) ([]ledger.Event, error) {
	return tv.parent.allEventsLocked(f), nil
}

func (tv *txMemoryView) GetAccumulator(_ context.Context, chargeEventID ledger.EventID) (ledger.Accumulator, error) {
	return tv.parent.getAccumulatorLocked(chargeEventID)
}

func (tv *txMemoryView) SaveAccumulator(_ context.Context, a ledger.Accumulator) error {
	tv.parent.accumulators[a.ChargeEventID] = a
	return nil
}
