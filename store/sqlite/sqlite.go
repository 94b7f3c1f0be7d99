/*
Package sqlite provides the SQLite-backed implementation of the ledger
storage interfaces.

PURPOSE:
  Implements ledger.Store and ledger.TxStore using SQLite. The same
  patterns apply to PostgreSQL - only minor SQL dialect differences.

APPEND-ONLY ENFORCEMENT:
  No UPDATE or DELETE statement ever touches the obligation_events
  table. Corrections are appended as CANCELLATION events. The only
  mutable table is installment_accumulators, which is a rebuildable
  cache, not a source of truth.

KEY TABLES:
  obligation_events:        immutable ledger of all obligation events
  installment_accumulators: per-charge-event running payment totals

MONEY AT REST:
  Amounts are stored as fixed-point decimal TEXT, never as REAL, so a
  round trip through the database cannot introduce binary-float noise.

CONCURRENCY:
  A sync.Mutex serializes writers; WithTx holds it for the duration of
  the SQL transaction, which is what makes "allocate obligation id, then
  append the defining charge" and "read balance, then append payment"
  atomic. SQLite is opened in WAL mode with a busy timeout so readers
  do not block.

USAGE:
  st, err := sqlite.New("./data/payables.db")
  if err != nil { log.Fatal(err) }
  defer st.Close()
  engine := ledger.NewEngine(st)

SEE ALSO:
  - ledger/store.go: interface contracts
  - ledger/store/memory.go: in-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/ledgerline/payables/ledger"
)

// Store implements ledger.TxStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// New creates a SQLite store at the given path. Use ":memory:" for an
// in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Writes are serialized by the mutex anyway, and a single connection
	// keeps ":memory:" databases from splitting per connection.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	-- Obligation events (append-only ledger)
	CREATE TABLE IF NOT EXISTS obligation_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		obligation_id INTEGER NOT NULL,
		obligation_type TEXT NOT NULL,
		event_category TEXT NOT NULL,
		event_date TEXT NOT NULL,
		due_date TEXT,
		amount TEXT NOT NULL,
		description TEXT,
		creditor TEXT,
		competence TEXT,
		installment_number INTEGER,
		installment_count INTEGER,
		payment_method TEXT,
		payment_source TEXT,
		cash_movement_ref INTEGER,
		idempotency_key TEXT,
		created_by TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_obligation
		ON obligation_events(obligation_id);

	-- Listing queries filter by type and due date (hot path)
	CREATE INDEX IF NOT EXISTS idx_events_type_due
		ON obligation_events(obligation_type, due_date);

	CREATE INDEX IF NOT EXISTS idx_events_category
		ON obligation_events(event_category);

	CREATE INDEX IF NOT EXISTS idx_events_event_date
		ON obligation_events(event_date);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_events_idempotency
		ON obligation_events(idempotency_key) WHERE idempotency_key IS NOT NULL;

	-- Installment accumulators (denormalized cache, one per charge event)
	CREATE TABLE IF NOT EXISTS installment_accumulators (
		charge_event_id INTEGER PRIMARY KEY
			REFERENCES obligation_events(id),
		paid_to_date TEXT NOT NULL DEFAULT '0.00',
		interest_paid TEXT NOT NULL DEFAULT '0.00',
		penalty_paid TEXT NOT NULL DEFAULT '0.00',
		discount_applied TEXT NOT NULL DEFAULT '0.00',
		status TEXT NOT NULL DEFAULT 'OPEN',
		updated_at TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// EVENT STORE (ledger.Store interface)
// =============================================================================

func (s *Store) AppendEvent(ctx context.Context, e ledger.Event) (ledger.EventID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return appendEvent(ctx, s.db, e)
}

func appendEvent(ctx context.Context, db dbtx, e ledger.Event) (ledger.EventID, error) {
	createdAt := e.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	var dueDate any
	if e.DueDate != nil {
		dueDate = e.DueDate.Format(ledger.DateLayout)
	}
	var cashRef any
	if e.CashMovementRef != nil {
		cashRef = *e.CashMovementRef
	}

	res, err := db.ExecContext(ctx, `
		INSERT INTO obligation_events
		(obligation_id, obligation_type, event_category, event_date, due_date,
		 amount, description, creditor, competence, installment_number,
		 installment_count, payment_method, payment_source, cash_movement_ref,
		 idempotency_key, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ObligationID,
		string(e.ObligationType),
		string(e.Category),
		e.EventDate.Format(ledger.DateLayout),
		dueDate,
		e.Amount.String(),
		nullString(e.Description),
		nullString(e.Creditor),
		nullString(e.Competence),
		nullInt(e.InstallmentNumber),
		nullInt(e.InstallmentCount),
		nullString(e.PaymentMethod),
		nullString(e.PaymentSource),
		cashRef,
		nullString(e.IdempotencyKey),
		e.User,
		createdAt.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return 0, ledger.ErrDuplicateIdempotencyKey
		}
		return 0, fmt.Errorf("%w: append event: %v", ledger.ErrStoreUnavailable, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("%w: last insert id: %v", ledger.ErrStoreUnavailable, err)
	}
	return ledger.EventID(id), nil
}

func (s *Store) NextObligationID(ctx context.Context) (ledger.ObligationID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return nextObligationID(ctx, s.db)
}

func nextObligationID(ctx context.Context, db dbtx) (ledger.ObligationID, error) {
	var next int64
	err := db.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(obligation_id), 0) + 1 FROM obligation_events",
	).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("%w: next obligation id: %v", ledger.ErrStoreUnavailable, err)
	}
	return ledger.ObligationID(next), nil
}

func (s *Store) EventsFor(ctx context.Context, id ledger.ObligationID) ([]ledger.Event, error) {
	return eventsFor(ctx, s.db, id)
}

func eventsFor(ctx context.Context, db dbtx, id ledger.ObligationID) ([]ledger.Event, error) {
	return queryEvents(ctx, db, selectEvents+" WHERE obligation_id = ? ORDER BY id ASC", id)
}

func (s *Store) AllEvents(ctx context.Context, f ledger.EventFilter) ([]ledger.Event, error) {
	return allEvents(ctx, s.db, f)
}

func allEvents(ctx context.Context, db dbtx, f ledger.EventFilter) ([]ledger.Event, error) {
	var (
		where []string
		args  []any
	)
	if f.ObligationType != nil {
		where = append(where, "obligation_type = ?")
		args = append(args, string(*f.ObligationType))
	}
	if f.Category != nil {
		where = append(where, "event_category = ?")
		args = append(args, string(*f.Category))
	}
	if f.From != nil {
		where = append(where, "event_date >= ?")
		args = append(args, f.From.Format(ledger.DateLayout))
	}
	if f.To != nil {
		where = append(where, "event_date <= ?")
		args = append(args, f.To.Format(ledger.DateLayout))
	}

	query := selectEvents
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id ASC"
	return queryEvents(ctx, db, query, args...)
}

const selectEvents = `
	SELECT id, obligation_id, obligation_type, event_category, event_date,
	       due_date, amount, description, creditor, competence,
	       installment_number, installment_count, payment_method,
	       payment_source, cash_movement_ref, idempotency_key, created_by,
	       created_at
	FROM obligation_events`

func queryEvents(ctx context.Context, db dbtx, query string, args ...any) ([]ledger.Event, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: query events: %v", ledger.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var events []ledger.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func scanEvent(rows *sql.Rows) (ledger.Event, error) {
	var (
		e           ledger.Event
		eventDate   string
		dueDate     sql.NullString
		amount      string
		description sql.NullString
		creditor    sql.NullString
		competence  sql.NullString
		instNum     sql.NullInt64
		instCount   sql.NullInt64
		payMethod   sql.NullString
		paySource   sql.NullString
		cashRef     sql.NullInt64
		idemKey     sql.NullString
		createdAt   string
	)

	err := rows.Scan(
		&e.ID, &e.ObligationID, &e.ObligationType, &e.Category, &eventDate,
		&dueDate, &amount, &description, &creditor, &competence,
		&instNum, &instCount, &payMethod, &paySource, &cashRef, &idemKey,
		&e.User, &createdAt,
	)
	if err != nil {
		return e, fmt.Errorf("%w: scan event: %v", ledger.ErrStoreUnavailable, err)
	}

	e.EventDate, _ = time.Parse(ledger.DateLayout, eventDate)
	if dueDate.Valid {
		if d, err := time.Parse(ledger.DateLayout, dueDate.String); err == nil {
			e.DueDate = &d
		}
	}
	e.Amount, err = ledger.ParseMoney(amount)
	if err != nil {
		return e, fmt.Errorf("corrupt amount on event %d: %w", e.ID, err)
	}
	e.Description = description.String
	e.Creditor = creditor.String
	e.Competence = competence.String
	e.InstallmentNumber = int(instNum.Int64)
	e.InstallmentCount = int(instCount.Int64)
	e.PaymentMethod = payMethod.String
	e.PaymentSource = paySource.String
	if cashRef.Valid {
		ref := cashRef.Int64
		e.CashMovementRef = &ref
	}
	e.IdempotencyKey = idemKey.String
	e.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return e, nil
}

// =============================================================================
// ACCUMULATOR STORE
// =============================================================================

func (s *Store) GetAccumulator(ctx context.Context, chargeEventID ledger.EventID) (ledger.Accumulator, error) {
	return getAccumulator(ctx, s.db, chargeEventID)
}

func getAccumulator(ctx context.Context, db dbtx, chargeEventID ledger.EventID) (ledger.Accumulator, error) {
	var exists int
	err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM obligation_events WHERE id = ?", chargeEventID,
	).Scan(&exists)
	if err != nil {
		return ledger.Accumulator{}, fmt.Errorf("%w: check charge event: %v", ledger.ErrStoreUnavailable, err)
	}
	if exists == 0 {
		return ledger.Accumulator{}, &ledger.NotFoundError{Kind: "charge event", ID: int64(chargeEventID)}
	}

	acc := ledger.NewAccumulator(chargeEventID)
	var paid, interest, penalty, discount, status string
	err = db.QueryRowContext(ctx, `
		SELECT paid_to_date, interest_paid, penalty_paid, discount_applied, status
		FROM installment_accumulators WHERE charge_event_id = ?`, chargeEventID,
	).Scan(&paid, &interest, &penalty, &discount, &status)
	if err == sql.ErrNoRows {
		return acc, nil // charge exists, never paid against
	}
	if err != nil {
		return ledger.Accumulator{}, fmt.Errorf("%w: load accumulator: %v", ledger.ErrStoreUnavailable, err)
	}

	if acc.PaidToDate, err = ledger.ParseMoney(paid); err != nil {
		return acc, err
	}
	if acc.InterestPaid, err = ledger.ParseMoney(interest); err != nil {
		return acc, err
	}
	if acc.PenaltyPaid, err = ledger.ParseMoney(penalty); err != nil {
		return acc, err
	}
	if acc.DiscountApplied, err = ledger.ParseMoney(discount); err != nil {
		return acc, err
	}
	acc.Status = ledger.SettlementStatus(status)
	return acc, nil
}

func (s *Store) SaveAccumulator(ctx context.Context, a ledger.Accumulator) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveAccumulator(ctx, s.db, a)
}

func saveAccumulator(ctx context.Context, db dbtx, a ledger.Accumulator) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO installment_accumulators
		(charge_event_id, paid_to_date, interest_paid, penalty_paid, discount_applied, status, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(charge_event_id) DO UPDATE SET
			paid_to_date = excluded.paid_to_date,
			interest_paid = excluded.interest_paid,
			penalty_paid = excluded.penalty_paid,
			discount_applied = excluded.discount_applied,
			status = excluded.status,
			updated_at = excluded.updated_at`,
		a.ChargeEventID,
		a.PaidToDate.String(),
		a.InterestPaid.String(),
		a.PenaltyPaid.String(),
		a.DiscountApplied.String(),
		string(a.Status),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("%w: save accumulator: %v", ledger.ErrStoreUnavailable, err)
	}
	return nil
}

// =============================================================================
// TRANSACTIONAL STORE (ledger.TxStore interface)
// =============================================================================

// WithTx executes fn within a database transaction. The writer mutex is
// held for the whole transaction, which serializes id allocation and
// balance-check-then-append sequences.
func (s *Store) WithTx(ctx context.Context, fn func(ledger.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin transaction: %v", ledger.ErrStoreUnavailable, err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", ledger.ErrStoreUnavailable, err)
	}
	return nil
}

// txStore runs all operations on the enclosing *sql.Tx. It must not
// touch the parent's mutex: WithTx already holds it.
type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) AppendEvent(ctx context.Context, e ledger.Event) (ledger.EventID, error) {
	return appendEvent(ctx, ts.tx, e)
}

func (ts *txStore) NextObligationID(ctx context.Context) (ledger.ObligationID, error) {
	return nextObligationID(ctx, ts.tx)
}

func (ts *txStore) EventsFor(ctx context.Context, id ledger.ObligationID) ([]ledger.Event, error) {
	return eventsFor(ctx, ts.tx, id)
}

func (ts *txStore) AllEvents(ctx context.Context, f ledger.EventFilter) ([]ledger.Event, error) {
	return allEvents(ctx, ts.tx, f)
}

func (ts *txStore) GetAccumulator(ctx context.Context, chargeEventID ledger.EventID) (ledger.Accumulator, error) {
	return getAccumulator(ctx, ts.tx, chargeEventID)
}

func (ts *txStore) SaveAccumulator(ctx context.Context, a ledger.Accumulator) error {
	return saveAccumulator(ctx, ts.tx, a)
}

// =============================================================================
// HELPERS
// =============================================================================

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullInt(n int) sql.NullInt64 {
	if n == 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(n), Valid: true}
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
