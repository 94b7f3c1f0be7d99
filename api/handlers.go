/*
handlers.go - HTTP API handlers for the obligation ledger

PURPOSE:
  Exposes the ledger engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Obligations:
    POST /api/obligations/charges                    Open obligation (defining charge)
    POST /api/obligations/{id}/payments              Record payment
    POST /api/obligations/{id}/interest              Apply interest
    POST /api/obligations/{id}/penalties             Apply penalty
    POST /api/obligations/{id}/discounts             Apply discount
    POST /api/obligations/{id}/legacy-adjustments    Import pre-system settlement
    POST /api/obligations/{id}/cancellations         Reverse an event
    GET  /api/obligations/{id}/balance               Outstanding balance
    GET  /api/obligations/{id}/events                Full event history
    GET  /api/obligations/open?type=LOAN             Open obligations listing

  Installments:
    POST /api/installments/{chargeEventId}/payments  Apply installment payment

  Loans:
    POST /api/loans/schedules                        Generate installment schedule

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate input
  3. Call domain logic (engine, projector)
  4. Serialize response
  5. Map error to status

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Obligation or event not found
  - 409: Overpayment guard, duplicate idempotency key
  - 503: Storage unavailable
  - 500: Everything else

IDEMPOTENCY:
  Write endpoints honor the Idempotency-Key header; a replayed key is
  rejected with 409. When absent, a fresh UUID is recorded so every
  stored event carries a key.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ledgerline/payables/ledger"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Engine    *ledger.Engine
	Projector *ledger.Projector
}

// NewHandler creates a handler over the given transactional store.
func NewHandler(store ledger.TxStore) *Handler {
	return &Handler{
		Engine:    ledger.NewEngine(store),
		Projector: ledger.NewProjector(store),
	}
}

// =============================================================================
// OBLIGATION HANDLERS
// =============================================================================

// CreateCharge opens an obligation via its defining charge.
// POST /api/obligations/charges
func (h *Handler) CreateCharge(w http.ResponseWriter, r *http.Request) {
	var req ChargeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	amount, err := ledger.ParseMoney(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}
	eventDate, err := parseDate(req.EventDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid event_date format (use YYYY-MM-DD)", err)
		return
	}
	dueDate, err := parseOptionalDate(req.DueDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid due_date format (use YYYY-MM-DD)", err)
		return
	}

	ev, err := h.Engine.RegisterCharge(r.Context(), ledger.Charge{
		ObligationID:      ledger.ObligationID(req.ObligationID),
		Type:              ledger.ObligationType(req.ObligationType),
		Total:             amount,
		EventDate:         eventDate,
		DueDate:           dueDate,
		Description:       req.Description,
		Creditor:          req.Creditor,
		Competence:        req.Competence,
		InstallmentNumber: req.InstallmentNumber,
		InstallmentCount:  req.InstallmentCount,
		IdempotencyKey:    idempotencyKey(r),
		User:              req.User,
	})
	if err != nil {
		writeDomainError(w, "Failed to register charge", err)
		return
	}

	EventsAppended.WithLabelValues(string(ev.Category)).Inc()
	ObligationsOpened.Inc()
	writeJSON(w, http.StatusCreated, toEventDTO(*ev))
}

// CreatePayment records a payment against an obligation.
// POST /api/obligations/{id}/payments
func (h *Handler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	obligationID, ok := obligationIDParam(w, r)
	if !ok {
		return
	}

	var req PaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	amount, err := ledger.ParseMoney(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}
	eventDate, err := parseDate(req.EventDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid event_date format (use YYYY-MM-DD)", err)
		return
	}

	typ, ok := h.resolveObligationType(w, r, obligationID)
	if !ok {
		return
	}

	ev, err := h.Engine.RegisterPayment(r.Context(), ledger.Payment{
		ObligationID:    obligationID,
		Type:            typ,
		Paid:            amount,
		EventDate:       eventDate,
		Method:          req.PaymentMethod,
		Source:          req.PaymentSource,
		CashMovementRef: req.CashMovementRef,
		Description:     req.Description,
		IdempotencyKey:  idempotencyKey(r),
		User:            req.User,
	})
	if err != nil {
		var exceeds *ledger.PaymentExceedsBalanceError
		if errors.As(err, &exceeds) {
			PaymentsRejected.Inc()
		}
		writeDomainError(w, "Failed to register payment", err)
		return
	}

	EventsAppended.WithLabelValues(string(ev.Category)).Inc()
	writeJSON(w, http.StatusCreated, toEventDTO(*ev))
}

// CreateInterest applies interest to an obligation.
// POST /api/obligations/{id}/interest
func (h *Handler) CreateInterest(w http.ResponseWriter, r *http.Request) {
	h.createSurcharge(w, r, h.Engine.RegisterInterest)
}

// CreatePenalty applies a penalty to an obligation.
// POST /api/obligations/{id}/penalties
func (h *Handler) CreatePenalty(w http.ResponseWriter, r *http.Request) {
	h.createSurcharge(w, r, h.Engine.RegisterPenalty)
}

// CreateDiscount applies a discount to an obligation.
// POST /api/obligations/{id}/discounts
func (h *Handler) CreateDiscount(w http.ResponseWriter, r *http.Request) {
	h.createSurcharge(w, r, h.Engine.RegisterDiscount)
}

type surchargeFn func(ctx context.Context, s ledger.Surcharge) (*ledger.Event, error)

func (h *Handler) createSurcharge(w http.ResponseWriter, r *http.Request, register surchargeFn) {
	obligationID, ok := obligationIDParam(w, r)
	if !ok {
		return
	}

	var req SurchargeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	amount, err := ledger.ParseMoney(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}
	eventDate, err := parseDate(req.EventDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid event_date format (use YYYY-MM-DD)", err)
		return
	}

	typ, ok := h.resolveObligationType(w, r, obligationID)
	if !ok {
		return
	}

	ev, err := register(r.Context(), ledger.Surcharge{
		ObligationID: obligationID,
		Type:         typ,
		Amount:       amount,
		EventDate:    eventDate,
		Description:  req.Description,
		User:         req.User,
	})
	if err != nil {
		writeDomainError(w, "Failed to register adjustment", err)
		return
	}
	if ev == nil {
		// Non-positive amount: nothing recorded.
		w.WriteHeader(http.StatusNoContent)
		return
	}

	EventsAppended.WithLabelValues(string(ev.Category)).Inc()
	writeJSON(w, http.StatusCreated, toEventDTO(*ev))
}

// CreateLegacyAdjustment imports a pre-system settlement.
// POST /api/obligations/{id}/legacy-adjustments
func (h *Handler) CreateLegacyAdjustment(w http.ResponseWriter, r *http.Request) {
	obligationID, ok := obligationIDParam(w, r)
	if !ok {
		return
	}

	var req LegacyAdjustmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	amount, err := ledger.ParseMoney(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}
	eventDate, err := parseDate(req.EventDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid event_date format (use YYYY-MM-DD)", err)
		return
	}

	typ, ok := h.resolveObligationType(w, r, obligationID)
	if !ok {
		return
	}

	ev, err := h.Engine.RegisterLegacyAdjustment(r.Context(), ledger.LegacyAdjustment{
		ObligationID: obligationID,
		Type:         typ,
		Amount:       amount,
		EventDate:    eventDate,
		Description:  req.Description,
		User:         req.User,
	})
	if err != nil {
		writeDomainError(w, "Failed to register legacy adjustment", err)
		return
	}

	EventsAppended.WithLabelValues(string(ev.Category)).Inc()
	writeJSON(w, http.StatusCreated, toEventDTO(*ev))
}

// CreateCancellation reverses a previous event on the obligation.
// POST /api/obligations/{id}/cancellations
func (h *Handler) CreateCancellation(w http.ResponseWriter, r *http.Request) {
	obligationID, ok := obligationIDParam(w, r)
	if !ok {
		return
	}

	var req CancellationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	eventDate, err := parseDate(req.EventDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid event_date format (use YYYY-MM-DD)", err)
		return
	}

	ev, err := h.Engine.RegisterCancellation(r.Context(), ledger.Cancellation{
		ObligationID:    obligationID,
		ReversedEventID: ledger.EventID(req.ReversedEventID),
		EventDate:       eventDate,
		Description:     req.Description,
		User:            req.User,
	})
	if err != nil {
		writeDomainError(w, "Failed to register cancellation", err)
		return
	}

	EventsAppended.WithLabelValues(string(ev.Category)).Inc()
	writeJSON(w, http.StatusCreated, toEventDTO(*ev))
}

// GetBalance returns the outstanding balance of one obligation.
// GET /api/obligations/{id}/balance
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	obligationID, ok := obligationIDParam(w, r)
	if !ok {
		return
	}

	events, err := h.Engine.Store().EventsFor(r.Context(), obligationID)
	if err != nil {
		writeDomainError(w, "Failed to load events", err)
		return
	}

	balance, err := h.Projector.OutstandingBalance(r.Context(), obligationID)
	if err != nil {
		writeDomainError(w, "Failed to compute balance", err)
		return
	}

	writeJSON(w, http.StatusOK, BalanceDTO{
		ObligationID: int64(obligationID),
		Outstanding:  balance.String(),
		EventCount:   len(events),
	})
}

// GetEvents returns the full event history of one obligation.
// GET /api/obligations/{id}/events
func (h *Handler) GetEvents(w http.ResponseWriter, r *http.Request) {
	obligationID, ok := obligationIDParam(w, r)
	if !ok {
		return
	}

	events, err := h.Engine.Store().EventsFor(r.Context(), obligationID)
	if err != nil {
		writeDomainError(w, "Failed to load events", err)
		return
	}
	if len(events) == 0 {
		writeError(w, http.StatusNotFound, "Obligation not found", nil)
		return
	}

	writeJSON(w, http.StatusOK, toEventDTOs(events))
}

// ListOpenObligations returns obligations with an outstanding balance.
// GET /api/obligations/open?type=LOAN
func (h *Handler) ListOpenObligations(w http.ResponseWriter, r *http.Request) {
	var typ *ledger.ObligationType
	if t := r.URL.Query().Get("type"); t != "" {
		ot := ledger.ObligationType(t)
		if !ot.Valid() {
			writeError(w, http.StatusBadRequest, "Invalid obligation type", nil)
			return
		}
		typ = &ot
	}

	open, err := h.Projector.OpenObligations(r.Context(), typ)
	if err != nil {
		writeDomainError(w, "Failed to list open obligations", err)
		return
	}

	dtos := make([]OpenObligationDTO, len(open))
	for i, o := range open {
		dtos[i] = toOpenObligationDTO(o)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// INSTALLMENT HANDLERS
// =============================================================================

// CreateInstallmentPayment applies a payment to an installment
// accumulator.
// POST /api/installments/{chargeEventId}/payments
func (h *Handler) CreateInstallmentPayment(w http.ResponseWriter, r *http.Request) {
	chargeEventID, err := strconv.ParseInt(chi.URLParam(r, "chargeEventId"), 10, 64)
	if err != nil || chargeEventID <= 0 {
		writeError(w, http.StatusBadRequest, "Invalid charge event id", err)
		return
	}

	var req InstallmentPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	parse := func(field, v string) (ledger.Money, bool) {
		if v == "" {
			return ledger.Zero(), true
		}
		m, err := ledger.ParseMoney(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid "+field, err)
			return ledger.Money{}, false
		}
		return m, true
	}

	installment, ok := parse("installment_amount", req.InstallmentAmount)
	if !ok {
		return
	}
	paidNow, ok := parse("paid_now", req.PaidNow)
	if !ok {
		return
	}
	interest, ok := parse("interest", req.Interest)
	if !ok {
		return
	}
	penalty, ok := parse("penalty", req.Penalty)
	if !ok {
		return
	}
	discount, ok := parse("discount", req.Discount)
	if !ok {
		return
	}
	eventDate, err := parseDate(req.EventDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid event_date format (use YYYY-MM-DD)", err)
		return
	}

	result, err := h.Engine.ApplyInstallmentPayment(r.Context(), ledger.InstallmentPayment{
		ChargeEventID:     ledger.EventID(chargeEventID),
		InstallmentAmount: installment,
		PaidNow:           paidNow,
		Interest:          interest,
		Penalty:           penalty,
		Discount:          discount,
		EventDate:         eventDate,
		User:              req.User,
	})
	if err != nil {
		writeDomainError(w, "Failed to apply installment payment", err)
		return
	}

	InstallmentPayments.WithLabelValues(string(result.Status)).Inc()
	writeJSON(w, http.StatusOK, InstallmentResultDTO{
		ChargeEventID:    int64(result.ChargeEventID),
		SettlementTarget: result.SettlementTarget.String(),
		PaidToDate:       result.PaidToDate.String(),
		Status:           string(result.Status),
		Remaining:        result.Remaining.String(),
	})
}

// =============================================================================
// LOAN HANDLERS
// =============================================================================

// CreateLoanSchedule expands a loan into its installment charges.
// POST /api/loans/schedules
func (h *Handler) CreateLoanSchedule(w http.ResponseWriter, r *http.Request) {
	var req LoanScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	amount, err := ledger.ParseMoney(req.InstallmentAmount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid installment_amount", err)
		return
	}
	firstDue, err := parseDate(req.FirstDueDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid first_due_date format (use YYYY-MM-DD)", err)
		return
	}

	schedule, err := h.Engine.GenerateLoanSchedule(r.Context(), ledger.LoanSchedule{
		Creditor:          req.Creditor,
		Description:       req.Description,
		InstallmentAmount: amount,
		InstallmentCount:  req.InstallmentCount,
		InstallmentsPaid:  req.InstallmentsPaid,
		FirstDueDate:      firstDue,
		DueDay:            req.DueDay,
		User:              req.User,
	})
	if err != nil {
		writeDomainError(w, "Failed to generate schedule", err)
		return
	}

	ids := make([]int64, len(schedule.ObligationIDs))
	for i, id := range schedule.ObligationIDs {
		ids[i] = int64(id)
	}

	var charges []EventDTO
	for _, oid := range schedule.ObligationIDs {
		events, err := h.Engine.Store().EventsFor(r.Context(), oid)
		if err != nil {
			writeDomainError(w, "Failed to load generated charges", err)
			return
		}
		for _, e := range events {
			if e.Category == ledger.CategoryCharge {
				charges = append(charges, toEventDTO(e))
			}
		}
	}

	EventsAppended.WithLabelValues(string(ledger.CategoryCharge)).Add(float64(schedule.Created))
	writeJSON(w, http.StatusCreated, LoanScheduleDTO{
		ObligationIDs: ids,
		Charges:       charges,
		Created:       schedule.Created,
		Backfilled:    schedule.Backfilled,
	})
}

// =============================================================================
// HELPERS
// =============================================================================

func obligationIDParam(w http.ResponseWriter, r *http.Request) (ledger.ObligationID, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "Invalid obligation id", err)
		return 0, false
	}
	return ledger.ObligationID(id), true
}

// resolveObligationType reads the obligation's type off its first event.
// Writes a 404 and returns false when the obligation has no events.
func (h *Handler) resolveObligationType(w http.ResponseWriter, r *http.Request, id ledger.ObligationID) (ledger.ObligationType, bool) {
	events, err := h.Engine.Store().EventsFor(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to load obligation", err)
		return "", false
	}
	if len(events) == 0 {
		writeError(w, http.StatusNotFound, "Obligation not found", nil)
		return "", false
	}
	return events[0].ObligationType, true
}

func idempotencyKey(r *http.Request) string {
	if key := r.Header.Get("Idempotency-Key"); key != "" {
		return key
	}
	return uuid.NewString()
}

func parseDate(s string) (time.Time, error) {
	return time.Parse(ledger.DateLayout, s)
}

func parseOptionalDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	d, err := time.Parse(ledger.DateLayout, s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// writeDomainError maps ledger errors onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case errors.Is(err, ledger.ErrPaymentExceedsBalance),
		errors.Is(err, ledger.ErrDuplicateIdempotencyKey):
		writeError(w, http.StatusConflict, message, err)
	case ledger.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case ledger.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	case ledger.IsRetryable(err):
		writeError(w, http.StatusServiceUnavailable, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
