/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

CONVENTIONS:
  - Dates travel as "YYYY-MM-DD" strings
  - Money travels as fixed two-decimal strings ("150.00"), never floats
  - Omitted optional dates are null, not empty strings

VALIDATION:
  Validation is done in handlers and the domain layer, not in DTOs.
  DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - ledger/types.go: domain model these map from
*/
package api

import (
	"time"

	"github.com/ledgerline/payables/ledger"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

// ChargeRequest creates an obligation via its defining charge.
// obligation_id 0 (or omitted) allocates a fresh id.
type ChargeRequest struct {
	ObligationID      int64  `json:"obligation_id,omitempty"`
	ObligationType    string `json:"obligation_type"`
	EventDate         string `json:"event_date"`
	DueDate           string `json:"due_date,omitempty"`
	Amount            string `json:"amount"`
	Description       string `json:"description,omitempty"`
	Creditor          string `json:"creditor,omitempty"`
	Competence        string `json:"competence,omitempty"`
	InstallmentNumber int    `json:"installment_number,omitempty"`
	InstallmentCount  int    `json:"installment_count,omitempty"`
	User              string `json:"user"`
}

// PaymentRequest records a payment against an obligation. The amount is
// the positive sum paid; the ledger stores it negated.
type PaymentRequest struct {
	Amount          string `json:"amount"`
	EventDate       string `json:"event_date"`
	PaymentMethod   string `json:"payment_method,omitempty"`
	PaymentSource   string `json:"payment_source,omitempty"`
	CashMovementRef *int64 `json:"cash_movement_ref,omitempty"`
	Description     string `json:"description,omitempty"`
	User            string `json:"user"`
}

// SurchargeRequest covers interest, penalty, and discount postings.
type SurchargeRequest struct {
	Amount      string `json:"amount"`
	EventDate   string `json:"event_date"`
	Description string `json:"description,omitempty"`
	User        string `json:"user"`
}

// LegacyAdjustmentRequest marks pre-system balances as settled.
type LegacyAdjustmentRequest struct {
	Amount      string `json:"amount"`
	EventDate   string `json:"event_date"`
	Description string `json:"description,omitempty"`
	User        string `json:"user"`
}

// CancellationRequest reverses a previously appended event.
type CancellationRequest struct {
	ReversedEventID int64  `json:"reversed_event_id"`
	EventDate       string `json:"event_date"`
	Description     string `json:"description,omitempty"`
	User            string `json:"user"`
}

// InstallmentPaymentRequest applies a payment to an installment
// accumulator.
type InstallmentPaymentRequest struct {
	InstallmentAmount string `json:"installment_amount"`
	PaidNow           string `json:"paid_now"`
	Interest          string `json:"interest,omitempty"`
	Penalty           string `json:"penalty,omitempty"`
	Discount          string `json:"discount,omitempty"`
	EventDate         string `json:"event_date"`
	User              string `json:"user"`
}

// LoanScheduleRequest generates a series of installment charges.
type LoanScheduleRequest struct {
	Creditor          string `json:"creditor"`
	Description       string `json:"description,omitempty"`
	InstallmentAmount string `json:"installment_amount"`
	InstallmentCount  int    `json:"installment_count"`
	InstallmentsPaid  int    `json:"installments_paid,omitempty"`
	FirstDueDate      string `json:"first_due_date"`
	DueDay            int    `json:"due_day,omitempty"`
	User              string `json:"user"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// EventDTO represents a ledger event in API responses.
type EventDTO struct {
	ID                int64   `json:"id"`
	ObligationID      int64   `json:"obligation_id"`
	ObligationType    string  `json:"obligation_type"`
	Category          string  `json:"category"`
	EventDate         string  `json:"event_date"`
	DueDate           *string `json:"due_date,omitempty"`
	Amount            string  `json:"amount"`
	Description       string  `json:"description,omitempty"`
	Creditor          string  `json:"creditor,omitempty"`
	Competence        string  `json:"competence,omitempty"`
	InstallmentNumber int     `json:"installment_number,omitempty"`
	InstallmentCount  int     `json:"installment_count,omitempty"`
	PaymentMethod     string  `json:"payment_method,omitempty"`
	PaymentSource     string  `json:"payment_source,omitempty"`
	CashMovementRef   *int64  `json:"cash_movement_ref,omitempty"`
	User              string  `json:"user"`
	CreatedAt         string  `json:"created_at,omitempty"`
}

// BalanceDTO is the outstanding balance of one obligation.
type BalanceDTO struct {
	ObligationID int64  `json:"obligation_id"`
	Outstanding  string `json:"outstanding"`
	EventCount   int    `json:"event_count"`
}

// OpenObligationDTO is one row of the open-obligations listing.
type OpenObligationDTO struct {
	ObligationID   int64   `json:"obligation_id"`
	ObligationType string  `json:"obligation_type"`
	Creditor       string  `json:"creditor,omitempty"`
	Description    string  `json:"description,omitempty"`
	DueDate        *string `json:"due_date,omitempty"`
	Competence     string  `json:"competence,omitempty"`
	TotalCharged   string  `json:"total_charged"`
	TotalPaid      string  `json:"total_paid"`
	Outstanding    string  `json:"outstanding"`
	PercentSettled string  `json:"percent_settled"`
}

// InstallmentResultDTO is the accumulator state after a payment.
type InstallmentResultDTO struct {
	ChargeEventID    int64  `json:"charge_event_id"`
	SettlementTarget string `json:"settlement_target"`
	PaidToDate       string `json:"paid_to_date"`
	Status           string `json:"status"`
	Remaining        string `json:"remaining"`
}

// LoanScheduleDTO summarizes a generated schedule.
type LoanScheduleDTO struct {
	ObligationIDs []int64    `json:"obligation_ids"`
	Charges       []EventDTO `json:"charges"`
	Created       int        `json:"created"`
	Backfilled    int        `json:"backfilled"`
}

// ErrorResponse is returned for all error statuses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// MAPPING HELPERS
// =============================================================================

func toEventDTO(e ledger.Event) EventDTO {
	dto := EventDTO{
		ID:                int64(e.ID),
		ObligationID:      int64(e.ObligationID),
		ObligationType:    string(e.ObligationType),
		Category:          string(e.Category),
		EventDate:         e.EventDate.Format(ledger.DateLayout),
		Amount:            e.Amount.String(),
		Description:       e.Description,
		Creditor:          e.Creditor,
		Competence:        e.Competence,
		InstallmentNumber: e.InstallmentNumber,
		InstallmentCount:  e.InstallmentCount,
		PaymentMethod:     e.PaymentMethod,
		PaymentSource:     e.PaymentSource,
		CashMovementRef:   e.CashMovementRef,
		User:              e.User,
	}
	if e.DueDate != nil {
		d := e.DueDate.Format(ledger.DateLayout)
		dto.DueDate = &d
	}
	if !e.CreatedAt.IsZero() {
		dto.CreatedAt = e.CreatedAt.Format(time.RFC3339)
	}
	return dto
}

func toEventDTOs(events []ledger.Event) []EventDTO {
	dtos := make([]EventDTO, len(events))
	for i, e := range events {
		dtos[i] = toEventDTO(e)
	}
	return dtos
}

func toOpenObligationDTO(o ledger.OpenObligation) OpenObligationDTO {
	dto := OpenObligationDTO{
		ObligationID:   int64(o.ObligationID),
		ObligationType: string(o.ObligationType),
		Creditor:       o.Creditor,
		Description:    o.Description,
		Competence:     o.Competence,
		TotalCharged:   o.TotalCharged.String(),
		TotalPaid:      o.TotalPaid.String(),
		Outstanding:    o.Outstanding.String(),
		PercentSettled: o.PercentSettled.StringFixed(4),
	}
	if o.DueDate != nil {
		d := o.DueDate.Format(ledger.DateLayout)
		dto.DueDate = &d
	}
	return dto
}
