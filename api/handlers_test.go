package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerline/payables/api"
	"github.com/ledgerline/payables/ledger/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestServer(t *testing.T) *httptest.Server {
	h := api.NewHandler(store.NewTxMemory())
	srv := httptest.NewServer(api.NewRouter(h, []string{"*"}))
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(b))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func createCharge(t *testing.T, srv *httptest.Server, amount string) api.EventDTO {
	t.Helper()
	resp := postJSON(t, srv.URL+"/api/obligations/charges", api.ChargeRequest{
		ObligationType: "INVOICE",
		EventDate:      "2025-03-01",
		DueDate:        "2025-03-20",
		Amount:         amount,
		Creditor:       "ACME Utilities",
		User:           "tester",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decode[api.EventDTO](t, resp)
}

// =============================================================================
// CHARGE / PAYMENT FLOW
// =============================================================================

func TestCreateCharge_ReturnsEventWithIDs(t *testing.T) {
	srv := newTestServer(t)

	ev := createCharge(t, srv, "150.00")
	assert.NotZero(t, ev.ID)
	assert.NotZero(t, ev.ObligationID)
	assert.Equal(t, "CHARGE", ev.Category)
	assert.Equal(t, "150.00", ev.Amount)
	assert.Equal(t, "2025-03", ev.Competence)
}

func TestCreateCharge_InvalidAmount_BadRequest(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/obligations/charges", api.ChargeRequest{
		ObligationType: "INVOICE",
		EventDate:      "2025-03-01",
		Amount:         "not-money",
		User:           "tester",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCreateCharge_NegativeAmount_BadRequest(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/obligations/charges", api.ChargeRequest{
		ObligationType: "INVOICE",
		EventDate:      "2025-03-01",
		Amount:         "-5.00",
		User:           "tester",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCreatePayment_FlowAndOverpaymentConflict(t *testing.T) {
	srv := newTestServer(t)
	charge := createCharge(t, srv, "100.00")
	base := fmt.Sprintf("%s/api/obligations/%d", srv.URL, charge.ObligationID)

	resp := postJSON(t, base+"/payments", api.PaymentRequest{
		Amount:    "60.00",
		EventDate: "2025-03-10",
		User:      "tester",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	payment := decode[api.EventDTO](t, resp)
	assert.Equal(t, "PAYMENT", payment.Category)
	assert.Equal(t, "-60.00", payment.Amount, "payments are stored negative")

	// 60 again against 40 remaining: guarded.
	resp = postJSON(t, base+"/payments", api.PaymentRequest{
		Amount:    "60.00",
		EventDate: "2025-03-11",
		User:      "tester",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, err := http.Get(base + "/balance")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	balance := decode[api.BalanceDTO](t, resp)
	assert.Equal(t, "40.00", balance.Outstanding)
	assert.Equal(t, 2, balance.EventCount)
}

func TestCreatePayment_UnknownObligation_NotFound(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/obligations/999/payments", api.PaymentRequest{
		Amount:    "10.00",
		EventDate: "2025-03-10",
		User:      "tester",
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

// =============================================================================
// ADJUSTMENTS
// =============================================================================

func TestCreateDiscount_ZeroAmount_NoContent(t *testing.T) {
	srv := newTestServer(t)
	charge := createCharge(t, srv, "100.00")

	resp := postJSON(t,
		fmt.Sprintf("%s/api/obligations/%d/discounts", srv.URL, charge.ObligationID),
		api.SurchargeRequest{Amount: "0.00", EventDate: "2025-03-10", User: "tester"})
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestCreateInterestAndPenalty_RaiseBalance(t *testing.T) {
	srv := newTestServer(t)
	charge := createCharge(t, srv, "100.00")
	base := fmt.Sprintf("%s/api/obligations/%d", srv.URL, charge.ObligationID)

	resp := postJSON(t, base+"/interest", api.SurchargeRequest{
		Amount: "2.50", EventDate: "2025-04-01", User: "tester"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = postJSON(t, base+"/penalties", api.SurchargeRequest{
		Amount: "10.00", EventDate: "2025-04-01", User: "tester"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, err := http.Get(base + "/balance")
	require.NoError(t, err)
	defer resp.Body.Close()
	balance := decode[api.BalanceDTO](t, resp)
	assert.Equal(t, "112.50", balance.Outstanding)
}

func TestCreateCancellation_RestoresBalance(t *testing.T) {
	srv := newTestServer(t)
	charge := createCharge(t, srv, "100.00")
	base := fmt.Sprintf("%s/api/obligations/%d", srv.URL, charge.ObligationID)

	resp := postJSON(t, base+"/payments", api.PaymentRequest{
		Amount: "30.00", EventDate: "2025-03-10", User: "tester"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	payment := decode[api.EventDTO](t, resp)

	resp = postJSON(t, base+"/cancellations", api.CancellationRequest{
		ReversedEventID: payment.ID,
		EventDate:       "2025-03-11",
		User:            "tester",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	cancel := decode[api.EventDTO](t, resp)
	assert.Equal(t, "CANCELLATION", cancel.Category)
	assert.Equal(t, "30.00", cancel.Amount)

	resp, err := http.Get(base + "/balance")
	require.NoError(t, err)
	defer resp.Body.Close()
	balance := decode[api.BalanceDTO](t, resp)
	assert.Equal(t, "100.00", balance.Outstanding)
}

func TestCreateCancellation_UnknownEvent_NotFound(t *testing.T) {
	srv := newTestServer(t)
	charge := createCharge(t, srv, "100.00")

	resp := postJSON(t,
		fmt.Sprintf("%s/api/obligations/%d/cancellations", srv.URL, charge.ObligationID),
		api.CancellationRequest{ReversedEventID: 999, EventDate: "2025-03-11", User: "tester"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

// =============================================================================
// QUERIES
// =============================================================================

func TestGetEvents_UnknownObligation_NotFound(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/obligations/404/events")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGetBalance_UnknownObligation_Zero(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/obligations/404/balance")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	balance := decode[api.BalanceDTO](t, resp)
	assert.Equal(t, "0.00", balance.Outstanding)
	assert.Zero(t, balance.EventCount)
}

func TestListOpenObligations_FilterAndShape(t *testing.T) {
	srv := newTestServer(t)
	createCharge(t, srv, "100.00")

	resp, err := http.Get(srv.URL + "/api/obligations/open")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	rows := decode[[]api.OpenObligationDTO](t, resp)
	require.Len(t, rows, 1)
	assert.Equal(t, "100.00", rows[0].Outstanding)
	assert.Equal(t, "0.0000", rows[0].PercentSettled)

	resp, err = http.Get(srv.URL + "/api/obligations/open?type=LOAN")
	require.NoError(t, err)
	defer resp.Body.Close()
	rows = decode[[]api.OpenObligationDTO](t, resp)
	assert.Empty(t, rows)

	resp, err = http.Get(srv.URL + "/api/obligations/open?type=BOGUS")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// =============================================================================
// INSTALLMENTS AND LOANS
// =============================================================================

func TestCreateInstallmentPayment_Flow(t *testing.T) {
	srv := newTestServer(t)
	charge := createCharge(t, srv, "300.00")

	resp := postJSON(t,
		fmt.Sprintf("%s/api/installments/%d/payments", srv.URL, charge.ID),
		api.InstallmentPaymentRequest{
			InstallmentAmount: "300.00",
			PaidNow:           "120.00",
			EventDate:         "2025-03-15",
			User:              "tester",
		})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	result := decode[api.InstallmentResultDTO](t, resp)
	assert.Equal(t, "PARTIAL", result.Status)
	assert.Equal(t, "180.00", result.Remaining)
}

func TestCreateInstallmentPayment_UnknownCharge_NotFound(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/installments/777/payments",
		api.InstallmentPaymentRequest{
			InstallmentAmount: "100.00",
			PaidNow:           "100.00",
			EventDate:         "2025-03-15",
			User:              "tester",
		})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCreateLoanSchedule_CreatesCharges(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/loans/schedules", api.LoanScheduleRequest{
		Creditor:          "Big Bank",
		Description:       "car loan",
		InstallmentAmount: "800.00",
		InstallmentCount:  6,
		InstallmentsPaid:  2,
		FirstDueDate:      "2025-01-10",
		User:              "tester",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	schedule := decode[api.LoanScheduleDTO](t, resp)
	assert.Equal(t, 6, schedule.Created)
	assert.Equal(t, 2, schedule.Backfilled)
	assert.Len(t, schedule.ObligationIDs, 6)
	assert.Len(t, schedule.Charges, 6)

	// Only the 4 unpaid installments remain open.
	listResp, err := http.Get(srv.URL + "/api/obligations/open?type=LOAN")
	require.NoError(t, err)
	defer listResp.Body.Close()
	rows := decode[[]api.OpenObligationDTO](t, listResp)
	assert.Len(t, rows, 4)
}

// =============================================================================
// INFRA ENDPOINTS
// =============================================================================

func TestHealthAndMetricsEndpoints(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
