/*
metrics.go - Prometheus metrics for the ledger API

PURPOSE:
  Defines the Prometheus instruments the handlers update. All metrics
  live under the "payables" namespace and are registered via promauto
  at package init.

EXPOSED AT:
  GET /metrics (prometheus text format, see server.go)

SEE ALSO:
  - handlers.go: where the counters are incremented
*/
package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// EventsAppended counts ledger events appended, by category.
var EventsAppended = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "payables",
	Subsystem: "ledger",
	Name:      "events_appended_total",
	Help:      "Total ledger events appended, by event category.",
}, []string{"category"})

// ObligationsOpened counts obligations created via defining charges.
var ObligationsOpened = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "payables",
	Subsystem: "ledger",
	Name:      "obligations_opened_total",
	Help:      "Total obligations opened (defining charges registered).",
})

// PaymentsRejected counts payments refused by the overpayment guard.
var PaymentsRejected = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "payables",
	Subsystem: "ledger",
	Name:      "payments_rejected_total",
	Help:      "Total payments rejected for exceeding the outstanding balance.",
})

// InstallmentPayments counts installment accumulator updates, by
// resulting settlement status.
var InstallmentPayments = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "payables",
	Subsystem: "installments",
	Name:      "payments_total",
	Help:      "Total installment payments applied, by resulting status.",
}, []string{"status"})

// RequestDuration tracks handler latency by route and status code.
var RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "payables",
	Subsystem: "http",
	Name:      "request_duration_seconds",
	Help:      "HTTP request duration in seconds.",
	Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
}, []string{"route", "code"})
