// Package metrics exposes Prometheus instruments for the payout pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	DispatchOutcomeSuccess = "success"
	DispatchOutcomeFailure = "failure"

	ReconcileUpdated   = "updated"
	ReconcileUnchanged = "unchanged"
	ReconcileError     = "error"

	OperationCreatePayout = "create_payout"
	OperationGetPayout    = "get_payout"
)

// PayoutMetrics groups the payout counters and histograms. A nil
// *PayoutMetrics is valid and records nothing.
type PayoutMetrics struct {
	dispatchTotal   *prometheus.CounterVec
	reconcileTotal  *prometheus.CounterVec
	batchesCreated  prometheus.Counter
	webhooksTotal   *prometheus.CounterVec
	providerLatency *prometheus.HistogramVec
}

// NewPayoutMetrics creates and registers the instruments on reg. A nil reg
// uses the default registerer.
func NewPayoutMetrics(reg prometheus.Registerer) *PayoutMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &PayoutMetrics{
		dispatchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "payout_dispatch_total",
			Help: "Payouts submitted to the disbursement provider by outcome.",
		}, []string{"outcome"}),
		reconcileTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "payout_reconcile_total",
			Help: "Payout status reconciliation results.",
		}, []string{"result"}),
		batchesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "payout_batches_created_total",
			Help: "Payout batches created.",
		}),
		webhooksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "payout_webhooks_total",
			Help: "Provider payout callbacks by handling result.",
		}, []string{"result"}),
		providerLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "payout_provider_request_seconds",
			Help:    "Latency of disbursement provider API calls.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"operation"}),
	}

	reg.MustRegister(m.dispatchTotal, m.reconcileTotal, m.batchesCreated, m.webhooksTotal, m.providerLatency)
	return m
}

func (m *PayoutMetrics) IncDispatch(outcome string) {
	if m == nil {
		return
	}
	m.dispatchTotal.WithLabelValues(outcome).Inc()
}

func (m *PayoutMetrics) IncReconcile(result string) {
	if m == nil {
		return
	}
	m.reconcileTotal.WithLabelValues(result).Inc()
}

func (m *PayoutMetrics) IncBatchCreated() {
	if m == nil {
		return
	}
	m.batchesCreated.Inc()
}

func (m *PayoutMetrics) IncWebhook(result string) {
	if m == nil {
		return
	}
	m.webhooksTotal.WithLabelValues(result).Inc()
}

// ObserveProvider records the duration of one provider call started at start.
func (m *PayoutMetrics) ObserveProvider(operation string, start time.Time) {
	if m == nil {
		return
	}
	m.providerLatency.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
