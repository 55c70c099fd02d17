package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/outreachhq/sendpipe/internal/domain"
	"github.com/outreachhq/sendpipe/internal/worker"
)

// Metrics groups all Prometheus instruments used across the application.
// Registered once at startup via New(); passed by pointer wherever needed.
type Metrics struct {
	SendsTotal        *prometheus.CounterVec
	SendFailuresTotal *prometheus.CounterVec
	SendLatency       *prometheus.HistogramVec
	QueuePending      prometheus.Gauge
	QueueFailed       prometheus.Gauge
	QueueSent         prometheus.Gauge
}

// New registers all instruments with the given Prometheus registerer and
// returns the populated Metrics struct.
// Using a custom registry (instead of prometheus.DefaultRegisterer) keeps
// tests isolated and avoids global state.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		SendsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sendpipe_sends_total",
			Help: "Total number of successfully delivered outbound actions.",
		}, []string{"action"}),

		SendFailuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sendpipe_send_failures_total",
			Help: "Total number of failed delivery attempts, by outcome.",
		}, []string{"action", "outcome"}),

		SendLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "sendpipe_send_processing_seconds",
			Help: "End-to-end task processing latency including the pacing delay.",
			// Pacing alone contributes 10-20s, so default buckets would
			// collapse everything into +Inf.
			Buckets: []float64{5, 10, 12.5, 15, 17.5, 20, 25, 30, 60},
		}, []string{"action"}),

		QueuePending: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sendpipe_queue_pending",
			Help: "Current number of pending items in the send queue.",
		}),
		QueueFailed: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sendpipe_queue_failed",
			Help: "Current number of failed items in the send queue.",
		}),
		QueueSent: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sendpipe_queue_sent",
			Help: "Current number of sent items in the send queue.",
		}),
	}

	reg.MustRegister(
		m.SendsTotal,
		m.SendFailuresTotal,
		m.SendLatency,
		m.QueuePending,
		m.QueueFailed,
		m.QueueSent,
	)

	return m
}

// WorkerHooks returns the metric callbacks injected into the worker.
// Centralises the prometheus observation calls so the worker package
// stays free of prometheus imports.
func (m *Metrics) WorkerHooks() (
	onSent func(domain.ActionType, time.Duration),
	onFailed func(domain.ActionType, worker.Outcome),
) {
	onSent = func(action domain.ActionType, latency time.Duration) {
		m.SendsTotal.WithLabelValues(string(action)).Inc()
		m.SendLatency.WithLabelValues(string(action)).Observe(latency.Seconds())
	}
	onFailed = func(action domain.ActionType, outcome worker.Outcome) {
		m.SendFailuresTotal.WithLabelValues(string(action), string(outcome)).Inc()
	}
	return
}

// SetQueueDepths updates the queue gauges from a status-count snapshot.
func (m *Metrics) SetQueueDepths(counts map[domain.ItemStatus]int) {
	m.QueuePending.Set(float64(counts[domain.ItemPending]))
	m.QueueFailed.Set(float64(counts[domain.ItemFailed]))
	m.QueueSent.Set(float64(counts[domain.ItemSent]))
}
