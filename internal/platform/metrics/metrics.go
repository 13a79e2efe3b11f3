// Package metrics implements the importer's observability sink on top of
// Prometheus. Emission is fire-and-forget: nothing here returns an error and
// nothing in the scheduler branches on metric state.
package metrics

import (
	"time"

	"github.com/jdalton/linkhoard/internal/importer"
	"github.com/prometheus/client_golang/prometheus"
)

const subsystem = "import"

// ImportMetrics is the Prometheus-backed implementation of importer.Metrics.
type ImportMetrics struct {
	processedTotal   *prometheus.CounterVec
	staleResetTotal  prometheus.Counter
	inFlight         prometheus.Gauge
	pendingItems     prometheus.Gauge
	sessionsByStatus *prometheus.GaugeVec
	batchDuration    prometheus.Histogram
}

// New creates the importer metric set and registers it with the given
// registerer.
func New(reg prometheus.Registerer) *ImportMetrics {
	m := &ImportMetrics{
		processedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Subsystem: subsystem,
				Name:      "processed_total",
				Help:      "Count of staged items reaching a terminal state, by result.",
			},
			[]string{"result"},
		),
		staleResetTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Subsystem: subsystem,
				Name:      "stale_reset_total",
				Help:      "Count of items reclaimed from stuck processing back to pending.",
			},
		),
		inFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Subsystem: subsystem,
				Name:      "in_flight",
				Help:      "Number of items currently processing, excluding stale ones.",
			},
		),
		pendingItems: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Subsystem: subsystem,
				Name:      "pending_items",
				Help:      "Number of staged items waiting to be admitted.",
			},
		),
		sessionsByStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Subsystem: subsystem,
				Name:      "sessions",
				Help:      "Number of import sessions by status.",
			},
			[]string{"status"},
		),
		batchDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Subsystem: subsystem,
				Name:      "batch_duration_seconds",
				Help:      "Time for one admitted batch to settle.",
				Buckets:   prometheus.DefBuckets,
			},
		),
	}

	reg.MustRegister(
		m.processedTotal,
		m.staleResetTotal,
		m.inFlight,
		m.pendingItems,
		m.sessionsByStatus,
		m.batchDuration,
	)

	return m
}

// Ensure ImportMetrics implements importer.Metrics interface
var _ importer.Metrics = (*ImportMetrics)(nil)

// RecordProcessed implements importer.Metrics.RecordProcessed
func (m *ImportMetrics) RecordProcessed(result string) {
	m.processedTotal.WithLabelValues(result).Inc()
}

// RecordStaleReset implements importer.Metrics.RecordStaleReset
func (m *ImportMetrics) RecordStaleReset(count int) {
	m.staleResetTotal.Add(float64(count))
}

// ObserveBatchDuration implements importer.Metrics.ObserveBatchDuration
func (m *ImportMetrics) ObserveBatchDuration(d time.Duration) {
	m.batchDuration.Observe(d.Seconds())
}

// SetInFlight implements importer.Metrics.SetInFlight
func (m *ImportMetrics) SetInFlight(n int) {
	m.inFlight.Set(float64(n))
}

// SetPending implements importer.Metrics.SetPending
func (m *ImportMetrics) SetPending(n int) {
	m.pendingItems.Set(float64(n))
}

// SetSessions implements importer.Metrics.SetSessions
func (m *ImportMetrics) SetSessions(status string, n int) {
	m.sessionsByStatus.WithLabelValues(status).Set(float64(n))
}
