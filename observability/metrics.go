// Package observability wires Prometheus instrumentation for the
// detection engine, per spec.md §6's operational surface. Grounded on
// jordigilh-kubernaut's go.mod commitment to prometheus/client_golang
// — the only Prometheus client in the pack — replacing the teacher's
// hand-rolled atomic counter/gauge/histogram types with the real
// client_golang registry and promhttp handler.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every Prometheus collector the engine exports.
type Metrics struct {
	JobsEnqueued  *prometheus.CounterVec
	JobsCompleted *prometheus.CounterVec
	JobsFailed    *prometheus.CounterVec
	QueueDepth    prometheus.Gauge
	QueueActive   prometheus.Gauge

	AnomaliesDetected *prometheus.CounterVec
	RulePanics        *prometheus.CounterVec

	EvidenceUploadFailures prometheus.Counter
	JobDuration            prometheus.Histogram

	SSEConnections prometheus.Gauge
	SSEDrops       prometheus.Counter

	InvoicesGenerated *prometheus.CounterVec
}

// NewMetrics registers and returns the engine's collector set against
// the default Prometheus registry.
func NewMetrics() *Metrics {
	return &Metrics{
		JobsEnqueued: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clario",
			Subsystem: "detection",
			Name:      "jobs_enqueued_total",
			Help:      "Detection jobs enqueued, by priority.",
		}, []string{"priority"}),

		JobsCompleted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clario",
			Subsystem: "detection",
			Name:      "jobs_completed_total",
			Help:      "Detection jobs that completed successfully.",
		}, []string{"priority"}),

		JobsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clario",
			Subsystem: "detection",
			Name:      "jobs_failed_total",
			Help:      "Detection jobs that failed, by error kind.",
		}, []string{"error_kind"}),

		QueueDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: "clario",
			Subsystem: "detection",
			Name:      "queue_depth",
			Help:      "Jobs currently pending in the detection queue.",
		}),

		QueueActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: "clario",
			Subsystem: "detection",
			Name:      "queue_active",
			Help:      "Jobs currently being processed.",
		}),

		AnomaliesDetected: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clario",
			Subsystem: "detection",
			Name:      "anomalies_detected_total",
			Help:      "Anomalies persisted, by rule type and severity.",
		}, []string{"rule_type", "severity"}),

		RulePanics: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clario",
			Subsystem: "detection",
			Name:      "rule_panics_total",
			Help:      "Rule invocations recovered from a panic, by rule type.",
		}, []string{"rule_type"}),

		EvidenceUploadFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "clario",
			Subsystem: "evidence",
			Name:      "upload_failures_total",
			Help:      "Evidence blob uploads that failed.",
		}),

		JobDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: "clario",
			Subsystem: "detection",
			Name:      "job_duration_seconds",
			Help:      "Wall-clock duration of a detection job pass.",
			Buckets:   prometheus.DefBuckets,
		}),

		SSEConnections: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: "clario",
			Subsystem: "sse",
			Name:      "connections",
			Help:      "Live SSE connections across all users.",
		}),

		SSEDrops: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "clario",
			Subsystem: "sse",
			Name:      "connection_drops_total",
			Help:      "SSE connections dropped for backpressure or write failure.",
		}),

		InvoicesGenerated: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clario",
			Subsystem: "commission",
			Name:      "invoices_generated_total",
			Help:      "Commission invoices generated, by status.",
		}, []string{"status"}),
	}
}

// Handler returns the /metrics HTTP handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.Handler()
}
