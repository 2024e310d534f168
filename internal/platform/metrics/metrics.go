package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	EndpointLatency *prometheus.HistogramVec

	// Registration workflow
	Lookups               *prometheus.CounterVec
	Submissions           *prometheus.CounterVec
	SubmissionsByCategory *prometheus.CounterVec
	SubmissionLatency     prometheus.Histogram

	// Ledger
	LedgerOperationLatency *prometheus.HistogramVec
	LedgerRecords          prometheus.Gauge

	// Mirror
	MirrorReplicated prometheus.Counter
	MirrorFailed     prometheus.Counter
	MirrorDropped    prometheus.Counter
	MirrorSkipped    prometheus.Counter
	MirrorQueueDepth prometheus.Gauge
}

// New creates and registers all Prometheus metrics on the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry registers the collectors on reg. Tests pass a fresh
// prometheus.NewRegistry() so repeated construction does not collide.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		EndpointLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "imageref_endpoint_latency_seconds",
			Help:    "Latency of endpoints in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
		Lookups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "imageref_lookups_total",
			Help: "Email lookups, labeled by outcome (eligible, not_found, already_complete, error)",
		}, []string{"outcome"}),
		Submissions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "imageref_submissions_total",
			Help: "Image submissions, labeled by outcome (success or error code)",
		}, []string{"outcome"}),
		SubmissionsByCategory: f.NewCounterVec(prometheus.CounterOpts{
			Name: "imageref_submissions_by_category_total",
			Help: "Successfully stored submissions, labeled by age category",
		}, []string{"category"}),
		SubmissionLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "imageref_submission_latency_seconds",
			Help:    "Latency of the submission workflow in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		LedgerOperationLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "imageref_ledger_operation_latency_seconds",
			Help:    "Latency of ledger load/save/update operations in seconds",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}, []string{"operation"}),
		LedgerRecords: f.NewGauge(prometheus.GaugeOpts{
			Name: "imageref_ledger_records",
			Help: "Number of records in the ledger at the last load",
		}),
		MirrorReplicated: f.NewCounter(prometheus.CounterOpts{
			Name: "imageref_mirror_replicated_total",
			Help: "Files replicated to the mirror",
		}),
		MirrorFailed: f.NewCounter(prometheus.CounterOpts{
			Name: "imageref_mirror_failed_total",
			Help: "Mirror jobs that failed after all attempts",
		}),
		MirrorDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "imageref_mirror_dropped_total",
			Help: "Mirror jobs dropped because the queue was full",
		}),
		MirrorSkipped: f.NewCounter(prometheus.CounterOpts{
			Name: "imageref_mirror_skipped_total",
			Help: "Mirror jobs skipped while the circuit breaker was open",
		}),
		MirrorQueueDepth: f.NewGauge(prometheus.GaugeOpts{
			Name: "imageref_mirror_queue_depth",
			Help: "Mirror jobs waiting in the queue",
		}),
	}
}

func (m *Metrics) ObserveEndpointLatency(endpoint string, durationSeconds float64) {
	m.EndpointLatency.WithLabelValues(endpoint).Observe(durationSeconds)
}

func (m *Metrics) IncrementLookup(outcome string) {
	m.Lookups.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncrementSubmission(outcome string) {
	m.Submissions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncrementCategory(category string) {
	m.SubmissionsByCategory.WithLabelValues(category).Inc()
}

func (m *Metrics) ObserveSubmissionLatency(durationSeconds float64) {
	m.SubmissionLatency.Observe(durationSeconds)
}

// ObserveLedgerOperation records the latency of a ledger operation.
func (m *Metrics) ObserveLedgerOperation(operation string, durationSeconds float64) {
	m.LedgerOperationLatency.WithLabelValues(operation).Observe(durationSeconds)
}

func (m *Metrics) SetLedgerRecords(count int) {
	m.LedgerRecords.Set(float64(count))
}

func (m *Metrics) IncrementMirrorReplicated() { m.MirrorReplicated.Inc() }
func (m *Metrics) IncrementMirrorFailed()     { m.MirrorFailed.Inc() }
func (m *Metrics) IncrementMirrorDropped()    { m.MirrorDropped.Inc() }
func (m *Metrics) IncrementMirrorSkipped()    { m.MirrorSkipped.Inc() }

func (m *Metrics) SetMirrorQueueDepth(depth int) {
	m.MirrorQueueDepth.Set(float64(depth))
}
