package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the tagging module. All methods are
// nil-receiver safe so callers can leave metrics unwired in tests and
// embedded setups.
type Metrics struct {
	// Mutation outcomes by operation
	Operations *prometheus.CounterVec

	// Mutation latencies by operation
	OperationDuration *prometheus.HistogramVec

	// Links created and removed
	Links *prometheus.CounterVec

	// Notification failures by event kind
	NotifyFailures *prometheus.CounterVec

	// Read path latencies by query
	QueryDuration *prometheus.HistogramVec
}

// New creates a new Metrics instance with all tagging module metrics registered.
func New() *Metrics {
	return &Metrics{
		Operations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "tagd_tagging_operations_total",
			Help: "Total tagging mutations by operation and outcome",
		}, []string{"op", "outcome"}), // op: "attach", "detach", "replace"

		OperationDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tagd_tagging_operation_duration_seconds",
			Help:    "Duration of tagging mutations by operation",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"op"}),

		Links: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "tagd_tagging_links_total",
			Help: "Total links created and removed",
		}, []string{"action"}), // action: "created", "removed"

		NotifyFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "tagd_tagging_notify_failures_total",
			Help: "Total notification deliveries that failed, by event kind",
		}, []string{"kind"}),

		QueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tagd_tagging_query_duration_seconds",
			Help:    "Duration of tag read queries",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"query"}), // query: "subject_tags", "subjects_all", "subjects_any", ...
	}
}

// IncrementOperation records one finished mutation with its outcome.
func (m *Metrics) IncrementOperation(op, outcome string) {
	if m != nil {
		m.Operations.WithLabelValues(op, outcome).Inc()
	}
}

// ObserveOperation records the duration of a mutation.
// Call with time.Now() captured at the start of the operation.
func (m *Metrics) ObserveOperation(op string, start time.Time) {
	if m != nil {
		m.OperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}
}

// AddLinksCreated records newly created links.
func (m *Metrics) AddLinksCreated(n int) {
	if m != nil && n > 0 {
		m.Links.WithLabelValues("created").Add(float64(n))
	}
}

// AddLinksRemoved records removed links.
func (m *Metrics) AddLinksRemoved(n int) {
	if m != nil && n > 0 {
		m.Links.WithLabelValues("removed").Add(float64(n))
	}
}

// IncrementNotifyFailure records a failed notification delivery.
func (m *Metrics) IncrementNotifyFailure(kind string) {
	if m != nil {
		m.NotifyFailures.WithLabelValues(kind).Inc()
	}
}

// ObserveQuery records the duration of a read query.
// Call with time.Now() captured at the start of the query.
func (m *Metrics) ObserveQuery(query string, start time.Time) {
	if m != nil {
		m.QueryDuration.WithLabelValues(query).Observe(time.Since(start).Seconds())
	}
}
