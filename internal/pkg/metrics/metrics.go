package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Audit runner metrics
var (
	// Counts every call made to the audit client, retries included.
	AuditAttempts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "perfsummary_audit_attempts_total",
		Help: "Total number of audit attempts",
	})

	// Counts attempts that were scheduled again after a transient failure.
	AuditRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "perfsummary_audit_retries_total",
		Help: "Total number of audit retries after transient failures",
	})

	AuditOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "perfsummary_audit_outcomes_total",
			Help: "Terminal audit outcomes per target, by state",
		},
		[]string{"state"},
	)

	AuditDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "perfsummary_audit_duration_seconds",
		Help:    "Time taken by a single audit call",
		Buckets: prometheus.ExponentialBuckets(1, 2, 9), // 1s to ~4m
	})

	ArtifactWriteFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "perfsummary_artifact_write_failures_total",
		Help: "Total number of artifact pairs that could not be persisted",
	})
)

// Aggregator and field data metrics
var (
	PagesAggregated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "perfsummary_pages_aggregated_total",
		Help: "Total number of page records rendered into a summary",
	})

	FieldDataRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "perfsummary_fielddata_requests_total",
			Help: "Field data lookups by result (ok, unavailable, cached)",
		},
		[]string{"result"},
	)

	FieldDataLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "perfsummary_fielddata_latency_seconds",
		Help:    "Time taken by field data requests",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // From 100ms to ~100s
	})

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "perfsummary_circuit_breaker_state",
			Help: "Current state of circuit breakers (0=closed, 1=half-open, 2=open)",
		},
		[]string{"service"},
	)
)

// Writes the default registry to path in the text exposition format, for
// the node exporter textfile collector. Batch runs have no scrape endpoint.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}
