package vectorstore

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OperationDuration tracks backend call latency.
	// Labels: backend (chromem, qdrant), operation (upsert, query, get, delete, count)
	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "verticald",
			Subsystem: "vectorstore",
			Name:      "operation_duration_seconds",
			Help:      "Duration of vector store operations in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"backend", "operation"},
	)

	// OperationErrors counts failed backend calls.
	OperationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "verticald",
			Subsystem: "vectorstore",
			Name:      "operation_errors_total",
			Help:      "Total number of failed vector store operations",
		},
		[]string{"backend", "operation"},
	)

	// DocumentsWritten counts upserted documents.
	DocumentsWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "verticald",
			Subsystem: "vectorstore",
			Name:      "documents_written_total",
			Help:      "Total number of documents upserted",
		},
		[]string{"backend"},
	)

	// CircuitState reports the qdrant breaker state (0=closed, 1=half-open, 2=open).
	CircuitState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "verticald",
			Subsystem: "vectorstore",
			Name:      "circuit_state",
			Help:      "Qdrant circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
	)
)

// track starts timing an operation. The returned func records the duration
// and, if *errp is non-nil, an error.
func track(backend, operation string) func(errp *error) {
	start := time.Now()
	return func(errp *error) {
		OperationDuration.WithLabelValues(backend, operation).Observe(time.Since(start).Seconds())
		if errp != nil && *errp != nil {
			OperationErrors.WithLabelValues(backend, operation).Inc()
		}
	}
}
