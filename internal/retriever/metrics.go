package retriever

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DegradedSearches counts per-vertical searches that failed and were
	// treated as empty.
	DegradedSearches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "verticald",
			Subsystem: "retrieval",
			Name:      "degraded_searches_total",
			Help:      "Vertical searches that failed and contributed no results",
		},
		[]string{"vertical"},
	)

	// AuthorizationDrops counts chunks discarded because their vertical was
	// outside the caller's authorization set.
	AuthorizationDrops = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "verticald",
			Subsystem: "retrieval",
			Name:      "authorization_drops_total",
			Help:      "Retrieved chunks dropped for belonging to an unauthorized vertical",
		},
		[]string{"vertical"},
	)

	// ResultsReturned records how many chunks each retrieval returned.
	ResultsReturned = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "verticald",
			Subsystem: "retrieval",
			Name:      "results_returned",
			Help:      "Chunks returned per retrieval",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
		},
	)
)
