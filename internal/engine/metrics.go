package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DocumentsIngested counts ingest runs by final document state.
	DocumentsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "verticald",
			Subsystem: "ingest",
			Name:      "documents_total",
			Help:      "Documents ingested, by final state",
		},
		[]string{"state"},
	)

	// VerticalOutcomes counts per-vertical ingest results.
	VerticalOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "verticald",
			Subsystem: "ingest",
			Name:      "vertical_outcomes_total",
			Help:      "Per-vertical ingest outcomes",
		},
		[]string{"vertical", "outcome"},
	)

	// ChunksStored counts chunks written per vertical.
	ChunksStored = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "verticald",
			Subsystem: "ingest",
			Name:      "chunks_stored_total",
			Help:      "Chunks written to a vertical's index",
		},
		[]string{"vertical"},
	)

	// IngestDuration records end-to-end ingest latency.
	IngestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "verticald",
			Subsystem: "ingest",
			Name:      "duration_seconds",
			Help:      "Time to ingest one document",
			Buckets:   prometheus.DefBuckets,
		},
	)

	// Queries counts query calls by result kind.
	Queries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "verticald",
			Subsystem: "query",
			Name:      "total",
			Help:      "Queries answered, by result kind",
		},
		[]string{"result"},
	)

	// Resets counts vertical resets.
	Resets = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "verticald",
			Subsystem: "admin",
			Name:      "resets_total",
			Help:      "Vertical resets, by outcome",
		},
		[]string{"vertical", "outcome"},
	)
)
