package index

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeSuccess = "success"
	outcomeFailure = "failure"
	outcomeSkipped = "skipped"
)

var (
	indexOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "caseindex",
		Name:      "index_operations_total",
		Help:      "Entity indexing operations by entity type and outcome.",
	}, []string{"entity_type", "outcome"})

	rebuildDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "caseindex",
		Name:      "index_rebuild_duration_seconds",
		Help:      "Duration of full and per-user index rebuilds.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
	}, []string{"scope"})
)
