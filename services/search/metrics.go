package search

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	pathRanked   = "ranked"
	pathFallback = "fallback"

	outcomeSuccess = "success"
	outcomeFailure = "failure"
	outcomeInvalid = "invalid"
)

var (
	searchRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "caseindex",
		Name:      "search_requests_total",
		Help:      "Search requests by retrieval path and outcome.",
	}, []string{"path", "outcome"})

	searchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "caseindex",
		Name:      "search_duration_seconds",
		Help:      "Time spent answering search requests.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"path"})
)
