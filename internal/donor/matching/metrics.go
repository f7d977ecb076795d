package matching

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	matchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "donor_match_time_seconds",
		Help:    "Time spent answering a blood request with ranked donors.",
		Buckets: prometheus.DefBuckets,
	}, []string{"result"})

	matchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "donor_matches_total",
		Help: "Total matching calls grouped by outcome.",
	}, []string{"result"})
)
