package oracle

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// proposalsTotal counts generated proposals.
	// Labels: source (llm, fallback)
	proposalsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "esfixer",
			Subsystem: "oracle",
			Name:      "proposals_total",
			Help:      "Total number of fix proposals by source",
		},
		[]string{"source"},
	)

	// providerLatency tracks provider call duration.
	// Labels: provider
	providerLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "esfixer",
			Subsystem: "oracle",
			Name:      "provider_duration_seconds",
			Help:      "Duration of text-generation provider calls in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"provider"},
	)
)
