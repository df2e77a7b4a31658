package agent

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// cyclesTotal counts finished cycles.
	// Labels: status (idle, action_required, error)
	cyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "esfixer",
			Subsystem: "agent",
			Name:      "cycles_total",
			Help:      "Total number of agent cycles by terminal status",
		},
		[]string{"status"},
	)

	cycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "esfixer",
			Subsystem: "agent",
			Name:      "cycle_duration_seconds",
			Help:      "Duration of agent cycles",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		},
	)
)
