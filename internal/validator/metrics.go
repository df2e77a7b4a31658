package validator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// appliesTotal counts apply outcomes.
// Labels: status (success, degraded, skipped, error)
var appliesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "esfixer",
		Subsystem: "validator",
		Name:      "applies_total",
		Help:      "Total number of fix applications by outcome",
	},
	[]string{"status"},
)
