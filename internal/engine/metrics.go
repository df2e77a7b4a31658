package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// issuesDetected counts issues emitted by the scanner.
	// Labels: category
	issuesDetected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "esfixer",
			Subsystem: "scanner",
			Name:      "issues_detected_total",
			Help:      "Total number of issues detected by category",
		},
		[]string{"category"},
	)

	// scanFailures counts detection rules that could not be evaluated.
	// Labels: rule (mapping, retention)
	scanFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "esfixer",
			Subsystem: "scanner",
			Name:      "rule_failures_total",
			Help:      "Total number of per-index detection rule failures",
		},
		[]string{"rule"},
	)

	// benchmarkRuns counts individual timed benchmark runs.
	// Labels: result (ok, failed)
	benchmarkRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "esfixer",
			Subsystem: "benchmark",
			Name:      "runs_total",
			Help:      "Total number of benchmark runs by result",
		},
		[]string{"result"},
	)
)
