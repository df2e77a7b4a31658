package engine

import (
	"math"
	"time"

	"github.com/dm/esfixer/internal/model"
)

// safeDivide returns a/b, or 0 when b is zero.
func safeDivide(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return a / b
}

// round2 rounds v to two decimal places.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// durationMs converts d to fractional milliseconds.
func durationMs(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// MeanLatencyMs returns the arithmetic mean of samples in milliseconds,
// rounded to two decimals. An empty sample set yields 0.
func MeanLatencyMs(samples []time.Duration) float64 {
	if len(samples) == 0 {
		return 0
	}
	var total float64
	for _, s := range samples {
		total += durationMs(s)
	}
	return round2(total / float64(len(samples)))
}

// Compare builds a BenchmarkResult from before/after mean latencies.
// A failed measurement on either side (negative sentinel) is never safe and
// reports no improvement. Otherwise improvement is computed only when before
// is positive.
func Compare(beforeMs, afterMs float64) model.BenchmarkResult {
	failed := beforeMs < 0 || afterMs < 0
	improvement := 0.0
	if !failed && beforeMs > 0 {
		improvement = safeDivide(beforeMs-afterMs, beforeMs) * 100
	}
	return model.BenchmarkResult{
		LatencyBeforeMs:       beforeMs,
		LatencyAfterMs:        afterMs,
		ImprovementPercentage: round2(improvement),
		IsSafe:                !failed && afterMs <= beforeMs,
	}
}
