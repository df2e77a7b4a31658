package model

// LatencyFailed is the sentinel latency reported when any benchmark run fails.
const LatencyFailed = -1.0

// BenchmarkResult compares query latency before and after a fix.
// CPU figures are not measured and stay zero.
type BenchmarkResult struct {
	LatencyBeforeMs       float64 `json:"latency_before_ms"`
	LatencyAfterMs        float64 `json:"latency_after_ms"`
	CPUBefore             float64 `json:"cpu_before"`
	CPUAfter              float64 `json:"cpu_after"`
	ImprovementPercentage float64 `json:"improvement_percentage"`
	IsSafe                bool    `json:"is_safe"`
}

// NeutralBenchmark is returned for fixes that have no query to time.
func NeutralBenchmark() BenchmarkResult {
	return BenchmarkResult{IsSafe: true}
}
