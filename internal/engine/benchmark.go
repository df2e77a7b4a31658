package engine

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/dm/esfixer/internal/client"
	"github.com/dm/esfixer/internal/model"
)

const (
	defaultRuns           = 5
	defaultResultSize     = 10
	defaultBenchmarkIndex = "logs-*"
)

// Searcher runs a query against the resource store.
type Searcher interface {
	Search(ctx context.Context, index string, body map[string]any, cacheDisabled bool) (*client.SearchResponse, error)
}

// BenchmarkConfig controls the number of timed runs and result size.
type BenchmarkConfig struct {
	Runs int
	Size int
}

// Benchmarker times queries before and after a fix.
// Runs are sequential so measurements do not contend with each other.
type Benchmarker struct {
	store  Searcher
	cfg    BenchmarkConfig
	logger *zap.Logger
	now    func() time.Time
}

// NewBenchmarker creates a Benchmarker. Zero config values fall back to defaults.
func NewBenchmarker(store Searcher, cfg BenchmarkConfig, logger *zap.Logger) *Benchmarker {
	if cfg.Runs <= 0 {
		cfg.Runs = defaultRuns
	}
	if cfg.Size <= 0 {
		cfg.Size = defaultResultSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Benchmarker{
		store:  store,
		cfg:    cfg,
		logger: logger.Named("benchmarker"),
		now:    time.Now,
	}
}

// WithClock replaces the time source used to measure runs.
func (b *Benchmarker) WithClock(now func() time.Time) *Benchmarker {
	b.now = now
	return b
}

// BenchmarkQuery runs body against index with the request cache disabled and
// returns the mean latency in milliseconds. If any run fails the whole
// measurement is discarded and model.LatencyFailed is returned.
func (b *Benchmarker) BenchmarkQuery(ctx context.Context, index string, body map[string]any) float64 {
	req := make(map[string]any, len(body)+1)
	for k, v := range body {
		req[k] = v
	}
	if _, ok := req["size"]; !ok {
		req["size"] = b.cfg.Size
	}

	samples := make([]time.Duration, 0, b.cfg.Runs)
	for i := 0; i < b.cfg.Runs; i++ {
		start := b.now()
		if _, err := b.store.Search(ctx, index, req, true); err != nil {
			b.logger.Warn("benchmark run failed",
				zap.String("index", index),
				zap.Int("run", i),
				zap.Error(err))
			benchmarkRuns.WithLabelValues("failed").Inc()
			return model.LatencyFailed
		}
		samples = append(samples, b.now().Sub(start))
		benchmarkRuns.WithLabelValues("ok").Inc()
	}
	return MeanLatencyMs(samples)
}

// Compare benchmarks the original and optimized bodies on index, in that order.
func (b *Benchmarker) Compare(ctx context.Context, index string, original, optimized map[string]any) model.BenchmarkResult {
	before := b.BenchmarkQuery(ctx, index, original)
	after := b.BenchmarkQuery(ctx, index, optimized)
	result := Compare(before, after)
	b.logger.Info("benchmark complete",
		zap.String("index", index),
		zap.Float64("latency_before_ms", result.LatencyBeforeMs),
		zap.Float64("latency_after_ms", result.LatencyAfterMs),
		zap.Float64("improvement_percentage", result.ImprovementPercentage),
		zap.Bool("is_safe", result.IsSafe))
	return result
}

// BenchmarkProposal times the original and fixed query of p. Proposals
// without a fixed query have nothing to measure and get a neutral, safe
// result.
func (b *Benchmarker) BenchmarkProposal(ctx context.Context, p model.FixProposal) model.BenchmarkResult {
	fixed, ok := p.FixedQuery()
	if !ok {
		return model.NeutralBenchmark()
	}
	index, ok := p.TargetIndex()
	if !ok {
		index = defaultBenchmarkIndex
	}
	original, _ := p.OriginalQuery()
	if original == nil {
		original = map[string]any{}
	}
	return b.Compare(ctx, index,
		map[string]any{"query": original},
		map[string]any{"query": fixed})
}
