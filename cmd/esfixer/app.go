package main

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/dm/esfixer/internal/agent"
	"github.com/dm/esfixer/internal/client"
	"github.com/dm/esfixer/internal/config"
	"github.com/dm/esfixer/internal/engine"
	"github.com/dm/esfixer/internal/history"
	"github.com/dm/esfixer/internal/knowledge"
	"github.com/dm/esfixer/internal/oracle"
	"github.com/dm/esfixer/internal/validator"
)

// app holds the process-wide components. Everything shares one lazily
// established cluster session.
type app struct {
	es        *client.LazyClient
	knowledge *knowledge.Base
	history   *history.Log
	agent     *agent.Orchestrator
}

func newApp(cfg *config.Config, logger *zap.Logger) (*app, error) {
	cc, err := clientConfig(cfg.Elasticsearch)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch: %w", err)
	}
	es := client.NewLazyClient(cc, logger.Named("client"))

	kb := knowledge.New(es, cfg.Agent.KnowledgeIndex, logger)
	hist := history.New(es, cfg.Agent.HistoryIndex, logger)

	opts := []oracle.Option{oracle.WithAdvisor(kb), oracle.WithTimeout(cfg.Oracle.Timeout), oracle.WithLogger(logger)}
	provider, err := newProvider(cfg.Oracle, es)
	if err != nil {
		return nil, err
	}
	if provider != nil {
		opts = append(opts, oracle.WithProvider(provider))
		logger.Info("fix provider configured", zap.String("provider", provider.Name()))
	} else {
		logger.Info("no fix provider configured, using fallback fixes only")
	}

	scanner := engine.NewScanner(es, engine.ScannerConfig{
		ManagedPattern: cfg.Scanner.ManagedPattern,
		FieldLimit:     cfg.Scanner.FieldLimit,
		Concurrency:    cfg.Scanner.Concurrency,
	}, logger)
	bench := engine.NewBenchmarker(es, engine.BenchmarkConfig{
		Runs: cfg.Benchmark.Runs,
		Size: cfg.Benchmark.Size,
	}, logger)

	orch := agent.New(agent.Components{
		Scanner:     scanner,
		Oracle:      oracle.NewGenerator(opts...),
		Validator:   validator.New(es, logger),
		Benchmarker: bench,
		History:     hist,
	}, logger)

	return &app{es: es, knowledge: kb, history: hist, agent: orch}, nil
}

func newProvider(cfg config.OracleConfig, es oracle.Inferencer) (oracle.Provider, error) {
	limit := oracle.LimitConfig{RatePerSecond: cfg.RateLimit, Burst: cfg.Burst}
	switch cfg.Provider {
	case config.ProviderOpenAI:
		p, err := oracle.NewOpenAIProvider(oracle.OpenAIConfig{
			APIKey:  cfg.APIKey.Value(),
			Model:   cfg.Model,
			BaseURL: cfg.BaseURL,
			Timeout: cfg.Timeout,
			Limit:   limit,
		})
		if err != nil {
			return nil, err
		}
		return p, nil
	case config.ProviderElasticsearch:
		p, err := oracle.NewInferenceProvider(es, cfg.InferenceID, limit)
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, nil
	}
}

func (a *app) Close() {
	a.es.Close()
}
