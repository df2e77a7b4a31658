// Package config loads esfixer configuration from an optional YAML file and
// ESFIXER_* environment variables.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Config holds the complete esfixer configuration.
type Config struct {
	Server        ServerConfig        `koanf:"server"`
	Elasticsearch ElasticsearchConfig `koanf:"elasticsearch"`
	Oracle        OracleConfig        `koanf:"oracle"`
	Scanner       ScannerConfig       `koanf:"scanner"`
	Benchmark     BenchmarkConfig     `koanf:"benchmark"`
	Agent         AgentConfig         `koanf:"agent"`
	Logging       LoggingConfig       `koanf:"logging"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	APIPrefix       string        `koanf:"api_prefix"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// ElasticsearchConfig holds cluster connection settings. Credentials embedded
// in URL are honoured when Username and Password are unset.
type ElasticsearchConfig struct {
	URL                string        `koanf:"url"`
	Username           string        `koanf:"username"`
	Password           Secret        `koanf:"password"`
	APIKey             Secret        `koanf:"api_key"`
	InsecureSkipVerify bool          `koanf:"insecure_skip_verify"`
	RequestTimeout     time.Duration `koanf:"request_timeout"`
}

// Oracle providers.
const (
	ProviderNone          = "none"
	ProviderOpenAI        = "openai"
	ProviderElasticsearch = "elasticsearch"
)

// OracleConfig selects and configures the fix text-generation backend.
type OracleConfig struct {
	Provider    string        `koanf:"provider"`
	Model       string        `koanf:"model"`
	APIKey      Secret        `koanf:"api_key"`
	BaseURL     string        `koanf:"base_url"`
	InferenceID string        `koanf:"inference_id"`
	Timeout     time.Duration `koanf:"timeout"`
	RateLimit   float64       `koanf:"rate_limit"`
	Burst       int           `koanf:"burst"`
}

// ScannerConfig configures detection.
type ScannerConfig struct {
	ManagedPattern string `koanf:"managed_pattern"`
	FieldLimit     int    `koanf:"field_limit"`
	Concurrency    int    `koanf:"concurrency"`
}

// BenchmarkConfig configures query timing.
type BenchmarkConfig struct {
	Runs int `koanf:"runs"`
	Size int `koanf:"size"`
}

// AgentConfig names the system indices and the default history page size.
type AgentConfig struct {
	HistoryIndex   string `koanf:"history_index"`
	KnowledgeIndex string `koanf:"knowledge_index"`
	HistoryLimit   int    `koanf:"history_limit"`
}

// LoggingConfig configures the logger.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Secret wraps strings that should be redacted in logs and serialization.
// Use Value() to access the actual secret value.
type Secret string

// String implements fmt.Stringer. Always returns redacted value.
func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return "[REDACTED]"
}

// GoString implements fmt.GoStringer for %#v formatting.
func (s Secret) GoString() string {
	return "Secret([REDACTED])"
}

// Value returns the actual secret value.
func (s Secret) Value() string {
	return string(s)
}

// IsSet returns true if the secret has a non-empty value.
func (s Secret) IsSet() bool {
	return s != ""
}

// MarshalJSON implements json.Marshaler. Always returns redacted value.
func (s Secret) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// Default returns the configuration used when nothing else is set.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8000
	}
	if cfg.Server.APIPrefix == "" {
		cfg.Server.APIPrefix = "/api/v1"
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}

	if cfg.Elasticsearch.URL == "" {
		cfg.Elasticsearch.URL = "http://localhost:9200"
	}
	if cfg.Elasticsearch.RequestTimeout == 0 {
		cfg.Elasticsearch.RequestTimeout = 30 * time.Second
	}

	if cfg.Oracle.Provider == "" {
		cfg.Oracle.Provider = ProviderNone
	}
	if cfg.Oracle.Model == "" {
		cfg.Oracle.Model = "gpt-4o-mini"
	}
	if cfg.Oracle.Timeout == 0 {
		cfg.Oracle.Timeout = 30 * time.Second
	}
	if cfg.Oracle.RateLimit == 0 {
		cfg.Oracle.RateLimit = 1
	}
	if cfg.Oracle.Burst == 0 {
		cfg.Oracle.Burst = 2
	}

	if cfg.Scanner.ManagedPattern == "" {
		cfg.Scanner.ManagedPattern = "bad-"
	}
	if cfg.Scanner.FieldLimit == 0 {
		cfg.Scanner.FieldLimit = 1000
	}
	if cfg.Scanner.Concurrency == 0 {
		cfg.Scanner.Concurrency = 4
	}

	if cfg.Benchmark.Runs == 0 {
		cfg.Benchmark.Runs = 5
	}
	if cfg.Benchmark.Size == 0 {
		cfg.Benchmark.Size = 10
	}

	if cfg.Agent.HistoryIndex == "" {
		cfg.Agent.HistoryIndex = ".autofixer-history"
	}
	if cfg.Agent.KnowledgeIndex == "" {
		cfg.Agent.KnowledgeIndex = ".autofixer-knowledge"
	}
	if cfg.Agent.HistoryLimit == 0 {
		cfg.Agent.HistoryLimit = 10
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

// Validate checks the configuration for values that cannot work.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port))
	}
	if !strings.HasPrefix(c.Server.APIPrefix, "/") {
		errs = append(errs, fmt.Errorf("server.api_prefix must start with /, got %q", c.Server.APIPrefix))
	}
	if c.Server.ShutdownTimeout < 0 {
		errs = append(errs, errors.New("server.shutdown_timeout must not be negative"))
	}

	if c.Elasticsearch.URL == "" {
		errs = append(errs, errors.New("elasticsearch.url is required"))
	}
	if c.Elasticsearch.RequestTimeout <= 0 {
		errs = append(errs, errors.New("elasticsearch.request_timeout must be positive"))
	}

	switch c.Oracle.Provider {
	case ProviderNone:
	case ProviderOpenAI:
		if !c.Oracle.APIKey.IsSet() {
			errs = append(errs, errors.New("oracle.api_key is required for the openai provider"))
		}
	case ProviderElasticsearch:
		if c.Oracle.InferenceID == "" {
			errs = append(errs, errors.New("oracle.inference_id is required for the elasticsearch provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("oracle.provider must be one of none, openai, elasticsearch, got %q", c.Oracle.Provider))
	}
	if c.Oracle.RateLimit < 0 || c.Oracle.Burst < 0 {
		errs = append(errs, errors.New("oracle.rate_limit and oracle.burst must not be negative"))
	}

	if c.Scanner.FieldLimit <= 0 {
		errs = append(errs, errors.New("scanner.field_limit must be positive"))
	}
	if c.Scanner.Concurrency <= 0 {
		errs = append(errs, errors.New("scanner.concurrency must be positive"))
	}
	if c.Benchmark.Runs <= 0 {
		errs = append(errs, errors.New("benchmark.runs must be positive"))
	}
	if c.Benchmark.Size < 0 {
		errs = append(errs, errors.New("benchmark.size must not be negative"))
	}
	if c.Agent.HistoryLimit <= 0 {
		errs = append(errs, errors.New("agent.history_limit must be positive"))
	}

	switch c.Logging.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format))
	}

	return errors.Join(errs...)
}
