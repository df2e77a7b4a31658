package oracle

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
)

const (
	defaultModel     = "gpt-4o-mini"
	defaultRateLimit = 1.0
	defaultBurst     = 2
	systemPrompt     = "You are an Elasticsearch expert. You answer with a single JSON object."
)

// LimitConfig bounds how often a provider is called.
type LimitConfig struct {
	RatePerSecond float64
	Burst         int
}

func newLimiter(cfg LimitConfig) *rate.Limiter {
	r := cfg.RatePerSecond
	if r <= 0 {
		r = defaultRateLimit
	}
	b := cfg.Burst
	if b <= 0 {
		b = defaultBurst
	}
	return rate.NewLimiter(rate.Limit(r), b)
}

// OpenAIConfig configures the OpenAI-compatible chat provider.
type OpenAIConfig struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
	Limit   LimitConfig
}

// OpenAIProvider generates fixes with an OpenAI-compatible chat completion API.
type OpenAIProvider struct {
	client  *openai.Client
	model   string
	limiter *rate.Limiter
}

// NewOpenAIProvider creates an OpenAIProvider. An API key is required.
func NewOpenAIProvider(cfg OpenAIConfig) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai provider: api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	oc.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	return &OpenAIProvider{
		client:  openai.NewClientWithConfig(oc),
		model:   cfg.Model,
		limiter: newLimiter(cfg.Limit),
	}, nil
}

// Name implements Provider.
func (p *OpenAIProvider) Name() string { return "openai" }

// Complete implements Provider.
func (p *OpenAIProvider) Complete(ctx context.Context, prompt string) (string, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("openai rate limit: %w", err)
	}

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return "", fmt.Errorf("openai completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai completion: no choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}

// Inferencer calls a completion endpoint hosted by the cluster.
type Inferencer interface {
	Inference(ctx context.Context, inferenceID, input string) (string, error)
}

// InferenceProvider generates fixes through the cluster's inference API.
type InferenceProvider struct {
	store       Inferencer
	inferenceID string
	limiter     *rate.Limiter
}

// NewInferenceProvider creates an InferenceProvider for inferenceID.
func NewInferenceProvider(store Inferencer, inferenceID string, limit LimitConfig) (*InferenceProvider, error) {
	if inferenceID == "" {
		return nil, fmt.Errorf("inference provider: inference id is required")
	}
	return &InferenceProvider{
		store:       store,
		inferenceID: inferenceID,
		limiter:     newLimiter(limit),
	}, nil
}

// Name implements Provider.
func (p *InferenceProvider) Name() string { return "elasticsearch" }

// Complete implements Provider.
func (p *InferenceProvider) Complete(ctx context.Context, prompt string) (string, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("inference rate limit: %w", err)
	}
	return p.store.Inference(ctx, p.inferenceID, prompt)
}
