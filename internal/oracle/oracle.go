// Package oracle turns a detected issue into a structured fix proposal.
// A text-generation provider is asked first; any provider failure falls back
// to a deterministic template keyed on the issue category.
package oracle

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/dm/esfixer/internal/model"
)

const defaultTimeout = 30 * time.Second

// Provider sends a prompt to a text-generation backend and returns its reply.
type Provider interface {
	Name() string
	Complete(ctx context.Context, prompt string) (string, error)
}

// Advisor supplies background advice for an issue description.
type Advisor interface {
	Advice(ctx context.Context, text string) string
}

// Generator produces fix proposals. It never fails: every error path ends in
// the deterministic fallback.
type Generator struct {
	provider Provider
	advisor  Advisor
	timeout  time.Duration
	logger   *zap.Logger
}

// Option configures a Generator.
type Option func(*Generator)

// WithProvider sets the text-generation provider. Without one every proposal
// comes from the fallback table.
func WithProvider(p Provider) Option {
	return func(g *Generator) { g.provider = p }
}

// WithAdvisor sets the knowledge source used to enrich prompts.
func WithAdvisor(a Advisor) Option {
	return func(g *Generator) { g.advisor = a }
}

// WithTimeout bounds a single provider call.
func WithTimeout(d time.Duration) Option {
	return func(g *Generator) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(g *Generator) {
		if l != nil {
			g.logger = l
		}
	}
}

// NewGenerator creates a Generator.
func NewGenerator(opts ...Option) *Generator {
	g := &Generator{
		timeout: defaultTimeout,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = g.logger.Named("oracle")
	return g
}

// GenerateFix returns a proposal for issue.
func (g *Generator) GenerateFix(ctx context.Context, issue model.Issue) model.FixProposal {
	original := OriginalCode(issue)

	if g.provider == nil {
		return g.fallback(issue, original, "no provider configured")
	}

	advice := "No specific expert advice found."
	if g.advisor != nil {
		advice = g.advisor.Advice(ctx, issue.Description)
	}
	prompt, err := BuildPrompt(advice, issue.Category, original)
	if err != nil {
		return g.fallback(issue, original, err.Error())
	}

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	text, err := g.provider.Complete(callCtx, prompt)
	providerLatency.WithLabelValues(g.provider.Name()).Observe(time.Since(start).Seconds())
	if err != nil {
		return g.fallback(issue, original, err.Error())
	}

	reply, err := ParseReply(text)
	if err != nil {
		return g.fallback(issue, original, err.Error())
	}

	proposalsTotal.WithLabelValues(model.SourceLLM).Inc()
	g.logger.Info("fix generated",
		zap.String("issue_id", issue.ID),
		zap.String("provider", g.provider.Name()))
	return model.FixProposal{
		IssueID:         issue.ID,
		OriginalCode:    original,
		FixedCode:       reply.FixedCode,
		Explanation:     reply.Explanation,
		EstimatedImpact: reply.EstimatedImpact,
		Source:          model.SourceLLM,
	}
}

func (g *Generator) fallback(issue model.Issue, original map[string]any, reason string) model.FixProposal {
	g.logger.Warn("using fallback fix",
		zap.String("issue_id", issue.ID),
		zap.String("category", string(issue.Category)),
		zap.String("reason", reason))
	proposalsTotal.WithLabelValues(model.SourceFallback).Inc()
	return Fallback(issue, original)
}
