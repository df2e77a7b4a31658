// Package knowledge manages the expert-advice index used to give the fix
// oracle context about a detected issue.
package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/dm/esfixer/internal/client"
	"github.com/dm/esfixer/internal/model"
)

// DefaultIndex is the knowledge base index name.
const DefaultIndex = ".autofixer-knowledge"

// NoAdvice is returned when nothing in the knowledge base matches.
const NoAdvice = "No specific expert advice found."

// Store is the subset of the resource store the knowledge base needs.
type Store interface {
	Exists(ctx context.Context, index string) (bool, error)
	CreateIndex(ctx context.Context, index string, body map[string]any) error
	Bulk(ctx context.Context, index string, docs []any) error
	DeleteIndex(ctx context.Context, names []string) error
	Search(ctx context.Context, index string, body map[string]any, cacheDisabled bool) (*client.SearchResponse, error)
}

// Base is the knowledge base. Entries are seeded once and read-only after.
type Base struct {
	store  Store
	index  string
	logger *zap.Logger
}

// New creates a knowledge base backed by index (DefaultIndex when empty).
func New(store Store, index string, logger *zap.Logger) *Base {
	if index == "" {
		index = DefaultIndex
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Base{store: store, index: index, logger: logger.Named("knowledge")}
}

// Index returns the backing index name.
func (b *Base) Index() string {
	return b.index
}

// DefaultEntries is the advice seeded into a fresh knowledge base.
func DefaultEntries() []model.KnowledgeEntry {
	return []model.KnowledgeEntry{
		{
			Topic:            "wildcard",
			Content:          "Leading wildcards (e.g., *query) cause full term dictionary scans, killing CPU.",
			SolutionTemplate: "Use 'prefix' query or 'match_phrase_prefix' instead of leading wildcards.",
		},
		{
			Topic:            "pagination",
			Content:          "Deep pagination using from/size > 10,000 causes OOM (Out of Memory) errors.",
			SolutionTemplate: "Use 'search_after' with a PIT (Point in Time) for deep scrolling.",
		},
		{
			Topic:            "mapping",
			Content:          "Mapping explosion occurs when too many dynamic fields are created.",
			SolutionTemplate: "Set 'dynamic': 'strict' and explicitly map known fields.",
		},
		{
			Topic:            "ilm",
			Content:          "Indices growing indefinitely cause shard imbalance and slow recovery.",
			SolutionTemplate: "Apply an ILM policy with rollover at 50GB or 30 days.",
		},
	}
}

func indexBody() map[string]any {
	return map[string]any{
		"mappings": map[string]any{
			"properties": map[string]any{
				"topic":             map[string]any{"type": "keyword"},
				"content":           map[string]any{"type": "text", "analyzer": "english"},
				"solution_template": map[string]any{"type": "text"},
			},
		},
	}
}

// Ensure creates and seeds the knowledge base if it does not exist yet.
// It reports whether seeding happened. An existing index is left untouched;
// an index whose seeding failed is removed so the next call starts over.
func (b *Base) Ensure(ctx context.Context) (bool, error) {
	exists, err := b.store.Exists(ctx, b.index)
	if err != nil {
		return false, fmt.Errorf("knowledge ensure: %w", err)
	}
	if exists {
		return false, nil
	}

	if err := b.store.CreateIndex(ctx, b.index, indexBody()); err != nil {
		if errors.Is(err, client.ErrAlreadyExists) {
			return false, nil
		}
		return false, fmt.Errorf("knowledge create: %w", err)
	}

	entries := DefaultEntries()
	docs := make([]any, len(entries))
	for i, e := range entries {
		docs[i] = e
	}
	if err := b.store.Bulk(ctx, b.index, docs); err != nil {
		if derr := b.store.DeleteIndex(ctx, []string{b.index}); derr != nil && !client.IsNotFound(derr) {
			b.logger.Warn("removing unseeded knowledge index failed",
				zap.String("index", b.index), zap.Error(derr))
		}
		return false, fmt.Errorf("knowledge seed: %w", err)
	}
	b.logger.Info("knowledge base seeded", zap.String("index", b.index), zap.Int("entries", len(entries)))
	return true, nil
}

// Lookup returns the best matching entry for text, or nil when none matches.
func (b *Base) Lookup(ctx context.Context, text string) (*model.KnowledgeEntry, error) {
	if text == "" {
		return nil, nil
	}
	body := map[string]any{
		"query": map[string]any{
			"match": map[string]any{"content": text},
		},
		"size": 1,
	}
	resp, err := b.store.Search(ctx, b.index, body, false)
	if err != nil {
		return nil, fmt.Errorf("knowledge lookup: %w", err)
	}
	if len(resp.Hits.Hits) == 0 {
		return nil, nil
	}
	var entry model.KnowledgeEntry
	if err := json.Unmarshal(resp.Hits.Hits[0].Source, &entry); err != nil {
		return nil, fmt.Errorf("knowledge decode: %w", err)
	}
	return &entry, nil
}

// Advice formats the best matching entry for use in a prompt. Lookup
// failures are logged and reported as NoAdvice.
func (b *Base) Advice(ctx context.Context, text string) string {
	entry, err := b.Lookup(ctx, text)
	if err != nil {
		b.logger.Warn("knowledge lookup failed", zap.Error(err))
		return NoAdvice
	}
	if entry == nil {
		return NoAdvice
	}
	return fmt.Sprintf("EXPERT ADVICE: %s SOLUTION: %s", entry.Content, entry.SolutionTemplate)
}
