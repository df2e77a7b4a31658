package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/dm/esfixer/internal/client"
)

const (
	demoMappingIndex = "bad-mapping-logs"
	demoILMIndex     = "bad-ilm-logs-000001"

	demoMappingFields = 1500
	demoMappingLimit  = 5000
	demoILMDocs       = 50
)

// seedStore is the subset of the resource store seed-demo needs.
type seedStore interface {
	DeleteIndex(ctx context.Context, names []string) error
	CreateIndex(ctx context.Context, index string, body map[string]any) error
	IndexDocument(ctx context.Context, index string, doc any) (string, error)
	Bulk(ctx context.Context, index string, docs []any) error
}

// seedDemo recreates two indices that each trip one detection rule: one with
// far more fields than the mapping limit and one with no lifecycle policy.
func seedDemo(ctx context.Context, store seedStore, now time.Time, logger *zap.Logger) error {
	for _, index := range []string{demoMappingIndex, demoILMIndex} {
		if err := store.DeleteIndex(ctx, []string{index}); err != nil && !client.IsNotFound(err) {
			return fmt.Errorf("reset %s: %w", index, err)
		}
	}

	if err := store.CreateIndex(ctx, demoMappingIndex, map[string]any{
		"settings": map[string]any{
			"index.mapping.total_fields.limit": demoMappingLimit,
		},
	}); err != nil {
		return fmt.Errorf("create %s: %w", demoMappingIndex, err)
	}
	wide := make(map[string]any, demoMappingFields)
	for i := 0; i < demoMappingFields; i++ {
		wide["field_"+strconv.Itoa(i)] = "value"
	}
	if _, err := store.IndexDocument(ctx, demoMappingIndex, wide); err != nil {
		return fmt.Errorf("populate %s: %w", demoMappingIndex, err)
	}
	logger.Info("demo index created", zap.String("index", demoMappingIndex), zap.Int("fields", demoMappingFields))

	if err := store.CreateIndex(ctx, demoILMIndex, nil); err != nil {
		return fmt.Errorf("create %s: %w", demoILMIndex, err)
	}
	docs := make([]any, demoILMDocs)
	for i := range docs {
		docs[i] = map[string]any{
			"@timestamp": now.Add(-time.Duration(i) * time.Minute).UTC().Format(time.RFC3339),
			"message":    "log entry " + strconv.Itoa(i),
		}
	}
	if err := store.Bulk(ctx, demoILMIndex, docs); err != nil {
		return fmt.Errorf("populate %s: %w", demoILMIndex, err)
	}
	logger.Info("demo index created", zap.String("index", demoILMIndex), zap.Int("docs", demoILMDocs))
	return nil
}
