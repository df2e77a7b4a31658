// Package history persists the append-only agent log.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dm/esfixer/internal/client"
	"github.com/dm/esfixer/internal/model"
)

// DefaultIndex is the history log index name.
const DefaultIndex = ".autofixer-history"

// Store is the subset of the resource store the history log needs.
type Store interface {
	Exists(ctx context.Context, index string) (bool, error)
	CreateIndex(ctx context.Context, index string, body map[string]any) error
	IndexDocument(ctx context.Context, index string, doc any) (string, error)
	Search(ctx context.Context, index string, body map[string]any, cacheDisabled bool) (*client.SearchResponse, error)
}

// Log is the history log. Records are only ever appended.
type Log struct {
	store  Store
	index  string
	logger *zap.Logger

	mu      sync.Mutex
	ensured bool

	seqMu   sync.Mutex
	lastSeq int64
}

// New creates a history log backed by index (DefaultIndex when empty).
func New(store Store, index string, logger *zap.Logger) *Log {
	if index == "" {
		index = DefaultIndex
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Log{store: store, index: index, logger: logger.Named("history")}
}

// nextSeq returns a nanosecond stamp that is strictly greater than any this
// Log has handed out before.
func (l *Log) nextSeq() int64 {
	l.seqMu.Lock()
	defer l.seqMu.Unlock()
	seq := time.Now().UnixNano()
	if seq <= l.lastSeq {
		seq = l.lastSeq + 1
	}
	l.lastSeq = seq
	return seq
}

// Index returns the backing index name.
func (l *Log) Index() string {
	return l.index
}

func mappingBody() map[string]any {
	return map[string]any{
		"mappings": map[string]any{
			"properties": map[string]any{
				"timestamp": map[string]any{"type": "date", "format": "epoch_millis"},
				"seq":       map[string]any{"type": "long"},
				"issue_id":  map[string]any{"type": "keyword"},
				"action":    map[string]any{"type": "keyword"},
				"details":   map[string]any{"type": "object", "enabled": false},
			},
		},
	}
}

// EnsureIndex creates the log if it does not exist. Once it has succeeded
// later calls return immediately.
func (l *Log) EnsureIndex(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ensured {
		return nil
	}

	exists, err := l.store.Exists(ctx, l.index)
	if err != nil {
		return fmt.Errorf("history ensure: %w", err)
	}
	if !exists {
		err := l.store.CreateIndex(ctx, l.index, mappingBody())
		switch {
		case err == nil:
			l.logger.Info("history index created", zap.String("index", l.index))
		case errors.Is(err, client.ErrAlreadyExists):
		default:
			return fmt.Errorf("history create: %w", err)
		}
	}
	l.ensured = true
	return nil
}

// Append writes rec to the log, stamping its sequence number.
func (l *Log) Append(ctx context.Context, rec model.HistoryRecord) error {
	rec.Seq = l.nextSeq()
	if _, err := l.store.IndexDocument(ctx, l.index, rec); err != nil {
		return fmt.Errorf("history append: %w", err)
	}
	l.logger.Debug("history record appended",
		zap.String("issue_id", rec.IssueID),
		zap.String("action", string(rec.Action)))
	return nil
}

// querySort orders by timestamp, then by append sequence. Records written
// before seq existed have none and sort last within their millisecond.
func querySort() []any {
	return []any{
		map[string]any{"timestamp": map[string]any{"order": "desc"}},
		map[string]any{"seq": map[string]any{"order": "desc", "unmapped_type": "long"}},
	}
}

// Query returns up to limit records, newest first. Read failures are logged
// and yield an empty result.
func (l *Log) Query(ctx context.Context, limit int) []model.HistoryRecord {
	if limit <= 0 {
		return []model.HistoryRecord{}
	}
	body := map[string]any{
		"query": map[string]any{"match_all": map[string]any{}},
		"sort":  querySort(),
		"size":  limit,
	}
	resp, err := l.store.Search(ctx, l.index, body, false)
	if err != nil {
		l.logger.Warn("history query failed", zap.Int("limit", limit), zap.Error(err))
		return []model.HistoryRecord{}
	}

	records := make([]model.HistoryRecord, 0, len(resp.Hits.Hits))
	for _, hit := range resp.Hits.Hits {
		var rec model.HistoryRecord
		if err := json.Unmarshal(hit.Source, &rec); err != nil {
			l.logger.Warn("skipping undecodable history record", zap.String("id", hit.ID), zap.Error(err))
			continue
		}
		records = append(records, rec)
	}
	return records
}
