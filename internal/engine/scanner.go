package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dm/esfixer/internal/client"
	"github.com/dm/esfixer/internal/format"
	"github.com/dm/esfixer/internal/model"
)

const (
	defaultManagedPattern = "bad-"
	defaultFieldLimit     = 1000
	defaultConcurrency    = 4
)

// IndexReader is the subset of the resource store the scanner needs.
type IndexReader interface {
	ListIndices(ctx context.Context) ([]client.IndexInfo, error)
	GetMapping(ctx context.Context, index string) (map[string]any, error)
	GetIndexSettings(ctx context.Context, index string) (*client.IndexSettingValues, error)
}

// ScannerConfig controls which indices are scanned and the mapping ceiling.
type ScannerConfig struct {
	// ManagedPattern selects indices whose name contains it.
	ManagedPattern string
	FieldLimit     int
	// Concurrency bounds how many indices are inspected at once.
	Concurrency int
}

// ScanFailure records a detection rule that could not be evaluated.
type ScanFailure struct {
	Index string
	Rule  string
	Err   error
}

// ScanReport is the outcome of one scan. Failures do not invalidate Issues.
type ScanReport struct {
	Issues   []model.Issue
	Failures []ScanFailure
	Scanned  int
}

// rule inspects one index and returns an issue, or nil when healthy.
type rule struct {
	name  string
	check func(ctx context.Context, idx client.IndexInfo) (*model.Issue, error)
}

// Scanner enumerates managed indices and applies detection rules to each.
type Scanner struct {
	store  IndexReader
	cfg    ScannerConfig
	logger *zap.Logger
	now    func() time.Time
	rules  []rule
}

// NewScanner creates a Scanner. Zero config values fall back to defaults.
func NewScanner(store IndexReader, cfg ScannerConfig, logger *zap.Logger) *Scanner {
	if cfg.ManagedPattern == "" {
		cfg.ManagedPattern = defaultManagedPattern
	}
	if cfg.FieldLimit <= 0 {
		cfg.FieldLimit = defaultFieldLimit
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Scanner{
		store:  store,
		cfg:    cfg,
		logger: logger.Named("scanner"),
		now:    time.Now,
	}
	s.rules = []rule{
		{name: "mapping", check: s.checkMapping},
		{name: "retention", check: s.checkRetention},
	}
	return s
}

// WithClock replaces the time source used for DetectedAt.
func (s *Scanner) WithClock(now func() time.Time) *Scanner {
	s.now = now
	return s
}

// ScanAll returns every issue found across managed indices.
func (s *Scanner) ScanAll(ctx context.Context) ([]model.Issue, error) {
	report, err := s.Scan(ctx)
	if err != nil {
		return nil, err
	}
	return report.Issues, nil
}

// Scan lists indices and runs every rule against each managed one.
// Listing failure aborts the scan; a failing rule on one index is logged and
// recorded in the report while the remaining indices are still scanned.
// Issues are returned in listing order, mapping before retention.
func (s *Scanner) Scan(ctx context.Context) (*ScanReport, error) {
	indices, err := s.store.ListIndices(ctx)
	if err != nil {
		return nil, fmt.Errorf("Scan: %w", err)
	}

	managed := make([]client.IndexInfo, 0, len(indices))
	for _, idx := range indices {
		if s.isManaged(idx.Index) {
			managed = append(managed, idx)
		}
	}
	s.logger.Debug("scan started",
		zap.Int("indices", len(indices)),
		zap.Int("managed", len(managed)))

	type slot struct {
		issues   []model.Issue
		failures []ScanFailure
	}
	results := make([]slot, len(managed))

	var g errgroup.Group
	g.SetLimit(s.cfg.Concurrency)
	for i, idx := range managed {
		g.Go(func() error {
			for _, r := range s.rules {
				issue, err := r.check(ctx, idx)
				if err != nil {
					s.logger.Warn("detection rule failed",
						zap.String("index", idx.Index),
						zap.String("rule", r.name),
						zap.Error(err))
					scanFailures.WithLabelValues(r.name).Inc()
					results[i].failures = append(results[i].failures, ScanFailure{Index: idx.Index, Rule: r.name, Err: err})
					continue
				}
				if issue != nil {
					issuesDetected.WithLabelValues(string(issue.Category)).Inc()
					results[i].issues = append(results[i].issues, *issue)
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("Scan: %w", err)
	}

	report := &ScanReport{Issues: []model.Issue{}, Scanned: len(managed)}
	for _, r := range results {
		report.Issues = append(report.Issues, r.issues...)
		report.Failures = append(report.Failures, r.failures...)
	}
	s.logger.Info("scan complete",
		zap.Int("scanned", report.Scanned),
		zap.Int("issues", len(report.Issues)),
		zap.Int("failures", len(report.Failures)))
	return report, nil
}

func (s *Scanner) isManaged(name string) bool {
	return strings.Contains(name, s.cfg.ManagedPattern)
}

func (s *Scanner) checkMapping(ctx context.Context, idx client.IndexInfo) (*model.Issue, error) {
	mapping, err := s.store.GetMapping(ctx, idx.Index)
	if err != nil {
		return nil, err
	}
	count := CountFields(mapping)
	if count <= s.cfg.FieldLimit {
		return nil, nil
	}
	return &model.Issue{
		ID:               "mapping_" + idx.Index,
		Severity:         model.SeverityCritical,
		Category:         model.CategoryMapping,
		Description:      fmt.Sprintf("Mapping Explosion: Index has %d fields (Limit %d).", count, s.cfg.FieldLimit),
		AffectedResource: idx.Index,
		DetectedAt:       s.now().UTC(),
		Metrics: map[string]any{
			"field_count": count,
			"field_limit": s.cfg.FieldLimit,
		},
	}, nil
}

func (s *Scanner) checkRetention(ctx context.Context, idx client.IndexInfo) (*model.Issue, error) {
	settings, err := s.store.GetIndexSettings(ctx, idx.Index)
	if err != nil {
		return nil, err
	}
	if settings.HasLifecyclePolicy() {
		return nil, nil
	}

	size := "unknown"
	sizeBytes := idx.StoreSizeBytes()
	if sizeBytes >= 0 {
		size = format.FormatBytes(sizeBytes)
	}
	return &model.Issue{
		ID:               "missing_ilm_" + idx.Index,
		Severity:         model.SeverityCritical,
		Category:         model.CategoryILM,
		Description:      "Missing ILM Policy: Index will grow indefinitely.",
		AffectedResource: idx.Index,
		DetectedAt:       s.now().UTC(),
		Metrics: map[string]any{
			"size":       size,
			"size_bytes": sizeBytes,
		},
	}, nil
}

// CountFields returns the number of mapped fields, including object and
// nested sub-fields and multi-fields.
func CountFields(mapping map[string]any) int {
	props, _ := mapping["properties"].(map[string]any)
	return countProperties(props)
}

func countProperties(props map[string]any) int {
	n := 0
	for _, v := range props {
		n++
		field, ok := v.(map[string]any)
		if !ok {
			continue
		}
		if sub, ok := field["properties"].(map[string]any); ok {
			n += countProperties(sub)
		}
		if multi, ok := field["fields"].(map[string]any); ok {
			n += countProperties(multi)
		}
	}
	return n
}
