// Package validator checks, backs up and applies fix proposals.
package validator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/dm/esfixer/internal/client"
	"github.com/dm/esfixer/internal/model"
)

var (
	// ErrMissingTarget means the proposal does not name the index to change.
	ErrMissingTarget = errors.New("target index name missing from proposal")
	// ErrInvalidSyntax means the fixed query failed the dry-run check.
	ErrInvalidSyntax = errors.New("invalid Elasticsearch syntax")
)

// Lifecycle stand-in settings applied for policy fixes.
const (
	lifecycleAliasSuffix     = "-alias"
	lifecycleRefreshInterval = "30s"
	lifecycleReplicas        = 1
)

// Store is the subset of the resource store the validator needs.
type Store interface {
	ValidateQuery(ctx context.Context, index string, query map[string]any) (*client.ValidateResponse, error)
	GetMapping(ctx context.Context, index string) (map[string]any, error)
	GetIndexSettings(ctx context.Context, index string) (*client.IndexSettingValues, error)
	GetLifecyclePolicy(ctx context.Context, name string) (map[string]any, error)
	PutMapping(ctx context.Context, index string, body map[string]any) error
	PutAlias(ctx context.Context, index, alias string) error
	PutSettings(ctx context.Context, index string, settings map[string]any) error
}

// Backup is the pre-fix state of an index. State is empty when the fix
// category needs no backup or nothing existed yet.
type Backup struct {
	Index    string         `json:"index"`
	Category model.Category `json:"category"`
	State    map[string]any `json:"state"`
	TakenAt  time.Time      `json:"taken_at"`
}

// Empty reports whether the backup holds no state.
func (b Backup) Empty() bool {
	return len(b.State) == 0
}

// Validator validates and applies fixes against the resource store.
type Validator struct {
	store  Store
	logger *zap.Logger
	now    func() time.Time
}

// New creates a Validator.
func New(store Store, logger *zap.Logger) *Validator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Validator{store: store, logger: logger.Named("validator"), now: time.Now}
}

// ValidateSyntax dry-runs the query clause of fix, if it has one. Fixes
// without a query have no dry-run and are valid by definition. Any failure
// of the check itself counts as invalid.
func (v *Validator) ValidateSyntax(ctx context.Context, fix model.FixProposal) bool {
	query, ok := fix.FixedQuery()
	if !ok {
		if _, present := fix.FixedCode[model.KeyQuery]; present {
			v.logger.Warn("query clause is not an object", zap.String("issue_id", fix.IssueID))
			return false
		}
		return true
	}

	index, _ := fix.TargetIndex()
	resp, err := v.store.ValidateQuery(ctx, index, query)
	if err != nil {
		v.logger.Warn("syntax validation failed",
			zap.String("issue_id", fix.IssueID),
			zap.String("index", index),
			zap.Error(err))
		return false
	}
	if !resp.Valid {
		v.logger.Info("query rejected by dry run",
			zap.String("issue_id", fix.IssueID),
			zap.Any("explanations", resp.Explanations))
	}
	return resp.Valid
}

// CreateBackup snapshots the state a fix of category would change on index.
// Mapping fixes capture the mapping; lifecycle fixes capture the attached
// policy. A missing resource yields an empty backup.
func (v *Validator) CreateBackup(ctx context.Context, index string, category model.Category) (Backup, error) {
	b := Backup{Index: index, Category: category, State: map[string]any{}, TakenAt: v.now().UTC()}

	switch category {
	case model.CategoryMapping:
		mapping, err := v.store.GetMapping(ctx, index)
		if err != nil {
			if client.IsNotFound(err) {
				return b, nil
			}
			return b, fmt.Errorf("backup mapping: %w", err)
		}
		b.State["mappings"] = mapping
	case model.CategoryILM:
		settings, err := v.store.GetIndexSettings(ctx, index)
		if err != nil {
			if client.IsNotFound(err) {
				return b, nil
			}
			return b, fmt.Errorf("backup lifecycle: %w", err)
		}
		if !settings.HasLifecyclePolicy() {
			return b, nil
		}
		policy, err := v.store.GetLifecyclePolicy(ctx, settings.Lifecycle.Name)
		if err != nil {
			if client.IsNotFound(err) {
				return b, nil
			}
			return b, fmt.Errorf("backup lifecycle: %w", err)
		}
		b.State["policy_name"] = settings.Lifecycle.Name
		b.State["policy"] = policy
	}
	return b, nil
}

// ApplyFix performs the change described by fix and reports the outcome.
// It never returns a raw transport error: failures become an error result.
func (v *Validator) ApplyFix(ctx context.Context, fix model.FixProposal) model.ApplyResult {
	index, ok := fix.TargetIndex()
	if !ok {
		v.logger.Error("apply rejected", zap.String("issue_id", fix.IssueID), zap.Error(ErrMissingTarget))
		return v.count(model.ApplyResult{
			Status:  model.ApplyError,
			Message: "Critical Logic Error: " + ErrMissingTarget.Error() + ".",
		})
	}

	log := v.logger.With(zap.String("issue_id", fix.IssueID), zap.String("index", index))

	switch {
	case isMappingFix(fix.FixedCode):
		log.Info("applying mapping fix")
		if err := v.store.PutMapping(ctx, index, fix.FixedCode); err != nil {
			log.Error("mapping fix failed", zap.Error(err))
			return v.count(model.ApplyResult{Status: model.ApplyError, Message: err.Error()})
		}
		return v.count(model.ApplyResult{
			Status:  model.ApplySuccess,
			Message: fmt.Sprintf("Mapping updated for %s.", index),
		})
	case isPolicyFix(fix.FixedCode):
		log.Info("applying lifecycle fix")
		return v.count(v.applyLifecycle(ctx, log, index))
	default:
		log.Info("fix type not recognized")
		return v.count(model.ApplyResult{
			Status:  model.ApplySkipped,
			Message: "Fix type not recognized by Validator.",
		})
	}
}

// applyLifecycle stands in for attaching a lifecycle policy: it gives the
// index a rollover alias and adjusts index settings. If either step fails the
// result is a degraded success that says nothing was changed.
func (v *Validator) applyLifecycle(ctx context.Context, log *zap.Logger, index string) model.ApplyResult {
	alias := index + lifecycleAliasSuffix
	if err := v.store.PutAlias(ctx, index, alias); err != nil {
		log.Warn("lifecycle alias failed, degrading", zap.String("alias", alias), zap.Error(err))
		return degraded(index, "alias", err)
	}

	settings := map[string]any{
		"index.refresh_interval":   lifecycleRefreshInterval,
		"index.number_of_replicas": lifecycleReplicas,
	}
	if err := v.store.PutSettings(ctx, index, settings); err != nil {
		log.Warn("lifecycle settings failed, degrading", zap.Error(err))
		return degraded(index, "settings", err)
	}

	return model.ApplyResult{
		Status: model.ApplySuccess,
		Message: fmt.Sprintf("Index settings adjusted as a lifecycle stand-in for %s (alias %s, refresh_interval %s, replicas %d). No lifecycle policy was attached.",
			index, alias, lifecycleRefreshInterval, lifecycleReplicas),
	}
}

func degraded(index, step string, err error) model.ApplyResult {
	return model.ApplyResult{
		Status:   model.ApplySuccess,
		Degraded: true,
		Message: fmt.Sprintf("Lifecycle fix NOT applied to %s: %s update failed (%v). Reported as done without any lifecycle change.",
			index, step, err),
	}
}

func (v *Validator) count(r model.ApplyResult) model.ApplyResult {
	label := string(r.Status)
	if r.Degraded {
		label = "degraded"
	}
	appliesTotal.WithLabelValues(label).Inc()
	return r
}

func isMappingFix(code map[string]any) bool {
	_, dynamic := code["dynamic"]
	_, props := code["properties"]
	return dynamic || props
}

func isPolicyFix(code map[string]any) bool {
	_, ok := code["policy"]
	return ok
}
