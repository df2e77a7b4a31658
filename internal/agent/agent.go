// Package agent runs the diagnose, propose and record cycle and the
// operator-triggered apply step.
//
// Cycles are independent. Nothing stops two concurrent cycles from
// proposing or applying fixes to the same index; callers that need that
// guarantee must serialize their own calls.
package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/dm/esfixer/internal/model"
	"github.com/dm/esfixer/internal/validator"
)

const tracerName = "github.com/dm/esfixer/internal/agent"

// Scanner diagnoses the cluster.
type Scanner interface {
	ScanAll(ctx context.Context) ([]model.Issue, error)
}

// FixGenerator turns an issue into a proposal. It does not fail.
type FixGenerator interface {
	GenerateFix(ctx context.Context, issue model.Issue) model.FixProposal
}

// Applier validates, backs up and applies proposals.
type Applier interface {
	ValidateSyntax(ctx context.Context, fix model.FixProposal) bool
	CreateBackup(ctx context.Context, index string, category model.Category) (validator.Backup, error)
	ApplyFix(ctx context.Context, fix model.FixProposal) model.ApplyResult
}

// Benchmarker measures a proposal.
type Benchmarker interface {
	BenchmarkProposal(ctx context.Context, fix model.FixProposal) model.BenchmarkResult
}

// HistoryLog is the append-only agent log.
type HistoryLog interface {
	EnsureIndex(ctx context.Context) error
	Append(ctx context.Context, rec model.HistoryRecord) error
	Query(ctx context.Context, limit int) []model.HistoryRecord
}

// Components are the collaborators an Orchestrator drives.
type Components struct {
	Scanner     Scanner
	Oracle      FixGenerator
	Validator   Applier
	Benchmarker Benchmarker
	History     HistoryLog
}

// Orchestrator owns one instance of every pipeline component.
type Orchestrator struct {
	scanner   Scanner
	oracle    FixGenerator
	validator Applier
	bench     Benchmarker
	history   HistoryLog

	logger *zap.Logger
	tracer trace.Tracer
	now    func() time.Time
	newID  func() string
}

// New creates an Orchestrator.
func New(c Components, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		scanner:   c.Scanner,
		oracle:    c.Oracle,
		validator: c.Validator,
		bench:     c.Benchmarker,
		history:   c.History,
		logger:    logger.Named("agent"),
		tracer:    otel.Tracer(tracerName),
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// WithClock overrides the time source used to stamp history records.
func (o *Orchestrator) WithClock(now func() time.Time) *Orchestrator {
	o.now = now
	return o
}

// Diagnose runs every detection rule once.
func (o *Orchestrator) Diagnose(ctx context.Context) ([]model.Issue, error) {
	ctx, span := o.tracer.Start(ctx, "agent.Diagnose")
	defer span.End()

	issues, err := o.scanner.ScanAll(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "scan failed")
		return nil, err
	}
	span.SetAttributes(attribute.Int("issues.count", len(issues)))
	return issues, nil
}

// GenerateFix asks the oracle for a proposal without recording it.
func (o *Orchestrator) GenerateFix(ctx context.Context, issue model.Issue) model.FixProposal {
	ctx, span := o.tracer.Start(ctx, "agent.GenerateFix",
		trace.WithAttributes(attribute.String("issue.id", issue.ID)))
	defer span.End()
	return o.oracle.GenerateFix(ctx, issue)
}

// Benchmark measures fix against its original query.
func (o *Orchestrator) Benchmark(ctx context.Context, fix model.FixProposal) model.BenchmarkResult {
	ctx, span := o.tracer.Start(ctx, "agent.Benchmark",
		trace.WithAttributes(attribute.String("issue.id", fix.IssueID)))
	defer span.End()

	res := o.bench.BenchmarkProposal(ctx, fix)
	span.SetAttributes(
		attribute.Bool("benchmark.safe", res.IsSafe),
		attribute.Float64("benchmark.improvement", res.ImprovementPercentage))
	return res
}

// RunCycle diagnoses the cluster, picks one issue, proposes a fix for it and
// records the proposal. The fix is never applied here.
func (o *Orchestrator) RunCycle(ctx context.Context) model.CycleResult {
	start := o.now()
	cycleID := o.newID()
	log := o.logger.With(zap.String("cycle_id", cycleID))

	ctx, span := o.tracer.Start(ctx, "agent.RunCycle",
		trace.WithAttributes(attribute.String("cycle.id", cycleID)))
	defer span.End()

	res := o.runCycle(ctx, log, cycleID)

	span.SetAttributes(attribute.String("cycle.status", string(res.Status)))
	if res.Status == model.CycleError {
		span.SetStatus(codes.Error, res.Message)
	}
	cyclesTotal.WithLabelValues(string(res.Status)).Inc()
	cycleDuration.Observe(o.now().Sub(start).Seconds())
	return res
}

func (o *Orchestrator) runCycle(ctx context.Context, log *zap.Logger, cycleID string) model.CycleResult {
	log.Info("cycle started")

	issues, err := o.Diagnose(ctx)
	if err != nil {
		log.Error("diagnosis failed", zap.Error(err))
		return model.CycleResult{
			Status:  model.CycleError,
			Message: fmt.Sprintf("diagnosis failed: %v", err),
			CycleID: cycleID,
		}
	}
	if len(issues) == 0 {
		log.Info("cycle finished, cluster healthy")
		return model.CycleResult{
			Status:  model.CycleIdle,
			Message: "Cluster is healthy.",
			CycleID: cycleID,
		}
	}

	target := SelectIssue(issues)
	log = log.With(zap.String("issue_id", target.ID), zap.String("severity", string(target.Severity)))
	log.Info("issue selected", zap.Int("candidates", len(issues)))

	proposal := o.GenerateFix(ctx, target)

	if err := o.record(ctx, model.NewHistoryRecord(o.now(), target.ID, model.ActionProposalGenerated, map[string]any{
		"cycle_id": cycleID,
		"issue":    target.Clone(),
		"proposal": proposal.Clone(),
	})); err != nil {
		log.Error("recording proposal failed", zap.Error(err))
		return model.CycleResult{
			Status:      model.CycleError,
			Message:     fmt.Sprintf("recording proposal failed: %v", err),
			CycleID:     cycleID,
			TargetIssue: &target,
			Proposal:    &proposal,
		}
	}

	log.Info("cycle finished, action required", zap.String("source", proposal.Source))
	return model.CycleResult{
		Status:      model.CycleActionRequired,
		Message:     "Fix proposed. Apply it explicitly to proceed.",
		CycleID:     cycleID,
		TargetIssue: &target,
		Proposal:    &proposal,
	}
}

// SelectIssue returns the first critical issue, or the first issue when none
// is critical. issues must not be empty.
func SelectIssue(issues []model.Issue) model.Issue {
	for _, issue := range issues {
		if issue.IsCritical() {
			return issue
		}
	}
	return issues[0]
}

// ApplyFix validates fix, backs up the target, applies the change and
// records the outcome. A non-empty backup is kept in the record so the
// pre-fix state can be restored by hand. A query that fails the dry run is rejected with
// validator.ErrInvalidSyntax and nothing is changed or recorded.
func (o *Orchestrator) ApplyFix(ctx context.Context, fix model.FixProposal) (model.ApplyResult, error) {
	ctx, span := o.tracer.Start(ctx, "agent.ApplyFix",
		trace.WithAttributes(attribute.String("issue.id", fix.IssueID)))
	defer span.End()

	log := o.logger.With(zap.String("issue_id", fix.IssueID))

	if !o.validator.ValidateSyntax(ctx, fix) {
		log.Warn("fix rejected by syntax check")
		span.SetStatus(codes.Error, "invalid syntax")
		return model.ApplyResult{}, validator.ErrInvalidSyntax
	}

	var (
		result model.ApplyResult
		backup validator.Backup
	)
	index, hasTarget := fix.TargetIndex()
	if hasTarget {
		var err error
		backup, err = o.validator.CreateBackup(ctx, index, fix.Category())
		if err != nil {
			log.Error("backup failed, fix not applied", zap.String("index", index), zap.Error(err))
			span.RecordError(err)
			result = model.ApplyResult{
				Status:  model.ApplyError,
				Message: fmt.Sprintf("Backup failed, fix not applied: %v", err),
			}
		}
	}
	if result.Status == "" {
		result = o.validator.ApplyFix(ctx, fix)
	}

	action := model.ActionFailed
	if result.Status == model.ApplySuccess {
		action = model.ActionFixed
	}
	span.SetAttributes(
		attribute.String("apply.status", string(result.Status)),
		attribute.Bool("apply.degraded", result.Degraded))

	details := map[string]any{
		"result":       result,
		"backup_taken": !backup.Empty(),
		"proposal":     fix.Clone(),
	}
	if !backup.Empty() {
		details["backup"] = backup
	}
	if err := o.record(ctx, model.NewHistoryRecord(o.now(), fix.IssueID, action, details)); err != nil {
		log.Warn("recording apply outcome failed", zap.Error(err))
	}

	log.Info("fix applied",
		zap.String("status", string(result.Status)),
		zap.Bool("degraded", result.Degraded))
	return result, nil
}

// History returns up to limit records, newest first. The log is created on
// first use.
func (o *Orchestrator) History(ctx context.Context, limit int) []model.HistoryRecord {
	ctx, span := o.tracer.Start(ctx, "agent.History")
	defer span.End()

	if err := o.history.EnsureIndex(ctx); err != nil {
		o.logger.Warn("history unavailable", zap.Error(err))
		return []model.HistoryRecord{}
	}
	return o.history.Query(ctx, limit)
}

func (o *Orchestrator) record(ctx context.Context, rec model.HistoryRecord) error {
	if err := o.history.EnsureIndex(ctx); err != nil {
		return err
	}
	return o.history.Append(ctx, rec)
}
