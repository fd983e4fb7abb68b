// Package service runs workflow automation. A run loads the tenant's active
// rules in id order, evaluates each rule's predicate against its candidate
// cases, and in apply mode approves every match inside one unit of work per
// rule. Rule statistics advance only after that unit of work commits.
package service

//go:generate mockgen -source=engine.go -destination=mocks/mocks.go -package=mocks RuleStore,CaseLifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	casemodels "caseflow/internal/cases/models"
	caseservice "caseflow/internal/cases/service"
	"caseflow/internal/workflow/metrics"
	"caseflow/internal/workflow/models"
	"caseflow/internal/workflow/predicates"
	"caseflow/internal/workflow/runlock"
	"caseflow/pkg/domain"
	dErrors "caseflow/pkg/domain-errors"
	"caseflow/pkg/platform/sentinel"
	platformstrings "caseflow/pkg/platform/strings"
	"caseflow/pkg/platform/uow"
	"caseflow/pkg/requestcontext"
)

// EvaluationFailedNote is reported on a rule whose predicate failed.
const EvaluationFailedNote = "Rule evaluation failed; no cases were matched."

const tracerName = "caseflow/internal/workflow"

type RuleStore interface {
	ListActive(ctx context.Context, tenantID domain.TenantID, keys []string) ([]*models.Rule, error)
	RecordRun(ctx context.Context, tenantID domain.TenantID, ruleID domain.RuleID, actorID domain.UserID, at time.Time) error
}

// CaseLifecycle is the slice of the case service the engine drives.
// ApproveByAutomation must join the unit of work carried by ctx.
type CaseLifecycle interface {
	ListCandidates(ctx context.Context, tenantID domain.TenantID, q casemodels.CandidateQuery) ([]*casemodels.Case, error)
	ApproveByAutomation(ctx context.Context, actor domain.Actor, id domain.CaseID, rule caseservice.AutoApproval) (bool, error)
}

type PredicateRegistry interface {
	Lookup(key string) (predicates.Predicate, bool)
}

// Engine executes automation runs.
type Engine struct {
	rules      RuleStore
	cases      CaseLifecycle
	predicates PredicateRegistry
	tx         uow.Runner
	locker     runlock.Locker
	logger     *slog.Logger
	metrics    *metrics.Metrics
	tracer     trace.Tracer
}

type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(e *Engine) {
		e.tracer = tracer
	}
}

// WithLocker replaces the in-process run lock, e.g. with runlock.Redis when
// several instances share a database.
func WithLocker(locker runlock.Locker) Option {
	return func(e *Engine) {
		e.locker = locker
	}
}

func New(rules RuleStore, cases CaseLifecycle, registry PredicateRegistry, tx uow.Runner, opts ...Option) (*Engine, error) {
	if rules == nil {
		return nil, errors.New("rule store is required")
	}
	if cases == nil {
		return nil, errors.New("case lifecycle is required")
	}
	if registry == nil {
		return nil, errors.New("predicate registry is required")
	}
	if tx == nil {
		return nil, errors.New("transaction runner is required")
	}
	e := &Engine{
		rules:      rules,
		cases:      cases,
		predicates: registry,
		tx:         tx,
		locker:     runlock.NewMemory(),
		tracer:     otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Run executes the tenant's active rules, optionally restricted to ruleKeys.
// Predicate failures are captured on the rule's result; a failed batch
// transaction aborts the run with CodeTransactionFailure, leaving rules that
// already committed in place.
func (e *Engine) Run(ctx context.Context, actor domain.Actor, dryRun bool, ruleKeys []string) (*models.RunSummary, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	if !actor.IsStaff() {
		return nil, dErrors.New(dErrors.CodeForbidden, "automation runs require a staff actor")
	}
	keys, err := normalizeKeys(ruleKeys)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	summary := &models.RunSummary{
		RunID:   uuid.NewString(),
		DryRun:  dryRun,
		Results: make([]models.RuleResult, 0),
	}
	ctx, span := e.tracer.Start(ctx, "workflow.run", trace.WithAttributes(
		attribute.String("run_id", summary.RunID),
		attribute.Int64("tenant_id", int64(actor.TenantID)),
		attribute.Bool("dry_run", dryRun),
	))
	defer span.End()

	if !dryRun {
		release, err := e.locker.Acquire(ctx, actor.TenantID)
		if err != nil {
			e.observeRun(dryRun, "locked", start)
			if errors.Is(err, sentinel.ErrConflict) {
				return nil, dErrors.New(dErrors.CodeConflict, "an automation run is already in progress for this tenant")
			}
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to acquire run lock")
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				e.logWarn(ctx, "failed to release run lock", "run_id", summary.RunID, "error", err)
			}
		}()
	}

	// One clock reading for the whole run so every entry and stat agrees.
	now := requestcontext.Now(ctx)
	ctx = requestcontext.WithTime(ctx, now)

	rules, err := e.rules.ListActive(ctx, actor.TenantID, keys)
	if err != nil {
		e.fail(span, dryRun, start, err)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load workflow rules")
	}
	summary.RuleCount = len(rules)

	seen := make(map[domain.CaseID]bool)
	for _, rule := range rules {
		result, err := e.runRule(ctx, actor, rule, dryRun, now, seen)
		if err != nil {
			e.fail(span, dryRun, start, err)
			e.logError(ctx, "automation run aborted",
				"run_id", summary.RunID,
				"tenant_id", actor.TenantID,
				"rule_key", rule.Key,
				"error", err,
			)
			return nil, err
		}
		summary.MatchedCount += result.MatchedCount
		summary.UpdatedCount += result.UpdatedCount
		summary.Results = append(summary.Results, result)
	}

	span.SetAttributes(
		attribute.Int("rule_count", summary.RuleCount),
		attribute.Int("matched_count", summary.MatchedCount),
		attribute.Int("updated_count", summary.UpdatedCount),
	)
	e.observeRun(dryRun, "ok", start)
	e.logInfo(ctx, "automation run completed",
		"run_id", summary.RunID,
		"tenant_id", actor.TenantID,
		"actor_id", actor.ID,
		"dry_run", dryRun,
		"rule_count", summary.RuleCount,
		"matched_count", summary.MatchedCount,
		"updated_count", summary.UpdatedCount,
	)
	return summary, nil
}

// DryRunSummary is Run forced to dry-run mode and trimmed to counts.
func (e *Engine) DryRunSummary(ctx context.Context, actor domain.Actor) (*models.DashboardSummary, error) {
	summary, err := e.Run(ctx, actor, true, nil)
	if err != nil {
		return nil, err
	}
	return summary.Trim(), nil
}

func (e *Engine) runRule(ctx context.Context, actor domain.Actor, rule *models.Rule, dryRun bool, now time.Time, seen map[domain.CaseID]bool) (models.RuleResult, error) {
	ctx, span := e.tracer.Start(ctx, "workflow.rule", trace.WithAttributes(
		attribute.String("rule_key", rule.Key),
		attribute.Int64("rule_id", int64(rule.ID)),
	))
	defer span.End()

	result := models.RuleResult{
		RuleID:         rule.ID,
		RuleKey:        rule.Key,
		RuleName:       rule.Name,
		MatchedCaseIDs: make([]domain.CaseID, 0),
	}

	predicate, ok := e.predicates.Lookup(rule.Key)
	if !ok {
		result.Notes = append(result.Notes, models.NoExecutorNote)
		return result, nil
	}

	matches, params, err := e.evaluate(ctx, actor.TenantID, rule, predicate, now)
	result.Parameters = params
	if err != nil {
		result.Error = dErrors.MessageOf(err)
		result.Notes = append(result.Notes, EvaluationFailedNote)
		span.RecordError(err)
		if e.metrics != nil {
			e.metrics.IncrementRuleFailure(rule.Key)
		}
		e.logWarn(ctx, "workflow rule evaluation failed",
			"tenant_id", actor.TenantID,
			"rule_key", rule.Key,
			"rule_id", rule.ID,
			"error", err,
		)
		return result, nil
	}

	// A case claimed by an earlier rule in this run is not counted again.
	for _, c := range matches {
		if seen[c.ID] {
			continue
		}
		seen[c.ID] = true
		result.MatchedCaseIDs = append(result.MatchedCaseIDs, c.ID)
	}
	result.MatchedCount = len(result.MatchedCaseIDs)

	if !dryRun {
		updated, err := e.apply(ctx, actor, rule, result.MatchedCaseIDs)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "batch rolled back")
			return result, err
		}
		result.UpdatedCount = updated
		err = e.tx.RunInTx(ctx, func(txCtx context.Context) error {
			return e.rules.RecordRun(txCtx, actor.TenantID, rule.ID, actor.ID, now)
		})
		if err != nil {
			return result, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record rule run")
		}
	}

	if e.metrics != nil {
		e.metrics.AddRuleCounts(rule.Key, result.MatchedCount, result.UpdatedCount)
	}
	span.SetAttributes(
		attribute.Int("matched_count", result.MatchedCount),
		attribute.Int("updated_count", result.UpdatedCount),
	)
	return result, nil
}

// evaluate compiles the rule and filters its candidates. A panicking
// predicate is reported as a rule execution error.
func (e *Engine) evaluate(ctx context.Context, tenantID domain.TenantID, rule *models.Rule, predicate predicates.Predicate, now time.Time) (matches []*casemodels.Case, params map[string]any, err error) {
	defer func() {
		if r := recover(); r != nil {
			matches = nil
			err = dErrors.Newf(dErrors.CodeRuleExecution, "predicate %s panicked: %v", rule.Key, r)
		}
	}()

	evaluator, err := predicate.Compile(rule.Config)
	if err != nil {
		return nil, nil, dErrors.Wrap(err, dErrors.CodeRuleExecution, err.Error())
	}
	params = evaluator.Parameters()

	candidates, err := e.cases.ListCandidates(ctx, tenantID, evaluator.Query())
	if err != nil {
		return nil, params, dErrors.Wrap(err, dErrors.CodeRuleExecution, "failed to load candidate cases")
	}
	for _, c := range candidates {
		ok, err := evaluator.Match(c, now)
		if err != nil {
			return nil, params, dErrors.Wrap(err, dErrors.CodeRuleExecution, fmt.Sprintf("case %d: %v", c.ID, err))
		}
		if ok {
			matches = append(matches, c)
		}
	}
	return matches, params, nil
}

// apply approves ids inside one unit of work. Any failure rolls back every
// approval of this rule.
func (e *Engine) apply(ctx context.Context, actor domain.Actor, rule *models.Rule, ids []domain.CaseID) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	approval := caseservice.AutoApproval{RuleID: rule.ID, RuleKey: rule.Key, RuleName: rule.Name}
	updated := 0
	err := e.tx.RunInTx(ctx, func(txCtx context.Context) error {
		updated = 0
		for _, id := range ids {
			ok, err := e.cases.ApproveByAutomation(txCtx, actor, id, approval)
			if err != nil {
				return fmt.Errorf("approve case %d: %w", id, err)
			}
			if ok {
				updated++
			}
		}
		return nil
	})
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeTransactionFailure, fmt.Sprintf("rule %s: batch approval rolled back", rule.Key))
	}
	return updated, nil
}

// normalizeKeys trims, drops blanks and duplicates, and bounds key length. A
// filter left with no keys is rejected.
func normalizeKeys(keys []string) ([]string, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	out := platformstrings.DedupeAndTrim(keys)
	if len(out) == 0 {
		// ListActive reads an empty filter as every rule.
		return nil, dErrors.New(dErrors.CodeValidation, "rule keys must not be blank")
	}
	if _, tooLong := platformstrings.FirstLongerThan(out, models.MaxRuleKeyLength); tooLong {
		return nil, dErrors.Newf(dErrors.CodeValidation, "rule key exceeds %d characters", models.MaxRuleKeyLength)
	}
	return out, nil
}

func (e *Engine) fail(span trace.Span, dryRun bool, start time.Time, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	e.observeRun(dryRun, "error", start)
}

func (e *Engine) observeRun(dryRun bool, outcome string, start time.Time) {
	if e.metrics != nil {
		e.metrics.ObserveRun(dryRun, outcome, start)
	}
}

func (e *Engine) logInfo(ctx context.Context, msg string, args ...any) {
	if e.logger != nil {
		e.logger.InfoContext(ctx, msg, e.withRequestID(ctx, args)...)
	}
}

func (e *Engine) logWarn(ctx context.Context, msg string, args ...any) {
	if e.logger != nil {
		e.logger.WarnContext(ctx, msg, e.withRequestID(ctx, args)...)
	}
}

func (e *Engine) logError(ctx context.Context, msg string, args ...any) {
	if e.logger != nil {
		e.logger.ErrorContext(ctx, msg, e.withRequestID(ctx, args)...)
	}
}

func (e *Engine) withRequestID(ctx context.Context, args []any) []any {
	if id := requestcontext.RequestID(ctx); id != "" {
		return append(args, "request_id", id)
	}
	return args
}
