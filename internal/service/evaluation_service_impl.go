package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/alexanderramin/duecycle/internal/clock"
	"github.com/alexanderramin/duecycle/internal/db"
	"github.com/alexanderramin/duecycle/internal/domain"
	"github.com/alexanderramin/duecycle/internal/metrics"
	"github.com/alexanderramin/duecycle/internal/repository"
	"github.com/alexanderramin/duecycle/internal/trigger"
)

type evaluationService struct {
	rules       repository.RuleRepo
	schedules   repository.ScheduleRepo
	events      repository.EventRepo
	logs        repository.ExecutionLogRepo
	uow         db.UnitOfWork
	evaluator   *trigger.Evaluator
	clock       clock.Clock
	metrics     *metrics.Metrics
	logger      zerolog.Logger
	concurrency int
	observer    UseCaseObserver
}

func NewEvaluationService(
	rules repository.RuleRepo,
	schedules repository.ScheduleRepo,
	events repository.EventRepo,
	logs repository.ExecutionLogRepo,
	uow db.UnitOfWork,
	evaluator *trigger.Evaluator,
	clk clock.Clock,
	m *metrics.Metrics,
	logger zerolog.Logger,
	concurrency int,
	observers ...UseCaseObserver,
) EvaluationService {
	if concurrency < 1 {
		concurrency = 1
	}
	return &evaluationService{
		rules:       rules,
		schedules:   schedules,
		events:      events,
		logs:        logs,
		uow:         uow,
		evaluator:   evaluator,
		clock:       clk,
		metrics:     m,
		logger:      logger.With().Str("component", "evaluation").Logger(),
		concurrency: concurrency,
		observer:    useCaseObserverOrNoop(observers),
	}
}

// EvaluateRule evaluates one rule outside the batch. A failed evaluation is
// not an error here: it is written as a FAILED row and reported through
// EvaluationResult.Err.
func (s *evaluationService) EvaluateRule(ctx context.Context, ruleID string, execContext map[string]any) (result *EvaluationResult, err error) {
	startedAt := time.Now()
	fields := map[string]any{"rule_id": ruleID}
	defer observe(ctx, s.observer, "evaluate-rule", startedAt, fields, &err)

	rule, err := s.rules.GetByID(ctx, ruleID)
	if err != nil {
		return nil, err
	}
	if !rule.IsActive() {
		return nil, domain.NewValidationError("lifecycle", "rule %s is inactive", rule.ID)
	}
	sched, err := s.schedules.GetByID(ctx, rule.ScheduleID)
	if err != nil {
		return nil, err
	}
	if sched.Status != domain.ScheduleActive {
		return nil, domain.NewValidationError("status", "schedule %s is %s", sched.ID, sched.Status)
	}

	res := s.evaluateOne(ctx, rule, execContext)
	fields["outcome"] = res.Outcome
	return &res, nil
}

// EvaluateDue evaluates every active rule of an active schedule. Rules run
// in parallel up to the configured limit; one rule's failure never stops
// the others. Rules not started before ctx is cancelled are skipped.
func (s *evaluationService) EvaluateDue(ctx context.Context) (batch *BatchResult, err error) {
	startedAt := time.Now()
	fields := map[string]any{}
	defer observe(ctx, s.observer, "evaluate-due", startedAt, fields, &err)

	rules, err := s.rules.ListEvaluable(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing evaluable rules: %w", err)
	}

	results := make([]EvaluationResult, len(rules))
	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, rule := range rules {
		i, rule := i, rule
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i] = EvaluationResult{
					RuleID:   rule.ID,
					RuleType: rule.RuleType,
					Outcome:  metrics.OutcomeSkipped,
					Err:      err,
				}
				s.metrics.ObserveEvaluation(string(rule.RuleType), metrics.OutcomeSkipped, 0)
				return nil
			}
			results[i] = s.evaluateOne(ctx, rule, nil)
			return nil
		})
	}
	_ = g.Wait()

	batch = &BatchResult{Results: results}
	for _, r := range results {
		switch r.Outcome {
		case metrics.OutcomeFired:
			batch.Fired++
		case metrics.OutcomeNotFired:
			batch.NotFired++
		case metrics.OutcomeDuplicate:
			batch.Duplicates++
		case metrics.OutcomeDormant:
			batch.Dormant++
		case metrics.OutcomeFailed:
			batch.Failed++
		case metrics.OutcomeSkipped:
			batch.Skipped++
		}
	}
	batch.Duration = time.Since(startedAt)
	s.metrics.ObserveBatch(batch.Duration)

	fields["rules"] = len(rules)
	fields["fired"] = batch.Fired
	fields["failed"] = batch.Failed
	s.logger.Info().
		Int("rules", len(rules)).
		Int("fired", batch.Fired).
		Int("not_fired", batch.NotFired).
		Int("duplicates", batch.Duplicates).
		Int("dormant", batch.Dormant).
		Int("failed", batch.Failed).
		Int("skipped", batch.Skipped).
		Dur("duration", batch.Duration).
		Msg("evaluation pass finished")
	return batch, nil
}

// evaluateOne reads the rule's snapshot, decides the outcome and persists
// it. It never panics and never returns an error: every problem ends up in
// the result and, where a row is due, in the execution log.
func (s *evaluationService) evaluateOne(ctx context.Context, rule *domain.TriggerRule, execContext map[string]any) EvaluationResult {
	start := time.Now()
	res := EvaluationResult{RuleID: rule.ID, RuleType: rule.RuleType}
	defer func() {
		s.metrics.ObserveEvaluation(string(rule.RuleType), res.Outcome, time.Since(start))
	}()

	sched, ev, err := s.snapshot(ctx, rule)
	if err != nil {
		s.fail(ctx, &res, rule, nil, &domain.EvaluationFailure{RuleID: rule.ID, Cause: err}, start)
		return res
	}

	out, err := s.safeEvaluate(ctx, trigger.Input{
		Rule:     rule,
		Schedule: sched,
		Event:    ev,
		Context:  execContext,
		Now:      s.clock.Now(),
	})
	if err != nil {
		s.fail(ctx, &res, rule, out.Context, err, start)
		return res
	}

	switch {
	case out.Dormant:
		res.Outcome = metrics.OutcomeDormant
		res.Reason = out.Reason
		s.logger.Info().
			Str("rule_id", rule.ID).
			Str("rule_type", string(rule.RuleType)).
			AnErr("reason", out.Reason).
			Msg("rule dormant")
		return res

	case !out.Fired:
		res.Outcome = metrics.OutcomeNotFired
		l := s.newLog(rule, out.Context, domain.ExecutionSuccess, map[string]any{
			domain.ResultFired:    false,
			domain.ResultMatched:  out.Matched,
			domain.ResultRuleType: string(rule.RuleType),
		}, start)
		if err := s.logs.Append(ctx, l); err != nil {
			res.Outcome = metrics.OutcomeFailed
			res.Err = err
			return res
		}
		res.LogID = l.ID
		return res
	}

	res.Date = out.Date
	res.DedupKey = out.DedupKey(rule.ID)
	if err := s.persistFire(ctx, &res, rule, out, start); err != nil {
		s.fail(ctx, &res, rule, out.Context, &domain.EvaluationFailure{RuleID: rule.ID, Cause: err}, start)
	}
	return res
}

// snapshot loads the schedule and linked event a rule is evaluated against.
// A linked event that no longer exists is left nil so the rule goes dormant.
func (s *evaluationService) snapshot(ctx context.Context, rule *domain.TriggerRule) (*domain.Schedule, *domain.RecurrenceEvent, error) {
	sched, err := s.schedules.GetByID(ctx, rule.ScheduleID)
	if err != nil {
		return nil, nil, fmt.Errorf("loading schedule: %w", err)
	}
	if rule.EventID == nil {
		return sched, nil, nil
	}
	ev, err := s.events.GetByID(ctx, *rule.EventID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return sched, nil, nil
		}
		return nil, nil, fmt.Errorf("loading event: %w", err)
	}
	return sched, ev, nil
}

func (s *evaluationService) safeEvaluate(ctx context.Context, in trigger.Input) (out trigger.Outcome, err error) {
	defer func() {
		if p := recover(); p != nil {
			out = trigger.Outcome{}
			err = &domain.EvaluationFailure{RuleID: in.Rule.ID, Cause: fmt.Errorf("panic: %v", p)}
		}
	}()
	return s.evaluator.Evaluate(ctx, in)
}

// persistFire claims the period and applies the fire in one transaction.
// When the period was already claimed only a duplicate row is written.
func (s *evaluationService) persistFire(ctx context.Context, res *EvaluationResult, rule *domain.TriggerRule, out trigger.Outcome, start time.Time) error {
	date := *out.Date
	return s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		res.Outcome, res.DeadlineID, res.LogID = "", "", ""
		now := s.clock.Now()

		claimed, err := repository.NewSQLiteFiringRepo(tx).Record(ctx, rule.ID, res.DedupKey, now)
		if err != nil {
			return err
		}
		txLogs := repository.NewSQLiteExecutionLogRepo(tx)
		if !claimed {
			l := s.newLog(rule, out.Context, domain.ExecutionSuccess, map[string]any{
				domain.ResultFired:     false,
				domain.ResultDuplicate: true,
				domain.ResultDate:      date.Format(domain.DateLayout),
				domain.ResultMatched:   out.Matched,
				domain.ResultRuleType:  string(rule.RuleType),
			}, start)
			l.DedupKey = res.DedupKey
			if err := txLogs.Append(ctx, l); err != nil {
				return err
			}
			res.Outcome, res.LogID = metrics.OutcomeDuplicate, l.ID
			return nil
		}

		txRules := repository.NewSQLiteRuleRepo(tx)
		current, err := txRules.GetByID(ctx, rule.ID)
		if err != nil {
			return err
		}
		current.RecordFire(date, now)
		if err := txRules.Update(ctx, current); err != nil {
			return err
		}

		txSchedules := repository.NewSQLiteScheduleRepo(tx)
		sched, err := txSchedules.GetByID(ctx, rule.ScheduleID)
		if err != nil {
			return err
		}
		if sched.Status != domain.ScheduleActive {
			return fmt.Errorf("schedule %s is %s", sched.ID, sched.Status)
		}
		due := domain.Civil(date)
		sched.NextDueDate = &due
		if err := txSchedules.Update(ctx, sched); err != nil {
			return err
		}
		d, err := upsertCurrentDeadline(ctx, tx, sched, now)
		if err != nil {
			return err
		}

		result := map[string]any{
			domain.ResultFired:    true,
			domain.ResultDate:     due.Format(domain.DateLayout),
			domain.ResultMatched:  out.Matched,
			domain.ResultRuleType: string(rule.RuleType),
		}
		if d != nil {
			result[domain.ResultDeadline] = d.ID
			res.DeadlineID = d.ID
		}
		l := s.newLog(rule, out.Context, domain.ExecutionSuccess, result, start)
		l.DedupKey = res.DedupKey
		if err := txLogs.Append(ctx, l); err != nil {
			return err
		}
		res.Outcome, res.LogID = metrics.OutcomeFired, l.ID
		return nil
	})
}

// fail records a FAILED row outside any transaction so it survives the
// rollback of whatever went wrong.
func (s *evaluationService) fail(ctx context.Context, res *EvaluationResult, rule *domain.TriggerRule, execContext map[string]any, cause error, start time.Time) {
	res.Outcome = metrics.OutcomeFailed
	res.DeadlineID = ""
	res.Err = cause

	l := s.newLog(rule, execContext, domain.ExecutionFailed, map[string]any{
		domain.ResultFired:    false,
		domain.ResultRuleType: string(rule.RuleType),
	}, start)
	msg := cause.Error()
	l.ErrorMessage = &msg
	if err := s.logs.Append(context.WithoutCancel(ctx), l); err != nil {
		res.Err = errors.Join(cause, fmt.Errorf("writing failure log: %w", err))
		res.LogID = ""
		s.logger.Error().Err(err).Str("rule_id", rule.ID).Msg("failure log not written")
		return
	}
	res.LogID = l.ID
	s.logger.Warn().Err(cause).Str("rule_id", rule.ID).Msg("rule evaluation failed")
}

func (s *evaluationService) newLog(rule *domain.TriggerRule, execContext map[string]any, status domain.ExecutionStatus, result map[string]any, start time.Time) *domain.TriggerExecutionLog {
	return &domain.TriggerExecutionLog{
		ID:         uuid.New().String(),
		RuleID:     rule.ID,
		ExecutedAt: s.clock.Now(),
		Status:     status,
		Result:     result,
		Context:    execContext,
		DurationMS: time.Since(start).Milliseconds(),
	}
}
