package service

import (
	"context"
	"errors"

	"github.com/alexanderramin/duecycle/internal/clock"
	"github.com/alexanderramin/duecycle/internal/domain"
	"github.com/alexanderramin/duecycle/internal/repository"
	"github.com/alexanderramin/duecycle/internal/trigger"
	"github.com/google/uuid"
)

type ruleService struct {
	rules     repository.RuleRepo
	schedules repository.ScheduleRepo
	events    repository.EventRepo
	logs      repository.ExecutionLogRepo
	clock     clock.Clock
}

func NewRuleService(
	rules repository.RuleRepo,
	schedules repository.ScheduleRepo,
	events repository.EventRepo,
	logs repository.ExecutionLogRepo,
	clk clock.Clock,
) RuleService {
	return &ruleService{rules: rules, schedules: schedules, events: events, logs: logs, clock: clk}
}

// Create validates and stores a rule. The report is returned in every case
// so callers can show warnings for rules that were accepted. A new rule is
// dormant until its first evaluation.
func (s *ruleService) Create(ctx context.Context, r *domain.TriggerRule) (domain.ValidationReport, error) {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.Lifecycle == "" {
		r.Lifecycle = domain.LifecycleActive
	}
	r.NextExecutionDate = nil
	r.LastExecutedAt = nil
	r.ExecutionCount = 0

	rep, err := s.Validate(ctx, r)
	if err != nil {
		return rep, err
	}
	if err := rep.Err(); err != nil {
		return rep, err
	}

	now := s.clock.Now()
	r.CreatedAt = now
	r.UpdatedAt = now
	if err := s.rules.Create(ctx, r); err != nil {
		return rep, err
	}
	return rep, nil
}

// Validate checks r against its schedule and linked event without storing
// it. Missing references are returned as errors, not report issues.
func (s *ruleService) Validate(ctx context.Context, r *domain.TriggerRule) (domain.ValidationReport, error) {
	var sched *domain.Schedule
	if r.ScheduleID != "" {
		var err error
		if sched, err = s.schedules.GetByID(ctx, r.ScheduleID); err != nil {
			return domain.ValidationReport{}, err
		}
	}
	var ev *domain.RecurrenceEvent
	if r.EventID != nil {
		var err error
		if ev, err = s.events.GetByID(ctx, *r.EventID); err != nil {
			return domain.ValidationReport{}, err
		}
	}
	return trigger.ValidateRule(r, sched, ev), nil
}

func (s *ruleService) GetByID(ctx context.Context, id string) (*domain.TriggerRule, error) {
	return s.rules.GetByID(ctx, id)
}

func (s *ruleService) Detail(ctx context.Context, id string) (*RuleDetail, error) {
	rule, err := s.rules.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	sched, err := s.schedules.GetByID(ctx, rule.ScheduleID)
	if err != nil {
		return nil, err
	}

	detail := &RuleDetail{Rule: rule, Schedule: sched}
	if rule.EventID != nil {
		ev, err := s.events.GetByID(ctx, *rule.EventID)
		switch {
		case err == nil:
			detail.Event = ev
		case !errors.Is(err, domain.ErrNotFound):
			return nil, err
		}
	}
	if detail.Latest, err = s.logs.Latest(ctx, rule.ID); err != nil {
		return nil, err
	}
	if detail.Stats, err = s.logs.Stats(ctx, rule.ID); err != nil {
		return nil, err
	}
	detail.State = domain.StateOf(rule, detail.Latest)
	return detail, nil
}

func (s *ruleService) List(ctx context.Context, f repository.RuleFilter) ([]*domain.TriggerRule, error) {
	return s.rules.List(ctx, f)
}

func (s *ruleService) SetLifecycle(ctx context.Context, id string, l domain.Lifecycle) (*domain.TriggerRule, error) {
	if l != domain.LifecycleActive && l != domain.LifecycleInactive {
		return nil, domain.NewValidationError("lifecycle", "unrecognized lifecycle %q", l)
	}
	rule, err := s.rules.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if rule.Lifecycle == l {
		return rule, nil
	}
	rule.Lifecycle = l
	rule.UpdatedAt = s.clock.Now()
	if err := s.rules.Update(ctx, rule); err != nil {
		return nil, err
	}
	return rule, nil
}
