package domain

import (
	"strings"
	"time"
)

type TriggerRule struct {
	ID                string
	ScheduleID        string
	RuleType          RuleType
	Config            RuleConfig
	TriggerExpression string
	EventID           *string
	Lifecycle         Lifecycle

	// NextExecutionDate is nil while the rule is dormant.
	NextExecutionDate *time.Time
	LastExecutedAt    *time.Time
	ExecutionCount    int

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (r *TriggerRule) IsActive() bool {
	return r.Lifecycle == LifecycleActive
}

// IsDormant reports an active rule that has no next execution date.
func (r *TriggerRule) IsDormant() bool {
	return r.IsActive() && r.NextExecutionDate == nil
}

// RecordFire applies a successful fire for a new period.
func (r *TriggerRule) RecordFire(date time.Time, now time.Time) {
	d := Civil(date)
	r.NextExecutionDate = &d
	r.LastExecutedAt = &now
	r.ExecutionCount++
	r.UpdatedAt = now
}

// ValidateShape checks the fields that do not need the expression parser.
func (r *TriggerRule) ValidateShape() error {
	if strings.TrimSpace(r.ScheduleID) == "" {
		return NewValidationError("schedule_id", "is required")
	}
	if !ValidRuleTypes[r.RuleType] {
		return NewValidationError("rule_type", "unrecognized rule type %q", r.RuleType)
	}
	if r.Config == nil {
		return NewValidationError("rule_config", "is required")
	}
	if r.Config.Type() != r.RuleType {
		return NewValidationError("rule_config", "config variant %s does not match rule type %s", r.Config.Type(), r.RuleType)
	}
	if r.Lifecycle != LifecycleActive && r.Lifecycle != LifecycleInactive {
		return NewValidationError("lifecycle", "unrecognized lifecycle %q", r.Lifecycle)
	}
	if r.RuleType == RuleConditional && strings.TrimSpace(r.TriggerExpression) == "" {
		return NewValidationError("trigger_expression", "is required for CONDITIONAL rules")
	}
	if r.RuleType != RuleConditional && strings.TrimSpace(r.TriggerExpression) != "" {
		return NewValidationError("trigger_expression", "only allowed on CONDITIONAL rules")
	}
	return nil
}

// RuleState summarises what a reader sees about a rule.
type RuleState string

const (
	RuleStateInactive RuleState = "INACTIVE"
	RuleStateDormant  RuleState = "DORMANT"
	RuleStateFailing  RuleState = "FAILING"
	RuleStateHealthy  RuleState = "SCHEDULED"
)

// StateOf distinguishes a dormant rule from one whose latest attempt failed.
func StateOf(r *TriggerRule, latest *TriggerExecutionLog) RuleState {
	switch {
	case !r.IsActive():
		return RuleStateInactive
	case latest != nil && latest.Status == ExecutionFailed:
		return RuleStateFailing
	case r.NextExecutionDate == nil:
		return RuleStateDormant
	default:
		return RuleStateHealthy
	}
}
