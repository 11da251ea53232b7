package trigger

import (
	"errors"
	"fmt"

	"github.com/alexanderramin/duecycle/internal/domain"
)

// ValidateRule checks a rule before it is stored. Errors block the write;
// warnings describe a rule that is valid but will stay dormant or behave
// in a way the author may not expect. schedule and event may be nil.
func ValidateRule(r *domain.TriggerRule, schedule *domain.Schedule, event *domain.RecurrenceEvent) domain.ValidationReport {
	var rep domain.ValidationReport

	if err := r.ValidateShape(); err != nil {
		addErr(&rep, err)
		return rep
	}
	if err := domain.ValidateRuleConfig(r.Config); err != nil {
		addErr(&rep, err)
		return rep
	}

	if schedule != nil && schedule.Status == domain.ScheduleArchived {
		rep.AddWarning("schedule_id", fmt.Sprintf("schedule %s is archived; the rule will never be evaluated", schedule.ID))
	}
	if r.EventID != nil && r.RuleType != domain.RuleEventBased {
		rep.AddWarning("event_id", fmt.Sprintf("ignored for %s rules", r.RuleType))
	}

	switch cfg := r.Config.(type) {
	case domain.FixedConfig:
		if !cfg.Frequency.IsRecurring() && cfg.Frequency != domain.FrequencyOneTime {
			rep.AddWarning("rule_config.frequency", fmt.Sprintf("%s has no calendar date; the rule will stay dormant", cfg.Frequency))
		}
	case domain.DynamicOffsetConfig:
		if cfg.OffsetMonths == 0 && cfg.OffsetDays == 0 {
			rep.AddWarning("rule_config", "zero offset fires on the baseline date itself")
		}
	case domain.EventBasedConfig:
		switch {
		case r.EventID == nil:
			rep.AddWarning("event_id", "no linked event; the rule will stay dormant")
		case event != nil && !event.IsActive():
			rep.AddWarning("event_id", fmt.Sprintf("event %s is inactive; the rule will stay dormant", event.ID))
		}
		if !cfg.HasOffset() {
			rep.AddWarning("rule_config", "no offset configured; the rule will stay dormant")
		}
	case domain.ConditionalConfig:
		expr, err := Compile(r.TriggerExpression)
		if err != nil {
			rep.AddError("trigger_expression", err.Error())
			break
		}
		if len(expr.Identifiers()) == 0 {
			rep.AddWarning("trigger_expression", "expression references no context values and is constant")
		}
	}
	return rep
}

func addErr(rep *domain.ValidationReport, err error) {
	var field string
	msg := err.Error()
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		field, msg = ve.Field, ve.Message
	}
	rep.AddError(field, msg)
}
