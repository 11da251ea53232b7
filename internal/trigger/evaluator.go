package trigger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alexanderramin/duecycle/internal/domain"
	"github.com/alexanderramin/duecycle/internal/recurrence"
)

// ContextSource supplies the execution context a CONDITIONAL rule's
// expression is evaluated against, typically a site/obligation snapshot.
type ContextSource interface {
	Fetch(ctx context.Context, rule *domain.TriggerRule, schedule *domain.Schedule) (map[string]any, error)
}

// ContextSourceFunc adapts a function to ContextSource.
type ContextSourceFunc func(ctx context.Context, rule *domain.TriggerRule, schedule *domain.Schedule) (map[string]any, error)

func (f ContextSourceFunc) Fetch(ctx context.Context, rule *domain.TriggerRule, schedule *domain.Schedule) (map[string]any, error) {
	return f(ctx, rule, schedule)
}

// Input is the snapshot one evaluation reads.
type Input struct {
	Rule     *domain.TriggerRule
	Schedule *domain.Schedule
	// Event is the rule's linked event, nil when none is linked or it no
	// longer exists.
	Event *domain.RecurrenceEvent
	// Context, when non-nil, is used for CONDITIONAL rules instead of
	// asking the ContextSource.
	Context map[string]any
	Now     time.Time
}

// Outcome describes what an evaluation decided. Exactly one of Fired,
// Dormant, or "evaluated without firing" (neither) holds.
type Outcome struct {
	Fired   bool
	Dormant bool
	// Matched is the CONDITIONAL expression's value; true for every other
	// rule type that produced a date.
	Matched bool
	Date    *time.Time
	// Cycle is the start of the schedule cycle a CONDITIONAL fire belongs
	// to. Its date follows the evaluation day, so the period is keyed on
	// the cycle instead.
	Cycle *time.Time
	// Reason explains a dormant outcome and wraps domain.ErrConfigIncomplete.
	Reason  error
	Context map[string]any
}

// DedupKey identifies the period a fire belongs to. A rule fires at most
// once per key.
func (o Outcome) DedupKey(ruleID string) string {
	switch {
	case o.Date == nil:
		return ""
	case o.Cycle != nil:
		return CycleKey(ruleID, *o.Cycle)
	}
	return DedupKey(ruleID, *o.Date)
}

// DedupKey builds "<rule_id>@<YYYY-MM-DD>".
func DedupKey(ruleID string, target time.Time) string {
	return ruleID + "@" + domain.Civil(target).Format(domain.DateLayout)
}

// CycleKey builds "<rule_id>@cycle:<YYYY-MM-DD>" from a cycle start.
func CycleKey(ruleID string, cycleStart time.Time) string {
	return ruleID + "@cycle:" + domain.Civil(cycleStart).Format(domain.DateLayout)
}

// CycleStart is the date the schedule's current cycle is anchored on: the
// last completion, or the base date before the first one.
func CycleStart(s *domain.Schedule) time.Time {
	if s.LastCompletedDate != nil {
		return domain.Civil(*s.LastCompletedDate)
	}
	return domain.Civil(s.BaseDate)
}

// Evaluator decides a rule's next execution date. It holds no per-rule
// state and is safe for concurrent use.
type Evaluator struct {
	source  ContextSource
	timeout time.Duration
}

// NewEvaluator builds an Evaluator. source may be nil when callers always
// pass a context for CONDITIONAL rules. timeout bounds each Fetch; zero
// means no bound beyond ctx.
func NewEvaluator(source ContextSource, timeout time.Duration) *Evaluator {
	return &Evaluator{source: source, timeout: timeout}
}

// Evaluate computes the outcome for in. Any error is an
// *domain.EvaluationFailure and means nothing should be mutated.
func (e *Evaluator) Evaluate(ctx context.Context, in Input) (Outcome, error) {
	if in.Rule == nil || in.Schedule == nil {
		return Outcome{}, errors.New("evaluate: rule and schedule are required")
	}
	out, err := e.evaluate(ctx, in)
	if err != nil {
		return Outcome{Context: out.Context}, &domain.EvaluationFailure{RuleID: in.Rule.ID, Cause: err}
	}
	if out.Date != nil {
		out.Fired = true
	}
	return out, nil
}

func (e *Evaluator) evaluate(ctx context.Context, in Input) (Outcome, error) {
	r := in.Rule
	snapshot := map[string]any{
		"rule_type":       string(r.RuleType),
		"schedule_id":     in.Schedule.ID,
		"evaluation_date": domain.Civil(in.Now).Format(domain.DateLayout),
	}
	out := Outcome{Context: snapshot}

	if r.Config == nil || r.Config.Type() != r.RuleType {
		return out, domain.NewValidationError("rule_config", "config does not match rule type %s", r.RuleType)
	}

	switch cfg := r.Config.(type) {
	case domain.FixedConfig:
		base := in.Schedule.BaseDate
		override, err := cfg.Base()
		if err != nil {
			return out, err
		}
		if override != nil {
			base = *override
		}
		snapshot["base_date"] = base.Format(domain.DateLayout)
		if lc := in.Schedule.LastCompletedDate; lc != nil {
			snapshot["last_completed_date"] = lc.Format(domain.DateLayout)
		}
		next, err := recurrence.NextDueDate(cfg.Frequency, base, in.Schedule.LastCompletedDate, cfg.AdjustForBusinessDays)
		if err != nil {
			return out, err
		}
		if next == nil {
			return dormant(out, "frequency %s has no calendar date", cfg.Frequency), nil
		}
		out.Date, out.Matched = next, true

	case domain.DynamicOffsetConfig:
		baseline, err := cfg.Baseline()
		if err != nil {
			return out, err
		}
		snapshot["baseline_date"] = cfg.BaselineDate
		next, err := recurrence.AddOffset(baseline, cfg.OffsetMonths, cfg.OffsetDays)
		if err != nil {
			return out, err
		}
		out.Date, out.Matched = &next, true

	case domain.EventBasedConfig:
		switch {
		case r.EventID == nil:
			return dormant(out, "no linked event"), nil
		case in.Event == nil:
			return dormant(out, "linked event %s not found", *r.EventID), nil
		case !in.Event.IsActive():
			return dormant(out, "linked event %s is inactive", in.Event.ID), nil
		case !cfg.HasOffset():
			return dormant(out, "no offset configured"), nil
		}
		snapshot["event_id"] = in.Event.ID
		snapshot["event_date"] = in.Event.EventDate.Format(domain.DateLayout)
		months, days := cfg.Offsets()
		next, err := recurrence.AddOffset(in.Event.EventDate, months, days)
		if err != nil {
			return out, err
		}
		out.Date, out.Matched = &next, true

	case domain.ConditionalConfig:
		expr, err := Compile(r.TriggerExpression)
		if err != nil {
			return out, fmt.Errorf("compiling trigger expression: %w", err)
		}
		vars, err := e.conditionContext(ctx, in)
		if err != nil {
			return out, err
		}
		snapshot["context"] = vars
		matched, err := expr.EvalBool(vars)
		if err != nil {
			return out, fmt.Errorf("evaluating %q: %w", expr.String(), err)
		}
		out.Matched = matched
		if !matched {
			return out, nil
		}
		next, err := recurrence.AddOffset(in.Now, cfg.OffsetMonths, cfg.OffsetDays)
		if err != nil {
			return out, err
		}
		cycle := CycleStart(in.Schedule)
		snapshot["cycle_start"] = cycle.Format(domain.DateLayout)
		out.Date, out.Cycle = &next, &cycle

	default:
		return out, domain.NewValidationError("rule_type", "unrecognized rule type %q", r.RuleType)
	}
	return out, nil
}

func dormant(out Outcome, format string, args ...any) Outcome {
	out.Dormant = true
	out.Reason = fmt.Errorf("%w: %s", domain.ErrConfigIncomplete, fmt.Sprintf(format, args...))
	return out
}

// conditionContext returns the caller's context or fetches one from the
// source, giving up after the configured timeout.
func (e *Evaluator) conditionContext(ctx context.Context, in Input) (map[string]any, error) {
	if in.Context != nil {
		return in.Context, nil
	}
	if e.source == nil {
		return map[string]any{}, nil
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	type result struct {
		vars map[string]any
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				ch <- result{err: fmt.Errorf("context source panicked: %v", p)}
			}
		}()
		vars, err := e.source.Fetch(ctx, in.Rule, in.Schedule)
		ch <- result{vars: vars, err: err}
	}()

	select {
	case res := <-ch:
		if res.err != nil {
			return nil, fmt.Errorf("fetching condition context: %w", res.err)
		}
		if res.vars == nil {
			res.vars = map[string]any{}
		}
		return res.vars, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("fetching condition context: %w", ctx.Err())
	}
}
