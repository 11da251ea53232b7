package trigger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alexanderramin/duecycle/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(y int, m time.Month, day int) time.Time {
	return time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
}

func intPtr(v int) *int { return &v }

func strPtr(s string) *string { return &s }

var evalNow = time.Date(2025, 3, 3, 9, 30, 0, 0, time.UTC)

func testSchedule() *domain.Schedule {
	return &domain.Schedule{
		ID:           "sched-1",
		ObligationID: "obl-1",
		Frequency:    domain.FrequencyMonthly,
		BaseDate:     d(2025, 1, 31),
		Status:       domain.ScheduleActive,
	}
}

func activeEvent(date time.Time) *domain.RecurrenceEvent {
	return &domain.RecurrenceEvent{
		ID: "evt-1", EventType: "PERMIT_ISSUED", Name: "Air permit",
		EventDate: date, Lifecycle: domain.LifecycleActive,
	}
}

func TestEvaluate_EventBased(t *testing.T) {
	rule := &domain.TriggerRule{
		ID: "rule-1", RuleType: domain.RuleEventBased, Lifecycle: domain.LifecycleActive,
		Config:  domain.EventBasedConfig{OffsetMonths: intPtr(6)},
		EventID: strPtr("evt-1"),
	}
	ev := NewEvaluator(nil, 0)

	out, err := ev.Evaluate(context.Background(), Input{Rule: rule, Schedule: testSchedule(), Event: activeEvent(d(2025, 1, 10)), Now: evalNow})
	require.NoError(t, err)
	assert.True(t, out.Fired)
	assert.False(t, out.Dormant)
	require.NotNil(t, out.Date)
	assert.Equal(t, d(2025, 7, 10), *out.Date)
	assert.Equal(t, "rule-1@2025-07-10", out.DedupKey(rule.ID))
	assert.Equal(t, "2025-01-10", out.Context["event_date"])
}

func TestEvaluate_EventBasedDormant(t *testing.T) {
	inactive := activeEvent(d(2025, 1, 10))
	inactive.Lifecycle = domain.LifecycleInactive

	tests := []struct {
		name    string
		cfg     domain.EventBasedConfig
		eventID *string
		event   *domain.RecurrenceEvent
	}{
		{"no linked event", domain.EventBasedConfig{OffsetDays: intPtr(30)}, nil, nil},
		{"event missing", domain.EventBasedConfig{OffsetDays: intPtr(30)}, strPtr("evt-gone"), nil},
		{"event inactive", domain.EventBasedConfig{OffsetDays: intPtr(30)}, strPtr("evt-1"), inactive},
		{"no offset", domain.EventBasedConfig{}, strPtr("evt-1"), activeEvent(d(2025, 1, 10))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := &domain.TriggerRule{
				ID: "rule-1", RuleType: domain.RuleEventBased, Lifecycle: domain.LifecycleActive,
				Config: tt.cfg, EventID: tt.eventID,
			}
			out, err := NewEvaluator(nil, 0).Evaluate(context.Background(), Input{Rule: rule, Schedule: testSchedule(), Event: tt.event, Now: evalNow})
			require.NoError(t, err, "dormant is not a failure")
			assert.True(t, out.Dormant)
			assert.False(t, out.Fired)
			assert.Nil(t, out.Date)
			assert.ErrorIs(t, out.Reason, domain.ErrConfigIncomplete)
		})
	}
}

func TestEvaluate_Fixed(t *testing.T) {
	rule := &domain.TriggerRule{
		ID: "rule-2", RuleType: domain.RuleFixed, Lifecycle: domain.LifecycleActive,
		Config: domain.FixedConfig{Frequency: domain.FrequencyMonthly},
	}
	out, err := NewEvaluator(nil, 0).Evaluate(context.Background(), Input{Rule: rule, Schedule: testSchedule(), Now: evalNow})
	require.NoError(t, err)
	require.True(t, out.Fired)
	assert.Equal(t, d(2025, 2, 28), *out.Date)
}

func TestEvaluate_FixedBaseOverrideAndAdjust(t *testing.T) {
	// 2025-05-03 + 7 days lands on Saturday 2025-05-10.
	rule := &domain.TriggerRule{
		ID: "rule-2", RuleType: domain.RuleFixed, Lifecycle: domain.LifecycleActive,
		Config: domain.FixedConfig{Frequency: domain.FrequencyWeekly, BaseDate: "2025-05-03", AdjustForBusinessDays: true},
	}
	out, err := NewEvaluator(nil, 0).Evaluate(context.Background(), Input{Rule: rule, Schedule: testSchedule(), Now: evalNow})
	require.NoError(t, err)
	assert.Equal(t, d(2025, 5, 12), *out.Date)
}

func TestEvaluate_FixedContinuousIsDormant(t *testing.T) {
	rule := &domain.TriggerRule{
		ID: "rule-2", RuleType: domain.RuleFixed, Lifecycle: domain.LifecycleActive,
		Config: domain.FixedConfig{Frequency: domain.FrequencyContinuous},
	}
	out, err := NewEvaluator(nil, 0).Evaluate(context.Background(), Input{Rule: rule, Schedule: testSchedule(), Now: evalNow})
	require.NoError(t, err)
	assert.True(t, out.Dormant)
}

func TestEvaluate_DynamicOffset(t *testing.T) {
	rule := &domain.TriggerRule{
		ID: "rule-3", RuleType: domain.RuleDynamicOffset, Lifecycle: domain.LifecycleActive,
		Config: domain.DynamicOffsetConfig{BaselineDate: "2024-08-31", OffsetMonths: 6, OffsetDays: 1},
	}
	out, err := NewEvaluator(nil, 0).Evaluate(context.Background(), Input{Rule: rule, Schedule: testSchedule(), Now: evalNow})
	require.NoError(t, err)
	assert.Equal(t, d(2025, 3, 1), *out.Date)
}

func conditionalRule(expr string) *domain.TriggerRule {
	return &domain.TriggerRule{
		ID: "rule-4", RuleType: domain.RuleConditional, Lifecycle: domain.LifecycleActive,
		Config:            domain.ConditionalConfig{OffsetDays: 14},
		TriggerExpression: expr,
	}
}

func TestEvaluate_ConditionalMatched(t *testing.T) {
	out, err := NewEvaluator(nil, 0).Evaluate(context.Background(), Input{
		Rule: conditionalRule("runtime_hours > 450"), Schedule: testSchedule(),
		Context: map[string]any{"runtime_hours": 480}, Now: evalNow,
	})
	require.NoError(t, err)
	assert.True(t, out.Fired)
	assert.True(t, out.Matched)
	assert.Equal(t, d(2025, 3, 17), *out.Date)
	assert.Equal(t, map[string]any{"runtime_hours": 480}, out.Context["context"])
}

func TestEvaluate_ConditionalNotMatched(t *testing.T) {
	out, err := NewEvaluator(nil, 0).Evaluate(context.Background(), Input{
		Rule: conditionalRule("runtime_hours > 450"), Schedule: testSchedule(),
		Context: map[string]any{"runtime_hours": 100}, Now: evalNow,
	})
	require.NoError(t, err)
	assert.False(t, out.Fired)
	assert.False(t, out.Matched)
	assert.False(t, out.Dormant)
	assert.Nil(t, out.Date)
}

func TestEvaluate_ConditionalUsesSource(t *testing.T) {
	var calls int
	src := ContextSourceFunc(func(ctx context.Context, r *domain.TriggerRule, s *domain.Schedule) (map[string]any, error) {
		calls++
		assert.Equal(t, "sched-1", s.ID)
		return map[string]any{"site": map[string]any{"open_findings": 3}}, nil
	})
	out, err := NewEvaluator(src, time.Second).Evaluate(context.Background(), Input{
		Rule: conditionalRule("site.open_findings >= 3"), Schedule: testSchedule(), Now: evalNow,
	})
	require.NoError(t, err)
	assert.True(t, out.Fired)
	assert.Equal(t, 1, calls)
}

func TestEvaluate_ConditionalKeysOnScheduleCycle(t *testing.T) {
	sched := testSchedule()
	rule := conditionalRule("runtime_hours > 450")
	in := Input{Rule: rule, Schedule: sched, Context: map[string]any{"runtime_hours": 480}, Now: evalNow}

	first, err := NewEvaluator(nil, 0).Evaluate(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, "rule-4@cycle:2025-01-31", first.DedupKey(rule.ID))
	assert.Equal(t, "2025-01-31", first.Context["cycle_start"])

	in.Now = evalNow.AddDate(0, 0, 1)
	nextDay, err := NewEvaluator(nil, 0).Evaluate(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, d(2025, 3, 18), *nextDay.Date)
	assert.Equal(t, first.DedupKey(rule.ID), nextDay.DedupKey(rule.ID), "same cycle, same period")

	completed := d(2025, 3, 10)
	sched.LastCompletedDate = &completed
	afterCompletion, err := NewEvaluator(nil, 0).Evaluate(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, "rule-4@cycle:2025-03-10", afterCompletion.DedupKey(rule.ID))
}

func TestDedupKey_NormalisesTime(t *testing.T) {
	assert.Equal(t, "r@2025-07-10", DedupKey("r", time.Date(2025, 7, 10, 22, 0, 0, 0, time.UTC)))
	assert.Equal(t, "", Outcome{}.DedupKey("r"))
	assert.Equal(t, "r@cycle:2025-07-10", CycleKey("r", time.Date(2025, 7, 10, 22, 0, 0, 0, time.UTC)))
}

// ============ NEGATIVE TEST CASES ============

func TestEvaluate_ConditionalSourceTimeout(t *testing.T) {
	src := ContextSourceFunc(func(ctx context.Context, _ *domain.TriggerRule, _ *domain.Schedule) (map[string]any, error) {
		<-ctx.Done()
		time.Sleep(10 * time.Millisecond)
		return map[string]any{"x": 1}, nil
	})
	_, err := NewEvaluator(src, 20*time.Millisecond).Evaluate(context.Background(), Input{
		Rule: conditionalRule("x > 0"), Schedule: testSchedule(), Now: evalNow,
	})
	require.Error(t, err)
	var ef *domain.EvaluationFailure
	require.ErrorAs(t, err, &ef)
	assert.Equal(t, "rule-4", ef.RuleID)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestEvaluate_ConditionalSourceError(t *testing.T) {
	boom := errors.New("snapshot service unavailable")
	src := ContextSourceFunc(func(context.Context, *domain.TriggerRule, *domain.Schedule) (map[string]any, error) {
		return nil, boom
	})
	_, err := NewEvaluator(src, time.Second).Evaluate(context.Background(), Input{
		Rule: conditionalRule("x > 0"), Schedule: testSchedule(), Now: evalNow,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestEvaluate_ConditionalSourcePanic(t *testing.T) {
	src := ContextSourceFunc(func(context.Context, *domain.TriggerRule, *domain.Schedule) (map[string]any, error) {
		panic("nil map")
	})
	_, err := NewEvaluator(src, time.Second).Evaluate(context.Background(), Input{
		Rule: conditionalRule("x > 0"), Schedule: testSchedule(), Now: evalNow,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panicked")
}

func TestEvaluate_ConditionalExpressionError(t *testing.T) {
	out, err := NewEvaluator(nil, 0).Evaluate(context.Background(), Input{
		Rule: conditionalRule("missing_value > 1"), Schedule: testSchedule(),
		Context: map[string]any{}, Now: evalNow,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "undefined variable")
	assert.False(t, out.Fired)
	assert.Nil(t, out.Date)
}

func TestEvaluate_DateOverflow(t *testing.T) {
	rule := &domain.TriggerRule{
		ID: "rule-3", RuleType: domain.RuleDynamicOffset, Lifecycle: domain.LifecycleActive,
		Config: domain.DynamicOffsetConfig{BaselineDate: "9999-06-01", OffsetMonths: 12},
	}
	_, err := NewEvaluator(nil, 0).Evaluate(context.Background(), Input{Rule: rule, Schedule: testSchedule(), Now: evalNow})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDateOverflow)
}

func TestEvaluate_MismatchedConfig(t *testing.T) {
	rule := &domain.TriggerRule{
		ID: "rule-5", RuleType: domain.RuleEventBased, Lifecycle: domain.LifecycleActive,
		Config: domain.FixedConfig{Frequency: domain.FrequencyDaily},
	}
	_, err := NewEvaluator(nil, 0).Evaluate(context.Background(), Input{Rule: rule, Schedule: testSchedule(), Now: evalNow})
	require.Error(t, err)
	assert.True(t, domain.IsValidation(err))
}
