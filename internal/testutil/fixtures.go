package testutil

import (
	"time"

	"github.com/alexanderramin/duecycle/internal/domain"
	"github.com/google/uuid"
)

// Date returns a civil date at UTC midnight.
func Date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Schedule options
type ScheduleOption func(*domain.Schedule)

func WithFrequency(f domain.Frequency) ScheduleOption {
	return func(s *domain.Schedule) {
		s.Frequency = f
	}
}

func WithBaseDate(d time.Time) ScheduleOption {
	return func(s *domain.Schedule) {
		s.BaseDate = d
	}
}

func WithSiteID(id string) ScheduleOption {
	return func(s *domain.Schedule) {
		s.SiteID = id
	}
}

func WithScheduleStatus(st domain.ScheduleStatus) ScheduleOption {
	return func(s *domain.Schedule) {
		s.Status = st
	}
}

func WithBusinessDays() ScheduleOption {
	return func(s *domain.Schedule) {
		s.AdjustForBusinessDays = true
	}
}

func WithNextDueDate(d time.Time) ScheduleOption {
	return func(s *domain.Schedule) {
		s.NextDueDate = &d
	}
}

func WithLastCompleted(d time.Time) ScheduleOption {
	return func(s *domain.Schedule) {
		s.LastCompletedDate = &d
	}
}

func WithReminderOffsets(offsets ...int) ScheduleOption {
	return func(s *domain.Schedule) {
		s.ReminderOffsets = offsets
	}
}

// NewTestSchedule builds an ACTIVE monthly schedule anchored on 2025-01-31.
func NewTestSchedule(obligationID string, opts ...ScheduleOption) *domain.Schedule {
	now := time.Now().UTC().Truncate(time.Second)
	s := &domain.Schedule{
		ID:           uuid.New().String(),
		ObligationID: obligationID,
		SiteID:       "site-1",
		Frequency:    domain.FrequencyMonthly,
		BaseDate:     Date(2025, 1, 31),
		Status:       domain.ScheduleActive,
		ModifiedBy:   "test",
		ModifiedAt:   now,
		CreatedAt:    now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Event options
type EventOption func(*domain.RecurrenceEvent)

func WithEventLifecycle(l domain.Lifecycle) EventOption {
	return func(e *domain.RecurrenceEvent) {
		e.Lifecycle = l
	}
}

func WithEventType(t string) EventOption {
	return func(e *domain.RecurrenceEvent) {
		e.EventType = t
	}
}

func WithMetadata(m map[string]any) EventOption {
	return func(e *domain.RecurrenceEvent) {
		e.Metadata = m
	}
}

func NewTestEvent(name string, eventDate time.Time, opts ...EventOption) *domain.RecurrenceEvent {
	now := time.Now().UTC().Truncate(time.Second)
	e := &domain.RecurrenceEvent{
		ID:        uuid.New().String(),
		EventType: "PERMIT_ISSUED",
		Name:      name,
		EventDate: eventDate,
		Lifecycle: domain.LifecycleActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Rule options
type RuleOption func(*domain.TriggerRule)

func WithRuleConfig(cfg domain.RuleConfig) RuleOption {
	return func(r *domain.TriggerRule) {
		r.Config = cfg
		r.RuleType = cfg.Type()
	}
}

func WithExpression(expr string) RuleOption {
	return func(r *domain.TriggerRule) {
		r.TriggerExpression = expr
	}
}

func WithEventID(id string) RuleOption {
	return func(r *domain.TriggerRule) {
		r.EventID = &id
	}
}

func WithRuleLifecycle(l domain.Lifecycle) RuleOption {
	return func(r *domain.TriggerRule) {
		r.Lifecycle = l
	}
}

// NewTestRule builds an ACTIVE FIXED monthly rule unless options say
// otherwise.
func NewTestRule(scheduleID string, opts ...RuleOption) *domain.TriggerRule {
	now := time.Now().UTC().Truncate(time.Second)
	r := &domain.TriggerRule{
		ID:         uuid.New().String(),
		ScheduleID: scheduleID,
		RuleType:   domain.RuleFixed,
		Config:     domain.FixedConfig{Frequency: domain.FrequencyMonthly},
		Lifecycle:  domain.LifecycleActive,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewTestConditionalRule is shorthand for a CONDITIONAL rule with a day
// offset.
func NewTestConditionalRule(scheduleID, expr string, offsetDays int) *domain.TriggerRule {
	return NewTestRule(scheduleID,
		WithRuleConfig(domain.ConditionalConfig{OffsetDays: offsetDays}),
		WithExpression(expr),
	)
}

func NewTestIncrement(subjectID string, on time.Time, amount float64) *domain.MeasurementIncrement {
	return &domain.MeasurementIncrement{
		ID:         uuid.New().String(),
		SubjectID:  subjectID,
		RecordedOn: on,
		Amount:     amount,
		CreatedAt:  time.Now().UTC().Truncate(time.Second),
	}
}

func IntPtr(v int) *int { return &v }
