package repository

import (
	"context"
	"time"

	"github.com/alexanderramin/duecycle/internal/domain"
)

// ScheduleFilter narrows List. Zero values match everything.
type ScheduleFilter struct {
	SiteID       string
	ObligationID string
	Status       *domain.ScheduleStatus
}

// RuleFilter narrows rule listings. SiteID is matched through the rule's
// schedule.
type RuleFilter struct {
	SiteID     string
	ScheduleID string
	RuleType   *domain.RuleType
	Lifecycle  *domain.Lifecycle
}

type EventFilter struct {
	EventType string
	Lifecycle *domain.Lifecycle
}

type ScheduleRepo interface {
	Create(ctx context.Context, s *domain.Schedule) error
	GetByID(ctx context.Context, id string) (*domain.Schedule, error)
	List(ctx context.Context, f ScheduleFilter) ([]*domain.Schedule, error)
	Update(ctx context.Context, s *domain.Schedule) error
}

type DeadlineRepo interface {
	// Upsert inserts d unless a deadline already exists for the same
	// schedule and due date, in which case the stored row is left as is.
	// It reports whether a row was inserted.
	Upsert(ctx context.Context, d *domain.Deadline) (bool, error)
	GetByID(ctx context.Context, id string) (*domain.Deadline, error)
	GetByScheduleAndDate(ctx context.Context, scheduleID string, due time.Time) (*domain.Deadline, error)
	ListBySchedule(ctx context.Context, scheduleID string) ([]*domain.Deadline, error)
	ListByStatus(ctx context.Context, status domain.DeadlineStatus) ([]*domain.Deadline, error)
	ListPendingBySchedule(ctx context.Context, scheduleID string) ([]*domain.Deadline, error)
	Update(ctx context.Context, d *domain.Deadline) error
	Reschedule(ctx context.Context, d *domain.Deadline) error
	DeletePending(ctx context.Context, id string) error
	// MarkOverdue flips PENDING deadlines due before today to OVERDUE and
	// returns how many changed.
	MarkOverdue(ctx context.Context, today time.Time, now time.Time) (int64, error)
}

type EventRepo interface {
	Create(ctx context.Context, e *domain.RecurrenceEvent) error
	GetByID(ctx context.Context, id string) (*domain.RecurrenceEvent, error)
	List(ctx context.Context, f EventFilter) ([]*domain.RecurrenceEvent, error)
	Update(ctx context.Context, e *domain.RecurrenceEvent) error
}

type RuleRepo interface {
	Create(ctx context.Context, r *domain.TriggerRule) error
	GetByID(ctx context.Context, id string) (*domain.TriggerRule, error)
	List(ctx context.Context, f RuleFilter) ([]*domain.TriggerRule, error)
	// ListEvaluable returns ACTIVE rules whose schedule is ACTIVE.
	ListEvaluable(ctx context.Context) ([]*domain.TriggerRule, error)
	Update(ctx context.Context, r *domain.TriggerRule) error
}

type ExecutionLogRepo interface {
	Append(ctx context.Context, l *domain.TriggerExecutionLog) error
	List(ctx context.Context, ruleID string, f domain.ExecutionFilter) (*domain.ExecutionPage, error)
	Latest(ctx context.Context, ruleID string) (*domain.TriggerExecutionLog, error)
	Stats(ctx context.Context, ruleID string) (*domain.ExecutionStats, error)
	// HasFiredReference reports whether any rule linked to the event has a
	// log row that fired.
	HasFiredReference(ctx context.Context, eventID string) (bool, error)
}

type FiringRepo interface {
	// Record claims periodKey for the rule. It reports false when the
	// period was already claimed.
	Record(ctx context.Context, ruleID, periodKey string, firedAt time.Time) (bool, error)
}

type LedgerRepo interface {
	Append(ctx context.Context, m *domain.MeasurementIncrement) error
	ListBySubject(ctx context.Context, subjectID string, from, to time.Time) ([]domain.MeasurementIncrement, error)
}
