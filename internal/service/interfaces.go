package service

import (
	"context"
	"time"

	"github.com/alexanderramin/duecycle/internal/domain"
	"github.com/alexanderramin/duecycle/internal/recurrence"
	"github.com/alexanderramin/duecycle/internal/repository"
)

type ScheduleService interface {
	Create(ctx context.Context, s *domain.Schedule) error
	GetByID(ctx context.Context, id string) (*domain.Schedule, error)
	List(ctx context.Context, f repository.ScheduleFilter) ([]*domain.Schedule, error)
	Update(ctx context.Context, id string, patch domain.SchedulePatch, actor string) (*domain.Schedule, error)
	Archive(ctx context.Context, id string, actor string) (*domain.Schedule, error)
	Recompute(ctx context.Context, id string) (*domain.Schedule, error)
}

type DeadlineService interface {
	GetByID(ctx context.Context, id string) (*domain.Deadline, error)
	ListBySchedule(ctx context.Context, scheduleID string) ([]*domain.Deadline, error)
	ListByStatus(ctx context.Context, status domain.DeadlineStatus) ([]*domain.Deadline, error)
	SweepOverdue(ctx context.Context) (int64, error)
	Complete(ctx context.Context, id string, completedAt time.Time) (*domain.Deadline, error)
}

type EventService interface {
	Create(ctx context.Context, e *domain.RecurrenceEvent) error
	GetByID(ctx context.Context, id string) (*domain.RecurrenceEvent, error)
	List(ctx context.Context, f repository.EventFilter) ([]*domain.RecurrenceEvent, error)
	Update(ctx context.Context, e *domain.RecurrenceEvent) error
}

// RuleDetail is everything a reader needs to understand one rule.
type RuleDetail struct {
	Rule     *domain.TriggerRule
	Schedule *domain.Schedule
	// Event is nil when the rule links no event or the event is gone.
	Event  *domain.RecurrenceEvent
	Latest *domain.TriggerExecutionLog
	Stats  *domain.ExecutionStats
	State  domain.RuleState
}

type RuleService interface {
	Create(ctx context.Context, r *domain.TriggerRule) (domain.ValidationReport, error)
	Validate(ctx context.Context, r *domain.TriggerRule) (domain.ValidationReport, error)
	GetByID(ctx context.Context, id string) (*domain.TriggerRule, error)
	Detail(ctx context.Context, id string) (*RuleDetail, error)
	List(ctx context.Context, f repository.RuleFilter) ([]*domain.TriggerRule, error)
	SetLifecycle(ctx context.Context, id string, l domain.Lifecycle) (*domain.TriggerRule, error)
}

// EvaluationResult describes one rule's evaluation attempt.
type EvaluationResult struct {
	RuleID   string
	RuleType domain.RuleType
	// Outcome is one of the metrics.Outcome* labels.
	Outcome    string
	Date       *time.Time
	DedupKey   string
	DeadlineID string
	// LogID is empty for dormant and skipped rules, which write no row.
	LogID string
	// Reason explains a dormant outcome.
	Reason error
	Err    error
}

// BatchResult summarises one EvaluateDue pass.
type BatchResult struct {
	Results    []EvaluationResult
	Fired      int
	NotFired   int
	Duplicates int
	Dormant    int
	Failed     int
	Skipped    int
	Duration   time.Duration
}

type EvaluationService interface {
	// EvaluateRule evaluates one rule now. execContext, when non-nil, is
	// used for CONDITIONAL rules instead of the configured context source.
	EvaluateRule(ctx context.Context, ruleID string, execContext map[string]any) (*EvaluationResult, error)
	EvaluateDue(ctx context.Context) (*BatchResult, error)
}

type ExecutionLogService interface {
	History(ctx context.Context, ruleID string, f domain.ExecutionFilter) (*domain.ExecutionPage, error)
	Stats(ctx context.Context, ruleID string) (*domain.ExecutionStats, error)
}

// WindowTotal is a running total over one accumulation window.
type WindowTotal struct {
	Granularity domain.Granularity
	Window      recurrence.Window
	Total       float64
	Limit       float64
	Usage       recurrence.LimitUsage
}

type SubjectTotals struct {
	SubjectID   string
	ObservedOn  time.Time
	Anniversary time.Time
	Annual      WindowTotal
	Monthly     WindowTotal
}

type AccumulatorService interface {
	RecordIncrement(ctx context.Context, m *domain.MeasurementIncrement) error
	Totals(ctx context.Context, subjectID string, on time.Time) (*SubjectTotals, error)
	Subjects() []string
}
