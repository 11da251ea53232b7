// Package contract holds the JSON shapes shared by the HTTP API and the
// CLI's --json output.
package contract

import (
	"encoding/json"
	"time"

	"github.com/alexanderramin/duecycle/internal/domain"
	"github.com/alexanderramin/duecycle/internal/service"
)

type ScheduleView struct {
	ID                    string                      `json:"id"`
	ObligationID          string                      `json:"obligation_id"`
	SiteID                string                      `json:"site_id"`
	Frequency             domain.Frequency            `json:"frequency"`
	BaseDate              string                      `json:"base_date"`
	NextDueDate           *string                     `json:"next_due_date"`
	LastCompletedDate     *string                     `json:"last_completed_date"`
	Status                domain.ScheduleStatus       `json:"status"`
	AdjustForBusinessDays bool                        `json:"adjust_for_business_days"`
	ReminderOffsets       []int                       `json:"reminder_offsets"`
	ReminderDates         []string                    `json:"reminder_dates,omitempty"`
	PreviousValues        []domain.ScheduleAuditEntry `json:"previous_values"`
	ModifiedBy            string                      `json:"modified_by"`
	ModifiedAt            time.Time                   `json:"modified_at"`
	CreatedAt             time.Time                   `json:"created_at"`
}

func NewScheduleView(s *domain.Schedule) ScheduleView {
	v := ScheduleView{
		ID:                    s.ID,
		ObligationID:          s.ObligationID,
		SiteID:                s.SiteID,
		Frequency:             s.Frequency,
		BaseDate:              s.BaseDate.Format(domain.DateLayout),
		NextDueDate:           domain.FormatDatePtr(s.NextDueDate),
		LastCompletedDate:     domain.FormatDatePtr(s.LastCompletedDate),
		Status:                s.Status,
		AdjustForBusinessDays: s.AdjustForBusinessDays,
		ReminderOffsets:       s.ReminderOffsets,
		PreviousValues:        s.PreviousValues,
		ModifiedBy:            s.ModifiedBy,
		ModifiedAt:            s.ModifiedAt,
		CreatedAt:             s.CreatedAt,
	}
	if v.ReminderOffsets == nil {
		v.ReminderOffsets = []int{}
	}
	if v.PreviousValues == nil {
		v.PreviousValues = []domain.ScheduleAuditEntry{}
	}
	for _, d := range s.ReminderDates() {
		v.ReminderDates = append(v.ReminderDates, d.Format(domain.DateLayout))
	}
	return v
}

type DeadlineView struct {
	ID               string                `json:"id"`
	ScheduleID       string                `json:"schedule_id"`
	DueDate          string                `json:"due_date"`
	Status           domain.DeadlineStatus `json:"status"`
	CompliancePeriod string                `json:"compliance_period"`
	IsLate           *bool                 `json:"is_late"`
	CompletedAt      *time.Time            `json:"completed_at"`
	CreatedAt        time.Time             `json:"created_at"`
	UpdatedAt        time.Time             `json:"updated_at"`
}

func NewDeadlineView(d *domain.Deadline) DeadlineView {
	return DeadlineView{
		ID:               d.ID,
		ScheduleID:       d.ScheduleID,
		DueDate:          d.DueDate.Format(domain.DateLayout),
		Status:           d.Status,
		CompliancePeriod: d.CompliancePeriod,
		IsLate:           d.IsLate,
		CompletedAt:      d.CompletedAt,
		CreatedAt:        d.CreatedAt,
		UpdatedAt:        d.UpdatedAt,
	}
}

func NewDeadlineViews(ds []*domain.Deadline) []DeadlineView {
	out := make([]DeadlineView, 0, len(ds))
	for _, d := range ds {
		out = append(out, NewDeadlineView(d))
	}
	return out
}

type EventView struct {
	ID        string           `json:"id"`
	EventType string           `json:"event_type"`
	Name      string           `json:"name"`
	EventDate string           `json:"event_date"`
	Metadata  map[string]any   `json:"metadata"`
	Lifecycle domain.Lifecycle `json:"lifecycle"`
	IsActive  bool             `json:"is_active"`
	CreatedAt time.Time        `json:"created_at"`
}

func NewEventView(e *domain.RecurrenceEvent) EventView {
	md := e.Metadata
	if md == nil {
		md = map[string]any{}
	}
	return EventView{
		ID:        e.ID,
		EventType: e.EventType,
		Name:      e.Name,
		EventDate: e.EventDate.Format(domain.DateLayout),
		Metadata:  md,
		Lifecycle: e.Lifecycle,
		IsActive:  e.IsActive(),
		CreatedAt: e.CreatedAt,
	}
}

type RuleView struct {
	ID                string           `json:"id"`
	ScheduleID        string           `json:"schedule_id"`
	RuleType          domain.RuleType  `json:"rule_type"`
	RuleConfig        json.RawMessage  `json:"rule_config"`
	TriggerExpression string           `json:"trigger_expression,omitempty"`
	EventID           *string          `json:"event_id"`
	Lifecycle         domain.Lifecycle `json:"lifecycle"`
	IsActive          bool             `json:"is_active"`
	NextExecutionDate *string          `json:"next_execution_date"`
	LastExecutedAt    *time.Time       `json:"last_executed_at"`
	ExecutionCount    int              `json:"execution_count"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
}

func NewRuleView(r *domain.TriggerRule) RuleView {
	cfg, err := domain.MarshalRuleConfig(r.Config)
	if err != nil {
		cfg = []byte("{}")
	}
	return RuleView{
		ID:                r.ID,
		ScheduleID:        r.ScheduleID,
		RuleType:          r.RuleType,
		RuleConfig:        cfg,
		TriggerExpression: r.TriggerExpression,
		EventID:           r.EventID,
		Lifecycle:         r.Lifecycle,
		IsActive:          r.IsActive(),
		NextExecutionDate: domain.FormatDatePtr(r.NextExecutionDate),
		LastExecutedAt:    r.LastExecutedAt,
		ExecutionCount:    r.ExecutionCount,
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
	}
}

func NewRuleViews(rs []*domain.TriggerRule) []RuleView {
	out := make([]RuleView, 0, len(rs))
	for _, r := range rs {
		out = append(out, NewRuleView(r))
	}
	return out
}

type RuleDetailView struct {
	RuleView
	State           domain.RuleState   `json:"state"`
	Schedule        ScheduleView       `json:"schedule"`
	Event           *EventView         `json:"event"`
	LatestExecution *ExecutionLogView  `json:"latest_execution"`
	Stats           ExecutionStatsView `json:"stats"`
}

func NewRuleDetailView(d *service.RuleDetail) RuleDetailView {
	v := RuleDetailView{
		RuleView: NewRuleView(d.Rule),
		State:    d.State,
		Schedule: NewScheduleView(d.Schedule),
	}
	if d.Event != nil {
		ev := NewEventView(d.Event)
		v.Event = &ev
	}
	if d.Latest != nil {
		l := NewExecutionLogView(d.Latest)
		v.LatestExecution = &l
	}
	if d.Stats != nil {
		v.Stats = NewExecutionStatsView(d.Stats)
	}
	return v
}

type ExecutionLogView struct {
	ID           string                 `json:"id"`
	RuleID       string                 `json:"rule_id"`
	ExecutedAt   time.Time              `json:"executed_at"`
	Status       domain.ExecutionStatus `json:"execution_status"`
	Result       map[string]any         `json:"execution_result"`
	Context      map[string]any         `json:"execution_context"`
	ErrorMessage *string                `json:"error_message"`
	DurationMS   int64                  `json:"duration_ms"`
	DedupKey     string                 `json:"dedup_key,omitempty"`
}

func NewExecutionLogView(l *domain.TriggerExecutionLog) ExecutionLogView {
	return ExecutionLogView{
		ID:           l.ID,
		RuleID:       l.RuleID,
		ExecutedAt:   l.ExecutedAt,
		Status:       l.Status,
		Result:       l.Result,
		Context:      l.Context,
		ErrorMessage: l.ErrorMessage,
		DurationMS:   l.DurationMS,
		DedupKey:     l.DedupKey,
	}
}

type ExecutionStatsView struct {
	TotalExecutions    int   `json:"total_executions"`
	SuccessCount       int   `json:"success_count"`
	FailureCount       int   `json:"failure_count"`
	AvgExecutionTimeMS int64 `json:"avg_execution_time_ms"`
}

func NewExecutionStatsView(s *domain.ExecutionStats) ExecutionStatsView {
	return ExecutionStatsView{
		TotalExecutions:    s.TotalExecutions,
		SuccessCount:       s.SuccessCount,
		FailureCount:       s.FailureCount,
		AvgExecutionTimeMS: s.AvgExecutionTimeMS,
	}
}

type ExecutionHistoryView struct {
	Items      []ExecutionLogView `json:"items"`
	NextCursor string             `json:"next_cursor,omitempty"`
	Stats      ExecutionStatsView `json:"stats"`
}

func NewExecutionHistoryView(page *domain.ExecutionPage, stats *domain.ExecutionStats) ExecutionHistoryView {
	v := ExecutionHistoryView{Items: make([]ExecutionLogView, 0, len(page.Items)), NextCursor: page.NextCursor}
	for _, l := range page.Items {
		v.Items = append(v.Items, NewExecutionLogView(l))
	}
	if stats != nil {
		v.Stats = NewExecutionStatsView(stats)
	}
	return v
}

type EvaluationResultView struct {
	RuleID     string          `json:"rule_id"`
	RuleType   domain.RuleType `json:"rule_type"`
	Outcome    string          `json:"outcome"`
	Date       *string         `json:"next_execution_date,omitempty"`
	DedupKey   string          `json:"dedup_key,omitempty"`
	DeadlineID string          `json:"deadline_id,omitempty"`
	LogID      string          `json:"log_id,omitempty"`
	Reason     string          `json:"reason,omitempty"`
	Error      string          `json:"error,omitempty"`
}

func NewEvaluationResultView(r service.EvaluationResult) EvaluationResultView {
	v := EvaluationResultView{
		RuleID:     r.RuleID,
		RuleType:   r.RuleType,
		Outcome:    r.Outcome,
		Date:       domain.FormatDatePtr(r.Date),
		DedupKey:   r.DedupKey,
		DeadlineID: r.DeadlineID,
		LogID:      r.LogID,
	}
	if r.Reason != nil {
		v.Reason = r.Reason.Error()
	}
	if r.Err != nil {
		v.Error = r.Err.Error()
	}
	return v
}

type BatchResultView struct {
	Results    []EvaluationResultView `json:"results"`
	Fired      int                    `json:"fired"`
	NotFired   int                    `json:"not_fired"`
	Duplicates int                    `json:"duplicates"`
	Dormant    int                    `json:"dormant"`
	Failed     int                    `json:"failed"`
	Skipped    int                    `json:"skipped"`
	DurationMS int64                  `json:"duration_ms"`
}

func NewBatchResultView(b *service.BatchResult) BatchResultView {
	v := BatchResultView{
		Results:    make([]EvaluationResultView, 0, len(b.Results)),
		Fired:      b.Fired,
		NotFired:   b.NotFired,
		Duplicates: b.Duplicates,
		Dormant:    b.Dormant,
		Failed:     b.Failed,
		Skipped:    b.Skipped,
		DurationMS: b.Duration.Milliseconds(),
	}
	for _, r := range b.Results {
		v.Results = append(v.Results, NewEvaluationResultView(r))
	}
	return v
}

type WindowTotalView struct {
	Granularity domain.Granularity `json:"granularity"`
	WindowStart string             `json:"window_start"`
	WindowEnd   string             `json:"window_end"`
	Total       float64            `json:"total"`
	Limit       *float64           `json:"limit"`
	PercentUsed *float64           `json:"percent_of_limit"`
}

func newWindowTotalView(w service.WindowTotal) WindowTotalView {
	v := WindowTotalView{
		Granularity: w.Granularity,
		WindowStart: w.Window.Start.Format(domain.DateLayout),
		WindowEnd:   w.Window.End.Format(domain.DateLayout),
		Total:       w.Total,
	}
	if w.Usage.Configured {
		limit, pct := w.Limit, w.Usage.Percent
		v.Limit, v.PercentUsed = &limit, &pct
	}
	return v
}

type SubjectTotalsView struct {
	SubjectID   string          `json:"subject_id"`
	ObservedOn  string          `json:"observed_on"`
	Anniversary string          `json:"anniversary_date"`
	Annual      WindowTotalView `json:"annual"`
	Monthly     WindowTotalView `json:"monthly"`
}

func NewSubjectTotalsView(t *service.SubjectTotals) SubjectTotalsView {
	return SubjectTotalsView{
		SubjectID:   t.SubjectID,
		ObservedOn:  t.ObservedOn.Format(domain.DateLayout),
		Anniversary: t.Anniversary.Format(domain.DateLayout),
		Annual:      newWindowTotalView(t.Annual),
		Monthly:     newWindowTotalView(t.Monthly),
	}
}

type IssueView struct {
	Field    string          `json:"field,omitempty"`
	Severity domain.Severity `json:"severity"`
	Message  string          `json:"message"`
}

type ValidationReportView struct {
	Status domain.ReportStatus `json:"status"`
	Issues []IssueView         `json:"issues"`
}

func NewValidationReportView(rep domain.ValidationReport) ValidationReportView {
	v := ValidationReportView{Status: rep.Status(), Issues: []IssueView{}}
	for _, iss := range rep.Issues {
		v.Issues = append(v.Issues, IssueView{Field: iss.Field, Severity: iss.Severity, Message: iss.Message})
	}
	return v
}
