package contract

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/alexanderramin/duecycle/internal/domain"
	"github.com/alexanderramin/duecycle/internal/repository"
)

type CreateScheduleRequest struct {
	ObligationID          string `json:"obligation_id"`
	SiteID                string `json:"site_id"`
	Frequency             string `json:"frequency"`
	BaseDate              string `json:"base_date"`
	AdjustForBusinessDays bool   `json:"adjust_for_business_days"`
	ReminderOffsets       []int  `json:"reminder_offsets"`
	ModifiedBy            string `json:"modified_by"`
}

func (r CreateScheduleRequest) ToSchedule() (*domain.Schedule, error) {
	base, err := parseDateField("base_date", r.BaseDate)
	if err != nil {
		return nil, err
	}
	return &domain.Schedule{
		ObligationID:          strings.TrimSpace(r.ObligationID),
		SiteID:                strings.TrimSpace(r.SiteID),
		Frequency:             domain.Frequency(strings.ToUpper(r.Frequency)),
		BaseDate:              base,
		AdjustForBusinessDays: r.AdjustForBusinessDays,
		ReminderOffsets:       r.ReminderOffsets,
		ModifiedBy:            r.ModifiedBy,
	}, nil
}

// UpdateScheduleRequest is a partial update; absent fields are unchanged.
type UpdateScheduleRequest struct {
	Frequency             *string `json:"frequency"`
	BaseDate              *string `json:"base_date"`
	AdjustForBusinessDays *bool   `json:"adjust_for_business_days"`
	ReminderOffsets       []int   `json:"reminder_offsets"`
	Status                *string `json:"status"`
	ModifiedBy            string  `json:"modified_by"`
}

func (r UpdateScheduleRequest) ToPatch() (domain.SchedulePatch, error) {
	var p domain.SchedulePatch
	if r.Frequency != nil {
		f := domain.Frequency(strings.ToUpper(*r.Frequency))
		p.Frequency = &f
	}
	if r.BaseDate != nil {
		d, err := parseDateField("base_date", *r.BaseDate)
		if err != nil {
			return p, err
		}
		p.BaseDate = &d
	}
	p.AdjustForBusinessDays = r.AdjustForBusinessDays
	p.ReminderOffsets = r.ReminderOffsets
	if r.Status != nil {
		st := domain.ScheduleStatus(strings.ToUpper(*r.Status))
		p.Status = &st
	}
	return p, p.Validate()
}

type ArchiveScheduleRequest struct {
	ModifiedBy string `json:"modified_by"`
}

// CompleteDeadlineRequest carries the completion signal. A missing
// completed_at means now.
type CompleteDeadlineRequest struct {
	CompletedAt *time.Time `json:"completed_at"`
}

type EvaluateRequest struct {
	Context map[string]any `json:"context"`
}

type CreateRuleRequest struct {
	ScheduleID        string          `json:"schedule_id"`
	RuleType          string          `json:"rule_type"`
	RuleConfig        json.RawMessage `json:"rule_config"`
	TriggerExpression string          `json:"trigger_expression"`
	EventID           *string         `json:"event_id"`
	IsActive          *bool           `json:"is_active"`
}

// ToRule decodes the tagged rule_config for rule_type. Unknown config
// fields are rejected.
func (r CreateRuleRequest) ToRule() (*domain.TriggerRule, error) {
	rt := domain.RuleType(strings.ToUpper(r.RuleType))
	cfg, err := domain.ParseRuleConfig(rt, r.RuleConfig)
	if err != nil {
		if domain.IsValidation(err) {
			return nil, err
		}
		return nil, domain.NewValidationError("rule_config", "%v", err)
	}
	rule := &domain.TriggerRule{
		ScheduleID:        strings.TrimSpace(r.ScheduleID),
		RuleType:          rt,
		Config:            cfg,
		TriggerExpression: strings.TrimSpace(r.TriggerExpression),
		EventID:           r.EventID,
		Lifecycle:         domain.LifecycleActive,
	}
	if r.IsActive != nil && !*r.IsActive {
		rule.Lifecycle = domain.LifecycleInactive
	}
	return rule, nil
}

type CreateEventRequest struct {
	EventType string         `json:"event_type"`
	Name      string         `json:"name"`
	EventDate string         `json:"event_date"`
	Metadata  map[string]any `json:"metadata"`
}

func (r CreateEventRequest) ToEvent() (*domain.RecurrenceEvent, error) {
	d, err := parseDateField("event_date", r.EventDate)
	if err != nil {
		return nil, err
	}
	return &domain.RecurrenceEvent{
		EventType: strings.TrimSpace(r.EventType),
		Name:      strings.TrimSpace(r.Name),
		EventDate: d,
		Metadata:  r.Metadata,
		Lifecycle: domain.LifecycleActive,
	}, nil
}

type RecordIncrementRequest struct {
	RecordedOn string  `json:"recorded_on"`
	Amount     float64 `json:"amount"`
	Note       string  `json:"note"`
}

func (r RecordIncrementRequest) ToIncrement(subjectID string) (*domain.MeasurementIncrement, error) {
	m := &domain.MeasurementIncrement{SubjectID: subjectID, Amount: r.Amount, Note: r.Note}
	if r.RecordedOn != "" {
		d, err := parseDateField("recorded_on", r.RecordedOn)
		if err != nil {
			return nil, err
		}
		m.RecordedOn = d
	}
	return m, nil
}

// ParseRuleFilter builds a rule listing filter from query-style strings.
// is_active accepts "true" or "false"; empty values match everything.
func ParseRuleFilter(siteID, scheduleID, ruleType, isActive string) (repository.RuleFilter, error) {
	f := repository.RuleFilter{SiteID: siteID, ScheduleID: scheduleID}
	if ruleType != "" {
		rt := domain.RuleType(strings.ToUpper(ruleType))
		if !domain.ValidRuleTypes[rt] {
			return f, domain.NewValidationError("rule_type", "unrecognized rule type %q", ruleType)
		}
		f.RuleType = &rt
	}
	if isActive != "" {
		active, err := strconv.ParseBool(isActive)
		if err != nil {
			return f, domain.NewValidationError("is_active", "must be true or false")
		}
		l := domain.LifecycleInactive
		if active {
			l = domain.LifecycleActive
		}
		f.Lifecycle = &l
	}
	return f, nil
}

// ParseExecutionFilter builds a history filter. from and to accept a date
// (YYYY-MM-DD) or an RFC 3339 timestamp.
func ParseExecutionFilter(status, from, to, cursor, limit string) (domain.ExecutionFilter, error) {
	f := domain.ExecutionFilter{Cursor: cursor}
	if status != "" {
		st := domain.ExecutionStatus(strings.ToUpper(status))
		f.Status = &st
	}
	if from != "" {
		t, err := parseTimeBound("from", from)
		if err != nil {
			return f, err
		}
		f.From = &t
	}
	if to != "" {
		t, err := parseTimeBound("to", to)
		if err != nil {
			return f, err
		}
		f.To = &t
	}
	if limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil {
			return f, domain.NewValidationError("limit", "must be an integer")
		}
		f.Limit = n
	}
	return f, nil
}

func parseTimeBound(field, s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	return parseDateField(field, s)
}

func parseDateField(field, s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, domain.NewValidationError(field, "is required")
	}
	d, err := domain.ParseDate(s)
	if err != nil {
		return time.Time{}, domain.NewValidationError(field, "must be YYYY-MM-DD")
	}
	return d, nil
}

// ParseDeadlineStatus accepts PENDING, OVERDUE or COMPLETED in any case.
func ParseDeadlineStatus(s string) (domain.DeadlineStatus, error) {
	st := domain.DeadlineStatus(strings.ToUpper(strings.TrimSpace(s)))
	switch st {
	case domain.DeadlinePending, domain.DeadlineOverdue, domain.DeadlineCompleted:
		return st, nil
	}
	return "", domain.NewValidationError("status", "unrecognized deadline status %q", s)
}

// ParseOptionalDate returns the zero time for an empty string.
func ParseOptionalDate(field, s string) (time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return time.Time{}, nil
	}
	return parseDateField(field, s)
}
