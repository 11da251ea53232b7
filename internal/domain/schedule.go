package domain

import (
	"sort"
	"strings"
	"time"
)

type Schedule struct {
	ID           string
	ObligationID string
	SiteID       string
	Frequency    Frequency
	BaseDate     time.Time

	NextDueDate       *time.Time
	LastCompletedDate *time.Time

	Status                ScheduleStatus
	AdjustForBusinessDays bool
	ReminderOffsets       []int // days before the due date

	PreviousValues []ScheduleAuditEntry
	ModifiedBy     string
	ModifiedAt     time.Time
	CreatedAt      time.Time
}

// ScheduleAuditEntry snapshots the fields a mutation is about to overwrite.
type ScheduleAuditEntry struct {
	Action                string         `json:"action"`
	Frequency             Frequency      `json:"frequency"`
	BaseDate              string         `json:"base_date"`
	AdjustForBusinessDays bool           `json:"adjust_for_business_days"`
	Status                ScheduleStatus `json:"status"`
	ModifiedAt            time.Time      `json:"modified_at"`
	ModifiedBy            string         `json:"modified_by"`
}

const (
	AuditActionUpdate  = "update"
	AuditActionArchive = "archive"
)

// SchedulePatch carries the optional fields of a schedule update.
// A nil field means "leave unchanged".
type SchedulePatch struct {
	Frequency             *Frequency
	BaseDate              *time.Time
	AdjustForBusinessDays *bool
	ReminderOffsets       []int
	Status                *ScheduleStatus
}

// TouchesRecurrence reports whether the patch changes an input of the
// next-due-date computation.
func (p SchedulePatch) TouchesRecurrence() bool {
	return p.Frequency != nil || p.BaseDate != nil || p.AdjustForBusinessDays != nil
}

func (p SchedulePatch) IsEmpty() bool {
	return !p.TouchesRecurrence() && p.ReminderOffsets == nil && p.Status == nil
}

func (s *Schedule) Validate() error {
	if strings.TrimSpace(s.ObligationID) == "" {
		return NewValidationError("obligation_id", "is required")
	}
	if !ValidFrequencies[s.Frequency] {
		return NewValidationError("frequency", "unrecognized frequency %q", s.Frequency)
	}
	if s.BaseDate.IsZero() {
		return NewValidationError("base_date", "is required")
	}
	if err := validateReminderOffsets(s.ReminderOffsets); err != nil {
		return err
	}
	switch s.Status {
	case ScheduleActive, SchedulePaused, ScheduleArchived:
	default:
		return NewValidationError("status", "unrecognized status %q", s.Status)
	}
	return nil
}

func validateReminderOffsets(offsets []int) error {
	for _, o := range offsets {
		if o < 0 {
			return NewValidationError("reminder_offsets", "offset %d must be >= 0", o)
		}
	}
	return nil
}

// Validate checks the patch shape without looking at the target schedule.
func (p SchedulePatch) Validate() error {
	if p.Frequency != nil && !ValidFrequencies[*p.Frequency] {
		return NewValidationError("frequency", "unrecognized frequency %q", *p.Frequency)
	}
	if p.BaseDate != nil && p.BaseDate.IsZero() {
		return NewValidationError("base_date", "must not be empty")
	}
	if p.Status != nil && *p.Status != ScheduleActive && *p.Status != SchedulePaused {
		return NewValidationError("status", "can only be set to ACTIVE or PAUSED (use archive)")
	}
	return validateReminderOffsets(p.ReminderOffsets)
}

func (s *Schedule) snapshot(action, actor string, now time.Time) ScheduleAuditEntry {
	return ScheduleAuditEntry{
		Action:                action,
		Frequency:             s.Frequency,
		BaseDate:              s.BaseDate.Format(DateLayout),
		AdjustForBusinessDays: s.AdjustForBusinessDays,
		Status:                s.Status,
		ModifiedAt:            now,
		ModifiedBy:            actor,
	}
}

// ApplyPatch mutates the schedule in place. The prior recurrence fields are
// appended to PreviousValues before being overwritten. The returned bool
// tells the caller that NextDueDate must be recomputed.
func (s *Schedule) ApplyPatch(p SchedulePatch, actor string, now time.Time) (bool, error) {
	if s.Status == ScheduleArchived {
		return false, NewValidationError("status", "schedule %s is archived", s.ID)
	}
	if err := p.Validate(); err != nil {
		return false, err
	}

	recompute := p.TouchesRecurrence()
	if recompute {
		s.PreviousValues = append(s.PreviousValues, s.snapshot(AuditActionUpdate, actor, now))
	}
	if p.Frequency != nil {
		s.Frequency = *p.Frequency
	}
	if p.BaseDate != nil {
		s.BaseDate = Civil(*p.BaseDate)
	}
	if p.AdjustForBusinessDays != nil {
		s.AdjustForBusinessDays = *p.AdjustForBusinessDays
	}
	if p.ReminderOffsets != nil {
		s.ReminderOffsets = append([]int(nil), p.ReminderOffsets...)
	}
	if p.Status != nil {
		s.Status = *p.Status
	}
	s.ModifiedBy = actor
	s.ModifiedAt = now
	return recompute, nil
}

// Archive moves the schedule to its terminal state. It returns false when the
// schedule was already archived, in which case nothing changes.
func (s *Schedule) Archive(actor string, now time.Time) bool {
	if s.Status == ScheduleArchived {
		return false
	}
	s.PreviousValues = append(s.PreviousValues, s.snapshot(AuditActionArchive, actor, now))
	s.Status = ScheduleArchived
	s.ModifiedBy = actor
	s.ModifiedAt = now
	return true
}

// RecordCompletion moves LastCompletedDate forward; an older completion
// never rewinds it.
func (s *Schedule) RecordCompletion(completedOn time.Time) {
	c := Civil(completedOn)
	if s.LastCompletedDate == nil || c.After(*s.LastCompletedDate) {
		s.LastCompletedDate = &c
	}
}

// ReminderDates returns due-minus-offset dates, earliest first.
func (s *Schedule) ReminderDates() []time.Time {
	if s.NextDueDate == nil || len(s.ReminderOffsets) == 0 {
		return nil
	}
	dates := make([]time.Time, 0, len(s.ReminderOffsets))
	for _, o := range s.ReminderOffsets {
		dates = append(dates, s.NextDueDate.AddDate(0, 0, -o))
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates
}
