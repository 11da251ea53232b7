package domain

import (
	"fmt"
	"time"
)

type Deadline struct {
	ID               string
	ScheduleID       string
	DueDate          time.Time
	Status           DeadlineStatus
	CompliancePeriod string

	// IsLate is nil until completion and never changes afterwards.
	IsLate      *bool
	CompletedAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewDeadline builds a PENDING deadline for a schedule's computed due date.
func NewDeadline(id string, s *Schedule, due time.Time, now time.Time) *Deadline {
	due = Civil(due)
	return &Deadline{
		ID:               id,
		ScheduleID:       s.ID,
		DueDate:          due,
		Status:           DeadlinePending,
		CompliancePeriod: CompliancePeriodLabel(s.Frequency, due),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// MarkOverdue flips a PENDING deadline to OVERDUE once its due date has
// passed. It reports whether the status changed.
func (d *Deadline) MarkOverdue(now time.Time) bool {
	if d.Status != DeadlinePending {
		return false
	}
	if !d.DueDate.Before(Civil(now)) {
		return false
	}
	d.Status = DeadlineOverdue
	d.UpdatedAt = now
	return true
}

// Reschedule moves an open deadline to the cycle's new due date and
// relabels its compliance period. Only PENDING deadlines move; it reports
// whether anything changed.
func (d *Deadline) Reschedule(s *Schedule, due time.Time, now time.Time) bool {
	due = Civil(due)
	if d.Status != DeadlinePending || d.DueDate.Equal(due) {
		return false
	}
	d.DueDate = due
	d.CompliancePeriod = CompliancePeriodLabel(s.Frequency, due)
	d.UpdatedAt = now
	return true
}

// Complete records the completion signal. IsLate is fixed at this
// transition; completing twice is a no-op that reports false.
func (d *Deadline) Complete(at time.Time, now time.Time) bool {
	if d.Status == DeadlineCompleted {
		return false
	}
	late := Civil(at).After(d.DueDate)
	d.IsLate = &late
	d.CompletedAt = &at
	d.Status = DeadlineCompleted
	d.UpdatedAt = now
	return true
}

// CompliancePeriodLabel names the reporting period a due date belongs to.
func CompliancePeriodLabel(f Frequency, due time.Time) string {
	switch f {
	case FrequencyWeekly:
		y, w := due.ISOWeek()
		return fmt.Sprintf("%04d-W%02d", y, w)
	case FrequencyMonthly:
		return due.Format("2006-01")
	case FrequencyQuarterly:
		q := (int(due.Month())-1)/3 + 1
		return fmt.Sprintf("%04d-Q%d", due.Year(), q)
	case FrequencyAnnual:
		return fmt.Sprintf("%04d", due.Year())
	default:
		return due.Format(DateLayout)
	}
}
