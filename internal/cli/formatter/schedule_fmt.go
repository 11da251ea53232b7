package formatter

import (
	"fmt"
	"strings"
	"time"

	"github.com/alexanderramin/duecycle/internal/domain"
)

// FormatScheduleList renders schedules inside a bordered box.
func FormatScheduleList(schedules []*domain.Schedule, today time.Time) string {
	headers := []string{"ID", "OBLIGATION", "SITE", "FREQUENCY", "STATUS", "NEXT DUE", ""}
	rows := make([][]string, 0, len(schedules))
	for _, s := range schedules {
		due, rel := Dim("--"), ""
		if s.NextDueDate != nil {
			due = s.NextDueDate.Format(domain.DateLayout)
			if s.Status == domain.ScheduleActive {
				rel = RelativeDueStyled(*s.NextDueDate, today)
			}
		}
		rows = append(rows, []string{
			TruncID(s.ID),
			Bold(s.ObligationID),
			s.SiteID,
			string(s.Frequency),
			SchedulePill(s.Status),
			due,
			rel,
		})
	}
	return RenderBox("Schedules", RenderTable(headers, rows))
}

// FormatSchedule renders one schedule with its deadlines and audit trail.
func FormatSchedule(s *domain.Schedule, deadlines []*domain.Deadline, today time.Time) string {
	var b strings.Builder
	b.WriteString(kv("id", s.ID) + "\n")
	b.WriteString(kv("obligation", Bold(s.ObligationID)) + "\n")
	b.WriteString(kv("site", s.SiteID) + "\n")
	b.WriteString(kv("frequency", string(s.Frequency)) + "\n")
	b.WriteString(kv("status", SchedulePill(s.Status)) + "\n")
	b.WriteString(kv("base date", s.BaseDate.Format(domain.DateLayout)) + "\n")
	b.WriteString(kv("last completed", DateOrDash(s.LastCompletedDate)) + "\n")

	next := DateOrDash(s.NextDueDate)
	if s.NextDueDate != nil {
		next += "  " + RelativeDueStyled(*s.NextDueDate, today)
	}
	b.WriteString(kv("next due", next) + "\n")
	if s.AdjustForBusinessDays {
		b.WriteString(kv("business days", "rolled forward off weekends") + "\n")
	}
	if reminders := s.ReminderDates(); len(reminders) > 0 {
		dates := make([]string, 0, len(reminders))
		for _, r := range reminders {
			dates = append(dates, r.Format(domain.DateLayout))
		}
		b.WriteString(kv("reminders", strings.Join(dates, ", ")) + "\n")
	}
	b.WriteString(kv("modified", fmt.Sprintf("%s by %s", s.ModifiedAt.Format(time.RFC3339), s.ModifiedBy)) + "\n")

	if len(deadlines) > 0 {
		b.WriteString("\n" + Header("Deadlines") + "\n")
		b.WriteString(formatDeadlineRows(deadlines, today, false))
	}

	if len(s.PreviousValues) > 0 {
		b.WriteString("\n" + Header("History") + "\n")
		for i := len(s.PreviousValues) - 1; i >= 0; i-- {
			e := s.PreviousValues[i]
			b.WriteString(fmt.Sprintf("%s  %s\n", Bold(e.Action), auditSummary(e)))
		}
	}
	return RenderBox("Schedule", strings.TrimRight(b.String(), "\n"))
}

func auditSummary(e domain.ScheduleAuditEntry) string {
	parts := []string{string(e.Frequency), e.BaseDate, string(e.Status)}
	if e.AdjustForBusinessDays {
		parts = append(parts, "business days")
	}
	return Dim(fmt.Sprintf("was %s (set %s by %s)",
		strings.Join(parts, " · "), e.ModifiedAt.Format(domain.DateLayout), e.ModifiedBy))
}

// FormatDeadlineList renders deadlines across schedules.
func FormatDeadlineList(deadlines []*domain.Deadline, today time.Time) string {
	return RenderBox("Deadlines", formatDeadlineRows(deadlines, today, true))
}

func formatDeadlineRows(deadlines []*domain.Deadline, today time.Time, withSchedule bool) string {
	headers := []string{"ID", "PERIOD", "DUE", "STATUS", ""}
	if withSchedule {
		headers = append([]string{"SCHEDULE"}, headers...)
	}
	rows := make([][]string, 0, len(deadlines))
	for _, d := range deadlines {
		note := ""
		switch {
		case d.CompletedAt != nil:
			note = Dim("completed " + d.CompletedAt.Format(domain.DateLayout))
		case d.Status != domain.DeadlineCompleted:
			note = RelativeDueStyled(d.DueDate, today)
		}
		row := []string{TruncID(d.ID), d.CompliancePeriod, d.DueDate.Format(domain.DateLayout), DeadlinePill(d), note}
		if withSchedule {
			row = append([]string{TruncID(d.ScheduleID)}, row...)
		}
		rows = append(rows, row)
	}
	return RenderTable(headers, rows)
}

// FormatEventList renders recurrence events.
func FormatEventList(events []*domain.RecurrenceEvent) string {
	headers := []string{"ID", "TYPE", "NAME", "DATE", "LIFECYCLE"}
	rows := make([][]string, 0, len(events))
	for _, e := range events {
		lifecycle := StyleGreen.Render(string(e.Lifecycle))
		if !e.IsActive() {
			lifecycle = Dim(string(e.Lifecycle))
		}
		rows = append(rows, []string{
			TruncID(e.ID),
			StylePurple.Render(e.EventType),
			Bold(e.Name),
			e.EventDate.Format(domain.DateLayout),
			lifecycle,
		})
	}
	return RenderBox("Events", RenderTable(headers, rows))
}
