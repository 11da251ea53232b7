package formatter

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/alexanderramin/duecycle/internal/domain"
	"github.com/alexanderramin/duecycle/internal/metrics"
	"github.com/alexanderramin/duecycle/internal/service"
)

func FormatRuleList(rules []*domain.TriggerRule) string {
	headers := []string{"ID", "SCHEDULE", "TYPE", "ACTIVE", "NEXT EXECUTION", "RUNS"}
	rows := make([][]string, 0, len(rules))
	for _, r := range rules {
		active := StyleGreen.Render("yes")
		if !r.IsActive() {
			active = Dim("no")
		}
		rows = append(rows, []string{
			TruncID(r.ID),
			TruncID(r.ScheduleID),
			StylePurple.Render(string(r.RuleType)),
			active,
			DateOrDash(r.NextExecutionDate),
			fmt.Sprintf("%d", r.ExecutionCount),
		})
	}
	table := Table{Headers: headers, Rows: rows, RightAlign: map[int]bool{5: true}}
	return RenderBox("Trigger Rules", table.Render())
}

// FormatRuleDetail renders a rule, its schedule and event, and its latest
// execution.
func FormatRuleDetail(d *service.RuleDetail) string {
	r := d.Rule
	var b strings.Builder
	b.WriteString(kv("id", r.ID) + "\n")
	b.WriteString(kv("state", RuleStateBadge(d.State)) + "\n")
	b.WriteString(kv("type", StylePurple.Render(string(r.RuleType))) + "\n")
	if cfg, err := domain.MarshalRuleConfig(r.Config); err == nil {
		b.WriteString(kv("config", string(cfg)) + "\n")
	}
	if r.TriggerExpression != "" {
		b.WriteString(kv("expression", StyleBlue.Render(r.TriggerExpression)) + "\n")
	}
	b.WriteString(kv("next execution", DateOrDash(r.NextExecutionDate)) + "\n")
	last := Dim("--")
	if r.LastExecutedAt != nil {
		last = r.LastExecutedAt.Format(time.RFC3339)
	}
	b.WriteString(kv("last executed", last) + "\n")
	b.WriteString(kv("executions", fmt.Sprintf("%d", r.ExecutionCount)) + "\n")

	if s := d.Schedule; s != nil {
		b.WriteString("\n" + Header("Schedule") + "\n")
		b.WriteString(kv("id", s.ID) + "\n")
		b.WriteString(kv("obligation", Bold(s.ObligationID)+Dim(" @ "+s.SiteID)) + "\n")
		b.WriteString(kv("frequency", string(s.Frequency)+"  "+SchedulePill(s.Status)) + "\n")
		b.WriteString(kv("next due", DateOrDash(s.NextDueDate)) + "\n")
	}

	switch {
	case d.Event != nil:
		e := d.Event
		b.WriteString("\n" + Header("Event") + "\n")
		b.WriteString(kv("name", Bold(e.Name)+Dim(" ("+e.EventType+")")) + "\n")
		b.WriteString(kv("date", e.EventDate.Format(domain.DateLayout)) + "\n")
		b.WriteString(kv("lifecycle", string(e.Lifecycle)) + "\n")
	case r.EventID != nil:
		b.WriteString("\n" + kv("event", StyleRed.Render(*r.EventID+" (missing)")) + "\n")
	}

	if d.Latest != nil {
		b.WriteString("\n" + Header("Latest Execution") + "\n")
		b.WriteString(formatExecution(d.Latest))
	}
	if d.Stats != nil && d.Stats.TotalExecutions > 0 {
		b.WriteString("\n" + formatStats(d.Stats) + "\n")
	}
	return RenderBox("Trigger Rule", strings.TrimRight(b.String(), "\n"))
}

func formatExecution(l *domain.TriggerExecutionLog) string {
	var b strings.Builder
	b.WriteString(kv("at", l.ExecutedAt.Format(time.RFC3339)) + "  " + ExecutionStatusBadge(l.Status) + "\n")
	if l.ErrorMessage != nil {
		b.WriteString(kv("error", StyleRed.Render(*l.ErrorMessage)) + "\n")
	}
	if len(l.Result) > 0 {
		b.WriteString(kv("result", compactJSON(l.Result)) + "\n")
	}
	return b.String()
}

func formatStats(s *domain.ExecutionStats) string {
	return Dim(fmt.Sprintf("%d runs · %d ok · %d failed · avg %dms",
		s.TotalExecutions, s.SuccessCount, s.FailureCount, s.AvgExecutionTimeMS))
}

// FormatHistory renders one page of execution logs with the rule's totals.
func FormatHistory(page *domain.ExecutionPage, stats *domain.ExecutionStats) string {
	headers := []string{"EXECUTED", "STATUS", "MS", "RESULT"}
	rows := make([][]string, 0, len(page.Items))
	for _, l := range page.Items {
		result := compactJSON(l.Result)
		if l.ErrorMessage != nil {
			result = StyleRed.Render(*l.ErrorMessage)
		}
		rows = append(rows, []string{
			l.ExecutedAt.Format(time.RFC3339),
			ExecutionStatusBadge(l.Status),
			fmt.Sprintf("%d", l.DurationMS),
			result,
		})
	}
	var b strings.Builder
	b.WriteString(Table{Headers: headers, Rows: rows, RightAlign: map[int]bool{2: true}}.Render())
	if stats != nil {
		b.WriteString("\n" + formatStats(stats))
	}
	if page.NextCursor != "" {
		b.WriteString("\n" + Dim("more: --cursor "+page.NextCursor))
	}
	return RenderBox("Execution History", b.String())
}

// FormatValidationReport lists issues under the report's overall status.
func FormatValidationReport(rep domain.ValidationReport) string {
	var b strings.Builder
	switch rep.Status() {
	case domain.ReportValid:
		b.WriteString(StyleGreen.Render("✔ VALID"))
	case domain.ReportWarnings:
		b.WriteString(StyleYellow.Render("▲ VALID WITH WARNINGS"))
	default:
		b.WriteString(StyleRed.Render("✖ INVALID"))
	}
	for _, iss := range rep.Issues {
		marker := StyleYellow.Render("  warning")
		if iss.Severity == domain.SeverityError {
			marker = StyleRed.Render("  error  ")
		}
		field := ""
		if iss.Field != "" {
			field = Bold(iss.Field) + ": "
		}
		b.WriteString("\n" + marker + " " + field + iss.Message)
	}
	return b.String()
}

// FormatEvaluation renders a single evaluation result on one line.
func FormatEvaluation(r service.EvaluationResult) string {
	parts := []string{TruncID(r.RuleID), OutcomeBadge(r.Outcome)}
	if r.Date != nil {
		parts = append(parts, r.Date.Format(domain.DateLayout))
	}
	if r.DeadlineID != "" {
		parts = append(parts, Dim("deadline "+r.DeadlineID))
	}
	if r.Reason != nil {
		parts = append(parts, Dim(r.Reason.Error()))
	}
	if r.Err != nil {
		parts = append(parts, StyleRed.Render(r.Err.Error()))
	}
	return strings.Join(parts, "  ")
}

// FormatBatch renders an evaluation pass summary followed by every
// non-trivial result.
func FormatBatch(b *service.BatchResult) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s fired · %s not fired · %s duplicate · %s dormant · %s failed · %s skipped",
		StyleGreen.Render(fmt.Sprint(b.Fired)),
		fmt.Sprint(b.NotFired),
		StylePurple.Render(fmt.Sprint(b.Duplicates)),
		Dim(fmt.Sprint(b.Dormant)),
		StyleRed.Render(fmt.Sprint(b.Failed)),
		Dim(fmt.Sprint(b.Skipped)),
	))
	sb.WriteString(Dim(fmt.Sprintf("  (%s)", b.Duration.Round(time.Millisecond))))
	for _, r := range b.Results {
		if r.Outcome == metrics.OutcomeNotFired {
			continue
		}
		sb.WriteString("\n" + FormatEvaluation(r))
	}
	return RenderBox("Evaluation Pass", sb.String())
}

func compactJSON(v map[string]any) string {
	if len(v) == 0 {
		return Dim("{}")
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return Dim("?")
	}
	return string(raw)
}
