package formatter

import (
	"strings"

	"github.com/alexanderramin/duecycle/internal/domain"
	"github.com/alexanderramin/duecycle/internal/service"
)

// FormatTotals renders a subject's annual and monthly running totals.
func FormatTotals(t *service.SubjectTotals) string {
	headers := []string{"WINDOW", "FROM", "TO", "TOTAL", "LIMIT", "USED"}
	rows := [][]string{windowRow(t.Annual), windowRow(t.Monthly)}
	table := Table{Headers: headers, Rows: rows, RightAlign: map[int]bool{3: true, 4: true, 5: true}}

	var b strings.Builder
	b.WriteString(kv("subject", Bold(t.SubjectID)) + "\n")
	b.WriteString(kv("as of", t.ObservedOn.Format(domain.DateLayout)) + "\n")
	b.WriteString(kv("anniversary", t.Anniversary.Format(domain.DateLayout)) + "\n\n")
	b.WriteString(table.Render())
	return RenderBox("Running Totals", strings.TrimRight(b.String(), "\n"))
}

func windowRow(w service.WindowTotal) []string {
	limit, used := Dim("--"), Dim("--")
	if w.Usage.Configured {
		limit = Amount(w.Limit)
		used = Percent(w.Usage.Percent)
	}
	return []string{
		string(w.Granularity),
		w.Window.Start.Format(domain.DateLayout),
		// Windows are half-open; show the last day included.
		w.Window.End.AddDate(0, 0, -1).Format(domain.DateLayout),
		Amount(w.Total),
		limit,
		used,
	}
}
