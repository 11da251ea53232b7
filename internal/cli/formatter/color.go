package formatter

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/alexanderramin/duecycle/internal/domain"
	"github.com/alexanderramin/duecycle/internal/metrics"
)

// Gruvbox-inspired color palette.
var (
	ColorGreen  = lipgloss.Color("#8ec07c")
	ColorYellow = lipgloss.Color("#fabd2f")
	ColorRed    = lipgloss.Color("#fb4934")
	ColorBlue   = lipgloss.Color("#83a598")
	ColorPurple = lipgloss.Color("#d3869b")
	ColorDim    = lipgloss.Color("#928374")
	ColorFg     = lipgloss.Color("#ebdbb2")
	ColorHeader = lipgloss.Color("#fe8019")
)

var (
	StyleGreen  = lipgloss.NewStyle().Foreground(ColorGreen)
	StyleYellow = lipgloss.NewStyle().Foreground(ColorYellow)
	StyleRed    = lipgloss.NewStyle().Foreground(ColorRed)
	StyleBlue   = lipgloss.NewStyle().Foreground(ColorBlue)
	StylePurple = lipgloss.NewStyle().Foreground(ColorPurple)
	StyleDim    = lipgloss.NewStyle().Foreground(ColorDim)
	StyleFg     = lipgloss.NewStyle().Foreground(ColorFg)
	StyleHeader = lipgloss.NewStyle().Foreground(ColorHeader).Bold(true)
	StyleBold   = lipgloss.NewStyle().Foreground(ColorFg).Bold(true)
)

// SchedulePill returns a colored indicator for a schedule status.
func SchedulePill(status domain.ScheduleStatus) string {
	switch status {
	case domain.ScheduleActive:
		return StyleGreen.Render("● Active")
	case domain.SchedulePaused:
		return StyleYellow.Render("○ Paused")
	case domain.ScheduleArchived:
		return StyleDim.Render("✖ Archived")
	default:
		return StyleDim.Render(string(status))
	}
}

// DeadlinePill colors a deadline by status; completed deadlines show
// whether they were late.
func DeadlinePill(d *domain.Deadline) string {
	switch d.Status {
	case domain.DeadlinePending:
		return StyleBlue.Render("○ Pending")
	case domain.DeadlineOverdue:
		return StyleRed.Render("▲ Overdue")
	case domain.DeadlineCompleted:
		if d.IsLate != nil && *d.IsLate {
			return StyleYellow.Render("✔ Done late")
		}
		return StyleGreen.Render("✔ Done")
	default:
		return StyleDim.Render(string(d.Status))
	}
}

func RuleStateBadge(state domain.RuleState) string {
	switch state {
	case domain.RuleStateHealthy:
		return StyleGreen.Render("● SCHEDULED")
	case domain.RuleStateDormant:
		return StyleBlue.Render("◌ DORMANT")
	case domain.RuleStateFailing:
		return StyleRed.Render("▲ FAILING")
	case domain.RuleStateInactive:
		return StyleDim.Render("✖ INACTIVE")
	default:
		return StyleDim.Render(string(state))
	}
}

// OutcomeBadge renders an evaluation outcome label.
func OutcomeBadge(outcome string) string {
	switch outcome {
	case metrics.OutcomeFired:
		return StyleGreen.Render("fired")
	case metrics.OutcomeDuplicate:
		return StylePurple.Render("duplicate")
	case metrics.OutcomeFailed:
		return StyleRed.Render("failed")
	case metrics.OutcomeDormant, metrics.OutcomeSkipped:
		return StyleDim.Render(outcome)
	default:
		return StyleFg.Render(outcome)
	}
}

func ExecutionStatusBadge(status domain.ExecutionStatus) string {
	if status == domain.ExecutionFailed {
		return StyleRed.Render("✖ FAILED")
	}
	return StyleGreen.Render("✔ SUCCESS")
}

// Header renders a section header with the orange header style and an underline.
func Header(text string) string {
	upper := strings.ToUpper(text)
	line := strings.Repeat("─", len(upper))
	return fmt.Sprintf("%s\n%s", StyleHeader.Render(upper), StyleDim.Render(line))
}

func Dim(text string) string {
	return StyleDim.Render(text)
}

func Bold(text string) string {
	return StyleBold.Render(text)
}
