package formatter

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/alexanderramin/duecycle/internal/domain"
)

// RenderBox wraps content in a rounded-border box with an optional title.
func RenderBox(title string, content string) string {
	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorDim).
		PaddingLeft(2).
		PaddingRight(2).
		PaddingTop(1).
		PaddingBottom(1)

	if title != "" {
		return boxStyle.Render(StyleHeader.Render(strings.ToUpper(title)) + "\n\n" + content)
	}
	return boxStyle.Render(content)
}

// RelativeDue describes a civil due date relative to today.
func RelativeDue(due, today time.Time) string {
	days := domain.DaysBetween(domain.Civil(today), domain.Civil(due))

	switch {
	case days == 0:
		return "Today"
	case days == 1:
		return "Tomorrow"
	case days == -1:
		return "Yesterday"
	case days > 0 && days < 14:
		return fmt.Sprintf("In %dd", days)
	case days > 0 && days < 60:
		return fmt.Sprintf("In %dw", days/7)
	case days > 0:
		return fmt.Sprintf("In %dmo", days/30)
	default:
		return fmt.Sprintf("%dd overdue", -days)
	}
}

// RelativeDueStyled colors RelativeDue by urgency.
func RelativeDueStyled(due, today time.Time) string {
	text := RelativeDue(due, today)
	days := domain.DaysBetween(domain.Civil(today), domain.Civil(due))
	switch {
	case days <= 2:
		return StyleRed.Render(text)
	case days <= 7:
		return StyleYellow.Render(text)
	default:
		return StyleFg.Render(text)
	}
}

// DateOrDash formats a civil date, or a dimmed "--" for nil.
func DateOrDash(t *time.Time) string {
	if t == nil {
		return Dim("--")
	}
	return t.Format(domain.DateLayout)
}

// TruncID returns the first 8 characters of an ID, dimmed.
func TruncID(id string) string {
	if len(id) > 8 {
		id = id[:8]
	}
	return StyleDim.Render(id)
}

// Amount prints a measurement without trailing zeros.
func Amount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Percent renders a limit usage, red once the limit is reached.
func Percent(p float64) string {
	text := fmt.Sprintf("%.1f%%", p)
	switch {
	case p >= 100:
		return StyleRed.Render(text)
	case p >= 80:
		return StyleYellow.Render(text)
	default:
		return StyleGreen.Render(text)
	}
}

func kv(key, value string) string {
	return fmt.Sprintf("%s %s", Dim(fmt.Sprintf("%-18s", key)), value)
}
