package formatter

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

const colGap = 2

// Table is an aligned text table. Widths are measured on visible text so
// styled cells line up.
type Table struct {
	Headers []string
	Rows    [][]string
	// RightAlign lists column indexes padded on the left, for numbers.
	RightAlign map[int]bool
}

// RenderTable renders headers and rows with every column left-aligned.
func RenderTable(headers []string, rows [][]string) string {
	return Table{Headers: headers, Rows: rows}.Render()
}

func (t Table) Render() string {
	cols := len(t.Headers)
	if cols == 0 {
		return ""
	}

	widths := make([]int, cols)
	for i, h := range t.Headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range t.Rows {
		for i := 0; i < cols && i < len(row); i++ {
			widths[i] = max(widths[i], lipgloss.Width(row[i]))
		}
	}

	var b strings.Builder
	styled := make([]string, cols)
	for i, h := range t.Headers {
		styled[i] = StyleHeader.Render(h)
	}
	t.writeRow(&b, styled, widths)

	for i, w := range widths {
		b.WriteString(StyleDim.Render(strings.Repeat("─", w)))
		if i < cols-1 {
			b.WriteString(strings.Repeat(" ", colGap))
		}
	}
	b.WriteString("\n")

	for _, row := range t.Rows {
		t.writeRow(&b, row, widths)
	}
	return b.String()
}

func (t Table) writeRow(b *strings.Builder, row []string, widths []int) {
	cols := len(widths)
	for i := 0; i < cols; i++ {
		cell := ""
		if i < len(row) {
			cell = row[i]
		}
		pad := max(widths[i]-lipgloss.Width(cell), 0)
		last := i == cols-1
		switch {
		case t.RightAlign[i]:
			b.WriteString(strings.Repeat(" ", pad))
			b.WriteString(cell)
		case last:
			b.WriteString(cell)
		default:
			b.WriteString(cell)
			b.WriteString(strings.Repeat(" ", pad))
		}
		if !last {
			b.WriteString(strings.Repeat(" ", colGap))
		}
	}
	b.WriteString("\n")
}
