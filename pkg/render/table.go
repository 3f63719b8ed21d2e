package render

import (
	"strings"

	"charm.land/lipgloss/v2"
	"charm.land/lipgloss/v2/table"

	"github.com/docker/mdstream/pkg/styles"
	"github.com/docker/mdstream/pkg/token"
)

type tableCell struct {
	rendered string
	width    int // visual width (excluding ANSI codes)
}

// renderTable draws a table either with a lipgloss table (bordered, cells
// wrapped to fit) or as an aligned pipe layout.
func renderTable(th *styles.Theme, t token.Token, width int, advanced bool) string {
	tbl := t.Table
	if tbl == nil || tbl.Columns() == 0 {
		return inlineMarkdown(th, t.Content)
	}

	cols := tbl.Columns()
	header := renderRow(th, tbl.Header, cols)
	rows := make([][]tableCell, len(tbl.Rows))
	for i, r := range tbl.Rows {
		rows[i] = renderRow(th, r, cols)
	}

	if advanced {
		return lipglossTable(th, tbl, header, rows, width)
	}
	return pipeTable(th, tbl, header, rows, width)
}

func renderRow(th *styles.Theme, cells []string, cols int) []tableCell {
	out := make([]tableCell, cols)
	for i := range cols {
		if i < len(cells) {
			rendered := inlineMarkdown(th, cells[i])
			out[i] = tableCell{rendered: rendered, width: lipgloss.Width(rendered)}
		}
	}
	return out
}

func lipglossTable(th *styles.Theme, tbl *token.Table, header []tableCell, rows [][]tableCell, width int) string {
	texts := func(cells []tableCell) []string {
		out := make([]string, len(cells))
		for i, c := range cells {
			out[i] = c.rendered
		}
		return out
	}

	lt := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(th.TableBorder).
		Headers(texts(header)...).
		StyleFunc(func(row, col int) lipgloss.Style {
			style := th.TableCell
			if row == table.HeaderRow {
				style = th.TableHeader
			}
			return style.Align(position(alignmentAt(tbl, col)))
		})
	for _, r := range rows {
		lt.Row(texts(r)...)
	}

	out := lt.String()
	if lipgloss.Width(out) > width {
		out = lt.Width(width).Wrap(true).String()
	}
	return out
}

func pipeTable(th *styles.Theme, tbl *token.Table, header []tableCell, rows [][]tableCell, width int) string {
	cols := len(header)
	colWidths := make([]int, cols)
	for _, row := range append([][]tableCell{header}, rows...) {
		for i, cell := range row {
			colWidths[i] = max(colWidths[i], cell.width)
		}
	}

	var sep strings.Builder
	for i, w := range colWidths {
		sep.WriteString(strings.Repeat("─", w))
		if i < cols-1 {
			sep.WriteString("─┼─")
		}
	}

	var out strings.Builder
	writeRow := func(row []tableCell, bold bool) {
		var line strings.Builder
		for i, cell := range row {
			text := cell.rendered
			if bold {
				text = th.Bold.Render(text)
			}
			line.WriteString(align(text, cell.width, colWidths[i], alignmentAt(tbl, i)))
			if i < cols-1 {
				line.WriteString(th.TableBorder.Render(" │ "))
			}
		}
		out.WriteString(truncate(strings.TrimRight(line.String(), " "), width))
	}

	writeRow(header, true)
	out.WriteByte('\n')
	out.WriteString(th.TableBorder.Render(truncate(sep.String(), width)))
	for _, r := range rows {
		out.WriteByte('\n')
		writeRow(r, false)
	}
	return out.String()
}

func alignmentAt(tbl *token.Table, col int) token.Alignment {
	if col < len(tbl.Align) {
		return tbl.Align[col]
	}
	return token.AlignNone
}

func position(a token.Alignment) lipgloss.Position {
	switch a {
	case token.AlignCenter:
		return lipgloss.Center
	case token.AlignRight:
		return lipgloss.Right
	default:
		return lipgloss.Left
	}
}

// align pads text of visual width w to colWidth.
func align(text string, w, colWidth int, a token.Alignment) string {
	pad := max(colWidth-w, 0)
	switch a {
	case token.AlignRight:
		return strings.Repeat(" ", pad) + text
	case token.AlignCenter:
		left := pad / 2
		return strings.Repeat(" ", left) + text + strings.Repeat(" ", pad-left)
	default:
		return text + strings.Repeat(" ", pad)
	}
}
