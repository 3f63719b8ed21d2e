package render

import (
	"strings"

	"github.com/charmbracelet/x/ansi"
	"github.com/mattn/go-runewidth"
)

const tabWidth = 4

// wrap word-wraps styled text to width, breaking words that do not fit on
// a line of their own. Existing line breaks are kept.
func wrap(s string, width int) string {
	if width <= 0 || s == "" {
		return s
	}
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		if ansi.StringWidth(l) > width {
			lines[i] = ansi.Wrap(l, width, "-")
		}
	}
	return strings.Join(lines, "\n")
}

// indent prefixes every line of s. The first line gets first, the others
// rest, which gives hanging indents for list markers.
func indent(s, first, rest string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		if i == 0 {
			lines[i] = first + l
		} else {
			lines[i] = rest + l
		}
	}
	return strings.Join(lines, "\n")
}

// expandTabs replaces tabs with spaces based on current position
func expandTabs(s string, currentWidth int) string {
	if !strings.Contains(s, "\t") {
		return s
	}
	var result strings.Builder
	width := currentWidth
	for _, r := range s {
		switch r {
		case '\t':
			spaces := tabWidth - (width % tabWidth)
			result.WriteString(strings.Repeat(" ", spaces))
			width += spaces
		case '\n':
			result.WriteRune(r)
			width = 0
		default:
			result.WriteRune(r)
			width += runewidth.RuneWidth(r)
		}
	}
	return result.String()
}

// padLines pads each line to the target width with trailing spaces.
func padLines(s string, width int) string {
	if width <= 0 {
		return s
	}
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		if w := ansi.StringWidth(l); w < width {
			lines[i] = l + strings.Repeat(" ", width-w)
		}
	}
	return strings.Join(lines, "\n")
}

// truncate shortens styled text to width cells.
func truncate(s string, width int) string {
	if ansi.StringWidth(s) <= width {
		return s
	}
	return ansi.Truncate(s, width, "…")
}
