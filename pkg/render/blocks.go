package render

import (
	"strconv"
	"strings"

	"github.com/docker/mdstream/pkg/styles"
	"github.com/docker/mdstream/pkg/token"
)

func renderHeading(th *styles.Theme, t token.Token, width int) string {
	style, prefix := th.Heading(t.Depth)
	text := wrap(prefix+inlineMarkdown(th, t.Content), width)
	return style.Render(text)
}

func renderRule(th *styles.Theme, width int) string {
	return th.HorizontalRule.Render(strings.Repeat(th.HorizontalRuleCh, width))
}

func renderBlockquote(th *styles.Theme, t token.Token, width int) string {
	depth := max(t.Depth, 1)
	bar := th.Blockquote.Render(strings.TrimRight(th.QuoteToken, " ")) + " "
	prefix := strings.Repeat(bar, depth)
	inner := max(width-depth*2, 1)

	text := th.Blockquote.Render(wrap(inlineMarkdown(th, t.Content), inner))
	return indent(text, prefix, prefix)
}

func renderListItem(th *styles.Theme, t token.Token, width int) string {
	depth := max(t.Depth, 1)
	lead := strings.Repeat(" ", (depth-1)*max(th.ListIndent, 2))

	content := t.Content
	var marker string
	switch {
	case strings.HasPrefix(content, "[x] "), strings.HasPrefix(content, "[X] "):
		marker, content = th.TaskTicked, content[4:]
	case strings.HasPrefix(content, "[ ] "):
		marker, content = th.TaskUnticked, content[4:]
	case t.Ordered:
		marker = strconv.Itoa(t.Index) + ". "
	case th.Bullet != "":
		marker = th.Bullet + " "
	default:
		marker = "• "
	}
	marker = strings.TrimRight(marker, " ") + " "

	hang := strings.Repeat(" ", len([]rune(marker)))
	inner := max(width-len(lead)-len(hang), 1)
	text := wrap(inlineMarkdown(th, content), inner)
	return indent(text, lead+th.ListMarker.Render(marker), lead+hang)
}

// renderCode draws a code block inside a rounded box with the language on
// the line above. Lines are padded so the box has the full width.
func renderCode(th *styles.Theme, t token.Token, width int, hl Highlighter) string {
	code := strings.TrimRight(expandTabs(t.Content, 0), "\n")
	if hl != nil && code != "" {
		code = hl.Highlight(code, t.Language)
	}

	// rounded border plus a padding of one on each side
	inner := max(width-4, 1)
	lines := strings.Split(code, "\n")
	for i, l := range lines {
		lines[i] = truncate(l, inner)
	}
	body := padLines(strings.Join(lines, "\n"), inner)

	name := t.Language
	if name == "" {
		name = "code"
	}
	return label(th, name, t.Incomplete) + "\n" + th.CodeBlock.Render(body)
}
