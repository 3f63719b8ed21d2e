package parser

import (
	"strconv"
	"strings"

	"github.com/yuin/goldmark/ast"
	extast "github.com/yuin/goldmark/extension/ast"

	"github.com/docker/mdstream/pkg/token"
)

// frame is a pending block node with the nesting it was found at.
type frame struct {
	node       ast.Node
	listDepth  int
	quoteDepth int
	ordered    bool
	index      int
}

// normalize flattens the goldmark tree into a token sequence using an
// explicit stack, so arbitrarily deep documents cannot exhaust the
// goroutine stack.
func normalize(doc ast.Node, src []byte) token.Sequence {
	var out token.Sequence
	stack := pushChildren(nil, doc, frame{})

	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		switch n := f.node.(type) {
		case *ast.Heading:
			content := inlineMarkdown(n, src)
			out = append(out, token.Token{
				Kind:    token.KindHeading,
				Content: content,
				Raw:     strings.Repeat("#", n.Level) + " " + content,
				Depth:   n.Level,
			})

		case *ast.Paragraph, *ast.TextBlock:
			out = appendInline(out, inlineTokens(n, src))

		case *ast.FencedCodeBlock:
			lang := string(n.Language(src))
			content := string(n.Lines().Value(src))
			out = append(out, token.Token{
				Kind:     token.KindCodeBlock,
				Content:  content,
				Raw:      "```" + lang + "\n" + content + "```",
				Language: lang,
			})

		case *ast.CodeBlock:
			content := string(n.Lines().Value(src))
			out = append(out, token.Token{
				Kind:    token.KindCodeBlock,
				Content: content,
				Raw:     "```\n" + content + "```",
			})

		case *ast.Blockquote:
			depth := f.quoteDepth + 1
			var lines []string
			var rest []ast.Node
			for c := n.FirstChild(); c != nil; c = c.NextSibling() {
				switch c.(type) {
				case *ast.Paragraph, *ast.TextBlock:
					lines = append(lines, inlineMarkdown(c, src))
				default:
					rest = append(rest, c)
				}
			}
			if len(lines) > 0 {
				content := strings.Join(lines, "\n")
				out = append(out, token.Token{
					Kind:    token.KindBlockquote,
					Content: content,
					Raw:     quoteRaw(content, depth),
					Depth:   depth,
				})
			}
			for i := len(rest) - 1; i >= 0; i-- {
				stack = append(stack, frame{node: rest[i], listDepth: f.listDepth, quoteDepth: depth})
			}

		case *ast.List:
			index := n.Start
			items := make([]frame, 0, n.ChildCount())
			for c := n.FirstChild(); c != nil; c = c.NextSibling() {
				items = append(items, frame{
					node:       c,
					listDepth:  f.listDepth + 1,
					quoteDepth: f.quoteDepth,
					ordered:    n.IsOrdered(),
					index:      index,
				})
				index++
			}
			for i := len(items) - 1; i >= 0; i-- {
				stack = append(stack, items[i])
			}

		case *ast.ListItem:
			var content string
			first := n.FirstChild()
			switch first.(type) {
			case *ast.Paragraph, *ast.TextBlock:
				content = inlineMarkdown(first, src)
				first = first.NextSibling()
			}
			out = append(out, token.Token{
				Kind:    token.KindListItem,
				Content: content,
				Raw:     listMarker(f.ordered, f.index) + content,
				Depth:   f.listDepth,
				Ordered: f.ordered,
				Index:   f.index,
			})
			var rest []ast.Node
			for c := first; c != nil; c = c.NextSibling() {
				rest = append(rest, c)
			}
			for i := len(rest) - 1; i >= 0; i-- {
				stack = append(stack, frame{node: rest[i], listDepth: f.listDepth, quoteDepth: f.quoteDepth})
			}

		case *ast.ThematicBreak:
			out = append(out, token.Token{Kind: token.KindHorizontalRule, Raw: "---"})

		case *extast.Table:
			out = append(out, tableToken(n, src))

		case *ast.HTMLBlock:
			content := string(n.Lines().Value(src))
			if n.HasClosure() {
				content += string(n.ClosureLine.Value(src))
			}
			out = append(out, token.Token{
				Kind:      token.KindText,
				Content:   strings.TrimRight(content, "\n"),
				EndsBlock: true,
			})

		default:
			stack = pushChildren(stack, n, f)
		}
	}
	return out
}

func pushChildren(stack []frame, n ast.Node, parent frame) []frame {
	var children []ast.Node
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		children = append(children, c)
	}
	for i := len(children) - 1; i >= 0; i-- {
		stack = append(stack, frame{node: children[i], listDepth: parent.listDepth, quoteDepth: parent.quoteDepth})
	}
	return stack
}

// appendInline appends the tokens of one paragraph and marks its last token
// as the end of the block.
func appendInline(out, inline token.Sequence) token.Sequence {
	if len(inline) == 0 {
		return out
	}
	inline[len(inline)-1].EndsBlock = true
	return append(out, inline...)
}

func listMarker(ordered bool, index int) string {
	if ordered {
		return strconv.Itoa(index) + ". "
	}
	return "- "
}

func quoteRaw(content string, depth int) string {
	prefix := strings.Repeat("> ", depth)
	lines := strings.Split(content, "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}

// inlineTokens flattens the inline children of a paragraph. Nested emphasis
// collapses into the content of its outermost styled ancestor and adjacent
// text on the same source line merges. A line break starts a new text token
// carrying the separator, so the tokens of finished lines keep their content
// while the paragraph grows.
func inlineTokens(n ast.Node, src []byte) token.Sequence {
	var out token.Sequence
	lineStart := 0
	addText := func(s string) {
		if s == "" {
			return
		}
		if last := len(out) - 1; last >= lineStart && out[last].Kind == token.KindText {
			out[last].Content += s
			return
		}
		out = append(out, token.Token{Kind: token.KindText, Content: s})
	}
	breakLine := func(sep string) {
		out = append(out, token.Token{Kind: token.KindText, Content: sep})
		lineStart = len(out) - 1
	}

	stack := reverseChildren(nil, n)
	for len(stack) > 0 {
		c := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		switch c := c.(type) {
		case *ast.Text:
			addText(string(c.Segment.Value(src)))
			switch {
			case c.HardLineBreak():
				breakLine("\n")
			case c.SoftLineBreak():
				breakLine(" ")
			}
		case *ast.String:
			addText(string(c.Value))
		case *ast.Emphasis:
			content := inlinePlain(c, src)
			kind, marker := token.KindEmphasis, "*"
			if c.Level >= 2 {
				kind, marker = token.KindStrong, "**"
			}
			out = append(out, token.Token{Kind: kind, Content: content, Raw: marker + content + marker})
		case *extast.Strikethrough:
			content := inlinePlain(c, src)
			out = append(out, token.Token{Kind: token.KindStrikethrough, Content: content, Raw: "~~" + content + "~~"})
		case *ast.CodeSpan:
			content := inlinePlain(c, src)
			out = append(out, token.Token{Kind: token.KindInlineCode, Content: content, Raw: "`" + content + "`"})
		case *ast.Link:
			content := inlinePlain(c, src)
			href := string(c.Destination)
			out = append(out, token.Token{Kind: token.KindLink, Content: content, Href: href, Raw: "[" + content + "](" + href + ")"})
		case *ast.AutoLink:
			label := string(c.Label(src))
			out = append(out, token.Token{Kind: token.KindLink, Content: label, Href: string(c.URL(src)), Raw: label})
		case *ast.Image:
			alt := inlinePlain(c, src)
			href := string(c.Destination)
			out = append(out, token.Token{Kind: token.KindLink, Content: "Image: " + alt, Href: href, Raw: "![" + alt + "](" + href + ")"})
		case *ast.RawHTML:
			addText(string(c.Segments.Value(src)))
		case *extast.TaskCheckBox:
			if c.IsChecked {
				addText("[x] ")
			} else {
				addText("[ ] ")
			}
		default:
			stack = reverseChildren(stack, c)
		}
	}

	if last := len(out) - 1; last >= 0 && out[last].Kind == token.KindText {
		out[last].Content = strings.TrimRight(out[last].Content, " ")
		if out[last].Content == "" {
			out = out[:last]
		}
	}
	return out
}

func reverseChildren(stack []ast.Node, n ast.Node) []ast.Node {
	start := len(stack)
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		stack = append(stack, c)
	}
	for i, j := start, len(stack)-1; i < j; i, j = i+1, j-1 {
		stack[i], stack[j] = stack[j], stack[i]
	}
	return stack
}

// inlinePlain returns the text of the inline descendants of n without any
// markup.
func inlinePlain(n ast.Node, src []byte) string {
	var b strings.Builder
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch c := c.(type) {
		case *ast.Text:
			b.Write(c.Segment.Value(src))
			if c.SoftLineBreak() || c.HardLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(c.Value)
		case *ast.RawHTML:
			b.Write(c.Segments.Value(src))
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimRight(b.String(), " ")
}

// inlineMarkdown rebuilds the markdown source of the inline descendants of
// n. Block tokens (headings, list items, quotes, table cells) keep their
// inline markup so the renderer can style it.
func inlineMarkdown(n ast.Node, src []byte) string {
	var b strings.Builder
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		switch c := c.(type) {
		case *ast.Text:
			if entering {
				b.Write(c.Segment.Value(src))
				switch {
				case c.HardLineBreak():
					b.WriteByte('\n')
				case c.SoftLineBreak():
					b.WriteByte(' ')
				}
			}
		case *ast.String:
			if entering {
				b.Write(c.Value)
			}
		case *ast.Emphasis:
			b.WriteString(strings.Repeat("*", c.Level))
		case *extast.Strikethrough:
			b.WriteString("~~")
		case *ast.CodeSpan:
			if entering {
				b.WriteString("`" + inlinePlain(c, src) + "`")
			}
			return ast.WalkSkipChildren, nil
		case *ast.Link:
			if entering {
				b.WriteByte('[')
			} else {
				b.WriteString("](" + string(c.Destination) + ")")
			}
		case *ast.AutoLink:
			if entering {
				b.Write(c.URL(src))
			}
		case *ast.Image:
			if entering {
				b.WriteString("[Image: " + inlinePlain(c, src) + "](" + string(c.Destination) + ")")
			}
			return ast.WalkSkipChildren, nil
		case *ast.RawHTML:
			if entering {
				b.Write(c.Segments.Value(src))
			}
		case *extast.TaskCheckBox:
			if entering {
				if c.IsChecked {
					b.WriteString("[x] ")
				} else {
					b.WriteString("[ ] ")
				}
			}
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(b.String())
}

func tableToken(n *extast.Table, src []byte) token.Token {
	t := &token.Table{}
	for _, a := range n.Alignments {
		t.Align = append(t.Align, alignment(a))
	}

	for row := n.FirstChild(); row != nil; row = row.NextSibling() {
		var cells []string
		for cell := row.FirstChild(); cell != nil; cell = cell.NextSibling() {
			cells = append(cells, inlineMarkdown(cell, src))
		}
		if _, ok := row.(*extast.TableHeader); ok {
			t.Header = cells
		} else {
			t.Rows = append(t.Rows, cells)
		}
	}

	raw := pipeRow(t.Header) + "\n" + separatorRow(t.Align, len(t.Header))
	for _, r := range t.Rows {
		raw += "\n" + pipeRow(r)
	}
	return token.Token{Kind: token.KindTable, Content: raw, Raw: raw, Table: t}
}

func alignment(a extast.Alignment) token.Alignment {
	switch a {
	case extast.AlignLeft:
		return token.AlignLeft
	case extast.AlignCenter:
		return token.AlignCenter
	case extast.AlignRight:
		return token.AlignRight
	default:
		return token.AlignNone
	}
}

func pipeRow(cells []string) string {
	return "| " + strings.Join(cells, " | ") + " |"
}

func separatorRow(align []token.Alignment, n int) string {
	cells := make([]string, n)
	for i := range cells {
		a := token.AlignNone
		if i < len(align) {
			a = align[i]
		}
		switch a {
		case token.AlignLeft:
			cells[i] = ":---"
		case token.AlignCenter:
			cells[i] = ":---:"
		case token.AlignRight:
			cells[i] = "---:"
		default:
			cells[i] = "---"
		}
	}
	return "|" + strings.Join(cells, "|") + "|"
}
