package parser

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/docker/mdstream/pkg/token"
)

var (
	fenceLine   = regexp.MustCompile("^ {0,3}(`{3,}|~{3,})")
	headingLine = regexp.MustCompile(`^ {0,3}#{1,6}(\s|$)`)
	// markerLine is an unfinished line that may still become a setext
	// underline, a thematic break or a list marker. Each of them can
	// restructure the line above it.
	markerLine = regexp.MustCompile(`^[ \t]*(-+|=+|[*+]|\d{1,9}[.)]?)[ \t]*$`)
)

// openDelimiter is an unterminated inline construct on the last line.
type openDelimiter struct {
	kind   token.Kind
	marker string
	offset int
}

// markIncomplete flags the trailing constructs of seq that buf has not
// closed yet. Only the tail of the sequence is ever touched. relex is used to
// tokenize the part of the buffer that precedes an unfinished construct.
func markIncomplete(seq token.Sequence, buf string, relex func(string) token.Sequence) token.Sequence {
	if buf == "" {
		return seq
	}

	if hasOpenFence(buf) {
		if last := len(seq) - 1; last >= 0 {
			switch seq[last].Kind {
			case token.KindCodeBlock, token.KindMathBlock, token.KindDiagram:
				seq[last].Incomplete = true
			}
		}
		return seq
	}

	lineStart := strings.LastIndexByte(buf, '\n') + 1
	lastLine := buf[lineStart:]

	if pendingMarker(buf, lineStart) {
		prefix := buf[:lineStart]
		seq = markIncomplete(relex(prefix), prefix, relex)
		return append(seq, token.Token{
			Kind:       token.KindText,
			Content:    strings.TrimSpace(lastLine),
			Raw:        lastLine,
			EndsBlock:  true,
			Incomplete: true,
		})
	}

	if len(seq) == 0 {
		return seq
	}
	last := len(seq) - 1

	if strings.TrimSpace(lastLine) == "" {
		return markOpenBlocks(seq, buf)
	}

	if headingLine.MatchString(lastLine) {
		if seq[last].Kind == token.KindHeading {
			seq[last].Incomplete = true
		}
		return seq
	}

	if d, ok := findOpenDelimiter(lastLine); ok && seq[last].Kind.IsInline() {
		if open, ok := openToken(lastLine, d); ok {
			return append(prefixTokens(buf[:lineStart+d.offset], relex), open)
		}
	}

	// The last line has no newline yet: text keeps growing, closed inline
	// constructs do not.
	switch t := &seq[last]; t.Kind {
	case token.KindText, token.KindListItem, token.KindBlockquote, token.KindTable:
		t.Incomplete = true
	case token.KindLink:
		// autolinks grow with every character
		t.Incomplete = !strings.HasSuffix(t.Raw, ")")
	}
	return markOpenBlocks(seq, buf)
}

// pendingMarker reports whether the unfinished last line of buf could still
// turn the line above it into something else, like "Steps:\n-" becoming a
// setext heading or a list.
func pendingMarker(buf string, lineStart int) bool {
	if lineStart == 0 || !markerLine.MatchString(buf[lineStart:]) {
		return false
	}
	above := buf[:lineStart-1]
	return strings.TrimSpace(above[strings.LastIndexByte(above, '\n')+1:]) != ""
}

// markOpenBlocks flags the blocks that absorb the following lines until a
// blank line: blockquotes (lazy continuation), tables (more rows) and a
// paragraph of pipe rows that a delimiter row would turn into a table.
func markOpenBlocks(seq token.Sequence, buf string) token.Sequence {
	if strings.HasSuffix(buf, "\n\n") {
		return seq
	}
	last := len(seq) - 1
	switch {
	case seq[last].Kind == token.KindBlockquote, seq[last].Kind == token.KindTable:
		seq[last].Incomplete = true
	case seq[last].Kind.IsInline():
		first := last
		for first > 0 && seq[first-1].Kind.IsInline() && !seq[first-1].EndsBlock {
			first--
		}
		if strings.HasPrefix(strings.TrimLeft(seq[first].Content, " "), "|") {
			for i := first; i <= last; i++ {
				seq[i].Incomplete = true
			}
		}
	}
	return seq
}

// hasOpenFence reports whether buf ends inside a fenced block. A fence is
// closed by a run of the same character at least as long as the opener.
func hasOpenFence(buf string) bool {
	var open string
	for line := range strings.SplitSeq(buf, "\n") {
		m := fenceLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		switch {
		case open == "":
			open = m[1]
		case m[1][0] == open[0] && len(m[1]) >= len(open) && strings.TrimSpace(line) == m[1]:
			open = ""
		}
	}
	return open != ""
}

// findOpenDelimiter scans line for the outermost delimiter that has no
// closing counterpart. Code spans are matched first since their content is
// literal.
func findOpenDelimiter(line string) (openDelimiter, bool) {
	var open []openDelimiter
	var codeOpen = -1

	for i := 0; i < len(line); {
		c := line[i]

		if c == '\\' {
			i += 2
			continue
		}

		if c == '`' {
			if codeOpen < 0 {
				codeOpen = i
			} else {
				codeOpen = -1
			}
			i++
			continue
		}
		if codeOpen >= 0 {
			i++
			continue
		}

		switch {
		case strings.HasPrefix(line[i:], "**"):
			open = toggle(open, openDelimiter{token.KindStrong, "**", i}, line)
			i += 2
		case strings.HasPrefix(line[i:], "__") && boundary(line, i, 2):
			open = toggle(open, openDelimiter{token.KindStrong, "__", i}, line)
			i += 2
		case strings.HasPrefix(line[i:], "~~"):
			open = toggle(open, openDelimiter{token.KindStrikethrough, "~~", i}, line)
			i += 2
		case c == '*' && !(i == 0 && len(line) > 1 && line[1] == ' '):
			open = toggle(open, openDelimiter{token.KindEmphasis, "*", i}, line)
			i++
		case c == '_' && boundary(line, i, 1):
			open = toggle(open, openDelimiter{token.KindEmphasis, "_", i}, line)
			i++
		case c == '[':
			open = append(open, openDelimiter{token.KindLink, "[", i})
			i++
		case c == ']':
			// A bracket stays open only while a link destination may follow.
			if j := lastIndexOfMarker(open, "["); j >= 0 {
				rest := line[i+1:]
				pending := rest == "" || (strings.HasPrefix(rest, "(") && !strings.Contains(rest, ")"))
				if !pending {
					open = append(open[:j:j], open[j+1:]...)
				}
			}
			i++
		default:
			i++
		}
	}

	switch {
	case len(open) > 0 && (codeOpen < 0 || open[0].offset < codeOpen):
		return open[0], true
	case codeOpen >= 0:
		return openDelimiter{token.KindInlineCode, "`", codeOpen}, true
	}
	return openDelimiter{}, false
}

// toggle closes the most recent delimiter with the same marker or opens d.
// A delimiter followed by whitespace cannot open.
func toggle(open []openDelimiter, d openDelimiter, line string) []openDelimiter {
	if j := lastIndexOfMarker(open, d.marker); j >= 0 {
		return append(open[:j:j], open[j+1:]...)
	}
	next, _ := utf8.DecodeRuneInString(line[d.offset+len(d.marker):])
	if d.offset+len(d.marker) >= len(line) || unicode.IsSpace(next) {
		return open
	}
	return append(open, d)
}

func lastIndexOfMarker(open []openDelimiter, marker string) int {
	for j := len(open) - 1; j >= 0; j-- {
		if open[j].marker == marker {
			return j
		}
	}
	return -1
}

// boundary reports whether an underscore run at i is not intra-word.
func boundary(line string, i, n int) bool {
	before, _ := utf8.DecodeLastRuneInString(line[:i])
	after, _ := utf8.DecodeRuneInString(line[i+n:])
	inWord := func(r rune) bool { return unicode.IsLetter(r) || unicode.IsDigit(r) }
	return i == 0 || i+n >= len(line) || !inWord(before) || !inWord(after)
}

// openToken types the literal text that follows an open delimiter as the
// construct it opens.
func openToken(line string, d openDelimiter) (token.Token, bool) {
	literal := strings.TrimRight(line[d.offset:], " ")
	content := literal[len(d.marker):]
	if d.kind != token.KindInlineCode {
		content = strings.TrimRight(content, "*_~")
	}
	if d.kind == token.KindLink {
		content = strings.TrimSuffix(strings.SplitN(content, "](", 2)[0], "]")
	}
	if strings.TrimSpace(content) == "" {
		return token.Token{}, false
	}
	return token.Token{
		Kind:       d.kind,
		Content:    content,
		Raw:        literal,
		Incomplete: true,
	}, true
}

// prefixTokens lexes the buffer up to an open delimiter. The paragraph the
// delimiter belongs to continues, so the separator the lexer trimmed is put
// back. Text on the delimiter's line stays incomplete since it merges with
// whatever the delimiter turns out to be.
func prefixTokens(prefix string, relex func(string) token.Sequence) token.Sequence {
	if strings.TrimSpace(prefix) == "" {
		return nil
	}
	seq := relex(prefix)
	last := len(seq) - 1
	if last < 0 || !seq[last].Kind.IsInline() {
		return seq
	}

	ws := prefix[len(strings.TrimRight(prefix, " \t\n")):]
	if strings.Count(ws, "\n") >= 2 {
		return seq
	}
	seq[last].EndsBlock = false

	switch {
	case strings.Contains(ws, "\n"):
		seq = append(seq, token.Token{Kind: token.KindText, Content: " ", Incomplete: true})
	case seq[last].Kind == token.KindText:
		seq[last].Content += ws
		seq[last].Incomplete = true
	case ws != "":
		seq = append(seq, token.Token{Kind: token.KindText, Content: ws, Incomplete: true})
	}
	return seq
}
