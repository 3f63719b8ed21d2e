package parser

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/docker/mdstream/pkg/token"
)

var (
	orderedItem   = regexp.MustCompile(`^(\s*)(\d{1,9})[.)]\s+(.*)$`)
	unorderedItem = regexp.MustCompile(`^(\s*)[-*+]\s+(.*)$`)
	inlineSpan    = regexp.MustCompile("\\*\\*(.+?)\\*\\*|__(.+?)__|~~(.+?)~~|`([^`]+)`|\\*([^*]+)\\*|\\[([^\\]]+)\\]\\(([^)]*)\\)")
)

// PartialLexer classifies the buffer line by line. It is the fallback used
// when the full lexer fails; it understands headings, fences, quotes, lists,
// rules and the common inline spans.
type PartialLexer struct{}

func (PartialLexer) Lex(src []byte) (token.Sequence, error) {
	lines := strings.Split(string(src), "\n")
	var out token.Sequence

	for i := 0; i < len(lines); i++ {
		line := lines[i]
		trimmed := strings.TrimSpace(line)

		switch {
		case trimmed == "":
			continue

		case fenceLine.MatchString(line):
			fence := trimmed[:3]
			lang := strings.TrimSpace(trimmed[3:])
			var code []string
			closed := false
			for i++; i < len(lines); i++ {
				if strings.HasPrefix(strings.TrimSpace(lines[i]), fence) {
					closed = true
					break
				}
				code = append(code, lines[i])
			}
			content := strings.Join(code, "\n")
			if len(code) > 0 {
				content += "\n"
			}
			raw := "```" + lang + "\n" + content
			if closed {
				raw += "```"
			}
			out = append(out, token.Token{Kind: token.KindCodeBlock, Content: content, Raw: raw, Language: lang})

		case headingLine.MatchString(line):
			level := len(trimmed) - len(strings.TrimLeft(trimmed, "#"))
			content := strings.TrimSpace(strings.TrimRight(strings.TrimSpace(trimmed[level:]), "#"))
			out = append(out, token.Token{Kind: token.KindHeading, Content: content, Raw: trimmed, Depth: level})

		case isHorizontalRule(trimmed):
			out = append(out, token.Token{Kind: token.KindHorizontalRule, Raw: "---"})

		case strings.HasPrefix(trimmed, ">"):
			var quote []string
			for ; i < len(lines); i++ {
				l := strings.TrimSpace(lines[i])
				if !strings.HasPrefix(l, ">") {
					i--
					break
				}
				quote = append(quote, strings.TrimPrefix(strings.TrimPrefix(l, ">"), " "))
			}
			content := strings.Join(quote, "\n")
			out = append(out, token.Token{Kind: token.KindBlockquote, Content: content, Raw: quoteRaw(content, 1), Depth: 1})

		default:
			if item, ok := parseListItem(line); ok {
				out = append(out, item)
				continue
			}
			var para []string
			for ; i < len(lines); i++ {
				l := lines[i]
				if strings.TrimSpace(l) == "" || startsBlock(l) {
					i--
					break
				}
				para = append(para, strings.TrimSpace(l))
			}
			out = appendInline(out, scanInline(strings.Join(para, " ")))
		}
	}
	return out, nil
}

func startsBlock(line string) bool {
	trimmed := strings.TrimSpace(line)
	if fenceLine.MatchString(line) || headingLine.MatchString(line) || strings.HasPrefix(trimmed, ">") || isHorizontalRule(trimmed) {
		return true
	}
	_, ok := parseListItem(line)
	return ok
}

func isHorizontalRule(line string) bool {
	if len(line) < 3 {
		return false
	}
	c := line[0]
	if c != '-' && c != '*' && c != '_' {
		return false
	}
	count := 0
	for i := range len(line) {
		switch line[i] {
		case c:
			count++
		case ' ', '\t':
		default:
			return false
		}
	}
	return count >= 3
}

func parseListItem(line string) (token.Token, bool) {
	if m := orderedItem.FindStringSubmatch(line); m != nil {
		index, _ := strconv.Atoi(m[2])
		depth := len(m[1])/2 + 1
		return token.Token{Kind: token.KindListItem, Content: m[3], Raw: strings.TrimSpace(line), Depth: depth, Ordered: true, Index: index}, true
	}
	if m := unorderedItem.FindStringSubmatch(line); m != nil {
		depth := len(m[1])/2 + 1
		return token.Token{Kind: token.KindListItem, Content: m[2], Raw: strings.TrimSpace(line), Depth: depth}, true
	}
	return token.Token{}, false
}

// scanInline splits text into inline tokens with a single left-to-right
// regexp scan. Unterminated spans stay literal text.
func scanInline(text string) token.Sequence {
	var out token.Sequence
	pos := 0
	for _, m := range inlineSpan.FindAllStringSubmatchIndex(text, -1) {
		if m[0] > pos {
			out = append(out, token.Token{Kind: token.KindText, Content: text[pos:m[0]]})
		}
		raw := text[m[0]:m[1]]
		group := func(n int) string { return text[m[2*n]:m[2*n+1]] }
		switch {
		case m[2] >= 0:
			out = append(out, token.Token{Kind: token.KindStrong, Content: group(1), Raw: raw})
		case m[4] >= 0:
			out = append(out, token.Token{Kind: token.KindStrong, Content: group(2), Raw: raw})
		case m[6] >= 0:
			out = append(out, token.Token{Kind: token.KindStrikethrough, Content: group(3), Raw: raw})
		case m[8] >= 0:
			out = append(out, token.Token{Kind: token.KindInlineCode, Content: group(4), Raw: raw})
		case m[10] >= 0:
			out = append(out, token.Token{Kind: token.KindEmphasis, Content: group(5), Raw: raw})
		case m[12] >= 0:
			out = append(out, token.Token{Kind: token.KindLink, Content: group(6), Href: group(7), Raw: raw})
		}
		pos = m[1]
	}
	if pos < len(text) {
		out = append(out, token.Token{Kind: token.KindText, Content: text[pos:]})
	}
	return out
}
