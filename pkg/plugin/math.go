package plugin

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/docker/mdstream/pkg/token"
)

var (
	fenceLine  = regexp.MustCompile("^ {0,3}(```|~~~)")
	blockMath  = regexp.MustCompile(`(?s)\$\$(.+?)\$\$`)
	inlineMath = regexp.MustCompile(`\$([^\s$` + "`" + `](?:[^$\n` + "`" + `]*[^\s$` + "`" + `])?)\$`)
	codeSpan   = regexp.MustCompile("`[^`\n]*`")
)

// Math turns $$…$$ into fenced math blocks and $…$ into marked code spans,
// then re-types both once the parser has produced tokens.
type Math struct{}

func (Math) Name() string { return "math" }

func (Math) PreParse(src string, _ *Context) (string, []string, error) {
	if !strings.Contains(src, "$") {
		return src, nil, nil
	}

	var out strings.Builder
	segments := proseSegments(src)
	for i, seg := range segments {
		if seg.code {
			out.WriteString(seg.text)
			continue
		}
		out.WriteString(rewriteMath(seg.text, i == len(segments)-1))
	}
	return out.String(), nil, nil
}

func (Math) PostParse(tokens token.Sequence, _ *Context) (token.Sequence, []string, error) {
	for i, t := range tokens {
		switch {
		case t.Kind == token.KindCodeBlock && t.Language == "math":
			tokens[i].Kind = token.KindMathBlock
			tokens[i].Raw = "$$\n" + t.Content + "$$"
		case t.Kind == token.KindInlineCode && strings.HasPrefix(t.Content, token.MathInlineMarker):
			content := strings.TrimPrefix(t.Content, token.MathInlineMarker)
			tokens[i].Kind = token.KindMathInline
			tokens[i].Content = content
			tokens[i].Raw = "$" + content + "$"
		}
	}
	return tokens, nil, nil
}

type segment struct {
	text string
	code bool
}

// proseSegments splits src into runs of fenced code and runs of prose,
// preserving every byte.
func proseSegments(src string) []segment {
	var segs []segment
	var cur strings.Builder
	inFence := false
	var marker string

	flush := func(code bool) {
		if cur.Len() > 0 {
			segs = append(segs, segment{text: cur.String(), code: code})
			cur.Reset()
		}
	}

	for line := range strings.SplitAfterSeq(src, "\n") {
		m := fenceLine.FindStringSubmatch(line)
		switch {
		case m != nil && !inFence:
			flush(false)
			inFence, marker = true, m[1]
			cur.WriteString(line)
		case m != nil && inFence && m[1] == marker:
			cur.WriteString(line)
			flush(true)
			inFence = false
		default:
			cur.WriteString(line)
		}
	}
	flush(inFence)
	return segs
}

// rewriteMath rewrites the math of one prose run. An unmatched $$ in the
// final run opens a math fence that stays open until the closing $$ arrives.
func rewriteMath(text string, last bool) string {
	text = blockMath.ReplaceAllStringFunc(text, func(m string) string {
		body := strings.TrimSpace(m[2 : len(m)-2])
		return "\n```math\n" + body + "\n```\n"
	})

	if idx := strings.LastIndex(text, "$$"); last && idx >= 0 {
		body := strings.TrimLeft(text[idx+2:], " \n")
		return rewriteInline(text[:idx]) + "\n```math\n" + body
	}
	return rewriteInline(text)
}

// rewriteInline rewrites $x$ outside of code spans. Currency such as
// "$5 and $6" is left alone: the content may not touch whitespace and the
// closing dollar may not be followed by a digit.
func rewriteInline(text string) string {
	if !strings.Contains(text, "$") {
		return text
	}

	var out strings.Builder
	pos := 0
	for _, span := range codeSpan.FindAllStringIndex(text, -1) {
		out.WriteString(replaceInline(text[pos:span[0]]))
		out.WriteString(text[span[0]:span[1]])
		pos = span[1]
	}
	out.WriteString(replaceInline(text[pos:]))
	return out.String()
}

func replaceInline(s string) string {
	var out strings.Builder
	pos := 0
	for _, m := range inlineMath.FindAllStringSubmatchIndex(s, -1) {
		if m[0] < pos {
			continue
		}
		if next, _ := utf8.DecodeRuneInString(s[m[1]:]); m[1] < len(s) && unicode.IsDigit(next) {
			continue
		}
		if prev, _ := utf8.DecodeLastRuneInString(s[:m[0]]); m[0] > 0 && prev == '\\' {
			continue
		}
		out.WriteString(s[pos:m[0]])
		out.WriteString("`" + token.MathInlineMarker + s[m[2]:m[3]] + "`")
		pos = m[1]
	}
	out.WriteString(s[pos:])
	return out.String()
}
