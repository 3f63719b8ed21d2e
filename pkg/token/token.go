// Package token defines the normalized markdown units shared by the parser,
// the plugin pipeline and the render engine.
package token

import "strings"

// Kind identifies what a token represents. The set is closed.
type Kind int

const (
	KindHeading Kind = iota
	KindParagraph
	KindText
	KindStrong
	KindEmphasis
	KindInlineCode
	KindCodeBlock
	KindBlockquote
	KindListItem
	KindLink
	KindStrikethrough
	KindHorizontalRule
	KindTable
	KindMathInline
	KindMathBlock
	KindDiagram
)

var kindNames = [...]string{
	KindHeading:        "heading",
	KindParagraph:      "paragraph",
	KindText:           "text",
	KindStrong:         "strong",
	KindEmphasis:       "emphasis",
	KindInlineCode:     "inline-code",
	KindCodeBlock:      "code-block",
	KindBlockquote:     "blockquote",
	KindListItem:       "list-item",
	KindLink:           "link",
	KindStrikethrough:  "strikethrough",
	KindHorizontalRule: "horizontal-rule",
	KindTable:          "table",
	KindMathInline:     "math-inline",
	KindMathBlock:      "math-block",
	KindDiagram:        "diagram",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

// IsInline reports whether tokens of this kind share a rendered line with
// their neighbours instead of occupying a region of their own.
func (k Kind) IsInline() bool {
	switch k {
	case KindText, KindStrong, KindEmphasis, KindInlineCode, KindLink, KindStrikethrough, KindMathInline:
		return true
	}
	return false
}

// ParseKind is the inverse of Kind.String.
func ParseKind(name string) (Kind, bool) {
	for k, n := range kindNames {
		if n == name {
			return Kind(k), true
		}
	}
	return 0, false
}

// MathInlineMarker prefixes the content of a code span that holds inline
// math. It is a private-use rune so it never collides with real code.
const MathInlineMarker = "\uE000"

// Alignment of a table column.
type Alignment int

const (
	AlignNone Alignment = iota
	AlignLeft
	AlignCenter
	AlignRight
)

// Table holds the cells of a table token.
type Table struct {
	Header []string
	Align  []Alignment
	Rows   [][]string
}

// Columns returns the widest row length, header included.
func (t *Table) Columns() int {
	if t == nil {
		return 0
	}
	n := len(t.Header)
	for _, r := range t.Rows {
		n = max(n, len(r))
	}
	return n
}

// Token is one parsed unit. Tokens are values: a parse pass produces a new
// Sequence and never mutates a previous one.
type Token struct {
	Kind    Kind
	Content string
	Raw     string

	// Depth is the heading level, or the list / quote nesting level.
	Depth    int
	Ordered  bool
	Index    int
	Language string
	Href     string
	Table    *Table

	// Incomplete is set while the closing construct has not been seen yet.
	Incomplete bool

	// EndsBlock marks the last inline token flattened out of a paragraph.
	EndsBlock bool
}

// Source returns the raw source of the token, or its content when the
// source slice is unknown.
func (t Token) Source() string {
	if t.Raw != "" {
		return t.Raw
	}
	return t.Content
}

// Lines counts the content lines of a block token.
func (t Token) Lines() int {
	if t.Content == "" {
		return 0
	}
	return strings.Count(strings.TrimSuffix(t.Content, "\n"), "\n") + 1
}

// Sequence is the ordered output of one parse pass.
type Sequence []Token

// Last returns the trailing token.
func (s Sequence) Last() (Token, bool) {
	if len(s) == 0 {
		return Token{}, false
	}
	return s[len(s)-1], true
}

// IncompleteCount counts tokens still waiting for their closing construct.
func (s Sequence) IncompleteCount() int {
	n := 0
	for _, t := range s {
		if t.Incomplete {
			n++
		}
	}
	return n
}

// PlainText concatenates the source of every token. It is the degraded
// representation shown when styled rendering fails.
func (s Sequence) PlainText() string {
	var b strings.Builder
	for i, t := range s {
		src := t.Source()
		b.WriteString(src)
		if i < len(s)-1 && !t.Kind.IsInline() && !strings.HasSuffix(src, "\n") {
			b.WriteByte('\n')
		}
		if t.EndsBlock {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// Clone returns a copy that can be modified without touching s.
func (s Sequence) Clone() Sequence {
	if s == nil {
		return nil
	}
	out := make(Sequence, len(s))
	copy(out, s)
	return out
}
