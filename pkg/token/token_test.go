package token

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "inline-code", KindInlineCode.String())
	assert.Equal(t, "diagram", KindDiagram.String())
	assert.Equal(t, "unknown", Kind(99).String())

	k, ok := ParseKind("math-block")
	assert.True(t, ok)
	assert.Equal(t, KindMathBlock, k)

	_, ok = ParseKind("nope")
	assert.False(t, ok)
}

func TestKindIsInline(t *testing.T) {
	t.Parallel()

	inline := []Kind{KindText, KindStrong, KindEmphasis, KindInlineCode, KindLink, KindStrikethrough, KindMathInline}
	for _, k := range inline {
		assert.True(t, k.IsInline(), k.String())
	}

	block := []Kind{KindHeading, KindParagraph, KindCodeBlock, KindBlockquote, KindListItem, KindHorizontalRule, KindTable, KindMathBlock, KindDiagram}
	for _, k := range block {
		assert.False(t, k.IsInline(), k.String())
	}
}

func TestSequencePlainText(t *testing.T) {
	t.Parallel()

	seq := Sequence{
		{Kind: KindHeading, Content: "Title", Raw: "# Title"},
		{Kind: KindText, Content: "Hello "},
		{Kind: KindStrong, Content: "world", Raw: "**world**", EndsBlock: true},
		{Kind: KindCodeBlock, Content: "x := 1\n", Raw: "```go\nx := 1\n```"},
	}

	assert.Equal(t, "# Title\nHello **world**\n```go\nx := 1\n```", seq.PlainText())
}

func TestSequenceHelpers(t *testing.T) {
	t.Parallel()

	var empty Sequence
	_, ok := empty.Last()
	assert.False(t, ok)
	assert.Nil(t, empty.Clone())

	seq := Sequence{{Kind: KindText, Content: "a"}, {Kind: KindStrong, Content: "b", Incomplete: true}}
	last, ok := seq.Last()
	assert.True(t, ok)
	assert.Equal(t, KindStrong, last.Kind)
	assert.Equal(t, 1, seq.IncompleteCount())

	clone := seq.Clone()
	clone[0].Content = "changed"
	assert.Equal(t, "a", seq[0].Content)
}

func TestTokenLines(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0, Token{}.Lines())
	assert.Equal(t, 1, Token{Content: "one"}.Lines())
	assert.Equal(t, 3, Token{Content: "a\nb\nc\n"}.Lines())
}

func TestTableColumns(t *testing.T) {
	t.Parallel()

	var nilTable *Table
	assert.Equal(t, 0, nilTable.Columns())

	tbl := &Table{Header: []string{"a", "b"}, Rows: [][]string{{"1", "2", "3"}}}
	assert.Equal(t, 3, tbl.Columns())
}
