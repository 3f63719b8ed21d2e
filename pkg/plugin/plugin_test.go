package plugin

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docker/mdstream/pkg/bus"
	"github.com/docker/mdstream/pkg/config"
	"github.com/docker/mdstream/pkg/parser"
	"github.com/docker/mdstream/pkg/token"
)

func allFeatures() config.Features {
	return config.Features{Math: true, Diagram: true, SecurityHardening: true}
}

// parse runs src through the pipeline and the parser the way a stream does.
func parse(t *testing.T, p *Pipeline, src string) Result[token.Sequence] {
	t.Helper()
	ctx := p.NewContext()
	prs := parser.New(parser.WithTransform(func(s string) string {
		return p.ProcessPreParse(s, ctx).Value
	}))
	seq, err := prs.AddChunk(src)
	require.NoError(t, err)
	return p.ProcessPostParse(seq, ctx)
}

func TestNewRegistersEnabledBuiltins(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"security", "math", "diagram"}, New(allFeatures()).Names())
	assert.Equal(t, []string{"math"}, New(config.Features{Math: true}).Names())
	assert.Empty(t, New(config.Features{}).Names())
}

func TestMathPreParse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"inline", "Area $\\pi r^2$ here", "Area `" + token.MathInlineMarker + "\\pi r^2` here"},
		{"block", "$$\na+b\n$$\n", "\n```math\na+b\n```\n\n"},
		{"open block", "see $$a+", "see \n```math\na+"},
		{"currency", "costs $5 and $6", "costs $5 and $6"},
		{"code span", "use `$x$` literally", "use `$x$` literally"},
		{"fenced code", "```sh\necho $HOME$x$\n```\n", "```sh\necho $HOME$x$\n```\n"},
		{"escaped", "a \\$x$ b", "a \\$x$ b"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			out, warnings, err := Math{}.PreParse(tt.in, nil)
			require.NoError(t, err)
			assert.Empty(t, warnings)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestMathTokens(t *testing.T) {
	t.Parallel()

	res := parse(t, New(config.Features{Math: true}), "Euler $e^{i\\pi}$ rocks\n\n$$\nx = 1\n$$\n")

	var kinds []token.Kind
	for _, tok := range res.Value {
		kinds = append(kinds, tok.Kind)
	}
	require.Equal(t, []token.Kind{token.KindText, token.KindMathInline, token.KindText, token.KindMathBlock}, kinds)
	assert.Equal(t, "e^{i\\pi}", res.Value[1].Content)
	assert.Equal(t, "x = 1\n", res.Value[3].Content)
	assert.False(t, res.Value[3].Incomplete)
}

func TestStreamingMathBlockIsIncomplete(t *testing.T) {
	t.Parallel()

	res := parse(t, New(config.Features{Math: true}), "$$\nx =")
	last, ok := res.Value.Last()
	require.True(t, ok)
	assert.Equal(t, token.KindMathBlock, last.Kind)
	assert.True(t, last.Incomplete)
}

func TestDiagramRetypesCodeBlocks(t *testing.T) {
	t.Parallel()

	res := parse(t, New(config.Features{Diagram: true}), "```mermaid\ngraph TD\nA-->B\n```\n\n```go\nx\n```\n")
	require.Len(t, res.Value, 2)
	assert.Equal(t, token.KindDiagram, res.Value[0].Kind)
	assert.Equal(t, "mermaid", res.Value[0].Language)
	assert.Equal(t, token.KindCodeBlock, res.Value[1].Kind)
}

func TestSecurityPreParse(t *testing.T) {
	t.Parallel()

	out, warnings, err := NewSecurity(0).PreParse("a\x1b[2Jb\u202ec", nil)
	require.NoError(t, err)
	assert.Equal(t, "abc", out)
	assert.Len(t, warnings, 2)

	out, warnings, err = NewSecurity(0).PreParse("clean", nil)
	require.NoError(t, err)
	assert.Equal(t, "clean", out)
	assert.Empty(t, warnings)
}

func TestSecurityPostParse(t *testing.T) {
	t.Parallel()

	s := NewSecurity(8)
	table := &token.Table{Header: []string{"<b>h</b>"}, Rows: [][]string{{"x"}}}
	tokens := token.Sequence{
		{Kind: token.KindText, Content: "<b>hi</b> & co"},
		{Kind: token.KindLink, Content: "bad", Href: "javascript:alert(1)"},
		{Kind: token.KindLink, Content: "ok", Href: "https://docs.docker.com"},
		{Kind: token.KindLink, Content: "rel", Href: "./README.md"},
		{Kind: token.KindCodeBlock, Content: "0123456789"},
		{Kind: token.KindTable, Table: table},
	}

	out, warnings, err := s.PostParse(tokens.Clone(), nil)
	require.NoError(t, err)

	assert.Equal(t, "hi & co", out[0].Content)
	assert.Empty(t, out[1].Href)
	assert.Equal(t, "https://docs.docker.com", out[2].Href)
	assert.Equal(t, "./README.md", out[3].Href)
	assert.Equal(t, "01234567...", out[4].Content)
	assert.Equal(t, []string{"h"}, out[5].Table.Header)
	assert.Equal(t, []string{"<b>h</b>"}, table.Header, "input table must not be modified")
	assert.Len(t, warnings, 4)
}

type panicky struct{}

func (panicky) Name() string { return "panicky" }

func (panicky) PreParse(string, *Context) (string, []string, error) {
	panic("boom")
}

type failing struct{}

func (failing) Name() string { return "failing" }

func (failing) PostParse(token.Sequence, *Context) (token.Sequence, []string, error) {
	return nil, []string{"partial"}, errors.New("broken")
}

type upper struct{}

func (upper) Name() string { return "upper" }

func (upper) PreParse(src string, _ *Context) (string, []string, error) {
	return strings.ToUpper(src), nil, nil
}

func TestPipelineFailsOpen(t *testing.T) {
	t.Parallel()

	b := bus.New()
	p := New(config.Features{}, WithBus(b))
	p.Register(panicky{})
	p.Register(failing{})
	p.Register(upper{})

	pre := p.ProcessPreParse("hello", nil)
	assert.Equal(t, "HELLO", pre.Value)
	require.Len(t, pre.Warnings, 1)
	assert.Contains(t, pre.Warnings[0], "panicky")
	assert.Contains(t, pre.Warnings[0], "boom")

	in := token.Sequence{{Kind: token.KindText, Content: "x"}}
	post := p.ProcessPostParse(in, nil)
	assert.Equal(t, in, post.Value)
	assert.Equal(t, []string{"partial", "plugin failing failed during post-parse: broken"}, post.Warnings)

	history := b.History(WarningEvent)
	require.Len(t, history, 2)
	w, ok := history[0].Payload.(Warning)
	require.True(t, ok)
	assert.Equal(t, "panicky", w.Plugin)
	assert.Equal(t, StagePreParse, w.Stage)
}
