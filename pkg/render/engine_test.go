package render

import (
	"errors"
	"strings"
	"testing"

	"github.com/charmbracelet/x/ansi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docker/mdstream/pkg/bus"
	"github.com/docker/mdstream/pkg/config"
	"github.com/docker/mdstream/pkg/recovery"
	"github.com/docker/mdstream/pkg/sched"
	"github.com/docker/mdstream/pkg/styles"
	"github.com/docker/mdstream/pkg/surface"
	"github.com/docker/mdstream/pkg/token"
)

func document() token.Sequence {
	return token.Sequence{
		{Kind: token.KindHeading, Content: "Title", Depth: 1},
		{Kind: token.KindText, Content: "Hello "},
		{Kind: token.KindStrong, Content: "world", EndsBlock: true},
		{Kind: token.KindCodeBlock, Content: "func main() {}\n", Language: "go"},
		{Kind: token.KindListItem, Content: "first", Depth: 1},
	}
}

func TestRenderCreatesOneRegionPerBlock(t *testing.T) {
	t.Parallel()

	canvas := surface.NewCanvas(60, 0)
	e := New(canvas)

	require.NoError(t, e.Render(document()))

	regions := e.Regions()
	require.Len(t, regions, 4)
	assert.Equal(t, 0, regions[0].Spec().Top)
	assert.Equal(t, 2, regions[0].Spec().Height)
	assert.Equal(t, 2, regions[1].Spec().Top)
	assert.Equal(t, []string{"inline"}, regions[1].Spec().Tags)
	assert.Equal(t, 3, regions[2].Spec().Top)
	assert.Equal(t, []string{"code-block"}, regions[2].Spec().Tags)

	for i := 1; i < len(regions); i++ {
		prev := regions[i-1].Spec()
		assert.GreaterOrEqual(t, regions[i].Spec().Top, prev.Top+prev.Height, "regions overlap")
	}

	plain := canvas.Plain()
	assert.Contains(t, plain, "Title")
	assert.Contains(t, plain, "Hello world")
	assert.Contains(t, plain, "func main() {}")
	assert.Contains(t, plain, "first")
	assert.Equal(t, 1, canvas.Repaints())
	assert.InDelta(t, 1.0, canvas.Scroll(), 0)
	assert.Len(t, canvas.Regions(), 4)
}

func TestRenderIsIdempotent(t *testing.T) {
	t.Parallel()

	canvas := surface.NewCanvas(60, 0)
	e := New(canvas)

	require.NoError(t, e.Render(document()))
	first := canvas.View()
	require.NoError(t, e.Render(document()))

	assert.Equal(t, first, canvas.View())
	assert.Len(t, canvas.Regions(), 4, "previous regions are destroyed")
	assert.Equal(t, 2, e.Passes())
}

func TestRenderWithoutAutoScroll(t *testing.T) {
	t.Parallel()

	canvas := surface.NewCanvas(60, 0)
	require.NoError(t, New(canvas, WithAutoScroll(false)).Render(document()))
	assert.Zero(t, canvas.Scroll())
}

func TestInlineTokensShareALine(t *testing.T) {
	t.Parallel()

	canvas := surface.NewCanvas(80, 0)
	e := New(canvas)
	require.NoError(t, e.Render(token.Sequence{
		{Kind: token.KindText, Content: "a "},
		{Kind: token.KindInlineCode, Content: "b"},
		{Kind: token.KindText, Content: " c", EndsBlock: true},
		{Kind: token.KindLink, Content: "docs", Href: "https://docs.docker.com"},
		{Kind: token.KindText, Content: " tail", Incomplete: true},
	}))

	require.Len(t, e.Regions(), 2)
	assert.Equal(t, "a b c\ndocs (https://docs.docker.com) tail", canvas.Plain())
}

func TestWidthIsCapped(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 50, New(surface.NewCanvas(200, 0), WithMaxWidth(50)).Width())
	assert.Equal(t, 40, New(surface.NewCanvas(40, 0), WithMaxWidth(50)).Width())
	assert.Equal(t, defaultWidth, New(surface.NewCanvas(0, 0)).Width())
}

func TestLongTextWraps(t *testing.T) {
	t.Parallel()

	canvas := surface.NewCanvas(20, 0)
	e := New(canvas)
	require.NoError(t, e.Render(token.Sequence{
		{Kind: token.KindText, Content: strings.Repeat("word ", 12), EndsBlock: true},
	}))

	for line := range strings.SplitSeq(canvas.Plain(), "\n") {
		assert.LessOrEqual(t, ansi.StringWidth(line), 20)
	}
	assert.Greater(t, e.Regions()[0].Spec().Height, 1)
}

func TestOverrides(t *testing.T) {
	t.Parallel()

	canvas := surface.NewCanvas(60, 0)
	e := New(canvas, WithOverride(token.KindHeading, func(tok token.Token, ctx *Context) (string, error) {
		return ">> " + strings.ToUpper(tok.Content), nil
	}))
	require.NoError(t, e.Render(token.Sequence{{Kind: token.KindHeading, Content: "hi", Depth: 2}}))
	assert.Equal(t, ">> HI", canvas.Plain())
}

func TestOverrideErrorIsRenderError(t *testing.T) {
	t.Parallel()

	canvas := surface.NewCanvas(60, 0)
	e := New(canvas, WithOverride(token.KindTable, func(token.Token, *Context) (string, error) {
		return "", errors.New("no tables today")
	}))
	tokens := token.Sequence{
		{Kind: token.KindHeading, Content: "before", Depth: 1},
		{Kind: token.KindTable, Table: &token.Table{Header: []string{"a"}}},
	}

	err := e.Render(tokens)
	var re *recovery.RenderError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "table", re.Context)
	assert.Equal(t, tokens, re.Tokens)
	assert.Equal(t, recovery.SeverityRetryable, recovery.Classify(err))

	assert.Empty(t, e.Regions())
	assert.Empty(t, canvas.Regions(), "a failed pass leaves nothing attached")
}

func TestRenderPanicBecomesRenderError(t *testing.T) {
	t.Parallel()

	e := New(surface.NewCanvas(60, 0), WithOverride(token.KindText, func(token.Token, *Context) (string, error) {
		panic("bad override")
	}))
	err := e.Render(token.Sequence{{Kind: token.KindText, Content: "x"}})
	var re *recovery.RenderError
	require.ErrorAs(t, err, &re)
	assert.Contains(t, err.Error(), "bad override")
}

func TestRenderPlainAndClear(t *testing.T) {
	t.Parallel()

	canvas := surface.NewCanvas(60, 0)
	e := New(canvas)
	require.NoError(t, e.Render(document()))

	require.NoError(t, e.RenderPlain("# raw\n**text**"))
	require.Len(t, e.Regions(), 1)
	assert.Equal(t, []string{"plain"}, e.Regions()[0].Spec().Tags)
	assert.Equal(t, "# raw\n**text**", canvas.Plain())

	require.NoError(t, e.Clear())
	assert.Empty(t, e.Regions())
	assert.Empty(t, canvas.Regions())
	assert.Empty(t, canvas.Plain())
}

func TestToolkitErrorsPropagate(t *testing.T) {
	t.Parallel()

	canvas := surface.NewCanvas(60, 0)
	canvas.Close()

	err := New(canvas).Render(document())
	var te *recovery.ToolkitError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, recovery.SeverityCritical, recovery.Classify(err))
}

type lazyHighlighter struct {
	ready    map[string]bool
	prepared int
}

func (h *lazyHighlighter) Highlight(code, _ string) string { return "<<" + code + ">>" }
func (h *lazyHighlighter) Ready(lang string) bool          { return h.ready[lang] }
func (h *lazyHighlighter) Prepare(lang string) {
	h.prepared++
	h.ready[lang] = true
}

func TestDeferredHighlighting(t *testing.T) {
	t.Parallel()

	q := sched.NewQueue()
	hl := &lazyHighlighter{ready: map[string]bool{}}
	canvas := surface.NewCanvas(60, 0)
	e := New(canvas, WithScheduler(q), WithHighlighter(hl))

	code := token.Sequence{{Kind: token.KindCodeBlock, Content: "x := 1\n", Language: "go"}}
	require.NoError(t, e.Render(code))
	assert.NotContains(t, canvas.Plain(), "<<")
	assert.Equal(t, 1, q.Pending())

	assert.Equal(t, 1, q.Flush())
	assert.Contains(t, canvas.Plain(), "<<x := 1>>")
	assert.Equal(t, 2, canvas.Repaints())

	// ready grammars are highlighted during the pass
	require.NoError(t, e.Render(code))
	assert.Zero(t, q.Pending())
	assert.Contains(t, canvas.Plain(), "<<x := 1>>")
}

func TestStaleHighlightIsSkipped(t *testing.T) {
	t.Parallel()

	q := sched.NewQueue()
	hl := &lazyHighlighter{ready: map[string]bool{}}
	canvas := surface.NewCanvas(60, 0)
	e := New(canvas, WithScheduler(q), WithHighlighter(hl))

	require.NoError(t, e.Render(token.Sequence{{Kind: token.KindCodeBlock, Content: "a\n", Language: "go"}}))
	require.NoError(t, e.Render(token.Sequence{{Kind: token.KindCodeBlock, Content: "b\n", Language: "go"}}))
	require.Equal(t, 2, q.Pending())

	q.Flush()
	assert.Equal(t, 1, hl.prepared, "only the current pass is highlighted")
	assert.Contains(t, canvas.Plain(), "<<b>>")
}

func TestSyntaxHighlightDisabled(t *testing.T) {
	t.Parallel()

	hl := &lazyHighlighter{ready: map[string]bool{"go": true}}
	canvas := surface.NewCanvas(60, 0)
	e := New(canvas, WithHighlighter(hl), WithSyntaxHighlight(false))
	require.NoError(t, e.Render(token.Sequence{{Kind: token.KindCodeBlock, Content: "x\n", Language: "go"}}))
	assert.NotContains(t, canvas.Plain(), "<<")
}

func TestStreamingCodeBlockIsLabelled(t *testing.T) {
	t.Parallel()

	canvas := surface.NewCanvas(60, 0)
	e := New(canvas, WithSyntaxHighlight(false))
	require.NoError(t, e.Render(token.Sequence{{Kind: token.KindCodeBlock, Content: "x\n", Language: "py", Incomplete: true}}))
	assert.Contains(t, canvas.Plain(), "py ● streaming")
}

func TestCompleteEventOnBus(t *testing.T) {
	t.Parallel()

	b := bus.New()
	e := New(surface.NewCanvas(60, 0), WithBus(b))
	require.NoError(t, e.Render(document()))

	history := b.History("render:complete")
	require.Len(t, history, 1)
	stats, ok := history[0].Payload.(Stats)
	require.True(t, ok)
	assert.Equal(t, 5, stats.Tokens)
	assert.Equal(t, 4, stats.Regions)
}

func TestHeight(t *testing.T) {
	t.Parallel()

	code := func(lines int) string { return strings.Repeat("x\n", lines) }
	tests := []struct {
		tok  token.Token
		want int
	}{
		{token.Token{Kind: token.KindHeading, Content: "h"}, 2},
		{token.Token{Kind: token.KindHorizontalRule}, 2},
		{token.Token{Kind: token.KindTable}, 5},
		{token.Token{Kind: token.KindCodeBlock, Content: code(3)}, 7},
		{token.Token{Kind: token.KindMathBlock, Content: code(2)}, 8},
		{token.Token{Kind: token.KindDiagram, Content: code(5)}, 9},
		{token.Token{Kind: token.KindDiagram, Content: code(100)}, 30},
		{token.Token{Kind: token.KindText, Content: strings.Repeat("a", 81)}, 2},
		{token.Token{Kind: token.KindText, Content: strings.Repeat("é", 80)}, 1},
		{token.Token{Kind: token.KindText}, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Height(tt.tok), "%s %q", tt.tok.Kind, tt.tok.Content)
	}
}

func TestFeaturesSelectTableLayout(t *testing.T) {
	t.Parallel()

	tbl := token.Sequence{{Kind: token.KindTable, Table: &token.Table{
		Header: []string{"name", "n"},
		Align:  []token.Alignment{token.AlignLeft, token.AlignRight},
		Rows:   [][]string{{"**a**", "1"}, {"b", "22"}},
	}}}

	pipe := surface.NewCanvas(60, 0)
	require.NoError(t, New(pipe).Render(tbl))
	assert.Contains(t, pipe.Plain(), "─┼─")
	assert.Contains(t, pipe.Plain(), "a    │  1")

	boxed := surface.NewCanvas(60, 0)
	require.NoError(t, New(boxed, WithFeatures(config.Features{AdvancedTables: true})).Render(tbl))
	assert.Contains(t, boxed.Plain(), "╭")
	assert.Contains(t, boxed.Plain(), "name")
}

func TestThemeOption(t *testing.T) {
	t.Parallel()

	light, ok := styles.Lookup("light")
	require.True(t, ok)
	assert.Same(t, light, New(surface.NewCanvas(10, 0), WithTheme(light)).Theme())
	assert.Same(t, styles.Default(), New(surface.NewCanvas(10, 0)).Theme())
}
