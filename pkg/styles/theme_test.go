package styles

import (
	"strings"
	"testing"

	"charm.land/lipgloss/v2"
	"github.com/alecthomas/chroma/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup(t *testing.T) {
	t.Parallel()

	for _, name := range Names() {
		theme, ok := Lookup(name)
		require.True(t, ok, name)
		assert.Equal(t, name, theme.Name)
		assert.NotNil(t, theme.Chroma)

		again, _ := Lookup(name)
		assert.Same(t, theme, again, "themes are resolved once")
	}

	_, ok := Lookup("neon")
	assert.False(t, ok)
	assert.Equal(t, DefaultTheme, Default().Name)
}

func TestAnsiFromWrapsText(t *testing.T) {
	t.Parallel()

	s := AnsiFrom(lipgloss.NewStyle().Bold(true))
	out := s.Render("hi")
	assert.True(t, strings.HasPrefix(out, "\x1b["))
	assert.Contains(t, out, "hi")

	var b strings.Builder
	s.RenderTo(&b, "hi")
	assert.Equal(t, out, b.String())

	assert.Equal(t, "plain", Ansi{}.Render("plain"))
	assert.True(t, Ansi{}.IsZero())
}

func TestHeadingClampsLevel(t *testing.T) {
	t.Parallel()

	theme := Default()
	_, prefix := theme.Heading(0)
	assert.Empty(t, prefix)
	_, prefix = theme.Heading(9)
	assert.Equal(t, "###### ", prefix)
	_, prefix = theme.Heading(2)
	assert.Equal(t, "## ", prefix)
}

func TestChromaStyleFollowsPalette(t *testing.T) {
	t.Parallel()

	dark, _ := Lookup("dark")
	entry := dark.Chroma.Get(chroma.Keyword)
	assert.Equal(t, strings.ToLower(darkPalette.ChromaKeyword), strings.ToLower(entry.Colour.String()))
}

func TestToChroma(t *testing.T) {
	t.Parallel()

	sp := fg("#fff")
	sp.BackgroundColor = stringPtr("#000")
	sp.Italic = boolPtr(true)
	sp.Bold = boolPtr(true)
	sp.Underline = boolPtr(true)

	assert.Equal(t, "#fff bg:#000 italic bold underline", toChroma(sp))
	assert.Empty(t, toChroma(fg("")))
}
