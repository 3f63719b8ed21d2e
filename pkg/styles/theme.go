// Package styles resolves the built-in themes into ready-to-use lipgloss
// styles, pre-computed ANSI sequences and a chroma style.
package styles

import (
	"strings"
	"sync"

	"charm.land/glamour/v2/ansi"
	"charm.land/lipgloss/v2"
	"github.com/alecthomas/chroma/v2"
)

// DefaultTheme is used when no theme is configured.
const DefaultTheme = "dark"

// Ansi holds pre-computed ANSI escape sequences for fast rendering.
// This avoids the overhead of lipgloss.Style.Render() on every inline span.
type Ansi struct {
	prefix string
	suffix string
}

func (s Ansi) Render(text string) string {
	if s.prefix == "" || text == "" {
		return text
	}
	return s.prefix + text + s.suffix
}

// RenderTo writes styled text directly to a builder.
func (s Ansi) RenderTo(b *strings.Builder, text string) {
	if s.prefix == "" || text == "" {
		b.WriteString(text)
		return
	}
	b.WriteString(s.prefix)
	b.WriteString(text)
	b.WriteString(s.suffix)
}

// IsZero reports whether the style emits no escape sequences.
func (s Ansi) IsZero() bool {
	return s.prefix == ""
}

// AnsiFrom extracts ANSI codes from a lipgloss style by rendering a marker.
func AnsiFrom(style lipgloss.Style) Ansi {
	const marker = "\x00"
	rendered := style.Render(marker)
	before, after, ok := strings.Cut(rendered, marker)
	if !ok {
		return Ansi{}
	}
	return Ansi{prefix: before, suffix: after}
}

// FromPrimitive converts a glamour style primitive to a lipgloss style.
func FromPrimitive(sp ansi.StylePrimitive) lipgloss.Style {
	style := lipgloss.NewStyle()

	if sp.Color != nil {
		style = style.Foreground(lipgloss.Color(*sp.Color))
	}
	if sp.BackgroundColor != nil {
		style = style.Background(lipgloss.Color(*sp.BackgroundColor))
	}
	if sp.Bold != nil && *sp.Bold {
		style = style.Bold(true)
	}
	if sp.Italic != nil && *sp.Italic {
		style = style.Italic(true)
	}
	if sp.Underline != nil && *sp.Underline {
		style = style.Underline(true)
	}
	if sp.CrossedOut != nil && *sp.CrossedOut {
		style = style.Strikethrough(true)
	}

	return style
}

// Theme is a fully resolved theme. Themes are immutable once built.
type Theme struct {
	Name     string
	Palette  Palette
	Markdown ansi.StyleConfig
	Chroma   *chroma.Style

	Headings        [6]lipgloss.Style
	HeadingPrefixes [6]string
	Blockquote      lipgloss.Style
	HorizontalRule  lipgloss.Style
	CodeBackground  lipgloss.Style
	CodeBlock       lipgloss.Style
	CodeLabel       lipgloss.Style
	StreamingLabel  lipgloss.Style
	MathBox         lipgloss.Style
	DiagramBox      lipgloss.Style
	TableBorder     lipgloss.Style
	TableHeader     lipgloss.Style
	TableCell       lipgloss.Style
	ListMarker      lipgloss.Style

	Text       Ansi
	Bold       Ansi
	Italic     Ansi
	BoldItalic Ansi
	Strike     Ansi
	Code       Ansi
	Link       Ansi
	LinkText   Ansi
	Math       Ansi

	TaskTicked       string
	TaskUnticked     string
	Bullet           string
	QuoteToken       string
	ListIndent       int
	BlockquoteIndent int
	HorizontalRuleCh string
}

// Names lists the built-in themes.
func Names() []string {
	return []string{"dark", "light"}
}

var themes = map[string]func() *Theme{
	"dark":  sync.OnceValue(func() *Theme { return build("dark", darkPalette, "252") }),
	"light": sync.OnceValue(func() *Theme { return build("light", lightPalette, "236") }),
}

// Lookup returns the built-in theme called name.
func Lookup(name string) (*Theme, bool) {
	fn, ok := themes[name]
	if !ok {
		return nil, false
	}
	return fn(), true
}

// Default returns the dark theme.
func Default() *Theme {
	t, _ := Lookup(DefaultTheme)
	return t
}

func build(name string, p Palette, documentColor string) *Theme {
	md := markdownStyle(p, documentColor)

	cs, err := chromaStyle(name, md)
	if err != nil {
		panic(err)
	}

	bold := FromPrimitive(md.Strong)
	italic := FromPrimitive(md.Emph)
	codeBg := lipgloss.NewStyle().Background(lipgloss.Color(p.BackgroundAlt))
	border := lipgloss.Color(p.Border)

	t := &Theme{
		Name:     name,
		Palette:  p,
		Markdown: md,
		Chroma:   cs,
		Headings: [6]lipgloss.Style{
			FromPrimitive(md.H1.StylePrimitive),
			FromPrimitive(md.H2.StylePrimitive).Bold(true),
			FromPrimitive(md.H3.StylePrimitive).Bold(true),
			FromPrimitive(md.H4.StylePrimitive).Bold(true),
			FromPrimitive(md.H5.StylePrimitive),
			FromPrimitive(md.H6.StylePrimitive),
		},
		HeadingPrefixes: [6]string{"", "## ", "### ", "#### ", "##### ", "###### "},
		Blockquote:      FromPrimitive(md.BlockQuote.StylePrimitive),
		HorizontalRule:  FromPrimitive(md.HorizontalRule),
		CodeBackground:  codeBg,
		CodeBlock: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(border).
			Padding(0, 1),
		CodeLabel:      lipgloss.NewStyle().Foreground(lipgloss.Color(p.Muted)).Italic(true),
		StreamingLabel: lipgloss.NewStyle().Foreground(lipgloss.Color(p.Warning)).Italic(true),
		MathBox: lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).
			BorderForeground(lipgloss.Color(p.Info)).
			Padding(1, 2),
		DiagramBox: lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color(p.Success)).
			Padding(0, 1),
		TableBorder: lipgloss.NewStyle().Foreground(border),
		TableHeader: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(p.Accent)).Padding(0, 1),
		TableCell:   lipgloss.NewStyle().Padding(0, 1),
		ListMarker:  lipgloss.NewStyle().Foreground(lipgloss.Color(p.Accent)),

		Text:       AnsiFrom(FromPrimitive(md.Document.StylePrimitive)),
		Bold:       AnsiFrom(bold),
		Italic:     AnsiFrom(italic),
		BoldItalic: AnsiFrom(bold.Inherit(italic)),
		Strike:     AnsiFrom(FromPrimitive(md.Strikethrough)),
		Code:       AnsiFrom(FromPrimitive(md.Code.StylePrimitive)),
		Link:       AnsiFrom(FromPrimitive(md.Link)),
		LinkText:   AnsiFrom(FromPrimitive(md.LinkText)),
		Math:       AnsiFrom(lipgloss.NewStyle().Foreground(lipgloss.Color(p.Info)).Italic(true)),

		TaskTicked:       md.Task.Ticked,
		TaskUnticked:     md.Task.Unticked,
		Bullet:           strings.TrimSpace(md.Item.BlockPrefix),
		QuoteToken:       "│ ",
		ListIndent:       int(md.List.LevelIndent),
		BlockquoteIndent: 1,
		HorizontalRuleCh: "─",
	}
	if md.BlockQuote.Indent != nil {
		t.BlockquoteIndent = int(*md.BlockQuote.Indent)
	}
	if md.BlockQuote.IndentToken != nil {
		t.QuoteToken = *md.BlockQuote.IndentToken
	}
	return t
}

// Heading returns the style and prefix of a heading level, clamped to 1-6.
func (t *Theme) Heading(level int) (lipgloss.Style, string) {
	level = min(max(level, 1), 6)
	return t.Headings[level-1], t.HeadingPrefixes[level-1]
}
