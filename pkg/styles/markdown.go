package styles

import (
	"strings"

	"charm.land/glamour/v2/ansi"
	"github.com/alecthomas/chroma/v2"
)

const (
	defaultListIndent = 2
	defaultMargin     = 2
)

// markdownStyle builds the glamour style config for a palette. The document
// color is an 8-bit code so it degrades on limited terminals.
func markdownStyle(p Palette, documentColor string) ansi.StyleConfig {
	cfg := ansi.StyleConfig{
		Document: ansi.StyleBlock{
			StylePrimitive: ansi.StylePrimitive{
				Color: stringPtr(documentColor),
			},
			Margin: uintPtr(0),
		},
		BlockQuote: ansi.StyleBlock{
			StylePrimitive: ansi.StylePrimitive{
				Color:  stringPtr(p.TextSecondary),
				Italic: boolPtr(true),
			},
			Indent:      uintPtr(1),
			IndentToken: stringPtr("│ "),
		},
		List: ansi.StyleList{
			StyleBlock: ansi.StyleBlock{
				StylePrimitive: ansi.StylePrimitive{
					Color: stringPtr(p.TextPrimary),
				},
			},
			LevelIndent: defaultListIndent,
		},
		Heading: ansi.StyleBlock{
			StylePrimitive: ansi.StylePrimitive{
				BlockSuffix: "\n",
				Color:       stringPtr(p.Accent),
				Bold:        boolPtr(true),
			},
		},
		H1: ansi.StyleBlock{
			StylePrimitive: ansi.StylePrimitive{
				Prefix:          " ",
				Suffix:          " ",
				Color:           stringPtr(p.TextPrimary),
				BackgroundColor: stringPtr(p.BackgroundAlt),
				Bold:            boolPtr(true),
			},
		},
		H2: headingBlock("## ", p.Accent),
		H3: headingBlock("### ", p.TextSecondary),
		H4: headingBlock("#### ", p.TextSecondary),
		H5: headingBlock("##### ", p.TextSecondary),
		H6: headingBlock("###### ", p.Muted),
		Strikethrough: ansi.StylePrimitive{
			CrossedOut: boolPtr(true),
		},
		Emph: ansi.StylePrimitive{
			Italic: boolPtr(true),
		},
		Strong: ansi.StylePrimitive{
			Color: stringPtr(p.TextPrimary),
			Bold:  boolPtr(true),
		},
		HorizontalRule: ansi.StylePrimitive{
			Color:  stringPtr(p.Border),
			Format: "--------",
		},
		Item: ansi.StylePrimitive{
			BlockPrefix: "• ",
		},
		Enumeration: ansi.StylePrimitive{
			BlockPrefix: ". ",
		},
		Task: ansi.StyleTask{
			Ticked:   "[✓] ",
			Unticked: "[ ] ",
		},
		Link: ansi.StylePrimitive{
			Color:     stringPtr(p.Accent),
			Underline: boolPtr(true),
		},
		LinkText: ansi.StylePrimitive{
			Color: stringPtr(p.Info),
			Bold:  boolPtr(true),
		},
		Code: ansi.StyleBlock{
			StylePrimitive: ansi.StylePrimitive{
				Prefix:          " ",
				Suffix:          " ",
				Color:           stringPtr(p.TextPrimary),
				BackgroundColor: stringPtr(p.BackgroundAlt),
			},
		},
		CodeBlock: ansi.StyleCodeBlock{
			StyleBlock: ansi.StyleBlock{
				StylePrimitive: ansi.StylePrimitive{
					Color:           stringPtr(p.TextSecondary),
					BackgroundColor: stringPtr(p.BackgroundAlt),
				},
				Margin: uintPtr(defaultMargin),
			},
			Chroma: &ansi.Chroma{
				Text:                fg(p.ChromaText),
				Error:               ansi.StylePrimitive{Color: stringPtr(p.ChromaError), BackgroundColor: stringPtr(p.ChromaErrorBg)},
				Comment:             ansi.StylePrimitive{Color: stringPtr(p.ChromaComment), Italic: boolPtr(true)},
				CommentPreproc:      fg(p.ChromaPreproc),
				Keyword:             fg(p.ChromaKeyword),
				KeywordReserved:     fg(p.ChromaReserved),
				KeywordNamespace:    fg(p.ChromaNamespace),
				KeywordType:         fg(p.ChromaType),
				Operator:            fg(p.ChromaOperator),
				Punctuation:         fg(p.ChromaPunctuation),
				Name:                fg(p.ChromaText),
				NameBuiltin:         fg(p.ChromaBuiltin),
				NameTag:             fg(p.ChromaTag),
				NameAttribute:       fg(p.ChromaAttribute),
				NameClass:           ansi.StylePrimitive{Color: stringPtr(p.ChromaText), Underline: boolPtr(true), Bold: boolPtr(true)},
				NameDecorator:       fg(p.ChromaDecorator),
				NameFunction:        fg(p.ChromaFunction),
				LiteralNumber:       fg(p.ChromaNumber),
				LiteralString:       fg(p.ChromaString),
				LiteralStringEscape: fg(p.ChromaEscape),
				GenericDeleted:      fg(p.ChromaDeleted),
				GenericEmph:         ansi.StylePrimitive{Italic: boolPtr(true)},
				GenericInserted:     fg(p.ChromaFunction),
				GenericStrong:       ansi.StylePrimitive{Bold: boolPtr(true)},
				GenericSubheading:   fg(p.ChromaSubheading),
				Background:          ansi.StylePrimitive{BackgroundColor: stringPtr(p.ChromaBackground)},
			},
		},
		Table: ansi.StyleTable{
			CenterSeparator: stringPtr("┼"),
			ColumnSeparator: stringPtr("│"),
			RowSeparator:    stringPtr("─"),
		},
	}
	return cfg
}

func headingBlock(prefix, color string) ansi.StyleBlock {
	return ansi.StyleBlock{
		StylePrimitive: ansi.StylePrimitive{
			Prefix: prefix,
			Color:  stringPtr(color),
		},
	}
}

func fg(color string) ansi.StylePrimitive {
	return ansi.StylePrimitive{Color: stringPtr(color)}
}

func toChroma(style ansi.StylePrimitive) string {
	var s []string

	if style.Color != nil {
		s = append(s, *style.Color)
	}
	if style.BackgroundColor != nil {
		s = append(s, "bg:"+*style.BackgroundColor)
	}
	if style.Italic != nil && *style.Italic {
		s = append(s, "italic")
	}
	if style.Bold != nil && *style.Bold {
		s = append(s, "bold")
	}
	if style.Underline != nil && *style.Underline {
		s = append(s, "underline")
	}

	return strings.Join(s, " ")
}

// chromaStyle derives the chroma style from the code block colors of md.
func chromaStyle(name string, md ansi.StyleConfig) (*chroma.Style, error) {
	c := md.CodeBlock.Chroma
	return chroma.NewStyle("mdstream-"+name, chroma.StyleEntries{
		chroma.Text:                toChroma(c.Text),
		chroma.Error:               toChroma(c.Error),
		chroma.Comment:             toChroma(c.Comment),
		chroma.CommentPreproc:      toChroma(c.CommentPreproc),
		chroma.Keyword:             toChroma(c.Keyword),
		chroma.KeywordReserved:     toChroma(c.KeywordReserved),
		chroma.KeywordNamespace:    toChroma(c.KeywordNamespace),
		chroma.KeywordType:         toChroma(c.KeywordType),
		chroma.Operator:            toChroma(c.Operator),
		chroma.Punctuation:         toChroma(c.Punctuation),
		chroma.Name:                toChroma(c.Name),
		chroma.NameBuiltin:         toChroma(c.NameBuiltin),
		chroma.NameTag:             toChroma(c.NameTag),
		chroma.NameAttribute:       toChroma(c.NameAttribute),
		chroma.NameClass:           toChroma(c.NameClass),
		chroma.NameDecorator:       toChroma(c.NameDecorator),
		chroma.NameFunction:        toChroma(c.NameFunction),
		chroma.LiteralNumber:       toChroma(c.LiteralNumber),
		chroma.LiteralString:       toChroma(c.LiteralString),
		chroma.LiteralStringEscape: toChroma(c.LiteralStringEscape),
		chroma.GenericDeleted:      toChroma(c.GenericDeleted),
		chroma.GenericEmph:         toChroma(c.GenericEmph),
		chroma.GenericInserted:     toChroma(c.GenericInserted),
		chroma.GenericStrong:       toChroma(c.GenericStrong),
		chroma.GenericSubheading:   toChroma(c.GenericSubheading),
		chroma.Background:          toChroma(c.Background),
	})
}

func uintPtr(u uint) *uint {
	return &u
}

func boolPtr(b bool) *bool {
	return &b
}

func stringPtr(s string) *string {
	return &s
}
