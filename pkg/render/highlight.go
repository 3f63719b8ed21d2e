package render

import (
	"regexp"
	"strings"
	"sync"
	"time"

	"charm.land/lipgloss/v2"
	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/patrickmn/go-cache"

	"github.com/docker/mdstream/pkg/styles"
)

// Highlighter colors source code for a terminal.
type Highlighter interface {
	Highlight(code, lang string) string
}

// Preparer is implemented by highlighters that resolve grammars lazily.
// The engine renders a code block plain when the grammar is not Ready and
// fills it in on the next tick, after Prepare.
type Preparer interface {
	Ready(lang string) bool
	Prepare(lang string)
}

const (
	highlightTTL     = 10 * time.Minute
	highlightCleanup = 5 * time.Minute
)

// ChromaHighlighter highlights with chroma lexers. Lexers are resolved on
// first use per language and highlighted blocks are cached.
type ChromaHighlighter struct {
	theme *styles.Theme

	mu     sync.RWMutex
	lexers map[string]chroma.Lexer

	stylesMu sync.RWMutex
	styles   map[chroma.TokenType]styles.Ansi

	results  *cache.Cache
	fallback Highlighter
}

// NewChromaHighlighter returns a highlighter that falls back to a
// RegexHighlighter for languages chroma does not know.
func NewChromaHighlighter(theme *styles.Theme) *ChromaHighlighter {
	return &ChromaHighlighter{
		theme:    theme,
		lexers:   map[string]chroma.Lexer{},
		styles:   map[chroma.TokenType]styles.Ansi{},
		results:  cache.New(highlightTTL, highlightCleanup),
		fallback: NewRegexHighlighter(theme),
	}
}

// Ready reports whether the grammar of lang has been resolved. Unknown
// languages become ready once a lookup has failed.
func (h *ChromaHighlighter) Ready(lang string) bool {
	lang = normalizeLang(lang)
	if lang == "" {
		return true
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.lexers[lang]
	return ok
}

func (h *ChromaHighlighter) Prepare(lang string) {
	h.lexer(lang)
}

func (h *ChromaHighlighter) lexer(lang string) chroma.Lexer {
	lang = normalizeLang(lang)
	h.mu.RLock()
	l, ok := h.lexers[lang]
	h.mu.RUnlock()
	if ok {
		return l
	}

	if lang != "" {
		l = lexers.Get(lang)
		if l == nil {
			l = lexers.Match("file." + lang)
		}
		if l != nil {
			l = chroma.Coalesce(l)
		}
	}

	h.mu.Lock()
	h.lexers[lang] = l
	h.mu.Unlock()
	return l
}

func (h *ChromaHighlighter) Highlight(code, lang string) string {
	key := normalizeLang(lang) + "\x00" + code
	if v, ok := h.results.Get(key); ok {
		return v.(string)
	}

	if normalizeLang(lang) == "" {
		return code
	}
	l := h.lexer(lang)
	if l == nil {
		return h.fallback.Highlight(code, lang)
	}
	iterator, err := l.Tokenise(nil, code)
	if err != nil {
		return h.fallback.Highlight(code, lang)
	}

	var out strings.Builder
	out.Grow(len(code) * 2)
	for _, tok := range iterator.Tokens() {
		if tok.Value == "" {
			continue
		}
		// styles must not span lines so the box can pad every line
		style := h.style(tok.Type)
		for i, part := range strings.Split(tok.Value, "\n") {
			if i > 0 {
				out.WriteByte('\n')
			}
			style.RenderTo(&out, part)
		}
	}
	result := out.String()
	h.results.SetDefault(key, result)
	return result
}

func (h *ChromaHighlighter) style(tokenType chroma.TokenType) styles.Ansi {
	h.stylesMu.RLock()
	style, ok := h.styles[tokenType]
	h.stylesMu.RUnlock()
	if ok {
		return style
	}

	style = styles.AnsiFrom(chromaToLipgloss(tokenType, h.theme.Chroma))

	h.stylesMu.Lock()
	h.styles[tokenType] = style
	h.stylesMu.Unlock()
	return style
}

func chromaToLipgloss(tokenType chroma.TokenType, style *chroma.Style) lipgloss.Style {
	entry := style.Get(tokenType)
	lipStyle := lipgloss.NewStyle()

	if entry.Colour.IsSet() {
		lipStyle = lipStyle.Foreground(lipgloss.Color(entry.Colour.String()))
	}
	if entry.Bold == chroma.Yes {
		lipStyle = lipStyle.Bold(true)
	}
	if entry.Italic == chroma.Yes {
		lipStyle = lipStyle.Italic(true)
	}
	if entry.Underline == chroma.Yes {
		lipStyle = lipStyle.Underline(true)
	}

	return lipStyle
}

func normalizeLang(lang string) string {
	return strings.ToLower(strings.TrimSpace(lang))
}

var regexSyntax = regexp.MustCompile(
	`(?P<comment>//[^\n]*|#[^\n]*|/\*[\s\S]*?\*/)` +
		`|(?P<string>"(?:[^"\\\n]|\\.)*"|'(?:[^'\\\n]|\\.)*'|` + "`[^`]*`" + `)` +
		`|(?P<number>\b\d+(?:\.\d+)?\b)` +
		`|(?P<keyword>\b(?:func|function|def|class|return|if|else|elif|for|while|switch|case|break|continue|import|from|package|var|let|const|type|struct|interface|go|defer|select|chan|map|range|try|catch|except|finally|raise|throw|new|async|await|yield|fn|pub|impl|use|mod|match|nil|null|None|true|false|True|False)\b)`,
)

// RegexHighlighter colors comments, strings, numbers and common keywords
// without any grammar. It is the fallback when chroma is not used.
type RegexHighlighter struct {
	comment, str, number, keyword styles.Ansi
}

func NewRegexHighlighter(theme *styles.Theme) *RegexHighlighter {
	p := theme.Palette
	color := func(c string) styles.Ansi {
		return styles.AnsiFrom(lipgloss.NewStyle().Foreground(lipgloss.Color(c)))
	}
	return &RegexHighlighter{
		comment: styles.AnsiFrom(lipgloss.NewStyle().Foreground(lipgloss.Color(p.ChromaComment)).Italic(true)),
		str:     color(p.ChromaString),
		number:  color(p.ChromaNumber),
		keyword: styles.AnsiFrom(lipgloss.NewStyle().Foreground(lipgloss.Color(p.ChromaKeyword)).Bold(true)),
	}
}

func (h *RegexHighlighter) Highlight(code, _ string) string {
	groups := regexSyntax.SubexpNames()
	var out strings.Builder
	pos := 0
	for _, m := range regexSyntax.FindAllStringSubmatchIndex(code, -1) {
		out.WriteString(code[pos:m[0]])
		style := h.keyword
		for g := 1; g < len(groups); g++ {
			if m[2*g] < 0 {
				continue
			}
			switch groups[g] {
			case "comment":
				style = h.comment
			case "string":
				style = h.str
			case "number":
				style = h.number
			}
			break
		}
		for i, part := range strings.Split(code[m[0]:m[1]], "\n") {
			if i > 0 {
				out.WriteByte('\n')
			}
			style.RenderTo(&out, part)
		}
		pos = m[1]
	}
	out.WriteString(code[pos:])
	return out.String()
}
