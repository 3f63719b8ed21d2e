// Package parser incrementally tokenizes a growing markdown buffer. Every
// chunk re-parses the whole buffer; the trailing construct that has not been
// closed yet is flagged incomplete.
package parser

import (
	"errors"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/charmbracelet/x/ansi"

	"github.com/docker/mdstream/pkg/recovery"
	"github.com/docker/mdstream/pkg/token"
)

// Transform rewrites the buffer before it is lexed.
type Transform func(src string) string

type Option func(*Parser)

// WithGFM toggles the GitHub Flavored Markdown extensions of the default
// lexer.
func WithGFM(enabled bool) Option {
	return func(p *Parser) {
		p.gfm = enabled
	}
}

// WithIncomplete toggles detection of unterminated trailing constructs.
func WithIncomplete(enabled bool) Option {
	return func(p *Parser) {
		p.incomplete = enabled
	}
}

// WithLexer replaces the goldmark lexer.
func WithLexer(l Lexer) Option {
	return func(p *Parser) {
		p.lexer = l
	}
}

// WithFallback replaces the line-oriented lexer used when the main lexer
// fails.
func WithFallback(l Lexer) Option {
	return func(p *Parser) {
		p.fallback = l
	}
}

// WithTransform appends a pre-lex rewrite of the buffer.
func WithTransform(t Transform) Option {
	return func(p *Parser) {
		p.transforms = append(p.transforms, t)
	}
}

func WithClock(now func() time.Time) Option {
	return func(p *Parser) {
		p.now = now
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Parser) {
		p.logger = logger
	}
}

// Parser owns one stream buffer. It is not safe for concurrent use.
type Parser struct {
	content   strings.Builder
	tokens    token.Sequence
	updatedAt time.Time

	lexer      Lexer
	fallback   Lexer
	transforms []Transform
	gfm        bool
	incomplete bool
	now        func() time.Time
	logger     *slog.Logger
}

func New(opts ...Option) *Parser {
	p := &Parser{
		fallback:   PartialLexer{},
		gfm:        true,
		incomplete: true,
		now:        time.Now,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.lexer == nil {
		p.lexer = NewGoldmarkLexer(p.gfm)
	}
	return p
}

// AddChunk appends text to the buffer and re-parses it.
func (p *Parser) AddChunk(text string) (token.Sequence, error) {
	p.content.WriteString(NormalizeChunk(text))
	return p.Parse()
}

// Parse tokenizes the current buffer. It is idempotent for a given buffer.
func (p *Parser) Parse() (token.Sequence, error) {
	src := RewriteCustomTags(p.content.String())
	for _, t := range p.transforms {
		src = t(src)
	}

	seq, err := p.lex(src)
	if err != nil {
		return p.tokens, &recovery.ParseError{
			Chunk:    tail(src, 256),
			Position: len(src),
			Err:      err,
		}
	}

	if p.incomplete {
		seq = markIncomplete(seq, src, func(prefix string) token.Sequence {
			prefixSeq, _ := p.lex(prefix)
			return prefixSeq
		})
	}

	p.tokens = seq
	p.updatedAt = p.now()
	return seq.Clone(), nil
}

// lex runs the main lexer and switches to the fallback when it fails.
func (p *Parser) lex(src string) (token.Sequence, error) {
	seq, err := p.lexer.Lex([]byte(src))
	if err == nil {
		return seq, nil
	}
	p.logger.Warn("Lexer failed, falling back to line parser", "error", err)
	seq, fallbackErr := p.fallback.Lex([]byte(src))
	if fallbackErr != nil {
		return nil, errors.Join(err, fallbackErr)
	}
	return seq, nil
}

// Clear resets the buffer and the tokens.
func (p *Parser) Clear() {
	p.content.Reset()
	p.tokens = nil
	p.updatedAt = time.Time{}
}

// Content returns the accumulated buffer.
func (p *Parser) Content() string {
	return p.content.String()
}

// Tokens returns the tokens of the last successful parse.
func (p *Parser) Tokens() token.Sequence {
	return p.tokens.Clone()
}

// UpdatedAt returns when the buffer was last parsed.
func (p *Parser) UpdatedAt() time.Time {
	return p.updatedAt
}

// NormalizeChunk strips escape sequences and the control characters that
// move the cursor or alter the layout. Newlines and tabs are kept. The
// inline math marker is reserved and removed too.
func NormalizeChunk(s string) string {
	if s == "" {
		return s
	}
	if strings.IndexByte(s, 0x1b) >= 0 {
		s = ansi.Strip(s)
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\t':
			return r
		case r < 0x20 || r == 0x7f || string(r) == token.MathInlineMarker:
			return -1
		}
		return r
	}, s)
}

var customTags = []struct {
	re     *regexp.Regexp
	marker string
}{
	{regexp.MustCompile(`(?s)\{bold\}(.*?)\{/bold\}`), "**"},
	{regexp.MustCompile(`(?s)\{italic\}(.*?)\{/italic\}`), "*"},
	{regexp.MustCompile(`(?s)\{code\}(.*?)\{/code\}`), "`"},
	{regexp.MustCompile(`(?s)\{strike\}(.*?)\{/strike\}`), "~~"},
}

// RewriteCustomTags turns {bold}x{/bold} style tags into markdown.
func RewriteCustomTags(s string) string {
	if !strings.Contains(s, "{/") {
		return s
	}
	for _, t := range customTags {
		s = t.re.ReplaceAllString(s, t.marker+"${1}"+t.marker)
	}
	return s
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
