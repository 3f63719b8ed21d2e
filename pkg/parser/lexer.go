package parser

import (
	"fmt"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	gparser "github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"

	"github.com/docker/mdstream/pkg/token"
)

// Lexer turns a complete buffer into tokens.
type Lexer interface {
	Lex(src []byte) (token.Sequence, error)
}

// LexerFunc adapts a function to the Lexer interface.
type LexerFunc func(src []byte) (token.Sequence, error)

func (f LexerFunc) Lex(src []byte) (token.Sequence, error) {
	return f(src)
}

// GoldmarkLexer lexes CommonMark, plus tables, strikethrough, task lists
// and autolinks when GFM is enabled.
type GoldmarkLexer struct {
	parser gparser.Parser
}

func NewGoldmarkLexer(gfm bool) *GoldmarkLexer {
	var opts []goldmark.Option
	if gfm {
		opts = append(opts, goldmark.WithExtensions(extension.GFM))
	}
	return &GoldmarkLexer{parser: goldmark.New(opts...).Parser()}
}

// Lex parses src. A panic inside goldmark is returned as an error so the
// caller can fall back to the line parser.
func (l *GoldmarkLexer) Lex(src []byte) (seq token.Sequence, err error) {
	defer func() {
		if r := recover(); r != nil {
			seq = nil
			err = fmt.Errorf("goldmark panicked: %v", r)
		}
	}()

	doc := l.parser.Parse(text.NewReader(src))
	return normalize(doc, src), nil
}
