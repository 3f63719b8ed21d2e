package plugin

import (
	"strings"

	"github.com/docker/mdstream/pkg/token"
)

var diagramLanguages = map[string]bool{
	"mermaid":  true,
	"diagram":  true,
	"plantuml": true,
}

// Diagram re-types code blocks written in a diagram language.
type Diagram struct{}

func (Diagram) Name() string { return "diagram" }

func (Diagram) PostParse(tokens token.Sequence, _ *Context) (token.Sequence, []string, error) {
	for i, t := range tokens {
		if t.Kind == token.KindCodeBlock && diagramLanguages[strings.ToLower(t.Language)] {
			tokens[i].Kind = token.KindDiagram
		}
	}
	return tokens, nil, nil
}
