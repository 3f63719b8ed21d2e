package render

import (
	"strings"

	"github.com/rivo/uniseg"

	"github.com/docker/mdstream/pkg/token"
)

const (
	// estimateColumns is the line length the default height estimate
	// assumes.
	estimateColumns = 80
	maxDiagramLines = 30
)

// Height estimates the rows a block occupies before it is rendered. The
// engine uses the larger of this estimate and the rendered line count.
func Height(t token.Token) int {
	switch t.Kind {
	case token.KindHeading, token.KindHorizontalRule:
		return 2
	case token.KindTable:
		return 5
	case token.KindCodeBlock:
		return t.Lines() + 4
	case token.KindMathBlock:
		return t.Lines() + 6
	case token.KindDiagram:
		return min(t.Lines()+4, maxDiagramLines)
	}
	n := uniseg.GraphemeClusterCount(t.Content)
	return (n + estimateColumns - 1) / estimateColumns
}

// lineCount counts the rows of rendered text.
func lineCount(s string) int {
	if s == "" {
		return 0
	}
	return strings.Count(s, "\n") + 1
}
