package render

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/docker/mdstream/pkg/styles"
	"github.com/docker/mdstream/pkg/token"
)

var (
	mermaidHeader = regexp.MustCompile(`^(graph|flowchart)\s+(TD|TB|BT|LR|RL)\b`)
	mermaidEdge   = regexp.MustCompile(`^(.+?)\s*(-->|---|-\.->|==>|--o|--x)\s*(?:\|([^|]*)\|\s*)?(.+)$`)
	mermaidNode   = regexp.MustCompile(`^([\w-]+)\s*(\[\[?.*?\]?\]|\(\(?.*?\)?\)|\{.*?\}|>.*?\])?$`)
)

var edgeArrows = map[string]string{
	"-->":  "──▶",
	"---":  "───",
	"-.->": "┄┄▶",
	"==>":  "══▶",
	"--o":  "──○",
	"--x":  "──✕",
}

// renderDiagram draws the edges of a mermaid flowchart as arrows inside a
// box. Other diagram languages are shown as source. The block never grows
// beyond the diagram height cap.
func renderDiagram(th *styles.Theme, t token.Token, width int) string {
	lines := diagramLines(t)

	// label line, two border rows
	limit := maxDiagramLines - 3
	if len(lines) > limit {
		hidden := len(lines) - limit + 1
		lines = append(lines[:limit-1], th.CodeLabel.Render(fmt.Sprintf("… %d more lines", hidden)))
	}

	inner := max(width-4, 1)
	for i, l := range lines {
		lines[i] = truncate(l, inner)
	}
	box := th.DiagramBox.Render(strings.Join(lines, "\n"))
	return label(th, "diagram: "+strings.ToLower(t.Language), t.Incomplete) + "\n" + box
}

func diagramLines(t token.Token) []string {
	var out []string
	for raw := range strings.SplitSeq(strings.TrimRight(t.Content, "\n"), "\n") {
		line := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(raw), ";"))
		if line == "" || strings.HasPrefix(line, "%%") {
			continue
		}
		if !strings.EqualFold(t.Language, "mermaid") {
			out = append(out, raw)
			continue
		}
		if m := mermaidHeader.FindStringSubmatch(line); m != nil {
			out = append(out, fmt.Sprintf("flowchart (%s)", m[2]))
			continue
		}
		if m := mermaidEdge.FindStringSubmatch(line); m != nil {
			arrow := edgeArrows[m[2]]
			if m[3] != "" {
				arrow = "─ " + strings.TrimSpace(m[3]) + " " + arrow
			}
			out = append(out, "  "+nodeLabel(m[1])+" "+arrow+" "+nodeLabel(m[4]))
			continue
		}
		out = append(out, "  "+line)
	}
	if len(out) == 0 {
		out = append(out, "")
	}
	return out
}

// nodeLabel shows a node by its label when it has one: A[Start] is shown
// as [Start], A{Ok?} as {Ok?}.
func nodeLabel(node string) string {
	node = strings.TrimSpace(node)
	m := mermaidNode.FindStringSubmatch(node)
	if m == nil || m[2] == "" {
		return node
	}
	return m[2]
}
