package diagram

import (
	"fmt"
	"strings"
)

// issueTag returns a short ASCII indicator for a validation severity.
func issueTag(o *IssueOverlay) string {
	if o == nil {
		return ""
	}
	switch o.Severity {
	case "error":
		return "[ERR]"
	case "warning":
		return "[WARN]"
	default:
		return ""
	}
}

// kindGlyph frames a label the way each shape reads at a glance.
func kindGlyph(n *Node) string {
	label := firstLine(n.Label)
	switch n.Kind {
	case NodeKindGateway:
		return "<" + label + ">"
	case NodeKindStart, NodeKindIntermediate, NodeKindEnd:
		return "(" + label + ")"
	case NodeKindSubProcess:
		return "[+] " + label
	case NodeKindAnnotation:
		return "# " + label
	default:
		if n.Boundary {
			return label + " @timer"
		}
		return label
	}
}

// RenderASCII renders a DiagramModel as a text diagram: one row of boxes per
// level, then the edge list.
func RenderASCII(model *DiagramModel) string {
	var b strings.Builder

	if model.Title != "" {
		b.WriteString(fmt.Sprintf("=== %s ===\n\n", model.Title))
	}

	index := make(map[string]*Node, len(model.Nodes))
	for _, n := range model.Nodes {
		index[n.ID] = n
	}

	for levelIdx, level := range model.Levels {
		var boxes []asciiBox
		for _, id := range level {
			if n := index[id]; n != nil {
				boxes = append(boxes, makeBox(n))
			}
		}
		renderBoxRow(&b, boxes)
		if levelIdx < len(model.Levels)-1 {
			renderConnector(&b, len(boxes))
		}
	}

	if len(model.Edges) > 0 {
		b.WriteString("\n--- routes ---\n")
		for _, e := range model.Edges {
			label := ""
			if e.Label != "" {
				label = " [" + e.Label + "]"
			}
			b.WriteString(fmt.Sprintf("  %s: %s ─→ %s%s\n", e.ID, displayName(index, e.From), displayName(index, e.To), label))
		}
	}
	if len(model.Dropped) > 0 {
		b.WriteString(fmt.Sprintf("\n(dropped routes: %s)\n", strings.Join(model.Dropped, ", ")))
	}
	return b.String()
}

func displayName(index map[string]*Node, id string) string {
	if n := index[id]; n != nil && n.Synthesized {
		return "End"
	}
	return id
}

// asciiBox holds the rendered lines of a single box.
type asciiBox struct {
	lines []string
	width int
}

func makeBox(n *Node) asciiBox {
	content := []string{kindGlyph(n)}
	if tag := issueTag(n.Issue); tag != "" {
		content = append(content, tag)
	}

	maxLen := 0
	for _, line := range content {
		if l := len([]rune(line)); l > maxLen {
			maxLen = l
		}
	}
	width := maxLen + 4

	lines := []string{"┌" + strings.Repeat("─", width-2) + "┐"}
	for _, c := range content {
		lines = append(lines, "│ "+c+strings.Repeat(" ", maxLen-len([]rune(c)))+" │")
	}
	lines = append(lines, "└"+strings.Repeat("─", width-2)+"┘")
	return asciiBox{lines: lines, width: width}
}

// firstLine returns only the first line of a multi-line label.
func firstLine(s string) string {
	if i := strings.Index(s, "\n"); i >= 0 {
		return s[:i]
	}
	return s
}

// renderBoxRow writes boxes side by side.
func renderBoxRow(b *strings.Builder, boxes []asciiBox) {
	maxHeight := 0
	for _, box := range boxes {
		if len(box.lines) > maxHeight {
			maxHeight = len(box.lines)
		}
	}
	for row := 0; row < maxHeight; row++ {
		for i, box := range boxes {
			if i > 0 {
				b.WriteString("  ")
			}
			if row < len(box.lines) {
				b.WriteString(box.lines[row])
			} else {
				b.WriteString(strings.Repeat(" ", box.width))
			}
		}
		b.WriteByte('\n')
	}
}

func renderConnector(b *strings.Builder, boxCount int) {
	if boxCount == 0 {
		return
	}
	b.WriteString("       │\n")
	b.WriteString("       ▼\n")
}
