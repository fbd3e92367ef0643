package diagram

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// RenderASCIIAuto renders through the mermaid-ascii binary at binPath when it
// exists, falling back to RenderASCII.
func RenderASCIIAuto(ctx context.Context, model *DiagramModel, binPath string) string {
	if binPath != "" {
		if _, err := os.Stat(binPath); err == nil {
			if out, err := RenderASCIIViaCLI(ctx, model, binPath); err == nil {
				return out
			}
		}
	}
	return RenderASCII(model)
}

// RenderASCIIViaCLI pipes simplified Mermaid syntax through mermaid-ascii.
func RenderASCIIViaCLI(ctx context.Context, model *DiagramModel, binPath string) (string, error) {
	cmd := exec.CommandContext(ctx, binPath)
	cmd.Stdin = strings.NewReader(RenderMermaidForCLI(model))
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("mermaid-ascii: %w: %s", err, stderr.String())
	}
	return stdout.String(), nil
}

// RenderMermaidForCLI generates the edge-only Mermaid subset mermaid-ascii
// parses. Node labels become the ids, so two nodes with the same label merge;
// the node id is appended when that would happen.
func RenderMermaidForCLI(model *DiagramModel) string {
	var b strings.Builder
	b.WriteString("graph TD\n")

	display := make(map[string]string, len(model.Nodes))
	used := make(map[string]bool, len(model.Nodes))
	for _, n := range model.Nodes {
		name := cliNodeID(n)
		if used[name] {
			name += "-" + mermaidSafeID(n.ID)
		}
		used[name] = true
		display[n.ID] = name
	}

	connected := make(map[string]bool)
	for _, e := range model.Edges {
		label := ""
		if e.Label != "" {
			label = fmt.Sprintf("|%s|", e.Label)
		}
		b.WriteString(fmt.Sprintf("    %s -->%s %s\n", display[e.From], label, display[e.To]))
		connected[e.From], connected[e.To] = true, true
	}
	// Shapes without routes still show up as bare nodes.
	for _, n := range model.Nodes {
		if !connected[n.ID] {
			b.WriteString(fmt.Sprintf("    %s\n", display[n.ID]))
		}
	}
	return b.String()
}

// cliNodeID builds a display id: the label with spaces dashed, plus a
// severity tag when the node has findings.
func cliNodeID(n *Node) string {
	id := firstLine(n.Label)
	if id == "" {
		id = n.ID
	}
	if n.Issue != nil {
		switch n.Issue.Severity {
		case "error":
			id += "-ERR"
		case "warning":
			id += "-WARN"
		}
	}
	return strings.NewReplacer(" ", "-", "|", "-", ":", "-").Replace(id)
}
