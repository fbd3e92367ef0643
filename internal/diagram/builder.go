package diagram

import "github.com/rendis/procdesigner/pkg/schema"

// Build constructs a DiagramModel from a diagram. Terminating routes get a
// synthesized end node each, the same way the designer rebuilds them on
// load, and routes with a missing endpoint are left out.
func Build(d *schema.Diagram) *DiagramModel {
	m := &DiagramModel{Title: titleFromDiagram(d)}
	index := make(map[string]*Node, len(d.Shapes))

	for i := range d.Shapes {
		s := &d.Shapes[i]
		if s.IsEndEvent() {
			continue
		}
		if _, dup := index[s.ID]; dup {
			continue
		}
		n := &Node{
			ID:       s.ID,
			Label:    nodeLabel(s),
			Kind:     shapeKindToNodeKind(s),
			Variant:  s.Variant,
			Boundary: s.Boundary,
		}
		m.Nodes = append(m.Nodes, n)
		index[s.ID] = n
	}

	for _, r := range d.Routes {
		if index[r.SourceID] == nil {
			m.Dropped = append(m.Dropped, r.ID)
			continue
		}
		to := r.TargetID
		if r.Terminates() {
			end := &Node{ID: "end_" + r.ID, Label: "End", Kind: NodeKindEnd, Variant: schema.VariantEventEmptyEnd, Synthesized: true}
			m.Nodes = append(m.Nodes, end)
			index[end.ID] = end
			to = end.ID
		} else if index[to] == nil {
			m.Dropped = append(m.Dropped, r.ID)
			continue
		}
		e := Edge{ID: r.ID, From: r.SourceID, To: to}
		if r.Evaluate {
			e.Label = "evaluate"
		}
		m.Edges = append(m.Edges, e)
	}

	m.Levels = buildLevels(m)
	return m
}

// Annotate attaches validation findings to the nodes they name. A node with
// both errors and warnings carries the error severity.
func Annotate(m *DiagramModel, res *schema.ValidationResult) {
	if res == nil {
		return
	}
	byShape := res.ByShape()
	for _, n := range m.Nodes {
		issues := byShape[n.ID]
		if len(issues) == 0 {
			continue
		}
		n.Issue = &IssueOverlay{Severity: string(issues[0].Severity)}
		for _, is := range issues {
			n.Issue.Messages = append(n.Issue.Messages, is.Message)
		}
	}
}

func shapeKindToNodeKind(s *schema.Shape) NodeKind {
	switch s.Kind {
	case schema.KindGateway:
		return NodeKindGateway
	case schema.KindEvent:
		if s.IsStartEvent() {
			return NodeKindStart
		}
		return NodeKindIntermediate
	case schema.KindAnnotation:
		return NodeKindAnnotation
	case schema.KindSubProcess:
		return NodeKindSubProcess
	default:
		return NodeKindTask
	}
}

// nodeLabel prefers the shape text, falling back to its variant.
func nodeLabel(s *schema.Shape) string {
	switch {
	case s.Label != "":
		return s.Label
	case s.Kind == schema.KindTask:
		return s.ID
	case s.Variant != "":
		return s.Variant
	default:
		return s.ID
	}
}

func titleFromDiagram(d *schema.Diagram) string {
	if d.ProcessID != "" {
		return "Process " + d.ProcessID
	}
	return ""
}

// buildLevels assigns every node the length of the longest route path from
// a start node, walking edges breadth first. Nodes no start reaches, such as
// annotations, go in a trailing level in model order.
func buildLevels(m *DiagramModel) [][]string {
	next := make(map[string][]string)
	indeg := make(map[string]int)
	for _, e := range m.Edges {
		next[e.From] = append(next[e.From], e.To)
		indeg[e.To]++
	}

	level := make(map[string]int)
	var queue []string
	for _, n := range m.Nodes {
		if n.Kind == NodeKindStart || (indeg[n.ID] == 0 && len(next[n.ID]) > 0) {
			level[n.ID] = 0
			queue = append(queue, n.ID)
		}
	}

	// Bound the walk so cycles terminate.
	limit := len(m.Nodes)
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, to := range next[id] {
			l, seen := level[to]
			if (!seen || l < level[id]+1) && level[id]+1 <= limit {
				level[to] = level[id] + 1
				queue = append(queue, to)
			}
		}
	}

	var byLevel [][]string
	var rest []string
	for _, n := range m.Nodes {
		l, ok := level[n.ID]
		if !ok {
			rest = append(rest, n.ID)
			continue
		}
		for len(byLevel) <= l {
			byLevel = append(byLevel, nil)
		}
		byLevel[l] = append(byLevel[l], n.ID)
	}

	levels := make([][]string, 0, len(byLevel)+1)
	for _, ids := range byLevel {
		if len(ids) > 0 {
			levels = append(levels, ids)
		}
	}
	if len(rest) > 0 {
		levels = append(levels, rest)
	}
	return levels
}
