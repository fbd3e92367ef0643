package diagram

// NodeKind classifies a diagram node by the shape it draws.
type NodeKind string

const (
	NodeKindTask         NodeKind = "task"
	NodeKindGateway      NodeKind = "gateway"
	NodeKindStart        NodeKind = "start"
	NodeKindIntermediate NodeKind = "intermediate"
	NodeKindEnd          NodeKind = "end"
	NodeKindAnnotation   NodeKind = "annotation"
	NodeKindSubProcess   NodeKind = "subprocess"
)

// DiagramModel is the intermediate representation used by all renderers.
type DiagramModel struct {
	Title  string
	Nodes  []*Node
	Edges  []Edge
	Levels [][]string

	// Dropped lists routes that cannot be drawn because an endpoint is missing.
	Dropped []string
}

// Node represents a single shape in the diagram.
type Node struct {
	ID          string
	Label       string
	Kind        NodeKind
	Variant     string
	Boundary    bool
	Synthesized bool
	Issue       *IssueOverlay
}

// IssueOverlay carries the worst validation finding for a node.
type IssueOverlay struct {
	Severity string // error or warning
	Messages []string
}

// Edge represents a route between two nodes.
type Edge struct {
	ID    string
	From  string
	To    string
	Label string
}
