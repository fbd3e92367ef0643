package canvas

import "github.com/rendis/procdesigner/pkg/schema"

// Designated port names. Connections leave a figure through its output port
// and enter through its input port.
const (
	PortOutput = "output1"
	PortInput  = "input2"
)

// Figure is a live shape placed on a canvas.
type Figure struct {
	ID       string
	Kind     schema.ShapeKind
	Variant  string
	X, Y     int
	Width    int
	Height   int
	Label    string
	Boundary bool

	// Synthesized marks end events created while resolving terminating routes.
	Synthesized bool
}

// Port is a connection point on a figure.
type Port struct {
	Figure *Figure
	Name   string
}

// OutputPort returns the port used when the figure is a connection source.
func (f *Figure) OutputPort() Port { return Port{Figure: f, Name: PortOutput} }

// InputPort returns the port used when the figure is a connection target.
func (f *Figure) InputPort() Port { return Port{Figure: f, Name: PortInput} }

// Shape returns the figure as a plain diagram shape.
func (f *Figure) Shape() schema.Shape {
	return schema.Shape{
		ID:       f.ID,
		Kind:     f.Kind,
		Variant:  f.Variant,
		X:        f.X,
		Y:        f.Y,
		Width:    f.Width,
		Height:   f.Height,
		Label:    f.Label,
		Boundary: f.Boundary,
	}
}

// IsEndEvent reports whether the figure is an end event.
func (f *Figure) IsEndEvent() bool {
	return f.Kind == schema.KindEvent && schema.IsEndVariant(f.Variant)
}

// Connection is a live edge between two figure ports.
type Connection struct {
	ID     string
	Source Port
	Target Port

	// Evaluate and TargetRef keep the route flag and the target id the route
	// was saved with, so a connection to a synthesized end event can be written
	// back unchanged.
	Evaluate  bool
	TargetRef string
}
