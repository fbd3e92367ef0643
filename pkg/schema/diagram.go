package schema

import (
	"encoding/json"
	"strings"
)

// ShapeKind classifies a diagram shape. Every shape has exactly one kind.
type ShapeKind string

const (
	KindTask       ShapeKind = "task"
	KindGateway    ShapeKind = "gateway"
	KindEvent      ShapeKind = "event"
	KindAnnotation ShapeKind = "annotation"
	KindSubProcess ShapeKind = "subprocess"
)

// Kinds lists the shape kinds in serialization order.
var Kinds = []ShapeKind{KindTask, KindGateway, KindEvent, KindAnnotation, KindSubProcess}

// Well-known variant names.
const (
	VariantTask                 = "Task"
	VariantAnnotation           = "Annotation"
	VariantSubProcess           = "SubProcess"
	VariantGatewayExclusiveData = "GatewayExclusiveData"
	VariantEventEmptyStart      = "EventEmptyStart"
	VariantEventEmptyInter      = "EventEmptyInter"
	VariantEventEmptyEnd        = "EventEmptyEnd"
)

// Markers and sentinels used by the wire format.
const (
	MarkerNormal     = "NORMAL"
	MarkerTimer      = "TIMER"
	MarkerSubProcess = "SUBPROCESS"
	MarkerEvaluate   = "EVALUATE"

	// SentinelTarget is the route target meaning "terminate the flow".
	SentinelTarget = "-1"
)

// Offset of an end-event synthesized for a terminating route, relative to the route source.
const (
	EndEventOffsetX = 67
	EndEventOffsetY = 60
)

// Shape is a node in a process diagram.
type Shape struct {
	ID       string    `json:"id"`
	Kind     ShapeKind `json:"kind"`
	Variant  string    `json:"variant,omitempty"`
	X        int       `json:"x"`
	Y        int       `json:"y"`
	Width    int       `json:"width,omitempty"`
	Height   int       `json:"height,omitempty"`
	Label    string    `json:"label,omitempty"`
	Boundary bool      `json:"boundary,omitempty"` // task carries a boundary timer event
}

// IsEndEvent reports whether the shape is an end event of any variant.
func (s *Shape) IsEndEvent() bool {
	return s.Kind == KindEvent && IsEndVariant(s.Variant)
}

// IsStartEvent reports whether the shape is a start event of any variant.
func (s *Shape) IsStartEvent() bool {
	return s.Kind == KindEvent && strings.Contains(s.Variant, "Start")
}

// IsEndVariant reports whether an event variant names an end event.
func IsEndVariant(variant string) bool {
	return strings.Contains(variant, "End")
}

// Route is a directed edge between two shapes.
type Route struct {
	ID       string `json:"id"`
	SourceID string `json:"source_id"`
	TargetID string `json:"target_id"`
	Evaluate bool   `json:"evaluate,omitempty"`
}

// Terminates reports whether the route ends the flow without an explicit successor.
func (r *Route) Terminates() bool {
	return r.TargetID == SentinelTarget || r.Evaluate
}

// Diagram is the full process graph: shapes plus routes.
type Diagram struct {
	ProcessID string          `json:"process_id,omitempty"`
	Shapes    []Shape         `json:"shapes"`
	Routes    []Route         `json:"routes"`
	Process   json.RawMessage `json:"process,omitempty"`
}

// ShapesOf returns the shapes of a single kind, in diagram order.
func (d *Diagram) ShapesOf(kind ShapeKind) []Shape {
	var out []Shape
	for _, s := range d.Shapes {
		if s.Kind == kind {
			out = append(out, s)
		}
	}
	return out
}

// Shape returns the shape with the given id, or nil.
func (d *Diagram) Shape(id string) *Shape {
	for i := range d.Shapes {
		if d.Shapes[i].ID == id {
			return &d.Shapes[i]
		}
	}
	return nil
}
