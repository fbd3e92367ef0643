package designer

import (
	"context"

	"github.com/rendis/procdesigner/internal/diagram"
	"github.com/rendis/procdesigner/internal/validation"
	"github.com/rendis/procdesigner/pkg/payload"
	"github.com/rendis/procdesigner/pkg/schema"
)

// Inspection is a decoded payload together with its validation result. It
// works on records only and never touches a canvas.
type Inspection struct {
	Groups  *payload.Groups
	Diagram *schema.Diagram
	Result  *schema.ValidationResult
}

// Inspect decodes body and validates it. validator may be nil, in which case
// Result is empty.
func Inspect(ctx context.Context, body string, validator *validation.DiagramValidator) (*Inspection, error) {
	g, err := payload.Decode(body)
	if err != nil {
		return nil, err
	}
	in := &Inspection{Groups: g, Diagram: g.Diagram(), Result: &schema.ValidationResult{}}
	if validator != nil {
		in.Result = validator.Validate(ctx, in.Diagram)
	}
	return in, nil
}

// Model builds the render model with validation issues overlaid.
func (in *Inspection) Model(processID string) *diagram.DiagramModel {
	d := *in.Diagram
	d.ProcessID = processID
	m := diagram.Build(&d)
	diagram.Annotate(m, in.Result)
	return m
}

// Data is the JSON-shaped form of the diagram that gojq queries run against.
func (in *Inspection) Data() map[string]any {
	shapes := make([]any, 0, len(in.Diagram.Shapes))
	for _, s := range in.Diagram.Shapes {
		shapes = append(shapes, map[string]any{
			"id":       s.ID,
			"kind":     string(s.Kind),
			"variant":  s.Variant,
			"label":    s.Label,
			"x":        s.X,
			"y":        s.Y,
			"width":    s.Width,
			"height":   s.Height,
			"boundary": s.Boundary,
		})
	}
	routes := make([]any, 0, len(in.Diagram.Routes))
	for _, r := range in.Diagram.Routes {
		routes = append(routes, map[string]any{
			"id":        r.ID,
			"source":    r.SourceID,
			"target":    r.TargetID,
			"evaluate":  r.Evaluate,
			"terminate": r.Terminates(),
		})
	}
	return map[string]any{
		"version": in.Groups.Version,
		"shapes":  shapes,
		"routes":  routes,
		"ignored": toAny(in.Groups.Ignored),
	}
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
