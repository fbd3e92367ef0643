package payload

import (
	"encoding/json"
	"strings"

	"github.com/rendis/procdesigner/pkg/schema"
)

// Group names, in the order the encoder writes them.
const (
	GroupTasks       = "tasks"
	GroupGateways    = "gateways"
	GroupEvents      = "events"
	GroupAnnotations = "annotations"
	GroupSubProcess  = "subprocess"
	GroupProcess     = "process"
	GroupRoutes      = "routes"
)

// Groups is a decoded payload: typed records per category, not yet live shapes.
type Groups struct {
	Version      int                `json:"version"`
	Tasks        []TaskRecord       `json:"tasks,omitempty"`
	Gateways     []GatewayRecord    `json:"gateways,omitempty"`
	Events       []EventRecord      `json:"events,omitempty"`
	Annotations  []AnnotationRecord `json:"annotations,omitempty"`
	SubProcesses []SubProcessRecord `json:"subprocess,omitempty"`
	Process      json.RawMessage    `json:"process,omitempty"`
	Routes       []RouteRecord      `json:"routes"`

	// Ignored lists group names the decoder did not recognise.
	Ignored []string `json:"-"`
}

// ShapeCount returns the number of shape records across all categories.
func (g *Groups) ShapeCount() int {
	return len(g.Tasks) + len(g.Gateways) + len(g.Events) + len(g.Annotations) + len(g.SubProcesses)
}

// FromDiagram classifies the shapes of d into record groups.
func FromDiagram(d *schema.Diagram) *Groups {
	g := &Groups{Version: VersionLegacy, Process: d.Process, Routes: make([]RouteRecord, 0, len(d.Routes))}
	for _, s := range d.Shapes {
		switch s.Kind {
		case schema.KindTask:
			marker := schema.MarkerNormal
			if s.Boundary {
				marker = schema.MarkerTimer
			}
			g.Tasks = append(g.Tasks, TaskRecord{
				ID: s.ID, Label: s.Label, X: s.X, Y: s.Y, Width: s.Width, Height: s.Height, Marker: marker,
			})
		case schema.KindGateway:
			g.Gateways = append(g.Gateways, GatewayRecord{
				ID: s.ID, Variant: s.Variant, X: s.X, Y: s.Y, Width: s.Width, Height: s.Height,
			})
		case schema.KindEvent:
			g.Events = append(g.Events, EventRecord{
				ID: s.ID, Variant: s.Variant, X: s.X, Y: s.Y, Width: s.Width, Height: s.Height,
			})
		case schema.KindAnnotation:
			g.Annotations = append(g.Annotations, AnnotationRecord{
				ID: s.ID, Variant: s.Variant, X: s.X, Y: s.Y, Width: s.Width, Height: s.Height, Label: s.Label,
			})
		case schema.KindSubProcess:
			g.SubProcesses = append(g.SubProcesses, SubProcessRecord{
				ID: s.ID, Label: s.Label, X: s.X, Y: s.Y, Width: s.Width, Height: s.Height, Marker: schema.MarkerSubProcess,
			})
		}
	}
	for _, r := range d.Routes {
		g.Routes = append(g.Routes, RouteRecord{ID: r.ID, SourceID: r.SourceID, TargetID: r.TargetID, Evaluate: r.Evaluate})
	}
	return g
}

// Diagram converts the records back into a plain diagram. End events from the
// events group are kept here; only the live instantiator skips them.
func (g *Groups) Diagram() *schema.Diagram {
	d := &schema.Diagram{
		Shapes:  make([]schema.Shape, 0, g.ShapeCount()),
		Routes:  make([]schema.Route, 0, len(g.Routes)),
		Process: g.Process,
	}
	for _, r := range g.Tasks {
		d.Shapes = append(d.Shapes, schema.Shape{
			ID: r.ID, Kind: schema.KindTask, Variant: schema.VariantTask, X: r.X, Y: r.Y,
			Width: r.Width, Height: r.Height, Label: r.Label, Boundary: r.Marker == schema.MarkerTimer,
		})
	}
	for _, r := range g.Gateways {
		d.Shapes = append(d.Shapes, schema.Shape{
			ID: r.ID, Kind: schema.KindGateway, Variant: r.Variant, X: r.X, Y: r.Y, Width: r.Width, Height: r.Height,
		})
	}
	for _, r := range g.Events {
		d.Shapes = append(d.Shapes, schema.Shape{
			ID: r.ID, Kind: schema.KindEvent, Variant: r.Variant, X: r.X, Y: r.Y, Width: r.Width, Height: r.Height,
		})
	}
	for _, r := range g.Annotations {
		d.Shapes = append(d.Shapes, schema.Shape{
			ID: r.ID, Kind: schema.KindAnnotation, Variant: r.Variant, X: r.X, Y: r.Y,
			Width: r.Width, Height: r.Height, Label: r.Label,
		})
	}
	for _, r := range g.SubProcesses {
		d.Shapes = append(d.Shapes, schema.Shape{
			ID: r.ID, Kind: schema.KindSubProcess, Variant: schema.VariantSubProcess, X: r.X, Y: r.Y,
			Width: r.Width, Height: r.Height, Label: r.Label,
		})
	}
	for _, r := range g.Routes {
		d.Routes = append(d.Routes, schema.Route{ID: r.ID, SourceID: r.SourceID, TargetID: r.TargetID, Evaluate: r.Evaluate})
	}
	return d
}

// GroupOrder lists the version 1 group names in the order the encoder writes them.
var GroupOrder = []string{GroupTasks, GroupGateways, GroupEvents, GroupAnnotations, GroupSubProcess, GroupProcess, GroupRoutes}

// Assemble joins separately submitted group bodies into a version 1 payload.
// Groups with an empty body are left out, except routes, which is always written.
func Assemble(bodies map[string]string) string {
	parts := make([]string, 0, len(GroupOrder))
	for _, name := range GroupOrder {
		body := strings.TrimSpace(bodies[name])
		if body == "" {
			if name != GroupRoutes {
				continue
			}
			body = "[]"
		}
		parts = append(parts, name+fieldSep+body)
	}
	return strings.Join(parts, groupSep)
}
