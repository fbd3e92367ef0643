package designer

import (
	"github.com/rendis/procdesigner/pkg/payload"
	"github.com/rendis/procdesigner/pkg/schema"
)

// Snapshot classifies the canvas into a plain diagram. Connections into any
// end event become terminating routes, which is how a reload recreates them.
// End events placed by the user are still written to the events group;
// synthesized ones are not.
func (s *Session) Snapshot() *schema.Diagram {
	figures := s.canvas.Shapes()
	conns := s.canvas.Connections()

	d := &schema.Diagram{
		ProcessID: s.processID,
		Shapes:    make([]schema.Shape, 0, len(figures)),
		Routes:    make([]schema.Route, 0, len(conns)),
		Process:   s.process,
	}
	for _, f := range figures {
		if f.IsEndEvent() && f.Synthesized {
			continue
		}
		d.Shapes = append(d.Shapes, f.Shape())
	}
	for _, c := range conns {
		r := schema.Route{ID: c.ID, SourceID: c.Source.Figure.ID, TargetID: c.Target.Figure.ID, Evaluate: c.Evaluate}
		if c.Target.Figure.IsEndEvent() {
			r.TargetID = schema.SentinelTarget
			if c.Evaluate && c.TargetRef != "" {
				r.TargetID = c.TargetRef
			}
		}
		d.Routes = append(d.Routes, r)
	}
	return d
}

// Encode serializes the canvas with the session's format version.
func (s *Session) Encode() (string, error) {
	return payload.Encode(s.Snapshot(), payload.WithVersion(s.version))
}
