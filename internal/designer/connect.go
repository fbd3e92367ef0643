package designer

import (
	"context"

	"github.com/rendis/procdesigner/internal/canvas"
	"github.com/rendis/procdesigner/pkg/payload"
	"github.com/rendis/procdesigner/pkg/schema"
)

// BuildConnections resolves routes against live figures and adds the
// resulting connections to the canvas, in route order.
//
// A route whose target is the sentinel "-1" or that carries the EVALUATE
// marker ends the flow: a fresh end event is placed near the source and added
// to live and to the canvas, one per route. Routes whose source or target
// cannot be resolved are dropped and counted in Diagnostics.
func (s *Session) BuildConnections(routes []payload.RouteRecord, live map[string]*canvas.Figure) []*canvas.Connection {
	ctx := s.logCtx(context.Background())
	out := make([]*canvas.Connection, 0, len(routes))

	for _, r := range routes {
		src, ok := live[r.SourceID]
		if !ok {
			s.diag.DanglingSources++
			s.diag.DroppedRoutes = append(s.diag.DroppedRoutes, r.ID)
			s.logger.WarnContext(ctx, "route dropped: source not found",
				"route_id", r.ID, "source_id", r.SourceID)
			continue
		}

		var tgt *canvas.Figure
		if r.TargetID == schema.SentinelTarget || r.Evaluate {
			end, err := s.synthesizeEnd(src)
			if err != nil {
				s.diag.DroppedRoutes = append(s.diag.DroppedRoutes, r.ID)
				s.logger.ErrorContext(ctx, "route dropped: end event unavailable", "route_id", r.ID, "error", err)
				continue
			}
			live[end.ID] = end
			tgt = end
		} else if tgt, ok = live[r.TargetID]; !ok {
			s.diag.DanglingTargets++
			s.diag.DroppedRoutes = append(s.diag.DroppedRoutes, r.ID)
			s.logger.WarnContext(ctx, "route dropped: target not found",
				"route_id", r.ID, "target_id", r.TargetID)
			continue
		}

		c := &canvas.Connection{
			ID:        r.ID,
			Source:    src.OutputPort(),
			Target:    tgt.InputPort(),
			Evaluate:  r.Evaluate,
			TargetRef: r.TargetID,
		}
		s.canvas.AddConnection(c)
		out = append(out, c)
	}
	return out
}

// synthesizeEnd places a new end event at the fixed offset from src.
func (s *Session) synthesizeEnd(src *canvas.Figure) (*canvas.Figure, error) {
	end, err := s.registry.New(schema.VariantEventEmptyEnd)
	if err != nil {
		return nil, err
	}
	end.ID = s.newID()
	end.Synthesized = true
	s.canvas.AddShape(end, src.X+schema.EndEventOffsetX, src.Y+schema.EndEventOffsetY)
	s.diag.SynthesizedEnds++
	return end, nil
}
