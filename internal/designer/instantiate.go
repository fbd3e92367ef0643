package designer

import (
	"errors"

	"github.com/rendis/procdesigner/internal/canvas"
	"github.com/rendis/procdesigner/internal/registry"
	"github.com/rendis/procdesigner/pkg/payload"
	"github.com/rendis/procdesigner/pkg/schema"
)

// Instantiate builds live figures for every record in g and places them on
// the canvas in category order: tasks, gateways, events, annotations,
// sub-processes. End events are skipped; the connection builder synthesizes
// them from terminating routes.
//
// The load is atomic. If any record names an unknown variant nothing is added
// to the canvas and an UNKNOWN_VARIANT error is returned.
//
// The returned map indexes figures by id; when ids repeat the first figure wins.
func (s *Session) Instantiate(g *payload.Groups) (map[string]*canvas.Figure, error) {
	b := &stager{reg: s.registry, live: make(map[string]*canvas.Figure, g.ShapeCount())}

	taskNo := 0
	for i, r := range g.Tasks {
		if i > 0 {
			taskNo++
		}
		f, err := b.build(schema.VariantTask, schema.KindTask, r.ID, r.X, r.Y, r.Width, r.Height)
		if err != nil {
			return nil, err
		}
		f.Label = r.Label
		f.Boundary = r.Marker == schema.MarkerTimer
	}
	if taskNo != 0 {
		taskNo++
	}

	for _, r := range g.Gateways {
		if _, err := b.build(r.Variant, schema.KindGateway, r.ID, r.X, r.Y, r.Width, r.Height); err != nil {
			return nil, err
		}
	}

	skipped := 0
	for _, r := range g.Events {
		if schema.IsEndVariant(registry.Normalize(r.Variant)) {
			skipped++
			continue
		}
		if _, err := b.build(r.Variant, schema.KindEvent, r.ID, r.X, r.Y, r.Width, r.Height); err != nil {
			return nil, err
		}
	}

	for _, r := range g.Annotations {
		variant := r.Variant
		if variant == "" {
			variant = schema.VariantAnnotation
		}
		f, err := b.build(variant, schema.KindAnnotation, r.ID, r.X, r.Y, r.Width, r.Height)
		if err != nil {
			return nil, err
		}
		f.Label = r.Label
	}

	for _, r := range g.SubProcesses {
		f, err := b.build(schema.VariantSubProcess, schema.KindSubProcess, r.ID, r.X, r.Y, r.Width, r.Height)
		if err != nil {
			return nil, err
		}
		f.Label = r.Label
	}

	for _, f := range b.staged {
		s.canvas.AddShape(f, f.X, f.Y)
	}
	s.TaskNo = taskNo
	s.diag.SkippedEndEvents += skipped
	return b.live, nil
}

// stager collects figures before any of them reach the canvas.
type stager struct {
	reg    *registry.Registry
	staged []*canvas.Figure
	live   map[string]*canvas.Figure
}

func (b *stager) build(variant string, kind schema.ShapeKind, id string, x, y, w, h int) (*canvas.Figure, error) {
	f, err := b.reg.New(variant)
	if err != nil {
		return nil, withShape(err, id)
	}
	if f.Kind != kind {
		return nil, schema.NewErrorf(schema.ErrCodeUnknownVariant,
			"variant %q is a %s, not a %s", variant, f.Kind, kind).WithShape(id)
	}
	f.ID = id
	f.X, f.Y = x, y
	if w > 0 {
		f.Width = w
	}
	if h > 0 {
		f.Height = h
	}
	b.staged = append(b.staged, f)
	if _, dup := b.live[id]; !dup {
		b.live[id] = f
	}
	return f, nil
}

func withShape(err error, id string) error {
	var derr *schema.DesignerError
	if errors.As(err, &derr) {
		return derr.WithShape(id)
	}
	return err
}
