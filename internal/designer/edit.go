package designer

import (
	"fmt"

	"github.com/rendis/procdesigner/internal/canvas"
	"github.com/rendis/procdesigner/pkg/schema"
)

// ShapeSpec describes a shape added interactively.
type ShapeSpec struct {
	Variant  string
	X, Y     int
	Width    int
	Height   int
	Label    string
	Boundary bool
}

// AddShape places a new figure on the canvas. It carries a temporary id until
// the next Save assigns its permanent one.
func (s *Session) AddShape(spec ShapeSpec) (*canvas.Figure, error) {
	f, err := s.registry.New(spec.Variant)
	if err != nil {
		return nil, err
	}
	s.nextTemp++
	f.ID = fmt.Sprintf("new-%d", s.nextTemp)
	if spec.Width > 0 {
		f.Width = spec.Width
	}
	if spec.Height > 0 {
		f.Height = spec.Height
	}
	f.Label = spec.Label
	f.Boundary = spec.Boundary && f.Kind == schema.KindTask

	s.canvas.AddShape(f, spec.X, spec.Y)
	s.pending[f] = struct{}{}
	return f, nil
}

// MoveShape sets the position of a figure.
func (s *Session) MoveShape(id string, x, y int) error {
	f, err := s.figure(id)
	if err != nil {
		return err
	}
	f.X, f.Y = x, y
	return nil
}

// ResizeShape sets the dimensions of a figure. Both must be positive.
func (s *Session) ResizeShape(id string, width, height int) error {
	if width <= 0 || height <= 0 {
		return schema.NewErrorf(schema.ErrCodeValidation, "invalid size %dx%d", width, height).WithShape(id)
	}
	f, err := s.figure(id)
	if err != nil {
		return err
	}
	f.Width, f.Height = width, height
	return nil
}

// SetLabel changes the text of a task, annotation or sub-process.
func (s *Session) SetLabel(id, label string) error {
	f, err := s.figure(id)
	if err != nil {
		return err
	}
	switch f.Kind {
	case schema.KindTask, schema.KindAnnotation, schema.KindSubProcess:
		f.Label = label
		return nil
	default:
		return schema.NewErrorf(schema.ErrCodeValidation, "a %s has no label", f.Kind).WithShape(id)
	}
}

// RemoveShape deletes a figure and every connection attached to it.
func (s *Session) RemoveShape(id string) error {
	f, err := s.figure(id)
	if err != nil {
		return err
	}
	s.canvas.RemoveShape(id)
	delete(s.pending, f)
	return nil
}

// Connect joins two figures. A targetID of "-1" ends the flow at a new end
// event, exactly as a terminating route does on load.
func (s *Session) Connect(sourceID, targetID string) (*canvas.Connection, error) {
	src, err := s.figure(sourceID)
	if err != nil {
		return nil, err
	}
	var tgt *canvas.Figure
	if targetID == schema.SentinelTarget {
		if tgt, err = s.synthesizeEnd(src); err != nil {
			return nil, err
		}
	} else if tgt, err = s.figure(targetID); err != nil {
		return nil, err
	}

	c := &canvas.Connection{
		ID:        s.newID(),
		Source:    src.OutputPort(),
		Target:    tgt.InputPort(),
		TargetRef: targetID,
	}
	s.canvas.AddConnection(c)
	return c, nil
}

// Disconnect removes a connection by id.
func (s *Session) Disconnect(id string) error {
	if !s.canvas.RemoveConnection(id) {
		return schema.NewErrorf(schema.ErrCodeNotFound, "connection %q not found", id)
	}
	return nil
}

// RenameShape changes a figure id. Connections hold the figure itself, so
// every route endpoint that named oldID names newID afterwards.
func (s *Session) RenameShape(oldID, newID string) error {
	if newID == "" || newID == schema.SentinelTarget {
		return schema.NewErrorf(schema.ErrCodeValidation, "invalid shape id %q", newID).WithShape(oldID)
	}
	f, err := s.figure(oldID)
	if err != nil {
		return err
	}
	if oldID == newID {
		return nil
	}
	if s.canvas.Shape(newID) != nil {
		return schema.NewErrorf(schema.ErrCodeConflict, "shape %q already exists", newID).WithShape(oldID)
	}
	f.ID = newID
	for _, c := range s.canvas.Connections() {
		if c.TargetRef == oldID {
			c.TargetRef = newID
		}
	}
	return nil
}

func (s *Session) figure(id string) (*canvas.Figure, error) {
	f := s.canvas.Shape(id)
	if f == nil {
		return nil, schema.NewErrorf(schema.ErrCodeNotFound, "shape %q not found", id).WithShape(id)
	}
	return f, nil
}
