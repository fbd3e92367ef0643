// Package canvas holds the live figures and connections of an open diagram.
package canvas

// Canvas is the drawing surface the designer session places figures on.
type Canvas interface {
	AddShape(f *Figure, x, y int)
	RemoveShape(id string) bool
	Shapes() []*Figure
	Shape(id string) *Figure

	AddConnection(c *Connection)
	RemoveConnection(id string) bool
	Connections() []*Connection

	Clear()
}

// Memory is an in-memory Canvas that keeps insertion (draw) order.
// It is not safe for concurrent use; a canvas belongs to one session.
type Memory struct {
	figures     []*Figure
	connections []*Connection
}

// NewMemory returns an empty canvas.
func NewMemory() *Memory {
	return &Memory{}
}

// AddShape places f at (x, y).
func (m *Memory) AddShape(f *Figure, x, y int) {
	f.X, f.Y = x, y
	m.figures = append(m.figures, f)
}

// RemoveShape removes the figure with the given id and every connection
// attached to it.
func (m *Memory) RemoveShape(id string) bool {
	idx := -1
	for i, f := range m.figures {
		if f.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false
	}
	removed := m.figures[idx]
	m.figures = append(m.figures[:idx], m.figures[idx+1:]...)

	kept := m.connections[:0]
	for _, c := range m.connections {
		if c.Source.Figure != removed && c.Target.Figure != removed {
			kept = append(kept, c)
		}
	}
	m.connections = kept
	return true
}

// Shapes returns the figures in draw order.
func (m *Memory) Shapes() []*Figure {
	out := make([]*Figure, len(m.figures))
	copy(out, m.figures)
	return out
}

// Shape returns the first figure with the given id, or nil.
func (m *Memory) Shape(id string) *Figure {
	for _, f := range m.figures {
		if f.ID == id {
			return f
		}
	}
	return nil
}

// AddConnection appends c.
func (m *Memory) AddConnection(c *Connection) {
	m.connections = append(m.connections, c)
}

// RemoveConnection removes the connection with the given id.
func (m *Memory) RemoveConnection(id string) bool {
	for i, c := range m.connections {
		if c.ID == id {
			m.connections = append(m.connections[:i], m.connections[i+1:]...)
			return true
		}
	}
	return false
}

// Connections returns the connections in draw order.
func (m *Memory) Connections() []*Connection {
	out := make([]*Connection, len(m.connections))
	copy(out, m.connections)
	return out
}

// Clear removes everything.
func (m *Memory) Clear() {
	m.figures = nil
	m.connections = nil
}

var _ Canvas = (*Memory)(nil)
