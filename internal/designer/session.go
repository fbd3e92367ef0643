// Package designer rebuilds live process diagrams from saved payloads and
// writes them back.
//
// A Session owns one canvas. Load decodes a payload, instantiates its shapes
// in category order and resolves routes into connections, synthesizing an end
// event for every route that terminates the flow. Save encodes the canvas and
// submits it to the store.
package designer

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/rendis/procdesigner/internal/canvas"
	"github.com/rendis/procdesigner/internal/logging"
	"github.com/rendis/procdesigner/internal/registry"
	"github.com/rendis/procdesigner/internal/store"
	"github.com/rendis/procdesigner/pkg/payload"
)

// Persister is the part of the store a session needs.
type Persister interface {
	Load(ctx context.Context, processID string) (string, error)
	Save(ctx context.Context, processID, payload string) (*store.SaveResult, error)
}

// Config configures a Session. Zero values get defaults.
type Config struct {
	Registry      *registry.Registry
	Canvas        canvas.Canvas
	Store         Persister
	FormatVersion int
	Logger        *slog.Logger
	// NewID generates ids for shapes on first save and for synthesized end
	// events. Defaults to 32 lowercase hex characters.
	NewID func() string
}

// Diagnostics describes what the last load could not represent.
type Diagnostics struct {
	DanglingSources  int      `json:"dangling_sources"`
	DanglingTargets  int      `json:"dangling_targets"`
	DroppedRoutes    []string `json:"dropped_routes,omitempty"`
	SynthesizedEnds  int      `json:"synthesized_ends"`
	SkippedEndEvents int      `json:"skipped_end_events"`
	IgnoredGroups    []string `json:"ignored_groups,omitempty"`
}

// Session is one open diagram. It is not safe for concurrent use, except
// that saves started with SaveAsync run on their own goroutines.
type Session struct {
	id        string
	processID string

	canvas   canvas.Canvas
	registry *registry.Registry
	store    Persister
	version  int
	logger   *slog.Logger
	newID    func() string

	// TaskNo is the running task counter left by the last instantiation.
	TaskNo int

	process  json.RawMessage
	diag     Diagnostics
	pending  map[*canvas.Figure]struct{}
	nextTemp int

	saves    sync.WaitGroup
	lastSave chan struct{}
}

// NewSession creates a session with an empty canvas.
func NewSession(cfg Config) *Session {
	if cfg.Registry == nil {
		cfg.Registry = registry.Default()
	}
	if cfg.Canvas == nil {
		cfg.Canvas = canvas.NewMemory()
	}
	if cfg.FormatVersion == 0 {
		cfg.FormatVersion = payload.VersionLegacy
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.NewID == nil {
		cfg.NewID = NewShapeID
	}
	id := uuid.NewString()
	return &Session{
		id:       id,
		canvas:   cfg.Canvas,
		registry: cfg.Registry,
		store:    cfg.Store,
		version:  cfg.FormatVersion,
		logger:   cfg.Logger,
		newID:    cfg.NewID,
		pending:  make(map[*canvas.Figure]struct{}),
	}
}

// NewShapeID returns a random 32 character hex id, the shape of ids the
// designer has always stored.
func NewShapeID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// ProcessID returns the process the session is bound to.
func (s *Session) ProcessID() string { return s.processID }

// SetProcessID binds the session to a process without loading it.
func (s *Session) SetProcessID(id string) { s.processID = id }

// Canvas returns the live canvas.
func (s *Session) Canvas() canvas.Canvas { return s.canvas }

// Diagnostics returns a copy of the diagnostics of the last load.
func (s *Session) Diagnostics() Diagnostics {
	d := s.diag
	d.DroppedRoutes = append([]string(nil), s.diag.DroppedRoutes...)
	d.IgnoredGroups = append([]string(nil), s.diag.IgnoredGroups...)
	return d
}

// Wait blocks until every SaveAsync submission has finished.
func (s *Session) Wait() { s.saves.Wait() }

// logCtx adds the session and process ids for the correlation handler.
func (s *Session) logCtx(ctx context.Context) context.Context {
	ctx = logging.WithSessionID(ctx, s.id)
	if s.processID != "" {
		ctx = logging.WithProcessID(ctx, s.processID)
	}
	return ctx
}

func (s *Session) reset() {
	s.canvas.Clear()
	s.diag = Diagnostics{}
	s.pending = make(map[*canvas.Figure]struct{})
	s.process = nil
}
