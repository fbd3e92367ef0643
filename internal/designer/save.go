package designer

import (
	"context"

	"github.com/rendis/procdesigner/internal/store"
	"github.com/rendis/procdesigner/pkg/payload"
	"github.com/rendis/procdesigner/pkg/schema"
)

// SaveOutcome is delivered by SaveAsync.
type SaveOutcome struct {
	Result *store.SaveResult
	Err    error
}

// Load fetches the process payload from the store and rebuilds the canvas.
func (s *Session) Load(ctx context.Context, processID string) error {
	if s.store == nil {
		return schema.NewError(schema.ErrCodeValidation, "session has no store")
	}
	body, err := s.store.Load(ctx, processID)
	if err != nil {
		s.reset()
		return err
	}
	s.processID = processID
	return s.LoadPayload(ctx, body)
}

// LoadPayload replaces the canvas with the diagram encoded in body. On a
// decode or instantiation error the canvas is left empty.
func (s *Session) LoadPayload(ctx context.Context, body string) error {
	ctx = s.logCtx(ctx)
	s.reset()

	g, err := payload.Decode(body)
	if err != nil {
		s.logger.ErrorContext(ctx, "payload decode failed", "error", err)
		return err
	}
	s.diag.IgnoredGroups = g.Ignored
	if len(g.Ignored) > 0 {
		s.logger.DebugContext(ctx, "ignored unknown groups", "groups", g.Ignored)
	}

	live, err := s.Instantiate(g)
	if err != nil {
		s.canvas.Clear()
		s.diag = Diagnostics{}
		s.logger.ErrorContext(ctx, "shape instantiation failed", "error", err)
		return err
	}
	s.process = g.Process
	conns := s.BuildConnections(g.Routes, live)

	s.logger.InfoContext(ctx, "process loaded",
		"version", g.Version,
		"shapes", len(s.canvas.Shapes()),
		"connections", len(conns),
		"dropped_routes", len(s.diag.DroppedRoutes),
	)
	return nil
}

// Save assigns permanent ids to new shapes, encodes the canvas and submits
// it. A store failure returns a result with Success false and a
// PERSISTENCE_FAILURE error; the canvas is kept as is.
func (s *Session) Save(ctx context.Context) (*store.SaveResult, error) {
	body, err := s.prepareSave()
	if err != nil {
		return nil, err
	}
	return s.submit(s.logCtx(ctx), s.processID, body)
}

// SaveAsync encodes synchronously, then submits on a goroutine so editing
// can continue. Submissions from one session reach the store in call order,
// so a later save always overwrites an earlier one.
func (s *Session) SaveAsync(ctx context.Context) <-chan SaveOutcome {
	out := make(chan SaveOutcome, 1)

	body, err := s.prepareSave()
	if err != nil {
		out <- SaveOutcome{Err: err}
		close(out)
		return out
	}

	prev := s.lastSave
	done := make(chan struct{})
	s.lastSave = done
	processID := s.processID
	ctx = s.logCtx(ctx)

	s.saves.Add(1)
	go func() {
		defer s.saves.Done()
		defer close(done)
		defer close(out)
		if prev != nil {
			<-prev
		}
		res, err := s.submit(ctx, processID, body)
		out <- SaveOutcome{Result: res, Err: err}
	}()
	return out
}

func (s *Session) prepareSave() (string, error) {
	if s.store == nil {
		return "", schema.NewError(schema.ErrCodeValidation, "session has no store")
	}
	if s.processID == "" {
		return "", schema.NewError(schema.ErrCodeValidation, "session is not bound to a process")
	}
	if err := s.assignIDs(); err != nil {
		return "", err
	}
	return s.Encode()
}

// assignIDs gives every shape added since the last save its permanent id.
func (s *Session) assignIDs() error {
	for _, f := range s.canvas.Shapes() {
		if _, ok := s.pending[f]; !ok {
			continue
		}
		if err := s.RenameShape(f.ID, s.newID()); err != nil {
			return err
		}
		delete(s.pending, f)
	}
	return nil
}

func (s *Session) submit(ctx context.Context, processID, body string) (*store.SaveResult, error) {
	res, err := s.store.Save(ctx, processID, body)
	if err != nil {
		s.logger.ErrorContext(ctx, "save failed", "error", err)
		return &store.SaveResult{Success: false, Message: err.Error()},
			schema.NewErrorf(schema.ErrCodePersistence, "save process %s: %s", processID, err.Error()).WithCause(err)
	}
	if res == nil || !res.Success {
		msg := "store rejected the save"
		if res != nil && res.Message != "" {
			msg = res.Message
		}
		s.logger.ErrorContext(ctx, "save rejected", "msg", msg)
		return &store.SaveResult{Success: false, Message: msg},
			schema.NewErrorf(schema.ErrCodePersistence, "save process %s: %s", processID, msg)
	}
	s.logger.InfoContext(ctx, "process saved", "bytes", len(body), "revision", res.Revision)
	return res, nil
}
