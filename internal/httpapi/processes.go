package httpapi

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/rendis/procdesigner/internal/designer"
	"github.com/rendis/procdesigner/internal/diagram"
	"github.com/rendis/procdesigner/internal/logging"
	"github.com/rendis/procdesigner/internal/store"
	"github.com/rendis/procdesigner/internal/streaming"
	"github.com/rendis/procdesigner/pkg/payload"
)

// maxPayloadBytes bounds a save request body.
const maxPayloadBytes = 8 << 20

func processContext(r *http.Request) (context.Context, string) {
	id := r.PathValue("id")
	return logging.WithProcessID(r.Context(), id), id
}

// handleListProcesses lists stored processes, newest first, without payloads.
func (s *Server) handleListProcesses(w http.ResponseWriter, r *http.Request) {
	filter := store.ProcessFilter{Limit: queryInt(r, "limit", 100)}
	if since := r.URL.Query().Get("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid since: %v", err))
			return
		}
		filter.Since = &t
	}

	procs, err := s.deps.Store.ListProcesses(r.Context(), filter)
	if err != nil {
		writeDesignerError(w, err)
		return
	}
	for _, p := range procs {
		p.Payload = ""
	}
	writeJSON(w, http.StatusOK, map[string]any{"processes": procs, "count": len(procs)})
}

// handleOpenProcess returns the raw stored payload, exactly as saved.
func (s *Server) handleOpenProcess(w http.ResponseWriter, r *http.Request) {
	ctx, id := processContext(r)
	body, err := s.deps.Store.Load(ctx, id)
	if err != nil {
		writeDesignerError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(body))
}

// handleSaveProcess accepts either a complete "payload" form field or the
// designer's per-group fields and stores the result. The payload must load
// into a scratch session, so malformed payloads and unknown variants are
// rejected before they reach the store.
func (s *Server) handleSaveProcess(w http.ResponseWriter, r *http.Request) {
	ctx, id := processContext(r)

	r.Body = http.MaxBytesReader(w, r.Body, maxPayloadBytes)
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, store.SaveResult{Message: fmt.Sprintf("invalid form: %v", err)})
		return
	}

	body := r.PostForm.Get("payload")
	if body == "" {
		bodies := make(map[string]string, len(payload.GroupOrder))
		for _, name := range payload.GroupOrder {
			bodies[name] = r.PostForm.Get(name)
		}
		body = payload.Assemble(bodies)
	}

	scratch := designer.NewSession(designer.Config{Registry: s.deps.Registry, Logger: s.deps.Logger})
	if err := scratch.LoadPayload(ctx, body); err != nil {
		s.deps.Logger.WarnContext(ctx, "rejected payload", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadRequest, store.SaveResult{Message: err.Error()})
		return
	}

	res, err := s.deps.Store.Save(ctx, id, body)
	if err != nil {
		s.deps.Logger.ErrorContext(ctx, "save failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, store.SaveResult{Message: err.Error()})
		return
	}
	s.deps.Logger.InfoContext(ctx, "process saved",
		slog.Int("revision", res.Revision),
		slog.Int("bytes", len(body)),
	)
	s.publish(ctx, streaming.Event{Type: streaming.EventProcessSaved, ProcessID: id, Revision: res.Revision, Source: "http"})
	writeJSON(w, http.StatusOK, res)
}

// handleDiagram renders the stored diagram as ascii, mermaid or a PNG image.
func (s *Server) handleDiagram(w http.ResponseWriter, r *http.Request) {
	ctx, id := processContext(r)

	format, err := diagram.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeDesignerError(w, err)
		return
	}
	in, ok := s.inspect(ctx, w, id)
	if !ok {
		return
	}
	out, err := diagram.Render(ctx, in.Model(id), format, s.deps.AsciiBin)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("render diagram: %v", err))
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.WriteHeader(http.StatusOK)
	w.Write(out)
}

// handleValidate reports structural issues and lint findings.
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	ctx, id := processContext(r)
	in, ok := s.inspect(ctx, w, id)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"process_id": id,
		"valid":      in.Result.Valid(),
		"errors":     in.Result.Errors,
		"warnings":   in.Result.Warnings,
		"ignored":    in.Groups.Ignored,
	})
}

func (s *Server) handleListRevisions(w http.ResponseWriter, r *http.Request) {
	ctx, id := processContext(r)
	revs, err := s.deps.Store.ListRevisions(ctx, id)
	if err != nil {
		writeDesignerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"process_id": id, "revisions": revs})
}

func (s *Server) handleOpenRevision(w http.ResponseWriter, r *http.Request) {
	ctx, id := processContext(r)
	n, err := strconv.Atoi(r.PathValue("rev"))
	if err != nil || n < 1 {
		writeError(w, http.StatusBadRequest, "revision must be a positive integer")
		return
	}
	rev, err := s.deps.Store.LoadRevision(ctx, id, n)
	if err != nil {
		writeDesignerError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(rev.Payload))
}

// inspect loads and decodes a stored process, writing the error response
// itself when that fails.
func (s *Server) inspect(ctx context.Context, w http.ResponseWriter, id string) (*designer.Inspection, bool) {
	body, err := s.deps.Store.Load(ctx, id)
	if err != nil {
		writeDesignerError(w, err)
		return nil, false
	}
	in, err := designer.Inspect(ctx, body, s.deps.Validator)
	if err != nil {
		writeDesignerError(w, err)
		return nil, false
	}
	return in, true
}
