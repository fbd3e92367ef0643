package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/rendis/procdesigner/internal/streaming"
)

// handleEvents streams every process event as Server-Sent Events. The
// optional "types" query parameter is a comma separated list of event types.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	s.serveSSE(w, r, streaming.Filter{Types: splitTypes(r)})
}

// handleProcessEvents streams the events of one process.
func (s *Server) handleProcessEvents(w http.ResponseWriter, r *http.Request) {
	s.serveSSE(w, r, streaming.Filter{ProcessID: r.PathValue("id"), Types: splitTypes(r)})
}

func (s *Server) serveSSE(w http.ResponseWriter, r *http.Request, f streaming.Filter) {
	if s.deps.Hub == nil {
		writeError(w, http.StatusNotImplemented, "event streaming is not enabled")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	ch, cancel, err := s.deps.Hub.Subscribe(r.Context(), f)
	if err != nil {
		s.deps.Logger.ErrorContext(r.Context(), "subscribe failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "subscribe failed")
		return
	}
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	// An initial comment lets clients see the stream is open.
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data)
			flusher.Flush()
		}
	}
}

func (s *Server) publish(ctx context.Context, ev streaming.Event) {
	if s.deps.Hub == nil {
		return
	}
	if err := s.deps.Hub.Publish(context.WithoutCancel(ctx), ev); err != nil {
		s.deps.Logger.WarnContext(ctx, "publish event", slog.String("error", err.Error()))
	}
}

func splitTypes(r *http.Request) []string {
	v := r.URL.Query().Get("types")
	if v == "" {
		return nil
	}
	var out []string
	for _, t := range strings.Split(v, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}
