// Package httpapi serves stored process diagrams over HTTP: the open and save
// endpoints the browser designer talks to, plus read-only rendering and
// validation.
package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/rendis/procdesigner/internal/logging"
	"github.com/rendis/procdesigner/internal/registry"
	"github.com/rendis/procdesigner/internal/store"
	"github.com/rendis/procdesigner/internal/streaming"
	"github.com/rendis/procdesigner/internal/validation"
	"github.com/rendis/procdesigner/pkg/schema"
)

// Deps holds the dependencies for the HTTP server.
type Deps struct {
	Store store.Store
	// Registry resolves variants when a save is checked. Defaults to the builtins.
	Registry  *registry.Registry
	Validator *validation.DiagramValidator
	Logger    *slog.Logger
	// AsciiBin is the optional mermaid-ascii binary for text diagrams.
	AsciiBin string
	// Hub receives a process.saved event per successful save and feeds the
	// event streams. Optional.
	Hub streaming.Hub
}

// Server serves the process endpoints.
type Server struct {
	deps Deps
}

// NewServer creates a Server.
func NewServer(deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	if deps.Registry == nil {
		deps.Registry = registry.Default()
	}
	return &Server{deps: deps}
}

// Handler returns the HTTP handler for all routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)

	mux.HandleFunc("GET /processes", s.handleListProcesses)
	mux.HandleFunc("GET /processes/{id}/payload", s.handleOpenProcess)
	mux.HandleFunc("POST /processes/{id}", s.handleSaveProcess)
	mux.HandleFunc("GET /processes/{id}/diagram", s.handleDiagram)
	mux.HandleFunc("GET /processes/{id}/validate", s.handleValidate)
	mux.HandleFunc("GET /processes/{id}/revisions", s.handleListRevisions)
	mux.HandleFunc("GET /processes/{id}/revisions/{rev}/payload", s.handleOpenRevision)

	mux.HandleFunc("GET /events", s.handleEvents)
	mux.HandleFunc("GET /processes/{id}/events", s.handleProcessEvents)

	return s.withRequestID(mux)
}

// withRequestID tags every request with an id, echoed in X-Request-ID and
// attached to log records through the request context.
func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)

		ctx := logging.WithRequestID(r.Context(), id)
		start := time.Now()
		next.ServeHTTP(w, r.WithContext(ctx))
		s.deps.Logger.DebugContext(ctx, "request served",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Duration("elapsed", time.Since(start)),
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeDesignerError maps a designer error code to an HTTP status.
func writeDesignerError(w http.ResponseWriter, err error) {
	var de *schema.DesignerError
	if !errors.As(err, &de) {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, statusFor(de.Code), de)
}

func statusFor(code string) int {
	switch code {
	case schema.ErrCodeNotFound:
		return http.StatusNotFound
	case schema.ErrCodeConflict:
		return http.StatusConflict
	case schema.ErrCodeFormat, schema.ErrCodeUnsafeDelimiter, schema.ErrCodeUnknownVariant, schema.ErrCodeValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// queryInt extracts an integer query param with a default value.
func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
