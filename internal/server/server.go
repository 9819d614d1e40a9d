// Package server exposes the analysis pipeline over HTTP. One runner
// and one artifact store are shared across requests; every request
// scans its own source tree.
package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"archmap/pkg/artifact"
	"archmap/pkg/config"
	"archmap/pkg/errors"
	"archmap/pkg/pipeline"
)

// Server routes HTTP requests to the pipeline.
type Server struct {
	runner *pipeline.Runner
	store  artifact.Store
	cfg    *config.Config
	logger *log.Logger
	router chi.Router
}

// New wires a server. A nil store disables run persistence.
func New(runner *pipeline.Runner, store artifact.Store, cfg *config.Config, logger *log.Logger) *Server {
	if store == nil {
		store = artifact.NewNullStore()
	}
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = log.Default()
	}
	s := &Server{
		runner: runner,
		store:  store,
		cfg:    cfg,
		logger: logger,
	}
	s.router = s.buildRouter()
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(s.requestID)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Use(s.requireAPIKey)
		r.Post("/diagram", s.handleDiagram)
		r.Get("/runs/{id}", s.handleGetRun)
	})

	return r
}

// DiagramResponse is the body returned by POST /api/diagram.
type DiagramResponse struct {
	RunID       string              `json:"run_id"`
	Diagram     string              `json:"diagram"`
	Artifacts   map[string][]byte   `json:"artifacts,omitempty"`
	Routes      json.RawMessage     `json:"routes,omitempty"`
	Callgraph   json.RawMessage     `json:"callgraph,omitempty"`
	Diagnostics []errors.Diagnostic `json:"diagnostics,omitempty"`
	RasterError *RasterError        `json:"raster_error,omitempty"`
	Cached      bool                `json:"cached"`
}

// RasterError is the wire form of a failed rasterization.
type RasterError struct {
	Command  string `json:"command"`
	ExitCode int    `json:"exit_code"`
	Stderr   string `json:"stderr"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleDiagram(w http.ResponseWriter, r *http.Request) {
	var opts pipeline.Options
	if err := json.NewDecoder(r.Body).Decode(&opts); err != nil {
		s.writeError(w, r, errors.Wrap(errors.ErrCodeInvalidInput, err, "decode request body"))
		return
	}

	// Runtime fields come from server configuration, never the request.
	opts.Logger = requestLogger(r)
	opts.MermaidCLI = s.cfg.Raster.MermaidCLI
	opts.RasterTimeout = s.cfg.RasterTimeout()

	result, err := s.runner.Execute(r.Context(), opts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	resp := &DiagramResponse{
		RunID:       uuid.New().String(),
		Diagram:     result.Diagram,
		Artifacts:   result.Artifacts,
		Routes:      result.RoutesJSON,
		Callgraph:   result.CallgraphJSON,
		Diagnostics: result.Diagnostics,
		Cached:      result.CacheInfo.RenderHit,
	}
	if result.RasterErr != nil {
		resp.RasterError = &RasterError{
			Command:  result.RasterErr.Command,
			ExitCode: result.RasterErr.ExitCode,
			Stderr:   result.RasterErr.Stderr,
		}
	}

	run := &artifact.Run{
		ID:          resp.RunID,
		CreatedAt:   time.Now().UTC(),
		RequestHash: result.RenderHash,
		Diagram:     result.Diagram,
		Routes:      result.RoutesJSON,
		Callgraph:   result.CallgraphJSON,
	}
	if err := s.store.Save(r.Context(), run); err != nil {
		requestLogger(r).Warn("failed to persist run", "id", run.ID, "err", err)
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	run, err := s.store.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// errorResponse is the wire form of a failed request.
type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// writeError maps error codes onto HTTP statuses.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := errors.GetCode(err)

	status := http.StatusInternalServerError
	switch code {
	case errors.ErrCodeInvalidInput, errors.ErrCodeInvalidPolicy,
		errors.ErrCodeInvalidFormat, errors.ErrCodeInvalidAppRef:
		status = http.StatusBadRequest
	case errors.ErrCodeNotFound, errors.ErrCodeRootNotFound:
		status = http.StatusNotFound
	case errors.ErrCodeUnauthorized:
		status = http.StatusUnauthorized
	case errors.ErrCodeTimeout:
		status = http.StatusGatewayTimeout
	}

	if status >= 500 {
		requestLogger(r).Error("request failed", "code", code, "err", err)
	}

	var resp errorResponse
	resp.Error.Code = string(code)
	resp.Error.Message = errors.UserMessage(err)
	writeJSON(w, status, &resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
