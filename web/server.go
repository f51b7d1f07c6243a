// ABOUTME: HTTP server exposing the invocation graph: template uploads, graph reads,
// ABOUTME: validation, and a rendered report behind a single chi router.
package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/2389-research/trunkline/extract"
	"github.com/2389-research/trunkline/graph"
	"github.com/2389-research/trunkline/store"
)

// Server holds the accumulated invocation graph and serves it over HTTP.
// Uploaded templates are parsed, merged into the held graph, and persisted to
// GraphPath when one is configured.
type Server struct {
	engine    *extract.Engine
	router    chi.Router
	addr      string
	graphPath string

	// mu guards current against concurrent uploads and reads.
	mu      sync.RWMutex
	current *graph.Graph
}

// ServerConfig holds the configuration for the graph server.
type ServerConfig struct {
	Addr      string       // listen address (default: "127.0.0.1:8080")
	GraphPath string       // optional path for loading and persisting the graph
	Graph     *graph.Graph // initial graph; loaded from GraphPath when nil
}

// NewServer creates a Server with the given configuration. When no initial
// graph is provided it loads one from GraphPath, falling back to an empty
// graph for a missing file.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:8080"
	}

	g := cfg.Graph
	if g == nil && cfg.GraphPath != "" {
		loaded, err := store.LoadGraph(cfg.GraphPath)
		if err != nil {
			return nil, fmt.Errorf("loading graph: %w", err)
		}
		g = loaded
	}
	if g == nil {
		g = graph.New()
	}

	s := &Server{
		engine:    extract.NewEngine(extract.EngineConfig{}),
		addr:      cfg.Addr,
		graphPath: cfg.GraphPath,
		current:   g,
	}
	s.router = s.buildRouter()
	return s, nil
}

// ServeHTTP delegates to the chi router, satisfying http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe starts the HTTP server on the configured address with
// timeouts to prevent resource exhaustion from slow clients. It shuts down
// gracefully when ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      time.Minute,
		IdleTimeout:       2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.addr
}

// buildRouter constructs the chi router with all routes and middleware.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Get("/report", s.handleReport)

	r.Route("/api", func(r chi.Router) {
		r.Post("/templates", s.handleTemplateUpload)
		r.Get("/graph", s.handleGraph)
		r.Get("/graph.dot", s.handleGraphDOT)
		r.Get("/resources", s.handleResourceList)
		r.Get("/resources/{name}", s.handleResourceDetail)
		r.Get("/validate", s.handleValidate)
	})

	return r
}

// handleHealth returns a JSON health check response.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeJSON writes v as a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
