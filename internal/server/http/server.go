// Package httpserver provides the HTTP REST API for the bibliographic sync
// service.
package httpserver

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/openshelf/bibsync-service/internal/citegraph"
	"github.com/openshelf/bibsync-service/internal/database"
	"github.com/openshelf/bibsync-service/internal/events"
	"github.com/openshelf/bibsync-service/internal/registry"
	"github.com/openshelf/bibsync-service/internal/repository"
	syncengine "github.com/openshelf/bibsync-service/internal/sync"
)

// Server is the HTTP REST API server.
type Server struct {
	router      chi.Router
	httpServer  *http.Server
	engine      *syncengine.Engine
	papers      repository.PaperRepository
	registry    *registry.Registry
	graph       *citegraph.Cache
	broadcaster *events.Broadcaster
	db          *database.DB
	validate    *validator.Validate
	logger      zerolog.Logger
}

// Config holds HTTP server configuration.
type Config struct {
	Address         string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// NewServer creates a new HTTP server with all dependencies.
func NewServer(
	cfg Config,
	engine *syncengine.Engine,
	papers repository.PaperRepository,
	reg *registry.Registry,
	graph *citegraph.Cache,
	broadcaster *events.Broadcaster,
	db *database.DB,
	logger zerolog.Logger,
) *Server {
	s := &Server{
		engine:      engine,
		papers:      papers,
		registry:    reg,
		graph:       graph,
		broadcaster: broadcaster,
		db:          db,
		validate:    validator.New(),
		logger:      logger.With().Str("component", "http-server").Logger(),
	}

	s.router = s.buildRouter()

	s.httpServer = &http.Server{
		Addr:         cfg.Address,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return s
}

// buildRouter creates the chi router with all middleware and routes.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(correlationIDMiddleware)

	r.Get("/healthz", s.healthHandler)
	r.Get("/readyz", s.readinessHandler)

	r.Route("/v1", func(r chi.Router) {
		r.Route("/sync", func(r chi.Router) {
			r.Post("/", s.startSync)
			r.Post("/cancel", s.cancelSync)
			r.Get("/status", s.syncStatus)
			r.Get("/progress", s.streamProgress)
		})

		r.Route("/papers", func(r chi.Router) {
			r.Get("/", s.listPapers)
			r.Get("/{paperID}", s.getPaper)
			r.Get("/{paperID}/references", s.getReferences)
			r.Get("/{paperID}/citations", s.getCitations)
		})
	})

	return r
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info().Str("address", s.httpServer.Addr).Msg("HTTP server starting")
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on HTTP address: %w", err)
	}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// healthHandler returns basic liveness status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	health := s.db.Health(r.Context())
	if health.Status == "healthy" {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "database": health.Status})
		return
	}
	writeJSON(w, http.StatusServiceUnavailable, map[string]string{
		"status":   "unhealthy",
		"database": health.Status,
		"error":    health.Error,
	})
}

// readinessHandler returns readiness status including database connectivity.
func (s *Server) readinessHandler(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
		return
	}
	health := s.db.Health(r.Context())
	if health.Status != "healthy" {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":   "not_ready",
			"database": health.Status,
			"error":    health.Error,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "ready",
		"database": "healthy",
	})
}
