// Package server provides the HTTP API for vectorgraph.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/vectorgraph/internal/collection"
	"github.com/hyperjump/vectorgraph/internal/config"
	"github.com/hyperjump/vectorgraph/internal/search"
	"github.com/hyperjump/vectorgraph/internal/storage"
)

// Server is the HTTP server for the vectorgraph API.
type Server struct {
	registry  *collection.Registry
	engine    *search.Engine
	storage   storage.Storage
	config    *config.Config
	logger    *zap.Logger
	server    *http.Server
	startedAt time.Time
}

// NewServer creates a server with the given dependencies. store may be nil
// when no durable catalog is configured.
func NewServer(
	registry *collection.Registry,
	engine *search.Engine,
	store storage.Storage,
	cfg *config.Config,
	logger *zap.Logger,
) *Server {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		registry:  registry,
		engine:    engine,
		storage:   store,
		config:    cfg,
		logger:    logger,
		startedAt: time.Now(),
	}
}

// Router builds the chi router with middleware and all routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)
	if s.config.Server.RequestTimeout > 0 {
		r.Use(middleware.Timeout(s.config.Server.RequestTimeout))
	}
	r.Use(middleware.Compress(5))

	r.Get("/health", s.handleHealth)
	r.Get("/status", s.handleStatus)

	r.Get("/collections", s.handleListCollections)
	r.Route("/collections/{name}", func(r chi.Router) {
		r.Put("/", s.handleCreateCollection)
		r.Get("/", s.handleGetCollection)
		r.Delete("/", s.handleDeleteCollection)
		r.Get("/points/{id}", s.handleGetPoint)
		r.Post("/query", s.handleQuery)

		r.Route("/graph", func(r chi.Router) {
			r.Get("/", s.handleGraphDump)
			r.Post("/relationships", s.handleAddRelationship)
			r.Get("/nodes/{id}/relationships", s.handleNodeRelationships)
			r.Get("/nodes/{id}/related", s.handleRelated)
			r.Get("/nodes/{id}/connected", s.handleConnected)
			r.Get("/nodes/{id}/neighbors", s.handleNeighbors)
			r.Post("/traverse", s.handleTraverse)
			r.Post("/shortest-path", s.handleShortestPath)
		})
	})
	r.Post("/upsert", s.handleUpsert)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.respondJSON(w, http.StatusNotFound, errorBody{Status: "error", Kind: "not_found", Message: "route not found"})
	})
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := s.config.Server.Address()
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.Router(),
		ReadTimeout:  s.config.Server.ReadTimeout,
		WriteTimeout: s.config.Server.WriteTimeout,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
