// Package server provides the HTTP API for Tsukuru.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/tsukuru/internal/config"
	"github.com/hyperjump/tsukuru/internal/llm"
	"github.com/hyperjump/tsukuru/internal/pipeline"
	"github.com/hyperjump/tsukuru/internal/retrieval"
	"github.com/hyperjump/tsukuru/internal/watcher"
	"github.com/hyperjump/tsukuru/internal/workspace"
)

// Server is the HTTP server for the Tsukuru API.
type Server struct {
	retrieval   *retrieval.Service
	coordinator *pipeline.Coordinator
	writer      *workspace.Writer
	client      llm.Client
	config      *config.Config
	logger      *zap.Logger
	server      *http.Server

	// watch is optional; nil when directory watching is disabled.
	watch      *watcher.Watcher
	configPath string
	configMu   sync.Mutex
}

// NewServer creates a server with the given dependencies.
func NewServer(
	svc *retrieval.Service,
	coordinator *pipeline.Coordinator,
	writer *workspace.Writer,
	client llm.Client,
	cfg *config.Config,
	logger *zap.Logger,
) *Server {
	return &Server{
		retrieval:   svc,
		coordinator: coordinator,
		writer:      writer,
		client:      client,
		config:      cfg,
		logger:      logger,
	}
}

// SetWatcher attaches a directory watcher so the watch management endpoints
// work. configPath, when non-empty, is where directory changes are persisted.
func (s *Server) SetWatcher(w *watcher.Watcher, configPath string) {
	s.watch = w
	s.configPath = configPath
}

// Routes builds the chi router for the API.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	r.Post("/api/v1/ingest", s.handleIngest)
	r.Post("/api/v1/search", s.handleSearch)
	r.Post("/api/v1/ask", s.handleAsk)
	r.Post("/api/v1/generate", s.handleGenerate)
	r.Get("/api/v1/workspace", s.handleWorkspaceInfo)
	r.Get("/api/v1/status", s.handleStatus)
	r.Get("/api/v1/watch/directories", s.handleWatchList)
	r.Post("/api/v1/watch/directories", s.handleWatchAdd)
	r.Delete("/api/v1/watch/directories", s.handleWatchRemove)
	r.Get("/health", s.handleHealth)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
