// Package httpserver provides the HTTP REST API consumed by the operator
// client: analysis initiation, filter counting, progress polling, manual
// result application, reset, and the SSE event stream.
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

	"github.com/contentive/topic-analysis-service/internal/classifier"
	"github.com/contentive/topic-analysis-service/internal/config"
	"github.com/contentive/topic-analysis-service/internal/database"
	"github.com/contentive/topic-analysis-service/internal/repository"
)

// WorkflowClient defines the workflow operations the HTTP server uses.
type WorkflowClient interface {
	StartAnalysisWorkflow(ctx context.Context, requestID string, workflowFunc interface{}, input interface{}) (workflowID, runID string, err error)
	StartApplyWorkflow(ctx context.Context, requestID string, workflowFunc interface{}, input interface{}) (workflowID, runID string, err error)
	CancelWorkflow(ctx context.Context, workflowID string) error
}

// ClassifierClient defines the classification service operations the HTTP
// server calls directly, outside of any workflow.
type ClassifierClient interface {
	InitiateBulk(ctx context.Context, contentCount int) (string, error)
	PollAnalysis(ctx context.Context, requestID string) (*classifier.PollStatus, error)
}

// Server is the HTTP REST API server.
type Server struct {
	router           chi.Router
	httpServer       *http.Server
	workflowClient   WorkflowClient
	analysisWorkflow interface{} // BulkAnalysisWorkflow function reference.
	applyWorkflow    interface{} // ApplyResultsWorkflow function reference.
	classifier       ClassifierClient
	contentRepo      repository.ContentRepository
	stateRepo        repository.StateRepository
	db               *database.DB
	hub              *EventHub
	validate         *validator.Validate
	analysisCfg      config.AnalysisConfig
	legacyResults    bool
	logger           zerolog.Logger
}

// Config holds HTTP server configuration.
type Config struct {
	Address         string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// Options bundles the dependencies of NewServer.
type Options struct {
	WorkflowClient   WorkflowClient
	AnalysisWorkflow interface{}
	ApplyWorkflow    interface{}
	Classifier       ClassifierClient
	ContentRepo      repository.ContentRepository
	StateRepo        repository.StateRepository
	DB               *database.DB
	AnalysisConfig   config.AnalysisConfig
	LegacyResults    bool
	Logger           zerolog.Logger
}

// NewServer creates a new HTTP server with all dependencies.
func NewServer(cfg Config, opts Options) *Server {
	s := &Server{
		workflowClient:   opts.WorkflowClient,
		analysisWorkflow: opts.AnalysisWorkflow,
		applyWorkflow:    opts.ApplyWorkflow,
		classifier:       opts.Classifier,
		contentRepo:      opts.ContentRepo,
		stateRepo:        opts.StateRepo,
		db:               opts.DB,
		hub:              NewEventHub(),
		validate:         validator.New(),
		analysisCfg:      opts.AnalysisConfig,
		legacyResults:    opts.LegacyResults,
		logger:           opts.Logger.With().Str("component", "http-server").Logger(),
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

	r.Route("/api/v1/analysis", func(r chi.Router) {
		r.Post("/initiate", s.initiateAnalysis)
		r.Get("/count", s.countContent)
		r.Get("/poll", s.pollProgress)
		r.Post("/apply-results", s.applyResults)
		r.Post("/reset", s.resetAnalysis)
		r.Get("/events", s.streamEvents)
	})

	return r
}

// Router returns the HTTP handler, used by tests.
func (s *Server) Router() http.Handler {
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

// Shutdown gracefully shuts down the HTTP server and closes the event hub.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Close()
	return s.httpServer.Shutdown(ctx)
}

// healthHandler returns basic liveness status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
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

// readinessHandler returns readiness status.
func (s *Server) readinessHandler(w http.ResponseWriter, r *http.Request) {
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
