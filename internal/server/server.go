package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/mellobo05/Ai-Assisted-Debug/internal/classifier"
	"github.com/mellobo05/Ai-Assisted-Debug/internal/config"
	"github.com/mellobo05/Ai-Assisted-Debug/internal/issues"
	"github.com/mellobo05/Ai-Assisted-Debug/internal/orchestrator"
	"github.com/mellobo05/Ai-Assisted-Debug/internal/runs"
)

// Analyzer runs the retrieval pipeline.
type Analyzer interface {
	Run(ctx context.Context, req orchestrator.Request) (*orchestrator.Result, error)
	Search(ctx context.Context, query, component, domain string, limit int, exclude ...string) ([]issues.Match, classifier.Diagnostics, error)
}

// IssueReader looks up stored issues.
type IssueReader interface {
	Fetch(ctx context.Context, key string) (*issues.Document, error)
}

// RunLister lists persisted analysis runs.
type RunLister interface {
	ListByIssue(ctx context.Context, issueKey string, limit int) ([]runs.Record, error)
}

// Server is the HTTP front end of the analysis pipeline.
type Server struct {
	cfg        config.ServerConfig
	pipeline   config.PipelineConfig
	analyzer   Analyzer
	issues     IssueReader
	runs       RunLister
	logger     *zap.Logger
	router     chi.Router
	httpServer *http.Server
}

// New creates a server. runs may be nil, in which case /api/runs reports
// an empty history.
func New(cfg config.ServerConfig, pipeline config.PipelineConfig, analyzer Analyzer, issueReader IssueReader, runLister RunLister, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		cfg:      cfg,
		pipeline: pipeline,
		analyzer: analyzer,
		issues:   issueReader,
		runs:     runLister,
		logger:   logger,
	}
	s.router = s.buildRouter()
	return s
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	corsOpts := cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "http://127.0.0.1:*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}
	if s.cfg.AllowAll {
		corsOpts.AllowedOrigins = []string{"*"}
	}
	r.Use(cors.Handler(corsOpts))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	// The stream is long lived and outside the request timeout.
	r.Get("/api/analyze/ws", s.handleAnalyzeStream)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(120 * time.Second))
		r.Post("/api/analyze", s.handleAnalyze)
		r.Get("/api/search", s.handleSearch)
		r.Get("/api/issues/{key}", s.handleGetIssue)
		r.Get("/api/issues/{key}/similar", s.handleSimilar)
		r.Get("/api/runs/{key}", s.handleRuns)
	})

	return r
}

// Router returns the chi router.
func (s *Server) Router() chi.Router { return s.router }

// Start begins listening on the configured port.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      180 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	s.logger.Info("aidebug server listening", zap.String("addr", addr))
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			s.logger.Debug("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("elapsed", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())))
		}()
		next.ServeHTTP(ww, r)
	})
}
