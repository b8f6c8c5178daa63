package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/custodia-labs/podtutor/internal/core/ports/driving"
)

// Pinger is a simple health check interface
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server represents the HTTP server
type Server struct {
	httpServer *http.Server
	router     *http.ServeMux
	version    string
	maxUpload  int64
	logger     *slog.Logger

	// Services
	episodeService  driving.EpisodeService
	questionService driving.QuestionService

	// Infrastructure checked by /ready, keyed by name
	checks map[string]Pinger
}

// Config holds server configuration
type Config struct {
	Host    string
	Port    int
	Version string

	// StaticDir is served under /static/episodes when set
	StaticDir string

	// AllowedOrigins feeds the CORS middleware; empty disables CORS headers
	AllowedOrigins []string

	// MaxUploadBytes bounds the multipart body of an upload
	MaxUploadBytes int64

	Logger *slog.Logger
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Host:           "0.0.0.0",
		Port:           8080,
		Version:        "dev",
		AllowedOrigins: []string{"*"},
		MaxUploadBytes: 32 << 20,
	}
}

// NewServer creates a new HTTP server
func NewServer(
	cfg Config,
	episodeService driving.EpisodeService,
	questionService driving.QuestionService,
	checks map[string]Pinger,
) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultConfig().MaxUploadBytes
	}

	s := &Server{
		router:          http.NewServeMux(),
		version:         cfg.Version,
		maxUpload:       cfg.MaxUploadBytes,
		logger:          logger,
		episodeService:  episodeService,
		questionService: questionService,
		checks:          checks,
	}

	s.setupRoutes(cfg.StaticDir)

	handler := NewRecoveryMiddleware(logger).Handler(s.router)
	handler = NewLoggingMiddleware(logger).Handler(handler)
	if len(cfg.AllowedOrigins) > 0 {
		handler = NewCORSMiddleware(cfg.AllowedOrigins).Handler(handler)
	}

	s.httpServer = &http.Server{
		Addr:        fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:     handler,
		ReadTimeout: 60 * time.Second,
		// Questions wait on the LLM and a speech call
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes(staticDir string) {
	// Health endpoints
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("GET /ready", s.handleReady)
	s.router.HandleFunc("GET /version", s.handleVersion)

	// Episode endpoints
	s.router.HandleFunc("POST /api/episodes/upload", s.handleUpload)
	s.router.HandleFunc("GET /api/episodes/{id}/status", s.handleStatus)
	s.router.HandleFunc("GET /api/episodes/{id}/manifest", s.handleManifest)
	s.router.HandleFunc("POST /api/episodes/{id}/reprocess", s.handleReprocess)

	// Question endpoints
	s.router.HandleFunc("POST /api/episodes/{id}/question", s.handleQuestion)
	s.router.HandleFunc("POST /api/episodes/{id}/chat", s.handleChat)

	// Episode audio
	if staticDir != "" {
		s.router.Handle("GET /static/episodes/",
			http.StripPrefix("/static/episodes/", http.FileServer(http.Dir(staticDir))))
	}
}

// Handler returns the root handler with middleware applied
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr, "version", s.version)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// Stop stops the server
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
