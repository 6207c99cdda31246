// Package server wires the HTTP surface: routing, middleware, and
// graceful lifecycle for the extraction gateway.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/lexgate/lexgate/internal/api"
	"github.com/lexgate/lexgate/internal/auth"
	"github.com/lexgate/lexgate/internal/config"
	"github.com/lexgate/lexgate/internal/engine"
	"github.com/lexgate/lexgate/internal/extract"
	"github.com/lexgate/lexgate/internal/pdfx"
	"github.com/lexgate/lexgate/internal/server/endpoints"
	"github.com/lexgate/lexgate/internal/svcctx"
)

// Server is the lexgate HTTP server.
type Server struct {
	httpServer *http.Server
	dispatcher *extract.Dispatcher
	configSrc  config.Source
	logger     *slog.Logger

	// services holds all core services for context enrichment
	services *svcctx.Services

	// endpoints registry for HTTP routes
	endpointRegistry *api.Registry

	mu      sync.RWMutex
	running bool
}

// Config holds server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1)
	Host string
	// Port is the port to listen on (default: 8080)
	Port string
	// ConfigSource provides configuration; limits and secrets are read
	// per request so hot reloads take effect.
	ConfigSource config.Source
	// Engine overrides the provider-backed engine (tests). When nil, an
	// OpenAI-compatible engine is built from the configuration.
	Engine engine.Engine
	// PDF overrides the PDF text converter (tests).
	PDF pdfx.Converter
	// Logger is the structured logger to use.
	Logger *slog.Logger
}

// New creates a new Server with the given configuration. The admission
// gate, dispatch deadline, and engine are fixed from the startup config
// snapshot; validation limits and secrets follow reloads.
func New(cfg Config) (*Server, error) {
	if cfg.ConfigSource == nil {
		return nil, fmt.Errorf("config source is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	startup := cfg.ConfigSource.Get()
	if cfg.Host == "" {
		cfg.Host = startup.Host
	}
	if cfg.Port == "" {
		cfg.Port = startup.Port
	}

	eng := cfg.Engine
	if eng == nil {
		eng = engine.NewOpenAIEngine(engine.OpenAIConfig{
			APIKey:  startup.ProviderAPIKey,
			BaseURL: startup.ProviderBaseURL,
			Timeout: startup.RequestTimeout(),
			Logger:  cfg.Logger,
		})
	}

	converter := cfg.PDF
	if converter == nil {
		converter = pdfx.NewReader()
	}

	gate := extract.NewGate(startup.MaxConcurrency)
	dispatcher := extract.NewDispatcher(gate, eng, startup.RequestTimeout(), cfg.Logger)

	s := &Server{
		dispatcher: dispatcher,
		configSrc:  cfg.ConfigSource,
		logger:     cfg.Logger,
		services: &svcctx.Services{
			Dispatcher: dispatcher,
			Config:     cfg.ConfigSource,
			PDF:        converter,
			Logger:     cfg.Logger,
		},
	}

	// Create endpoint registry and register all endpoints
	s.endpointRegistry = api.NewRegistry()
	for _, ep := range endpoints.All() {
		s.endpointRegistry.Register(ep)
	}

	// Set up HTTP server
	mux := http.NewServeMux()
	s.endpointRegistry.RegisterRoutes(mux, s.requireAPIKey)

	s.httpServer = &http.Server{
		Addr:         net.JoinHostPort(cfg.Host, cfg.Port),
		Handler:      s.withServices(mux),
		ReadTimeout:  30 * time.Second,
		// Writes must outlast the dispatch deadline.
		WriteTimeout: startup.RequestTimeout() + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s, nil
}

// Start starts the server. It blocks until the context is cancelled or
// an error occurs.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server already running")
	}
	s.running = true
	s.mu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			s.setNotRunning()
			return fmt.Errorf("HTTP server error: %w", err)
		}
	}

	return s.shutdown()
}

// shutdown performs graceful shutdown of the HTTP server.
func (s *Server) shutdown() error {
	s.logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
	}

	s.setNotRunning()
	s.logger.Info("server stopped")
	return nil
}

func (s *Server) setNotRunning() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

// IsRunning returns whether the server is currently running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Addr returns the server's listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Handler returns the fully wired HTTP handler (tests).
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Dispatcher returns the dispatch executor.
func (s *Server) Dispatcher() *extract.Dispatcher {
	return s.dispatcher
}

// withServices wraps a handler to enrich the request context with services.
func (s *Server) withServices(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := svcctx.WithServices(r.Context(), s.services)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireAPIKey is middleware enforcing the caller credential check.
// An unconfigured service key fails 503 before any payload is inspected;
// a missing or mismatched key fails 401.
func (s *Server) requireAPIKey(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		gate := auth.NewGate(s.configSrc.Get().ServiceAPIKey)
		if err := gate.Check(r.Header.Get("X-API-Key")); err != nil {
			status := http.StatusUnauthorized
			if errors.Is(err, auth.ErrNotConfigured) {
				status = http.StatusServiceUnavailable
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			fmt.Fprintf(w, `{"error":%q}`, err.Error())
			return
		}
		next(w, r)
	}
}
