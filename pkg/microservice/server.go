// Package microservice provides the HTTP server that hosts the transport's
// inbound pipeline, with a health probe and optional TLS.
package microservice

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// ServerConfig holds configuration for a BaseServer.
type ServerConfig struct {
	// Addr is the host:port to listen on. Port 0 picks a free port.
	Addr string
	// TLS enables HTTPS when non-nil.
	TLS *tls.Config
	// ReadHeaderTimeout bounds how long a client may take to send request headers.
	ReadHeaderTimeout time.Duration
}

// BaseServer wraps an http.Server around a chi router.
type BaseServer struct {
	Logger     zerolog.Logger
	cfg        ServerConfig
	httpServer *http.Server
	router     chi.Router
	actualAddr string
	mu         sync.RWMutex
}

// NewBaseServer creates and initializes a new BaseServer with GET /healthz mounted.
func NewBaseServer(cfg ServerConfig, logger zerolog.Logger) *BaseServer {
	r := chi.NewRouter()
	r.Get("/healthz", HealthzHandler)

	if cfg.ReadHeaderTimeout <= 0 {
		cfg.ReadHeaderTimeout = 10 * time.Second
	}
	return &BaseServer{
		Logger: logger.With().Str("component", "BaseServer").Logger(),
		cfg:    cfg,
		router: r,
		httpServer: &http.Server{
			Addr:              cfg.Addr,
			Handler:           r,
			ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		},
	}
}

// Start binds the listener and serves in a background goroutine.
func (s *BaseServer) Start() error {
	listener, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr, err)
	}
	if s.cfg.TLS != nil {
		listener = tls.NewListener(listener, s.cfg.TLS)
	}

	s.mu.Lock()
	s.actualAddr = listener.Addr().String()
	s.mu.Unlock()

	s.Logger.Info().Str("address", s.actualAddr).Bool("tls", s.cfg.TLS != nil).Msg("HTTP server starting to listen")

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.Logger.Error().Err(err).Msg("HTTP server failed")
		}
	}()

	return nil
}

// Shutdown gracefully stops the HTTP server, respecting the provided context's deadline.
func (s *BaseServer) Shutdown(ctx context.Context) error {
	s.Logger.Info().Msg("Shutting down HTTP server...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.Logger.Error().Err(err).Msg("Error during HTTP server shutdown.")
		return err
	}
	s.Logger.Info().Msg("HTTP server stopped.")
	return nil
}

// Addr returns the address the server is listening on, or the configured one
// before Start.
func (s *BaseServer) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.actualAddr == "" {
		return s.cfg.Addr
	}
	return s.actualAddr
}

// Router returns the underlying chi router for mounting handlers.
func (s *BaseServer) Router() chi.Router {
	return s.router
}

// HealthzHandler responds to health check probes.
func HealthzHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}
