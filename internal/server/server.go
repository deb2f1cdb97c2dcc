// ABOUTME: HTTP server that exposes one persisted game over a JSON API
// ABOUTME: Serialises requests against the engine and manages listener lifecycle

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

	"github.com/2389/tictac/internal/dedupe"
	"github.com/2389/tictac/internal/game"
)

// Config holds the server settings.
type Config struct {
	HTTPAddr           string
	IdempotencyTTL     time.Duration
	IdempotencyMaxKeys int
}

// Server owns a game engine and serves it over HTTP.
type Server struct {
	config Config
	logger *slog.Logger

	// mu serialises every engine access; the engine has a single owner.
	mu     sync.Mutex
	engine *game.Engine

	// idemMu makes check-then-record of an idempotency key atomic.
	idemMu sync.Mutex
	dedupe *dedupe.Cache

	events     *Broadcaster
	httpServer *http.Server
}

// New creates a server for engine. Pass nil logger for default.
func New(cfg Config, engine *game.Engine, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "server")

	s := &Server{
		config: cfg,
		logger: logger,
		engine: engine,
		dedupe: dedupe.New(cfg.IdempotencyTTL, cfg.IdempotencyMaxKeys),
		events: NewBroadcaster(logger),
	}

	s.httpServer = &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the routes of the API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/game", s.handleGame)
	mux.HandleFunc("/api/game/moves", s.idempotent(s.handleMove))
	mux.HandleFunc("/api/game/goto", s.idempotent(s.handleGoto))
	mux.HandleFunc("/api/game/reset", s.idempotent(s.handleReset))
	mux.HandleFunc("/api/game/events", s.handleEvents)
	return mux
}

// Run listens on the configured address and blocks until ctx is canceled or
// the server fails.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listening on HTTP address: %w", err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is canceled. Returns nil on
// graceful shutdown.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	var serverErr error
	select {
	case <-ctx.Done():
		s.logger.Info("context canceled, initiating shutdown")
	case serverErr = <-errCh:
		s.logger.Error("server error", "error", serverErr)
	}

	// Fresh context: the caller's is already done.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	shutdownErr := s.Shutdown(shutdownCtx)

	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// Shutdown ends event streams, stops the HTTP server and releases the cache.
// The engine's store is owned by the caller and stays open.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")

	// Event streams return once their channel closes; Shutdown would wait on them otherwise.
	s.events.Close()
	err := s.httpServer.Shutdown(ctx)
	s.dedupe.Close()

	if err != nil {
		return fmt.Errorf("HTTP shutdown: %w", err)
	}
	return nil
}
