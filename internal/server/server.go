// Package server exposes the game over HTTP: REST commands under /api and a
// websocket stream of state changes under /ws.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/alanyoungcy/dockside/internal/domain"
	"github.com/alanyoungcy/dockside/internal/server/handler"
	"github.com/alanyoungcy/dockside/internal/server/middleware"
	"github.com/alanyoungcy/dockside/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // plain key or bcrypt hash; empty disables auth
	// RateLimit is requests per RateWindow per client IP; 0 disables it.
	RateLimit    int
	RateWindow   time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health   *handler.HealthHandler
	Status   *handler.StatusHandler
	Sessions *handler.SessionHandler
	Movement *handler.MovementHandler
	Dock     *handler.DockHandler
}

// Server is the HTTP + WebSocket API server.
type Server struct {
	httpServer *http.Server
	handler    http.Handler
	logger     *slog.Logger
}

// NewServer creates a new Server with all routes registered on the ServeMux.
// limiter may be nil.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)
	mux.HandleFunc("GET /api/status", handlers.Status.GetStatus)

	mux.HandleFunc("POST /api/sessions", handlers.Sessions.Login)
	mux.HandleFunc("GET /api/sessions", handlers.Sessions.ListSessions)
	mux.HandleFunc("GET /api/sessions/{id}", handlers.Sessions.GetSession)
	mux.HandleFunc("DELETE /api/sessions/{id}", handlers.Sessions.Logout)

	mux.HandleFunc("POST /api/sessions/{id}/move/left", handlers.Movement.MoveLeft)
	mux.HandleFunc("POST /api/sessions/{id}/move/right", handlers.Movement.MoveRight)

	mux.HandleFunc("GET /api/sessions/{id}/items", handlers.Dock.ListItems)
	mux.HandleFunc("GET /api/sessions/{id}/items/{item}", handlers.Dock.GetItem)
	mux.HandleFunc("POST /api/sessions/{id}/items/{item}/buy", handlers.Dock.Buy)
	mux.HandleFunc("POST /api/sessions/{id}/items/{item}/sell", handlers.Dock.Sell)
	mux.HandleFunc("GET /api/sessions/{id}/trades", handlers.Dock.ListTrades)

	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	// Build the middleware chain, innermost first.
	var h http.Handler = mux
	h = middleware.Auth(cfg.APIKey, "/api/health")(h)
	if limiter != nil && cfg.RateLimit > 0 {
		window := cfg.RateWindow
		if window <= 0 {
			window = time.Second
		}
		h = middleware.RateLimit(limiter, cfg.RateLimit, window)(h)
	}
	h = middleware.CORS(cfg.CORSOrigins)(h)
	h = chimw.Recoverer(h)
	h = middleware.Logging(logger)(h)
	h = middleware.RequestIDHeader(h)
	h = chimw.RealIP(h)
	h = chimw.RequestID(h)

	readTimeout := cfg.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = 15 * time.Second
	}
	writeTimeout := cfg.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 30 * time.Second
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		handler:    h,
		logger:     logger,
	}
}

// Handler returns the fully wrapped handler.
func (s *Server) Handler() http.Handler { return s.handler }

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
