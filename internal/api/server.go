package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/mev-engine/mev-searcher/internal/config"
	"github.com/mev-engine/mev-searcher/pkg/orchestrator"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
)

// Server implements the authenticated, rate-limited REST+WebSocket
// API surface over a running engine.
type Server struct {
	config          *config.Config
	log             zerolog.Logger
	server          *http.Server
	handlers        *Handlers
	authService     *AuthService
	rateLimiter     *RateLimiter
	websocketServer *WebSocketServer
}

// NewServer creates a new API server wrapping the given orchestrator.
func NewServer(cfg *config.Config, log zerolog.Logger, orch *orchestrator.Orchestrator, startedAt time.Time) *Server {
	authService := NewAuthService()
	rateLimiter := NewRateLimiter()
	websocketServer := NewWebSocketServer()
	handlers := NewHandlers(orch, startedAt)

	server := &Server{
		config:          cfg,
		log:             log,
		handlers:        handlers,
		authService:     authService,
		rateLimiter:     rateLimiter,
		websocketServer: websocketServer,
	}

	server.setupServer()

	return server
}

// Start starts the API server.
func (s *Server) Start(ctx context.Context) error {
	s.log.Info().Str("addr", s.server.Addr).Msg("starting authenticated api server")

	if err := s.websocketServer.Start(ctx); err != nil {
		return fmt.Errorf("failed to start websocket server: %w", err)
	}

	go s.rateLimiterCleanup(ctx)
	go s.statusBroadcastLoop(ctx)

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Error().Err(err).Msg("api server error")
		}
	}()

	return nil
}

// Stop stops the API server.
func (s *Server) Stop(ctx context.Context) error {
	s.log.Info().Msg("stopping authenticated api server")

	if err := s.websocketServer.Stop(ctx); err != nil {
		s.log.Warn().Err(err).Msg("error stopping websocket server")
	}

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown api server: %w", err)
	}

	return nil
}

// GetRouter returns the HTTP router, mainly for tests.
func (s *Server) GetRouter() http.Handler {
	return s.server.Handler
}

// WebSocket returns the underlying websocket server so a caller can
// push broadcasts directly; the server itself only pushes the periodic
// status snapshot from statusBroadcastLoop.
func (s *Server) WebSocket() *WebSocketServer {
	return s.websocketServer
}

// statusBroadcastLoop pushes a status snapshot to every connected
// WebSocket client on a fixed cadence, since the orchestrator has no
// per-opportunity push hook of its own.
func (s *Server) statusBroadcastLoop(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.websocketServer.BroadcastStatus(s.handlers.status()); err != nil {
				s.log.Debug().Err(err).Msg("status broadcast dropped")
			}
		}
	}
}

// setupServer configures the HTTP server and routes.
func (s *Server) setupServer() {
	router := mux.NewRouter()

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	router.Use(s.loggingMiddleware)
	router.Use(s.rateLimiter.RateLimitMiddleware)

	// Public routes (no authentication required)
	router.HandleFunc("/health", HealthHandler).Methods("GET")
	router.HandleFunc("/metrics", s.handlers.GetPrometheusMetrics).Methods("GET")
	router.HandleFunc("/ws", s.websocketServer.HandleWebSocket)

	// Protected API routes
	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(s.authService.AuthMiddleware)

	api.HandleFunc("/status", s.handlers.GetSystemStatus).Methods("GET")
	api.HandleFunc("/strategies", s.handlers.GetStrategies).Methods("GET")
	api.HandleFunc("/scheduler", s.handlers.GetSchedulerStats).Methods("GET")

	handler := c.Handler(router)

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port),
		Handler:      handler,
		ReadTimeout:  s.config.Server.ReadTimeout,
		WriteTimeout: s.config.Server.WriteTimeout,
		IdleTimeout:  s.config.Server.IdleTimeout,
	}
}

// loggingMiddleware logs HTTP requests.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapper := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapper, r)

		s.log.Info().
			Str("method", r.Method).
			Str("uri", r.RequestURI).
			Int("status", wrapper.statusCode).
			Dur("duration", time.Since(start)).
			Str("remote_addr", r.RemoteAddr).
			Msg("api request")
	})
}

// rateLimiterCleanup periodically cleans up expired rate limiter entries.
func (s *Server) rateLimiterCleanup(ctx context.Context) {
	ticker := time.NewTicker(15 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.rateLimiter.CleanupExpiredClients()
		}
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
