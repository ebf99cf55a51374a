package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/mev-engine/mev-searcher/internal/api"
	"github.com/mev-engine/mev-searcher/internal/config"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

// Application wires configuration into a running engine: the simple
// HTTP status/override surface, the authenticated/rate-limited/
// WebSocket API on its own port, and the orchestrator's mempool,
// scheduler, and bundle-manager lifecycle (§4.13).
type Application struct {
	config    *config.Config
	log       zerolog.Logger
	server    *http.Server
	apiServer *api.Server
	wiring    *wiring
	startTime time.Time
	mu        sync.RWMutex
	status    string
}

// StatusResponse is the API status response.
type StatusResponse struct {
	Status    string          `json:"status"`
	RunMode   string          `json:"run_mode"`
	Uptime    string          `json:"uptime"`
	Version   string          `json:"version"`
	Timestamp time.Time       `json:"timestamp"`
	Health    map[string]bool `json:"health,omitempty"`
}

// NewApplication creates a new application instance.
func NewApplication(cfg *config.Config) *Application {
	return &Application{
		config:    cfg,
		log:       zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).With().Timestamp().Logger(),
		startTime: time.Now(),
		status:    "starting",
	}
}

// Start brings the engine up: it builds the run-mode-dependent
// collaborator graph, starts the orchestrator, and serves the status
// API until ctx is cancelled.
func (a *Application) Start(ctx context.Context) error {
	a.log.Info().
		Str("host", a.config.Server.Host).
		Int("port", a.config.Server.Port).
		Str("run_mode", a.config.RunMode).
		Msg("starting mev engine")

	w, err := buildWiring(ctx, a.config, a.log)
	if err != nil {
		return fmt.Errorf("app: build wiring: %w", err)
	}
	a.wiring = w

	if err := w.orchestrator.Start(ctx); err != nil {
		return fmt.Errorf("app: start orchestrator: %w", err)
	}

	a.mu.Lock()
	a.status = "running"
	a.mu.Unlock()

	router := mux.NewRouter()
	apiRouter := router.PathPrefix("/api/v1").Subrouter()
	apiRouter.HandleFunc("/status", a.handleStatus).Methods("GET")
	apiRouter.HandleFunc("/override/{command}", a.handleOverride).Methods("POST")
	apiRouter.HandleFunc("/health", a.handleHealth).Methods("GET")

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	})

	a.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", a.config.Server.Host, a.config.Server.Port),
		Handler:      c.Handler(router),
		ReadTimeout:  a.config.Server.ReadTimeout,
		WriteTimeout: a.config.Server.WriteTimeout,
		IdleTimeout:  a.config.Server.IdleTimeout,
	}

	go func() {
		a.log.Info().Str("addr", a.server.Addr).Msg("api server listening")
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.log.Error().Err(err).Msg("api server error")
		}
	}()

	if a.config.Monitoring.MetricsPort != 0 {
		authCfg := *a.config
		authCfg.Server.Port = a.config.Monitoring.MetricsPort
		a.apiServer = api.NewServer(&authCfg, a.log, w.orchestrator, a.startTime)
		if err := a.apiServer.Start(ctx); err != nil {
			return fmt.Errorf("app: start api server: %w", err)
		}
	}

	a.log.Info().Msg("mev engine started")

	<-ctx.Done()
	return nil
}

// Stop tears the engine down: the status listener, then the
// authenticated API listener, then the orchestrator, chain client and
// key-value store.
func (a *Application) Stop(ctx context.Context) error {
	a.log.Info().Msg("stopping mev engine")

	a.mu.Lock()
	a.status = "stopping"
	a.mu.Unlock()

	if a.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.log.Error().Err(err).Msg("api server shutdown error")
		}
	}

	if a.apiServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.apiServer.Stop(shutdownCtx); err != nil {
			a.log.Error().Err(err).Msg("authenticated api server shutdown error")
		}
	}

	if a.wiring != nil {
		if err := a.wiring.orchestrator.Stop(ctx); err != nil {
			a.log.Error().Err(err).Msg("orchestrator shutdown error")
		}
		if a.wiring.chain != nil {
			if err := a.wiring.chain.Close(); err != nil {
				a.log.Error().Err(err).Msg("chain client close error")
			}
		}
		a.wiring.store.Close()
	}

	a.log.Info().Msg("mev engine stopped")
	return nil
}

func (a *Application) handleStatus(w http.ResponseWriter, r *http.Request) {
	a.mu.RLock()
	status := a.status
	a.mu.RUnlock()

	resp := StatusResponse{
		Status:    status,
		RunMode:   a.config.RunMode,
		Uptime:    time.Since(a.startTime).Round(time.Second).String(),
		Version:   "1.0.0",
		Timestamp: time.Now(),
	}
	if a.wiring != nil {
		resp.Health = a.wiring.orchestrator.Health()
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}

// handleOverride records an operator override command against the
// reported status; it does not itself pause the orchestrator.
func (a *Application) handleOverride(w http.ResponseWriter, r *http.Request) {
	command := mux.Vars(r)["command"]
	a.log.Info().Str("command", command).Msg("override command received")

	switch command {
	case "emergency_stop":
		a.mu.Lock()
		a.status = "emergency_stopped"
		a.mu.Unlock()
	case "resume_operation":
		a.mu.Lock()
		a.status = "running"
		a.mu.Unlock()
	default:
		http.Error(w, "unknown command", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "success"})
}

func (a *Application) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
}

// Module provides the fx module for dependency injection.
var Module = fx.Options(
	fx.Provide(
		NewApplication,
	),
)
