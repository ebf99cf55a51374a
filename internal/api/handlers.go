package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/mev-engine/mev-searcher/pkg/orchestrator"
)

// StatusPayload is the engine-wide status snapshot served over REST
// and pushed over the WebSocket status channel.
type StatusPayload struct {
	Status           string          `json:"status"`
	Version          string          `json:"version"`
	Uptime           time.Duration   `json:"uptime"`
	ActiveStrategies []string        `json:"active_strategies"`
	ComponentHealth  map[string]bool `json:"component_health"`
	BundlesIncluded  int64           `json:"bundles_included"`
	BundlesMissed    int64           `json:"bundles_missed"`
	BundlesReverted  int64           `json:"bundles_reverted"`
	LastUpdated      time.Time       `json:"last_updated"`
}

// Handlers contains all HTTP handlers for the API.
type Handlers struct {
	orchestrator *orchestrator.Orchestrator
	startedAt    time.Time
}

// NewHandlers creates a new handlers instance.
func NewHandlers(orch *orchestrator.Orchestrator, startedAt time.Time) *Handlers {
	return &Handlers{orchestrator: orch, startedAt: startedAt}
}

// GetSystemStatus returns the current system status.
func (h *Handlers) GetSystemStatus(w http.ResponseWriter, r *http.Request) {
	included, missed, reverted := h.orchestrator.BundleStats()

	status := h.status()
	status.BundlesIncluded = included
	status.BundlesMissed = missed
	status.BundlesReverted = reverted

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(status)
}

func (h *Handlers) status() *StatusPayload {
	health := h.orchestrator.Health()
	running := true
	for _, ok := range health {
		if !ok {
			running = false
			break
		}
	}
	status := "running"
	if !running {
		status = "degraded"
	}

	return &StatusPayload{
		Status:           status,
		Version:          "1.0.0",
		Uptime:           time.Since(h.startedAt),
		ActiveStrategies: h.orchestrator.ActiveStrategies(),
		ComponentHealth:  health,
		LastUpdated:      time.Now(),
	}
}

// GetStrategies returns the tags of every strategy currently wired in.
func (h *Handlers) GetStrategies(w http.ResponseWriter, r *http.Request) {
	active := h.orchestrator.ActiveStrategies()

	response := map[string]interface{}{
		"active_strategies": active,
		"total_count":       len(active),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// GetSchedulerStats returns the scheduler's overrun/skip counters.
func (h *Handlers) GetSchedulerStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.orchestrator.SchedulerStats())
}

// GetPrometheusMetrics returns a minimal bundle-lifecycle summary in
// Prometheus exposition format; the server mounts it at /metrics. The
// pkg/metrics SearcherMetrics collectors register on the default
// Prometheus registry, which no route of this API serves.
func (h *Handlers) GetPrometheusMetrics(w http.ResponseWriter, r *http.Request) {
	included, missed, reverted := h.orchestrator.BundleStats()
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprintf(w, "# HELP mev_searcher_bundles_included_total Bundles observed included on-chain\n")
	fmt.Fprintf(w, "# TYPE mev_searcher_bundles_included_total counter\n")
	fmt.Fprintf(w, "mev_searcher_bundles_included_total %d\n", included)
	fmt.Fprintf(w, "# HELP mev_searcher_bundles_missed_total Bundles not included by target block expiry\n")
	fmt.Fprintf(w, "# TYPE mev_searcher_bundles_missed_total counter\n")
	fmt.Fprintf(w, "mev_searcher_bundles_missed_total %d\n", missed)
	fmt.Fprintf(w, "# HELP mev_searcher_bundles_reverted_total Bundles that reverted\n")
	fmt.Fprintf(w, "# TYPE mev_searcher_bundles_reverted_total counter\n")
	fmt.Fprintf(w, "mev_searcher_bundles_reverted_total %d\n", reverted)
}
