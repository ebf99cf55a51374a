package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mev-engine/mev-searcher/internal/config"
	"github.com/mev-engine/mev-searcher/pkg/bundlemgr"
	"github.com/mev-engine/mev-searcher/pkg/metrics"
	"github.com/mev-engine/mev-searcher/pkg/orchestrator"
	"github.com/mev-engine/mev-searcher/pkg/pricefeed"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testMetrics = metrics.NewSearcherMetrics()

func setupTestServer(t *testing.T) *Server {
	cfg := &config.Config{
		Server: config.ServerConfig{
			Host:         "localhost",
			Port:         0,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
	}

	queue := bundlemgr.NewQueue()
	bundles := bundlemgr.New(queue, bundlemgr.NewMockSimulator(), bundlemgr.NewMockRelay(), &bundlemgr.DispatchBuilder{}, func() uint64 { return 0 })
	prices := pricefeed.NewManager()
	orch := orchestrator.New(orchestrator.DefaultConfig(), zerolog.Nop(), nil, prices, nil, nil, bundles, testMetrics)

	return NewServer(cfg, zerolog.Nop(), orch, time.Now())
}

func TestHealthCheck(t *testing.T) {
	server := setupTestServer(t)

	req := httptest.NewRequest("GET", "/health", nil)
	rec := httptest.NewRecorder()
	server.GetRouter().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMetricsEndpointIsPublic(t *testing.T) {
	server := setupTestServer(t)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	server.GetRouter().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "mev_searcher_bundles_included_total")
}

func TestStatusRequiresAuth(t *testing.T) {
	server := setupTestServer(t)

	req := httptest.NewRequest("GET", "/api/v1/status", nil)
	rec := httptest.NewRecorder()
	server.GetRouter().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestStatusWithValidKey(t *testing.T) {
	server := setupTestServer(t)

	var apiKey string
	for key, info := range server.authService.apiKeys {
		if info.KeyID == "default" {
			apiKey = key
			break
		}
	}
	require.NotEmpty(t, apiKey)

	req := httptest.NewRequest("GET", "/api/v1/status", nil)
	req.Header.Set("Authorization", "Bearer "+apiKey)
	rec := httptest.NewRecorder()
	server.GetRouter().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "component_health")
}

func TestStrategiesRequireOperatorRoleNotEnforcedOnReadEndpoint(t *testing.T) {
	server := setupTestServer(t)

	var apiKey string
	for key := range server.authService.apiKeys {
		apiKey = key
		break
	}

	req := httptest.NewRequest("GET", "/api/v1/strategies", nil)
	req.Header.Set("Authorization", "Bearer "+apiKey)
	rec := httptest.NewRecorder()
	server.GetRouter().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}
