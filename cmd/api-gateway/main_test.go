package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/extraction017/temporav3/internal/handler"
	"github.com/extraction017/temporav3/internal/service"
	"github.com/extraction017/temporav3/pkg/config"
)

func testConfig() *config.Config {
	return &config.Config{
		Env:       config.EnvDevelopment,
		APIPrefix: "/api/v1",
		Metrics:   config.MetricsConfig{Enabled: true},
		Auth:      config.AuthConfig{Enabled: true, Secret: "secret"},
	}
}

func testRouter(cfg *config.Config) *gin.Engine {
	gin.SetMode(gin.TestMode)
	metrics := service.NewMetricsService()
	return newRouter(cfg, zap.NewNop(), metrics, handlers{
		events:        handler.NewEventHandler(nil),
		preferences:   handler.NewPreferenceHandler(nil),
		optimizations: handler.NewOptimizationHandler(nil),
		scores:        handler.NewScoreHandler(nil),
		exports:       handler.NewExportHandler(nil),
		ops:           handler.NewMetricsHandler(metrics, nil),
	})
}

func TestRouterRegistersAPI(t *testing.T) {
	r := testRouter(testConfig())

	registered := map[string]bool{}
	for _, route := range r.Routes() {
		registered[route.Method+" "+route.Path] = true
	}
	for _, want := range []string{
		"GET /api/v1/events",
		"POST /api/v1/events",
		"POST /api/v1/events/validate",
		"POST /api/v1/events/recurring",
		"POST /api/v1/events/floating",
		"GET /api/v1/events/:id",
		"PUT /api/v1/events/:id",
		"PATCH /api/v1/events/:id/lock",
		"DELETE /api/v1/events/:id",
		"GET /api/v1/preferences",
		"PUT /api/v1/preferences",
		"POST /api/v1/optimizations",
		"POST /api/v1/optimizations/:id/apply",
		"GET /api/v1/scores/health",
		"GET /api/v1/scores/productivity",
		"GET /api/v1/statistics",
		"GET /api/v1/export",
		"GET /health",
		"GET /ready",
		"GET /metrics",
	} {
		assert.True(t, registered[want], want)
	}
	assert.False(t, registered["GET /swagger/*any"])
}

func TestRouterGuardsAPI(t *testing.T) {
	r := testRouter(testConfig())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/events", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}
