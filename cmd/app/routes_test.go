package main

import (
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ratebot/internal/config"
	"ratebot/internal/service"
)

func mountedRoutes(t *testing.T, cfg *config.Config) []string {
	t.Helper()
	logger := zap.NewNop().Sugar()
	app := &App{cfg: cfg, logger: logger}
	app.initHTTP(service.NewStore(nil, nil, nil, logger))

	routes, ok := app.httpServer.Handler.(chi.Routes)
	require.True(t, ok)

	var paths []string
	err := chi.Walk(routes, func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		paths = append(paths, route)
		return nil
	})
	require.NoError(t, err)
	return paths
}

func TestInitHTTP_StatsIsOptIn(t *testing.T) {
	cfg := &config.Config{Server: config.ServerConfig{Port: 8081}}

	paths := mountedRoutes(t, cfg)
	assert.NotContains(t, paths, "/stats")
	assert.Contains(t, paths, "/rates/latest")
	assert.Contains(t, paths, "/healthz")

	cfg.Server.ServeStats = true
	assert.Contains(t, mountedRoutes(t, cfg), "/stats")
}
