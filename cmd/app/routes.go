package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/hibiken/asynqmon"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ratebot/internal/api"
	"ratebot/internal/api/middleware"
	"ratebot/internal/service"
)

const monitoringPath = "/monitoring"

func (app *App) initHTTP(store *service.Store) {
	r := chi.NewRouter()
	r.Use(middleware.RequestIDMiddleware)
	r.Use(middleware.RequestLoggingMiddleware(app.logger))
	r.Use(middleware.RecoverMiddleware(app.logger))

	r.Get("/rates/latest", api.HandleGetLatestRate(store))
	r.Get("/rates/history", api.HandleGetRateHistory(store))
	r.Get("/healthz", api.HandleHealthz())
	r.Get("/readyz", api.HandleReadyz(app.db, app.rdb))
	r.Handle("/metrics", promhttp.Handler())

	if app.cfg.Server.ServeStats {
		r.Get("/stats", api.HandleGetStats(store))
	}

	if app.cfg.Server.ServeSwagger {
		r.Get("/swagger/*", api.SwaggerUIHandler())
		r.Get("/openapi.json", api.OpenAPISpecHandler())
	}

	if app.cfg.Server.ServeAsynqmon && app.cfg.Broadcast.Enabled {
		app.monitor = asynqmon.New(asynqmon.Options{
			RootPath:     monitoringPath,
			RedisConnOpt: asynq.RedisClientOpt{Addr: app.cfg.Redis.Addr},
		})
		r.Handle(app.monitor.RootPath()+"/*", app.monitor)
		app.logger.Infow("Asynq dashboard mounted", "path", monitoringPath)
	}

	app.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Server.Port),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
