package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/cloo-solutions/nutrirag/internal/api"
	"github.com/cloo-solutions/nutrirag/internal/api/handlers"
	"github.com/cloo-solutions/nutrirag/internal/api/middleware"
	"github.com/cloo-solutions/nutrirag/internal/metrics"
)

type RouterConfig struct {
	QueryHandler *handlers.QueryHandler
	Logger       *zap.Logger
	CORSOrigins  []string
	// MaxBodyBytes defaults to 1 MiB
	MaxBodyBytes int64
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = 1 << 20
	}

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog(cfg.Logger))
	r.Use(metrics.Middleware())
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(middleware.MaxBodyBytes(maxBody))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/test", cfg.QueryHandler.Test)
	r.Post("/query", cfg.QueryHandler.Query)

	return r
}
