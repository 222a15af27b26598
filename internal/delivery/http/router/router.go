package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/user/pricewatch/internal/delivery/http/handler"
	"github.com/user/pricewatch/internal/delivery/http/middleware"
	"github.com/user/pricewatch/pkg/metrics"
)

const requestTimeout = 30 * time.Second

func New(h *handler.Handler, m *metrics.Metrics, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logging(logger))
	r.Use(middleware.Metrics(m))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(requestTimeout))

	// Prometheus metrics endpoint
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.HandleHealthCheck)
		r.Get("/products", h.HandleListProducts)
		r.Get("/products/history", h.HandleProductHistory)
		r.Get("/runs/last", h.HandleLastRun)
		r.Post("/runs", h.HandleTriggerRun)
	})

	return r
}
