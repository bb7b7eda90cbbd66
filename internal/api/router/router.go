// Package router provides HTTP routing configuration using Chi.
package router

import (
	_ "embed"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jmhodges/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/remiblancher/qcrl/internal/api/handler"
	"github.com/remiblancher/qcrl/internal/api/middleware"
	"github.com/remiblancher/qcrl/internal/api/service"
	"github.com/remiblancher/qcrl/internal/metrics"
	"github.com/remiblancher/qcrl/pkg/crl"
)

//go:embed openapi.yaml
var openapiSpec []byte

// Config holds router configuration.
type Config struct {
	Version      string
	Capabilities crl.Capability
	Service      *service.CRLService
	Metrics      *metrics.Metrics
	// Gatherer backs GET /metrics. nil disables the endpoint.
	Gatherer     prometheus.Gatherer
	Clock        clock.Clock
	MaxBodyBytes int64
}

// New creates a new Chi router with all routes configured.
func New(cfg *Config) http.Handler {
	clk := cfg.Clock
	if clk == nil {
		clk = clock.New()
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(clk))
	r.Use(middleware.Recoverer)
	r.Use(middleware.CORS)
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Handler)
	}

	healthHandler := handler.NewHealthHandler(cfg.Version, cfg.Capabilities.String(), func() bool {
		return cfg.Service != nil
	})
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)
	r.Get("/api/openapi.yaml", serveOpenAPISpec)
	if cfg.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	if cfg.Service != nil {
		crlHandler := handler.NewCRLHandler(cfg.Service)

		r.Route("/api/v1", func(r chi.Router) {
			r.Use(middleware.AuditActor)
			r.Use(middleware.MaxBodyBytes(cfg.MaxBodyBytes))

			r.Route("/crl", func(r chi.Router) {
				r.Post("/validate", crlHandler.Validate)
				r.Post("/inspect", crlHandler.Inspect)
				r.Post("/{id}/lookup", crlHandler.Lookup)
			})
		})
	}

	return r
}

// serveOpenAPISpec serves the OpenAPI specification file.
func serveOpenAPISpec(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(openapiSpec)
}
