package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/teilehaus/searchsync/pkg/health"
	"github.com/teilehaus/searchsync/pkg/middleware"
)

// RouterConfig bundles the dependencies of the HTTP surface.
type RouterConfig struct {
	Search      *SearchHandler
	Admin       *AdminHandler
	Health      *health.Handler
	Logger      *slog.Logger
	CORS        middleware.CORSConfig
	ServiceName string
}

// NewRouter assembles the chi router: recovery, request logging, metrics,
// health probes, the search passthrough, and the admin triggers.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.RequestLogging(cfg.Logger))
	r.Use(middleware.RequestLogger(cfg.Logger))
	r.Use(middleware.PrometheusMetrics(cfg.ServiceName))
	r.Use(middleware.CORS(cfg.CORS))

	r.Get("/health/live", cfg.Health.LivenessHandler())
	r.Get("/health/ready", cfg.Health.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/search", cfg.Search.SearchProducts)
		r.Get("/search/categories", cfg.Search.SearchCategories)

		r.Route("/admin", func(r chi.Router) {
			r.Post("/sync/products", cfg.Admin.SyncProducts)
			r.Post("/sync/products/ids", cfg.Admin.SyncProductIDs)
			r.Post("/sync/categories", cfg.Admin.SyncCategories)
			r.Post("/rebuild", cfg.Admin.Rebuild)
			r.Post("/rebuild/force", cfg.Admin.ForceSync)
			r.Post("/reconfigure", cfg.Admin.Reconfigure)
		})
	})

	return r
}
