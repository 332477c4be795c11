package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrymomot/quotakit/pkg/binder"
	"github.com/dmitrymomot/quotakit/pkg/httpserver"
)

// Options configures NewRouter.
type Options struct {
	Quota   Quota
	Catalog Catalog

	// HeaderTenants enables reading the tenant plan from gateway headers.
	HeaderTenants bool

	// Metrics serves /metrics when set.
	Metrics http.Handler

	// Checks back the /healthz readiness probe.
	Checks map[string]httpserver.Check

	Logger *slog.Logger
	Now    func() time.Time
}

// NewRouter builds the HTTP API.
func NewRouter(opts Options) chi.Router {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	h := &handlers{quota: opts.Quota, catalog: opts.Catalog, logger: opts.Logger, now: opts.Now}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(opts.Logger))

	r.Get("/healthz", httpserver.HealthCheckHandler(opts.Logger, opts.Checks))
	if opts.Metrics != nil {
		r.Handle("/metrics", opts.Metrics)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Get("/plans", route[struct{}](opts.Logger, h.plans))

		r.Route("/tenants/{tenantID}", func(r chi.Router) {
			if opts.HeaderTenants {
				r.Use(headerTenant)
			}
			tenant := binder.Path(chi.URLParam)
			body := binder.BindJSON()
			r.Post("/authorize", route[authorizeRequest](opts.Logger, h.authorize, tenant, requireTenant, body))
			r.Post("/consumption", route[consumptionRequest](opts.Logger, h.consumption, tenant, requireTenant, body))
			r.Get("/usage", route[usageRequest](opts.Logger, h.usage, tenant, requireTenant))
		})
	})

	return r
}
