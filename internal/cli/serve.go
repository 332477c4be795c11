package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/quotakit/internal/api"
	"github.com/dmitrymomot/quotakit/pkg/config"
	"github.com/dmitrymomot/quotakit/pkg/httpserver"
	"github.com/dmitrymomot/quotakit/pkg/logger"
	"github.com/dmitrymomot/quotakit/pkg/quota"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the reset scheduler",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, a)
		},
	}
}

func serve(ctx context.Context, a *app) (err error) {
	if err := a.cfg.checkServeStore(); err != nil {
		return err
	}

	catalog, err := loadCatalog(a)
	if err != nil {
		return err
	}
	a.log.InfoContext(ctx, "plan catalog loaded", "version", catalog.Version(), "plans", len(catalog.Plans()))

	var httpCfg httpserver.Config
	if err := config.Load(&httpCfg); err != nil {
		return err
	}

	b, err := openBackend(ctx, a)
	if err != nil {
		return err
	}
	tenants, headerTenants, err := b.tenants(ctx, a)
	if err != nil {
		return errors.Join(err, b.close(ctx))
	}
	pub, err := b.publisher(a)
	if err != nil {
		return errors.Join(err, b.close(ctx))
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := quota.NewMetrics(reg)

	dispatcher := quota.NewAsyncDispatcher(pub,
		quota.WithDispatchBuffer(a.cfg.DispatchBuffer),
		quota.WithDispatchWorkers(a.cfg.DispatchWorkers),
		quota.WithDispatchLogger(a.log),
		quota.WithDispatchMetrics(metrics),
	)
	spool := quota.NewSpool(b.store,
		quota.WithSpoolSize(a.cfg.SpoolSize),
		quota.WithSpoolLogger(a.log),
		quota.WithSpoolMetrics(metrics),
	)
	notifier := quota.NewNotifier(b.store, dispatcher,
		quota.WithNotifierLogger(a.log),
		quota.WithNotifierMetrics(metrics),
	)
	svc := quota.NewService(catalog, tenants, b.store,
		quota.WithLogger(a.log),
		quota.WithMetrics(metrics),
		quota.WithNotifier(notifier),
		quota.WithSpool(spool),
	)
	resetter := quota.NewResetter(b.store, b.store,
		quota.WithCheckInterval(a.cfg.ResetInterval),
		quota.WithResetterLogger(a.log),
		quota.WithResetterMetrics(metrics),
	)

	router := api.NewRouter(api.Options{
		Quota:         svc,
		Catalog:       catalog,
		HeaderTenants: headerTenants,
		Metrics:       promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
		Checks:        b.checks,
		Logger:        a.log,
	})
	srv := httpserver.NewFromConfig(httpCfg, httpserver.WithLogger(a.log))

	defer func() {
		// the request context is gone; drain with a fresh deadline
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.ShutdownTimeout)
		defer cancel()
		err = errors.Join(err,
			spool.Close(shutdownCtx),
			dispatcher.Close(shutdownCtx),
			b.close(shutdownCtx),
		)
		a.log.InfoContext(shutdownCtx, "quotad stopped")
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(resetter.Run(gctx))
	g.Go(func() error { return srv.Run(gctx, router) })

	a.log.InfoContext(ctx, "quotad started",
		logger.Component("serve"),
		"store", a.cfg.Store,
		"tenant_source", a.cfg.TenantSource,
		"publisher", a.cfg.Publisher,
	)
	return g.Wait()
}
