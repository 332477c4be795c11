package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/quotakit/pkg/config"
	"github.com/dmitrymomot/quotakit/pkg/eventbus"
	"github.com/dmitrymomot/quotakit/pkg/httpserver"
	"github.com/dmitrymomot/quotakit/pkg/logger"
	"github.com/dmitrymomot/quotakit/pkg/mongo"
	"github.com/dmitrymomot/quotakit/pkg/pg"
	"github.com/dmitrymomot/quotakit/pkg/quota"
	"github.com/dmitrymomot/quotakit/pkg/quota/mongostore"
	"github.com/dmitrymomot/quotakit/pkg/quota/pgstore"
	"github.com/dmitrymomot/quotakit/pkg/quota/redisstore"
	"github.com/dmitrymomot/quotakit/pkg/redis"
)

// backend holds the connections opened for one command run.
type backend struct {
	store   quota.Store
	pool    *pgxpool.Pool
	checks  map[string]httpserver.Check
	closers []func(context.Context) error
}

func (b *backend) close(ctx context.Context) error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		errs = append(errs, b.closers[i](ctx))
	}
	return errors.Join(errs...)
}

// postgres connects once and reuses the pool for the store and the tenant directory.
func (b *backend) postgres(ctx context.Context, a *app) (*pgxpool.Pool, error) {
	if b.pool != nil {
		return b.pool, nil
	}
	var cfg pg.Config
	if err := config.Load(&cfg); err != nil {
		return nil, fmt.Errorf("load postgres config: %w", err)
	}
	pool, err := pg.Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}
	b.pool = pool
	b.checks["postgres"] = pg.Healthcheck(pool, a.cfg.HealthTimeout)
	b.closers = append(b.closers, func(context.Context) error { pool.Close(); return nil })

	if a.cfg.AutoMigrate {
		if err := pg.Migrate(ctx, pool, pgstore.Migrations, cfg, a.log); err != nil {
			return nil, err
		}
	}
	return pool, nil
}

func newBackend() *backend {
	return &backend{checks: make(map[string]httpserver.Check)}
}

func openBackend(ctx context.Context, a *app) (*backend, error) {
	b := newBackend()
	if err := b.openStore(ctx, a); err != nil {
		_ = b.close(ctx)
		return nil, err
	}
	a.log.InfoContext(ctx, "counter store ready", logger.Component(a.cfg.Store))
	return b, nil
}

func (b *backend) openStore(ctx context.Context, a *app) error {
	switch a.cfg.Store {
	case StoreMemory:
		a.log.WarnContext(ctx, "using in-memory counter store; usage is lost on restart")
		b.store = quota.NewMemoryStore()

	case StorePostgres:
		pool, err := b.postgres(ctx, a)
		if err != nil {
			return err
		}
		b.store = pgstore.New(pool)

	case StoreRedis:
		var cfg redis.Config
		if err := config.Load(&cfg); err != nil {
			return fmt.Errorf("load redis config: %w", err)
		}
		client, err := redis.Connect(ctx, cfg)
		if err != nil {
			return err
		}
		b.checks["redis"] = redis.Healthcheck(client, a.cfg.HealthTimeout)
		b.closers = append(b.closers, func(context.Context) error { return client.Close() })
		b.store = redisstore.New(client, redisstore.WithPrefix(cfg.KeyPrefix))

	case StoreMongo:
		var cfg mongo.Config
		if err := config.Load(&cfg); err != nil {
			return fmt.Errorf("load mongo config: %w", err)
		}
		db, err := mongo.NewWithDatabase(ctx, cfg)
		if err != nil {
			return err
		}
		b.checks["mongo"] = mongo.Healthcheck(db.Client(), a.cfg.HealthTimeout)
		b.closers = append(b.closers, func(ctx context.Context) error { return db.Client().Disconnect(ctx) })
		store := mongostore.New(db)
		if err := store.EnsureIndexes(ctx); err != nil {
			return err
		}
		b.store = store

	default:
		return fmt.Errorf("unknown store %q: want memory, postgres, redis or mongo", a.cfg.Store)
	}
	return nil
}

// tenants returns the tenant resolver and whether the API must read gateway headers.
func (b *backend) tenants(ctx context.Context, a *app) (quota.TenantResolver, bool, error) {
	switch a.cfg.TenantSource {
	case TenantsHeader:
		return quota.ContextTenantResolver, true, nil
	case TenantsPostgres:
		pool, err := b.postgres(ctx, a)
		if err != nil {
			return nil, false, err
		}
		var dir quota.TenantResolver = pgstore.NewTenantDirectory(pool)
		if a.cfg.TenantCacheSize > 0 {
			dir = quota.NewCachedTenants(dir, a.cfg.TenantCacheSize, a.cfg.TenantCacheTTL, nil)
		}
		return dir, false, nil
	}
	return nil, false, fmt.Errorf("unknown tenant source %q: want header or postgres", a.cfg.TenantSource)
}

func (b *backend) publisher(a *app) (quota.Publisher, error) {
	switch a.cfg.Publisher {
	case PublisherLog:
		return quota.NewLogPublisher(a.log), nil
	}

	var cfg eventbus.Config
	if err := config.Load(&cfg); err != nil {
		return nil, fmt.Errorf("load eventbus config: %w", err)
	}
	switch a.cfg.Publisher {
	case PublisherRabbitMQ:
		p, err := eventbus.DialRabbitMQ(cfg.RabbitMQURL, cfg.RabbitMQQueue)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, func(context.Context) error { return p.Close() })
		return p, nil
	case PublisherKafka:
		p := eventbus.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		b.closers = append(b.closers, func(context.Context) error { return p.Close() })
		return p, nil
	}
	return nil, fmt.Errorf("unknown publisher %q: want log, rabbitmq or kafka", a.cfg.Publisher)
}

func loadCatalog(a *app) (*quota.Catalog, error) {
	catalog, err := quota.LoadCatalogFile(a.cfg.PlansFile)
	if err != nil {
		return nil, fmt.Errorf("load plans from %s: %w", a.cfg.PlansFile, err)
	}
	return catalog, nil
}
