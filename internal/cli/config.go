package cli

import (
	"errors"
	"fmt"
	"time"
)

// Store drivers.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
	StoreMongo    = "mongo"
)

// Tenant sources.
const (
	TenantsHeader   = "header"
	TenantsPostgres = "postgres"
)

// Publishers.
const (
	PublisherLog      = "log"
	PublisherRabbitMQ = "rabbitmq"
	PublisherKafka    = "kafka"
)

// Config is the daemon configuration. Backend connection settings live in
// the per-package configs (pg.Config, redis.Config, mongo.Config,
// eventbus.Config, httpserver.Config) and are loaded only when selected.
type Config struct {
	AppEnv   string `env:"APP_ENV" envDefault:"development"`
	LogLevel string `env:"LOG_LEVEL"`

	// The memory store loses usage on restart; serve accepts it only when
	// APP_ENV is development.
	Store        string `env:"QUOTA_STORE" envDefault:"memory"`
	PlansFile    string `env:"QUOTA_PLANS_FILE" envDefault:"plans.yaml"`
	TenantSource string `env:"QUOTA_TENANT_SOURCE" envDefault:"header"`
	Publisher    string `env:"QUOTA_PUBLISHER" envDefault:"log"`
	AutoMigrate  bool   `env:"QUOTA_AUTO_MIGRATE" envDefault:"false"`

	ResetInterval   time.Duration `env:"QUOTA_RESET_INTERVAL" envDefault:"1m"`
	DispatchBuffer  int           `env:"QUOTA_DISPATCH_BUFFER" envDefault:"1024"`
	DispatchWorkers int           `env:"QUOTA_DISPATCH_WORKERS" envDefault:"2"`
	SpoolSize       int           `env:"QUOTA_SPOOL_SIZE" envDefault:"10000"`
	ShutdownTimeout time.Duration `env:"QUOTA_SHUTDOWN_TIMEOUT" envDefault:"15s"`
	HealthTimeout   time.Duration `env:"QUOTA_HEALTH_TIMEOUT" envDefault:"2s"`

	// Postgres tenant lookups can be cached. A plan or billing change made
	// by another process is then seen up to TenantCacheTTL late, so the
	// cache is off unless a size is set.
	TenantCacheSize int           `env:"QUOTA_TENANT_CACHE_SIZE" envDefault:"0"`
	TenantCacheTTL  time.Duration `env:"QUOTA_TENANT_CACHE_TTL" envDefault:"30s"`
}

// ErrVolatileStore is returned when serve is asked to run on the memory
// store outside development.
var ErrVolatileStore = errors.New("memory store is for development only")

// EnvDevelopment is the APP_ENV value that permits the memory store.
const EnvDevelopment = "development"

// checkServeStore rejects store choices that would silently lose usage in
// a long-running deployment.
func (c Config) checkServeStore() error {
	if c.Store == StoreMemory && c.AppEnv != EnvDevelopment {
		return fmt.Errorf("%w: APP_ENV=%s, set QUOTA_STORE to postgres, redis or mongo", ErrVolatileStore, c.AppEnv)
	}
	return nil
}
