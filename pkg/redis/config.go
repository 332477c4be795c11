package redis

import "time"

// Config describes how to reach Redis. The URL has the form
// "redis://:password@localhost:6379/0".
type Config struct {
	ConnectionURL  string        `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`
	KeyPrefix      string        `env:"REDIS_KEY_PREFIX" envDefault:"quota"`
	RetryAttempts  int           `env:"REDIS_RETRY_ATTEMPTS" envDefault:"3"`
	RetryInterval  time.Duration `env:"REDIS_RETRY_INTERVAL" envDefault:"2s"`
	ConnectTimeout time.Duration `env:"REDIS_CONNECT_TIMEOUT" envDefault:"30s"`
}
