package config_test

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/quotakit/pkg/config"
)

type defaultsConfig struct {
	Store    string        `env:"TEST_QUOTA_STORE" envDefault:"memory"`
	Interval time.Duration `env:"TEST_QUOTA_INTERVAL" envDefault:"1m"`
	Workers  int           `env:"TEST_QUOTA_WORKERS" envDefault:"2"`
}

type overrideConfig struct {
	Store   string `env:"TEST_OVERRIDE_STORE" envDefault:"memory"`
	Enabled bool   `env:"TEST_OVERRIDE_ENABLED" envDefault:"false"`
}

type cachedConfig struct {
	Value string `env:"TEST_CACHED_VALUE" envDefault:"initial"`
}

type requiredConfig struct {
	Value string `env:"TEST_REQUIRED_VALUE,required"`
}

type fileConfig struct {
	Value string   `env:"TEST_FILE_STRING"`
	List  []string `env:"TEST_FILE_LIST" envSeparator:","`
}

func TestLoad(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		var cfg defaultsConfig
		require.NoError(t, config.Load(&cfg))
		assert.Equal(t, "memory", cfg.Store)
		assert.Equal(t, time.Minute, cfg.Interval)
		assert.Equal(t, 2, cfg.Workers)
	})

	t.Run("environment overrides defaults", func(t *testing.T) {
		t.Setenv("TEST_OVERRIDE_STORE", "postgres")
		t.Setenv("TEST_OVERRIDE_ENABLED", "true")

		var cfg overrideConfig
		require.NoError(t, config.Reload(&cfg))
		assert.Equal(t, "postgres", cfg.Store)
		assert.True(t, cfg.Enabled)
	})

	t.Run("cached per type", func(t *testing.T) {
		var first cachedConfig
		require.NoError(t, config.Reload(&first))
		assert.Equal(t, "initial", first.Value)

		t.Setenv("TEST_CACHED_VALUE", "changed")

		var second cachedConfig
		require.NoError(t, config.Load(&second))
		assert.Equal(t, "initial", second.Value)

		var reloaded cachedConfig
		require.NoError(t, config.Reload(&reloaded))
		assert.Equal(t, "changed", reloaded.Value)
	})

	t.Run("required value missing", func(t *testing.T) {
		os.Unsetenv("TEST_REQUIRED_VALUE")
		config.ResetCache()

		var cfg requiredConfig
		err := config.Load(&cfg)
		assert.ErrorIs(t, err, config.ErrParsingConfig)

		assert.Panics(t, func() { config.MustLoad(&cfg) })
	})

	t.Run("nil pointer", func(t *testing.T) {
		var cfg *defaultsConfig
		assert.ErrorIs(t, config.Load(cfg), config.ErrNilPointer)
	})
}

func TestLoadEnv(t *testing.T) {
	t.Run("loads file", func(t *testing.T) {
		os.Unsetenv("TEST_FILE_STRING")
		os.Unsetenv("TEST_FILE_LIST")
		t.Cleanup(func() {
			os.Unsetenv("TEST_FILE_STRING")
			os.Unsetenv("TEST_FILE_LIST")
		})

		require.NoError(t, config.LoadEnv("testdata/test.env"))

		var cfg fileConfig
		require.NoError(t, config.Reload(&cfg))
		assert.Equal(t, "from_file", cfg.Value)
		assert.Equal(t, []string{"a", "b", "c"}, cfg.List)
	})

	t.Run("missing file", func(t *testing.T) {
		err := config.LoadEnv("testdata/missing.env")
		assert.ErrorIs(t, err, config.ErrLoadingEnvFile)
	})
}
