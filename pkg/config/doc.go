// Package config loads typed configuration from environment variables.
//
// It wraps github.com/joho/godotenv for .env files and
// github.com/caarlos0/env/v11 for struct parsing. Each configuration type is
// parsed once and cached, so every component that asks for pg.Config or
// redis.Config receives the same values.
//
// # Defining a configuration
//
// Fields carry env tags with an optional envDefault. Durations use Go
// syntax, and a required tag makes a missing variable an error:
//
//	type Config struct {
//		Store     string        `env:"QUOTA_STORE" envDefault:"memory"`
//		PlansFile string        `env:"QUOTA_PLANS_FILE" envDefault:"plans.yaml"`
//		Interval  time.Duration `env:"QUOTA_RESET_INTERVAL" envDefault:"1m"`
//		DSN       string        `env:"PG_CONN_URL,required"`
//	}
//
// # Loading
//
// Load parses the environment into v. The first call for a type also loads
// ".env" from the working directory if present:
//
//	var cfg Config
//	if err := config.Load(&cfg); err != nil {
//		return fmt.Errorf("load config: %w", err)
//	}
//
// MustLoad panics instead, for main packages that cannot start without a
// configuration:
//
//	var cfg Config
//	config.MustLoad(&cfg)
//
// To read a different file, or several, call LoadEnv before the first Load.
// Variables already set in the process win over file values:
//
//	if err := config.LoadEnv(".env", ".env.local"); err != nil {
//		return err
//	}
//
// # Caching
//
// Later calls for the same type return the cached copy without looking at
// the environment again. Components loaded in different places therefore
// agree, and a variable changed after startup has no effect.
//
// Tests that change the environment call Reload for one type or ResetCache
// for all of them:
//
//	t.Setenv("APP_ENV", "production")
//	config.ResetCache()
//	t.Cleanup(config.ResetCache)
//
// # Errors
//
// Parse failures are joined with ErrParsingConfig, unreadable .env files
// with ErrLoadingEnvFile, and a nil target returns ErrNilPointer.
package config
