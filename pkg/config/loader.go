package config

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// cache keeps one parsed copy per configuration type.
type cache struct {
	mu     sync.Mutex
	values map[reflect.Type]any
}

var (
	global = &cache{values: make(map[reflect.Type]any)}

	dotenvOnce sync.Once
)

// LoadEnv loads the given .env files into the process environment, or ".env"
// when none are given. Variables already set are not overridden. Later calls
// to Load read the result.
func LoadEnv(paths ...string) error {
	dotenvOnce.Do(func() {})
	if err := godotenv.Load(paths...); err != nil {
		return errors.Join(ErrLoadingEnvFile, err)
	}
	return nil
}

// Load parses the environment into v. The first successful load of a type is
// cached and returned to every later call for the same type, so services
// share one view of the configuration.
//
// A ".env" file in the working directory is loaded once before the first
// parse, unless LoadEnv was called earlier. A missing file is not an error.
//
//	var cfg pg.Config
//	if err := config.Load(&cfg); err != nil {
//		return err
//	}
func Load[T any](v *T) error {
	if v == nil {
		return ErrNilPointer
	}
	dotenvOnce.Do(func() { _ = godotenv.Load() })

	key := reflect.TypeFor[T]()

	global.mu.Lock()
	defer global.mu.Unlock()

	if cached, ok := global.values[key]; ok {
		*v = cached.(T)
		return nil
	}

	var parsed T
	if err := env.Parse(&parsed); err != nil {
		return errors.Join(ErrParsingConfig, err)
	}
	global.values[key] = parsed
	*v = parsed
	return nil
}

// MustLoad works like Load but panics on failure.
func MustLoad[T any](v *T) {
	if err := Load(v); err != nil {
		panic(fmt.Sprintf("config: %v", err))
	}
}

// Reload drops the cached copy of T and parses the environment again.
func Reload[T any](v *T) error {
	global.mu.Lock()
	delete(global.values, reflect.TypeFor[T]())
	global.mu.Unlock()
	return Load(v)
}

// ResetCache forgets every cached configuration.
func ResetCache() {
	global.mu.Lock()
	clear(global.values)
	global.mu.Unlock()
}
