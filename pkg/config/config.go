// Package config loads env-tagged structs (caarlos0/env) with an optional
// .env file (godotenv), caching each struct type so it is parsed once per
// process. pg.Config and application-side settings load through it.
package config

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var (
	// ErrParse wraps env.Parse failures.
	ErrParse = errors.New("config: parsing environment failed")
	// ErrNilPointer reports a nil destination.
	ErrNilPointer = errors.New("config: nil pointer")
)

var (
	dotenvOnce sync.Once

	mu    sync.RWMutex
	cache = make(map[string]any)
)

// Load populates v from the environment, reading a .env file first when one
// exists. Each struct type is parsed once; later calls receive the cached
// copy, so every caller of the same Config sees identical values.
func Load[T any](v *T) error {
	if v == nil {
		return ErrNilPointer
	}
	dotenvOnce.Do(func() {
		_ = godotenv.Load() // a missing .env file is fine
	})

	key := typeKey[T]()

	mu.RLock()
	cached, ok := cache[key]
	mu.RUnlock()
	if ok {
		*v = cached.(T)
		return nil
	}

	mu.Lock()
	defer mu.Unlock()
	if cached, ok := cache[key]; ok {
		*v = cached.(T)
		return nil
	}
	if err := env.Parse(v); err != nil {
		return errors.Join(ErrParse, err)
	}
	cache[key] = *v
	return nil
}

// MustLoad is Load for settings the process cannot start without.
func MustLoad[T any](v *T) {
	if err := Load(v); err != nil {
		panic(fmt.Sprintf("config: %v", err))
	}
}

// Reset drops the cache; tests use it to reload with changed environments.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	cache = make(map[string]any)
}

func typeKey[T any]() string {
	t := reflect.TypeOf((*T)(nil)).Elem()
	return t.String()
}
