// Package config loads typed configuration structs from environment
// variables (optionally seeded from a .env file), caching each distinct
// struct type so repeated Load calls for the same type are free.
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
	cacheMu   sync.RWMutex
	cache     = make(map[string]any)
	loadOnces = make(map[string]*sync.Once)

	dotenvOnce sync.Once
)

// Load parses environment variables into v based on its `env` struct
// tags. The first call across the whole process loads a .env file if one
// exists (missing is not an error); each distinct type T is parsed from
// the environment at most once, with subsequent calls returning the
// cached value.
func Load[T any](v *T) error {
	dotenvOnce.Do(func() { _ = godotenv.Load() })
	if v == nil {
		return ErrNilPointer
	}

	typeName := typeKey[T]()

	cacheMu.RLock()
	if cached, ok := cache[typeName]; ok {
		*v = cached.(T)
		cacheMu.RUnlock()
		return nil
	}
	cacheMu.RUnlock()

	cacheMu.Lock()
	once, exists := loadOnces[typeName]
	if !exists {
		once = new(sync.Once)
		loadOnces[typeName] = once
	}
	cacheMu.Unlock()

	var parseErr error
	once.Do(func() {
		if err := env.Parse(v); err != nil {
			parseErr = errors.Join(ErrParsingConfig, err)
			return
		}
		cacheMu.Lock()
		cache[typeName] = *v
		cacheMu.Unlock()
	})
	if parseErr != nil {
		return parseErr
	}

	cacheMu.RLock()
	defer cacheMu.RUnlock()
	cached, ok := cache[typeName]
	if !ok {
		return ErrConfigNotLoaded
	}
	*v = cached.(T)
	return nil
}

// MustLoad works like Load but panics on failure, for configuration
// required at process startup.
func MustLoad[T any](v *T) {
	if err := Load(v); err != nil {
		panic(fmt.Sprintf("failed to load required configuration: %v", err))
	}
}

func typeKey[T any]() string {
	var zero T
	t := reflect.TypeOf(zero)
	if t == nil {
		return fmt.Sprintf("%T", *new(T))
	}
	return t.String()
}
