package queue

import (
	"log/slog"
	"sync"
)

var (
	instanceMu   sync.Mutex
	instance     *Engine
	instanceCfg  Config
	instanceSeen bool
)

// GetInstance returns the process-global Engine, creating it from storage
// and opts on first call. If Config.Singleton is true (the default) and an
// instance already exists, subsequent calls return the original instance
// unchanged and log a warning if the requested configuration differs,
// rather than silently reconfiguring a queue other goroutines may already
// be using. Pass a Config via WithEngineConfig to opt out by setting
// Singleton to false, which always builds a fresh Engine.
func GetInstance(storage Storage, opts ...EngineOption) (*Engine, error) {
	instanceMu.Lock()
	defer instanceMu.Unlock()

	e := &Engine{config: defaultConfig()}
	for _, opt := range opts {
		opt(e)
	}
	requestedCfg := e.config

	if !requestedCfg.Singleton {
		return NewEngine(storage, opts...)
	}

	if instanceSeen && instance != nil {
		if requestedCfg != instanceCfg {
			slog.Warn("queue: singleton already initialized with a different configuration; keeping original instance",
				slog.Any("requested", requestedCfg),
				slog.Any("active", instanceCfg))
		}
		return instance, nil
	}

	built, err := NewEngine(storage, opts...)
	if err != nil {
		return nil, err
	}
	instance = built
	instanceCfg = requestedCfg
	instanceSeen = true
	return instance, nil
}

// resetInstance clears the process-global Engine. Test-only.
func resetInstance() {
	instanceMu.Lock()
	defer instanceMu.Unlock()
	instance = nil
	instanceSeen = false
	instanceCfg = Config{}
}
