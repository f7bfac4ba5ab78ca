package queue

import "time"

// Config holds the environment-configurable subset of engine settings.
// Load it with pkg/config and apply it with WithConfig, or set individual
// EngineOptions directly.
type Config struct {
	Delay              time.Duration `env:"QUEUE_POLL_INTERVAL" envDefault:"10s"`
	Singleton          bool          `env:"QUEUE_SINGLETON" envDefault:"true"`
	MaxRetries         int           `env:"QUEUE_MAX_RETRIES" envDefault:"3"`
	MaxProcessingTime  time.Duration `env:"QUEUE_MAX_PROCESSING_TIME" envDefault:"10m"`
	CrashOnWorkerError bool          `env:"QUEUE_CRASH_ON_WORKER_ERROR" envDefault:"false"`
}

// defaultConfig holds the engine's documented defaults.
func defaultConfig() Config {
	return Config{
		Delay:              10 * time.Second,
		Singleton:          true,
		MaxRetries:         3,
		MaxProcessingTime:  10 * time.Minute,
		CrashOnWorkerError: false,
	}
}
