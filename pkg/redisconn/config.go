// Package redisconn wires up connection setup for the Redis-backed queue
// storage: config loading, dialing, and healthchecks.
package redisconn

import "time"

// Config configures a Redis connection via environment variables, loaded
// with pkg/config.Load.
type Config struct {
	ConnectionURL  string        `env:"REDIS_URL,required" envDefault:"redis://localhost:6379/0"`
	RetryAttempts  int           `env:"REDIS_RETRY_ATTEMPTS" envDefault:"3"`
	RetryInterval  time.Duration `env:"REDIS_RETRY_INTERVAL" envDefault:"5s"`
	ConnectTimeout time.Duration `env:"REDIS_CONNECT_TIMEOUT" envDefault:"30s"`
	KeyPrefix      string        `env:"REDIS_QUEUE_KEY_PREFIX" envDefault:"queue"`
}
