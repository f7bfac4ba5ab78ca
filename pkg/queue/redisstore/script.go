package redisstore

import (
	_ "embed"

	"github.com/redis/go-redis/v9"
)

//go:embed dequeue.lua
var dequeueScriptSource string

// dequeueScript is loaded once per process; go-redis transparently
// EVALSHA-caches it on the server and falls back to EVAL on a cache miss.
var dequeueScript = redis.NewScript(dequeueScriptSource)
