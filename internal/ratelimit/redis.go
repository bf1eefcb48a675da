// ABOUTME: Redis-backed Limiter for multi-instance deployments where windows must
// ABOUTME: survive reconnects. Falls back to an in-process limiter on Redis outage.

package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

var windowScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
return {current, ttl}
`)

// Redis counts windows in a shared Redis so every gateway instance sees the
// same counters. Unlike Memory, keys here are expected to carry the identity
// so state outlives any single connection.
type Redis struct {
	client   *redis.Client
	prefix   string
	fallback *Memory
}

// NewRedis wraps client as a Limiter. Outages degrade to per-process
// counting rather than rejecting or waving traffic through unbounded.
func NewRedis(client *redis.Client, prefix string) *Redis {
	if prefix == "" {
		prefix = "rl:"
	}
	return &Redis{
		client:   client,
		prefix:   prefix,
		fallback: NewMemory(),
	}
}

// Allow records and decides an attempt via INCR+PEXPIRE. Redis owns the
// window clock; the limit comparison happens here.
func (r *Redis) Allow(ctx context.Context, key string, limit int, window time.Duration) Decision {
	if limit <= 0 {
		limit = 1
	}
	if window <= 0 {
		window = DefaultWindow
	}
	if r.client == nil {
		return r.fallback.Allow(ctx, key, limit, window)
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	res, err := windowScript.Run(ctx, r.client, []string{r.prefix + key}, window.Milliseconds()).Result()
	if err != nil {
		return r.fallback.Allow(ctx, key, limit, window)
	}
	vals, ok := res.([]interface{})
	if !ok || len(vals) < 2 {
		return r.fallback.Allow(ctx, key, limit, window)
	}

	count, _ := vals[0].(int64)
	ttlMs, _ := vals[1].(int64)
	if ttlMs < 0 {
		ttlMs = window.Milliseconds()
	}

	remaining := limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:   int(count) <= limit,
		Count:     int(count),
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   time.Now().UTC().Add(time.Duration(ttlMs) * time.Millisecond),
	}
}
