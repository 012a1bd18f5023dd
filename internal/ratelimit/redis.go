package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "ratelimit:"

// INCR and the first-hit PEXPIRE run as one script so concurrent replicas
// never observe a counter without its window.
var fixedWindowScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
  ttl = tonumber(ARGV[1])
end
return {count, ttl}
`)

// RedisLimiter shares fixed-window counters across replicas. Redis key
// expiry replaces the in-process sweep.
type RedisLimiter struct {
	client redis.UniversalClient
	now    func() time.Time
}

// NewRedisLimiter wraps a Redis client.
func NewRedisLimiter(client redis.UniversalClient) *RedisLimiter {
	return &RedisLimiter{client: client, now: time.Now}
}

// CheckAndIncrement implements Limiter.
func (l *RedisLimiter) CheckAndIncrement(ctx context.Context, key string, maxAttempts int, window time.Duration) (Decision, error) {
	if err := ctx.Err(); err != nil {
		return Decision{}, err
	}
	if maxAttempts <= 0 || window <= 0 {
		return Decision{}, fmt.Errorf("ratelimit: invalid budget %d per %s", maxAttempts, window)
	}

	res, err := fixedWindowScript.Run(ctx, l.client, []string{redisKeyPrefix + key}, window.Milliseconds()).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("ratelimit: redis script: %w", err)
	}
	if len(res) != 2 {
		return Decision{}, fmt.Errorf("ratelimit: unexpected script reply %v", res)
	}

	resetAt := l.now().Add(time.Duration(res[1]) * time.Millisecond)
	return decide(int(res[0]), maxAttempts, resetAt)
}
