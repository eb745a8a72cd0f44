package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Increments the window counter and arms its expiry on the first hit.
// Returns {count, remaining ttl in ms}.
var fixedWindow = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
  ttl = tonumber(ARGV[1])
end
return {n, ttl}
`)

// RedisLimiter shares window counters between instances through Redis keys
// that expire with the window.
type RedisLimiter struct {
	rdb    redis.Scripter
	prefix string
	max    int
	period time.Duration
}

func NewRedisLimiter(rdb redis.Scripter, max int, period time.Duration) *RedisLimiter {
	return &RedisLimiter{rdb: rdb, prefix: "ratelimit:", max: max, period: period}
}

func (l *RedisLimiter) Allow(ctx context.Context, identity, route string) error {
	res, err := fixedWindow.Run(ctx, l.rdb, []string{l.prefix + key(identity, route)}, l.period.Milliseconds()).Int64Slice()
	if err != nil {
		return fmt.Errorf("rate limit counter: %w", err)
	}
	if len(res) != 2 {
		return fmt.Errorf("rate limit counter: unexpected reply %v", res)
	}
	if res[0] > int64(l.max) {
		return &LimitedError{RetryAfter: time.Duration(res[1]) * time.Millisecond}
	}
	return nil
}
