package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"scalpbot/internal/domain"
)

// slidingWindowLua atomically prunes expired entries from a sorted set of
// admission timestamps and admits the call if capacity remains. KEYS[1] is
// the window key; ARGV are now (us), window (us), and limit. It returns
// {allowed, count}.
const slidingWindowLua = `
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)

local count = redis.call('ZCARD', key)
if count < limit then
  redis.call('ZADD', key, now, now .. '-' .. math.random(1000000))
  redis.call('PEXPIRE', key, math.ceil(window / 1000) * 2)
  return {1, count + 1}
end

return {0, count}
`

// acquirePollInterval is how often Acquire re-checks a saturated window.
const acquirePollInterval = 50 * time.Millisecond

// RateLimiter implements domain.RateLimiter with a sliding window shared
// across processes, backed by a Redis sorted set and an atomic Lua script.
// Running the bot and a companion process against the same account keeps
// them under one combined ceiling.
type RateLimiter struct {
	rdb           *redis.Client
	slidingWindow *redis.Script

	key    string
	limit  int
	window time.Duration
}

// NewRateLimiter creates a shared limiter admitting limit calls per window
// under the given key.
func NewRateLimiter(c *Client, key string, limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		rdb:           c.Underlying(),
		slidingWindow: redis.NewScript(slidingWindowLua),
		key:           "ratelimit:" + key,
		limit:         limit,
		window:        window,
	}
}

// Allow checks whether a call is permitted right now. It returns true if the
// call was admitted and counted.
func (rl *RateLimiter) Allow(ctx context.Context) (bool, error) {
	result, err := rl.slidingWindow.Run(
		ctx,
		rl.rdb,
		[]string{rl.key},
		time.Now().UnixMicro(),
		rl.window.Microseconds(),
		rl.limit,
	).Int64Slice()
	if err != nil {
		return false, fmt.Errorf("redis: rate limit allow %s: %w", rl.key, err)
	}

	if len(result) < 2 {
		return false, fmt.Errorf("redis: rate limit allow %s: unexpected result length %d", rl.key, len(result))
	}

	return result[0] == 1, nil
}

// Acquire blocks until a slot is available, polling at a fixed interval. A
// ctx expiry is returned wrapped in domain.ErrRateLimited.
func (rl *RateLimiter) Acquire(ctx context.Context) error {
	for {
		allowed, err := rl.Allow(ctx)
		if err != nil {
			return err
		}
		if allowed {
			return nil
		}

		timer := time.NewTimer(acquirePollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%w: %w", domain.ErrRateLimited, ctx.Err())
		case <-timer.C:
		}
	}
}

// Compile-time interface check.
var _ domain.RateLimiter = (*RateLimiter)(nil)
