package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// slidingWindowScript mirrors MemoryLimiter.Allow on a sorted set whose
// scores are request times in milliseconds.
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local window = tonumber(ARGV[1])
local limit = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local member = ARGV[4]

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)

local count = redis.call('ZCARD', key)
if count < limit then
    redis.call('ZADD', key, now, member)
    redis.call('PEXPIRE', key, window)
    return {1, count + 1, 0}
end

local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
return {0, count, tonumber(oldest[2])}
`)

// RedisLimiter shares limits between every instance pointed at the same
// Redis. On Redis errors it fails open and returns the error for logging.
type RedisLimiter struct {
	client redis.Scripter
	cfg    Config
	prefix string
	now    func() time.Time
}

func NewRedisLimiter(client redis.Scripter, cfg Config) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		cfg:    cfg,
		prefix: "ratelimit:",
		now:    time.Now,
	}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	if !l.cfg.valid() {
		return Decision{Allowed: true}, nil
	}

	now := l.now().UnixMilli()
	window := l.cfg.Window.Milliseconds()

	res, err := slidingWindowScript.Run(ctx, l.client,
		[]string{l.prefix + key},
		window, l.cfg.MaxRequests, now, uuid.NewString(),
	).Int64Slice()
	if err != nil {
		return Decision{Allowed: true, Limit: l.cfg.MaxRequests}, fmt.Errorf("redis rate limit: %w", err)
	}
	if len(res) != 3 {
		return Decision{Allowed: true, Limit: l.cfg.MaxRequests}, fmt.Errorf("redis rate limit: unexpected reply %v", res)
	}

	if res[0] == 1 {
		return Decision{
			Allowed:   true,
			Limit:     l.cfg.MaxRequests,
			Remaining: l.cfg.MaxRequests - int(res[1]),
		}, nil
	}

	retry := time.Duration(res[2]+window-now) * time.Millisecond
	if retry < 0 {
		retry = 0
	}
	return Decision{
		Allowed:    false,
		Limit:      l.cfg.MaxRequests,
		RetryAfter: retry,
	}, nil
}
