// Package ratelimit implements sliding-window request limits keyed by an
// arbitrary string (the HTTP layer uses the client IP).
package ratelimit

import (
	"context"
	"math"
	"time"
)

type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	// RetryAfter is zero when the request was allowed.
	RetryAfter time.Duration
}

// RetryAfterSeconds rounds up so a client waiting that long is let through.
func (d Decision) RetryAfterSeconds() int {
	if d.RetryAfter <= 0 {
		return 0
	}
	return int(math.Ceil(d.RetryAfter.Seconds()))
}

type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

type Config struct {
	Window      time.Duration
	MaxRequests int
}

func (c Config) valid() bool {
	return c.Window > 0 && c.MaxRequests > 0
}
