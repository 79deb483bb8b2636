package middleware

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"vibelink/ratelimit"
	"vibelink/response"
)

// RateLimit limits requests per client IP. A failing limiter lets the
// request through.
func RateLimit(limiter ratelimit.Limiter, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		d, err := limiter.Allow(c.Request.Context(), c.ClientIP())
		if err != nil {
			logger.Warn("rate limiter unavailable", "error", err)
		}

		h := c.Writer.Header()
		if d.Limit > 0 {
			h.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
		}

		if !d.Allowed {
			retry := d.RetryAfterSeconds()
			h.Set("Retry-After", strconv.Itoa(retry))
			response.Fail(c, http.StatusTooManyRequests, response.ErrorBody{
				Message:    TooManyRequests(retry).Message,
				RetryAfter: retry,
			})
			return
		}

		c.Next()
	}
}
