package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"vibelink/response"
)

const (
	corsAllowMethods = "GET, POST, PUT, PATCH, DELETE, OPTIONS"
	corsAllowHeaders = "Authorization, Content-Type, X-Request-ID"
	corsMaxAge       = "600"
)

// OriginPolicy is a normalized CORS allowlist. A single "*" allows every
// origin without credentials.
type OriginPolicy struct {
	any     bool
	origins map[string]struct{}
}

// NewOriginPolicy accepts a comma separated list as found in CORS_ORIGIN.
func NewOriginPolicy(list string) *OriginPolicy {
	p := &OriginPolicy{origins: make(map[string]struct{})}
	for _, raw := range strings.Split(list, ",") {
		o := NormalizeOrigin(raw)
		if o == "" {
			continue
		}
		if o == "*" {
			p.any = true
			continue
		}
		p.origins[o] = struct{}{}
	}
	return p
}

func NormalizeOrigin(origin string) string {
	return strings.TrimRight(strings.TrimSpace(origin), "/")
}

// Allows reports whether origin may call the API. An empty origin means a
// same-origin or non-browser client and is always allowed.
func (p *OriginPolicy) Allows(origin string) bool {
	if origin == "" || p.any {
		return true
	}
	_, ok := p.origins[NormalizeOrigin(origin)]
	return ok
}

// CheckOrigin adapts the policy to websocket.Upgrader.CheckOrigin.
func (p *OriginPolicy) CheckOrigin(r *http.Request) bool {
	return p.Allows(r.Header.Get("Origin"))
}

func CORS(policy *OriginPolicy) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin == "" {
			c.Next()
			return
		}

		if !policy.Allows(origin) {
			response.Fail(c, http.StatusForbidden, response.ErrorBody{
				Message: "CORS blocked for origin: " + origin,
			})
			return
		}

		h := c.Writer.Header()
		if policy.any {
			h.Set("Access-Control-Allow-Origin", "*")
		} else {
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Add("Vary", "Origin")
		}
		h.Set("Access-Control-Expose-Headers", "Retry-After, X-RateLimit-Limit, X-RateLimit-Remaining, X-Request-ID")

		if c.Request.Method == http.MethodOptions {
			h.Set("Access-Control-Allow-Methods", corsAllowMethods)
			h.Set("Access-Control-Allow-Headers", corsAllowHeaders)
			h.Set("Access-Control-Max-Age", corsMaxAge)
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
