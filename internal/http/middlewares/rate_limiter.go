package middlewares

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/geocoder89/rehearsalhub/internal/ratelimit"
	"github.com/gin-gonic/gin"
)

type RateLimiter struct {
	store  ratelimit.Store
	limit  int
	window time.Duration
	log    *slog.Logger
}

func NewRateLimiter(store ratelimit.Store, limit int, window time.Duration, log *slog.Logger) *RateLimiter {
	if log == nil {
		log = slog.Default()
	}
	return &RateLimiter{store: store, limit: limit, window: window, log: log}
}

// RateLimiterMiddleware enforces the limit for a key derived from the
// request. A failing store lets the request through.
func (rl *RateLimiter) RateLimiterMiddleware(scope string, keyFn func(*gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := keyFn(c)

		if key == "" {
			// fallback to IP if key cannot be derived
			key = clientIP(c)
		}

		allowed, retryAfter, err := rl.store.Allow(c.Request.Context(), scope+":"+key, rl.limit, rl.window)
		if err != nil {
			rl.log.WarnContext(c.Request.Context(), "rate_limit_store_failed", "scope", scope, "err", err)
			c.Next()
			return
		}

		if !allowed {
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))

			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"code":    "rate_limited",
				"message": "Too many requests. Please try again shortly.",
			})

			return
		}

		c.Next()
	}
}

// for unauthenticated endpoints: rate limit by IP
func KeyByIP(c *gin.Context) string {
	return clientIP(c)
}

func clientIP(c *gin.Context) string {
	// Gin's ClientIP respects X-Forwarded-For / X-Real-IP if configured.
	ip := c.ClientIP()

	host, _, err := net.SplitHostPort(ip)

	if err == nil && host != "" {
		return host
	}

	return ip
}
