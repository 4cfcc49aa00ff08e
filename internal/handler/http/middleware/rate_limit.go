package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/wizarding-anonymous/identity_platform/internal/config"
)

// Limiter is the shared fixed-window rate limiter.
type Limiter interface {
	Allow(ctx context.Context, key string, rule config.RateLimitRule) (allowed bool, retryAfter time.Duration, err error)
}

// RateLimit rejects callers that exceed rule within its window, keyed by
// source address. It guards the general auth surface; the login and
// magic-link flows carry their own tighter limits in the service layer.
func RateLimit(limiter Limiter, rule config.RateLimitRule, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		allowed, retryAfter, err := limiter.Allow(c.Request.Context(), "general:"+c.ClientIP(), rule)
		if err != nil {
			logger.Error("Rate limiter failed", zap.Error(err))
		}
		if !allowed {
			c.Header("Retry-After", strconv.Itoa(int(retryAfter.Seconds())))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded",
				"code":  "rate_limited",
			})
			return
		}
		c.Next()
	}
}
