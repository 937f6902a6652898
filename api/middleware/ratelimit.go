package middleware

import (
	"context"
	"net/http"

	"advising/logger"

	"github.com/gin-gonic/gin"
)

type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// RateLimitMiddleware limits requests per caller (or per IP before
// authentication) within scope. Limiter errors let the request through.
func RateLimitMiddleware(limiter Limiter, scope string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := callerLabel(c)
		if key == "" {
			key = "ip:" + c.ClientIP()
		}
		allowed, err := limiter.Allow(c.Request.Context(), scope+":"+key)
		if err != nil {
			logger.Warn().Err(err).Str("scope", scope).Msg("rate limiter unavailable")
		}
		if !allowed {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "too many requests",
				"code":  "RATE_LIMITED",
			})
			return
		}
		c.Next()
	}
}
