package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/juju/ratelimit"

	"github.com/devwallet/rpcbroker/internal/config"
	"github.com/devwallet/rpcbroker/internal/types"
)

// RateLimiter the rate limiter of the page-facing endpoints
func RateLimiter(conf *config.Config) gin.HandlerFunc {
	bucket := ratelimit.NewBucket(time.Second/time.Duration(conf.RateLimiterQPS), conf.RateLimiterQPS)

	return func(c *gin.Context) {
		if bucket.TakeAvailable(1) < 1 {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, types.NewErrorResponse(0,
				types.NewRPCError(types.InternalErrorCode, "Rate limit exceeded", nil)))
			return
		}

		c.Next()
	}
}
