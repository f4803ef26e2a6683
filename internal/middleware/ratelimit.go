package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/charlesng35/authflow/pkg/errors"
	"github.com/charlesng35/authflow/pkg/logger"
	"github.com/charlesng35/authflow/pkg/metrics"
	"github.com/charlesng35/authflow/pkg/response"
)

// RateLimit limits requests per (clientIP, route) within a fixed window.
// A nil store or a non-positive budget disables limiting.
func RateLimit(store RateStore, maxRequests int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if store == nil || maxRequests <= 0 || window <= 0 {
			c.Next()
			return
		}

		key := c.ClientIP() + "|" + c.FullPath()
		count, resetIn, err := store.Increment(c.Request.Context(), key, window)
		if err != nil {
			// fail open
			logger.WithModule("ratelimit").Warn("rate store unavailable", zap.Error(err))
			c.Next()
			return
		}

		remaining := maxRequests - count
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(maxRequests))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Header("X-RateLimit-Reset", strconv.Itoa(int(resetIn.Seconds())))

		if count > maxRequests {
			c.Header("Retry-After", strconv.Itoa(int(resetIn.Seconds())+1))
			metrics.RateLimited.WithLabelValues(c.FullPath()).Inc()
			response.Abort(c, errors.ErrTooManyRequests)
			return
		}

		c.Next()
	}
}
