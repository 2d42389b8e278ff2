package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mikahq/mika-go/internal/domain/apperrors"
	"github.com/mikahq/mika-go/internal/infrastructure/observability/logging"
	"github.com/mikahq/mika-go/internal/infrastructure/observability/metrics"
	"github.com/mikahq/mika-go/internal/infrastructure/security"
)

// RateLimitMiddleware rejects over-limit clients with 429.
func RateLimitMiddleware(limiter *security.RateLimiter, logger *logging.ChanneledLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter.Allow(c.ClientIP()) {
			c.Next()
			return
		}
		metrics.RateLimited.Inc()
		logger.WithContext(c.Request.Context(), logging.ChannelSystem).Debug("Rate limited", "path", c.FullPath(), "client", c.ClientIP())
		c.AbortWithStatusJSON(http.StatusTooManyRequests, ErrorBody("too many requests", apperrors.CodeRateLimited))
	}
}
