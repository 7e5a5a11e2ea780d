package middleware

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mailproxy/backend/internal/monitoring"
	"mailproxy/backend/internal/ratelimit"
)

// RateLimiter 按客户端 IP 和操作维度限流的中间件。
type RateLimiter struct {
	limiter *ratelimit.Limiter
	metrics *monitoring.Metrics
	logger  *zap.Logger
}

// NewRateLimiter 创建限流中间件。metrics 和 logger 可以为 nil。
func NewRateLimiter(limiter *ratelimit.Limiter, metrics *monitoring.Metrics, logger *zap.Logger) *RateLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RateLimiter{
		limiter: limiter,
		metrics: metrics,
		logger:  logger,
	}
}

// Limit 对指定操作应用限流。
func (rl *RateLimiter) Limit(operation string) gin.HandlerFunc {
	return func(c *gin.Context) {
		clientIP := c.ClientIP()
		quota := rl.limiter.Quota(operation)
		c.Header("X-RateLimit-Limit", strconv.Itoa(quota.MaxRequests))

		if !rl.limiter.Allow(clientIP, operation) {
			if rl.metrics != nil {
				rl.metrics.RecordRateLimitBlocked(operation)
			}
			rl.logger.Warn("rate limit exceeded",
				zap.String("ip", clientIP),
				zap.String("operation", operation),
				zap.Int("max_requests", quota.MaxRequests),
				zap.Duration("window", quota.Window),
			)
			c.Header("Retry-After", strconv.Itoa(int(quota.Window.Seconds())))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"code": http.StatusTooManyRequests,
				"msg":  "请求过于频繁，请稍后再试",
			})
			return
		}

		if rl.metrics != nil {
			rl.metrics.RecordRateLimitAllowed(operation)
		}
		c.Next()
	}
}
