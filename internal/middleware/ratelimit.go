package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/farellandr/qrticket/internal/helpers"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const scanRateLimitPrefix = "ratelimit:scan:"

// ScanRateLimit caps scan requests per client IP in a fixed window backed by
// redis. A nil client disables the limit. Redis errors let the request through.
func ScanRateLimit(rdb redis.Cmdable, limit int64, window time.Duration, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	if limit <= 0 {
		limit = 60
	}
	if window <= 0 {
		window = time.Minute
	}

	return func(c *gin.Context) {
		if rdb == nil {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		key := scanRateLimitKey(c.ClientIP())

		count, err := rdb.Incr(ctx, key).Result()
		if err != nil {
			logger.Warn("scan rate limit unavailable", zap.String("key", key), zap.Error(err))
			c.Next()
			return
		}
		if count == 1 {
			if err := rdb.Expire(ctx, key, window).Err(); err != nil {
				logger.Warn("scan rate limit expire failed", zap.String("key", key), zap.Error(err))
			}
		}

		c.Header("X-RateLimit-Limit", strconv.FormatInt(limit, 10))
		remaining := limit - count
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

		if count > limit {
			ensureWindow(c, rdb, key, window, logger)
			c.Header("Retry-After", strconv.Itoa(int(window.Seconds())))
			helpers.RespondWithError(c, http.StatusTooManyRequests, "Too many scan requests. Please try again later.")
			c.Abort()
			return
		}

		c.Next()
	}
}

// ensureWindow restores the expiry on a counter that lost it, e.g. when the
// EXPIRE after the first hit failed. Without it the client stays blocked.
func ensureWindow(c *gin.Context, rdb redis.Cmdable, key string, window time.Duration, logger *zap.Logger) {
	ctx := c.Request.Context()

	ttl, err := rdb.TTL(ctx, key).Result()
	if err != nil {
		logger.Warn("scan rate limit ttl check failed", zap.String("key", key), zap.Error(err))
		return
	}
	if ttl >= 0 {
		return
	}

	if err := rdb.Expire(ctx, key, window).Err(); err != nil {
		logger.Warn("scan rate limit expire failed", zap.String("key", key), zap.Error(err))
	}
}

func scanRateLimitKey(clientIP string) string {
	if clientIP == "" {
		clientIP = "unknown"
	}
	return fmt.Sprintf("%s%s", scanRateLimitPrefix, clientIP)
}
