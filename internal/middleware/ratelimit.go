package middleware

import (
	"net/http" // HTTP status codes
	"strconv"  // Header values
	"time"     // Windows

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
	"github.com/sirupsen/logrus"   // Logging
)

// RateLimit allows limit requests per window per client, counted in Redis.
// Authenticated callers are counted by user, anonymous ones by client IP.
// Redis being unavailable lets traffic through.
func RateLimit(rdb *redis.Client, name string, limit int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if rdb == nil || limit <= 0 {
			c.Next() // Limiting disabled
			return
		}
		clientID := "ip:" + c.ClientIP()
		if id, ok := CurrentUserID(c); ok {
			clientID = "uid:" + id.String() // Prefer the authenticated identity
		}
		key := "ratelimit:" + name + ":" + clientID
		ctx := c.Request.Context()

		count, err := rdb.Incr(ctx, key).Result() // Increment counter
		if err != nil {
			logrus.WithError(err).Warn("Rate limiter unavailable") // Fail open
			c.Next()
			return
		}
		if count == 1 {
			rdb.Expire(ctx, key, window) // First request opens the window
		}
		ttl, _ := rdb.TTL(ctx, key).Result()
		if ttl < 0 {
			rdb.Expire(ctx, key, window) // Repair a key that lost its expiry
			ttl = window
		}

		remaining := limit - int(count)
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Header("X-RateLimit-Reset", strconv.Itoa(int(ttl.Seconds())))

		// Over the limit
		if count > int64(limit) {
			c.Header("Retry-After", strconv.Itoa(int(ttl.Seconds())))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests, try again in " + ttl.Round(time.Second).String()})
			return
		}
		c.Next()
	}
}
