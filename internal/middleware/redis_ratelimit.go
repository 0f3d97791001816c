package middleware

import (
	"context"
	"fmt"
	"math/rand/v2"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// Sliding window log over a sorted set keyed by client. Scores are
// milliseconds; every request adds its own member.
const slidingWindowLua = `
local key = KEYS[1]
local window = tonumber(ARGV[1])
local limit = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local member = ARGV[4]

redis.call('ZREMRANGEBYSCORE', key, 0, now - window)
local current = redis.call('ZCARD', key)

if current < limit then
	redis.call('ZADD', key, now, member)
	redis.call('PEXPIRE', key, window)
	return {1, limit - current - 1}
else
	return {0, 0}
end
`

// rateWindow is the span in which burst requests are allowed at rps.
func rateWindow(rps, burst int) time.Duration {
	window := time.Duration(max(burst, 1)) * time.Second / time.Duration(max(rps, 1))
	return max(window, time.Second)
}

// RedisRateLimit creates a per-IP rate limiter backed by Redis. It fails open
// when Redis errors.
func RedisRateLimit(redisClient *redis.Client, rps int, burst int) gin.HandlerFunc {
	burst = max(burst, 1)
	window := rateWindow(rps, burst)
	retryAfter := int(window.Seconds())
	return func(c *gin.Context) {
		clientIP := c.ClientIP()
		if clientIP == "" {
			clientIP = "unknown"
		}
		key := fmt.Sprintf("rate_limit:%s", clientIP)
		now := time.Now()
		member := fmt.Sprintf("%d-%d", now.UnixNano(), rand.Int64())

		result, err := redisClient.Eval(c.Request.Context(), slidingWindowLua, []string{key},
			window.Milliseconds(), burst, now.UnixMilli(), member).Result()
		if err != nil {
			c.Next()
			return
		}
		results, ok := result.([]interface{})
		if !ok || len(results) < 2 {
			c.Next()
			return
		}
		allowed, _ := results[0].(int64)
		remaining, _ := results[1].(int64)

		c.Header("X-RateLimit-Limit", strconv.Itoa(burst))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(now.Add(window).Unix(), 10))

		if allowed == 0 {
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "Rate limit exceeded",
				"retry_after": retryAfter,
			})
			return
		}
		c.Next()
	}
}

// HybridRateLimit uses Redis when it answers and the in-memory limiter otherwise.
// A nil client always uses memory.
func HybridRateLimit(redisClient *redis.Client, rps int, burst int) gin.HandlerFunc {
	memoryRateLimit := RateLimit(rps, burst)
	if redisClient == nil {
		return memoryRateLimit
	}
	redisRateLimit := RedisRateLimit(redisClient, rps, burst)

	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 100*time.Millisecond)
		defer cancel()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			memoryRateLimit(c)
			return
		}
		redisRateLimit(c)
	}
}
