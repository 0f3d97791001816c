package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// bucketIdle is how long a client may stay quiet before its bucket is dropped.
const bucketIdle = 10 * time.Minute

type tokenBucket struct {
	tokens float64
	seen   time.Time
}

// memoryLimiter keeps one token bucket per client in process memory.
type memoryLimiter struct {
	mu      sync.Mutex
	rate    float64
	burst   float64
	buckets map[string]*tokenBucket
	swept   time.Time
}

func newMemoryLimiter(rps, burst int) *memoryLimiter {
	return &memoryLimiter{
		rate:    float64(max(rps, 1)),
		burst:   float64(max(burst, 1)),
		buckets: map[string]*tokenBucket{},
		swept:   time.Now(),
	}
}

// take spends one token for key. When none is left it returns how long until
// the next one.
func (l *memoryLimiter) take(key string, now time.Time) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.swept) > bucketIdle {
		for k, b := range l.buckets {
			if now.Sub(b.seen) > bucketIdle {
				delete(l.buckets, k)
			}
		}
		l.swept = now
	}

	b, ok := l.buckets[key]
	if !ok {
		b = &tokenBucket{tokens: l.burst, seen: now}
		l.buckets[key] = b
	}
	b.tokens = min(l.burst, b.tokens+now.Sub(b.seen).Seconds()*l.rate)
	b.seen = now
	if b.tokens < 1 {
		wait := time.Duration((1 - b.tokens) / l.rate * float64(time.Second))
		return false, wait
	}
	b.tokens--
	return true, 0
}

// RateLimit is the in-memory per-IP limiter used when Redis is not configured
// or not answering.
func RateLimit(rps int, burst int) gin.HandlerFunc {
	l := newMemoryLimiter(rps, burst)
	return func(c *gin.Context) {
		ok, wait := l.take(c.ClientIP(), time.Now())
		if !ok {
			retry := int(math.Ceil(wait.Seconds()))
			c.Header("Retry-After", strconv.Itoa(retry))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "Rate limit exceeded",
				"retry_after": retry,
			})
			return
		}
		c.Next()
	}
}
