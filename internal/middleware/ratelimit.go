package middleware

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// CollectorLimiter throttles the ingest endpoint per reporting key with a
// token bucket. This protects the collector itself from a misbehaving
// reporter; it is unrelated to the per-route policy limits, which are
// evaluated inside the gate against stored events.
type CollectorLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	qps      rate.Limit
	burst    int
}

func NewCollectorLimiter(qps float64, burst int) *CollectorLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &CollectorLimiter{
		limiters: make(map[string]*rate.Limiter),
		qps:      rate.Limit(qps),
		burst:    burst,
	}
}

func (l *CollectorLimiter) get(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	lim, ok := l.limiters[key]
	if !ok {
		lim = rate.NewLimiter(l.qps, l.burst)
		l.limiters[key] = lim
	}
	return lim
}

// Allow reports whether one more request from key may proceed.
func (l *CollectorLimiter) Allow(key string) bool {
	if l.qps <= 0 {
		return true
	}
	return l.get(key).Allow()
}

// RateLimitMiddleware rejects reporters that exceed the collector budget.
// A zero QPS disables the check entirely.
func RateLimitMiddleware(limiter *CollectorLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.Allow(APIKey(c)) {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       "collector rate limit exceeded",
				"retry_after": "1s",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}
