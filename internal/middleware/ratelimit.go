package middleware

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/astromatch/astromatch/internal/errors"
)

// RateLimiter is a token bucket. This is the infrastructure throttle on the
// HTTP surface; the domain's daily invite quota is enforced separately in
// the invite service.
type RateLimiter struct {
	tokens     float64
	maxTokens  float64
	refillRate time.Duration
	lastRefill time.Time
	mu         sync.Mutex
}

func NewRateLimiter(maxTokens int, refillRate time.Duration) *RateLimiter {
	return &RateLimiter{
		tokens:     float64(maxTokens),
		maxTokens:  float64(maxTokens),
		refillRate: refillRate,
		lastRefill: time.Now(),
	}
}

// Allow consumes a token if one is available.
func (rl *RateLimiter) Allow() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(rl.lastRefill)
	if elapsed > 0 && rl.refillRate > 0 {
		rl.tokens += float64(elapsed) / float64(rl.refillRate)
		if rl.tokens > rl.maxTokens {
			rl.tokens = rl.maxTokens
		}
		rl.lastRefill = now
	}

	if rl.tokens >= 1 {
		rl.tokens--
		return true
	}
	return false
}

// ClientRateLimit throttles per client IP. Buckets for idle clients are
// dropped once they have been silent for an hour.
func ClientRateLimit(maxTokens int, refillRate time.Duration) gin.HandlerFunc {
	type clientBucket struct {
		limiter  *RateLimiter
		lastSeen time.Time
	}

	var (
		mu      sync.Mutex
		buckets = make(map[string]*clientBucket)
	)

	cleanup := func(now time.Time) {
		for ip, b := range buckets {
			if now.Sub(b.lastSeen) > time.Hour {
				delete(buckets, ip)
			}
		}
	}

	return func(c *gin.Context) {
		ip := c.ClientIP()
		now := time.Now()

		mu.Lock()
		if len(buckets) > 10000 {
			cleanup(now)
		}
		b, ok := buckets[ip]
		if !ok {
			b = &clientBucket{limiter: NewRateLimiter(maxTokens, refillRate)}
			buckets[ip] = b
		}
		b.lastSeen = now
		mu.Unlock()

		if !b.limiter.Allow() {
			AbortWithError(c, errors.NewRateLimitError("http_request", 0))
			return
		}

		c.Next()
	}
}
