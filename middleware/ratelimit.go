package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const (
	bucketSweepInterval = 5 * time.Minute
	bucketIdleTimeout   = 10 * time.Minute
)

type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimit applies a per-client-IP token bucket to the HTTP surface. This
// is the outer, coarse guard; the per-player per-operation budgets live in
// the simulation's own limiter.
func RateLimit(r rate.Limit, burst int) gin.HandlerFunc {
	var (
		mu      sync.Mutex
		buckets = make(map[string]*clientBucket)
	)

	// Idle buckets are swept so one-off crawlers don't accumulate forever.
	go func() {
		for range time.Tick(bucketSweepInterval) {
			cutoff := time.Now().Add(-bucketIdleTimeout)
			mu.Lock()
			for ip, b := range buckets {
				if b.lastSeen.Before(cutoff) {
					delete(buckets, ip)
				}
			}
			mu.Unlock()
		}
	}()

	return func(c *gin.Context) {
		ip := c.ClientIP()

		mu.Lock()
		b, ok := buckets[ip]
		if !ok {
			b = &clientBucket{limiter: rate.NewLimiter(r, burst)}
			buckets[ip] = b
		}
		b.lastSeen = time.Now()
		mu.Unlock()

		if !b.limiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests,
				gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
