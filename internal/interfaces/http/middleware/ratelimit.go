package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/gestock/backend/internal/interfaces/http/dto"
)

// RateLimiter is an in-memory fixed-window limiter keyed by caller identity.
// Good enough for a single instance; a shared store would be needed behind a
// load balancer.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	limit   int
	window  time.Duration
	done    chan struct{}
}

type bucket struct {
	remaining int
	windowEnd time.Time
}

// NewRateLimiter creates a limiter allowing limit requests per window and
// starts a janitor that drops idle buckets.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		buckets: make(map[string]*bucket),
		limit:   limit,
		window:  window,
		done:    make(chan struct{}),
	}
	go rl.janitor()
	return rl
}

// Stop terminates the background janitor.
func (rl *RateLimiter) Stop() {
	close(rl.done)
}

func (rl *RateLimiter) janitor() {
	ticker := time.NewTicker(rl.window * 2)
	defer ticker.Stop()

	for {
		select {
		case <-rl.done:
			return
		case now := <-ticker.C:
			rl.mu.Lock()
			for key, b := range rl.buckets {
				if now.After(b.windowEnd.Add(rl.window)) {
					delete(rl.buckets, key)
				}
			}
			rl.mu.Unlock()
		}
	}
}

// take consumes one request slot for key and reports whether it was allowed
// along with the slots left in the current window.
func (rl *RateLimiter) take(key string) (bool, int) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	b, ok := rl.buckets[key]
	if !ok || now.After(b.windowEnd) {
		b = &bucket{remaining: rl.limit, windowEnd: now.Add(rl.window)}
		rl.buckets[key] = b
	}

	if b.remaining == 0 {
		return false, 0
	}
	b.remaining--
	return true, b.remaining
}

// Allow reports whether a request from key fits in the current window.
func (rl *RateLimiter) Allow(key string) bool {
	allowed, _ := rl.take(key)
	return allowed
}

// Remaining returns the request slots left for key without consuming one.
func (rl *RateLimiter) Remaining(key string) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, ok := rl.buckets[key]
	if !ok || time.Now().After(b.windowEnd) {
		return rl.limit
	}
	return b.remaining
}

// RateLimit limits requests per client IP, scoped by tenant when the
// X-Tenant-ID header is present, and reports the budget via X-RateLimit-*
// headers.
func RateLimit(limiter *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP()
		if tenantID := c.GetHeader("X-Tenant-ID"); tenantID != "" {
			key = tenantID + ":" + key
		}

		allowed, remaining := limiter.take(key)
		if !allowed {
			c.AbortWithStatusJSON(http.StatusTooManyRequests,
				dto.NewErrorResponse(dto.ErrCodeRateLimited, "Too many requests. Please try again later."))
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(limiter.limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))

		c.Next()
	}
}

// RateLimitByKey limits requests using a caller-supplied key extractor, e.g.
// per authenticated user instead of per IP.
func RateLimitByKey(limiter *RateLimiter, keyFunc func(*gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.Allow(keyFunc(c)) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests,
				dto.NewErrorResponse(dto.ErrCodeRateLimited, "Too many requests. Please try again later."))
			return
		}

		c.Next()
	}
}
