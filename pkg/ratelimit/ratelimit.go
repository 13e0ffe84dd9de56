package ratelimit

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

type Config struct {
	// Rate is the number of requests allowed per second.
	Rate float64
	// Burst is the maximum number of requests allowed at once.
	Burst int
	// MaxAge is how long an idle bucket is kept.
	MaxAge time.Duration
}

// DefaultLoginConfig allows a short burst of logins per client and then one
// attempt per second.
func DefaultLoginConfig() Config {
	return Config{Rate: 1, Burst: 10, MaxAge: 10 * time.Minute}
}

type bucket struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// Limiter keeps one token bucket per key.
type Limiter struct {
	mu        sync.Mutex
	buckets   map[string]*bucket
	config    Config
	lastSweep time.Time
	now       func() time.Time
}

func New(cfg Config) *Limiter {
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = 5 * time.Minute
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	return &Limiter{
		buckets: map[string]*bucket{},
		config:  cfg,
		now:     time.Now,
	}
}

// Allow reports whether one more request for key fits the budget.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) > l.config.MaxAge {
		l.sweep(now)
	}
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(rate.Limit(l.config.Rate), l.config.Burst)}
		l.buckets[key] = b
	}
	b.lastAccess = now
	return b.limiter.AllowN(now, 1)
}

// sweep must be called with l.mu held.
func (l *Limiter) sweep(now time.Time) {
	for key, b := range l.buckets {
		if now.Sub(b.lastAccess) > l.config.MaxAge {
			delete(l.buckets, key)
		}
	}
	l.lastSweep = now
}

// Len returns the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// Middleware rejects requests over budget with 429. key picks the bucket,
// the client IP is used when it is nil.
func (l *Limiter) Middleware(key func(*gin.Context) string) gin.HandlerFunc {
	if key == nil {
		key = func(c *gin.Context) string { return c.ClientIP() }
	}
	return func(c *gin.Context) {
		if !l.Allow(key(c)) {
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"reason": "rate limit exceeded, please try again later",
			})
			return
		}
		c.Next()
	}
}
