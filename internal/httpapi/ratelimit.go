package httpapi

import (
	"net/http"
	"sync"
	"time"

	"wbor-twilio/pkg/logger"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// IPRateLimiter keeps one token bucket per client IP.
type IPRateLimiter struct {
	mu      sync.Mutex
	entries map[string]*limiterEntry
	limit   rate.Limit
	burst   int
	maxAge  time.Duration
	now     func() time.Time
}

// NewIPRateLimiter allows perMinute requests per IP with a burst of the same
// size. Idle entries are dropped after maxAge on the next Allow sweep.
func NewIPRateLimiter(perMinute int, maxAge time.Duration) *IPRateLimiter {
	if perMinute <= 0 {
		perMinute = 1
	}
	if maxAge <= 0 {
		maxAge = 10 * time.Minute
	}
	return &IPRateLimiter{
		entries: make(map[string]*limiterEntry),
		limit:   rate.Every(time.Minute / time.Duration(perMinute)),
		burst:   perMinute,
		maxAge:  maxAge,
		now:     time.Now,
	}
}

func (l *IPRateLimiter) Allow(ip string) bool {
	now := l.now()

	l.mu.Lock()
	e, ok := l.entries[ip]
	if !ok {
		if len(l.entries) > 1024 {
			l.sweepLocked(now)
		}
		e = &limiterEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.entries[ip] = e
	}
	e.lastSeen = now
	l.mu.Unlock()

	return e.limiter.AllowN(now, 1)
}

func (l *IPRateLimiter) sweepLocked(now time.Time) {
	cutoff := now.Add(-l.maxAge)
	for ip, e := range l.entries {
		if e.lastSeen.Before(cutoff) {
			delete(l.entries, ip)
		}
	}
}

// Middleware rejects over-limit clients with 429.
func (l *IPRateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if !l.Allow(ip) {
			logger.FromGin(c).Warn("rate limit exceeded", "ip", ip, "path", c.FullPath())
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
