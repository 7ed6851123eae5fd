package api

import (
	"crypto/subtle"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	logger "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// LoggingMiddleware writes one log entry per request.
func LoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		newLogger := logger.WithFields(logger.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start),
			"client":  c.ClientIP(),
		})
		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			newLogger.Warn("request failed")
		case c.Request.URL.Path == ROUTE_HEALTH || c.Request.URL.Path == ROUTE_METRICS:
			newLogger.Trace("request")
		default:
			newLogger.Debug("request")
		}
	}
}

// Buckets of clients idle for longer than this are dropped.
const rateLimitIdleTTL = 10 * time.Minute

type visitor struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// ipRateLimiter keeps one token bucket per client ip and sweeps idle ones
// at most once per idleTTL.
type ipRateLimiter struct {
	mu        sync.Mutex
	rps       rate.Limit
	burst     int
	idleTTL   time.Duration
	visitors  map[string]*visitor
	lastSweep time.Time
}

func newIpRateLimiter(rps float64, burst int, idleTTL time.Duration) *ipRateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &ipRateLimiter{
		rps:       rate.Limit(rps),
		burst:     burst,
		idleTTL:   idleTTL,
		visitors:  make(map[string]*visitor),
		lastSweep: time.Now(),
	}
}

func (l *ipRateLimiter) allow(ip string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) >= l.idleTTL {
		for k, v := range l.visitors {
			if now.Sub(v.lastSeen) >= l.idleTTL {
				delete(l.visitors, k)
			}
		}
		l.lastSweep = now
	}

	v, ok := l.visitors[ip]
	if !ok {
		v = &visitor{lim: rate.NewLimiter(l.rps, l.burst)}
		l.visitors[ip] = v
	}
	v.lastSeen = now

	return v.lim.AllowN(now, 1)
}

func (l *ipRateLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.visitors)
}

// RateLimitMiddleware keeps one token bucket per client ip.
func RateLimitMiddleware(rps float64, burst int) gin.HandlerFunc {
	return rateLimit(newIpRateLimiter(rps, burst, rateLimitIdleTTL))
}

func rateLimit(l *ipRateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip, _, err := net.SplitHostPort(c.Request.RemoteAddr)
		if err != nil {
			ip = c.Request.RemoteAddr
		}

		if !l.allow(ip, time.Now()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}

// ApiKeyMiddleware rejects requests without the configured key.
func ApiKeyMiddleware(key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		got := c.GetHeader(HEADER_API_KEY)
		if subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid api key"})
			return
		}
		c.Next()
	}
}
