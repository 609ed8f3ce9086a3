package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// RateLimiterConfig holds configuration for rate limiting
type RateLimiterConfig struct {
	QueriesPerMinute int           // Sustained queries per client per minute
	BurstSize        int           // Allow burst of N requests
	CleanupInterval  time.Duration // How often to clean up old entries
}

// clientLimiter is the token bucket of one client.
type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// ClientRateLimiter keeps one token bucket per client address.
type ClientRateLimiter struct {
	config      RateLimiterConfig
	clients     map[string]*clientLimiter
	mu          sync.Mutex
	logger      *zap.Logger
	stopCleanup chan struct{}
	stopOnce    sync.Once
}

// NewClientRateLimiter creates a limiter and starts its cleanup routine.
func NewClientRateLimiter(config RateLimiterConfig, logger *zap.Logger) *ClientRateLimiter {
	if config.QueriesPerMinute <= 0 {
		config.QueriesPerMinute = 30
	}
	if config.BurstSize <= 0 {
		config.BurstSize = 5
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = 10 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	limiter := &ClientRateLimiter{
		config:      config,
		clients:     make(map[string]*clientLimiter),
		logger:      logger,
		stopCleanup: make(chan struct{}),
	}
	go limiter.cleanupRoutine()
	return limiter
}

func (l *ClientRateLimiter) cleanupRoutine() {
	ticker := time.NewTicker(l.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.cleanup()
		case <-l.stopCleanup:
			return
		}
	}
}

// cleanup drops clients idle for a full cleanup interval.
func (l *ClientRateLimiter) cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := time.Now().Add(-l.config.CleanupInterval)
	removed := 0
	for key, client := range l.clients {
		if client.lastSeen.Before(cutoff) {
			delete(l.clients, key)
			removed++
		}
	}
	if removed > 0 {
		l.logger.Debug("Cleaned up rate limiter clients", zap.Int("removed", removed), zap.Int("remaining", len(l.clients)))
	}
}

// Stop stops the cleanup routine
func (l *ClientRateLimiter) Stop() {
	l.stopOnce.Do(func() { close(l.stopCleanup) })
}

// Allow consumes a token for client and reports whether the request may
// proceed along with the tokens left.
func (l *ClientRateLimiter) Allow(client string) (allowed bool, remaining int) {
	now := time.Now()

	l.mu.Lock()
	entry, exists := l.clients[client]
	if !exists {
		perSecond := rate.Limit(float64(l.config.QueriesPerMinute) / 60.0)
		entry = &clientLimiter{limiter: rate.NewLimiter(perSecond, l.config.BurstSize)}
		l.clients[client] = entry
	}
	entry.lastSeen = now
	l.mu.Unlock()

	allowed = entry.limiter.AllowN(now, 1)
	return allowed, max(0, int(entry.limiter.TokensAt(now)))
}

// RateLimitMiddleware rejects requests from clients that exhausted their
// bucket with 429.
func RateLimitMiddleware(limiter *ClientRateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		client := c.ClientIP()
		allowed, remaining := limiter.Allow(client)
		limit := limiter.config.BurstSize

		c.Header("X-RateLimit-Limit", strconv.Itoa(limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if !allowed {
			logger, _ := c.Get("logger")
			if zapLogger, ok := logger.(*zap.Logger); ok {
				zapLogger.Warn("Rate limit exceeded",
					zap.String("client", client),
					zap.String("path", c.FullPath()),
					zap.Int("limit", limit))
			}

			c.Header("Retry-After", "60")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "rate limit exceeded",
				"limit":       limit,
				"remaining":   remaining,
				"retry_after": 60,
			})
			return
		}

		c.Next()
	}
}
