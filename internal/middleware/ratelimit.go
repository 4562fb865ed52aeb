package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/gatekeeper/internal/apperror"
)

// rateLimitEntry tracks request counts for a single IP within a window.
type rateLimitEntry struct {
	count       int
	windowStart time.Time
}

// limiter is a fixed-window counter per client IP.
type limiter struct {
	mu          sync.Mutex
	maxRequests int
	window      time.Duration
	entries     map[string]*rateLimitEntry
}

func newLimiter(maxRequests int, window time.Duration) *limiter {
	return &limiter{
		maxRequests: maxRequests,
		window:      window,
		entries:     make(map[string]*rateLimitEntry),
	}
}

// allow records a request from ip at now and reports whether it is within
// the limit.
func (l *limiter) allow(ip string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.entries[ip]
	if !ok || now.Sub(entry.windowStart) > l.window {
		l.entries[ip] = &rateLimitEntry{count: 1, windowStart: now}
		return true
	}
	entry.count++
	return entry.count <= l.maxRequests
}

// sweep drops entries whose window ended more than one window ago.
func (l *limiter) sweep(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for ip, entry := range l.entries {
		if now.Sub(entry.windowStart) > l.window*2 {
			delete(l.entries, ip)
		}
	}
}

// RateLimit returns middleware that limits requests per IP to maxRequests
// within the given window. Returns 429 when exceeded.
func RateLimit(maxRequests int, window time.Duration) echo.MiddlewareFunc {
	l := newLimiter(maxRequests, window)

	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for now := range ticker.C {
			l.sweep(now)
		}
	}()

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !l.allow(c.RealIP(), time.Now()) {
				return &apperror.AppError{
					Code:    http.StatusTooManyRequests,
					Type:    "rate_limited",
					Message: "Too Many Requests",
				}
			}
			return next(c)
		}
	}
}
