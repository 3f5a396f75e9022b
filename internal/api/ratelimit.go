// Per-IP rate limiting for the mutating gameplay endpoints. Fixed-window
// counters, held in memory; enough to blunt scripted click storms without
// an external dependency on the request path.
package api

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RateLimiter allows maxRequests per window per client IP.
type RateLimiter struct {
	mu          sync.Mutex
	windows     map[string]*window
	maxRequests int
	window      time.Duration
}

type window struct {
	count     int
	startedAt time.Time
}

// NewRateLimiter creates a limiter and starts its stale-entry sweeper.
func NewRateLimiter(maxRequests int, windowLen time.Duration) *RateLimiter {
	rl := &RateLimiter{
		windows:     make(map[string]*window),
		maxRequests: maxRequests,
		window:      windowLen,
	}
	go func() {
		for range time.Tick(10 * windowLen) {
			rl.sweep()
		}
	}()
	return rl
}

// allow records one request for ip and reports whether it fits the window.
func (rl *RateLimiter) allow(ip string, now time.Time) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	w, ok := rl.windows[ip]
	if !ok || now.Sub(w.startedAt) >= rl.window {
		rl.windows[ip] = &window{count: 1, startedAt: now}
		return true
	}
	w.count++
	return w.count <= rl.maxRequests
}

// retryAfter reports seconds until ip's window resets.
func (rl *RateLimiter) retryAfter(ip string, now time.Time) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	w, ok := rl.windows[ip]
	if !ok {
		return 0
	}
	remaining := rl.window - now.Sub(w.startedAt)
	if remaining < 0 {
		return 0
	}
	return int(remaining.Seconds()) + 1
}

func (rl *RateLimiter) sweep() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	for ip, w := range rl.windows {
		if now.Sub(w.startedAt) > 2*rl.window {
			delete(rl.windows, ip)
		}
	}
}

// clientIP prefers the first X-Forwarded-For hop, falling back to the
// connection's remote address.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if i := strings.IndexByte(xff, ','); i >= 0 {
			xff = xff[:i]
		}
		return strings.TrimSpace(xff)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// Wrap guards a handler with the limiter, answering 429 with Retry-After
// when the window is spent.
func (rl *RateLimiter) Wrap(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		now := time.Now()
		if !rl.allow(ip, now) {
			w.Header().Set("Retry-After", strconv.Itoa(rl.retryAfter(ip, now)))
			writeError(w, http.StatusTooManyRequests, "Busy")
			return
		}
		next(w, r)
	}
}
