package server

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/pders01/podrelay/internal/debuglog"
	"github.com/pders01/podrelay/internal/proxy"
)

type window struct {
	hits    int
	resetAt time.Time
}

// RateLimiter counts requests per client IP in fixed windows. A client's
// window opens on its first request and lasts for the configured period.
type RateLimiter struct {
	limit  int
	period time.Duration
	now    func() time.Time

	mu        sync.Mutex
	clients   map[string]*window
	nextSweep time.Time
}

// NewRateLimiter allows limit requests per period for each client.
func NewRateLimiter(limit int, period time.Duration, now func() time.Time) *RateLimiter {
	if now == nil {
		now = time.Now
	}
	return &RateLimiter{
		limit:   limit,
		period:  period,
		now:     now,
		clients: make(map[string]*window),
	}
}

// Allow records a request from key and reports whether it is within the
// limit, along with the remaining budget and the window reset time.
func (l *RateLimiter) Allow(key string) (allowed bool, remaining int, resetAt time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweep(now)

	w, ok := l.clients[key]
	if !ok || !now.Before(w.resetAt) {
		w = &window{resetAt: now.Add(l.period)}
		l.clients[key] = w
	}
	w.hits++

	remaining = max(l.limit-w.hits, 0)
	return w.hits <= l.limit, remaining, w.resetAt
}

// sweep drops expired windows at most once per period.
func (l *RateLimiter) sweep(now time.Time) {
	if now.Before(l.nextSweep) {
		return
	}
	for key, w := range l.clients {
		if !now.Before(w.resetAt) {
			delete(l.clients, key)
		}
	}
	l.nextSweep = now.Add(l.period)
}

// Middleware enforces the limit. Every response carries RateLimit-* headers;
// rejected requests also get Retry-After and a 429.
func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		allowed, remaining, resetAt := l.Allow(ip)

		resetIn := int(math.Ceil(resetAt.Sub(l.now()).Seconds()))
		resetIn = max(resetIn, 0)

		h := w.Header()
		h.Set("RateLimit-Policy", strconv.Itoa(l.limit)+";w="+strconv.Itoa(int(l.period.Seconds())))
		h.Set("RateLimit-Limit", strconv.Itoa(l.limit))
		h.Set("RateLimit-Remaining", strconv.Itoa(remaining))
		h.Set("RateLimit-Reset", strconv.Itoa(resetIn))

		if !allowed {
			debuglog.WithFields(map[string]interface{}{
				"ip":   ip,
				"path": r.URL.Path,
			}).Warnf("Rate limit exceeded")
			h.Set("Retry-After", strconv.Itoa(resetIn))
			http.Error(w, proxy.PublicMessage(proxy.ErrRateLimited), proxy.StatusCode(proxy.ErrRateLimited))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
