package middleware

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/hongminglow/pos-backend/internal/http/respond"
)

// RateLimiter is a per-client-IP token bucket allowing max requests per
// window, refilled continuously.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket

	limit      rate.Limit
	burst      int
	idleTTL    time.Duration
	trustProxy bool
	now        func() time.Time
}

type bucket struct {
	lim  *rate.Limiter
	seen time.Time
}

// NewRateLimiter builds a limiter for max requests per window.
func NewRateLimiter(window time.Duration, max int, trustProxy bool) *RateLimiter {
	return &RateLimiter{
		buckets:    make(map[string]*bucket),
		limit:      rate.Every(window / time.Duration(max)),
		burst:      max,
		idleTTL:    window,
		trustProxy: trustProxy,
		now:        time.Now,
	}
}

// Run evicts idle buckets every interval until ctx is done. A bucket idle for
// a full window has refilled, so dropping it loses nothing.
func (l *RateLimiter) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.evictIdle()
		}
	}
}

func (l *RateLimiter) evictIdle() {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	for ip, b := range l.buckets {
		if now.Sub(b.seen) > l.idleTTL {
			delete(l.buckets, ip)
		}
	}
}

func (l *RateLimiter) limiterFor(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.buckets[ip]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[ip] = b
	}
	b.seen = l.now()
	return b.lim
}

// Middleware rejects callers over their budget with 429 and Retry-After.
func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := ClientIP(r, l.trustProxy)
		if ip == "" {
			ip = "unknown"
		}
		res := l.limiterFor(ip).ReserveN(l.now(), 1)
		if delay := res.DelayFrom(l.now()); !res.OK() || delay > 0 {
			res.Cancel()
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(delay.Seconds()))))
			respond.Error(w, http.StatusTooManyRequests, "too many requests from this IP, try again later")
			return
		}
		next.ServeHTTP(w, r)
	})
}
