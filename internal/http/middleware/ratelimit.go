package middleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"
)

const (
	sweepInterval = 5 * time.Minute
	idleCutoff    = 10 * time.Minute
)

// RateLimiter is a per-client token bucket. The gateway uses it to keep a
// single caller from flooding VibeProxy with completions.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	rate    float64 // tokens per second
	burst   int
	now     func() time.Time
}

type bucket struct {
	tokens float64
	seen   time.Time
}

func NewRateLimiter(rate float64, burst int) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		buckets: make(map[string]*bucket),
		rate:    rate,
		burst:   burst,
		now:     time.Now,
	}
}

// Allow takes one token from key's bucket.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	b, ok := rl.buckets[key]
	if !ok {
		b = &bucket{tokens: float64(rl.burst), seen: now}
		rl.buckets[key] = b
	}

	b.tokens = min(float64(rl.burst), b.tokens+now.Sub(b.seen).Seconds()*rl.rate)
	b.seen = now

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// Sweep drops buckets idle since before cutoff and returns how many remain.
func (rl *RateLimiter) Sweep(cutoff time.Time) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for key, b := range rl.buckets {
		if b.seen.Before(cutoff) {
			delete(rl.buckets, key)
		}
	}
	return len(rl.buckets)
}

// Run sweeps idle buckets until ctx is done.
func (rl *RateLimiter) Run(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.Sweep(rl.now().Add(-idleCutoff))
		}
	}
}

// RetryAfter is how long an empty bucket takes to earn one token, rounded up
// to whole seconds. A limiter that never refills reports the idle cutoff,
// after which its bucket is swept and starts full again.
func (rl *RateLimiter) RetryAfter() time.Duration {
	if rl.rate <= 0 {
		return idleCutoff
	}
	return time.Duration(math.Ceil(1/rl.rate)) * time.Second
}

// RateLimit rejects requests beyond the limiter's budget with 429. Clients
// are keyed by IP without the port; chi's RealIP middleware, when mounted
// earlier, has already replaced RemoteAddr with the proxied client address.
func RateLimit(limiter *RateLimiter) func(http.Handler) http.Handler {
	retryAfter := strconv.Itoa(int(limiter.RetryAfter() / time.Second))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow(clientKey(r.RemoteAddr)) {
				w.Header().Set("Retry-After", retryAfter)
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientKey strips the port from addr. RealIP leaves a bare IP, which
// SplitHostPort rejects, so the raw value is used then.
func clientKey(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
