package api

import (
	"net/http"
	"sync"
	"time"
)

// rateLimiter is a per-client token bucket. Each client gets `limit` tokens
// refilled continuously over `window`; a request without a token is rejected
// with 429. Clients are keyed by API key when present, otherwise by remote
// IP (chi's RealIP middleware has already normalised RemoteAddr).
type rateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	limit   float64
	window  time.Duration
}

type bucket struct {
	tokens   float64
	lastSeen time.Time
}

func newRateLimiter(limit int, window time.Duration) *rateLimiter {
	return &rateLimiter{
		buckets: make(map[string]*bucket),
		limit:   float64(limit),
		window:  window,
	}
}

func (rl *rateLimiter) allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	b, ok := rl.buckets[key]
	if !ok {
		rl.buckets[key] = &bucket{tokens: rl.limit - 1, lastSeen: now}
		return true
	}

	refill := now.Sub(b.lastSeen).Seconds() / rl.window.Seconds() * rl.limit
	b.tokens += refill
	if b.tokens > rl.limit {
		b.tokens = rl.limit
	}
	b.lastSeen = now

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// middleware enforces the rate limit; a zero limit disables it.
func (rl *rateLimiter) middleware(next http.Handler) http.Handler {
	if rl.limit <= 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("X-API-Key")
		if key == "" {
			key = r.RemoteAddr
		}
		if !rl.allow(key) {
			tooManyRequests(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}
