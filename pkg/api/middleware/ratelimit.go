package middleware

import (
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter applies a token bucket per principal. Authenticated
// requests are keyed by user ID; everything else falls back to the
// client IP, which RealIP has already resolved into RemoteAddr.
type RateLimiter struct {
	limit rate.Limit
	burst int

	mu        sync.Mutex
	visitors  map[string]*visitor
	lastPrune time.Time
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// PerHour builds a limiter allowing n events per hour with a burst of n.
func PerHour(n int) *RateLimiter {
	return newRateLimiter(rate.Every(time.Hour/time.Duration(n)), n)
}

// PerMinute builds a limiter allowing n events per minute with a burst
// of n.
func PerMinute(n int) *RateLimiter {
	return newRateLimiter(rate.Every(time.Minute/time.Duration(n)), n)
}

func newRateLimiter(limit rate.Limit, burst int) *RateLimiter {
	return &RateLimiter{
		limit:     limit,
		burst:     burst,
		visitors:  make(map[string]*visitor),
		lastPrune: time.Now(),
	}
}

// Allow reports whether the principal identified by key may proceed.
func (rl *RateLimiter) Allow(key string) bool {
	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.prune(now)

	v, ok := rl.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.visitors[key] = v
	}
	v.lastSeen = now
	return v.limiter.Allow()
}

// prune drops buckets idle for over an hour, at most every ten minutes.
// Caller holds the lock.
func (rl *RateLimiter) prune(now time.Time) {
	if now.Sub(rl.lastPrune) < 10*time.Minute {
		return
	}
	rl.lastPrune = now
	cutoff := now.Add(-time.Hour)
	for key, v := range rl.visitors {
		if v.lastSeen.Before(cutoff) {
			delete(rl.visitors, key)
		}
	}
}

// Middleware rejects over-limit requests with a 429 problem response.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := "ip:" + r.RemoteAddr
		if principal, ok := PrincipalFromContext(r.Context()); ok {
			key = "user:" + principal.UserID
		}

		if !rl.Allow(key) {
			writeProblem(w, http.StatusTooManyRequests, "Too Many Requests",
				"rate limit exceeded, retry later")
			return
		}
		next.ServeHTTP(w, r)
	})
}
