package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// RateLimiter is an in-process sliding-window limiter keyed by an arbitrary
// string (client IP or user id). State is per-instance; multi-replica
// deployments get a per-replica budget.
type RateLimiter struct {
	limit  int
	window time.Duration

	mu       sync.Mutex
	visitors map[string][]time.Time
	sweepAt  time.Time
}

func NewRateLimiter(limit, windowSeconds int) *RateLimiter {
	if limit <= 0 {
		limit = 100
	}
	if windowSeconds <= 0 {
		windowSeconds = 60
	}
	w := time.Duration(windowSeconds) * time.Second
	return &RateLimiter{
		limit:    limit,
		window:   w,
		visitors: make(map[string][]time.Time),
		sweepAt:  time.Now().Add(w),
	}
}

// Allow records an attempt for key and reports whether it fits the window,
// plus the remaining budget and when the window resets.
func (rl *RateLimiter) Allow(key string) (bool, int, time.Time) {
	now := time.Now()
	cutoff := now.Add(-rl.window)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	if now.After(rl.sweepAt) {
		rl.sweep(cutoff)
		rl.sweepAt = now.Add(rl.window)
	}

	stamps := rl.visitors[key]
	kept := stamps[:0]
	for _, ts := range stamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}

	if len(kept) >= rl.limit {
		rl.visitors[key] = kept
		return false, 0, kept[0].Add(rl.window)
	}

	kept = append(kept, now)
	rl.visitors[key] = kept
	return true, rl.limit - len(kept), now.Add(rl.window)
}

// sweep drops keys with no activity inside the window. Caller holds mu.
func (rl *RateLimiter) sweep(cutoff time.Time) {
	for key, stamps := range rl.visitors {
		if len(stamps) == 0 || !stamps[len(stamps)-1].After(cutoff) {
			delete(rl.visitors, key)
		}
	}
}

func (rl *RateLimiter) respond(w http.ResponseWriter, allowed bool, remaining int, reset time.Time) bool {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))

	if !allowed {
		w.Header().Set("Retry-After", strconv.FormatInt(int64(time.Until(reset).Seconds())+1, 10))
		http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
		return false
	}
	return true
}

// RateLimit limits by client IP.
func RateLimit(limit, windowSeconds int) func(http.Handler) http.Handler {
	rl := NewRateLimiter(limit, windowSeconds)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allowed, remaining, reset := rl.Allow(clientIP(r))
			if !rl.respond(w, allowed, remaining, reset) {
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RateLimitByUser limits by authenticated user id, falling back to the
// client IP for anonymous requests.
func RateLimitByUser(limit, windowSeconds int) func(http.Handler) http.Handler {
	rl := NewRateLimiter(limit, windowSeconds)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := clientIP(r)
			if userID := GetUserID(r.Context()); userID != uuid.Nil {
				key = "user:" + userID.String()
			}

			allowed, remaining, reset := rl.Allow(key)
			if !rl.respond(w, allowed, remaining, reset) {
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP resolves the originating address, trusting proxy headers when
// present.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if i := strings.IndexByte(xff, ','); i >= 0 {
			return strings.TrimSpace(xff[:i])
		}
		return strings.TrimSpace(xff)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	if i := strings.LastIndexByte(r.RemoteAddr, ':'); i >= 0 {
		return r.RemoteAddr[:i]
	}
	return r.RemoteAddr
}
