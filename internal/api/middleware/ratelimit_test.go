package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Mvmmv86/AutomationGlobal-Marketing-sub004/internal/api/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiterAllow(t *testing.T) {
	rl := middleware.NewRateLimiter(3, 60)

	t.Run("budget is consumed per key", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			ok, _, _ := rl.Allow("10.0.0.1")
			assert.True(t, ok)
		}

		ok, remaining, reset := rl.Allow("10.0.0.1")
		assert.False(t, ok)
		assert.Zero(t, remaining)
		assert.True(t, reset.After(time.Now()))
	})

	t.Run("keys are independent", func(t *testing.T) {
		ok, _, _ := rl.Allow("10.0.0.2")
		assert.True(t, ok)
	})
}

func TestRateLimitMiddleware(t *testing.T) {
	handler := middleware.RateLimit(2, 60)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	do := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = ip + ":4567"
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		return rr
	}

	rr := do("192.0.2.1")
	require.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "2", rr.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", rr.Header().Get("X-RateLimit-Remaining"))

	require.Equal(t, http.StatusNoContent, do("192.0.2.1").Code)

	rr = do("192.0.2.1")
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("Retry-After"))

	// A different client still has a fresh budget.
	assert.Equal(t, http.StatusNoContent, do("192.0.2.9").Code)
}

func TestClientIPPrecedence(t *testing.T) {
	handler := middleware.RateLimit(1, 60)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	// Two requests from the same forwarded client share one bucket even when
	// RemoteAddr differs.
	for i, want := range []int{http.StatusNoContent, http.StatusTooManyRequests} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "203.0.113." + string(rune('1'+i)) + ":80"
		req.Header.Set("X-Forwarded-For", "198.51.100.7, 10.0.0.1")
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		assert.Equal(t, want, rr.Code)
	}
}
