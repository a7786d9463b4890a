package ratelimit

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimiter_AllowsRequests(t *testing.T) {
	cfg := Config{
		Enabled:        true,
		RequestsPerMin: 60, // 1 per second
		BurstSize:      5,
		CleanupMinutes: 1,
	}

	rl := New(cfg)
	defer rl.Stop()

	handler := rl.Middleware()(okHandler())

	// First few requests should succeed (within burst)
	for i := 0; i < 5; i++ {
		req := httptest.NewRequest("GET", "/api/v1/verify", nil)
		req.RemoteAddr = "192.168.1.100:12345"
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusOK, rr.Code, "Request %d should succeed", i+1)
	}
}

func TestRateLimiter_BlocksExcessRequests(t *testing.T) {
	cfg := Config{
		Enabled:        true,
		RequestsPerMin: 60,
		BurstSize:      2, // Small burst to hit limit quickly
		CleanupMinutes: 1,
	}

	rl := New(cfg)
	defer rl.Stop()

	handler := rl.Middleware()(okHandler())

	// Exhaust the burst
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest("GET", "/api/v1/verify", nil)
		req.RemoteAddr = "192.168.1.100:12345"
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
	}

	// Next request should be rate limited
	req := httptest.NewRequest("GET", "/api/v1/verify", nil)
	req.RemoteAddr = "192.168.1.100:12345"
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusTooManyRequests, rr.Code)

	var response map[string]any
	err := json.Unmarshal(rr.Body.Bytes(), &response)
	require.NoError(t, err)
	errObj, ok := response["error"].(map[string]any)
	require.True(t, ok, "error should be an object")
	assert.Equal(t, "RATE_LIMIT_EXCEEDED", errObj["code"])
}

func TestRateLimiter_SeparateLimitsPerIP(t *testing.T) {
	cfg := Config{
		Enabled:        true,
		RequestsPerMin: 60,
		BurstSize:      2,
		CleanupMinutes: 1,
	}

	rl := New(cfg)
	defer rl.Stop()

	handler := rl.Middleware()(okHandler())

	// Exhaust burst for IP 1
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest("GET", "/api/v1/verify", nil)
		req.RemoteAddr = "192.168.1.100:12345"
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
	}

	// IP 1 should be limited
	req := httptest.NewRequest("GET", "/api/v1/verify", nil)
	req.RemoteAddr = "192.168.1.100:12345"
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)

	// IP 2 should still have quota
	req2 := httptest.NewRequest("GET", "/api/v1/verify", nil)
	req2.RemoteAddr = "192.168.1.101:12345"
	rr2 := httptest.NewRecorder()
	handler.ServeHTTP(rr2, req2)
	assert.Equal(t, http.StatusOK, rr2.Code)
}

func TestRateLimiter_BypassesHealthChecks(t *testing.T) {
	cfg := Config{
		Enabled:        true,
		RequestsPerMin: 60,
		BurstSize:      1, // Very restrictive
		CleanupMinutes: 1,
	}

	rl := New(cfg)
	defer rl.Stop()

	handler := rl.Middleware()(okHandler())

	for _, path := range []string{"/health", "/healthz", "/readyz"} {
		for i := 0; i < 10; i++ {
			req := httptest.NewRequest("GET", path, nil)
			req.RemoteAddr = "192.168.1.100:12345"
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)
			assert.Equal(t, http.StatusOK, rr.Code, "Health check %s request %d should not be rate limited", path, i+1)
		}
	}
}

func TestRateLimiter_Disabled(t *testing.T) {
	cfg := Config{
		Enabled:        false,
		RequestsPerMin: 1, // Would be very restrictive if enabled
		BurstSize:      1,
		CleanupMinutes: 1,
	}

	// Use the Middleware() factory function which checks the Enabled flag
	handler := Middleware(cfg)(okHandler())

	for i := 0; i < 100; i++ {
		req := httptest.NewRequest("GET", "/api/v1/verify", nil)
		req.RemoteAddr = "192.168.1.100:12345"
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusOK, rr.Code)
	}
}

func TestRateLimiter_CleanupStale(t *testing.T) {
	cfg := Config{
		Enabled:        true,
		RequestsPerMin: 60,
		BurstSize:      5,
		CleanupMinutes: 1, // Will be used for stale threshold
	}

	rl := New(cfg)
	defer rl.Stop()

	rl.getLimiter("test-ip")

	rl.mu.Lock()
	_, exists := rl.limiters["test-ip"]
	rl.mu.Unlock()
	assert.True(t, exists, "IP should exist after getLimiter")

	// Simulate staleness by manipulating lastSeen
	rl.mu.Lock()
	if entry, ok := rl.limiters["test-ip"]; ok {
		entry.lastSeen = time.Now().Add(-2 * time.Minute)
	}
	rl.mu.Unlock()

	rl.removeStale()

	rl.mu.Lock()
	_, exists = rl.limiters["test-ip"]
	rl.mu.Unlock()
	assert.False(t, exists, "Stale IP should be cleaned up")
}
