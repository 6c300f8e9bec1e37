package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"
)

// newFrozenLimiter returns a limiter whose clock never advances
func newFrozenLimiter(cfg RateLimitConfig) (*RateLimiter, *time.Time) {
	rl := NewRateLimiter(cfg)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	return rl, &now
}

// ============================================================================
// NewRateLimiter Tests (Configuration)
// ============================================================================

func TestNewRateLimiter_DefaultConfig(t *testing.T) {
	t.Parallel()
	rl := NewRateLimiter(RateLimitConfig{})
	defer rl.Stop()

	if rl.rate != 100 {
		t.Errorf("expected default rate 100, got %d", rl.rate)
	}
	if rl.burst != 120 {
		t.Errorf("expected bucket size 120, got %d", rl.burst)
	}
	if rl.idle != 2*time.Minute {
		t.Errorf("expected idle timeout 2m, got %v", rl.idle)
	}
}

func TestNewRateLimiter_NegativeBurst_MeansNone(t *testing.T) {
	t.Parallel()
	rl := NewRateLimiter(RateLimitConfig{Rate: 5, Burst: -1})
	defer rl.Stop()

	if rl.burst != 5 {
		t.Errorf("expected bucket size 5, got %d", rl.burst)
	}
}

// ============================================================================
// Allow() Tests
// ============================================================================

func TestAllow_FirstRequest_ReportsRemaining(t *testing.T) {
	t.Parallel()
	rl, _ := newFrozenLimiter(RateLimitConfig{Rate: 10, Window: time.Minute, Burst: 5})
	defer rl.Stop()

	allowed, remaining, _ := rl.Allow("user:123")

	if !allowed {
		t.Error("first request should be allowed")
	}
	if remaining != 14 {
		t.Errorf("expected remaining 14, got %d", remaining)
	}
}

func TestAllow_ExceedsLimit_Denies(t *testing.T) {
	t.Parallel()
	rl, _ := newFrozenLimiter(RateLimitConfig{Rate: 5, Window: time.Minute, Burst: 1})
	defer rl.Stop()

	for i := 0; i < 6; i++ {
		if allowed, _, _ := rl.Allow("user:123"); !allowed {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}

	allowed, remaining, wait := rl.Allow("user:123")
	if allowed {
		t.Error("7th request should be denied")
	}
	if remaining != 0 {
		t.Errorf("expected remaining 0, got %d", remaining)
	}
	if wait != 12*time.Second {
		t.Errorf("expected wait 12s, got %v", wait)
	}
}

func TestAllow_DeniedRequests_DoNotConsumeTokens(t *testing.T) {
	t.Parallel()
	rl, now := newFrozenLimiter(RateLimitConfig{Rate: 1, Window: time.Second, Burst: -1})
	defer rl.Stop()

	rl.Allow("k")
	for i := 0; i < 5; i++ {
		rl.Allow("k")
	}

	*now = now.Add(time.Second)
	if allowed, _, _ := rl.Allow("k"); !allowed {
		t.Error("request after refill should be allowed")
	}
}

func TestAllow_DifferentKeys_SeparateBuckets(t *testing.T) {
	t.Parallel()
	rl, _ := newFrozenLimiter(RateLimitConfig{Rate: 1, Window: time.Minute, Burst: -1})
	defer rl.Stop()

	if allowed, _, _ := rl.Allow("a"); !allowed {
		t.Error("a should be allowed")
	}
	if allowed, _, _ := rl.Allow("a"); allowed {
		t.Error("second a should be denied")
	}
	if allowed, _, _ := rl.Allow("b"); !allowed {
		t.Error("b has its own bucket")
	}
}

func TestAllow_Refills_OverTime(t *testing.T) {
	t.Parallel()
	rl, now := newFrozenLimiter(RateLimitConfig{Rate: 60, Window: time.Minute, Burst: -1})
	defer rl.Stop()

	for i := 0; i < 60; i++ {
		rl.Allow("user:1")
	}
	if allowed, _, _ := rl.Allow("user:1"); allowed {
		t.Fatal("bucket should be empty")
	}

	*now = now.Add(3 * time.Second)
	for i := 0; i < 3; i++ {
		if allowed, _, _ := rl.Allow("user:1"); !allowed {
			t.Errorf("refilled request %d should be allowed", i+1)
		}
	}
	if allowed, _, _ := rl.Allow("user:1"); allowed {
		t.Error("only three tokens should have refilled")
	}
}

func TestAllow_ConcurrentAccess_ThreadSafe(t *testing.T) {
	t.Parallel()
	rl, _ := newFrozenLimiter(RateLimitConfig{Rate: 50, Window: time.Minute, Burst: -1})
	defer rl.Stop()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		granted int
	)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if allowed, _, _ := rl.Allow("shared"); allowed {
				mu.Lock()
				granted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if granted != 50 {
		t.Errorf("expected exactly 50 granted, got %d", granted)
	}
}

// ============================================================================
// Cleanup Tests
// ============================================================================

func TestCleanupIdle_DropsOnlyStaleBuckets(t *testing.T) {
	t.Parallel()
	rl, now := newFrozenLimiter(RateLimitConfig{Rate: 10, Window: time.Minute})
	defer rl.Stop()

	rl.Allow("stale")
	*now = now.Add(3 * time.Minute)
	rl.Allow("fresh")

	rl.cleanupIdle()

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if _, ok := rl.limiters["stale"]; ok {
		t.Error("stale bucket should be removed")
	}
	if _, ok := rl.limiters["fresh"]; !ok {
		t.Error("fresh bucket should be kept")
	}
}

func TestStop_IsIdempotent(t *testing.T) {
	t.Parallel()
	rl := NewRateLimiter(RateLimitConfig{})
	rl.Stop()
	rl.Stop()
}

// ============================================================================
// RateLimit Middleware Tests
// ============================================================================

func TestRateLimitMiddleware_AllowedRequest_SetsHeaders(t *testing.T) {
	t.Parallel()
	rl := NewRateLimiter(RateLimitConfig{Rate: 100, Window: time.Minute, Burst: 20})
	defer rl.Stop()

	handler := &captureHandler{}
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.RemoteAddr = "192.168.1.1:12345"
	rr := httptest.NewRecorder()

	RateLimit(rl)(handler).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rr.Code)
	}
	if rr.Header().Get("X-RateLimit-Limit") != "100" {
		t.Errorf("expected X-RateLimit-Limit '100', got %q", rr.Header().Get("X-RateLimit-Limit"))
	}
	if rr.Header().Get("X-RateLimit-Remaining") == "" {
		t.Error("expected X-RateLimit-Remaining header")
	}
}

func TestRateLimitMiddleware_DeniedRequest_Returns429(t *testing.T) {
	t.Parallel()
	rl, _ := newFrozenLimiter(RateLimitConfig{Rate: 2, Window: time.Minute, Burst: 1})
	defer rl.Stop()

	handler := &captureHandler{}
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.RemoteAddr = "192.168.1.1:12345"
		RateLimit(rl)(handler).ServeHTTP(httptest.NewRecorder(), req)
	}

	handler.called = false
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.RemoteAddr = "192.168.1.1:12345"
	rr := httptest.NewRecorder()
	RateLimit(rl)(handler).ServeHTTP(rr, req)

	if rr.Code != http.StatusTooManyRequests {
		t.Errorf("expected status 429, got %d", rr.Code)
	}
	if handler.called {
		t.Error("handler should not have been called")
	}
	retryAfter, err := strconv.Atoi(rr.Header().Get("Retry-After"))
	if err != nil || retryAfter < 1 {
		t.Errorf("expected positive Retry-After, got %q", rr.Header().Get("Retry-After"))
	}
}

func TestRateLimitMiddleware_UsesUserID_WhenAuthenticated(t *testing.T) {
	t.Parallel()
	rl, _ := newFrozenLimiter(RateLimitConfig{Rate: 1, Window: time.Minute, Burst: -1})
	defer rl.Stop()

	send := func(userID, addr string) int {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.RemoteAddr = addr
		if userID != "" {
			req = req.WithContext(context.WithValue(req.Context(), UserIDKey, userID))
		}
		rr := httptest.NewRecorder()
		RateLimit(rl)(&captureHandler{}).ServeHTTP(rr, req)
		return rr.Code
	}

	if code := send("user:1", "10.0.0.1:1"); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	// Same user from another address shares the bucket
	if code := send("user:1", "10.0.0.2:1"); code != http.StatusTooManyRequests {
		t.Errorf("expected 429 for same user, got %d", code)
	}
	// Anonymous request from the first address has its own bucket
	if code := send("", "10.0.0.1:1"); code != http.StatusOK {
		t.Errorf("expected 200 for anonymous request, got %d", code)
	}
}

// ============================================================================
// LimitByIP Tests
// ============================================================================

func TestLimitByIP_RejectsAfterLimit(t *testing.T) {
	t.Parallel()
	mw := LimitByIP(2, time.Minute)
	handler := &captureHandler{}

	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
		req.RemoteAddr = "203.0.113.9:5555"
		last = httptest.NewRecorder()
		mw(handler).ServeHTTP(last, req)
	}

	if last.Code != http.StatusTooManyRequests {
		t.Errorf("expected status 429, got %d", last.Code)
	}
	if ct := last.Header().Get("Content-Type"); ct != "application/problem+json" {
		t.Errorf("expected problem+json body, got %q", ct)
	}
}
