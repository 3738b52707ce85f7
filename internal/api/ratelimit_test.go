package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// clocked builds a limiter on a manual clock so refill is deterministic.
func clocked(rate float64, burst int) (*RateLimiter, *time.Time) {
	rl := NewRateLimiter(rate, burst)
	now := time.Date(2026, 6, 3, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	return rl, &now
}

func TestAllowSpendsBurstThenRejects(t *testing.T) {
	rl, _ := clocked(1, 3)

	for i := 0; i < 3; i++ {
		if !rl.Allow("10.0.0.1") {
			t.Fatalf("request %d rejected within burst", i+1)
		}
	}
	if rl.Allow("10.0.0.1") {
		t.Fatal("request allowed past the burst with no refill")
	}
	if after := rl.RetryAfter("10.0.0.1"); after < 1 {
		t.Fatalf("RetryAfter = %d, want >= 1", after)
	}

	// Other clients keep their own budget.
	if !rl.Allow("10.0.0.2") {
		t.Fatal("fresh client rejected")
	}
}

func TestBucketRefillsAtConfiguredRate(t *testing.T) {
	rl, now := clocked(2, 4)

	for i := 0; i < 4; i++ {
		rl.Allow("10.0.0.1")
	}
	if rl.Allow("10.0.0.1") {
		t.Fatal("allowed with an empty bucket")
	}

	// Half a second at 2/s refills one token, and only one.
	*now = now.Add(500 * time.Millisecond)
	if !rl.Allow("10.0.0.1") {
		t.Fatal("token not refilled after 500ms at 2/s")
	}
	if rl.Allow("10.0.0.1") {
		t.Fatal("second token appeared from a single refill interval")
	}

	// A long idle stretch tops out at the burst, not beyond.
	*now = now.Add(time.Hour)
	for i := 0; i < 4; i++ {
		if !rl.Allow("10.0.0.1") {
			t.Fatalf("request %d rejected after refill to burst", i+1)
		}
	}
	if rl.Allow("10.0.0.1") {
		t.Fatal("idle bucket refilled past the burst cap")
	}
}

func TestMiddlewareReturns429WithRetryAfter(t *testing.T) {
	rl, _ := clocked(1, 1)
	handler := RateLimitMiddleware(rl, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/command", nil)
	req.RemoteAddr = "192.0.2.7:54321"

	rec := httptest.NewRecorder()
	handler(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("first request status %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatal("429 without a Retry-After header")
	}
}

func TestClientIPPrefersForwardedFor(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.7:54321"
	if got := clientIP(req); got != "192.0.2.7" {
		t.Errorf("clientIP = %q, want port stripped", got)
	}

	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	if got := clientIP(req); got != "203.0.113.9" {
		t.Errorf("clientIP with XFF = %q, want first hop", got)
	}
}
