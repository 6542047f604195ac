package httpx

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRateLimiter_Window(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	now := time.Date(2026, 2, 3, 12, 0, 0, 0, time.UTC)

	if !rl.allow("10.0.0.1", now) {
		t.Fatal("first request should be allowed")
	}
	if !rl.allow("10.0.0.1", now.Add(time.Second)) {
		t.Fatal("second request should be allowed")
	}
	if rl.allow("10.0.0.1", now.Add(2*time.Second)) {
		t.Fatal("third request should be rejected")
	}
	if !rl.allow("10.0.0.2", now.Add(2*time.Second)) {
		t.Fatal("other clients should not share the window")
	}
	if !rl.allow("10.0.0.1", now.Add(2*time.Minute)) {
		t.Fatal("request after window reset should be allowed")
	}
}

func TestRateLimiter_Middleware(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	h := rl.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "http://example.com", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.7")

	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, req)
	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rw.Code)
	}

	rw = httptest.NewRecorder()
	h.ServeHTTP(rw, req)
	if rw.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rw.Code)
	}
}
