package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/wolfman30/realty-ai-platform/internal/tenancy"
)

func TestRateLimitPerAgent(t *testing.T) {
	limiter := NewRateLimiter(0.001, 2)
	handler := RateLimit(limiter)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func(agentID string) int {
		req := httptest.NewRequest(http.MethodPost, "/v1/chat/messages", nil)
		req = req.WithContext(tenancy.WithIdentity(req.Context(), tenancy.Identity{AgentID: agentID}))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	for i := 0; i < 2; i++ {
		if code := send("agent-a"); code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, code)
		}
	}
	if code := send("agent-a"); code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after burst, got %d", code)
	}
	if code := send("agent-b"); code != http.StatusOK {
		t.Fatalf("other agents keep their own budget, got %d", code)
	}
}

func TestRateLimitAnonymousByIP(t *testing.T) {
	limiter := NewRateLimiter(0.001, 1)
	handler := RateLimit(limiter)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Real-Ip", "10.0.0.1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
}

func TestRateLimiterEvict(t *testing.T) {
	limiter := NewRateLimiter(1, 1)
	limiter.Allow("agent:a")
	limiter.Evict(time.Now().Add(time.Minute))
	if len(limiter.buckets) != 0 {
		t.Fatalf("expected buckets to be evicted, got %d", len(limiter.buckets))
	}
}
