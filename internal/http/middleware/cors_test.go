package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func serveCORS(origins []string, method, origin, preflightMethod string) (*httptest.ResponseRecorder, bool) {
	called := false
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	})
	req := httptest.NewRequest(method, "/v1/chat/messages", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	if preflightMethod != "" {
		req.Header.Set("Access-Control-Request-Method", preflightMethod)
	}
	rec := httptest.NewRecorder()
	CORS(ChatCORSPolicy(origins))(handler).ServeHTTP(rec, req)
	return rec, called
}

func TestCORSOrigins(t *testing.T) {
	cases := []struct {
		name    string
		origins []string
		origin  string
		allowed bool
	}{
		{"exact", []string{"https://app.example.com"}, "https://app.example.com", true},
		{"trailing slash in config", []string{"https://app.example.com/"}, "https://app.example.com", true},
		{"unknown", []string{"https://app.example.com"}, "https://evil.example", false},
		{"any", []string{"*"}, "https://random.example", true},
		{"subdomain wildcard", []string{"https://*.realty.example"}, "https://east.realty.example", true},
		{"wildcard needs a label", []string{"https://*.realty.example"}, "https://realty.example", false},
		{"wildcard checks scheme", []string{"https://*.realty.example"}, "http://east.realty.example", false},
		{"wildcard is a suffix match", []string{"https://*.realty.example"}, "https://realty.example.evil.io", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, called := serveCORS(tc.origins, http.MethodPost, tc.origin, "")
			assert.True(t, called, "simple requests always reach the handler")
			assert.Equal(t, http.StatusOK, rec.Code)
			if tc.allowed {
				assert.Equal(t, tc.origin, rec.Header().Get("Access-Control-Allow-Origin"))
				assert.Equal(t, "X-Request-Id, Retry-After", rec.Header().Get("Access-Control-Expose-Headers"))
			} else {
				assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
			}
			assert.Equal(t, "Origin", rec.Header().Get("Vary"))
		})
	}
}

func TestCORSPreflight(t *testing.T) {
	rec, called := serveCORS([]string{"https://app.example.com"}, http.MethodOptions, "https://app.example.com", http.MethodPost)
	assert.False(t, called)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "GET, POST, OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "Authorization, Content-Type, X-Request-Id", rec.Header().Get("Access-Control-Allow-Headers"))
	assert.Equal(t, "600", rec.Header().Get("Access-Control-Max-Age"))
}

func TestCORSPreflightRejected(t *testing.T) {
	rec, called := serveCORS([]string{"https://app.example.com"}, http.MethodOptions, "https://evil.example", http.MethodPost)
	assert.False(t, called)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	rec, called = serveCORS([]string{"https://app.example.com"}, http.MethodOptions, "https://app.example.com", http.MethodDelete)
	assert.False(t, called)
	assert.Equal(t, http.StatusForbidden, rec.Code, "the chat API has no DELETE endpoints")
}

func TestCORSWithoutOriginPassesThrough(t *testing.T) {
	rec, called := serveCORS([]string{"https://app.example.com"}, http.MethodGet, "", "")
	assert.True(t, called)
	assert.Empty(t, rec.Header().Get("Vary"))
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
