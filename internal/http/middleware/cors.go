package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// CORSPolicy describes which browser origins may call the API.
//
// Origins may be exact ("https://app.example.com"), a subdomain wildcard
// ("https://*.example.com") or "*" for any origin.
type CORSPolicy struct {
	Origins        []string
	Methods        []string
	Headers        []string
	ExposedHeaders []string
	MaxAge         time.Duration
}

// ChatCORSPolicy is the policy for the agent chat API: bearer-authenticated
// JSON over GET and POST, with request ids and rate-limit hints readable by
// the browser.
func ChatCORSPolicy(origins []string) CORSPolicy {
	return CORSPolicy{
		Origins:        origins,
		Methods:        []string{http.MethodGet, http.MethodPost},
		Headers:        []string{"Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id", "Retry-After"},
		MaxAge:         10 * time.Minute,
	}
}

type originMatcher struct {
	any      bool
	exact    map[string]struct{}
	suffixes []originSuffix
}

type originSuffix struct {
	scheme string
	suffix string
}

func newOriginMatcher(origins []string) originMatcher {
	m := originMatcher{exact: map[string]struct{}{}}
	for _, origin := range origins {
		origin = strings.TrimRight(strings.TrimSpace(origin), "/")
		switch {
		case origin == "":
		case origin == "*":
			m.any = true
		case strings.Contains(origin, "://*."):
			scheme, host, _ := strings.Cut(origin, "://*")
			m.suffixes = append(m.suffixes, originSuffix{scheme: scheme + "://", suffix: host})
		default:
			m.exact[origin] = struct{}{}
		}
	}
	return m
}

func (m originMatcher) allows(origin string) bool {
	if origin == "" {
		return false
	}
	if m.any {
		return true
	}
	if _, ok := m.exact[origin]; ok {
		return true
	}
	for _, s := range m.suffixes {
		host, ok := strings.CutPrefix(origin, s.scheme)
		// the wildcard needs at least one label: "example.com" is not "*.example.com"
		if ok && strings.HasSuffix(host, s.suffix) && len(host) > len(s.suffix) && !strings.Contains(host, "/") {
			return true
		}
	}
	return false
}

// CORS applies policy. Preflights from unknown origins, or asking for a method
// the policy does not allow, are answered 403 without reaching next.
func CORS(policy CORSPolicy) func(http.Handler) http.Handler {
	matcher := newOriginMatcher(policy.Origins)
	allowedMethods := make(map[string]bool, len(policy.Methods))
	for _, m := range policy.Methods {
		allowedMethods[strings.ToUpper(m)] = true
	}
	methods := strings.Join(append(append([]string{}, policy.Methods...), http.MethodOptions), ", ")
	headers := strings.Join(policy.Headers, ", ")
	exposed := strings.Join(policy.ExposedHeaders, ", ")
	maxAge := strconv.Itoa(int(policy.MaxAge / time.Second))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := strings.TrimSpace(r.Header.Get("Origin"))
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Add("Vary", "Origin")
			allowed := matcher.allows(origin)
			requested := r.Header.Get("Access-Control-Request-Method")

			if r.Method == http.MethodOptions && requested != "" {
				if !allowed || !allowedMethods[strings.ToUpper(requested)] {
					http.Error(w, "cors preflight rejected", http.StatusForbidden)
					return
				}
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", methods)
				w.Header().Set("Access-Control-Allow-Headers", headers)
				w.Header().Set("Access-Control-Max-Age", maxAge)
				w.WriteHeader(http.StatusNoContent)
				return
			}

			if allowed {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				if exposed != "" {
					w.Header().Set("Access-Control-Expose-Headers", exposed)
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
