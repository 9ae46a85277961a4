package middleware

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/wolfman30/realty-ai-platform/internal/tenancy"
)

// AgentClaims are the claims the identity provider issues for CRM agents. The
// subject is the agent id.
type AgentClaims struct {
	Role     string `json:"role,omitempty"`
	Timezone string `json:"tz,omitempty"`
	jwt.RegisteredClaims
}

// AgentJWT enforces an HMAC-signed agent JWT and stores the caller's
// tenancy.Identity in the request context.
func AgentJWT(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				http.Error(w, "agent auth disabled", http.StatusUnauthorized)
				return
			}
			auth := r.Header.Get("Authorization")
			if auth == "" || !strings.HasPrefix(auth, "Bearer ") {
				http.Error(w, "missing authorization header", http.StatusUnauthorized)
				return
			}
			tokenString := strings.TrimPrefix(auth, "Bearer ")
			claims := AgentClaims{}
			token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(secret), nil
			}, jwt.WithExpirationRequired())
			if err != nil || !token.Valid {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			id := tenancy.Identity{
				AgentID:  strings.TrimSpace(claims.Subject),
				Role:     tenancy.ParseRole(claims.Role),
				Timezone: strings.TrimSpace(claims.Timezone),
			}
			if !id.Valid() {
				http.Error(w, "token has no subject", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(tenancy.WithIdentity(r.Context(), id)))
		})
	}
}
