// ABOUTME: HTTP middleware guarding the admin surface with bearer trust tokens,
// ABOUTME: and the bearer extraction helper shared with the connect path.

package auth

import (
	"net/http"
	"strings"

	"github.com/conclave-mesh/conclave-gateway/internal/trust"
)

// BearerToken extracts a bearer token from an Authorization header value.
// The second return is an error message, empty on success.
func BearerToken(authHeader string) (string, string) {
	if authHeader == "" {
		return "", "missing authorization header"
	}
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", "invalid authorization header format"
	}
	token := strings.TrimPrefix(authHeader, "Bearer ")
	if token == "" {
		return "", "empty token"
	}
	return token, ""
}

// Middleware validates bearer trust tokens and attaches the claims to the
// request context. minLevel additionally gates on the token's trust claim.
func Middleware(verifier TokenVerifier, minLevel trust.Level) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, errMsg := BearerToken(r.Header.Get("Authorization"))
			if errMsg != "" {
				writeAuthError(w, errMsg)
				return
			}

			claims, err := verifier.Verify(token)
			if err != nil {
				writeAuthError(w, "invalid token")
				return
			}

			if !claims.Trust.AtLeast(minLevel) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				_, _ = w.Write([]byte(`{"error":"insufficient trust level"}`))
				return
			}

			ctx := WithAuth(r.Context(), &AuthContext{
				Identity: claims.Identity,
				Trust:    claims.Trust,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeAuthError(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"` + msg + `"}`))
}
