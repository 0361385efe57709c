// Package middleware provides HTTP middleware for the upload API:
// principal extraction, per-principal rate limiting, and chunk body
// binding.
package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/reelforge/reelforge/pkg/api/auth"
)

type contextKey string

const (
	principalContextKey contextKey = "principal"
	chunkContextKey     contextKey = "chunk"
)

// writeProblem writes a minimal RFC 7807 response. The middleware
// package keeps its own writer to stay independent of the handlers
// package.
func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"type":   "about:blank",
		"title":  title,
		"status": status,
		"detail": detail,
	})
}

// Authenticate extracts and verifies the bearer token, placing the
// principal in the request context. Requests without a valid token get
// a 401 problem response.
func Authenticate(verifier *auth.Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				writeProblem(w, http.StatusUnauthorized, "Unauthorized", "missing bearer token")
				return
			}

			principal, err := verifier.Verify(token)
			if err != nil {
				writeProblem(w, http.StatusUnauthorized, "Unauthorized", "invalid bearer token")
				return
			}

			ctx := context.WithValue(r.Context(), principalContextKey, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// PrincipalFromContext returns the authenticated principal placed by
// Authenticate.
func PrincipalFromContext(ctx context.Context) (*auth.Principal, bool) {
	principal, ok := ctx.Value(principalContextKey).(*auth.Principal)
	return principal, ok
}
