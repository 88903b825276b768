package auth

import (
	"context"
	"net/http"
	"strings"
)

type claimsKey struct{}

// ErrorWriter renders an authentication failure. The server package
// supplies its response envelope here so the middleware stays free of
// rendering concerns.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, status int, err error)

// RequireToken guards a route group: it accepts the token from either
// the Authorization header (with optional Bearer prefix) or the
// x-access-token header, validates it, and stores the claims in the
// request context.
func RequireToken(secret []byte, writeError ErrorWriter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := r.Header.Get("x-access-token")
			if token == "" {
				token = r.Header.Get("Authorization")
			}
			if token == "" {
				writeError(w, r, http.StatusUnauthorized, ErrNoToken)
				return
			}
			token = strings.TrimPrefix(token, "Bearer ")

			claims, err := ValidateToken(secret, token)
			if err != nil {
				writeError(w, r, http.StatusUnauthorized, err)
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// FromContext returns the claims stored by RequireToken.
func FromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(claimsKey{}).(*Claims)
	return claims, ok
}
