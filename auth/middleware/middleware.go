// Package middleware is the request gate in front of protected routes:
// every request must carry a verifiable bearer access token before any
// handler logic runs.
package middleware

import (
	"context"
	"net/http"
	"strings"
)

// TokenVerifier resolves a bearer access token to a user id.
type TokenVerifier interface {
	VerifyAccess(token string) (string, error)
}

type userIDContextKey struct{}

// UserIDFromContext returns the authenticated user id injected by Guard.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDContextKey{}).(string)
	return id, ok
}

// Guard fails closed: a missing or blank Authorization header is 401, a
// header that is present but does not verify is 403. On success the user id
// lands in the request context for downstream per-user filtering.
func Guard(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			userID, err := verifier.VerifyAccess(token)
			if err != nil {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}

			ctx := context.WithValue(r.Context(), userIDContextKey{}, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}
	return token, true
}
