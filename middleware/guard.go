package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/MrEthical07/credstore/jwt"
)

// AccessVerifier is satisfied by *credstore.Engine.
type AccessVerifier interface {
	VerifyAccessToken(token string) (jwt.Claims, bool)
}

type claimsContextKey struct{}

// ClaimsFromContext returns the access-token claims stored by RequireAccess.
func ClaimsFromContext(ctx context.Context) (jwt.Claims, bool) {
	claims, ok := ctx.Value(claimsContextKey{}).(jwt.Claims)
	return claims, ok
}

// UserIDFromContext returns the subject of the verified access token.
func UserIDFromContext(ctx context.Context) (string, bool) {
	claims, ok := ClaimsFromContext(ctx)
	if !ok {
		return "", false
	}
	sub := claims.Subject()
	return sub, sub != ""
}

// RequireAccess rejects requests without a valid "Bearer <access token>"
// Authorization header with 401 and otherwise stores the token claims in the
// request context.
func RequireAccess(v AccessVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if v == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			token, ok := BearerToken(r.Header.Get("Authorization"))
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			claims, ok := v.VerifyAccessToken(token)
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), claimsContextKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}
