package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/jwtauth/v5"
)

const userHeader = "X-User-ID"

type ctxKey struct{}

func withUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, userID)
}

// UserIDFromContext returns the acting user set by the identity middleware.
func UserIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

// TokenIdentity takes the acting user from the "sub" claim of the token
// verified by jwtauth.Verifier.
func TokenIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, _, err := jwtauth.FromContext(r.Context())
		if err != nil {
			Unauthorized(w, err.Error())
			return
		}
		if token == nil || token.Subject() == "" {
			Unauthorized(w, "token has no subject")
			return
		}
		next.ServeHTTP(w, r.WithContext(withUserID(r.Context(), token.Subject())))
	})
}

// HeaderIdentity trusts the X-User-ID header. Only for local use.
func HeaderIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(r.Header.Get(userHeader))
		if userID == "" {
			Unauthorized(w, userHeader+" header is required")
			return
		}
		next.ServeHTTP(w, r.WithContext(withUserID(r.Context(), userID)))
	})
}
