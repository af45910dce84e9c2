package api

import (
	"net/http"
	"strings"

	"github.com/chatwire/wabridge/internal/api/respond"
)

// RequireToken guards a handler with a static dashboard token, accepted
// either as a bearer header or a token query parameter. An empty
// configured token disables the check.
func RequireToken(token string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}
		header := r.Header.Get("Authorization")
		if strings.HasPrefix(header, "Bearer ") && strings.TrimPrefix(header, "Bearer ") == token {
			next.ServeHTTP(w, r)
			return
		}
		if r.URL.Query().Get("token") == token {
			next.ServeHTTP(w, r)
			return
		}
		respond.WriteUnauthorized(w, "unauthorized")
	})
}
