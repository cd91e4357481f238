package api

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
)

type ownerCtxKey struct{}

// ownerFromContext returns the authenticated owner id set by requireAuth.
func ownerFromContext(ctx context.Context) string {
	owner, _ := ctx.Value(ownerCtxKey{}).(string)
	return owner
}

// requireAuth resolves the bearer token to an owner id. Token issuance
// lives elsewhere in the platform; this server only maps presented tokens
// onto opaque owner identities. No configured tokens means every request
// is rejected rather than silently open.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			writeUnauthorized(w)
			return
		}

		owner := ""
		for candidate, o := range s.authTokens {
			if subtle.ConstantTimeCompare([]byte(candidate), []byte(token)) == 1 {
				owner = o
			}
		}
		if owner == "" {
			writeUnauthorized(w)
			return
		}

		ctx := context.WithValue(r.Context(), ownerCtxKey{}, owner)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) (string, bool) {
	const prefix = "Bearer "
	h := r.Header.Get("Authorization")
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(h[len(prefix):])
	return token, token != ""
}
