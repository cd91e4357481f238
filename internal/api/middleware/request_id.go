// Package middleware holds the canonical HTTP ingress middleware stack
// shared by every route group.
package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/vocalis-app/vocalis/internal/log"
)

// HeaderRequestID carries the correlation ID between client and server.
const HeaderRequestID = "X-Request-ID"

// RequestID tags every request with a correlation ID. A client-supplied ID
// is kept so mobile retries stay correlated across attempts.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get(HeaderRequestID)
		if reqID == "" {
			reqID = uuid.New().String()
		}
		w.Header().Set(HeaderRequestID, reqID)
		ctx := log.ContextWithRequestID(r.Context(), reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
