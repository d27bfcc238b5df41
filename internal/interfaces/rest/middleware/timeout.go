package middleware

import (
	"context"
	"net/http"
	"time"
)

// Timeout bounds every request's context. Handlers surface the expired
// context through the error mapper, so a submission stuck on a full queue
// answers 504 rather than hanging.
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
