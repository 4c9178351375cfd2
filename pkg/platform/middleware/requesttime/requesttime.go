// Package requesttime stamps each request with a single "now". All
// operations within one request observe the same timestamp, which keeps
// audit entries, lock expiry checks, and domain timestamps consistent.
package requesttime

import (
	"net/http"
	"time"

	"screenflow/pkg/requestcontext"
)

// Middleware captures the current time at the start of the request and
// stores it in the context.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
