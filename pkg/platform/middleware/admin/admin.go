// Package admin guards operator-only endpoints (audit chain verification)
// behind a shared token, checked against its bcrypt hash.
package admin

import (
	"log/slog"
	"net/http"

	dErrors "screenflow/pkg/domain-errors"
	"screenflow/pkg/platform/httputil"
	"screenflow/pkg/platform/secrets"
	"screenflow/pkg/requestcontext"
)

// RequireAdminToken rejects requests whose X-Admin-Token header does not
// match the configured token hash.
func RequireAdminToken(tokenHash string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := r.Header.Get("X-Admin-Token")
			if err := secrets.Verify(token, tokenHash); err != nil {
				ctx := r.Context()
				logger.WarnContext(ctx, "admin token mismatch",
					"request_id", requestcontext.RequestID(ctx),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "admin token required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
