// Package metadata extracts client IP, request ID, and a normalized device
// description from each request. The device string ends up on audit entries
// so reviewers can see which workstation or tablet performed an action.
package metadata

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/mssola/useragent"

	"screenflow/pkg/requestcontext"
)

// ClientMetadata populates the context with client IP, a correlation
// request ID (honoring X-Request-ID when the caller supplies one), and the
// parsed device description. Apply early in the chain.
func ClientMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		ctx = requestcontext.WithRequestID(ctx, requestID)
		ctx = requestcontext.WithClientIP(ctx, clientIPFromRequest(r))
		ctx = requestcontext.WithDevice(ctx, deviceFromUserAgent(r.Header.Get("User-Agent")))

		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// deviceFromUserAgent normalizes a raw User-Agent into "Browser/OS" form.
// Unparseable agents fall back to the raw string so nothing is lost.
func deviceFromUserAgent(raw string) string {
	if raw == "" {
		return ""
	}
	ua := useragent.New(raw)
	name, _ := ua.Browser()
	os := ua.OSInfo().Name
	if name == "" && os == "" {
		return raw
	}
	switch {
	case name == "":
		return os
	case os == "":
		return name
	}
	return name + "/" + os
}

// clientIPFromRequest extracts the real client IP, handling proxies and
// load balancers.
func clientIPFromRequest(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		// first entry is the original client
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	host := r.RemoteAddr
	if idx := strings.LastIndex(host, ":"); idx != -1 {
		host = host[:idx]
	}
	return host
}
