// Package httptransport assembles the HTTP surface: middleware chain,
// feature routes, health and metrics endpoints, and the admin audit
// verification route.
package httptransport

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"screenflow/internal/audit"
	"screenflow/internal/screening/handler"
	"screenflow/pkg/platform/httputil"
	"screenflow/pkg/platform/middleware/admin"
	"screenflow/pkg/platform/middleware/auth"
	"screenflow/pkg/platform/middleware/metadata"
	"screenflow/pkg/platform/middleware/requesttime"
	"screenflow/pkg/platform/sentinel"
)

// ChainVerifier walks the global audit chain. Admin-only surface.
type ChainVerifier interface {
	VerifyChain(ctx context.Context) (audit.VerificationResult, error)
}

// HealthChecker reports one dependency's reachability.
type HealthChecker func(ctx context.Context) error

// Config carries everything the router needs.
type Config struct {
	Screening      handler.Service
	Verifier       ChainVerifier
	Logger         *slog.Logger
	JWTSigningKey  []byte
	AdminTokenHash string
	Health         map[string]HealthChecker
}

// NewRouter wires the full HTTP surface.
func NewRouter(cfg Config) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(30 * time.Second))
	r.Use(metadata.ClientMetadata)
	r.Use(requesttime.Middleware)

	r.Get("/healthz", handleHealth(cfg.Health))
	r.Handle("/metrics", promhttp.Handler())

	// session routes require an authenticated actor
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireActor(cfg.JWTSigningKey, logger))
		handler.New(cfg.Screening, logger).Register(r)
	})

	// chain verification walks every entry; admin token required
	r.Group(func(r chi.Router) {
		r.Use(admin.RequireAdminToken(cfg.AdminTokenHash, logger))
		r.Get("/audit/verify", handleVerifyChain(cfg.Verifier, logger))
	})

	return r
}

func handleVerifyChain(verifier ChainVerifier, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result, err := verifier.VerifyChain(r.Context())
		if err != nil {
			logger.ErrorContext(r.Context(), "chain verification failed", "error", err)
			httputil.WriteError(w, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, result)
	}
}

func handleHealth(checks map[string]HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		deps := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(ctx); err != nil {
				status = http.StatusServiceUnavailable
				// raw infra errors can carry connection details; only
				// the unavailability fact belongs on the wire
				if errors.Is(err, sentinel.ErrUnavailable) {
					deps[name] = sentinel.ErrUnavailable.Error()
				} else {
					deps[name] = err.Error()
				}
				continue
			}
			deps[name] = "ok"
		}
		httputil.WriteJSON(w, status, map[string]any{
			"status":       http.StatusText(status),
			"dependencies": deps,
		})
	}
}
