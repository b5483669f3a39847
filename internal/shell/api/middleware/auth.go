// Package middleware provides HTTP middleware for the compute API.
package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/artpar/novagate/internal/core/auth"
	corecompute "github.com/artpar/novagate/internal/core/compute"
	"github.com/artpar/novagate/internal/shell/logging"
)

// TenantParam is the route parameter naming the tenant.
const TenantParam = "tenant_id"

// =============================================================================
// Auth Configuration
// =============================================================================

// AuthConfig holds configuration for the auth middleware.
type AuthConfig struct {
	// RequireIdentity rejects requests that carry no identity headers.
	// When false the gateway trusts the path tenant.
	RequireIdentity bool

	Logger *slog.Logger
}

// =============================================================================
// Auth Middleware
// =============================================================================

// AuthMiddleware reads the caller identity set by the upstream identity
// service and checks it against the tenant in the request path.
type AuthMiddleware struct {
	config AuthConfig
}

// NewAuthMiddleware creates a new auth middleware with the given config.
func NewAuthMiddleware(cfg AuthConfig) *AuthMiddleware {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &AuthMiddleware{config: cfg}
}

// Handler must be mounted below a route that declares {tenant_id}.
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tenant := chi.URLParam(r, TenantParam)
		identity := auth.ExtractFromRequest(r)

		ctx := logging.WithContext(r.Context(), slog.String("tenant_id", tenant))
		if identity.UserID != "" {
			ctx = logging.WithContext(ctx, slog.String("user_id", identity.UserID))
		}
		r = r.WithContext(auth.WithContext(ctx, identity))

		switch auth.CanAccessTenant(identity, tenant, m.config.RequireIdentity) {
		case auth.DenyUnauthenticated:
			m.config.Logger.WarnContext(r.Context(), "request without identity",
				"remote_addr", r.RemoteAddr,
				"path", r.URL.Path,
			)
			WriteFault(w, corecompute.NewUnauthorizedError())
			return
		case auth.DenyTenant:
			m.config.Logger.WarnContext(r.Context(), "tenant mismatch",
				"project_id", identity.ProjectID,
				"path", r.URL.Path,
			)
			WriteFault(w, corecompute.NewForbiddenError())
			return
		}

		next.ServeHTTP(w, r)
	})
}

// =============================================================================
// Fault Response
// =============================================================================

// WriteFault writes the standardized error envelope for err.
func WriteFault(w http.ResponseWriter, err error) {
	status, body := corecompute.Envelope(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
