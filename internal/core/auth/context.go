// Package auth reads the caller identity an upstream identity service
// attaches to each request and decides which tenants it may act in.
// This is part of the Functional Core - all functions are pure with no I/O.
package auth

import (
	"context"
	"net/http"
	"strings"
)

// =============================================================================
// Context Key
// =============================================================================

type contextKey string

const authContextKey contextKey = "auth"

// =============================================================================
// Types
// =============================================================================

// Context is the identity of the caller of one request.
type Context struct {
	// UserID is the identity service's user id (X-User-Id).
	UserID string

	// ProjectID is the tenant the token was scoped to (X-Project-Id, or the
	// older X-Tenant-Id).
	ProjectID string

	// Roles are the lower-cased role names granted on ProjectID.
	Roles []string

	Authenticated bool
}

// HasRole reports whether the caller holds role.
func (c Context) HasRole(role string) bool {
	role = strings.ToLower(role)
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// =============================================================================
// Header Constants
// =============================================================================

const (
	HeaderUserID         = "X-User-Id"
	HeaderProjectID      = "X-Project-Id"
	HeaderTenantID       = "X-Tenant-Id"
	HeaderRoles          = "X-Roles"
	HeaderIdentityStatus = "X-Identity-Status"
)

// RoleAdmin may act in every tenant.
const RoleAdmin = "admin"

// =============================================================================
// Context Extraction
// =============================================================================

// ExtractFromRequest extracts the caller identity from request headers.
func ExtractFromRequest(r *http.Request) Context {
	return ExtractFromHeaders(r.Header)
}

// HeaderGetter is an interface for getting header values.
// http.Header satisfies it.
type HeaderGetter interface {
	Get(key string) string
}

// ExtractFromHeaders builds a Context from identity headers. A request the
// identity service marked Invalid, or one with neither a user nor a project,
// is unauthenticated.
func ExtractFromHeaders(headers HeaderGetter) Context {
	if strings.EqualFold(headers.Get(HeaderIdentityStatus), "Invalid") {
		return Context{}
	}

	project := strings.TrimSpace(headers.Get(HeaderProjectID))
	if project == "" {
		project = strings.TrimSpace(headers.Get(HeaderTenantID))
	}
	user := strings.TrimSpace(headers.Get(HeaderUserID))
	if user == "" && project == "" {
		return Context{}
	}

	return Context{
		UserID:        user,
		ProjectID:     project,
		Roles:         parseRoles(headers.Get(HeaderRoles)),
		Authenticated: true,
	}
}

func parseRoles(raw string) []string {
	var roles []string
	for _, r := range strings.Split(raw, ",") {
		r = strings.ToLower(strings.TrimSpace(r))
		if r != "" {
			roles = append(roles, r)
		}
	}
	return roles
}

// =============================================================================
// Context Storage
// =============================================================================

// WithContext stores the auth context in the request context.
func WithContext(ctx context.Context, authCtx Context) context.Context {
	return context.WithValue(ctx, authContextKey, authCtx)
}

// FromContext retrieves the auth context from the request context.
// If no auth context is found, returns an unauthenticated context.
func FromContext(ctx context.Context) Context {
	if authCtx, ok := ctx.Value(authContextKey).(Context); ok {
		return authCtx
	}
	return Context{Authenticated: false}
}

// =============================================================================
// Helper Types for Testing
// =============================================================================

// MapHeaderGetter wraps a map to implement HeaderGetter interface.
type MapHeaderGetter map[string]string

func (m MapHeaderGetter) Get(key string) string {
	return m[key]
}
