package auth

// Decision is the outcome of a tenant access check.
type Decision int

const (
	Allow Decision = iota
	// DenyUnauthenticated means identity is required and none was given.
	DenyUnauthenticated
	// DenyTenant means the caller is scoped to a different tenant.
	DenyTenant
)

// CanAccessTenant decides whether the caller may act in tenantID, the tenant
// named by the request path. Without identity headers the request is allowed
// unless requireIdentity is set. Admins may act in any tenant.
func CanAccessTenant(ctx Context, tenantID string, requireIdentity bool) Decision {
	if !ctx.Authenticated {
		if requireIdentity {
			return DenyUnauthenticated
		}
		return Allow
	}
	if ctx.HasRole(RoleAdmin) {
		return Allow
	}
	if ctx.ProjectID != "" && ctx.ProjectID == tenantID {
		return Allow
	}
	return DenyTenant
}
