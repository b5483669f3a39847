package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanAccessTenant(t *testing.T) {
	member := Context{UserID: "u-1", ProjectID: "tenant-a", Roles: []string{"member"}, Authenticated: true}
	admin := Context{UserID: "u-2", ProjectID: "ops", Roles: []string{RoleAdmin}, Authenticated: true}
	userOnly := Context{UserID: "u-3", Authenticated: true}

	tests := []struct {
		name            string
		ctx             Context
		tenant          string
		requireIdentity bool
		want            Decision
	}{
		{"anonymous allowed", Context{}, "tenant-a", false, Allow},
		{"anonymous rejected", Context{}, "tenant-a", true, DenyUnauthenticated},
		{"own tenant", member, "tenant-a", true, Allow},
		{"other tenant", member, "tenant-b", false, DenyTenant},
		{"admin anywhere", admin, "tenant-b", true, Allow},
		{"unscoped user", userOnly, "tenant-a", false, DenyTenant},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanAccessTenant(tt.ctx, tt.tenant, tt.requireIdentity))
		})
	}
}
