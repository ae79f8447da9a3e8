package auth

import (
	"github.com/platinummonkey/plugin-portal/pkg/apperrors"
)

var rolePermissions = map[Role][]Permission{
	RoleUser:      {PermPluginsRead},
	RoleDeveloper: {PermPluginsRead, PermPluginsWrite},
	RoleAdmin:     {PermPluginsRead, PermPluginsWrite, PermUsersManage},
}

// PermissionsFor returns the permissions granted to role.
func PermissionsFor(role Role) []Permission {
	perms := rolePermissions[role]
	out := make([]Permission, len(perms))
	copy(out, perms)
	return out
}

// Allows reports whether role holds perm.
func Allows(role Role, perm Permission) bool {
	for _, p := range rolePermissions[role] {
		if p == perm {
			return true
		}
	}
	return false
}

// RequireAuthenticated fails when no principal is present.
func RequireAuthenticated(p *Principal) error {
	if p == nil || p.Username == "" {
		return apperrors.Unauthenticated()
	}
	return nil
}

// RequirePermission checks that the principal's role holds perm.
func RequirePermission(p *Principal, perm Permission) error {
	if err := RequireAuthenticated(p); err != nil {
		return err
	}
	if !Allows(p.Role, perm) {
		return apperrors.Forbidden()
	}
	return nil
}

// RequireRole checks that the principal holds one of roles.
func RequireRole(p *Principal, roles ...Role) error {
	if err := RequireAuthenticated(p); err != nil {
		return err
	}
	for _, r := range roles {
		if p.Role == r {
			return nil
		}
	}
	return apperrors.Forbidden()
}

// RequireOwnerOrAdmin passes for admins and for the principal named owner.
func RequireOwnerOrAdmin(p *Principal, owner string) error {
	if err := RequireAuthenticated(p); err != nil {
		return err
	}
	if p.IsAdmin() || p.Username == owner {
		return nil
	}
	return apperrors.Forbidden()
}
