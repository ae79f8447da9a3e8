package auth

import (
	"context"
	"fmt"
	"strings"

	"github.com/platinummonkey/plugin-portal/pkg/contextkeys"
)

// Role is the coarse-grained role assigned to every account
type Role string

const (
	RoleUser      Role = "user"      // Can browse and download published plugins
	RoleDeveloper Role = "developer" // Can author plugins and submit them for review
	RoleAdmin     Role = "admin"     // Moderates plugins and manages accounts
)

// Roles lists every valid role in ascending privilege order.
var Roles = []Role{RoleUser, RoleDeveloper, RoleAdmin}

// ParseRole validates a role name.
func ParseRole(s string) (Role, error) {
	for _, r := range Roles {
		if string(r) == s {
			return r, nil
		}
	}
	return "", fmt.Errorf("invalid role %q", s)
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	_, err := ParseRole(string(r))
	return err == nil
}

// Resource represents a resource type guarded by permissions
type Resource string

const (
	ResourcePlugins Resource = "plugins"
	ResourceUsers   Resource = "users"
)

// Action represents an action that can be performed on a resource
type Action string

const (
	ActionRead   Action = "read"
	ActionWrite  Action = "write"
	ActionManage Action = "manage"
)

// Permission represents a specific permission (resource + action)
type Permission struct {
	Resource Resource `json:"resource"`
	Action   Action   `json:"action"`
}

// String returns a string representation of the permission
func (p Permission) String() string {
	return string(p.Resource) + ":" + string(p.Action)
}

// ParsePermission parses a "resource:action" tag.
func ParsePermission(s string) (Permission, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Permission{}, fmt.Errorf("invalid permission %q", s)
	}
	return Permission{Resource: Resource(parts[0]), Action: Action(parts[1])}, nil
}

var (
	PermPluginsRead  = Permission{Resource: ResourcePlugins, Action: ActionRead}
	PermPluginsWrite = Permission{Resource: ResourcePlugins, Action: ActionWrite}
	PermUsersManage  = Permission{Resource: ResourceUsers, Action: ActionManage}
)

// Principal is the authenticated identity attached to a request.
// Role is a snapshot taken when the session was issued.
type Principal struct {
	Username string `json:"username"`
	Role     Role   `json:"role"`
}

// IsAdmin reports whether the principal holds the admin role
func (p *Principal) IsAdmin() bool {
	return p != nil && p.Role == RoleAdmin
}

// WithPrincipal stores the principal in the context
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return contextkeys.WithAuth(ctx, p)
}

// PrincipalFromContext returns the principal stored by WithPrincipal, or nil
func PrincipalFromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(contextkeys.AuthKey).(*Principal)
	return p
}
