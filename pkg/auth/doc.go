// Package auth provides authentication and authorization for the plugin portal.
//
// # Overview
//
// The package has three parts that compose at the transport layer:
//
// Authorization policy: a fixed role to permission table plus owner-or-admin checks.
// Policy functions are pure and never touch storage.
//
//	if err := auth.RequirePermission(principal, auth.PermPluginsWrite); err != nil {
//		return err // apperrors.KindForbidden or KindUnauthenticated
//	}
//
// Credentials: bcrypt password hashing with constant-time comparison.
//
//	hash, err := auth.HashPassword("admin123")
//	ok := auth.CheckPassword(hash, "admin123")
//
// Sessions: opaque access and refresh tokens. Only their SHA256 hashes are stored.
// Access tokens expire; a refresh token can be exchanged exactly once for a new pair.
//
//	pair, err := sessions.Issue(ctx, auth.Principal{Username: "alice", Role: auth.RoleDeveloper})
//	principal, err := sessions.Authenticate(ctx, pair.AccessToken)
//
// Token format: ppt_<base64url(32 random bytes)> for access tokens and
// ppr_<base64url(32 random bytes)> for refresh tokens.
//
// # Related Packages
//
//   - pkg/users: Identity store and login flow built on this package
//   - pkg/middleware: Bearer token extraction for HTTP handlers
//   - pkg/storage/redisstore: Redis-backed SessionStore
package auth
