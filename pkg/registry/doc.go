// Package registry owns plugin records and enforces the publication lifecycle.
//
// # Lifecycle
//
// A plugin moves through six states:
//
//	draft ──submit──▶ submitted ──approve──▶ approved ──publish──▶ published
//	  ▲                  │                                             │
//	  │               reject                                       unpublish
//	  │                  ▼                                             ▼
//	  └──── submit ── rejected                 unpublished ──submit──▶ submitted
//
// Developers create drafts; administrators may create plugins that are published
// immediately. Publishing requires at least one version.
//
// # Versions
//
// Versions are append-only. The latest version is the last one appended, never the
// highest version string. Each appended version gets package bytes from the package
// store together with their SHA256 checksum and an ed25519 signature.
//
// # Visibility
//
// Public reads only see published plugins that are not orphaned. Anything else is
// reported exactly like a missing id. Management reads require ownership or the
// admin role; orphaned plugins (owner account deleted) are admin-only.
package registry
