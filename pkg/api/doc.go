// Package api exposes the plugin portal over HTTP under /portal/api.
//
// # Route Groups
//
// Authentication:
//
//	POST /auth/login      username + password -> token pair
//	POST /auth/refresh    refresh_token -> rotated token pair
//	POST /auth/logout     revoke the calling session
//	GET  /account/me      identity of the calling session
//
// Public discovery (no token, published plugins only):
//
//	GET /plugins?query=             latest metadata, optional name/id filter
//	GET /plugins/{id}
//	GET /plugins/{id}/versions
//	GET /plugins/{id}/package?version=
//
// Self-service management (plugins:write, owner or admin):
//
//	POST   /plugins                 create a draft
//	GET    /plugins/mine
//	GET    /plugins/{id}/manage
//	PUT    /plugins/{id}
//	DELETE /plugins/{id}?reason=
//	POST   /plugins/{id}/versions
//	POST   /plugins/{id}/{submit|approve|reject|publish|unpublish}?reason=
//
// Administration (admin role):
//
//	/admin/plugins, /admin/users, /admin/audit-logs?format=json|ndjson|csv
//
// Package signatures are verified with the key served at GET /keys/signing.
//
// # Errors
//
// Every failure is a JSON body {"error": "..."} with a status derived from
// the apperrors kind: 401 for a missing or invalid session, 403 for missing
// permissions, 404 for unknown or hidden resources, 409 for duplicates and
// 400 for validation failures and invalid state transitions.
//
// # Usage
//
//	server, err := api.NewServer(api.Config{
//		Registry: registryService,
//		Users:    usersService,
//		Audit:    auditLogger,
//		Signer:   signer,
//	})
//	http.ListenAndServe(":8080", server)
package api
