// Package contextkeys provides centralized context key definitions
//
// All context keys used across the portal are defined here.
//
// USAGE PATTERN:
//
//	import "github.com/platinummonkey/plugin-portal/pkg/contextkeys"
//	ctx = contextkeys.WithAuth(ctx, principal)
//	principal := ctx.Value(contextkeys.AuthKey).(*auth.Principal)
package contextkeys

import "context"

// Key is the type for context keys to prevent collisions
type Key string

const (
	// AuthKey contains *auth.Principal
	// Set by: middleware.Authenticator (pkg/middleware/auth.go)
	// Required by: All protected API endpoints
	AuthKey Key = "auth_principal"

	// AccessTokenKey contains the raw bearer token string
	// Set by: middleware.Authenticator
	// Used by: logout
	AccessTokenKey Key = "access_token"

	// RequestIDKey contains request ID string (UUID)
	// Set by: httputil.RequestIDMiddleware
	// Used by: Logger, error responses
	RequestIDKey Key = "request_id"

	// LoggerKey contains *observability.Logger
	// Set by: middleware.RequestLogger through observability.WithLogger
	// Used by: Handlers that need structured logging with request context
	LoggerKey Key = "logger"
)

// WithAuth adds the authenticated principal to the context
func WithAuth(ctx context.Context, principal interface{}) context.Context {
	return context.WithValue(ctx, AuthKey, principal)
}

// WithAccessToken adds the raw bearer token to the context
func WithAccessToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, AccessTokenKey, token)
}

// WithRequestID adds request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// WithLogger adds logger to the context
func WithLogger(ctx context.Context, logger interface{}) context.Context {
	return context.WithValue(ctx, LoggerKey, logger)
}

// GetAccessToken retrieves the bearer token from context
func GetAccessToken(ctx context.Context) string {
	if token, ok := ctx.Value(AccessTokenKey).(string); ok {
		return token
	}
	return ""
}

// GetRequestID retrieves request ID from context
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}
