package middleware

import (
	"net/http"
	"strings"

	"github.com/platinummonkey/plugin-portal/pkg/apperrors"
	"github.com/platinummonkey/plugin-portal/pkg/auth"
	"github.com/platinummonkey/plugin-portal/pkg/contextkeys"
	"github.com/platinummonkey/plugin-portal/pkg/httputil"
	"github.com/platinummonkey/plugin-portal/pkg/observability"
)

// Authenticator resolves bearer tokens to principals through the session manager
type Authenticator struct {
	sessions *auth.SessionManager
}

// NewAuthenticator creates a new authenticator
func NewAuthenticator(sessions *auth.SessionManager) *Authenticator {
	return &Authenticator{sessions: sessions}
}

// Require rejects requests without a valid access token
func (a *Authenticator) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := BearerToken(r)
		if !ok {
			httputil.WriteAppError(w, apperrors.Unauthenticated())
			return
		}

		principal, err := a.sessions.Authenticate(r.Context(), token)
		if err != nil {
			if !apperrors.IsUnauthenticated(err) {
				observability.FromContext(r.Context()).WithError(err).Error("Session lookup failed")
			}
			httputil.WriteAppError(w, err)
			return
		}

		next.ServeHTTP(w, withPrincipal(r, principal, token))
	})
}

// Optional attaches a principal when a valid token is present and otherwise
// serves the request anonymously
func (a *Authenticator) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := BearerToken(r)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		principal, err := a.sessions.Authenticate(r.Context(), token)
		if err != nil {
			if !apperrors.IsUnauthenticated(err) {
				observability.FromContext(r.Context()).WithError(err).Warn("Session lookup failed, serving anonymously")
			}
			next.ServeHTTP(w, r)
			return
		}

		next.ServeHTTP(w, withPrincipal(r, principal, token))
	})
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header.
// The scheme is matched case-insensitively.
func BearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}

	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", false
	}
	return token, true
}

func withPrincipal(r *http.Request, principal *auth.Principal, token string) *http.Request {
	ctx := auth.WithPrincipal(r.Context(), principal)
	ctx = contextkeys.WithAccessToken(ctx, token)
	observability.AddRequestField(ctx, "username", principal.Username)
	observability.AddRequestField(ctx, "role", string(principal.Role))
	return r.WithContext(ctx)
}
