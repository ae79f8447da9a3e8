package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/plugin-portal/pkg/apperrors"
	"github.com/platinummonkey/plugin-portal/pkg/contextkeys"
	"github.com/platinummonkey/plugin-portal/pkg/httputil"
	"github.com/platinummonkey/plugin-portal/pkg/middleware"
	"github.com/platinummonkey/plugin-portal/pkg/users"
)

// AuthHandlers handles login, token refresh and account requests
type AuthHandlers struct {
	users   *users.Service
	authn   *middleware.Authenticator
	limiter middleware.Limiter
}

// NewAuthHandlers creates a new auth handlers instance
func NewAuthHandlers(usersService *users.Service, authn *middleware.Authenticator, limiter middleware.Limiter) *AuthHandlers {
	return &AuthHandlers{
		users:   usersService,
		authn:   authn,
		limiter: limiter,
	}
}

// RegisterRoutes registers authentication routes
func (h *AuthHandlers) RegisterRoutes(router *mux.Router) {
	router.Handle("/auth/login", h.throttle("login", h.login)).Methods("POST")
	router.Handle("/auth/refresh", h.throttle("refresh", h.refresh)).Methods("POST")
	router.Handle("/auth/logout", h.authn.Require(http.HandlerFunc(h.logout))).Methods("POST")

	router.Handle("/account/me", h.authn.Require(http.HandlerFunc(h.me))).Methods("GET")
}

func (h *AuthHandlers) throttle(prefix string, fn http.HandlerFunc) http.Handler {
	if h.limiter == nil {
		return fn
	}
	return middleware.RateLimit(h.limiter, prefix)(fn)
}

// login handles POST /auth/login
func (h *AuthHandlers) login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Username == "" || req.Password == "" {
		httputil.WriteAppError(w, apperrors.Validation("username and password are required"))
		return
	}

	pair, err := h.users.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteSuccess(w, pair)
}

// refresh handles POST /auth/refresh
func (h *AuthHandlers) refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.RefreshToken == "" {
		httputil.WriteAppError(w, apperrors.Validation("refresh_token is required"))
		return
	}

	pair, err := h.users.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteSuccess(w, pair)
}

// logout handles POST /auth/logout
func (h *AuthHandlers) logout(w http.ResponseWriter, r *http.Request) {
	if err := h.users.Logout(r.Context(), contextkeys.GetAccessToken(r.Context())); err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

// me handles GET /account/me
func (h *AuthHandlers) me(w http.ResponseWriter, r *http.Request) {
	info, err := h.users.Me(principal(r))
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteSuccess(w, info)
}
