package api

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/plugin-portal/pkg/audit"
	"github.com/platinummonkey/plugin-portal/pkg/auth"
	"github.com/platinummonkey/plugin-portal/pkg/httputil"
	"github.com/platinummonkey/plugin-portal/pkg/middleware"
	"github.com/platinummonkey/plugin-portal/pkg/observability"
	"github.com/platinummonkey/plugin-portal/pkg/packages"
	"github.com/platinummonkey/plugin-portal/pkg/registry"
	"github.com/platinummonkey/plugin-portal/pkg/users"
)

// BasePath prefixes every API route
const BasePath = "/portal/api"

// Config wires the API server to its services
type Config struct {
	Registry *registry.Service
	Users    *users.Service
	Audit    audit.Logger
	Signer   *packages.Signer
	// LoginLimiter throttles login and refresh per client IP. Nil disables throttling.
	LoginLimiter middleware.Limiter
}

// Server represents our API server
type Server struct {
	router *mux.Router

	authHandlers   *AuthHandlers
	pluginHandlers *PluginHandlers
	adminHandlers  *AdminHandlers
	keyHandlers    *KeyHandlers
}

// NewServer creates a new API server
func NewServer(cfg Config) (*Server, error) {
	if cfg.Registry == nil {
		return nil, fmt.Errorf("registry service is required")
	}
	if cfg.Users == nil {
		return nil, fmt.Errorf("users service is required")
	}
	if cfg.Audit == nil {
		return nil, fmt.Errorf("audit logger is required")
	}
	if cfg.Signer == nil {
		return nil, fmt.Errorf("package signer is required")
	}

	authn := middleware.NewAuthenticator(cfg.Users.Sessions())
	s := &Server{
		router:         mux.NewRouter(),
		authHandlers:   NewAuthHandlers(cfg.Users, authn, cfg.LoginLimiter),
		pluginHandlers: NewPluginHandlers(cfg.Registry, authn),
		adminHandlers:  NewAdminHandlers(cfg.Registry, cfg.Users, cfg.Audit, authn),
		keyHandlers:    NewKeyHandlers(cfg.Signer),
	}
	s.setupRoutes()
	return s, nil
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes() {
	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteErrorMessage(w, http.StatusNotFound, "Not found")
	})
	s.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteErrorMessage(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	api := s.router.PathPrefix(BasePath).Subrouter()
	api.Use(recordRouteFields)

	s.RegisterRoutes(api, s.authHandlers)
	s.RegisterRoutes(api, s.keyHandlers)
	s.RegisterRoutes(api, s.adminHandlers)
	s.RegisterRoutes(api, s.pluginHandlers)
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Router returns the underlying router
func (s *Server) Router() *mux.Router {
	return s.router
}

// RouteRegistrar is an interface for types that can register routes
type RouteRegistrar interface {
	RegisterRoutes(router *mux.Router)
}

// RegisterRoutes registers routes from a RouteRegistrar
func (s *Server) RegisterRoutes(router *mux.Router, registrar RouteRegistrar) {
	registrar.RegisterRoutes(router)
}

// recordRouteFields adds the addressed plugin or account to the access log line
func recordRouteFields(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)
		if id := vars["id"]; id != "" {
			observability.AddRequestField(r.Context(), "plugin_id", id)
		}
		if username := vars["username"]; username != "" {
			observability.AddRequestField(r.Context(), "target_user", username)
		}
		next.ServeHTTP(w, r)
	})
}

// principal returns the caller attached by the authenticator
func principal(r *http.Request) *auth.Principal {
	return auth.PrincipalFromContext(r.Context())
}
