package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/plugin-portal/pkg/apperrors"
	"github.com/platinummonkey/plugin-portal/pkg/audit"
	"github.com/platinummonkey/plugin-portal/pkg/auth"
	"github.com/platinummonkey/plugin-portal/pkg/httputil"
	"github.com/platinummonkey/plugin-portal/pkg/middleware"
	"github.com/platinummonkey/plugin-portal/pkg/observability"
	"github.com/platinummonkey/plugin-portal/pkg/registry"
	"github.com/platinummonkey/plugin-portal/pkg/users"
)

// AdminHandlers serves admin plugin management, account management and the audit log
type AdminHandlers struct {
	registry *registry.Service
	users    *users.Service
	audit    audit.Logger
	authn    *middleware.Authenticator
}

// NewAdminHandlers creates admin handlers
func NewAdminHandlers(registryService *registry.Service, usersService *users.Service, auditLogger audit.Logger, authn *middleware.Authenticator) *AdminHandlers {
	return &AdminHandlers{
		registry: registryService,
		users:    usersService,
		audit:    auditLogger,
		authn:    authn,
	}
}

// RegisterRoutes registers admin routes
func (h *AdminHandlers) RegisterRoutes(router *mux.Router) {
	admin := router.PathPrefix("/admin").Subrouter()
	admin.Use(h.authn.Require)

	// Plugins
	admin.HandleFunc("/plugins", h.listPlugins).Methods("GET")
	admin.HandleFunc("/plugins", h.createPlugin).Methods("POST")
	admin.HandleFunc("/plugins/{id}/versions", h.addVersion).Methods("POST")
	admin.HandleFunc("/plugins/{id}", h.updatePlugin).Methods("PUT")
	admin.HandleFunc("/plugins/{id}", h.deletePlugin).Methods("DELETE")

	// Users
	admin.HandleFunc("/users", h.listUsers).Methods("GET")
	admin.HandleFunc("/users", h.createUser).Methods("POST")
	admin.HandleFunc("/users/{username}", h.updateUser).Methods("PATCH")
	admin.HandleFunc("/users/{username}", h.deleteUser).Methods("DELETE")

	// Audit
	admin.HandleFunc("/audit-logs", h.listAuditLogs).Methods("GET")
}

// requireAdmin gates admin plugin routes on perm plus the admin role
func requireAdmin(r *http.Request, perm auth.Permission) error {
	p := principal(r)
	if err := auth.RequirePermission(p, perm); err != nil {
		return err
	}
	return auth.RequireRole(p, auth.RoleAdmin)
}

// listPlugins handles GET /admin/plugins
func (h *AdminHandlers) listPlugins(w http.ResponseWriter, r *http.Request) {
	plugins, err := h.registry.ListAll(r.Context(), principal(r))
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteSuccess(w, plugins)
}

// createPlugin handles POST /admin/plugins
func (h *AdminHandlers) createPlugin(w http.ResponseWriter, r *http.Request) {
	var req registry.CreateRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	rec, err := h.registry.CreatePublished(r.Context(), principal(r), req)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteCreated(w, metadataFromRecord(rec))
}

// addVersion handles POST /admin/plugins/{id}/versions
func (h *AdminHandlers) addVersion(w http.ResponseWriter, r *http.Request) {
	if err := requireAdmin(r, auth.PermPluginsWrite); err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	var req registry.VersionRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	md, err := h.registry.AddVersion(r.Context(), principal(r), httputil.PathVar(r, "id"), req)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteCreated(w, md)
}

// updatePlugin handles PUT /admin/plugins/{id}
func (h *AdminHandlers) updatePlugin(w http.ResponseWriter, r *http.Request) {
	if err := requireAdmin(r, auth.PermPluginsWrite); err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	var req registry.UpdateRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	rec, err := h.registry.UpdatePlugin(r.Context(), principal(r), httputil.PathVar(r, "id"), req)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteSuccess(w, metadataFromRecord(rec))
}

// deletePlugin handles DELETE /admin/plugins/{id}?reason=
func (h *AdminHandlers) deletePlugin(w http.ResponseWriter, r *http.Request) {
	if err := requireAdmin(r, auth.PermPluginsWrite); err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	reason := r.URL.Query().Get("reason")
	if err := h.registry.DeletePlugin(r.Context(), principal(r), httputil.PathVar(r, "id"), reason); err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

// listUsers handles GET /admin/users
func (h *AdminHandlers) listUsers(w http.ResponseWriter, r *http.Request) {
	list, err := h.users.ListUsers(r.Context(), principal(r))
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteSuccess(w, list)
}

// createUser handles POST /admin/users
func (h *AdminHandlers) createUser(w http.ResponseWriter, r *http.Request) {
	var req users.CreateRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	info, err := h.users.CreateUser(r.Context(), principal(r), req)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteCreated(w, info)
}

// updateUser handles PATCH /admin/users/{username}?reason=
func (h *AdminHandlers) updateUser(w http.ResponseWriter, r *http.Request) {
	var req users.UpdateRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	info, err := h.users.UpdateUser(r.Context(), principal(r), httputil.PathVar(r, "username"), req, r.URL.Query().Get("reason"))
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteSuccess(w, info)
}

// deleteUser handles DELETE /admin/users/{username}?reason=
func (h *AdminHandlers) deleteUser(w http.ResponseWriter, r *http.Request) {
	if err := h.users.DeleteUser(r.Context(), principal(r), httputil.PathVar(r, "username"), r.URL.Query().Get("reason")); err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

// listAuditLogs handles GET /admin/audit-logs
func (h *AdminHandlers) listAuditLogs(w http.ResponseWriter, r *http.Request) {
	if err := requireAdmin(r, auth.PermUsersManage); err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	filter, err := parseAuditFilter(r)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	format, err := audit.ParseExportFormat(httputil.ParseQueryString(r, "format", string(audit.FormatJSON)))
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	entries, err := h.audit.List(r.Context(), filter)
	if err != nil {
		observability.FromContext(r.Context()).WithError(err).Error("Failed to list audit log")
		httputil.WriteAppError(w, apperrors.Internal("failed to list audit log", err))
		return
	}
	body, err := audit.Export(entries, format)
	if err != nil {
		httputil.WriteAppError(w, apperrors.Internal("failed to export audit log", err))
		return
	}
	httputil.WriteBytes(w, format.ContentType(), body)
}

func parseAuditFilter(r *http.Request) (audit.Filter, error) {
	q := r.URL.Query()
	filter := audit.Filter{
		Actor:  q.Get("actor"),
		Action: audit.Action(q.Get("action")),
		Target: q.Get("target"),
	}

	limit, err := httputil.ParseQueryInt(r, "limit", 0)
	if err != nil {
		return filter, err
	}
	if limit < 0 {
		return filter, apperrors.Validation("limit must not be negative")
	}
	filter.Limit = limit

	for _, bound := range []struct {
		key  string
		dest **time.Time
	}{
		{"since", &filter.Since},
		{"until", &filter.Until},
	} {
		raw := q.Get(bound.key)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, apperrors.Validation("%s must be an RFC 3339 timestamp", bound.key)
		}
		*bound.dest = &t
	}
	return filter, nil
}
