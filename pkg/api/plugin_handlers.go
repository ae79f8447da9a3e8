package api

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/plugin-portal/pkg/apperrors"
	"github.com/platinummonkey/plugin-portal/pkg/httputil"
	"github.com/platinummonkey/plugin-portal/pkg/middleware"
	"github.com/platinummonkey/plugin-portal/pkg/registry"
)

// PluginHandlers serves public discovery, self-service management and the
// publication workflow
type PluginHandlers struct {
	registry *registry.Service
	authn    *middleware.Authenticator
}

// NewPluginHandlers creates plugin handlers
func NewPluginHandlers(registryService *registry.Service, authn *middleware.Authenticator) *PluginHandlers {
	return &PluginHandlers{
		registry: registryService,
		authn:    authn,
	}
}

// RegisterRoutes registers plugin routes. Fixed segments are registered
// before {id} patterns so /plugins/mine is not read as a plugin id.
func (h *PluginHandlers) RegisterRoutes(router *mux.Router) {
	protected := func(fn http.HandlerFunc) http.Handler { return h.authn.Require(fn) }

	// Self-service management
	router.Handle("/plugins/mine", protected(h.listMine)).Methods("GET")
	router.Handle("/plugins", protected(h.createPlugin)).Methods("POST")
	router.Handle("/plugins/{id}/manage", protected(h.getManaged)).Methods("GET")
	router.Handle("/plugins/{id}", protected(h.updatePlugin)).Methods("PUT")
	router.Handle("/plugins/{id}", protected(h.deletePlugin)).Methods("DELETE")
	router.Handle("/plugins/{id}/versions", protected(h.addVersion)).Methods("POST")

	// Workflow
	router.Handle("/plugins/{id}/{action:submit|approve|reject|publish|unpublish}", protected(h.transition)).Methods("POST")

	// Public discovery
	router.HandleFunc("/plugins", h.listPublic).Methods("GET")
	router.HandleFunc("/plugins/{id}", h.getPublic).Methods("GET")
	router.HandleFunc("/plugins/{id}/versions", h.listVersions).Methods("GET")
	router.HandleFunc("/plugins/{id}/package", h.download).Methods("GET")
}

// listPublic handles GET /plugins
func (h *PluginHandlers) listPublic(w http.ResponseWriter, r *http.Request) {
	query := httputil.FirstQuery(r, "query", "q")

	plugins, err := h.registry.ListPublic(r.Context(), query)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteSuccess(w, plugins)
}

// getPublic handles GET /plugins/{id}
func (h *PluginHandlers) getPublic(w http.ResponseWriter, r *http.Request) {
	md, err := h.registry.GetPublic(r.Context(), httputil.PathVar(r, "id"))
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteSuccess(w, md)
}

// listVersions handles GET /plugins/{id}/versions
func (h *PluginHandlers) listVersions(w http.ResponseWriter, r *http.Request) {
	versions, err := h.registry.ListVersions(r.Context(), httputil.PathVar(r, "id"))
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteSuccess(w, versions)
}

// download handles GET /plugins/{id}/package?version=
func (h *PluginHandlers) download(w http.ResponseWriter, r *http.Request) {
	id := httputil.PathVar(r, "id")
	version := r.URL.Query().Get("version")
	if version == "" {
		httputil.WriteAppError(w, apperrors.Validation("version query parameter is required"))
		return
	}

	data, err := h.registry.Download(r.Context(), id, version)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", id+"-"+version+".pkg"))
	httputil.WriteBytes(w, "application/octet-stream", data)
}

// createPlugin handles POST /plugins
func (h *PluginHandlers) createPlugin(w http.ResponseWriter, r *http.Request) {
	var req registry.CreateRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	rec, err := h.registry.CreateDraft(r.Context(), principal(r), req)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteCreated(w, rec)
}

// listMine handles GET /plugins/mine
func (h *PluginHandlers) listMine(w http.ResponseWriter, r *http.Request) {
	records, err := h.registry.ListOwned(r.Context(), principal(r))
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteSuccess(w, records)
}

// getManaged handles GET /plugins/{id}/manage
func (h *PluginHandlers) getManaged(w http.ResponseWriter, r *http.Request) {
	rec, err := h.registry.GetManaged(r.Context(), principal(r), httputil.PathVar(r, "id"))
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteSuccess(w, rec)
}

// updatePlugin handles PUT /plugins/{id}
func (h *PluginHandlers) updatePlugin(w http.ResponseWriter, r *http.Request) {
	var req registry.UpdateRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	rec, err := h.registry.UpdatePlugin(r.Context(), principal(r), httputil.PathVar(r, "id"), req)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteSuccess(w, rec)
}

// deletePlugin handles DELETE /plugins/{id}?reason=
func (h *PluginHandlers) deletePlugin(w http.ResponseWriter, r *http.Request) {
	reason := r.URL.Query().Get("reason")
	if err := h.registry.DeletePlugin(r.Context(), principal(r), httputil.PathVar(r, "id"), reason); err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

// addVersion handles POST /plugins/{id}/versions
func (h *PluginHandlers) addVersion(w http.ResponseWriter, r *http.Request) {
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

// transition handles POST /plugins/{id}/{action}?reason=
func (h *PluginHandlers) transition(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	t, err := registry.ParseTransition(vars["action"])
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	rec, err := h.registry.Transition(r.Context(), principal(r), vars["id"], t, r.URL.Query().Get("reason"))
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteSuccess(w, rec)
}
