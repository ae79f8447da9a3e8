package api

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/plugin-portal/pkg/audit"
	"github.com/platinummonkey/plugin-portal/pkg/auth"
	"github.com/platinummonkey/plugin-portal/pkg/packages"
	"github.com/platinummonkey/plugin-portal/pkg/registry"
	"github.com/platinummonkey/plugin-portal/pkg/users"
)

func TestAdminHandlers_CreatePublished(t *testing.T) {
	f := newFixture(t)
	adminToken := f.login(t, "admin", "admin123")

	rec := f.do(t, http.MethodPost, "/admin/plugins", adminToken, registry.CreateRequest{ID: "x.y", Name: "XYZ", Compatibility: "c>=1"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	md := decode[registry.PublicMetadata](t, rec)
	assert.Equal(t, "1.0.0", md.Version)

	// Immediately public
	rec = f.do(t, http.MethodGet, "/plugins/x.y", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/plugins/x.y/package?version=1.0.0", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, md.SHA256, packages.Checksum(rec.Body.Bytes()))
}

func TestAdminHandlers_RequireAdmin(t *testing.T) {
	f := newFixture(t)
	devToken := f.login(t, "dev", "dev12345")
	f.createDraft(t, devToken, widget)

	tests := []struct {
		name   string
		method string
		path   string
		body   interface{}
	}{
		{"list plugins", http.MethodGet, "/admin/plugins", nil},
		{"create plugin", http.MethodPost, "/admin/plugins", registry.CreateRequest{ID: "dev.tool", Name: "Dev Tool", Compatibility: "obs>=1"}},
		{"add version", http.MethodPost, "/admin/plugins/acme.widget/versions", registry.VersionRequest{Version: "2.0.0"}},
		{"update plugin", http.MethodPut, "/admin/plugins/acme.widget", registry.UpdateRequest{Name: "Renamed", Compatibility: "obs>=1"}},
		{"delete plugin", http.MethodDelete, "/admin/plugins/acme.widget", nil},
		{"list users", http.MethodGet, "/admin/users", nil},
		{"create user", http.MethodPost, "/admin/users", users.CreateRequest{Username: "mallory", Password: "secret123", Role: "admin"}},
		{"update user", http.MethodPatch, "/admin/users/dev", users.UpdateRequest{}},
		{"delete user", http.MethodDelete, "/admin/users/rival", nil},
		{"audit logs", http.MethodGet, "/admin/audit-logs", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, tt.method, tt.path, devToken, tt.body)
			assert.Equal(t, http.StatusForbidden, rec.Code, rec.Body.String())
			assert.Equal(t, "Forbidden", errorMessage(t, rec))

			rec = f.do(t, tt.method, tt.path, "", tt.body)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestAdminHandlers_PluginManagement(t *testing.T) {
	f := newFixture(t)
	devToken := f.login(t, "dev", "dev12345")
	adminToken := f.login(t, "admin", "admin123")
	f.createDraft(t, devToken, widget)

	// Admin listing ignores publication status
	rec := f.do(t, http.MethodGet, "/admin/plugins", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	all := decode[[]registry.PublicMetadata](t, rec)
	require.Len(t, all, 1)
	assert.Equal(t, "acme.widget", all[0].ID)

	rec = f.do(t, http.MethodPost, "/admin/plugins/acme.widget/versions", adminToken, registry.VersionRequest{Version: "0.2.0", PackageURL: "https://cdn.example.com/widget-0.2.0.pkg"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "https://cdn.example.com/widget-0.2.0.pkg", decode[registry.PublicMetadata](t, rec).PackageURL)

	rec = f.do(t, http.MethodPut, "/admin/plugins/acme.widget", adminToken, registry.UpdateRequest{Name: "Widget Renamed", Compatibility: "obs>=31.0.0"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	md := decode[registry.PublicMetadata](t, rec)
	assert.Equal(t, "Widget Renamed", md.Name)
	assert.Equal(t, "0.2.0", md.Version)

	rec = f.do(t, http.MethodDelete, "/admin/plugins/acme.widget?reason=policy", adminToken, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = f.do(t, http.MethodDelete, "/admin/plugins/acme.widget", adminToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminHandlers_UserManagement(t *testing.T) {
	f := newFixture(t)
	adminToken := f.login(t, "admin", "admin123")

	rec := f.do(t, http.MethodPost, "/admin/users", adminToken, users.CreateRequest{Username: "carol", Password: "carol123", Role: "developer"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	info := decode[users.Info](t, rec)
	assert.Equal(t, "carol", info.Username)
	assert.True(t, info.Active)

	rec = f.do(t, http.MethodPost, "/admin/users", adminToken, users.CreateRequest{Username: "carol", Password: "carol123", Role: "developer"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(t, http.MethodPost, "/admin/users", adminToken, users.CreateRequest{Username: "dave", Password: "dave1234", Role: "superuser"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid role", errorMessage(t, rec))

	rec = f.do(t, http.MethodGet, "/admin/users", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]users.Info](t, rec), 6)

	role := "admin"
	rec = f.do(t, http.MethodPatch, "/admin/users/carol", adminToken, users.UpdateRequest{Role: &role})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, auth.RoleAdmin, decode[users.Info](t, rec).Role)

	inactive := false
	rec = f.do(t, http.MethodPatch, "/admin/users/carol", adminToken, users.UpdateRequest{Active: &inactive})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = f.do(t, http.MethodPost, "/auth/login", "", LoginRequest{Username: "carol", Password: "carol123"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodPatch, "/admin/users/nobody", adminToken, users.UpdateRequest{Role: &role})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "User not found", errorMessage(t, rec))

	entries, err := f.audit.List(t.Context(), audit.Filter{Action: audit.ActionUserRoleChanged})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "developer -> admin", entries[0].Reason)

	rec = f.do(t, http.MethodDelete, "/admin/users/carol", adminToken, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = f.do(t, http.MethodDelete, "/admin/users/carol", adminToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminHandlers_DeleteUserOrphansPlugins(t *testing.T) {
	f := newFixture(t)
	devToken := f.login(t, "dev", "dev12345")
	adminToken := f.login(t, "admin", "admin123")
	f.createDraft(t, devToken, widget)
	for _, action := range []string{"submit", "approve", "publish"} {
		rec := f.do(t, http.MethodPost, "/plugins/acme.widget/"+action, adminToken, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/plugins/acme.widget", "", nil).Code)

	rec := f.do(t, http.MethodDelete, "/admin/users/dev?reason=left", adminToken, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	// Hidden from public reads, still visible to admins with the flag set
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/plugins/acme.widget", "", nil).Code)

	rec = f.do(t, http.MethodGet, "/plugins/acme.widget/manage", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	managed := decode[registry.ManagementRecord](t, rec)
	assert.True(t, managed.Orphaned)
	assert.Equal(t, "dev", managed.Owner)

	entries, err := f.audit.List(t.Context(), audit.Filter{Action: audit.ActionUserDeleted})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "dev", entries[0].Target)
	assert.Equal(t, "left", entries[0].Reason)
}

func TestAdminHandlers_DeletedUserTokenRejected(t *testing.T) {
	f := newFixture(t)
	devToken := f.login(t, "dev", "dev12345")
	adminToken := f.login(t, "admin", "admin123")

	rec := f.do(t, http.MethodDelete, "/admin/users/dev", adminToken, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(t, http.MethodPost, "/plugins", devToken, widget)
	assert.Equal(t, http.StatusUnauthorized, rec.Code, rec.Body.String())
	assert.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodGet, "/plugins/mine", devToken, nil).Code)

	// re-creating the username neither revives the old token nor yields a plugin
	rec = f.do(t, http.MethodPost, "/admin/users", adminToken, users.CreateRequest{Username: "dev", Password: "dev67890", Role: "developer"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodPost, "/plugins", devToken, widget).Code)

	newToken := f.login(t, "dev", "dev67890")
	rec = f.do(t, http.MethodGet, "/plugins/mine", newToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]registry.ManagementRecord](t, rec))
}

func TestAdminHandlers_AuditLogs(t *testing.T) {
	f := newFixture(t)
	devToken := f.login(t, "dev", "dev12345")
	adminToken := f.login(t, "admin", "admin123")
	f.createDraft(t, devToken, widget)
	f.do(t, http.MethodPost, "/plugins/acme.widget/submit", devToken, nil)
	f.do(t, http.MethodPost, "/plugins/acme.widget/reject?reason=incomplete", adminToken, nil)
	f.do(t, http.MethodPut, "/plugins/acme.widget", devToken, registry.UpdateRequest{Name: "Acme Widget 2", Compatibility: "obs>=30.0.0"})

	t.Run("json", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/admin/audit-logs", adminToken, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

		entries := decode[[]audit.Entry](t, rec)
		require.Len(t, entries, 2)
		assert.Equal(t, audit.ActionPluginRejected, entries[0].Action)
		assert.Equal(t, audit.ActionPluginEdited, entries[1].Action)
		assert.NotEmpty(t, entries[0].ID)
	})

	t.Run("filters", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/admin/audit-logs?actor=dev", adminToken, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		entries := decode[[]audit.Entry](t, rec)
		require.Len(t, entries, 1)
		assert.Equal(t, audit.ActionPluginEdited, entries[0].Action)

		rec = f.do(t, http.MethodGet, "/admin/audit-logs?limit=1", adminToken, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, decode[[]audit.Entry](t, rec), 1)

		rec = f.do(t, http.MethodGet, "/admin/audit-logs?since=2000-01-01T00:00:00Z&until=2001-01-01T00:00:00Z", adminToken, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, decode[[]audit.Entry](t, rec))
	})

	t.Run("ndjson", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/admin/audit-logs?format=ndjson", adminToken, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/x-ndjson", rec.Header().Get("Content-Type"))

		lines := 0
		scanner := bufio.NewScanner(bytes.NewReader(rec.Body.Bytes()))
		for scanner.Scan() {
			lines++
		}
		assert.Equal(t, 2, lines)
	})

	t.Run("csv", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/admin/audit-logs?format=csv", adminToken, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))

		rows, err := csv.NewReader(bytes.NewReader(rec.Body.Bytes())).ReadAll()
		require.NoError(t, err)
		require.Len(t, rows, 3)
		assert.Equal(t, "incomplete", rows[1][5])
	})

	t.Run("bad parameters", func(t *testing.T) {
		for _, path := range []string{
			"/admin/audit-logs?format=xml",
			"/admin/audit-logs?limit=abc",
			"/admin/audit-logs?limit=-1",
			"/admin/audit-logs?since=yesterday",
		} {
			rec := f.do(t, http.MethodGet, path, adminToken, nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code, path)
		}
	})
}
