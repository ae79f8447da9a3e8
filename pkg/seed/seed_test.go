package seed

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/platinummonkey/plugin-portal/pkg/auth"
	"github.com/platinummonkey/plugin-portal/pkg/packages"
	"github.com/platinummonkey/plugin-portal/pkg/registry"
	"github.com/platinummonkey/plugin-portal/pkg/storage/memory"
	"github.com/platinummonkey/plugin-portal/pkg/users"
)

func TestMain(m *testing.M) {
	auth.PasswordCost = bcrypt.MinCost
	os.Exit(m.Run())
}

func newSeeder(t *testing.T) (*Seeder, *users.Service, *registry.Service) {
	t.Helper()
	signer, err := packages.GenerateSigner()
	require.NoError(t, err)
	reg, err := registry.NewService(registry.ServiceConfig{
		Repository:     memory.NewPluginRepository(),
		Packages:       packages.NewStore(packages.NewMemoryBlobStore(), signer),
		PackageBaseURL: "http://localhost:8080/portal/api",
	})
	require.NoError(t, err)
	us, err := users.NewService(users.ServiceConfig{
		Store:    memory.NewUserStore(),
		Sessions: auth.NewSessionManager(auth.NewMemorySessionStore(), auth.SessionConfig{AccessTokenTTL: time.Hour, RefreshTokenTTL: time.Hour}),
	})
	require.NoError(t, err)
	return NewSeeder(us, reg, nil), us, reg
}

func TestApply_DefaultIsIdempotent(t *testing.T) {
	s, us, reg := newSeeder(t)
	ctx := context.Background()

	res, err := s.Apply(ctx, Default())
	require.NoError(t, err)
	assert.Equal(t, Result{UsersCreated: 3, PluginsCreated: 2}, res)

	res, err = s.Apply(ctx, Default())
	require.NoError(t, err)
	assert.Equal(t, Result{UsersSkipped: 3, PluginsSkipped: 2}, res)

	pair, err := us.Login(ctx, "developer", "dev123")
	require.NoError(t, err)
	assert.Equal(t, auth.RoleDeveloper, pair.Role)

	md, err := reg.GetPublic(ctx, "com.example.stream-overlay")
	require.NoError(t, err)
	assert.Equal(t, "2.0.0", md.Version)
	assert.Equal(t, "http://localhost:8080/portal/api/plugins/com.example.stream-overlay/package?version=2.0.0", md.PackageURL)

	list, err := reg.ListPublic(ctx, "")
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestParse(t *testing.T) {
	doc, err := Parse(strings.NewReader(`
users:
  - username: alice
    password: secret1
    role: developer
    active: false
plugins:
  - id: acme.widget
    name: Widget
    compatibility: obs>=30.0.0
    owner: alice
    status: draft
    versions: ["0.1.0"]
`))
	require.NoError(t, err)
	require.Len(t, doc.Users, 1)
	require.NotNil(t, doc.Users[0].Active)
	assert.False(t, *doc.Users[0].Active)
	require.Len(t, doc.Plugins, 1)
	assert.Equal(t, []string{"0.1.0"}, doc.Plugins[0].Versions)

	_, err = Parse(strings.NewReader("users:\n  - username: a\n    colour: blue\n"))
	assert.Error(t, err, "unknown fields are rejected")

	empty, err := Parse(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, empty.Users)
}

func TestLoadFile(t *testing.T) {
	doc, err := LoadFile("")
	require.NoError(t, err)
	assert.Len(t, doc.Users, 3)

	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte("plugins: []\n"), 0o600))
	doc, err = LoadFile(path)
	require.NoError(t, err)
	assert.Empty(t, doc.Plugins)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestApply_InvalidPlugin(t *testing.T) {
	s, _, _ := newSeeder(t)
	_, err := s.Apply(context.Background(), &Document{Plugins: []Plugin{{ID: "x", Name: "Bad", Compatibility: "obs"}}})
	assert.Error(t, err)
}
