package registry

import (
	"context"
	"time"

	"github.com/platinummonkey/plugin-portal/pkg/apperrors"
)

var (
	// ErrPluginNotFound is returned when no plugin has the requested id
	ErrPluginNotFound = apperrors.NotFound("Plugin")
	// ErrPluginExists is returned when a plugin id is already taken
	ErrPluginExists = apperrors.Conflict("Plugin")
	// ErrHistoryRewritten is returned when an update would drop or reorder versions
	ErrHistoryRewritten = apperrors.New(apperrors.KindInternal, "version history is append-only")
)

// CheckFunc inspects the locked current state. Returning an error aborts the operation.
type CheckFunc func(p *Plugin) error

// MutateFunc edits a private copy of a plugin. Returning an error aborts the update.
type MutateFunc func(p *Plugin) error

// Repository persists plugins. Updates to one id are serialized; the mutate
// callback always sees the latest committed state.
type Repository interface {
	// Create stores a new plugin or returns ErrPluginExists
	Create(ctx context.Context, p *Plugin) error
	// Get returns a copy of the plugin or ErrPluginNotFound
	Get(ctx context.Context, id string) (*Plugin, error)
	// List returns copies of all plugins in creation order
	List(ctx context.Context) ([]*Plugin, error)
	// Update runs fn against a copy and commits it atomically
	Update(ctx context.Context, id string, fn MutateFunc) (*Plugin, error)
	// Delete removes the plugin and its versions
	Delete(ctx context.Context, id string) error
	// DeleteIf removes the plugin only if check passes against the locked current state
	DeleteIf(ctx context.Context, id string, check CheckFunc) error
	// OrphanByOwner flags every non-orphaned plugin of owner as orphaned in one
	// write and returns the ids it changed
	OrphanByOwner(ctx context.Context, owner string, now time.Time) ([]string, error)
}

// CheckAppendOnly verifies that after keeps every version of before in order
func CheckAppendOnly(before, after *Plugin) error {
	if len(after.Versions) < len(before.Versions) {
		return ErrHistoryRewritten
	}
	for i, v := range before.Versions {
		w := after.Versions[i]
		if v.Version != w.Version || v.SHA256 != w.SHA256 || v.Signature != w.Signature || v.PackageURL != w.PackageURL {
			return ErrHistoryRewritten
		}
	}
	return nil
}
