package memory

import (
	"context"
	"time"

	"github.com/platinummonkey/plugin-portal/pkg/apperrors"
	"github.com/platinummonkey/plugin-portal/pkg/registry"
)

// PluginRepository is an in-memory registry.Repository
type PluginRepository struct {
	store *keyedStore[*registry.Plugin]
}

var _ registry.Repository = (*PluginRepository)(nil)

// NewPluginRepository creates an empty repository
func NewPluginRepository() *PluginRepository {
	return &PluginRepository{
		store: newKeyedStore(func(p *registry.Plugin) *registry.Plugin { return p.Clone() },
			registry.ErrPluginNotFound, registry.ErrPluginExists),
	}
}

// Create implements registry.Repository
func (r *PluginRepository) Create(_ context.Context, p *registry.Plugin) error {
	return r.store.create(p.ID, p)
}

// Get implements registry.Repository
func (r *PluginRepository) Get(_ context.Context, id string) (*registry.Plugin, error) {
	return r.store.get(id)
}

// List implements registry.Repository
func (r *PluginRepository) List(_ context.Context) ([]*registry.Plugin, error) {
	return r.store.list(), nil
}

// Update implements registry.Repository
func (r *PluginRepository) Update(_ context.Context, id string, fn registry.MutateFunc) (*registry.Plugin, error) {
	return r.store.update(id, func(p *registry.Plugin) error {
		before := p.Clone()
		if err := fn(p); err != nil {
			return err
		}
		if p.ID != before.ID {
			return apperrors.New(apperrors.KindInternal, "plugin id is immutable")
		}
		return registry.CheckAppendOnly(before, p)
	})
}

// Delete implements registry.Repository
func (r *PluginRepository) Delete(_ context.Context, id string) error {
	return r.store.delete(id)
}

// DeleteIf implements registry.Repository
func (r *PluginRepository) DeleteIf(_ context.Context, id string, check registry.CheckFunc) error {
	return r.store.deleteIf(id, check)
}

// OrphanByOwner implements registry.Repository. Plugins created after the
// scan starts are not seen.
func (r *PluginRepository) OrphanByOwner(_ context.Context, owner string, now time.Time) ([]string, error) {
	return r.store.updateAll(func(p *registry.Plugin) bool {
		if p.Owner != owner || p.Orphaned {
			return false
		}
		p.Orphaned = true
		p.UpdatedAt = now
		return true
	}), nil
}

// Len returns the number of stored plugins
func (r *PluginRepository) Len() int {
	return r.store.len()
}
