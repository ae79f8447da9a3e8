package memory

import (
	"context"

	"github.com/platinummonkey/plugin-portal/pkg/apperrors"
	"github.com/platinummonkey/plugin-portal/pkg/users"
)

// UserStore is an in-memory users.Store
type UserStore struct {
	store *keyedStore[*users.User]
}

var _ users.Store = (*UserStore)(nil)

// NewUserStore creates an empty store
func NewUserStore() *UserStore {
	return &UserStore{
		store: newKeyedStore(func(u *users.User) *users.User { return u.Clone() },
			users.ErrUserNotFound, users.ErrUserExists),
	}
}

// Create implements users.Store
func (s *UserStore) Create(_ context.Context, u *users.User) error {
	return s.store.create(u.Username, u)
}

// Get implements users.Store
func (s *UserStore) Get(_ context.Context, username string) (*users.User, error) {
	return s.store.get(username)
}

// List implements users.Store
func (s *UserStore) List(_ context.Context) ([]*users.User, error) {
	return s.store.list(), nil
}

// Update implements users.Store
func (s *UserStore) Update(_ context.Context, username string, fn func(u *users.User) error) (*users.User, error) {
	return s.store.update(username, func(u *users.User) error {
		if err := fn(u); err != nil {
			return err
		}
		if u.Username != username {
			return apperrors.New(apperrors.KindInternal, "username is immutable")
		}
		return nil
	})
}

// Delete implements users.Store
func (s *UserStore) Delete(_ context.Context, username string) error {
	return s.store.delete(username)
}
