package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/platinummonkey/plugin-portal/pkg/apperrors"
	"github.com/platinummonkey/plugin-portal/pkg/auth"
	"github.com/platinummonkey/plugin-portal/pkg/users"
)

// UserStore is a users.Store backed by SQL
type UserStore struct {
	cm *ConnectionManager
	d  Dialect
}

var _ users.Store = (*UserStore)(nil)

// NewUserStore creates a store on an initialized connection manager
func NewUserStore(cm *ConnectionManager) *UserStore {
	return &UserStore{cm: cm, d: cm.Dialect()}
}

const userColumns = "username, password_hash, role, active, created_at, updated_at"

func scanUser(row interface{ Scan(...interface{}) error }) (*users.User, error) {
	var u users.User
	var role string
	if err := row.Scan(&u.Username, &u.PasswordHash, &role, &u.Active, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.Role = auth.Role(role)
	return &u, nil
}

// Create implements users.Store
func (s *UserStore) Create(ctx context.Context, u *users.User) error {
	_, err := s.cm.Primary().ExecContext(ctx, s.d.Rebind(`
		INSERT INTO users (username, password_hash, role, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`),
		u.Username, u.PasswordHash, string(u.Role), u.Active, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return users.ErrUserExists
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

func (s *UserStore) get(ctx context.Context, q queryer, username string, lock bool) (*users.User, error) {
	query := "SELECT " + userColumns + " FROM users WHERE username = ?"
	if lock {
		query += s.d.ForUpdate
	}
	u, err := scanUser(q.QueryRowContext(ctx, s.d.Rebind(query), username))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, users.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return u, nil
}

// Get implements users.Store
func (s *UserStore) Get(ctx context.Context, username string) (*users.User, error) {
	return s.get(ctx, s.cm.Primary(), username, false)
}

// List implements users.Store
func (s *UserStore) List(ctx context.Context) ([]*users.User, error) {
	rows, err := s.cm.Replica().QueryContext(ctx, "SELECT "+userColumns+" FROM users ORDER BY "+s.d.OrderColumn+" ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	out := []*users.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// Update implements users.Store
func (s *UserStore) Update(ctx context.Context, username string, fn func(u *users.User) error) (*users.User, error) {
	tx, err := s.cm.Primary().BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer rollback(tx)

	u, err := s.get(ctx, tx, username, true)
	if err != nil {
		return nil, err
	}
	if err := fn(u); err != nil {
		return nil, err
	}
	if u.Username != username {
		return nil, apperrors.New(apperrors.KindInternal, "username is immutable")
	}
	_, err = tx.ExecContext(ctx, s.d.Rebind(`
		UPDATE users SET password_hash = ?, role = ?, active = ?, updated_at = ? WHERE username = ?`),
		u.PasswordHash, string(u.Role), u.Active, u.UpdatedAt, username)
	if err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit user update: %w", err)
	}
	return u, nil
}

// Delete implements users.Store
func (s *UserStore) Delete(ctx context.Context, username string) error {
	res, err := s.cm.Primary().ExecContext(ctx, s.d.Rebind(`DELETE FROM users WHERE username = ?`), username)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if n == 0 {
		return users.ErrUserNotFound
	}
	return nil
}
