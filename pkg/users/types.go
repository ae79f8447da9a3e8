package users

import (
	"context"
	"regexp"
	"time"

	"github.com/platinummonkey/plugin-portal/pkg/apperrors"
	"github.com/platinummonkey/plugin-portal/pkg/auth"
)

var (
	// ErrUserNotFound is returned when no account has the requested username
	ErrUserNotFound = apperrors.NotFound("User")
	// ErrUserExists is returned when a username is already taken
	ErrUserExists = apperrors.Conflict("User")
	// ErrInvalidRole is returned for roles outside the fixed set
	ErrInvalidRole = apperrors.Validation("Invalid role")

	errInvalidCredentials = apperrors.New(apperrors.KindUnauthenticated, "Invalid credentials")
	errAccountInactive    = apperrors.New(apperrors.KindForbidden, "Account is inactive")
)

// User is a stored account
type User struct {
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Role         auth.Role `json:"role"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Clone returns a copy
func (u *User) Clone() *User {
	cp := *u
	return &cp
}

// Info returns the public view of u
func (u *User) Info() Info {
	return Info{Username: u.Username, Role: u.Role, Active: u.Active}
}

// Info is the admin listing view of an account
type Info struct {
	Username string    `json:"username"`
	Role     auth.Role `json:"role"`
	Active   bool      `json:"active"`
}

// AccountInfo is returned by the account endpoint
type AccountInfo struct {
	Username string    `json:"username"`
	Role     auth.Role `json:"role"`
}

// CreateRequest creates an account. Active defaults to true.
type CreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
	Active   *bool  `json:"active,omitempty"`
}

// UpdateRequest changes an account. Nil or empty fields are left unchanged.
type UpdateRequest struct {
	Password *string `json:"password,omitempty"`
	Role     *string `json:"role,omitempty"`
	Active   *bool   `json:"active,omitempty"`
}

// Store persists accounts. Updates to one username are serialized.
type Store interface {
	Create(ctx context.Context, u *User) error
	Get(ctx context.Context, username string) (*User, error)
	// List returns accounts in creation order
	List(ctx context.Context) ([]*User, error)
	// Update runs fn against a copy and commits it atomically
	Update(ctx context.Context, username string, fn func(u *User) error) (*User, error)
	Delete(ctx context.Context, username string) error
}

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_.-]+$`)

// MinPasswordLength is the shortest accepted password
const MinPasswordLength = 6

// ValidateUsername checks the username format
func ValidateUsername(username string) error {
	if n := len(username); n < 3 || n > 64 {
		return apperrors.Validation("username must be between 3 and 64 characters")
	}
	if !usernamePattern.MatchString(username) {
		return apperrors.Validation("username may only contain letters, digits, '_', '.' and '-'")
	}
	return nil
}

// ValidatePassword checks the password length
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return apperrors.Validation("password must be at least %d characters", MinPasswordLength)
	}
	return nil
}

func parseRole(s string) (auth.Role, error) {
	role, err := auth.ParseRole(s)
	if err != nil {
		return "", ErrInvalidRole
	}
	return role, nil
}
