package users

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/plugin-portal/pkg/apperrors"
	"github.com/platinummonkey/plugin-portal/pkg/audit"
	"github.com/platinummonkey/plugin-portal/pkg/auth"
)

// Login results reported to the LoginObserver
const (
	LoginSuccess  = "success"
	LoginInvalid  = "invalid_credentials"
	LoginInactive = "inactive"
	LoginError    = "error"
)

// PluginOrphaner flags the plugins of a deleted account
type PluginOrphaner interface {
	OrphanPlugins(ctx context.Context, owner string) (int, error)
}

// LoginObserver receives login outcomes for metrics
type LoginObserver interface {
	LoginAttempted(result string)
}

// ServiceConfig wires the account service
type ServiceConfig struct {
	Store    Store
	Sessions *auth.SessionManager
	Audit    audit.Logger
	Orphaner PluginOrphaner
	Observer LoginObserver
	Logger   *logrus.Logger
	Now      func() time.Time
}

// Service implements authentication and account administration
type Service struct {
	store    Store
	sessions *auth.SessionManager
	audit    audit.Logger
	orphaner PluginOrphaner
	observer LoginObserver
	logger   *logrus.Logger
	now      func() time.Time

	dummyOnce sync.Once
	dummyHash string
}

// NewService creates an account service
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("user store is required")
	}
	if cfg.Sessions == nil {
		return nil, fmt.Errorf("session manager is required")
	}
	s := &Service{
		store:    cfg.Store,
		sessions: cfg.Sessions,
		audit:    cfg.Audit,
		orphaner: cfg.Orphaner,
		observer: cfg.Observer,
		logger:   cfg.Logger,
		now:      cfg.Now,
	}
	if s.audit == nil {
		s.audit = audit.NoOpLogger{}
	}
	if s.logger == nil {
		s.logger = logrus.New()
		s.logger.SetOutput(io.Discard)
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	return s, nil
}

// Sessions returns the session manager
func (s *Service) Sessions() *auth.SessionManager {
	return s.sessions
}

// Login verifies credentials and opens a session
func (s *Service) Login(ctx context.Context, username, password string) (*auth.TokenPair, error) {
	pair, err := s.login(ctx, username, password)
	if s.observer != nil {
		s.observer.LoginAttempted(loginResult(err))
	}
	return pair, err
}

func (s *Service) login(ctx context.Context, username, password string) (*auth.TokenPair, error) {
	u, err := s.store.Get(ctx, username)
	if err != nil {
		if !apperrors.IsNotFound(err) {
			return nil, apperrors.Internal("failed to load user", err)
		}
		// Spend the same bcrypt work for unknown usernames.
		auth.CheckPassword(s.unknownUserHash(), password)
		return nil, errInvalidCredentials
	}
	if !auth.CheckPassword(u.PasswordHash, password) {
		s.logger.WithField("username", username).Warn("login failed")
		return nil, errInvalidCredentials
	}
	if !u.Active {
		return nil, errAccountInactive
	}
	pair, err := s.sessions.Issue(ctx, auth.Principal{Username: u.Username, Role: u.Role})
	if err != nil {
		return nil, err
	}
	s.logger.WithFields(logrus.Fields{"username": u.Username, "role": u.Role}).Info("user logged in")
	return pair, nil
}

func loginResult(err error) string {
	switch {
	case err == nil:
		return LoginSuccess
	case apperrors.IsUnauthenticated(err):
		return LoginInvalid
	case apperrors.IsForbidden(err):
		return LoginInactive
	default:
		return LoginError
	}
}

func (s *Service) unknownUserHash() string {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = auth.HashPassword("unknown-user-placeholder")
	})
	return s.dummyHash
}

// Refresh exchanges a refresh token for a new pair using the account's current role
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*auth.TokenPair, error) {
	sess, err := s.sessions.Redeem(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	u, err := s.store.Get(ctx, sess.Username)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, apperrors.Unauthenticated()
		}
		return nil, apperrors.Internal("failed to load user", err)
	}
	if !u.Active {
		return nil, errAccountInactive
	}
	return s.sessions.Issue(ctx, auth.Principal{Username: u.Username, Role: u.Role})
}

// Logout revokes the session owning accessToken
func (s *Service) Logout(ctx context.Context, accessToken string) error {
	return s.sessions.Revoke(ctx, accessToken)
}

// Me returns the identity of the session
func (s *Service) Me(principal *auth.Principal) (*AccountInfo, error) {
	if err := auth.RequireAuthenticated(principal); err != nil {
		return nil, err
	}
	return &AccountInfo{Username: principal.Username, Role: principal.Role}, nil
}

func requireUserAdmin(principal *auth.Principal) error {
	if err := auth.RequirePermission(principal, auth.PermUsersManage); err != nil {
		return err
	}
	return auth.RequireRole(principal, auth.RoleAdmin)
}

// ListUsers returns every account in creation order
func (s *Service) ListUsers(ctx context.Context, principal *auth.Principal) ([]Info, error) {
	if err := requireUserAdmin(principal); err != nil {
		return nil, err
	}
	list, err := s.store.List(ctx)
	if err != nil {
		return nil, apperrors.Internal("failed to list users", err)
	}
	out := make([]Info, 0, len(list))
	for _, u := range list {
		out = append(out, u.Info())
	}
	return out, nil
}

// CreateUser adds an account
func (s *Service) CreateUser(ctx context.Context, principal *auth.Principal, req CreateRequest) (*Info, error) {
	if err := requireUserAdmin(principal); err != nil {
		return nil, err
	}
	u, err := s.newUser(req)
	if err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, u); err != nil {
		if apperrors.IsConflict(err) {
			return nil, ErrUserExists
		}
		return nil, apperrors.Internal("failed to create user", err)
	}
	s.logger.WithFields(logrus.Fields{
		"username": u.Username,
		"role":     u.Role,
		"actor":    principal.Username,
	}).Info("user created")
	info := u.Info()
	return &info, nil
}

// Import creates an account without authorization checks. Existing usernames are
// left untouched and reported as not created.
func (s *Service) Import(ctx context.Context, req CreateRequest) (bool, error) {
	u, err := s.newUser(req)
	if err != nil {
		return false, err
	}
	if err := s.store.Create(ctx, u); err != nil {
		if apperrors.IsConflict(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *Service) newUser(req CreateRequest) (*User, error) {
	role, err := parseRole(req.Role)
	if err != nil {
		return nil, err
	}
	if err := ValidateUsername(req.Username); err != nil {
		return nil, err
	}
	if err := ValidatePassword(req.Password); err != nil {
		return nil, err
	}
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, apperrors.Internal("failed to hash password", err)
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	now := s.now()
	return &User{
		Username:     req.Username,
		PasswordHash: hash,
		Role:         role,
		Active:       active,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// UpdateUser changes password, role or active flag. A role change is audited;
// reason defaults to "<old> -> <new>".
func (s *Service) UpdateUser(ctx context.Context, principal *auth.Principal, username string, req UpdateRequest, reason string) (*Info, error) {
	if err := requireUserAdmin(principal); err != nil {
		return nil, err
	}

	var newRole auth.Role
	if req.Role != nil && *req.Role != "" {
		r, err := parseRole(*req.Role)
		if err != nil {
			return nil, err
		}
		newRole = r
	}
	var newHash string
	if req.Password != nil && *req.Password != "" {
		if err := ValidatePassword(*req.Password); err != nil {
			return nil, err
		}
		h, err := auth.HashPassword(*req.Password)
		if err != nil {
			return nil, apperrors.Internal("failed to hash password", err)
		}
		newHash = h
	}

	var oldRole auth.Role
	updated, err := s.store.Update(ctx, username, func(u *User) error {
		oldRole = u.Role
		if newRole != "" {
			u.Role = newRole
		}
		if newHash != "" {
			u.PasswordHash = newHash
		}
		if req.Active != nil {
			u.Active = *req.Active
		}
		u.UpdatedAt = s.now()
		return nil
	})
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, apperrors.Internal("failed to update user", err)
	}

	if updated.Role != oldRole {
		if reason == "" {
			reason = fmt.Sprintf("%s -> %s", oldRole, updated.Role)
		}
		s.record(ctx, principal, audit.ActionUserRoleChanged, username, reason)
		s.logger.WithFields(logrus.Fields{
			"username": username,
			"from":     oldRole,
			"to":       updated.Role,
			"actor":    principal.Username,
		}).Info("user role changed")
	}
	info := updated.Info()
	return &info, nil
}

// DeleteUser removes an account and orphans the plugins it owned
func (s *Service) DeleteUser(ctx context.Context, principal *auth.Principal, username, reason string) error {
	if err := requireUserAdmin(principal); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, username); err != nil {
		if apperrors.IsNotFound(err) {
			return ErrUserNotFound
		}
		return apperrors.Internal("failed to delete user", err)
	}
	revoked, err := s.sessions.RevokeUser(ctx, username)
	if err != nil {
		s.logger.WithError(err).WithField("username", username).Error("failed to revoke sessions of deleted user")
		return err
	}

	s.record(ctx, principal, audit.ActionUserDeleted, username, reason)

	orphaned := 0
	if s.orphaner != nil {
		n, err := s.orphaner.OrphanPlugins(ctx, username)
		if err != nil {
			s.logger.WithError(err).WithField("username", username).Error("failed to orphan plugins of deleted user")
			return apperrors.Internal("failed to orphan plugins", err)
		}
		orphaned = n
	}
	s.logger.WithFields(logrus.Fields{
		"username": username,
		"orphaned": orphaned,
		"sessions": revoked,
		"actor":    principal.Username,
	}).Info("user deleted")
	return nil
}

func (s *Service) record(ctx context.Context, principal *auth.Principal, action audit.Action, target, reason string) {
	if err := s.audit.Record(ctx, audit.NewEntry(principal.Username, action, target, reason)); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"action": action,
			"target": target,
		}).Error("failed to record audit entry")
	}
}
