package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/platinummonkey/plugin-portal/pkg/apperrors"
)

// ErrSessionNotFound is returned by SessionStore lookups that miss.
var ErrSessionNotFound = errors.New("session not found")

// Session binds hashed tokens to a principal snapshot.
type Session struct {
	AccessTokenHash  string    `json:"access_token_hash"`
	RefreshTokenHash string    `json:"refresh_token_hash"`
	Username         string    `json:"username"`
	Role             Role      `json:"role"`
	IssuedAt         time.Time `json:"issued_at"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

// Principal returns the identity snapshot carried by the session
func (s *Session) Principal() *Principal {
	return &Principal{Username: s.Username, Role: s.Role}
}

// TokenPair is returned to clients on login and refresh
type TokenPair struct {
	Username     string `json:"username"`
	Role         Role   `json:"role"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

// SessionStore persists sessions keyed by token hash.
type SessionStore interface {
	// Save stores a new session.
	Save(ctx context.Context, s *Session) error
	// GetByAccessHash returns the session owning an access token hash.
	GetByAccessHash(ctx context.Context, hash string) (*Session, error)
	// TakeByRefreshHash atomically removes and returns the session owning a refresh token hash.
	TakeByRefreshHash(ctx context.Context, hash string) (*Session, error)
	// DeleteByAccessHash removes the session owning an access token hash.
	DeleteByAccessHash(ctx context.Context, hash string) error
	// DeleteByUsername removes every session of username and returns how many.
	DeleteByUsername(ctx context.Context, username string) (int, error)
	// DeleteExpired removes sessions whose refresh token expired before now.
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

// SessionConfig configures token lifetimes
type SessionConfig struct {
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

// DefaultSessionConfig returns one hour access tokens and thirty day refresh tokens
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		AccessTokenTTL:  time.Hour,
		RefreshTokenTTL: 30 * 24 * time.Hour,
	}
}

// SessionManager issues, resolves and rotates sessions.
type SessionManager struct {
	store   SessionStore
	config  SessionConfig
	access  *TokenGenerator
	refresh *TokenGenerator
	now     func() time.Time
}

// NewSessionManager creates a session manager over store
func NewSessionManager(store SessionStore, config SessionConfig) *SessionManager {
	return &SessionManager{
		store:   store,
		config:  config,
		access:  NewTokenGenerator(AccessTokenPrefix),
		refresh: NewTokenGenerator(RefreshTokenPrefix),
		now:     time.Now,
	}
}

// SetClock overrides the time source.
func (m *SessionManager) SetClock(now func() time.Time) {
	m.now = now
}

// Store returns the underlying session store
func (m *SessionManager) Store() SessionStore {
	return m.store
}

// Issue creates a new session for principal. Existing sessions are untouched.
func (m *SessionManager) Issue(ctx context.Context, p Principal) (*TokenPair, error) {
	accessToken, accessHash, err := m.access.GenerateToken()
	if err != nil {
		return nil, apperrors.Internal("failed to issue session", err)
	}
	refreshToken, refreshHash, err := m.refresh.GenerateToken()
	if err != nil {
		return nil, apperrors.Internal("failed to issue session", err)
	}

	now := m.now().UTC()
	sess := &Session{
		AccessTokenHash:  accessHash,
		RefreshTokenHash: refreshHash,
		Username:         p.Username,
		Role:             p.Role,
		IssuedAt:         now,
		AccessExpiresAt:  now.Add(m.config.AccessTokenTTL),
		RefreshExpiresAt: now.Add(m.config.RefreshTokenTTL),
	}
	if err := m.store.Save(ctx, sess); err != nil {
		return nil, apperrors.Internal("failed to save session", err)
	}

	return &TokenPair{
		Username:     p.Username,
		Role:         p.Role,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "bearer",
		ExpiresIn:    int64(m.config.AccessTokenTTL.Seconds()),
	}, nil
}

// Authenticate resolves an access token to its principal.
func (m *SessionManager) Authenticate(ctx context.Context, accessToken string) (*Principal, error) {
	if err := m.access.ValidateTokenFormat(accessToken); err != nil {
		return nil, apperrors.Unauthenticated()
	}

	sess, err := m.store.GetByAccessHash(ctx, HashToken(accessToken))
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil, apperrors.Unauthenticated()
		}
		return nil, apperrors.Internal("failed to load session", err)
	}
	if !m.now().Before(sess.AccessExpiresAt) {
		return nil, apperrors.Unauthenticated()
	}
	return sess.Principal(), nil
}

// Redeem consumes a refresh token and returns the session it belonged to.
// The session's access token stops working immediately.
func (m *SessionManager) Redeem(ctx context.Context, refreshToken string) (*Session, error) {
	if err := m.refresh.ValidateTokenFormat(refreshToken); err != nil {
		return nil, apperrors.Unauthenticated()
	}

	sess, err := m.store.TakeByRefreshHash(ctx, HashToken(refreshToken))
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil, apperrors.Unauthenticated()
		}
		return nil, apperrors.Internal("failed to load session", err)
	}
	if !m.now().Before(sess.RefreshExpiresAt) {
		return nil, apperrors.Unauthenticated()
	}
	return sess, nil
}

// Revoke ends the session owning accessToken. Unknown tokens are ignored.
func (m *SessionManager) Revoke(ctx context.Context, accessToken string) error {
	if err := m.store.DeleteByAccessHash(ctx, HashToken(accessToken)); err != nil && !errors.Is(err, ErrSessionNotFound) {
		return apperrors.Internal("failed to revoke session", err)
	}
	return nil
}

// RevokeUser ends every session belonging to username
func (m *SessionManager) RevokeUser(ctx context.Context, username string) (int, error) {
	n, err := m.store.DeleteByUsername(ctx, username)
	if err != nil {
		return 0, apperrors.Internal("failed to revoke sessions", err)
	}
	return n, nil
}

// PurgeExpired drops sessions that can no longer be refreshed.
func (m *SessionManager) PurgeExpired(ctx context.Context) (int, error) {
	n, err := m.store.DeleteExpired(ctx, m.now())
	if err != nil {
		return 0, fmt.Errorf("failed to purge expired sessions: %w", err)
	}
	return n, nil
}

// MemorySessionStore keeps sessions in process memory.
type MemorySessionStore struct {
	mu        sync.Mutex
	byAccess  map[string]*Session
	byRefresh map[string]*Session
}

// NewMemorySessionStore creates an empty in-memory session store
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		byAccess:  make(map[string]*Session),
		byRefresh: make(map[string]*Session),
	}
}

// Save implements SessionStore
func (s *MemorySessionStore) Save(_ context.Context, sess *Session) error {
	cp := *sess
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byAccess[cp.AccessTokenHash] = &cp
	s.byRefresh[cp.RefreshTokenHash] = &cp
	return nil
}

// GetByAccessHash implements SessionStore
func (s *MemorySessionStore) GetByAccessHash(_ context.Context, hash string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.byAccess[hash]
	if !ok {
		return nil, ErrSessionNotFound
	}
	cp := *sess
	return &cp, nil
}

// TakeByRefreshHash implements SessionStore
func (s *MemorySessionStore) TakeByRefreshHash(_ context.Context, hash string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.byRefresh[hash]
	if !ok {
		return nil, ErrSessionNotFound
	}
	delete(s.byRefresh, hash)
	delete(s.byAccess, sess.AccessTokenHash)
	return sess, nil
}

// DeleteByAccessHash implements SessionStore
func (s *MemorySessionStore) DeleteByAccessHash(_ context.Context, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.byAccess[hash]
	if !ok {
		return ErrSessionNotFound
	}
	delete(s.byAccess, hash)
	delete(s.byRefresh, sess.RefreshTokenHash)
	return nil
}

// DeleteByUsername implements SessionStore
func (s *MemorySessionStore) DeleteByUsername(_ context.Context, username string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for hash, sess := range s.byRefresh {
		if sess.Username != username {
			continue
		}
		delete(s.byRefresh, hash)
		delete(s.byAccess, sess.AccessTokenHash)
		removed++
	}
	return removed, nil
}

// DeleteExpired implements SessionStore
func (s *MemorySessionStore) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for hash, sess := range s.byRefresh {
		if now.Before(sess.RefreshExpiresAt) {
			continue
		}
		delete(s.byRefresh, hash)
		delete(s.byAccess, sess.AccessTokenHash)
		removed++
	}
	return removed, nil
}

// Len returns the number of live sessions
func (s *MemorySessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byAccess)
}
