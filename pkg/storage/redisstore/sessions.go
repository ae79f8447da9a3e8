// Package redisstore keeps portal sessions in Redis so several portal
// instances can share them.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/platinummonkey/plugin-portal/pkg/auth"
)

// Config configures the Redis connection
type Config struct {
	URL        string
	Password   string
	DB         int
	MaxRetries int
	PoolSize   int
	// KeyPrefix namespaces session keys, default "portal:session:"
	KeyPrefix string
}

// SessionStore is an auth.SessionStore on Redis. Keys expire with their tokens,
// so no sweeping is needed.
type SessionStore struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

var _ auth.SessionStore = (*SessionStore)(nil)

// NewSessionStore connects to Redis and verifies the connection
func NewSessionStore(config Config) (*SessionStore, error) {
	opts, err := redis.ParseURL(config.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	if config.Password != "" {
		opts.Password = config.Password
	}
	if config.DB > 0 {
		opts.DB = config.DB
	}
	if config.MaxRetries > 0 {
		opts.MaxRetries = config.MaxRetries
	}
	if config.PoolSize > 0 {
		opts.PoolSize = config.PoolSize
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second
	opts.PoolTimeout = 4 * time.Second

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return NewSessionStoreWithClient(client, config.KeyPrefix), nil
}

// NewSessionStoreWithClient wraps an existing client
func NewSessionStoreWithClient(client *redis.Client, prefix string) *SessionStore {
	if prefix == "" {
		prefix = "portal:session:"
	}
	return &SessionStore{client: client, prefix: prefix, now: time.Now}
}

func (s *SessionStore) accessKey(hash string) string  { return s.prefix + "access:" + hash }
func (s *SessionStore) refreshKey(hash string) string { return s.prefix + "refresh:" + hash }

// userKey indexes the refresh hashes issued to one account
func (s *SessionStore) userKey(username string) string { return s.prefix + "user:" + username }

// Save implements auth.SessionStore
func (s *SessionStore) Save(ctx context.Context, sess *auth.Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	now := s.now()
	accessTTL := sess.AccessExpiresAt.Sub(now)
	refreshTTL := sess.RefreshExpiresAt.Sub(now)
	if refreshTTL <= 0 {
		return nil
	}

	pipe := s.client.TxPipeline()
	if accessTTL > 0 {
		pipe.Set(ctx, s.accessKey(sess.AccessTokenHash), data, accessTTL)
	}
	pipe.Set(ctx, s.refreshKey(sess.RefreshTokenHash), data, refreshTTL)
	pipe.SAdd(ctx, s.userKey(sess.Username), sess.RefreshTokenHash)
	pipe.Expire(ctx, s.userKey(sess.Username), refreshTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	return nil
}

func decodeSession(data string) (*auth.Session, error) {
	var sess auth.Session
	if err := json.Unmarshal([]byte(data), &sess); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &sess, nil
}

// GetByAccessHash implements auth.SessionStore
func (s *SessionStore) GetByAccessHash(ctx context.Context, hash string) (*auth.Session, error) {
	data, err := s.client.Get(ctx, s.accessKey(hash)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, auth.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}
	sess, err := decodeSession(data)
	if err != nil {
		s.client.Del(ctx, s.accessKey(hash))
		return nil, err
	}
	return sess, nil
}

// TakeByRefreshHash implements auth.SessionStore. GETDEL makes the exchange single use.
func (s *SessionStore) TakeByRefreshHash(ctx context.Context, hash string) (*auth.Session, error) {
	data, err := s.client.GetDel(ctx, s.refreshKey(hash)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, auth.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis getdel failed: %w", err)
	}
	sess, err := decodeSession(data)
	if err != nil {
		return nil, err
	}
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.accessKey(sess.AccessTokenHash))
	pipe.SRem(ctx, s.userKey(sess.Username), hash)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to revoke access token: %w", err)
	}
	return sess, nil
}

// DeleteByAccessHash implements auth.SessionStore
func (s *SessionStore) DeleteByAccessHash(ctx context.Context, hash string) error {
	sess, err := s.GetByAccessHash(ctx, hash)
	if err != nil {
		return err
	}
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.accessKey(hash), s.refreshKey(sess.RefreshTokenHash))
	pipe.SRem(ctx, s.userKey(sess.Username), sess.RefreshTokenHash)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// DeleteByUsername implements auth.SessionStore. Each refresh key is taken with
// GETDEL so a concurrent refresh cannot also redeem it.
func (s *SessionStore) DeleteByUsername(ctx context.Context, username string) (int, error) {
	hashes, err := s.client.SMembers(ctx, s.userKey(username)).Result()
	if err != nil {
		return 0, fmt.Errorf("redis smembers failed: %w", err)
	}
	removed := 0
	for _, hash := range hashes {
		_, err := s.TakeByRefreshHash(ctx, hash)
		if errors.Is(err, auth.ErrSessionNotFound) {
			continue
		}
		if err != nil {
			return removed, err
		}
		removed++
	}
	if err := s.client.Del(ctx, s.userKey(username)).Err(); err != nil {
		return removed, fmt.Errorf("failed to delete session index: %w", err)
	}
	return removed, nil
}

// DeleteExpired implements auth.SessionStore. Redis expires keys on its own.
func (s *SessionStore) DeleteExpired(context.Context, time.Time) (int, error) {
	return 0, nil
}

// Ping checks Redis connectivity
func (s *SessionStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Client returns the underlying Redis client for health checks
func (s *SessionStore) Client() *redis.Client {
	return s.client
}

// Close closes the Redis connection
func (s *SessionStore) Close() error {
	return s.client.Close()
}
