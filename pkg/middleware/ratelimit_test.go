package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiter_Allow(t *testing.T) {
	config := &RateLimitConfig{
		RequestsPerWindow: 10,
		WindowDuration:    time.Second,
		BurstSize:         2,
	}
	limiter := NewRateLimiter(config)
	ctx := context.Background()

	allowedCount := 0
	for i := 0; i < config.RequestsPerWindow+config.BurstSize+5; i++ {
		ok, err := limiter.Allow(ctx, "client")
		require.NoError(t, err)
		if ok {
			allowedCount++
		}
	}

	assert.Equal(t, config.RequestsPerWindow+config.BurstSize, allowedCount)
	assert.Zero(t, limiter.Remaining("client"))
}

func TestRateLimiter_Refill(t *testing.T) {
	now := time.Now()
	limiter := NewRateLimiter(&RateLimitConfig{RequestsPerWindow: 2, WindowDuration: time.Minute})
	limiter.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ok, _ := limiter.Allow(ctx, "client")
		require.True(t, ok)
	}
	ok, _ := limiter.Allow(ctx, "client")
	assert.False(t, ok, "bucket should be empty")

	now = now.Add(30 * time.Second)
	ok, _ = limiter.Allow(ctx, "client")
	assert.True(t, ok, "half a window refills one token")
}

func TestRateLimiter_KeysIndependent(t *testing.T) {
	limiter := NewRateLimiter(&RateLimitConfig{RequestsPerWindow: 1, WindowDuration: time.Minute})
	ctx := context.Background()

	ok, _ := limiter.Allow(ctx, "a")
	assert.True(t, ok)
	ok, _ = limiter.Allow(ctx, "a")
	assert.False(t, ok)
	ok, _ = limiter.Allow(ctx, "b")
	assert.True(t, ok)
}

func TestRateLimiter_Cleanup(t *testing.T) {
	now := time.Now()
	limiter := NewRateLimiter(&RateLimitConfig{RequestsPerWindow: 1, WindowDuration: time.Minute})
	limiter.now = func() time.Time { return now }

	_, _ = limiter.Allow(context.Background(), "idle")
	now = now.Add(3 * time.Minute)
	limiter.Cleanup()

	limiter.mu.RLock()
	defer limiter.mu.RUnlock()
	assert.Empty(t, limiter.buckets)
}

func newRedisLimiter(t *testing.T, perWindow int) (*DistributedRateLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewDistributedRateLimiter(client, LoginRateLimitConfig(perWindow), ""), mr
}

func TestDistributedRateLimiter_Allow(t *testing.T) {
	limiter, mr := newRedisLimiter(t, 3)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := limiter.Allow(ctx, "login:10.0.0.1")
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, err := limiter.Allow(ctx, "login:10.0.0.1")
	require.NoError(t, err)
	assert.False(t, ok)

	remaining, err := limiter.Remaining(ctx, "login:10.0.0.1")
	require.NoError(t, err)
	assert.Zero(t, remaining)

	ttl, err := limiter.TTL(ctx, "login:10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, time.Minute, ttl)

	// Window expiry resets the counter
	mr.FastForward(time.Minute + time.Second)
	ok, err = limiter.Allow(ctx, "login:10.0.0.1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestDistributedRateLimiter_RemainingAndReset(t *testing.T) {
	limiter, _ := newRedisLimiter(t, 5)
	ctx := context.Background()

	remaining, err := limiter.Remaining(ctx, "fresh")
	require.NoError(t, err)
	assert.Equal(t, 5, remaining)

	_, _ = limiter.Allow(ctx, "fresh")
	_, _ = limiter.Allow(ctx, "fresh")
	remaining, err = limiter.Remaining(ctx, "fresh")
	require.NoError(t, err)
	assert.Equal(t, 3, remaining)

	require.NoError(t, limiter.Reset(ctx, "fresh"))
	remaining, err = limiter.Remaining(ctx, "fresh")
	require.NoError(t, err)
	assert.Equal(t, 5, remaining)
}

func TestDistributedRateLimiter_RedisDown(t *testing.T) {
	limiter, mr := newRedisLimiter(t, 1)
	mr.Close()

	ok, err := limiter.Allow(context.Background(), "k")
	assert.Error(t, err)
	assert.True(t, ok, "errors fail open")
}

type stubLimiter struct {
	allow bool
	err   error
	keys  []string
}

func (s *stubLimiter) Allow(_ context.Context, key string) (bool, error) {
	s.keys = append(s.keys, key)
	return s.allow, s.err
}

func (s *stubLimiter) Window() time.Duration { return time.Minute }

func TestRateLimit_Middleware(t *testing.T) {
	okHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	t.Run("allowed", func(t *testing.T) {
		limiter := &stubLimiter{allow: true}
		req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
		req.RemoteAddr = "192.0.2.1:5555"
		rec := httptest.NewRecorder()

		RateLimit(limiter, "login")(okHandler).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, []string{"login:192.0.2.1"}, limiter.keys)
	})

	t.Run("rejected", func(t *testing.T) {
		limiter := &stubLimiter{allow: false}
		rec := httptest.NewRecorder()

		RateLimit(limiter, "login")(okHandler).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/login", nil))

		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.Equal(t, "60", rec.Header().Get("Retry-After"))
		assert.NotEmpty(t, rec.Header().Get("X-RateLimit-Reset"))
		assert.JSONEq(t, `{"error":"Too many requests"}`, rec.Body.String())
	})

	t.Run("limiter error fails open", func(t *testing.T) {
		limiter := &stubLimiter{err: errors.New("redis down")}
		rec := httptest.NewRecorder()

		RateLimit(limiter, "login")(okHandler).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/login", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"remote addr", nil, "192.0.2.1:1234", "192.0.2.1"},
		{"remote without port", nil, "192.0.2.1", "192.0.2.1"},
		{"forwarded chain", map[string]string{"X-Forwarded-For": "203.0.113.9, 10.0.0.1"}, "10.0.0.2:1", "203.0.113.9"},
		{"real ip", map[string]string{"X-Real-IP": "203.0.113.7"}, "10.0.0.2:1", "203.0.113.7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, getClientIP(req))
		})
	}
}
