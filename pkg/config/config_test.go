package config

import (
	"strings"
	"testing"
	"time"

	"github.com/platinummonkey/plugin-portal/pkg/observability"
	"github.com/platinummonkey/plugin-portal/pkg/storage"
)

// TestGetEnv tests the getEnv helper function
func TestGetEnv(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue string
		envValue     string
		want         string
	}{
		{
			name:         "returns env value when set",
			key:          "TEST_VAR",
			defaultValue: "default",
			envValue:     "custom",
			want:         "custom",
		},
		{
			name:         "returns default when env not set",
			key:          "TEST_VAR_NOT_SET",
			defaultValue: "default",
			want:         "default",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				t.Setenv(tt.key, tt.envValue)
			}

			got := getEnv(tt.key, tt.defaultValue)
			if got != tt.want {
				t.Errorf("getEnv() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestGetEnvBool tests the getEnvBool helper function
func TestGetEnvBool(t *testing.T) {
	tests := []struct {
		name         string
		defaultValue bool
		envValue     string
		want         bool
	}{
		{name: "returns true for 'true'", envValue: "true", want: true},
		{name: "returns true for 'TRUE'", envValue: "TRUE", want: true},
		{name: "returns true for '1'", envValue: "1", want: true},
		{name: "returns false for 'false'", defaultValue: true, envValue: "false", want: false},
		{name: "returns false for garbage", defaultValue: true, envValue: "yes please", want: false},
		{name: "returns default when unset", defaultValue: true, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				t.Setenv("TEST_BOOL", tt.envValue)
			}

			if got := getEnvBool("TEST_BOOL", tt.defaultValue); got != tt.want {
				t.Errorf("getEnvBool() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestGetEnvNumeric tests the integer helpers fall back on parse errors
func TestGetEnvNumeric(t *testing.T) {
	t.Setenv("TEST_INT", "42")
	if got := getEnvInt("TEST_INT", 7); got != 42 {
		t.Errorf("getEnvInt() = %v, want 42", got)
	}

	t.Setenv("TEST_INT", "forty-two")
	if got := getEnvInt("TEST_INT", 7); got != 7 {
		t.Errorf("getEnvInt() = %v, want 7", got)
	}

	t.Setenv("TEST_INT64", "1099511627776")
	if got := getEnvInt64("TEST_INT64", 1); got != 1099511627776 {
		t.Errorf("getEnvInt64() = %v, want 1099511627776", got)
	}
}

// TestGetEnvDuration tests the getEnvDuration helper function
func TestGetEnvDuration(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		want     time.Duration
	}{
		{name: "parses minutes", envValue: "5m", want: 5 * time.Minute},
		{name: "parses compound", envValue: "1h30m", want: 90 * time.Minute},
		{name: "invalid falls back", envValue: "soon", want: time.Second},
		{name: "unset falls back", want: time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				t.Setenv("TEST_DURATION", tt.envValue)
			}
			if got := getEnvDuration("TEST_DURATION", time.Second); got != tt.want {
				t.Errorf("getEnvDuration() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestParseLogLevel tests log level parsing
func TestParseLogLevel(t *testing.T) {
	tests := map[string]observability.LogLevel{
		"debug":   observability.DebugLevel,
		"INFO":    observability.InfoLevel,
		"warn":    observability.WarnLevel,
		"warning": observability.WarnLevel,
		"error":   observability.ErrorLevel,
		"verbose": observability.InfoLevel,
	}
	for input, want := range tests {
		if got := parseLogLevel(input); got != want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", input, got, want)
		}
	}
}

// TestLoadConfig_Defaults tests that an empty environment yields a runnable in-memory config
func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Server.Port != "8080" || cfg.Server.HealthPort != "9090" {
		t.Errorf("ports = %s/%s, want 8080/9090", cfg.Server.Port, cfg.Server.HealthPort)
	}
	if cfg.Server.PublicBaseURL != "http://localhost:8080" {
		t.Errorf("PublicBaseURL = %s", cfg.Server.PublicBaseURL)
	}
	if cfg.Server.LoginRateLimit != 20 {
		t.Errorf("LoginRateLimit = %d, want 20", cfg.Server.LoginRateLimit)
	}
	if cfg.Storage.Type != storage.TypeMemory {
		t.Errorf("Storage.Type = %s, want memory", cfg.Storage.Type)
	}
	if cfg.Storage.SessionBackend != storage.SessionsMemory {
		t.Errorf("SessionBackend = %s, want memory", cfg.Storage.SessionBackend)
	}
	if cfg.Sessions.AccessTokenTTL != time.Hour {
		t.Errorf("AccessTokenTTL = %v, want 1h", cfg.Sessions.AccessTokenTTL)
	}
	if cfg.Sessions.RefreshTokenTTL != 720*time.Hour {
		t.Errorf("RefreshTokenTTL = %v, want 720h", cfg.Sessions.RefreshTokenTTL)
	}
	if cfg.Sessions.SweepSchedule != "@every 1m" {
		t.Errorf("SweepSchedule = %q", cfg.Sessions.SweepSchedule)
	}
	if !cfg.Seed.Enabled || cfg.Seed.File != "" {
		t.Errorf("Seed = %+v, want enabled with built-in data", cfg.Seed)
	}
	if cfg.Cache.Size != 1024 || cfg.Cache.TTL != 5*time.Minute {
		t.Errorf("Cache = %+v", cfg.Cache)
	}
	if cfg.Observability.OTelEnabled {
		t.Error("OTel should be disabled by default")
	}
	if cfg.Packages.SigningKey != "" {
		t.Error("SigningKey should default to empty")
	}
	if len(cfg.Server.CORSOrigins) != 0 {
		t.Errorf("CORSOrigins = %v, want none", cfg.Server.CORSOrigins)
	}
}

// TestLoadConfig_FromEnvironment tests that PORTAL_* variables are honoured
func TestLoadConfig_FromEnvironment(t *testing.T) {
	t.Setenv("PORTAL_PORT", "8443")
	t.Setenv("PORTAL_PUBLIC_BASE_URL", "https://plugins.example.com/")
	t.Setenv("PORTAL_STORAGE_TYPE", "postgres")
	t.Setenv("PORTAL_DATABASE_URL", "postgres://db/portal")
	t.Setenv("PORTAL_DATABASE_REPLICA_URLS", "postgres://r1/portal, postgres://r2/portal")
	t.Setenv("PORTAL_DB_MAX_CONNS", "50")
	t.Setenv("PORTAL_SESSION_BACKEND", "redis")
	t.Setenv("PORTAL_REDIS_URL", "redis://cache:6379/1")
	t.Setenv("PORTAL_BLOB_BACKEND", "s3")
	t.Setenv("PORTAL_S3_BUCKET", "packages")
	t.Setenv("PORTAL_S3_USE_PATH_STYLE", "true")
	t.Setenv("PORTAL_AUDIT_BACKEND", "database")
	t.Setenv("PORTAL_ACCESS_TOKEN_TTL", "15m")
	t.Setenv("PORTAL_SEED_ENABLED", "false")
	t.Setenv("PORTAL_CACHE_SIZE", "0")
	t.Setenv("PORTAL_LOG_LEVEL", "debug")
	t.Setenv("PORTAL_CORS_ORIGINS", "https://a.example.com,, https://b.example.com")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Server.Port != "8443" {
		t.Errorf("Port = %s", cfg.Server.Port)
	}
	if cfg.Server.PublicBaseURL != "https://plugins.example.com" {
		t.Errorf("PublicBaseURL = %s, want trailing slash trimmed", cfg.Server.PublicBaseURL)
	}
	if cfg.Storage.DatabaseURL != "postgres://db/portal" || cfg.Storage.MaxConns != 50 {
		t.Errorf("Storage = %+v", cfg.Storage)
	}
	if len(cfg.Storage.ReplicaURLs) != 2 || cfg.Storage.ReplicaURLs[1] != "postgres://r2/portal" {
		t.Errorf("ReplicaURLs = %v", cfg.Storage.ReplicaURLs)
	}
	if cfg.Storage.RedisURL != "redis://cache:6379/1" {
		t.Errorf("RedisURL = %s", cfg.Storage.RedisURL)
	}
	if cfg.Storage.S3.Bucket != "packages" || !cfg.Storage.S3.UsePathStyle {
		t.Errorf("S3 = %+v", cfg.Storage.S3)
	}
	if cfg.Sessions.AccessTokenTTL != 15*time.Minute {
		t.Errorf("AccessTokenTTL = %v", cfg.Sessions.AccessTokenTTL)
	}
	if cfg.Seed.Enabled {
		t.Error("seeding should be disabled")
	}
	if cfg.Cache.Size != 0 {
		t.Errorf("Cache.Size = %d", cfg.Cache.Size)
	}
	if cfg.Observability.LogLevel != observability.DebugLevel {
		t.Errorf("LogLevel = %v", cfg.Observability.LogLevel)
	}
	if len(cfg.Server.CORSOrigins) != 2 || cfg.Server.CORSOrigins[1] != "https://b.example.com" {
		t.Errorf("CORSOrigins = %v", cfg.Server.CORSOrigins)
	}
}

// TestConfig_Validate tests validation rules
func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Server: ServerConfig{
				Port:          "8080",
				HealthPort:    "9090",
				PublicBaseURL: "http://localhost:8080",
			},
			Storage: storage.DefaultConfig(),
			Sessions: SessionConfig{
				AccessTokenTTL:  time.Hour,
				RefreshTokenTTL: 24 * time.Hour,
				SweepSchedule:   "@every 1m",
			},
			Cache: CacheConfig{Size: 10, TTL: time.Minute},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "missing port", mutate: func(c *Config) { c.Server.Port = "" }, wantErr: "server port is required"},
		{name: "same ports", mutate: func(c *Config) { c.Server.HealthPort = "8080" }, wantErr: "must be different"},
		{name: "missing base URL", mutate: func(c *Config) { c.Server.PublicBaseURL = "" }, wantErr: "public base URL"},
		{name: "negative login limit", mutate: func(c *Config) { c.Server.LoginRateLimit = -1 }, wantErr: "login rate limit"},
		{name: "unknown storage", mutate: func(c *Config) { c.Storage.Type = "etcd" }, wantErr: "unknown storage type"},
		{name: "postgres without DSN", mutate: func(c *Config) { c.Storage.Type = storage.TypePostgres }, wantErr: "database URL is required"},
		{name: "redis without URL", mutate: func(c *Config) { c.Storage.SessionBackend = storage.SessionsRedis }, wantErr: "redis URL is required"},
		{name: "s3 without bucket", mutate: func(c *Config) { c.Storage.BlobBackend = storage.BlobsS3 }, wantErr: "S3 bucket is required"},
		{name: "zero access TTL", mutate: func(c *Config) { c.Sessions.AccessTokenTTL = 0 }, wantErr: "access token TTL"},
		{name: "negative refresh TTL", mutate: func(c *Config) { c.Sessions.RefreshTokenTTL = -time.Second }, wantErr: "refresh token TTL"},
		{name: "missing sweep schedule", mutate: func(c *Config) { c.Sessions.SweepSchedule = "" }, wantErr: "sweep schedule"},
		{name: "negative cache size", mutate: func(c *Config) { c.Cache.Size = -1 }, wantErr: "cache size"},
		{name: "cache without TTL", mutate: func(c *Config) { c.Cache.TTL = 0 }, wantErr: "cache TTL"},
		{name: "disabled cache ignores TTL", mutate: func(c *Config) { c.Cache = CacheConfig{} }},
		{
			name: "otel without endpoint",
			mutate: func(c *Config) {
				c.Observability.OTelEnabled = true
				c.Observability.OTelServiceName = "portal"
			},
			wantErr: "OpenTelemetry endpoint",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

// TestLoadConfig_InvalidEnvironment tests that validation failures surface from LoadConfig
func TestLoadConfig_InvalidEnvironment(t *testing.T) {
	t.Setenv("PORTAL_STORAGE_TYPE", "sqlite")

	_, err := LoadConfig()
	if err == nil || !strings.Contains(err.Error(), "configuration validation failed") {
		t.Fatalf("LoadConfig() error = %v, want validation failure", err)
	}
}
