package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/platinummonkey/plugin-portal/pkg/observability"
	"github.com/platinummonkey/plugin-portal/pkg/storage"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Storage configuration
	Storage storage.Config

	// Session configuration
	Sessions SessionConfig

	// Package signing
	Packages PackagesConfig

	// Seed data
	Seed SeedConfig

	// Public metadata cache
	Cache CacheConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string

	// PublicBaseURL prefixes generated package URLs
	PublicBaseURL string

	// LoginRateLimit caps login and refresh attempts per client IP per minute. Zero disables it.
	LoginRateLimit int

	// CORSOrigins lists browser origins allowed to call the API. Empty disables CORS headers.
	CORSOrigins []string
}

// SessionConfig holds token lifetimes and the expiry sweep schedule
type SessionConfig struct {
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	SweepSchedule   string
}

// PackagesConfig holds the package signing key
type PackagesConfig struct {
	// SigningKey is a base64 ed25519 private key or seed. Empty means ephemeral.
	SigningKey string
}

// SeedConfig controls startup seeding
type SeedConfig struct {
	Enabled bool
	File    string
}

// CacheConfig sizes the public metadata cache. Size 0 disables it.
type CacheConfig struct {
	Size int
	TTL  time.Duration
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	// Logging
	LogLevel observability.LogLevel

	// Metrics
	MetricsEnabled bool

	// OpenTelemetry
	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool // Use insecure gRPC connection
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Storage:       loadStorageConfig(),
		Sessions:      loadSessionConfig(),
		Packages:      PackagesConfig{SigningKey: getEnv("PORTAL_SIGNING_KEY", "")},
		Seed:          loadSeedConfig(),
		Cache:         loadCacheConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadServerConfig loads server configuration from environment
func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("PORTAL_HOST", "0.0.0.0"),
		Port:            getEnv("PORTAL_PORT", "8080"),
		ReadTimeout:     getEnvDuration("PORTAL_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("PORTAL_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("PORTAL_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("PORTAL_SHUTDOWN_TIMEOUT", 30*time.Second),
		HealthPort:      getEnv("PORTAL_HEALTH_PORT", "9090"),
		PublicBaseURL:   strings.TrimRight(getEnv("PORTAL_PUBLIC_BASE_URL", "http://localhost:8080"), "/"),
		LoginRateLimit:  getEnvInt("PORTAL_LOGIN_RATE_LIMIT", 20),
		CORSOrigins:     getEnvList("PORTAL_CORS_ORIGINS"),
	}
}

// loadStorageConfig loads storage configuration from environment
func loadStorageConfig() storage.Config {
	cfg := storage.DefaultConfig()

	cfg.Type = getEnv("PORTAL_STORAGE_TYPE", cfg.Type)

	// SQL config
	cfg.DatabaseURL = getEnv("PORTAL_DATABASE_URL", "")
	cfg.ReplicaURLs = getEnvList("PORTAL_DATABASE_REPLICA_URLS")
	if maxConns := getEnvInt("PORTAL_DB_MAX_CONNS", 0); maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	if minConns := getEnvInt("PORTAL_DB_MIN_CONNS", 0); minConns > 0 {
		cfg.MinConns = minConns
	}
	if timeout := getEnvDuration("PORTAL_DB_TIMEOUT", 0); timeout > 0 {
		cfg.ConnTimeout = timeout
	}
	if lifetime := getEnvDuration("PORTAL_DB_CONN_LIFETIME", 0); lifetime > 0 {
		cfg.MaxLifetime = lifetime
	}

	// Sessions
	cfg.SessionBackend = getEnv("PORTAL_SESSION_BACKEND", cfg.SessionBackend)
	cfg.RedisURL = getEnv("PORTAL_REDIS_URL", "")
	cfg.RedisPassword = getEnv("PORTAL_REDIS_PASSWORD", "")
	cfg.RedisDB = getEnvInt("PORTAL_REDIS_DB", 0)
	if poolSize := getEnvInt("PORTAL_REDIS_POOL_SIZE", 0); poolSize > 0 {
		cfg.RedisPoolSize = poolSize
	}

	// Package blobs
	cfg.BlobBackend = getEnv("PORTAL_BLOB_BACKEND", cfg.BlobBackend)
	cfg.BlobDir = getEnv("PORTAL_BLOB_DIR", "")
	cfg.S3.Endpoint = getEnv("PORTAL_S3_ENDPOINT", "")
	cfg.S3.Region = getEnv("PORTAL_S3_REGION", "us-east-1")
	cfg.S3.Bucket = getEnv("PORTAL_S3_BUCKET", "")
	cfg.S3.AccessKey = getEnv("PORTAL_S3_ACCESS_KEY", "")
	cfg.S3.SecretKey = getEnv("PORTAL_S3_SECRET_KEY", "")
	cfg.S3.UsePathStyle = getEnvBool("PORTAL_S3_USE_PATH_STYLE", false)

	// Audit
	cfg.AuditBackend = getEnv("PORTAL_AUDIT_BACKEND", cfg.AuditBackend)
	cfg.AuditDir = getEnv("PORTAL_AUDIT_DIR", "")
	if maxSize := getEnvInt64("PORTAL_AUDIT_MAX_SIZE", 0); maxSize > 0 {
		cfg.AuditMaxSize = maxSize
	}
	if maxFiles := getEnvInt("PORTAL_AUDIT_MAX_FILES", 0); maxFiles > 0 {
		cfg.AuditMaxFiles = maxFiles
	}

	return cfg
}

// loadSessionConfig loads token lifetimes from environment
func loadSessionConfig() SessionConfig {
	return SessionConfig{
		AccessTokenTTL:  getEnvDuration("PORTAL_ACCESS_TOKEN_TTL", time.Hour),
		RefreshTokenTTL: getEnvDuration("PORTAL_REFRESH_TOKEN_TTL", 720*time.Hour),
		SweepSchedule:   getEnv("PORTAL_SESSION_SWEEP_SCHEDULE", "@every 1m"),
	}
}

func loadSeedConfig() SeedConfig {
	return SeedConfig{
		Enabled: getEnvBool("PORTAL_SEED_ENABLED", true),
		File:    getEnv("PORTAL_SEED_FILE", ""),
	}
}

func loadCacheConfig() CacheConfig {
	return CacheConfig{
		Size: getEnvInt("PORTAL_CACHE_SIZE", 1024),
		TTL:  getEnvDuration("PORTAL_CACHE_TTL", 5*time.Minute),
	}
}

// loadObservabilityConfig loads observability configuration from environment
func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:           parseLogLevel(getEnv("PORTAL_LOG_LEVEL", "info")),
		MetricsEnabled:     getEnvBool("PORTAL_METRICS_ENABLED", true),
		OTelEnabled:        getEnvBool("PORTAL_OTEL_ENABLED", false),
		OTelEndpoint:       getEnv("PORTAL_OTEL_ENDPOINT", "localhost:4317"),
		OTelServiceName:    getEnv("PORTAL_SERVICE_NAME", "plugin-portal"),
		OTelServiceVersion: getEnv("PORTAL_SERVICE_VERSION", "1.0.0"),
		OTelInsecure:       getEnvBool("PORTAL_OTEL_INSECURE", true),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate server config
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}
	if c.Server.PublicBaseURL == "" {
		return fmt.Errorf("public base URL is required")
	}
	if c.Server.LoginRateLimit < 0 {
		return fmt.Errorf("login rate limit must not be negative")
	}

	if err := c.Storage.Validate(); err != nil {
		return err
	}

	if c.Sessions.AccessTokenTTL <= 0 {
		return fmt.Errorf("access token TTL must be positive")
	}
	if c.Sessions.RefreshTokenTTL <= 0 {
		return fmt.Errorf("refresh token TTL must be positive")
	}
	if c.Sessions.SweepSchedule == "" {
		return fmt.Errorf("session sweep schedule is required")
	}

	if c.Cache.Size < 0 {
		return fmt.Errorf("cache size must not be negative")
	}
	if c.Cache.Size > 0 && c.Cache.TTL <= 0 {
		return fmt.Errorf("cache TTL must be positive when the cache is enabled")
	}

	// Validate OpenTelemetry config
	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// parseLogLevel parses a log level string
func parseLogLevel(level string) observability.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return observability.DebugLevel
	case "info":
		return observability.InfoLevel
	case "warn", "warning":
		return observability.WarnLevel
	case "error":
		return observability.ErrorLevel
	default:
		return observability.InfoLevel
	}
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
// getEnvList splits a comma separated variable, dropping empty entries
func getEnvList(key string) []string {
	var out []string
	for _, v := range strings.Split(os.Getenv(key), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvInt64 returns an int64 environment variable or a default
func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
