package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/plugin-portal/pkg/audit"
	"github.com/platinummonkey/plugin-portal/pkg/auth"
	"github.com/platinummonkey/plugin-portal/pkg/packages"
	"github.com/platinummonkey/plugin-portal/pkg/registry"
	"github.com/platinummonkey/plugin-portal/pkg/storage/memory"
	"github.com/platinummonkey/plugin-portal/pkg/storage/redisstore"
	"github.com/platinummonkey/plugin-portal/pkg/storage/sqlstore"
	"github.com/platinummonkey/plugin-portal/pkg/users"
)

// Record store types
const (
	TypeMemory   = "memory"
	TypeSQLite   = "sqlite"
	TypePostgres = "postgres"
)

// Session backends
const (
	SessionsMemory = "memory"
	SessionsRedis  = "redis"
)

// Blob backends
const (
	BlobsMemory     = "memory"
	BlobsFilesystem = "filesystem"
	BlobsS3         = "s3"
)

// Audit backends
const (
	AuditMemory   = "memory"
	AuditFile     = "file"
	AuditDatabase = "database"
)

// Config selects and configures every backend
type Config struct {
	Type string

	// SQL config
	DatabaseURL string
	ReplicaURLs []string
	MaxConns    int
	MinConns    int
	ConnTimeout time.Duration
	MaxLifetime time.Duration

	SessionBackend string
	RedisURL       string
	RedisPassword  string
	RedisDB        int
	RedisPoolSize  int

	BlobBackend string
	BlobDir     string
	S3          packages.S3Config

	AuditBackend  string
	AuditDir      string
	AuditMaxSize  int64
	AuditMaxFiles int
}

// auditBackends splits AuditBackend; "database,file" records to both and lists from the first
func (c Config) auditBackends() []string {
	var out []string
	for _, b := range strings.Split(c.AuditBackend, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	if len(out) == 0 {
		out = []string{AuditMemory}
	}
	return out
}

// DefaultConfig returns an all in-memory configuration
func DefaultConfig() Config {
	return Config{
		Type:           TypeMemory,
		MaxConns:       20,
		MinConns:       2,
		ConnTimeout:    10 * time.Second,
		MaxLifetime:    30 * time.Minute,
		SessionBackend: SessionsMemory,
		RedisPoolSize:  10,
		BlobBackend:    BlobsMemory,
		AuditBackend:   AuditMemory,
		AuditMaxSize:   100 * 1024 * 1024,
		AuditMaxFiles:  10,
	}
}

// Validate checks backend names and their required settings
func (c Config) Validate() error {
	switch c.Type {
	case TypeMemory:
	case TypeSQLite, TypePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("database URL is required for storage type %q", c.Type)
		}
	default:
		return fmt.Errorf("unknown storage type %q", c.Type)
	}
	switch c.SessionBackend {
	case SessionsMemory:
	case SessionsRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("redis URL is required for the redis session backend")
		}
	default:
		return fmt.Errorf("unknown session backend %q", c.SessionBackend)
	}
	switch c.BlobBackend {
	case BlobsMemory:
	case BlobsFilesystem:
		if c.BlobDir == "" {
			return fmt.Errorf("blob directory is required for the filesystem blob backend")
		}
	case BlobsS3:
		if c.S3.Bucket == "" {
			return fmt.Errorf("S3 bucket is required for the s3 blob backend")
		}
	default:
		return fmt.Errorf("unknown blob backend %q", c.BlobBackend)
	}
	for _, backend := range c.auditBackends() {
		switch backend {
		case AuditMemory:
		case AuditFile:
			if c.AuditDir == "" {
				return fmt.Errorf("audit directory is required for the file audit backend")
			}
		case AuditDatabase:
			if c.Type == TypeMemory {
				return fmt.Errorf("database audit backend requires a sqlite or postgres storage type")
			}
		default:
			return fmt.Errorf("unknown audit backend %q", backend)
		}
	}
	return nil
}

// HealthChecker is implemented by backends with a remote dependency
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Backends holds the opened persistence layer
type Backends struct {
	Plugins  registry.Repository
	Users    users.Store
	Sessions auth.SessionStore
	Blobs    packages.BlobStore
	Audit    audit.Logger

	// SQL is set for sqlite and postgres record stores
	SQL *sqlstore.ConnectionManager
	// Redis is set for the redis session backend
	Redis *redisstore.SessionStore

	checks  map[string]HealthChecker
	closers []io.Closer
}

// Open creates every backend described by cfg. On error everything opened so far is closed.
func Open(ctx context.Context, cfg Config, logger *logrus.Logger) (b *Backends, err error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}

	b = &Backends{checks: make(map[string]HealthChecker)}
	defer func() {
		if err != nil {
			b.Close()
			b = nil
		}
	}()

	if err := b.openRecords(ctx, cfg, logger); err != nil {
		return nil, err
	}
	if err := b.openSessions(cfg); err != nil {
		return nil, err
	}
	if err := b.openBlobs(ctx, cfg); err != nil {
		return nil, err
	}
	if err := b.openAudit(cfg); err != nil {
		return nil, err
	}

	logger.WithFields(logrus.Fields{
		"storage":  cfg.Type,
		"sessions": cfg.SessionBackend,
		"blobs":    cfg.BlobBackend,
		"audit":    cfg.AuditBackend,
	}).Info("storage backends opened")
	return b, nil
}

func (b *Backends) openRecords(ctx context.Context, cfg Config, logger *logrus.Logger) error {
	if cfg.Type == TypeMemory {
		b.Plugins = memory.NewPluginRepository()
		b.Users = memory.NewUserStore()
		return nil
	}

	driver := sqlstore.DriverPostgres
	if cfg.Type == TypeSQLite {
		driver = sqlstore.DriverSQLite
	}
	cm, err := sqlstore.NewConnectionManager(sqlstore.ConnectionConfig{
		Driver:      driver,
		PrimaryURL:  cfg.DatabaseURL,
		ReplicaURLs: cfg.ReplicaURLs,
		MaxConns:    cfg.MaxConns,
		MinConns:    cfg.MinConns,
		Timeout:     cfg.ConnTimeout,
		MaxLifetime: cfg.MaxLifetime,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", cfg.Type, err)
	}
	b.closers = append(b.closers, cm)
	if err := cm.Migrate(ctx); err != nil {
		return err
	}
	b.SQL = cm
	b.checks["database"] = cm
	b.Plugins = sqlstore.NewPluginRepository(cm)
	b.Users = sqlstore.NewUserStore(cm)
	return nil
}

type redisHealth struct{ store *redisstore.SessionStore }

func (r redisHealth) HealthCheck(ctx context.Context) error { return r.store.Ping(ctx) }

func (b *Backends) openSessions(cfg Config) error {
	if cfg.SessionBackend == SessionsMemory {
		b.Sessions = auth.NewMemorySessionStore()
		return nil
	}
	store, err := redisstore.NewSessionStore(redisstore.Config{
		URL:      cfg.RedisURL,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		PoolSize: cfg.RedisPoolSize,
	})
	if err != nil {
		return err
	}
	b.closers = append(b.closers, store)
	b.Redis = store
	b.Sessions = store
	b.checks["redis"] = redisHealth{store}
	return nil
}

func (b *Backends) openBlobs(ctx context.Context, cfg Config) error {
	switch cfg.BlobBackend {
	case BlobsFilesystem:
		fs, err := packages.NewFileSystemBlobStore(cfg.BlobDir)
		if err != nil {
			return err
		}
		b.Blobs = fs
	case BlobsS3:
		s3, err := packages.NewS3BlobStore(ctx, cfg.S3)
		if err != nil {
			return err
		}
		b.Blobs = s3
		b.checks["s3"] = s3
	default:
		b.Blobs = packages.NewMemoryBlobStore()
	}
	return nil
}

func (b *Backends) openAudit(cfg Config) error {
	var loggers []audit.Logger
	for _, backend := range cfg.auditBackends() {
		l, err := b.openAuditBackend(cfg, backend)
		if err != nil {
			for _, opened := range loggers {
				opened.Close()
			}
			return err
		}
		loggers = append(loggers, l)
	}
	if len(loggers) == 1 {
		b.Audit = loggers[0]
	} else {
		b.Audit = audit.NewMultiLogger(loggers...)
	}
	b.closers = append(b.closers, b.Audit)
	return nil
}

func (b *Backends) openAuditBackend(cfg Config, backend string) (audit.Logger, error) {
	switch backend {
	case AuditFile:
		fl, err := audit.NewFileLogger(audit.FileLoggerConfig{
			BasePath: cfg.AuditDir,
			Rotate:   cfg.AuditMaxSize > 0,
			MaxSize:  cfg.AuditMaxSize,
			MaxFiles: cfg.AuditMaxFiles,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open audit log: %w", err)
		}
		return fl, nil
	case AuditDatabase:
		return audit.NewDBLogger(b.SQL.Primary())
	default:
		return audit.NewMemoryLogger(), nil
	}
}

// HealthCheck pings every remote backend and reports the first failure
func (b *Backends) HealthCheck(ctx context.Context) error {
	for name, check := range b.checks {
		if err := check.HealthCheck(ctx); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

// Checks returns the named health checks
func (b *Backends) Checks() map[string]HealthChecker {
	out := make(map[string]HealthChecker, len(b.checks))
	for k, v := range b.checks {
		out[k] = v
	}
	return out
}

// Close releases backends in reverse order of opening
func (b *Backends) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	b.closers = nil
	return errors.Join(errs...)
}
