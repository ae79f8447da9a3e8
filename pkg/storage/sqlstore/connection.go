package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// ConnectionConfig holds database connection configuration
type ConnectionConfig struct {
	Driver      string
	PrimaryURL  string
	ReplicaURLs []string
	MaxConns    int
	MinConns    int
	Timeout     time.Duration
	MaxLifetime time.Duration
	MaxIdleTime time.Duration
}

// ConnectionManager manages the primary connection and optional read replicas
type ConnectionManager struct {
	primary  *sql.DB
	replicas []*sql.DB
	current  uint32
	mu       sync.RWMutex
	config   ConnectionConfig
	dialect  Dialect
	logger   *logrus.Logger
}

// NewConnectionManager opens and pings the primary and any replicas.
// Replicas that cannot be reached are skipped with a warning.
func NewConnectionManager(config ConnectionConfig, logger *logrus.Logger) (*ConnectionManager, error) {
	dialect, err := DialectFor(config.Driver)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}
	if config.Timeout <= 0 {
		config.Timeout = 5 * time.Second
	}

	cm := &ConnectionManager{
		config:   config,
		dialect:  dialect,
		logger:   logger,
		replicas: make([]*sql.DB, 0),
	}

	primary, err := cm.open(config.PrimaryURL, config.MaxConns)
	if err != nil {
		return nil, fmt.Errorf("failed to open primary connection: %w", err)
	}
	cm.primary = primary

	// SQLite replicas make no sense; the file is the database.
	if dialect.Driver == DriverPostgres {
		for i, replicaURL := range config.ReplicaURLs {
			maxConns := config.MaxConns / 2
			if maxConns < 2 {
				maxConns = 2
			}
			replica, err := cm.open(replicaURL, maxConns)
			if err != nil {
				logger.WithError(err).WithField("replica", i).Warn("skipping unreachable replica")
				continue
			}
			cm.replicas = append(cm.replicas, replica)
		}
	}

	logger.WithFields(logrus.Fields{
		"driver":   dialect.Driver,
		"replicas": len(cm.replicas),
	}).Info("database connection manager initialized")
	return cm, nil
}

func (cm *ConnectionManager) open(dsn string, maxConns int) (*sql.DB, error) {
	if cm.dialect.Driver == DriverSQLite {
		dsn = sqliteDSN(dsn)
		// One writer at a time; a second connection would only wait on the file lock.
		maxConns = 1
	}
	db, err := sql.Open(cm.dialect.Driver, dsn)
	if err != nil {
		return nil, err
	}
	if maxConns > 0 {
		db.SetMaxOpenConns(maxConns)
	}
	if cm.config.MinConns > 0 {
		db.SetMaxIdleConns(cm.config.MinConns)
	}
	db.SetConnMaxLifetime(cm.config.MaxLifetime)
	db.SetConnMaxIdleTime(cm.config.MaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), cm.config.Timeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

// sqliteDSN adds the connection options the repositories rely on
func sqliteDSN(dsn string) string {
	params := []string{"_txlock=immediate", "_foreign_keys=on", "_busy_timeout=5000"}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	for _, p := range params {
		key := p[:strings.Index(p, "=")+1]
		if strings.Contains(dsn, key) {
			continue
		}
		dsn += sep + p
		sep = "&"
	}
	return dsn
}

// Dialect returns the SQL dialect of the primary
func (cm *ConnectionManager) Dialect() Dialect {
	return cm.dialect
}

// Primary returns the primary database connection (for writes)
func (cm *ConnectionManager) Primary() *sql.DB {
	return cm.primary
}

// Replica returns a read replica using round-robin selection.
// Falls back to primary if no replicas are available.
func (cm *ConnectionManager) Replica() *sql.DB {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	if len(cm.replicas) == 0 {
		return cm.primary
	}
	index := atomic.AddUint32(&cm.current, 1)
	return cm.replicas[int(index%uint32(len(cm.replicas)))]
}

// HealthCheck pings the primary and every replica
func (cm *ConnectionManager) HealthCheck(ctx context.Context) error {
	if err := cm.primary.PingContext(ctx); err != nil {
		return fmt.Errorf("primary unhealthy: %w", err)
	}

	cm.mu.RLock()
	replicas := make([]*sql.DB, len(cm.replicas))
	copy(replicas, cm.replicas)
	cm.mu.RUnlock()

	var unhealthy []string
	for i, replica := range replicas {
		if err := replica.PingContext(ctx); err != nil {
			unhealthy = append(unhealthy, fmt.Sprintf("replica-%d", i))
		}
	}
	if len(unhealthy) > 0 && len(unhealthy) == len(replicas) {
		return fmt.Errorf("all replicas unhealthy: %s", strings.Join(unhealthy, ", "))
	}
	return nil
}

// Migrate applies the schema on the primary
func (cm *ConnectionManager) Migrate(ctx context.Context) error {
	return Migrate(ctx, cm.primary, cm.dialect)
}

// Close closes all database connections
func (cm *ConnectionManager) Close() error {
	var errs []error
	if err := cm.primary.Close(); err != nil {
		errs = append(errs, fmt.Errorf("primary close error: %w", err))
	}

	cm.mu.Lock()
	replicas := cm.replicas
	cm.replicas = nil
	cm.mu.Unlock()

	for i, replica := range replicas {
		if err := replica.Close(); err != nil {
			errs = append(errs, fmt.Errorf("replica-%d close error: %w", i, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("connection close errors: %v", errs)
	}
	return nil
}

// ParseReplicaURLs parses a comma-separated list of replica URLs
func ParseReplicaURLs(replicaURLsStr string) []string {
	if replicaURLsStr == "" {
		return nil
	}
	urls := strings.Split(replicaURLsStr, ",")
	result := make([]string, 0, len(urls))
	for _, url := range urls {
		if trimmed := strings.TrimSpace(url); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// NewConnectionManagerWithDB wraps an already opened database
func NewConnectionManagerWithDB(db *sql.DB, driver string) (*ConnectionManager, error) {
	dialect, err := DialectFor(driver)
	if err != nil {
		return nil, err
	}
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return &ConnectionManager{
		primary:  db,
		replicas: make([]*sql.DB, 0),
		config:   ConnectionConfig{Driver: driver},
		dialect:  dialect,
		logger:   logger,
	}, nil
}
