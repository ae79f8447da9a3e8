// Package config provides application configuration management from environment variables.
//
// # Overview
//
// This package loads and validates configuration from PORTAL_* environment
// variables with sensible defaults for all settings. The defaults run the
// whole portal in memory.
//
// # Configuration Structure
//
// Server settings:
//
//	PORTAL_HOST="0.0.0.0"
//	PORTAL_PORT="8080"
//	PORTAL_HEALTH_PORT="9090"
//	PORTAL_PUBLIC_BASE_URL="https://plugins.example.com"
//	PORTAL_LOGIN_RATE_LIMIT="20"  # per client IP per minute, 0 disables
//	PORTAL_CORS_ORIGINS="https://portal.example.com"  # comma separated
//
// Storage settings:
//
//	PORTAL_STORAGE_TYPE="postgres"  # memory, sqlite, postgres
//	PORTAL_DATABASE_URL="postgres://localhost/portal?sslmode=disable"
//	PORTAL_DB_MAX_CONNS="20"
//
// Sessions:
//
//	PORTAL_SESSION_BACKEND="redis"  # memory, redis
//	PORTAL_REDIS_URL="redis://localhost:6379/0"
//	PORTAL_ACCESS_TOKEN_TTL="1h"
//	PORTAL_REFRESH_TOKEN_TTL="720h"
//
// Packages:
//
//	PORTAL_BLOB_BACKEND="s3"  # memory, filesystem, s3
//	PORTAL_S3_BUCKET="plugin-packages"
//	PORTAL_SIGNING_KEY="<base64 ed25519 key>"
//
// Audit:
//
//	PORTAL_AUDIT_BACKEND="database,file"  # memory, file, database; a list records to each
//	PORTAL_AUDIT_DIR="/var/log/portal"
//
// Observability:
//
//	PORTAL_LOG_LEVEL="info"
//	PORTAL_METRICS_ENABLED="true"
//	PORTAL_OTEL_ENABLED="true"
//	PORTAL_OTEL_ENDPOINT="otel-collector:4317"
//
// # Usage
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
//
// Invalid numeric or duration values fall back to their defaults. Validate
// rejects unknown backends, missing DSNs and non-positive token lifetimes.
package config
