// Package observability provides structured logging, Prometheus metrics, and OpenTelemetry tracing.
//
// # Overview
//
// This package centralizes the portal's observability infrastructure: JSON
// logging, metrics collection, health checks, distributed tracing and
// graceful shutdown.
//
// # Structured Logging
//
// Create logger:
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("plugin_id", id).Info("Plugin published")
//
// Context-aware logging. The request logger middleware attaches a field set
// that inner layers fill in; FromContext adds the request id and those fields:
//
//	observability.AddRequestField(ctx, "plugin_id", id)
//	observability.FromContext(ctx).WithError(err).Error("Request failed")
//
// Domain services log through logrus; NewLogrus builds one at the same level.
//
// # Prometheus Metrics
//
// Metrics implements the registry and login observers, so services report
// transitions, downloads, cache events and logins without importing Prometheus:
//
//	metrics := observability.NewMetrics(prometheus.NewRegistry())
//	router.Use(observability.HTTPMetricsMiddleware(metrics))
//
// # Health Checks
//
//	checker := observability.NewHealthChecker(version)
//	checker.AddCheck("database", backends.SQL, true)
//	observability.RegisterHealthRoutes(mux, checker)
//
// # OpenTelemetry
//
//	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
//		Enabled:      true,
//		ServiceName:  "plugin-portal",
//		Endpoint:     "otel-collector:4317",
//	}, logger)
//	defer observability.ShutdownOTel(ctx, providers, logger)
//
// # Related Packages
//
//   - pkg/config: Observability configuration
//   - pkg/middleware: Request logging middleware
package observability
