package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/plugin-portal/pkg/api"
	"github.com/platinummonkey/plugin-portal/pkg/auth"
	"github.com/platinummonkey/plugin-portal/pkg/config"
	"github.com/platinummonkey/plugin-portal/pkg/httputil"
	"github.com/platinummonkey/plugin-portal/pkg/middleware"
	"github.com/platinummonkey/plugin-portal/pkg/observability"
	"github.com/platinummonkey/plugin-portal/pkg/packages"
	"github.com/platinummonkey/plugin-portal/pkg/registry"
	"github.com/platinummonkey/plugin-portal/pkg/seed"
	"github.com/platinummonkey/plugin-portal/pkg/storage"
	"github.com/platinummonkey/plugin-portal/pkg/users"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Error("Plugin portal exited with error")
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *observability.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logrusLogger := observability.NewLogrus(cfg.Observability.LogLevel, os.Stdout)
	shutdown := observability.NewShutdownManager(logger, cfg.Server.ShutdownTimeout)

	backends, err := storage.Open(ctx, cfg.Storage, logrusLogger)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	shutdown.RegisterShutdownFunc(func(context.Context) error { return backends.Close() })

	signer, err := loadSigner(cfg.Packages.SigningKey, logger)
	if err != nil {
		return err
	}

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(promRegistry)
	if backends.SQL != nil {
		if err := metrics.RegisterDBStats(backends.SQL.Primary(), "portal"); err != nil {
			logger.WithError(err).Warn("Failed to register database pool metrics")
		}
	}

	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}
	if providers != nil {
		otelMetrics, err := observability.NewOTelMetrics(providers.MeterProvider)
		if err != nil {
			return fmt.Errorf("failed to create OpenTelemetry instruments: %w", err)
		}
		metrics.AttachOTel(otelMetrics)
		shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
			return observability.ShutdownOTel(ctx, providers, logger)
		})
	}

	reg, err := registry.NewService(registry.ServiceConfig{
		Repository:     backends.Plugins,
		Packages:       packages.NewStore(backends.Blobs, signer),
		Audit:          backends.Audit,
		Cache:          registry.NewPublicCache(cfg.Cache.Size, cfg.Cache.TTL, metrics),
		Observer:       metrics,
		Logger:         logrusLogger,
		PackageBaseURL: cfg.Server.PublicBaseURL + api.BasePath,
	})
	if err != nil {
		return fmt.Errorf("failed to create registry service: %w", err)
	}

	sessions := auth.NewSessionManager(backends.Sessions, auth.SessionConfig{
		AccessTokenTTL:  cfg.Sessions.AccessTokenTTL,
		RefreshTokenTTL: cfg.Sessions.RefreshTokenTTL,
	})
	accounts, err := users.NewService(users.ServiceConfig{
		Store:    backends.Users,
		Sessions: sessions,
		Audit:    backends.Audit,
		Orphaner: reg,
		Observer: metrics,
		Logger:   logrusLogger,
	})
	if err != nil {
		return fmt.Errorf("failed to create account service: %w", err)
	}

	if cfg.Seed.Enabled {
		doc, err := seed.LoadFile(cfg.Seed.File)
		if err != nil {
			return err
		}
		if _, err := seed.NewSeeder(accounts, reg, logrusLogger).Apply(ctx, doc); err != nil {
			return fmt.Errorf("failed to seed portal: %w", err)
		}
	}

	janitor := auth.NewSessionJanitor(sessions, cfg.Sessions.SweepSchedule, logrusLogger)
	if err := janitor.Start(); err != nil {
		return err
	}
	shutdown.RegisterShutdownFunc(janitor.Stop)

	server, err := api.NewServer(api.Config{
		Registry:     reg,
		Users:        accounts,
		Audit:        backends.Audit,
		Signer:       signer,
		LoginLimiter: loginLimiter(ctx, cfg, backends, logrusLogger),
	})
	if err != nil {
		return fmt.Errorf("failed to create API server: %w", err)
	}

	var handler http.Handler = server
	handler = observability.HTTPMetricsMiddleware(metrics)(handler)
	handler = middleware.RequestLogger(logger)(handler)
	handler = httputil.RequestIDMiddleware(handler)
	if len(cfg.Server.CORSOrigins) > 0 {
		handler = httputil.CORSMiddleware(cfg.Server.CORSOrigins)(handler)
	}
	handler = httputil.RecoveryMiddleware(logger)(handler)
	if providers != nil {
		handler = otelhttp.NewHandler(handler, "plugin-portal")
	}

	apiServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	healthServer := &http.Server{
		Addr:        net.JoinHostPort(cfg.Server.Host, cfg.Server.HealthPort),
		Handler:     healthMux(cfg, backends, promRegistry),
		ReadTimeout: cfg.Server.ReadTimeout,
	}
	shutdown.AddServer(apiServer)
	shutdown.AddServer(healthServer)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return serve(apiServer, logger, "API") })
	g.Go(func() error { return serve(healthServer, logger, "health") })
	g.Go(func() error { return shutdown.WaitForShutdown(gctx) })
	return g.Wait()
}

// serve runs srv until it is shut down
func serve(srv *http.Server, logger *observability.Logger, name string) error {
	logger.WithField("addr", srv.Addr).Infof("Starting %s server", name)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("%s server failed: %w", name, err)
	}
	return nil
}

// loadSigner parses the configured signing key or generates an ephemeral one
func loadSigner(encoded string, logger *observability.Logger) (*packages.Signer, error) {
	if encoded != "" {
		signer, err := packages.ParseSigner(encoded)
		if err != nil {
			return nil, fmt.Errorf("invalid signing key: %w", err)
		}
		return signer, nil
	}
	signer, err := packages.GenerateSigner()
	if err != nil {
		return nil, fmt.Errorf("failed to generate signing key: %w", err)
	}
	logger.Warn("No signing key configured, package signatures will not survive a restart")
	return signer, nil
}

// loginLimiter shares counters through redis when sessions live there
func loginLimiter(ctx context.Context, cfg *config.Config, backends *storage.Backends, logger *logrus.Logger) middleware.Limiter {
	if cfg.Server.LoginRateLimit == 0 {
		return nil
	}
	limits := middleware.LoginRateLimitConfig(cfg.Server.LoginRateLimit)
	if backends.Redis != nil {
		logger.Info("Using redis login rate limiter")
		return middleware.NewDistributedRateLimiter(backends.Redis.Client(), limits, "")
	}
	limiter := middleware.NewRateLimiter(limits)
	limiter.StartCleanup(ctx)
	return limiter
}

func healthMux(cfg *config.Config, backends *storage.Backends, promRegistry *prometheus.Registry) *http.ServeMux {
	checker := observability.NewHealthChecker(cfg.Observability.OTelServiceVersion)
	for name, check := range backends.Checks() {
		checker.AddCheck(name, check, true)
	}

	mux := http.NewServeMux()
	observability.RegisterHealthRoutes(mux, checker)
	if cfg.Observability.MetricsEnabled {
		observability.RegisterMetricsEndpoint(mux, promRegistry)
	}
	return mux
}
