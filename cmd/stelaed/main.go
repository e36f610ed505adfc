// Command stelaed runs the Stelae permission service: the HTTP API on one
// port and health probes plus Prometheus metrics on another.
package main

import (
	"context"
	"database/sql"
	"flag"
	"net/http"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/stelae/stelae/pkg/api"
	"github.com/stelae/stelae/pkg/audit"
	"github.com/stelae/stelae/pkg/authz"
	"github.com/stelae/stelae/pkg/cache"
	"github.com/stelae/stelae/pkg/config"
	"github.com/stelae/stelae/pkg/observability"
	"github.com/stelae/stelae/pkg/store"
	"github.com/stelae/stelae/pkg/store/postgres"
)

func main() {
	migrateOnly := flag.Bool("migrate", false, "Run database migrations and exit")
	warmProjects := flag.String("warm-projects", "", "Comma-separated project IRIs to pre-load into the cache on startup")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, nil)
	ctx := context.Background()

	db, err := postgres.Connect(ctx, cfg.Database)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to connect to PostgreSQL")
	}
	defer db.Close()

	if err := postgres.RunMigrations(ctx, db); err != nil {
		logrus.WithError(err).Fatal("Failed to run migrations")
	}
	if *migrateOnly {
		logrus.Info("Migrations complete")
		return
	}

	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
	}, logger)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize OpenTelemetry")
	}

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	doapCache, redisClient, err := buildDOAPCache(ctx, cfg.Cache)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize cache")
	}
	defer doapCache.Close()

	adminStore := postgres.NewAdministrativeStore(db)
	doapStore := store.NewCachedDOAPStore(postgres.NewDOAPStore(db), doapCache)
	members := postgres.NewMembershipProvider(db)

	service := authz.New(adminStore, doapStore, members, authz.Options{
		Logger:  logger,
		Metrics: metrics,
		Audit:   audit.NewDBStore(db),
	})

	if *warmProjects != "" {
		projects := strings.Split(*warmProjects, ",")
		if err := service.WarmCache(ctx, projects); err != nil {
			logger.WithError(err).Warn("Cache warm-up failed")
		} else {
			logger.Info("Cache warmed", "projects", len(projects))
		}
	}

	server := api.NewServer(service, logger, metrics)
	httpServer := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      server.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	healthServer := startHealthServer(cfg, db, redisClient, registry)

	go func() {
		logrus.WithField("addr", httpServer.Addr).Info("Starting Stelae permission service")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Fatal("HTTP server failed")
		}
	}()

	err = observability.WaitForShutdown(logger, httpServer, cfg.Server.ShutdownTimeout,
		func(ctx context.Context) error { return healthServer.Shutdown(ctx) },
		func(ctx context.Context) error { return observability.ShutdownOTel(ctx, providers, logger) },
	)
	if err != nil {
		logrus.WithError(err).Error("Shutdown finished with errors")
	}
}

// buildDOAPCache selects the cache backend. The redis client is returned
// separately so the health checker can ping it.
func buildDOAPCache(ctx context.Context, cfg config.CacheConfig) (cache.Cache[*store.DefaultObjectAccessPermission], *redis.Client, error) {
	switch cfg.Backend {
	case "redis":
		c, err := cache.NewRedis[*store.DefaultObjectAccessPermission](ctx, cache.RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   cfg.RedisPrefix,
			TTL:      cfg.TTL,
		})
		if err != nil {
			return nil, nil, err
		}
		return c, c.Client(), nil
	default:
		return cache.NewMemory[*store.DefaultObjectAccessPermission](cache.Config{
			MaxEntries: cfg.MaxEntries,
			TTL:        cfg.TTL,
		}), nil, nil
	}
}

// startHealthServer serves liveness/readiness probes and Prometheus
// metrics on the dedicated health port.
func startHealthServer(cfg *config.Config, db *sql.DB, redisClient *redis.Client, registry *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	observability.RegisterHealthRoutes(mux, observability.NewHealthChecker(db, redisClient))
	if cfg.Observability.MetricsEnabled {
		mux.Handle("/metrics", observability.Handler(registry))
	}

	healthServer := &http.Server{
		Addr:        cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler:     mux,
		ReadTimeout: 5 * time.Second,
	}
	go func() {
		logrus.WithField("addr", healthServer.Addr).Info("Starting health/metrics server")
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Error("Health server failed")
		}
	}()
	return healthServer
}
