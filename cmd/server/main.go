// @title           Component Request Tracker API
// @version         1.0.0
// @description     Tracks UI component requests submitted from the dashboard and the Figma plugin.
// @basePath        /
// @schemes         http https
// @securityDefinitions.apiKey  Bearer
// @in                          header
// @name                        Authorization
// @description                 "API key issued by POST /api/api-keys: 'Bearer {api_key}'"
//
// @tag.name         System
// @tag.description  Health and version endpoints.
//
// @tag.name         Observability
// @tag.description  Prometheus metrics are served on a dedicated side-channel port (default: 9090) that is separate from the main API server. Configure the port with CRS_TELEMETRY_METRICS_PROMETHEUS_PORT. The endpoint path is always GET /metrics and is not served by the Gin router.

// Package main is the entry point for the component request tracker server binary.
// It dispatches three subcommands (serve, migrate and version) via a simple switch
// on os.Args so the binary's full CLI surface is readable in one place.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/component-request-system/crs/internal/api"
	"github.com/component-request-system/crs/internal/config"
	"github.com/component-request-system/crs/internal/db"
	"github.com/component-request-system/crs/internal/db/repositories"
	"github.com/component-request-system/crs/internal/kv"
	"github.com/component-request-system/crs/internal/safego"
	"github.com/component-request-system/crs/internal/sequence"
	"github.com/component-request-system/crs/internal/services"
	"github.com/component-request-system/crs/internal/store/memory"
	"github.com/component-request-system/crs/internal/telemetry"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	command := "serve"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	if command == "version" {
		fmt.Printf("Component Request Tracker %s\n", api.Version)
		return nil
	}

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	// Initialise structured logging as early as possible so all subsequent output
	// uses the configured format and level.
	telemetry.SetupLogger(cfg.Logging.Format, cfg.Logging.Level)

	switch command {
	case "serve":
		return serve(cfg)
	case "migrate":
		if len(os.Args) < 3 {
			return fmt.Errorf("usage: %s migrate <up|down>", os.Args[0])
		}
		return runMigrations(cfg, os.Args[2])
	default:
		return fmt.Errorf("unknown command: %s\nAvailable commands: serve, migrate, version", command)
	}
}

func serve(cfg *config.Config) error {
	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stopCollectors := context.WithCancel(context.Background())
	defer stopCollectors()

	deps := api.Dependencies{Background: &safego.Group{}}
	var numbers requestNumbers

	switch cfg.Database.Driver {
	case config.DriverMemory:
		slog.Warn("using in-memory store; data is lost on restart")
		store := memory.New()
		deps.Store = store
		deps.Sequence = store
		numbers = store
	default:
		database, err := connectDatabase(ctx, cfg)
		if err != nil {
			return err
		}
		defer database.Close()

		if cfg.Database.AutoMigrate {
			if err := migrateUp(database); err != nil {
				return err
			}
		}

		telemetry.StartDBStatsCollector(ctx, database, telemetry.DBStatsInterval)

		repos := repositories.New(database)
		deps.Store = repos
		deps.Sequence = repos
		numbers = repos
		deps.DB = database
	}

	if cfg.Redis.Enabled() {
		rdb, err := kv.Connect(ctx, kv.Options{
			URL:      cfg.Redis.URL,
			Address:  cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer rdb.Close()
		slog.Info("connected to redis")
		deps.Redis = rdb
	}

	seq, err := sequenceAllocator(ctx, cfg, numbers, deps.Redis)
	if err != nil {
		return err
	}
	deps.Sequence = seq

	// Start Prometheus metrics endpoint on a dedicated port so it is not reachable
	// through the public API ingress path.
	var metricsServer *http.Server
	if cfg.Telemetry.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Telemetry.Metrics.PrometheusPort),
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		}
		safego.Go(func() {
			slog.Info("starting Prometheus metrics server", "addr", metricsServer.Addr)
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server error", "error", err)
			}
		})
	}

	router, bgServices, err := api.NewRouter(cfg, deps)
	if err != nil {
		return fmt.Errorf("failed to build router: %w", err)
	}

	server := &http.Server{
		Addr:         cfg.Server.GetAddress(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	safego.Go(func() {
		slog.Info("starting server",
			"addr", server.Addr,
			"database", cfg.Database.Driver,
			"sequence", cfg.Sequence.Backend,
			"tls", cfg.Security.TLS.Enabled,
		)
		var err error
		if cfg.Security.TLS.Enabled {
			err = server.ListenAndServeTLS(cfg.Security.TLS.CertFile, cfg.Security.TLS.KeyFile)
		} else {
			err = server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	})

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		slog.Info("shutting down server", "signal", sig.String())
	case err := <-serverErr:
		bgServices.Shutdown()
		return fmt.Errorf("failed to start server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	if metricsServer != nil {
		_ = metricsServer.Shutdown(shutdownCtx)
	}

	// Stop background jobs and rate limiter goroutines, then let pending
	// audit and last-used writes finish before the store closes.
	bgServices.Shutdown()
	if err := deps.Background.Wait(shutdownCtx); err != nil {
		slog.Warn("background writes did not finish before shutdown", "error", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

// requestNumbers is a store's own allocator plus the highest number it holds
type requestNumbers interface {
	services.SequenceAllocator
	MaxRequestNumber(ctx context.Context) (int64, error)
}

// sequenceAllocator picks where request numbers come from. The store's own
// allocator serves the postgres and memory backends. A Redis counter is first
// raised past the highest stored id so a reset or newly introduced counter
// never reissues an existing request id.
func sequenceAllocator(ctx context.Context, cfg *config.Config, store requestNumbers, rdb *redis.Client) (services.SequenceAllocator, error) {
	switch cfg.Sequence.Backend {
	case config.SequenceRedis:
		if rdb == nil {
			return nil, fmt.Errorf("sequence backend redis requires a redis connection")
		}
		alloc := sequence.NewRedisAllocator(rdb, cfg.Sequence.RedisKey)
		highest, err := store.MaxRequestNumber(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to read highest request number: %w", err)
		}
		counter, err := alloc.EnsureAtLeast(ctx, highest)
		if err != nil {
			return nil, fmt.Errorf("failed to seed redis sequence: %w", err)
		}
		slog.Info("allocating request numbers from redis",
			"key", cfg.Sequence.RedisKey, "highest_stored", highest, "counter", counter)
		return alloc, nil
	default:
		return store, nil
	}
}

func connectDatabase(ctx context.Context, cfg *config.Config) (*sqlx.DB, error) {
	slog.Info("connecting to database",
		"host", cfg.Database.Host,
		"port", cfg.Database.Port,
		"name", cfg.Database.Name,
		"user", cfg.Database.User,
		"sslmode", cfg.Database.SSLMode,
	)
	database, err := db.Connect(ctx, cfg.Database.GetDSN(), db.PoolOptions{
		MaxOpenConns:    cfg.Database.MaxConnections,
		MaxIdleConns:    cfg.Database.MinIdleConnections,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	slog.Info("connected to database")
	return database, nil
}

func migrateUp(database *sqlx.DB) error {
	slog.Info("running database migrations")
	if err := db.RunMigrations(database.DB, "up"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	version, dirty, err := db.GetMigrationVersion(database.DB)
	if err != nil {
		slog.Warn("failed to get migration version", "error", err)
	} else {
		slog.Info("database schema version", "version", version, "dirty", dirty)
	}
	return nil
}

func runMigrations(cfg *config.Config, direction string) error {
	if cfg.Database.Driver != config.DriverPostgres {
		return fmt.Errorf("migrations require database.driver postgres (got %s)", cfg.Database.Driver)
	}
	database, err := connectDatabase(context.Background(), cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	slog.Info("running migrations", "direction", direction)
	if err := db.RunMigrations(database.DB, direction); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	version, dirty, err := db.GetMigrationVersion(database.DB)
	if err != nil {
		return fmt.Errorf("failed to get migration version: %w", err)
	}
	slog.Info("migration completed", "version", version, "dirty", dirty)
	return nil
}
