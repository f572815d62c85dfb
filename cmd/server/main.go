// Command server runs the board's authoritative server: the REST API,
// the websocket channel and the concurrency-control core behind them.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/cenkalti/backoff/v4"
	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/syncboard/syncboard/internal/api"
	"github.com/syncboard/syncboard/internal/config"
	"github.com/syncboard/syncboard/internal/repository/postgres"
	"github.com/syncboard/syncboard/internal/services"
	"github.com/syncboard/syncboard/internal/websocket"
	"github.com/syncboard/syncboard/pkg/observability"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	migrationsPath := flag.String("migrations", "migrations", "path to SQL migrations")
	flag.Parse()

	// .env is a development convenience; absence is fine.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		observability.NewStandardLogger("syncboard").Fatal("failed to load config", map[string]interface{}{
			"error": err.Error(),
		})
	}

	logger := observability.NewStandardLogger("syncboard").WithLevel(logLevel(cfg.Logging.Level))
	metrics := observability.NewPrometheusMetricsClient("syncboard")

	db, err := connectDatabase(cfg.Database, logger)
	if err != nil {
		logger.Fatal("failed to connect to database", map[string]interface{}{"error": err.Error()})
	}
	defer func() { _ = db.Close() }()

	if err := runMigrations(db, *migrationsPath); err != nil {
		logger.Fatal("failed to run migrations", map[string]interface{}{"error": err.Error()})
	}

	var redisClient *redis.Client
	if cfg.Cache.Address != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Cache.Address,
			Password: cfg.Cache.Password,
			DB:       cfg.Cache.DB,
		})
		defer func() { _ = redisClient.Close() }()
	}

	var (
		locks    services.LockCoordinator
		presence websocket.PresenceTracker
	)
	switch cfg.Coordination.Backend {
	case config.BackendRedis:
		locks = services.NewRedisLockCoordinator(redisClient)
		presence = websocket.NewRedisPresenceTracker(redisClient)
	default:
		locks = services.NewMemoryLockCoordinator()
		presence = websocket.NewMemoryPresenceTracker()
	}

	taskRepo := postgres.NewTaskRepository(db, logger, metrics)
	actionRepo := postgres.NewActionRepository(db, logger, metrics)
	userRepo := postgres.NewUserRepository(db, logger, metrics)

	hub := websocket.NewHub(presence, logger, metrics, cfg.Websocket)

	taskService := services.NewTaskService(services.TaskServiceConfig{
		Tasks:     taskRepo,
		Actions:   actionRepo,
		Users:     userRepo,
		Locks:     locks,
		Publisher: hub,
		Logger:    logger,
		Metrics:   metrics,
		LeaseTTL:  cfg.Coordination.LeaseTTL,
	})
	hub.SetUserResolver(taskService.Populator().UserRef)

	server := api.NewServer(cfg.API, api.Deps{
		Tasks:     taskService,
		WSHandler: hub.GinHandler(),
		Gatherer:  metrics.Registry(),
		Logger:    logger,
	})

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutting down", map[string]interface{}{"signal": sig.String()})
	case err := <-errCh:
		if err != nil {
			logger.Error("server failed", map[string]interface{}{"error": err.Error()})
		}
	}

	if err := server.Shutdown(context.Background()); err != nil {
		logger.Error("shutdown error", map[string]interface{}{"error": err.Error()})
	}
	_ = metrics.Close()
}

// connectDatabase opens the pool and waits for the database with
// exponential backoff, so the server survives a slower-starting Postgres.
func connectDatabase(cfg config.DatabaseConfig, logger observability.Logger) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	defer cancel()

	operation := func() error {
		if err := db.PingContext(ctx); err != nil {
			logger.Warn("database not ready, retrying", map[string]interface{}{"error": err.Error()})
			return err
		}
		return nil
	}
	if err := backoff.Retry(operation, backoff.WithContext(backoff.NewExponentialBackOff(), ctx)); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "database unreachable")
	}
	return db, nil
}

func runMigrations(db *sqlx.DB, path string) error {
	driver, err := migratepg.WithInstance(db.DB, &migratepg.Config{})
	if err != nil {
		return errors.Wrap(err, "failed to create migration driver")
	}
	m, err := migrate.NewWithDatabaseInstance("file://"+path, "postgres", driver)
	if err != nil {
		return errors.Wrap(err, "failed to create migrator")
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return errors.Wrap(err, "migration failed")
	}
	return nil
}

func logLevel(level string) observability.LogLevel {
	switch level {
	case "debug":
		return observability.LogLevelDebug
	case "warn":
		return observability.LogLevelWarn
	case "error":
		return observability.LogLevelError
	default:
		return observability.LogLevelInfo
	}
}
