// Package main - entry point for the Pulse monitoring service.
//
// Pulse watches live classroom engagement and concept mastery, raises
// intervention alerts, and streams them to teacher dashboards over
// websockets. One process hosts the REST API, the websocket hub and the
// background detection sweeps.
//
// The layout follows Clean Architecture and DDD:
// - Domain: engagement, mastery and alert invariants, no external deps
// - Application: use case orchestration (Commands/Queries)
// - Infrastructure: Postgres, Redis, external services, scheduler
// - Interface: REST handlers, websocket hub
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gyansetu/pulse/config"
	"github.com/gyansetu/pulse/internal/application/command"
	"github.com/gyansetu/pulse/internal/application/query"
	"github.com/gyansetu/pulse/internal/domain/mastery"
	"github.com/gyansetu/pulse/internal/domain/shared"
	"github.com/gyansetu/pulse/internal/infrastructure/external/directory"
	"github.com/gyansetu/pulse/internal/infrastructure/external/masteryengine"
	"github.com/gyansetu/pulse/internal/infrastructure/messaging"
	"github.com/gyansetu/pulse/internal/infrastructure/persistence/postgres"
	"github.com/gyansetu/pulse/internal/infrastructure/persistence/redis"
	"github.com/gyansetu/pulse/internal/infrastructure/scheduler"
	"github.com/gyansetu/pulse/internal/infrastructure/scheduler/jobs"
	httpserver "github.com/gyansetu/pulse/internal/interface/http"
	"github.com/gyansetu/pulse/internal/interface/http/handlers"
	"github.com/gyansetu/pulse/internal/interface/realtime"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN
// ══════════════════════════════════════════════════════════════════════════════

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. CONFIGURATION
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. LOGGING
	// ─────────────────────────────────────────────────────────────────────────
	log := setupLogger(cfg)
	log.Info("starting Pulse monitoring service",
		"env", cfg.App.Environment,
		"version", cfg.App.Version,
		"debug", cfg.App.Debug,
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. POSTGRES
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("connecting to database...")
	dbConn, err := postgres.NewConnectionFromURL(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		log.Info("closing database connection...")
		dbConn.Close()
	}()

	if err := dbConn.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	log.Info("database connection established")

	// ─────────────────────────────────────────────────────────────────────────
	// 4. MIGRATIONS
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("running database migrations...")
	migrator := postgres.NewMigrator(dbConn)
	if err := migrator.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	status, err := migrator.Status(ctx)
	if err != nil {
		log.Warn("failed to get migration status", "error", err)
	} else {
		appliedCount := 0
		for _, m := range status {
			if m.IsApplied {
				appliedCount++
			}
		}
		log.Info("migrations completed", "applied", appliedCount, "total", len(status))
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. REDIS (optional)
	// ─────────────────────────────────────────────────────────────────────────
	var redisCache *redis.Cache
	var recordCache masteryengine.RecordCache
	var presenceTracker realtime.PresenceTracker

	if !cfg.Redis.Disabled {
		log.Info("connecting to Redis...")
		redisCache, err = redis.NewCache(redis.Config{
			Host:         cfg.Redis.Host,
			Port:         cfg.Redis.Port,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})
		if err != nil {
			log.Warn("failed to connect to Redis, caching disabled", "error", err)
			redisCache = nil
		} else {
			defer redisCache.Close()
			recordCache = redis.NewMasteryCache(redisCache)
			presenceTracker = redis.NewPresenceTracker(redisCache)
			log.Info("Redis connection established")
		}
	}
	if recordCache == nil {
		// The mastery service still works without the hot cache, it just
		// reads through to Postgres on engine outages.
		recordCache = noopRecordCache{}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. REPOSITORIES
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing repositories...")
	sampleRepo := postgres.NewEngagementRepository(dbConn)
	alertRepo := postgres.NewAlertRepository(dbConn)
	snapshotRepo := postgres.NewSnapshotRepository(dbConn)
	recordRepo := postgres.NewRecordRepository(dbConn)

	// ─────────────────────────────────────────────────────────────────────────
	// 7. EVENT BUS
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing event bus...")
	eventBusConfig := messaging.DefaultInMemoryEventBusConfig()
	eventBusConfig.Logger = log
	eventBus := messaging.NewInMemoryEventBus(eventBusConfig)
	defer func() {
		log.Info("closing event bus...")
		_ = eventBus.Close()
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 8. EXTERNAL CLIENTS
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing external clients...")

	directoryConfig := directory.DefaultClientConfig(cfg.Directory.BaseURL)
	directoryConfig.APIKey = cfg.Directory.APIKey
	directoryConfig.Timeout = cfg.Directory.RequestTimeout
	directoryConfig.Logger = log
	directoryClient := directory.NewClient(directoryConfig)

	engineConfig := masteryengine.DefaultClientConfig(cfg.MasteryEngine.BaseURL)
	engineConfig.APIKey = cfg.MasteryEngine.APIKey
	engineConfig.Timeout = cfg.MasteryEngine.RequestTimeout
	engineConfig.Logger = log
	engineConfig.Debug = cfg.App.Debug
	engineConfig.RateLimiterConfig.RequestsPerSecond = cfg.MasteryEngine.RateLimit
	engineConfig.RateLimiterConfig.BurstSize = cfg.MasteryEngine.RateLimitBurst
	engineConfig.RetryConfig.MaxRetries = cfg.MasteryEngine.MaxRetries
	engineConfig.RetryConfig.InitialBackoff = cfg.MasteryEngine.RetryBaseDelay
	engineConfig.RetryConfig.MaxBackoff = cfg.MasteryEngine.RetryMaxDelay
	engineConfig.CircuitBreakerConfig.FailureThreshold = cfg.MasteryEngine.CircuitBreakerThreshold
	engineConfig.CircuitBreakerConfig.Timeout = cfg.MasteryEngine.CircuitBreakerTimeout
	engineConfig.CircuitBreakerConfig.HalfOpenMaxRetries = cfg.MasteryEngine.CircuitBreakerHalfOpenMax
	engineClient := masteryengine.NewClient(engineConfig)

	masteryService := masteryengine.NewService(engineClient, recordCache, recordRepo, snapshotRepo, log)

	// ─────────────────────────────────────────────────────────────────────────
	// 9. APPLICATION LAYER (Commands, Queries)
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing application layer...")

	logEngagementCmd := command.NewLogEngagementHandler(sampleRepo, eventBus)
	resolveAlertCmd := command.NewResolveAlertHandler(alertRepo, eventBus)

	classEngagementQuery := query.NewGetClassEngagementHandler(sampleRepo)
	studentEngagementQuery := query.NewGetStudentEngagementHandler(sampleRepo)
	classAlertsQuery := query.NewGetClassAlertsHandler(alertRepo)
	studentVelocityQuery := query.NewGetStudentVelocityHandler(snapshotRepo)
	paceOverviewQuery := query.NewGetClassPaceOverviewHandler(snapshotRepo)
	atRiskQuery := query.NewGetAtRiskStudentsHandler(snapshotRepo)

	// ─────────────────────────────────────────────────────────────────────────
	// 10. SCHEDULER
	// ─────────────────────────────────────────────────────────────────────────
	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		log.Info("initializing scheduler...")

		schedConfig := scheduler.DefaultSchedulerConfig()
		schedConfig.Logger = log
		sched = scheduler.NewScheduler(schedConfig)

		detectConfig := jobs.DefaultDetectAlertsConfig()
		detectConfig.EngagementWindow = cfg.Scheduler.DetectWindow
		detectConfig.EnableEngagementRule = cfg.Scheduler.EnableEngagementRule
		detectConfig.EnableMasteryRule = cfg.Scheduler.EnableMasteryRule
		detectConfig.Timeout = cfg.Scheduler.JobTimeout
		detectJob := jobs.NewDetectAlertsJob(sampleRepo, recordRepo, alertRepo, directoryClient, eventBus, log, detectConfig)

		broadcastConfig := jobs.DefaultBroadcastAlertsConfig()
		broadcastConfig.Lookback = cfg.Scheduler.BroadcastLookback
		broadcastJob := jobs.NewBroadcastAlertsJob(alertRepo, eventBus, log, broadcastConfig)

		if err := sched.Register(detectJob, scheduler.MustParseCronExpression(cfg.Scheduler.DetectCron)); err != nil {
			return fmt.Errorf("failed to register detect job: %w", err)
		}
		if err := sched.Register(broadcastJob, scheduler.NewIntervalSchedule(cfg.Scheduler.BroadcastInterval)); err != nil {
			return fmt.Errorf("failed to register broadcast job: %w", err)
		}
	} else {
		log.Info("scheduler disabled, alert sweeps will not run")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 11. WEBSOCKET HUB
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing websocket hub...")

	hub := realtime.NewHub(directoryClient, presenceTracker, eventBus, log)
	if err := hub.BindEventBus(eventBus); err != nil {
		return fmt.Errorf("failed to bind hub to event bus: %w", err)
	}

	wsConfig := realtime.DefaultWebSocketConfig()
	wsConfig.SendQueueSize = cfg.Realtime.SendQueueSize
	wsConfig.PingInterval = cfg.Realtime.PingInterval
	wsConfig.PongTimeout = cfg.Realtime.PongTimeout
	wsConfig.ReadLimit = cfg.Realtime.ReadLimit
	wsConfig.WriteTimeout = cfg.Realtime.WriteTimeout
	wsHandler := realtime.NewWebSocketHandler(hub, wsConfig, log)

	// ─────────────────────────────────────────────────────────────────────────
	// 12. HTTP SERVER
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing HTTP server...")

	healthChecker := handlers.NewCompositeHealthChecker(cfg.App.Version)
	healthChecker.AddCheck("database", handlers.NewDatabaseCheck(dbConn))
	if redisCache != nil {
		healthChecker.AddCheck("cache", handlers.NewCacheCheck(redisCache))
	}
	healthChecker.AddCheck("mastery_engine", handlers.NewUpstreamCheck("mastery engine", engineClient))
	healthChecker.AddCheck("directory", handlers.NewUpstreamCheck("directory", directoryClient))

	httpConfig := httpserver.DefaultConfig()
	httpConfig.Host = cfg.HTTP.Host
	httpConfig.Port = cfg.HTTP.Port
	httpConfig.ReadTimeout = cfg.HTTP.ReadTimeout
	httpConfig.WriteTimeout = cfg.HTTP.WriteTimeout
	httpConfig.IdleTimeout = cfg.HTTP.IdleTimeout
	httpConfig.MaxBodyBytes = cfg.HTTP.MaxBodyBytes
	httpConfig.EnableCORS = cfg.HTTP.EnableCORS
	httpConfig.AllowedOrigins = cfg.HTTP.AllowedOrigins
	httpConfig.RateLimitPerMinute = cfg.HTTP.RateLimitPerMinute

	httpDeps := httpserver.Dependencies{
		LogEngagementHandler:     logEngagementCmd,
		ResolveAlertHandler:      resolveAlertCmd,
		ClassEngagementHandler:   classEngagementQuery,
		StudentEngagementHandler: studentEngagementQuery,
		ClassAlertsHandler:       classAlertsQuery,
		StudentVelocityHandler:   studentVelocityQuery,
		PaceOverviewHandler:      paceOverviewQuery,
		AtRiskHandler:            atRiskQuery,
		MasteryService:           masteryService,
		WebSocketHandler:         wsHandler,
		TokenAuth:                handlers.NewTokenAuth(directoryClient),
		HealthChecker:            healthChecker,
		Logger:                   log,
	}

	httpServer := httpserver.NewServer(httpConfig, httpDeps)

	// ─────────────────────────────────────────────────────────────────────────
	// 13. START SERVICES
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("starting services...")

	errCh := make(chan error, 2)

	go func() {
		log.Info("starting HTTP server", "address", httpServer.Address())
		if err := httpServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	if sched != nil {
		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 14. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("Pulse monitoring service is running",
		"http_address", httpServer.Address(),
		"scheduler_enabled", cfg.Scheduler.Enabled,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", "signal", sig.String())
	case err := <-errCh:
		log.Error("service error", "error", err)
		return err
	}

	log.Info("starting graceful shutdown...", "timeout", cfg.App.ShutdownTimeout.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer shutdownCancel()

	var shutdownErr error

	// 1. Stop the scheduler so no new sweeps start mid-shutdown
	if sched != nil {
		log.Info("stopping scheduler...")
		if err := sched.Stop(); err != nil && !errors.Is(err, scheduler.ErrSchedulerNotRunning) {
			log.Error("failed to stop scheduler gracefully", "error", err)
			shutdownErr = err
		}
	}

	// 2. Stop the HTTP server; open websockets are torn down with it
	log.Info("stopping HTTP server...")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to stop HTTP server gracefully", "error", err)
		shutdownErr = err
	}

	// 3. Event bus, Redis and the database close via defer

	if shutdownErr != nil {
		log.Warn("shutdown completed with errors")
	} else {
		log.Info("shutdown completed successfully")
	}

	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// setupLogger builds the process-wide structured logger.
func setupLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Observability.LogLevel),
	}
	if cfg.App.Debug {
		opts.Level = slog.LevelDebug
	}

	var handler slog.Handler
	if strings.EqualFold(cfg.Observability.LogFormat, "json") {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	log := slog.New(handler)
	slog.SetDefault(log)

	return log
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// ADAPTERS
// ══════════════════════════════════════════════════════════════════════════════

// noopRecordCache stands in for the Redis mastery cache when Redis is
// disabled. Every read misses, so lookups fall through to Postgres.
type noopRecordCache struct{}

func (noopRecordCache) Get(ctx context.Context, studentID mastery.StudentID, conceptID string) (*mastery.Record, error) {
	return nil, shared.ErrRecordNotFound
}

func (noopRecordCache) Set(ctx context.Context, rec *mastery.Record) error {
	return nil
}
