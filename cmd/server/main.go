// Package main is the entry point of the Brain-Train progression API.
//
// The process serves the session submission, checkin, mission, wallet and
// profile endpoints over HTTP, backed by PostgreSQL and an optional Redis
// read-model cache.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/DeclineZ/brain-train-sub002/config"

	// Application layer
	"github.com/DeclineZ/brain-train-sub002/internal/application/command"
	"github.com/DeclineZ/brain-train-sub002/internal/application/query"
	"github.com/DeclineZ/brain-train-sub002/internal/application/saga"
	"github.com/DeclineZ/brain-train-sub002/internal/domain/scoring"

	// Infrastructure layer
	"github.com/DeclineZ/brain-train-sub002/internal/infrastructure/messaging"
	"github.com/DeclineZ/brain-train-sub002/internal/infrastructure/persistence/memcache"
	"github.com/DeclineZ/brain-train-sub002/internal/infrastructure/persistence/postgres"
	"github.com/DeclineZ/brain-train-sub002/internal/infrastructure/persistence/redis"

	// Interface layer
	httpserver "github.com/DeclineZ/brain-train-sub002/internal/interface/http"
	"github.com/DeclineZ/brain-train-sub002/internal/interface/http/handlers"

	// Packages
	"github.com/DeclineZ/brain-train-sub002/pkg/logger"
	"github.com/DeclineZ/brain-train-sub002/pkg/metrics"
	"github.com/DeclineZ/brain-train-sub002/pkg/timeutil"
)

// readCache is what the query side and the event subscribers need from a cache.
type readCache interface {
	query.Cache
	messaging.CacheInvalidator
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. CONFIGURATION
	// ─────────────────────────────────────────────────────────────────────────
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	timeutil.SetLocation(cfg.App.Location)

	// ─────────────────────────────────────────────────────────────────────────
	// 2. LOGGING
	// ─────────────────────────────────────────────────────────────────────────
	log := setupLogger(cfg)
	log.Info("starting brain-train progression API",
		logger.String("env", string(cfg.App.Environment)),
		logger.String("version", cfg.App.Version),
		logger.String("timezone", timeutil.Location().String()),
	)
	log.Info("feature flags loaded", logger.Any("rollout", cfg.Features.Rollout()))

	m := metrics.NewManager()

	// ─────────────────────────────────────────────────────────────────────────
	// 3. DATABASE
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("connecting to database...")
	dbConn, err := postgres.NewConnection(ctx, postgres.Config{
		URL:               cfg.Database.URL,
		MaxConns:          int32(cfg.Database.MaxConns),
		MinConns:          int32(cfg.Database.MinConns),
		MaxConnLifetime:   cfg.Database.ConnMaxLifetime,
		MaxConnIdleTime:   cfg.Database.ConnMaxIdleTime,
		HealthCheckPeriod: postgres.DefaultConfig().HealthCheckPeriod,
		QueryTimeout:      cfg.Database.QueryTimeout,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		log.Info("closing database connection...")
		dbConn.Close()
	}()

	migrator := postgres.NewMigrator(dbConn)
	if cfg.Database.AutoMigrate {
		applied, err := migrator.Migrate(ctx)
		if err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		log.Info("migrations completed", logger.Int("applied", applied))
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. CACHE
	// ─────────────────────────────────────────────────────────────────────────
	checker := handlers.NewCompositeHealthChecker(cfg.App.Version)
	checker.AddCheck("database", handlers.NewDatabaseCheck(dbConn))
	checker.AddCheck("migrations", handlers.NewMigrationCheck(migrator.Pending))

	var (
		cache     readCache
		forwarder *messaging.RedisForwarder
	)
	if cfg.Redis.Disabled {
		log.Info("redis disabled, using in-process cache")
		cache = memcache.New(cfg.Redis.CacheTTL)
	} else {
		log.Info("connecting to Redis...", logger.String("addr", cfg.Redis.RedisAddr()))
		redisCache, err := redis.NewCache(ctx, redisConfig(cfg.Redis))
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer redisCache.Close()

		cache = redisCache
		checker.AddOptionalCheck("cache", handlers.NewCacheCheck(redisCache))

		if cfg.Redis.EventsChannel != "" && cfg.Features.IsEnabled(config.FeatureEventFanout, nil) {
			forwarder = messaging.NewRedisForwarder(redisCache.Client(), cfg.Redis.EventsChannel, log)
			log.Info("event fan-out enabled", logger.String("channel", cfg.Redis.EventsChannel))
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. EVENT BUS
	// ─────────────────────────────────────────────────────────────────────────
	deadLetters := messaging.NewDeadLetterQueue(1000)
	defer func() {
		if n := deadLetters.Size(); n > 0 {
			log.Warn("undelivered events dropped at shutdown", logger.Int("count", n))
		}
	}()

	busCfg := messaging.DefaultInMemoryEventBusConfig()
	busCfg.Logger = log
	bus := messaging.NewInMemoryEventBus(busCfg)
	defer func() {
		if err := bus.Close(); err != nil {
			log.Warn("event bus close failed", logger.Err(err))
		}
	}()

	if err := messaging.RegisterSubscribers(bus, messaging.SubscriberDeps{
		Metrics:     m,
		Cache:       cache,
		Forwarder:   forwarder,
		Logger:      log,
		DeadLetters: deadLetters,
	}); err != nil {
		return fmt.Errorf("failed to register subscribers: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. REPOSITORIES
	// ─────────────────────────────────────────────────────────────────────────
	sessions := postgres.NewSessionRepository(dbConn)
	profiles := postgres.NewProfileRepository(dbConn)
	stars := postgres.NewStarRepository(dbConn)
	ledger := postgres.NewLedgerRepository(dbConn)
	checkins := postgres.NewCheckinRepository(dbConn)
	badges := postgres.NewBadgeRepository(dbConn)
	missions := postgres.NewMissionRepository(dbConn)

	clock := timeutil.SystemClock{}

	// ─────────────────────────────────────────────────────────────────────────
	// 7. APPLICATION LAYER
	// ─────────────────────────────────────────────────────────────────────────
	checkinHandler := command.NewPerformCheckinHandler(command.CheckinDeps{
		Checkins: checkins,
		Badges:   badges,
		Ledger:   ledger,
		Events:   bus,
		Features: cfg.Features,
		Metrics:  m,
		Clock:    clock,
		Logger:   log,
	})

	submissionSaga := saga.NewSessionSubmissionSaga(saga.SubmissionDeps{
		Scoring:  scoring.NewRegistry(),
		Sessions: sessions,
		Stars:    stars,
		Ledger:   ledger,
		Missions: missions,
		Checkin:  checkinHandler,
		Events:   bus,
		Features: cfg.Features,
		Metrics:  m,
		Clock:    clock,
		Logger:   log,
	}, saga.SubmissionConfig{
		AllMissionsBonus: cfg.Rewards.AllMissionsBonus,
	})

	// ─────────────────────────────────────────────────────────────────────────
	// 8. HTTP SERVER
	// ─────────────────────────────────────────────────────────────────────────
	srvCfg := httpserver.DefaultConfig()
	srvCfg.Addr = cfg.HTTP.Addr
	srvCfg.ReadTimeout = cfg.HTTP.ReadTimeout
	srvCfg.WriteTimeout = cfg.HTTP.WriteTimeout
	srvCfg.IdleTimeout = cfg.HTTP.IdleTimeout
	srvCfg.AllowedOrigins = cfg.HTTP.AllowedOrigins
	srvCfg.RateLimitPerMinute = cfg.HTTP.RateLimit
	srvCfg.EnableMetrics = cfg.Observability.MetricsEnabled

	server := httpserver.NewServer(srvCfg, httpserver.Dependencies{
		SubmitSession:   command.NewSubmitSessionHandler(submissionSaga),
		PerformCheckin:  checkinHandler,
		CheckinStatus:   query.NewGetCheckinStatusHandler(checkins, cache, cfg.Redis.CacheTTL, clock, m, log),
		CheckinCalendar: query.NewGetCheckinCalendarHandler(checkins, clock),
		Badges:          query.NewGetBadgesHandler(badges),
		DailyMissions:   query.NewGetDailyMissionsHandler(missions, cfg.Features, clock, log),
		Wallet:          query.NewGetWalletHandler(ledger, cfg.Rewards.WalletHistoryLimit),
		Profile:         query.NewGetProfileHandler(profiles, cache, cfg.Redis.CacheTTL, m, log),
		GameStars:       query.NewGetGameStarsHandler(stars),
		HealthChecker:   checker,
		Metrics:         m,
		Logger:          log,
	})

	errCh := server.StartAsync()
	log.Info("progression API is running", logger.String("addr", cfg.HTTP.Addr))

	// ─────────────────────────────────────────────────────────────────────────
	// 9. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	select {
	case <-ctx.Done():
		log.Info("received shutdown signal")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
	}

	log.Info("starting graceful shutdown...", logger.Duration("timeout", cfg.App.ShutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("http server shutdown failed", logger.Err(err))
	}

	log.Info("shutdown complete")
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

func setupLogger(cfg *config.Config) *logger.Logger {
	opts := logger.DefaultOptions()
	opts.Level = logger.ParseLevel(cfg.Observability.LogLevel)
	opts.AddCaller = !cfg.IsProduction()
	if cfg.Observability.LogFormat == string(logger.FormatConsole) {
		opts.Format = logger.FormatConsole
	}
	if cfg.Observability.LogFile != "" {
		opts.File = &logger.FileOptions{
			Path:       cfg.Observability.LogFile,
			MaxSizeMB:  cfg.Observability.LogMaxSizeMB,
			MaxBackups: cfg.Observability.LogMaxBackups,
			MaxAgeDays: 28,
			Compress:   true,
		}
	}
	return logger.New(opts).With(logger.String("service", cfg.App.Name))
}

func redisConfig(c config.RedisConfig) redis.Config {
	rc := redis.DefaultConfig()
	rc.URL = c.URL
	rc.Host = c.Host
	rc.Port = c.Port
	rc.Password = c.Password
	rc.DB = c.DB
	if c.PoolSize > 0 {
		rc.PoolSize = c.PoolSize
	}
	if c.DialTimeout > 0 {
		rc.DialTimeout = c.DialTimeout
	}
	if c.ReadTimeout > 0 {
		rc.ReadTimeout = c.ReadTimeout
	}
	if c.WriteTimeout > 0 {
		rc.WriteTimeout = c.WriteTimeout
	}
	return rc
}
