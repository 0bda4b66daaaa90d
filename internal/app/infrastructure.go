// Package app wires configuration into the storage, messaging and
// application layers shared by the api and worker processes.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/fitbuddy/fitbuddy-hub/config"
	"github.com/fitbuddy/fitbuddy-hub/internal/domain/achievement"
	"github.com/fitbuddy/fitbuddy-hub/internal/domain/profile"
	"github.com/fitbuddy/fitbuddy-hub/internal/domain/shared"
	"github.com/fitbuddy/fitbuddy-hub/internal/domain/social"
	"github.com/fitbuddy/fitbuddy-hub/internal/domain/workout"
	"github.com/fitbuddy/fitbuddy-hub/internal/infrastructure/messaging"
	"github.com/fitbuddy/fitbuddy-hub/internal/infrastructure/persistence/memory"
	"github.com/fitbuddy/fitbuddy-hub/internal/infrastructure/persistence/postgres"
	"github.com/fitbuddy/fitbuddy-hub/internal/infrastructure/persistence/redis"
	"github.com/fitbuddy/fitbuddy-hub/internal/interface/http/handlers"
	"github.com/fitbuddy/fitbuddy-hub/pkg/retry"
)

// EventBus is the bus both processes publish to and subscribe on.
type EventBus interface {
	shared.EventBus
	Close() error
}

// Infrastructure holds the process-wide connections and repositories.
type Infrastructure struct {
	Profiles     profile.Repository
	Workouts     workout.Repository
	Buddies      social.Repository
	Achievements achievement.Repository

	Bus EventBus

	// Redis is nil when REDIS_DISABLED is set.
	Redis *redis.Client

	Health *handlers.CompositeHealthChecker

	closers []func() error
	logger  *slog.Logger
}

// Open connects storage, Redis and the event bus described by cfg.
// Remote connects are retried while dependencies come up.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Infrastructure, error) {
	if logger == nil {
		logger = slog.Default()
	}

	infra := &Infrastructure{
		Health: handlers.NewCompositeHealthChecker(cfg.App.Version),
		logger: logger,
	}

	if err := infra.openStorage(ctx, cfg); err != nil {
		infra.Close()
		return nil, err
	}
	if err := infra.openMessaging(ctx, cfg); err != nil {
		infra.Close()
		return nil, err
	}
	return infra, nil
}

func (i *Infrastructure) openStorage(ctx context.Context, cfg *config.Config) error {
	if memory.IsMemoryURL(cfg.Database.URL) {
		store := memory.NewStore()
		i.Profiles = store.Profiles()
		i.Workouts = store.Workouts()
		i.Buddies = store.Buddies()
		i.Achievements = store.Achievements()
		i.Health.AddCheck("database", handlers.NewPingCheck(store))
		i.logger.Warn("using in-memory storage, data will not survive a restart")
		return nil
	}

	settings := postgres.PoolSettings{
		MaxConns:        int32(cfg.Database.MaxConns),
		MinConns:        int32(cfg.Database.MinConns),
		MaxConnLifetime: cfg.Database.ConnMaxLifetime,
		MaxConnIdleTime: cfg.Database.ConnMaxIdleTime,
	}

	var conn *postgres.Connection
	err := connectWithRetry(ctx, i.logger, "postgres", func(ctx context.Context) error {
		var err error
		conn, err = postgres.NewConnection(ctx, cfg.Database.URL, settings)
		return err
	})
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	i.closers = append(i.closers, func() error {
		conn.Close()
		return nil
	})
	i.logger.Info("connected to database")

	if cfg.Database.AutoMigrate {
		if err := postgres.NewMigrator(conn).Migrate(ctx); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
		i.logger.Info("migrations applied")
	}

	i.Profiles = postgres.NewProfileRepository(conn)
	i.Workouts = postgres.NewWorkoutRepository(conn)
	i.Buddies = postgres.NewBuddyRepository(conn)
	i.Achievements = postgres.NewAchievementRepository(conn)
	i.Health.AddCheck("database", handlers.NewPingCheck(conn))
	return nil
}

func (i *Infrastructure) openMessaging(ctx context.Context, cfg *config.Config) error {
	localBus := messaging.InMemoryEventBusConfig{
		AsyncMode:      true,
		WorkerPoolSize: messaging.DefaultInMemoryEventBusConfig().WorkerPoolSize,
		Logger:         i.logger,
	}

	if cfg.Redis.Disabled {
		bus := messaging.NewInMemoryEventBus(localBus)
		i.Bus = bus
		i.closers = append(i.closers, bus.Close)
		i.logger.Info("redis disabled, events stay in this process")
		return nil
	}

	rcfg := redis.DefaultConfig()
	rcfg.Addr = cfg.Redis.Addr()
	rcfg.Password = cfg.Redis.Password
	rcfg.DB = cfg.Redis.DB
	rcfg.PoolSize = cfg.Redis.PoolSize
	rcfg.MinIdleConns = cfg.Redis.MinIdleConns
	rcfg.DialTimeout = cfg.Redis.DialTimeout
	rcfg.ReadTimeout = cfg.Redis.ReadTimeout
	rcfg.WriteTimeout = cfg.Redis.WriteTimeout

	var client *redis.Client
	err := connectWithRetry(ctx, i.logger, "redis", func(ctx context.Context) error {
		var err error
		client, err = redis.NewClient(ctx, rcfg)
		return err
	})
	if err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}
	i.Redis = client
	i.closers = append(i.closers, client.Close)
	i.Health.AddCheck("redis", handlers.NewPingCheck(client))
	i.logger.Info("connected to redis", "addr", rcfg.Addr)

	hostname, _ := os.Hostname()
	bus, err := messaging.NewRedisEventBus(messaging.RedisEventBusConfig{
		Client:         redis.NewPubSub(client),
		ChannelName:    redis.EventsChannel,
		InstanceID:     fmt.Sprintf("%s-%s-%d", cfg.App.Name, hostname, os.Getpid()),
		LocalBusConfig: localBus,
		Logger:         i.logger,
	})
	if err != nil {
		return fmt.Errorf("start redis event bus: %w", err)
	}
	i.Bus = bus
	i.closers = append(i.closers, bus.Close)
	return nil
}

// Close releases everything Open created, newest first.
func (i *Infrastructure) Close() {
	for n := len(i.closers) - 1; n >= 0; n-- {
		if err := i.closers[n](); err != nil {
			i.logger.Warn("close failed", "error", err)
		}
	}
	i.closers = nil
}

// connectWithRetry retries fn with the startup backoff, logging each retry.
func connectWithRetry(ctx context.Context, logger *slog.Logger, target string, fn func(ctx context.Context) error) error {
	r := retry.StartupRetrier().With(
		retry.WithOnRetry(func(attempt int, err error, delay time.Duration) {
			logger.Warn("dependency not ready, retrying", "target", target, "attempt", attempt, "delay", delay, "error", err)
		}),
	)
	return r.Do(ctx, fn)
}
