// Package main is the entry point for the FitBuddy background worker.
//
// The worker awards achievement badges from activity events and runs the
// periodic sweep that re-evaluates every profile, catching rank-based
// badges that change because of other users' workouts.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/fitbuddy/fitbuddy-hub/config"
	"github.com/fitbuddy/fitbuddy-hub/internal/app"
	"github.com/fitbuddy/fitbuddy-hub/internal/infrastructure/scheduler"
	"github.com/fitbuddy/fitbuddy-hub/internal/infrastructure/scheduler/jobs"
)

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
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. LOGGING
	// ─────────────────────────────────────────────────────────────────────────
	log := app.NewSlogLogger(cfg).With("process", "worker")
	log.Info("starting FitBuddy worker",
		"scheduler", cfg.Scheduler.Enabled,
		"redis", !cfg.Redis.Disabled,
	)
	if cfg.Redis.Disabled {
		log.Warn("redis disabled: the worker only sees events published in its own process")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 3. STORAGE AND MESSAGING
	// ─────────────────────────────────────────────────────────────────────────
	infra, err := app.Open(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer infra.Close()

	// ─────────────────────────────────────────────────────────────────────────
	// 4. EVENT HANDLERS
	// ─────────────────────────────────────────────────────────────────────────
	application := app.NewApplication(infra, log)
	if err := application.RegisterEventHandlers(infra); err != nil {
		return fmt.Errorf("register event handlers: %w", err)
	}
	log.Info("event handlers registered", "events", application.OnActivity.EventTypes())

	// ─────────────────────────────────────────────────────────────────────────
	// 5. SCHEDULER
	// ─────────────────────────────────────────────────────────────────────────
	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		sched, err = setupScheduler(cfg, infra, application, log)
		if err != nil {
			return err
		}
		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. WAIT FOR SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	<-ctx.Done()
	log.Info("shutdown signal received")

	if sched != nil {
		if err := sched.Stop(); err != nil {
			log.Warn("scheduler stop failed", "error", err)
		}
	}

	log.Info("FitBuddy worker stopped")
	return nil
}

func setupScheduler(cfg *config.Config, infra *app.Infrastructure, application *app.Application, log *slog.Logger) (*scheduler.Scheduler, error) {
	sched := scheduler.NewScheduler(scheduler.SchedulerConfig{
		Logger:     log,
		Timezone:   cfg.App.Location,
		JobTimeout: cfg.Scheduler.JobTimeout,
	})

	var schedule scheduler.Schedule = scheduler.NewIntervalSchedule(cfg.Scheduler.AchievementSweepInterval)
	if cfg.Scheduler.AchievementSweepCron != "" {
		cron, err := scheduler.ParseCronSchedule(cfg.Scheduler.AchievementSweepCron)
		if err != nil {
			return nil, fmt.Errorf("parse ACHIEVEMENT_SWEEP_CRON: %w", err)
		}
		schedule = cron
	}

	// A nil *redis.Client must not become a non-nil Locker.
	var locker jobs.Locker
	if infra.Redis != nil {
		locker = infra.Redis
	}

	sweep := jobs.NewAchievementSweepJob(application.GetUserRank, application.AchievementFlow, locker, log, jobs.DefaultAchievementSweepConfig())
	if err := sched.Register(sweep, schedule); err != nil {
		return nil, fmt.Errorf("register %s: %w", sweep.Name(), err)
	}

	log.Info("job registered", "job", sweep.Name(), "schedule", schedule.String())
	return sched, nil
}
