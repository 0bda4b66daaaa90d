// Package jobs contains the scheduled jobs run by the worker.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/fitbuddy/fitbuddy-hub/internal/application/query"
	"github.com/fitbuddy/fitbuddy-hub/internal/application/saga"

	"golang.org/x/sync/errgroup"
)

// ══════════════════════════════════════════════════════════════════════════════
// ACHIEVEMENT SWEEP JOB
// ══════════════════════════════════════════════════════════════════════════════

// AchievementSweepName is the job's registry name.
const AchievementSweepName = "achievement_sweep"

// AchievementRunner runs the achievement flow for one user against a
// caller-supplied rank reader.
type AchievementRunner interface {
	ExecuteWithRanks(ctx context.Context, userID string, ranks saga.RankReader) (*saga.AchievementFlowResult, error)
}

// RankSnapshotter loads the data a sweep ranks every user from.
// query.GetUserRankHandler satisfies it.
type RankSnapshotter interface {
	Snapshot(ctx context.Context) (*query.RankSnapshot, error)
}

// Locker provides cross-instance mutual exclusion.
// redis.Client satisfies it.
type Locker interface {
	Acquire(ctx context.Context, resource string, ttl time.Duration) (release func(context.Context) error, ok bool, err error)
}

// AchievementSweepConfig contains configuration for the sweep.
type AchievementSweepConfig struct {
	// Concurrency bounds parallel flow runs.
	Concurrency int

	// LockTTL must outlive a full sweep.
	LockTTL time.Duration
}

// DefaultAchievementSweepConfig returns sensible defaults.
func DefaultAchievementSweepConfig() AchievementSweepConfig {
	return AchievementSweepConfig{
		Concurrency: 4,
		LockTTL:     10 * time.Minute,
	}
}

// SweepStats contains statistics from a sweep run.
type SweepStats struct {
	StartedAt     time.Time
	CompletedAt   time.Time
	Duration      time.Duration
	UsersChecked  int
	BadgesAwarded int
	Failures      int
	Skipped       bool
}

// AchievementSweepJob re-evaluates badges for every profile. It catches
// anything the event-driven path missed, such as top_10 changes caused by
// other users' activity. Profiles and workouts are read once per run.
type AchievementSweepJob struct {
	ranks    RankSnapshotter
	flow     AchievementRunner
	locker   Locker
	logger   *slog.Logger
	config   AchievementSweepConfig

	lastStats atomic.Pointer[SweepStats]
}

// NewAchievementSweepJob creates the job. locker may be nil for single-instance setups.
func NewAchievementSweepJob(
	ranks RankSnapshotter,
	flow AchievementRunner,
	locker Locker,
	logger *slog.Logger,
	config AchievementSweepConfig,
) *AchievementSweepJob {
	if logger == nil {
		logger = slog.Default()
	}
	if config.Concurrency <= 0 {
		config.Concurrency = 1
	}
	if config.LockTTL <= 0 {
		config.LockTTL = DefaultAchievementSweepConfig().LockTTL
	}

	return &AchievementSweepJob{
		ranks:    ranks,
		flow:     flow,
		locker:   locker,
		logger:   logger.With("job", AchievementSweepName),
		config:   config,
	}
}

// Name returns the job name.
func (j *AchievementSweepJob) Name() string {
	return AchievementSweepName
}

// Description returns a human-readable description.
func (j *AchievementSweepJob) Description() string {
	return "Re-evaluates achievement badges for every profile"
}

// Run executes the sweep.
func (j *AchievementSweepJob) Run(ctx context.Context) error {
	stats := &SweepStats{StartedAt: time.Now().UTC()}
	defer func() {
		stats.CompletedAt = time.Now().UTC()
		stats.Duration = stats.CompletedAt.Sub(stats.StartedAt)
		j.lastStats.Store(stats)
	}()

	if j.locker != nil {
		release, ok, err := j.locker.Acquire(ctx, AchievementSweepName, j.config.LockTTL)
		if err != nil {
			return fmt.Errorf("acquire sweep lock: %w", err)
		}
		if !ok {
			stats.Skipped = true
			j.logger.Info("sweep already running on another instance")
			return nil
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				j.logger.Warn("failed to release sweep lock", "error", err)
			}
		}()
	}

	snapshot, err := j.ranks.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("load rank snapshot: %w", err)
	}
	userIDs := snapshot.UserIDs()

	var awarded, failures atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(j.config.Concurrency)
	for _, userID := range userIDs {
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			res, err := j.flow.ExecuteWithRanks(gctx, userID, snapshot)
			if err != nil {
				// one bad profile must not stop the sweep
				failures.Add(1)
				j.logger.Warn("achievement flow failed", "user_id", userID, "error", err)
				return nil
			}
			awarded.Add(int64(len(res.NewBadges)))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	stats.UsersChecked = len(userIDs)
	stats.BadgesAwarded = int(awarded.Load())
	stats.Failures = int(failures.Load())

	j.logger.Info("achievement sweep completed",
		"users", stats.UsersChecked,
		"badges_awarded", stats.BadgesAwarded,
		"failures", stats.Failures,
	)
	return nil
}

// LastStats returns statistics from the most recent run, or nil.
func (j *AchievementSweepJob) LastStats() *SweepStats {
	return j.lastStats.Load()
}
