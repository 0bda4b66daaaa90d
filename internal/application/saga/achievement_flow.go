// Package saga contains business processes that orchestrate
// multiple domain operations in a coordinated manner.
package saga

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fitbuddy/fitbuddy-hub/internal/application/query"
	"github.com/fitbuddy/fitbuddy-hub/internal/domain/achievement"
	"github.com/fitbuddy/fitbuddy-hub/internal/domain/leaderboard"
	"github.com/fitbuddy/fitbuddy-hub/internal/domain/shared"
	"github.com/fitbuddy/fitbuddy-hub/internal/domain/social"
)

// ══════════════════════════════════════════════════════════════════════════════
// ACHIEVEMENT FLOW SAGA
// Flow: Load Rank → Count Buddies → Evaluate Rules → Award New Badges → Publish Events
//
// The flow is idempotent: badges already held are skipped, so it is safe to
// run after every workout, every accepted buddy request and from the sweep job.
// ══════════════════════════════════════════════════════════════════════════════

// RankReader returns a user's global rank.
// query.GetUserRankHandler satisfies it.
type RankReader interface {
	Rank(ctx context.Context, q query.GetUserRankQuery) (leaderboard.UserRank, int, error)
}

// AchievementFlowStep names a step of the flow.
type AchievementFlowStep string

const (
	StepValidate     AchievementFlowStep = "validate"
	StepLoadRank     AchievementFlowStep = "load_rank"
	StepCountBuddies AchievementFlowStep = "count_buddies"
	StepAward        AchievementFlowStep = "award"
)

// AchievementFlowResult reports what a run changed.
type AchievementFlowResult struct {
	UserID      string
	Progress    achievement.Progress
	NewBadges   []achievement.Type
	ProcessedAt time.Time
}

// HasNewBadges returns true if the run unlocked anything.
func (r *AchievementFlowResult) HasNewBadges() bool {
	return len(r.NewBadges) > 0
}

// AchievementFlowConfig tunes the flow.
type AchievementFlowConfig struct {
	// MaxAwardsPerRun caps how many badges one run may grant. 0 means no cap.
	MaxAwardsPerRun int
}

// DefaultAchievementFlowConfig returns default configuration.
func DefaultAchievementFlowConfig() AchievementFlowConfig {
	return AchievementFlowConfig{MaxAwardsPerRun: 0}
}

// AchievementFlowSaga evaluates and grants badges for one user.
type AchievementFlowSaga struct {
	ranks        RankReader
	buddies      social.Repository
	achievements achievement.Repository
	events       shared.EventPublisher
	logger       *slog.Logger

	maxAwardsPerRun int
}

// NewAchievementFlowSaga creates the saga. events and logger may be nil.
func NewAchievementFlowSaga(
	ranks RankReader,
	buddies social.Repository,
	achievements achievement.Repository,
	events shared.EventPublisher,
	logger *slog.Logger,
	config AchievementFlowConfig,
) *AchievementFlowSaga {
	if logger == nil {
		logger = slog.Default()
	}
	return &AchievementFlowSaga{
		ranks:           ranks,
		buddies:         buddies,
		achievements:    achievements,
		events:          events,
		logger:          logger.With("saga", "achievement_flow"),
		maxAwardsPerRun: config.MaxAwardsPerRun,
	}
}

// Execute runs the flow for userID and returns the badges it awarded.
func (s *AchievementFlowSaga) Execute(ctx context.Context, userID string) (*AchievementFlowResult, error) {
	return s.ExecuteWithRanks(ctx, userID, s.ranks)
}

// ExecuteWithRanks runs the flow reading the rank from ranks instead of the
// saga's own reader. Batch callers pass one query.RankSnapshot for all users.
func (s *AchievementFlowSaga) ExecuteWithRanks(ctx context.Context, userID string, ranks RankReader) (*AchievementFlowResult, error) {
	if userID == "" {
		return nil, s.wrapError(StepValidate, userID, errors.New("user id is required"))
	}

	// Step 1: global rank by points
	rank, _, err := ranks.Rank(ctx, query.GetUserRankQuery{UserID: userID, Metric: string(leaderboard.MetricPoints)})
	if err != nil {
		return nil, s.wrapError(StepLoadRank, userID, err)
	}

	// Step 2: accepted buddies
	buddies, err := s.buddies.CountAccepted(ctx, userID)
	if err != nil {
		return nil, s.wrapError(StepCountBuddies, userID, err)
	}

	// Step 3: rules
	progress := achievement.ProgressFromEntry(rank, buddies)
	eligible := achievement.Evaluate(progress)

	// Step 4: award what is not held yet
	awarded := make([]achievement.Type, 0, len(eligible))
	for _, badge := range eligible {
		if s.maxAwardsPerRun > 0 && len(awarded) >= s.maxAwardsPerRun {
			break
		}

		held, err := s.achievements.HasAchievement(ctx, userID, badge)
		if err != nil {
			return nil, s.wrapError(StepAward, userID, err)
		}
		if held {
			continue
		}

		added, err := s.achievements.Award(ctx, userID, badge)
		if err != nil {
			return nil, s.wrapError(StepAward, userID, fmt.Errorf("award %s: %w", badge, err))
		}
		if added {
			awarded = append(awarded, badge)
		}
	}

	// Step 5: events. Delivery failures do not undo awards.
	for _, badge := range awarded {
		if s.events == nil {
			break
		}
		if err := s.events.Publish(shared.NewAchievementUnlockedEvent(userID, string(badge))); err != nil {
			s.logger.Warn("failed to publish achievement event",
				"user_id", userID,
				"badge", string(badge),
				"error", err,
			)
		}
	}

	if len(awarded) > 0 {
		s.logger.Info("achievements unlocked",
			"user_id", userID,
			"badges", awarded,
		)
	}

	return &AchievementFlowResult{
		UserID:      userID,
		Progress:    progress,
		NewBadges:   awarded,
		ProcessedAt: time.Now().UTC(),
	}, nil
}

func (s *AchievementFlowSaga) wrapError(step AchievementFlowStep, userID string, err error) error {
	return &AchievementFlowError{
		Step:    step,
		UserID:  userID,
		Cause:   err,
		Message: fmt.Sprintf("achievement flow failed at step '%s': %v", step, err),
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

// AchievementFlowError represents an error during the achievement flow.
type AchievementFlowError struct {
	Step    AchievementFlowStep
	UserID  string
	Cause   error
	Message string
}

// Error implements the error interface.
func (e *AchievementFlowError) Error() string {
	return e.Message
}

// Unwrap returns the underlying error.
func (e *AchievementFlowError) Unwrap() error {
	return e.Cause
}
