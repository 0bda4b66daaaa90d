package query

import (
	"context"
	"errors"
	"time"

	"github.com/fitbuddy/fitbuddy-hub/internal/domain/leaderboard"
	"github.com/fitbuddy/fitbuddy-hub/internal/domain/shared"
	"github.com/fitbuddy/fitbuddy-hub/internal/domain/social"
)

// MaxLeaderboardLimit caps a single leaderboard page.
const MaxLeaderboardLimit = 500

// ══════════════════════════════════════════════════════════════════════════════
// GET LEADERBOARD QUERY
// Ranks every user with activity by the selected metric.
// ══════════════════════════════════════════════════════════════════════════════

// GetLeaderboardQuery contains the leaderboard parameters.
type GetLeaderboardQuery struct {
	// Metric is points, calories, minutes or workouts. Anything else means points.
	Metric string

	// Limit truncates the result when > 0 (capped at MaxLeaderboardLimit).
	Limit int
}

// Validate checks the query.
func (q *GetLeaderboardQuery) Validate() error {
	if q.Limit < 0 {
		return errors.New("limit cannot be negative")
	}
	if q.Limit > MaxLeaderboardLimit {
		q.Limit = MaxLeaderboardLimit
	}
	return nil
}

// GetLeaderboardResult contains the ranked entries.
type GetLeaderboardResult struct {
	Metric      string                `json:"metric"`
	Entries     []LeaderboardEntryDTO `json:"entries"`
	TotalRanked int                   `json:"total_ranked"`
	GeneratedAt time.Time             `json:"generated_at"`
}

// GetLeaderboardHandler handles global leaderboard requests.
type GetLeaderboardHandler struct {
	snapshots *SnapshotLoader
}

// NewGetLeaderboardHandler creates the handler.
func NewGetLeaderboardHandler(snapshots *SnapshotLoader) *GetLeaderboardHandler {
	return &GetLeaderboardHandler{snapshots: snapshots}
}

// Handle computes the leaderboard from a fresh snapshot.
func (h *GetLeaderboardHandler) Handle(ctx context.Context, q GetLeaderboardQuery) (*GetLeaderboardResult, error) {
	if err := q.Validate(); err != nil {
		return nil, shared.WrapError("query", "GetLeaderboard", shared.ErrValidation, err.Error(), err)
	}

	profiles, workouts, err := h.snapshots.Load(ctx, "GetLeaderboard", nil)
	if err != nil {
		return nil, err
	}

	metric := leaderboard.ParseMetric(q.Metric)
	entries := leaderboard.ComputeLeaderboard(profiles, workouts, leaderboard.Options{Metric: metric})
	total := len(entries)
	if q.Limit > 0 && q.Limit < total {
		entries = entries[:q.Limit]
	}

	return &GetLeaderboardResult{
		Metric:      string(metric),
		Entries:     newLeaderboardEntryDTOs(entries),
		TotalRanked: total,
		GeneratedAt: time.Now().UTC(),
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// GET COHORT LEADERBOARD QUERY
// Ranks a user among their accepted buddies by points.
// ══════════════════════════════════════════════════════════════════════════════

// GetCohortLeaderboardQuery contains the cohort parameters.
type GetCohortLeaderboardQuery struct {
	UserID string

	// Limit defaults to leaderboard.DefaultCohortLimit when 0.
	Limit int
}

// Validate checks the query.
func (q *GetCohortLeaderboardQuery) Validate() error {
	if q.UserID == "" {
		return errors.New("user id is required")
	}
	if q.Limit < 0 {
		return errors.New("limit cannot be negative")
	}
	if q.Limit > MaxLeaderboardLimit {
		q.Limit = MaxLeaderboardLimit
	}
	return nil
}

// GetCohortLeaderboardResult contains the cohort ranking.
type GetCohortLeaderboardResult struct {
	UserID      string                `json:"user_id"`
	CohortSize  int                   `json:"cohort_size"`
	Entries     []LeaderboardEntryDTO `json:"entries"`
	GeneratedAt time.Time             `json:"generated_at"`
}

// GetCohortLeaderboardHandler handles cohort leaderboard requests.
type GetCohortLeaderboardHandler struct {
	snapshots *SnapshotLoader
	buddies   social.Repository
}

// NewGetCohortLeaderboardHandler creates the handler.
func NewGetCohortLeaderboardHandler(snapshots *SnapshotLoader, buddies social.Repository) *GetCohortLeaderboardHandler {
	return &GetCohortLeaderboardHandler{snapshots: snapshots, buddies: buddies}
}

// Handle loads the user's accepted buddies and ranks the cohort.
func (h *GetCohortLeaderboardHandler) Handle(ctx context.Context, q GetCohortLeaderboardQuery) (*GetCohortLeaderboardResult, error) {
	if err := q.Validate(); err != nil {
		return nil, shared.WrapError("query", "GetCohortLeaderboard", shared.ErrValidation, err.Error(), err)
	}

	connected, err := h.buddies.ListConnections(ctx, q.UserID, social.ConnectionStatusAccepted)
	if err != nil {
		return nil, shared.WrapError("query", "GetCohortLeaderboard", shared.ErrServiceUnavailable, "failed to fetch buddies", err)
	}

	cohort := append([]string{q.UserID}, connected...)
	profiles, workouts, err := h.snapshots.Load(ctx, "GetCohortLeaderboard", cohort)
	if err != nil {
		return nil, err
	}

	entries := leaderboard.GetCohortLeaderboard(profiles, workouts, q.UserID, connected, q.Limit)

	return &GetCohortLeaderboardResult{
		UserID:      q.UserID,
		CohortSize:  len(leaderboard.NewCohort(cohort...)),
		Entries:     newLeaderboardEntryDTOs(entries),
		GeneratedAt: time.Now().UTC(),
	}, nil
}
