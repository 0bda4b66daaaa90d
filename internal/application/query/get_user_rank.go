package query

import (
	"context"
	"errors"
	"sync"

	"github.com/fitbuddy/fitbuddy-hub/internal/domain/leaderboard"
	"github.com/fitbuddy/fitbuddy-hub/internal/domain/profile"
	"github.com/fitbuddy/fitbuddy-hub/internal/domain/shared"
	"github.com/fitbuddy/fitbuddy-hub/internal/domain/workout"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET USER RANK QUERY
// A single user's position on the global leaderboard.
// ══════════════════════════════════════════════════════════════════════════════

// GetUserRankQuery contains the rank parameters.
type GetUserRankQuery struct {
	UserID string
	Metric string
}

// Validate checks the query.
func (q GetUserRankQuery) Validate() error {
	if q.UserID == "" {
		return errors.New("user id is required")
	}
	return nil
}

// GetUserRankResult is the user's rank. Rank and Entry are null when the
// user has no logged activity.
type GetUserRankResult struct {
	UserID      string               `json:"user_id"`
	Metric      string               `json:"metric"`
	Rank        *int                 `json:"rank"`
	Entry       *LeaderboardEntryDTO `json:"entry"`
	TotalRanked int                  `json:"total_ranked"`
}

// GetUserRankHandler handles rank requests.
type GetUserRankHandler struct {
	snapshots *SnapshotLoader
}

// NewGetUserRankHandler creates the handler.
func NewGetUserRankHandler(snapshots *SnapshotLoader) *GetUserRankHandler {
	return &GetUserRankHandler{snapshots: snapshots}
}

// Handle computes the rank from a fresh snapshot.
func (h *GetUserRankHandler) Handle(ctx context.Context, q GetUserRankQuery) (*GetUserRankResult, error) {
	rank, total, err := h.Rank(ctx, q)
	if err != nil {
		return nil, err
	}

	metric := leaderboard.ParseMetric(q.Metric)
	result := &GetUserRankResult{
		UserID:      q.UserID,
		Metric:      string(metric),
		TotalRanked: total,
	}
	if rank.IsRanked() {
		r := int(*rank.Rank)
		entry := NewLeaderboardEntryDTO(*rank.Entry)
		result.Rank = &r
		result.Entry = &entry
	}

	return result, nil
}

// Rank returns the domain rank together with the number of ranked users.
func (h *GetUserRankHandler) Rank(ctx context.Context, q GetUserRankQuery) (leaderboard.UserRank, int, error) {
	if err := q.Validate(); err != nil {
		return leaderboard.UserRank{}, 0, shared.WrapError("query", "GetUserRank", shared.ErrValidation, err.Error(), err)
	}

	snapshot, err := h.Snapshot(ctx)
	if err != nil {
		return leaderboard.UserRank{}, 0, err
	}
	return snapshot.Rank(ctx, q)
}

// Snapshot loads profiles and workouts once for many rank lookups.
func (h *GetUserRankHandler) Snapshot(ctx context.Context) (*RankSnapshot, error) {
	profiles, workouts, err := h.snapshots.Load(ctx, "GetUserRank", nil)
	if err != nil {
		return nil, err
	}
	return NewRankSnapshot(profiles, workouts), nil
}

// RankSnapshot answers rank queries against one loaded snapshot.
// Each metric's leaderboard is computed on first use and reused after.
// It is safe for concurrent use.
type RankSnapshot struct {
	profiles []profile.Profile
	workouts []workout.Record

	mu        sync.Mutex
	standings map[leaderboard.Metric]*leaderboard.Standings
}

// NewRankSnapshot wraps already loaded data.
func NewRankSnapshot(profiles []profile.Profile, workouts []workout.Record) *RankSnapshot {
	return &RankSnapshot{
		profiles:  profiles,
		workouts:  workouts,
		standings: make(map[leaderboard.Metric]*leaderboard.Standings),
	}
}

// Rank has the same contract as GetUserRankHandler.Rank.
func (s *RankSnapshot) Rank(_ context.Context, q GetUserRankQuery) (leaderboard.UserRank, int, error) {
	if err := q.Validate(); err != nil {
		return leaderboard.UserRank{}, 0, shared.WrapError("query", "GetUserRank", shared.ErrValidation, err.Error(), err)
	}

	standings := s.Standings(leaderboard.ParseMetric(q.Metric))
	return standings.Lookup(q.UserID), standings.Len(), nil
}

// Standings returns the full leaderboard for metric.
func (s *RankSnapshot) Standings(metric leaderboard.Metric) *leaderboard.Standings {
	s.mu.Lock()
	defer s.mu.Unlock()

	if st, ok := s.standings[metric]; ok {
		return st
	}
	st := leaderboard.NewStandings(leaderboard.ComputeLeaderboard(s.profiles, s.workouts, leaderboard.Options{Metric: metric}))
	s.standings[metric] = st
	return st
}

// UserIDs lists every profile in the snapshot.
func (s *RankSnapshot) UserIDs() []string {
	ids := make([]string, 0, len(s.profiles))
	for _, p := range s.profiles {
		ids = append(ids, p.ID)
	}
	return ids
}
