package query

import (
	"context"

	"github.com/fitbuddy/fitbuddy-hub/internal/domain/profile"
	"github.com/fitbuddy/fitbuddy-hub/internal/domain/shared"
	"github.com/fitbuddy/fitbuddy-hub/internal/domain/workout"
)

// SnapshotLoader reads the profile and workout snapshots the ranking code works on.
type SnapshotLoader struct {
	profiles profile.Repository
	workouts workout.Repository
}

// NewSnapshotLoader creates a loader.
func NewSnapshotLoader(profiles profile.Repository, workouts workout.Repository) *SnapshotLoader {
	return &SnapshotLoader{profiles: profiles, workouts: workouts}
}

// Load returns profiles and workouts, restricted to ids when ids is non-empty.
func (l *SnapshotLoader) Load(ctx context.Context, op string, ids []string) ([]profile.Profile, []workout.Record, error) {
	profiles, err := l.profiles.List(ctx, profile.ListFilter{IDs: ids})
	if err != nil {
		return nil, nil, shared.WrapError("query", op, shared.ErrServiceUnavailable, "failed to fetch profiles", err)
	}

	workouts, err := l.workouts.List(ctx, workout.ListFilter{UserIDs: ids})
	if err != nil {
		return nil, nil, shared.WrapError("query", op, shared.ErrServiceUnavailable, "failed to fetch workouts", err)
	}

	return profiles, workouts, nil
}
