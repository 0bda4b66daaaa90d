package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fitbuddy/fitbuddy-hub/internal/application/query"
	"github.com/fitbuddy/fitbuddy-hub/internal/application/saga"
	"github.com/fitbuddy/fitbuddy-hub/internal/domain/achievement"
	"github.com/fitbuddy/fitbuddy-hub/internal/domain/profile"
	"github.com/fitbuddy/fitbuddy-hub/internal/domain/workout"
	"github.com/fitbuddy/fitbuddy-hub/internal/infrastructure/persistence/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRunner struct {
	mu   sync.Mutex
	seen []string
}

func (r *stubRunner) ExecuteWithRanks(_ context.Context, userID string, _ saga.RankReader) (*saga.AchievementFlowResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, userID)
	if userID == "broken" {
		return nil, errors.New("boom")
	}
	return &saga.AchievementFlowResult{UserID: userID, NewBadges: []achievement.Type{achievement.TypeFirstWorkout}}, nil
}

type stubLocker struct {
	held     bool
	released int
}

func (l *stubLocker) Acquire(context.Context, string, time.Duration) (func(context.Context) error, bool, error) {
	if l.held {
		return nil, false, nil
	}
	return func(context.Context) error { l.released++; return nil }, true, nil
}

// countingWorkouts counts full-table reads.
type countingWorkouts struct {
	workout.Repository
	lists atomic.Int64
}

func (c *countingWorkouts) List(ctx context.Context, filter workout.ListFilter) ([]workout.Record, error) {
	c.lists.Add(1)
	return c.Repository.List(ctx, filter)
}

func seedProfiles(t *testing.T, ids ...string) *memory.Store {
	t.Helper()
	store := memory.NewStore()
	for _, id := range ids {
		require.NoError(t, store.Profiles().Create(context.Background(), &profile.Profile{ID: id, Username: id}))
	}
	return store
}

func rankHandler(store *memory.Store) *query.GetUserRankHandler {
	return query.NewGetUserRankHandler(query.NewSnapshotLoader(store.Profiles(), store.Workouts()))
}

func TestAchievementSweep_VisitsEveryProfile(t *testing.T) {
	store := seedProfiles(t, "a", "b", "broken")
	runner := &stubRunner{}
	locker := &stubLocker{}
	job := NewAchievementSweepJob(rankHandler(store), runner, locker, nil, DefaultAchievementSweepConfig())

	require.NoError(t, job.Run(context.Background()))
	assert.ElementsMatch(t, []string{"a", "b", "broken"}, runner.seen)
	assert.Equal(t, 1, locker.released)

	stats := job.LastStats()
	require.NotNil(t, stats)
	assert.Equal(t, 3, stats.UsersChecked)
	assert.Equal(t, 2, stats.BadgesAwarded)
	assert.Equal(t, 1, stats.Failures)
}

func TestAchievementSweep_SkipsWhenLocked(t *testing.T) {
	store := seedProfiles(t, "a")
	runner := &stubRunner{}
	job := NewAchievementSweepJob(rankHandler(store), runner, &stubLocker{held: true}, nil, DefaultAchievementSweepConfig())

	require.NoError(t, job.Run(context.Background()))
	assert.Empty(t, runner.seen)
	assert.True(t, job.LastStats().Skipped)
	assert.Equal(t, AchievementSweepName, job.Name())
}

func TestAchievementSweep_ReadsWorkoutsOncePerRun(t *testing.T) {
	ctx := context.Background()
	const users = 50

	ids := make([]string, users)
	for i := range ids {
		ids[i] = fmt.Sprintf("user-%02d", i)
	}
	store := seedProfiles(t, ids...)

	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	for i, id := range ids {
		minutes := float64(10 + i)
		rec, err := workout.NewRecord(fmt.Sprintf("w-%02d", i), id, "run", &minutes, nil, base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, err)
		require.NoError(t, store.Workouts().Create(ctx, rec))
	}

	workouts := &countingWorkouts{Repository: store.Workouts()}
	ranks := query.NewGetUserRankHandler(query.NewSnapshotLoader(store.Profiles(), workouts))
	flow := saga.NewAchievementFlowSaga(ranks, store.Buddies(), store.Achievements(), nil, nil, saga.DefaultAchievementFlowConfig())

	job := NewAchievementSweepJob(ranks, flow, nil, nil, DefaultAchievementSweepConfig())
	require.NoError(t, job.Run(ctx))

	assert.EqualValues(t, 1, workouts.lists.Load())

	stats := job.LastStats()
	require.NotNil(t, stats)
	assert.Equal(t, users, stats.UsersChecked)
	assert.Zero(t, stats.Failures)

	// user-49 has the most minutes and so the top rank
	top, err := store.Achievements().HasAchievement(ctx, "user-49", achievement.TypeTop10)
	require.NoError(t, err)
	assert.True(t, top)

	bottom, err := store.Achievements().HasAchievement(ctx, "user-00", achievement.TypeTop10)
	require.NoError(t, err)
	assert.False(t, bottom)
}
