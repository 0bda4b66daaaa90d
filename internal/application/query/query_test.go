package query

import (
	"context"
	"testing"
	"time"

	"github.com/fitbuddy/fitbuddy-hub/internal/domain/profile"
	"github.com/fitbuddy/fitbuddy-hub/internal/domain/shared"
	"github.com/fitbuddy/fitbuddy-hub/internal/domain/social"
	"github.com/fitbuddy/fitbuddy-hub/internal/domain/workout"
	"github.com/fitbuddy/fitbuddy-hub/internal/infrastructure/persistence/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

type fixture struct {
	store *memory.Store
	clock time.Time
}

func newFixture() *fixture {
	return &fixture{
		store: memory.NewStore(),
		clock: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC),
	}
}

func (f *fixture) profile(t *testing.T, p profile.Profile) {
	t.Helper()
	f.clock = f.clock.Add(time.Minute)
	p.Username = p.ID
	p.CreatedAt = f.clock
	require.NoError(t, f.store.Profiles().Create(context.Background(), &p))
}

func (f *fixture) workout(t *testing.T, userID string, minutes, calories float64) {
	t.Helper()
	f.clock = f.clock.Add(time.Minute)
	r, err := workout.NewRecord(userID+f.clock.Format("150405"), userID, "run", &minutes, &calories, f.clock)
	require.NoError(t, err)
	require.NoError(t, f.store.Workouts().Create(context.Background(), r))
}

func (f *fixture) connect(t *testing.T, id, a, b string) {
	t.Helper()
	c, err := social.NewConnection(id, a, b)
	require.NoError(t, err)
	require.NoError(t, f.store.Buddies().CreateRequest(context.Background(), c))
	require.NoError(t, c.Respond(b, true))
	require.NoError(t, f.store.Buddies().UpdateStatus(context.Background(), c))
}

func (f *fixture) snapshots() *SnapshotLoader {
	return NewSnapshotLoader(f.store.Profiles(), f.store.Workouts())
}

func TestFindBuddies(t *testing.T) {
	f := newFixture()
	loc := func(lat, lon float64) *profile.GeoPoint { return &profile.GeoPoint{Lat: lat, Lon: lon} }
	f.profile(t, profile.Profile{ID: "me", Goal: ptr("strength"), PreferredWorkout: ptr("run"), Location: loc(40.0, -74.0)})
	f.profile(t, profile.Profile{ID: "near", Goal: ptr("Strength"), Location: loc(40.01, -74.0)})
	f.profile(t, profile.Profile{ID: "runner", PreferredWorkout: ptr("RUN")})
	f.profile(t, profile.Profile{ID: "nobody"})
	f.connect(t, "c1", "me", "runner")

	h := NewFindBuddiesHandler(f.store.Profiles(), f.store.Buddies())

	res, err := h.Handle(context.Background(), FindBuddiesQuery{UserID: "me"})
	require.NoError(t, err)
	require.Len(t, res.Matches, 3)
	assert.Equal(t, "near", res.Matches[0].Profile.ID)
	assert.Equal(t, 7, res.Matches[0].Score)
	require.NotNil(t, res.Matches[0].DistanceKm)
	assert.Equal(t, "runner", res.Matches[1].Profile.ID)
	assert.Nil(t, res.Matches[1].DistanceKm)

	res, err = h.Handle(context.Background(), FindBuddiesQuery{UserID: "me", MinScore: 1, ExcludeConnected: true})
	require.NoError(t, err)
	require.Len(t, res.Matches, 1)
	assert.Equal(t, "near", res.Matches[0].Profile.ID)

	_, err = h.Handle(context.Background(), FindBuddiesQuery{UserID: "ghost"})
	assert.True(t, shared.IsNotFound(err))

	_, err = h.Handle(context.Background(), FindBuddiesQuery{UserID: "me", Limit: -1})
	assert.True(t, shared.IsValidation(err))
}

func TestGetLeaderboard(t *testing.T) {
	f := newFixture()
	f.profile(t, profile.Profile{ID: "a"})
	f.profile(t, profile.Profile{ID: "b"})
	f.profile(t, profile.Profile{ID: "idle"})
	f.workout(t, "a", 30, 100)
	f.workout(t, "b", 60, 0)

	h := NewGetLeaderboardHandler(f.snapshots())

	res, err := h.Handle(context.Background(), GetLeaderboardQuery{})
	require.NoError(t, err)
	assert.Equal(t, "points", res.Metric)
	require.Len(t, res.Entries, 2)
	assert.Equal(t, "b", res.Entries[0].ID)
	assert.Equal(t, 1, res.Entries[0].Rank)
	assert.InDelta(t, 70.0, res.Entries[0].Points, 1e-9)

	res, err = h.Handle(context.Background(), GetLeaderboardQuery{Metric: "calories", Limit: 1})
	require.NoError(t, err)
	require.Len(t, res.Entries, 1)
	assert.Equal(t, "a", res.Entries[0].ID)
	assert.Equal(t, 2, res.TotalRanked)
}

func TestGetCohortLeaderboard(t *testing.T) {
	f := newFixture()
	for _, id := range []string{"me", "friend", "stranger"} {
		f.profile(t, profile.Profile{ID: id})
		f.workout(t, id, 10, 0)
	}
	f.connect(t, "c1", "friend", "me")

	h := NewGetCohortLeaderboardHandler(f.snapshots(), f.store.Buddies())
	res, err := h.Handle(context.Background(), GetCohortLeaderboardQuery{UserID: "me"})
	require.NoError(t, err)
	assert.Equal(t, 2, res.CohortSize)
	ids := []string{res.Entries[0].ID, res.Entries[1].ID}
	assert.ElementsMatch(t, []string{"me", "friend"}, ids)
}

func TestGetUserRank(t *testing.T) {
	f := newFixture()
	f.profile(t, profile.Profile{ID: "a"})
	f.profile(t, profile.Profile{ID: "b"})
	f.workout(t, "a", 10, 0)

	h := NewGetUserRankHandler(f.snapshots())

	res, err := h.Handle(context.Background(), GetUserRankQuery{UserID: "a"})
	require.NoError(t, err)
	require.NotNil(t, res.Rank)
	assert.Equal(t, 1, *res.Rank)
	assert.Equal(t, 1, res.TotalRanked)

	res, err = h.Handle(context.Background(), GetUserRankQuery{UserID: "b"})
	require.NoError(t, err)
	assert.Nil(t, res.Rank)
	assert.Nil(t, res.Entry)
}

func TestRankSnapshot(t *testing.T) {
	f := newFixture()
	for _, id := range []string{"a", "b", "c"} {
		f.profile(t, profile.Profile{ID: id})
	}
	f.workout(t, "a", 10, 0)
	f.workout(t, "b", 30, 0)
	f.workout(t, "c", 0, 400)

	ctx := context.Background()
	h := NewGetUserRankHandler(f.snapshots())

	snap, err := h.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, snap.UserIDs())

	for _, metric := range []string{"points", "calories", "minutes"} {
		for _, id := range []string{"a", "b", "c", "ghost"} {
			q := GetUserRankQuery{UserID: id, Metric: metric}
			want, wantTotal, err := h.Rank(ctx, q)
			require.NoError(t, err)
			got, gotTotal, err := snap.Rank(ctx, q)
			require.NoError(t, err)

			assert.Equal(t, want, got, "%s/%s", metric, id)
			assert.Equal(t, wantTotal, gotTotal)
		}
	}

	rank, total, err := snap.Rank(ctx, GetUserRankQuery{UserID: "c", Metric: "calories"})
	require.NoError(t, err)
	require.True(t, rank.IsRanked())
	assert.EqualValues(t, 1, *rank.Rank)
	assert.Equal(t, 3, total)

	assert.Same(t, snap.Standings("points"), snap.Standings("points"))

	_, _, err = snap.Rank(ctx, GetUserRankQuery{})
	assert.True(t, shared.IsValidation(err))
}

func TestListWorkouts_KeepsMostRecent(t *testing.T) {
	f := newFixture()
	f.profile(t, profile.Profile{ID: "a"})
	f.workout(t, "a", 1, 0)
	f.workout(t, "a", 2, 0)
	f.workout(t, "a", 3, 0)

	h := NewListWorkoutsHandler(f.store.Profiles(), f.store.Workouts())
	out, err := h.Handle(context.Background(), ListWorkoutsQuery{UserID: "a", Limit: 2})
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.NotNil(t, out[1].DurationMinutes)
	assert.Equal(t, 3.0, *out[1].DurationMinutes)

	_, err = h.Handle(context.Background(), ListWorkoutsQuery{UserID: "ghost"})
	assert.True(t, shared.IsNotFound(err))
}

func TestListBuddiesAndAchievements(t *testing.T) {
	f := newFixture()
	f.profile(t, profile.Profile{ID: "a"})
	f.profile(t, profile.Profile{ID: "b"})
	f.connect(t, "c1", "a", "b")

	buddies, err := NewListBuddiesHandler(f.store.Buddies()).Handle(context.Background(), ListBuddiesQuery{UserID: "b"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, buddies.IDs)
	assert.Len(t, buddies.Requests, 1)

	_, err = NewListBuddiesHandler(f.store.Buddies()).Handle(context.Background(), ListBuddiesQuery{UserID: "b", Status: "blocked"})
	assert.True(t, shared.IsValidation(err))

	_, err = f.store.Achievements().Award(context.Background(), "a", "buddy_up")
	require.NoError(t, err)

	badges, err := NewListAchievementsHandler(f.store.Achievements()).Handle(context.Background(), "a")
	require.NoError(t, err)
	require.Len(t, badges.Earned, 1)
	assert.Equal(t, "buddy_up", badges.Earned[0].Type)
	assert.NotContains(t, badges.Locked, "buddy_up")
}
