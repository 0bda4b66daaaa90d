package leaderboard

import (
	"testing"

	"github.com/fitbuddy/fitbuddy-hub/internal/domain/profile"
	"github.com/fitbuddy/fitbuddy-hub/internal/domain/workout"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func f(v float64) *float64 { return &v }

func w(userID string, minutes, calories *float64) workout.Record {
	return workout.Record{UserID: userID, Type: "Running", DurationMinutes: minutes, CaloriesBurned: calories}
}

func fixture() ([]profile.Profile, []workout.Record) {
	profiles := []profile.Profile{
		{ID: "A", Username: "anna"},
		{ID: "B", Username: "boris"},
		{ID: "C", Username: "chen"},
	}
	workouts := []workout.Record{
		w("A", f(30), f(200)),
		w("B", f(60), f(400)),
		w("A", f(45), f(300)),
	}
	return profiles, workouts
}

func ids(entries []Entry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.ID)
	}
	return out
}

func TestComputeLeaderboard_Points(t *testing.T) {
	profiles, workouts := fixture()

	board := ComputeLeaderboard(profiles, workouts, Options{})

	require.Len(t, board, 2)
	assert.Equal(t, "A", board[0].ID)
	assert.Equal(t, Rank(1), board[0].Rank)
	assert.Equal(t, 2, board[0].WorkoutCount)
	assert.InDelta(t, 75.0, board[0].TotalMinutes, 1e-9)
	assert.InDelta(t, 500.0, board[0].TotalCalories, 1e-9)
	assert.InDelta(t, 145.0, board[0].Points, 1e-9)

	assert.Equal(t, "B", board[1].ID)
	assert.Equal(t, Rank(2), board[1].Rank)
	assert.InDelta(t, 110.0, board[1].Points, 1e-9)
}

func TestComputeLeaderboard_ExcludesZeroActivity(t *testing.T) {
	profiles, workouts := fixture()

	board := ComputeLeaderboard(profiles, workouts, Options{})

	assert.NotContains(t, ids(board), "C")
}

func TestComputeLeaderboard_Idempotent(t *testing.T) {
	profiles, workouts := fixture()

	first := ComputeLeaderboard(profiles, workouts, Options{Metric: MetricMinutes})
	second := ComputeLeaderboard(profiles, workouts, Options{Metric: MetricMinutes})

	assert.Equal(t, first, second)
}

func TestComputeLeaderboard_Metrics(t *testing.T) {
	profiles := []profile.Profile{{ID: "runner"}, {ID: "lifter"}, {ID: "casual"}}
	workouts := []workout.Record{
		w("runner", f(120), f(100)),
		w("lifter", f(20), f(900)),
		w("casual", f(5), nil),
		w("casual", f(5), nil),
		w("casual", f(5), nil),
	}

	assert.Equal(t, []string{"runner", "lifter", "casual"}, ids(ComputeLeaderboard(profiles, workouts, Options{Metric: MetricMinutes})))
	assert.Equal(t, []string{"lifter", "runner", "casual"}, ids(ComputeLeaderboard(profiles, workouts, Options{Metric: MetricCalories})))
	assert.Equal(t, []string{"casual", "runner", "lifter"}, ids(ComputeLeaderboard(profiles, workouts, Options{Metric: MetricWorkouts})))
}

func TestComputeLeaderboard_TiesKeepProfileOrder(t *testing.T) {
	profiles := []profile.Profile{{ID: "z"}, {ID: "a"}, {ID: "m"}}
	workouts := []workout.Record{
		w("m", f(10), nil),
		w("a", f(10), nil),
		w("z", f(10), nil),
	}

	board := ComputeLeaderboard(profiles, workouts, Options{})

	assert.Equal(t, []string{"z", "a", "m"}, ids(board))
	assert.Equal(t, Rank(3), board[2].Rank)
}

func TestComputeLeaderboard_MissingFieldsCountAsZero(t *testing.T) {
	profiles := []profile.Profile{{ID: "A"}}
	workouts := []workout.Record{w("A", nil, nil), w("A", f(-10), nil)}

	board := ComputeLeaderboard(profiles, workouts, Options{})

	require.Len(t, board, 1)
	assert.Equal(t, 2, board[0].WorkoutCount)
	assert.Equal(t, 0.0, board[0].TotalMinutes)
	assert.InDelta(t, 20.0, board[0].Points, 1e-9)
}

func TestComputeLeaderboard_IgnoresOrphanWorkoutsAndDuplicates(t *testing.T) {
	profiles := []profile.Profile{{ID: "A", Username: "first"}, {ID: "A", Username: "dup"}}
	workouts := []workout.Record{w("A", f(10), nil), w("ghost", f(999), nil)}

	board := ComputeLeaderboard(profiles, workouts, Options{})

	require.Len(t, board, 1)
	assert.Equal(t, "first", board[0].Username)
	assert.Equal(t, 1, board[0].WorkoutCount)
}

func TestComputeLeaderboard_CohortAndLimit(t *testing.T) {
	profiles, workouts := fixture()

	board := ComputeLeaderboard(profiles, workouts, Options{Cohort: NewCohort("B", "C")})
	assert.Equal(t, []string{"B"}, ids(board))
	assert.Equal(t, Rank(1), board[0].Rank)

	board = ComputeLeaderboard(profiles, workouts, Options{Limit: 1})
	assert.Equal(t, []string{"A"}, ids(board))
}

func TestGetUserRank(t *testing.T) {
	profiles, workouts := fixture()

	r := GetUserRank(profiles, workouts, "B", MetricPoints)
	require.True(t, r.IsRanked())
	assert.Equal(t, Rank(2), *r.Rank)
	assert.Equal(t, "B", r.Entry.ID)

	r = GetUserRank(profiles, workouts, "C", MetricPoints)
	assert.False(t, r.IsRanked())
	assert.Nil(t, r.Entry)

	r = GetUserRank(profiles, workouts, "nobody", MetricPoints)
	assert.Nil(t, r.Rank)
}

func TestGetCohortLeaderboard(t *testing.T) {
	profiles, workouts := fixture()
	workouts = append(workouts, w("C", f(1), nil))

	board := GetCohortLeaderboard(profiles, workouts, "C", []string{"B"}, 0)

	assert.Equal(t, []string{"B", "C"}, ids(board))
}

func TestGetCohortLeaderboard_ZeroActivityRequesterExcluded(t *testing.T) {
	profiles, workouts := fixture()

	board := GetCohortLeaderboard(profiles, workouts, "C", []string{"A"}, 10)

	assert.Equal(t, []string{"A"}, ids(board))
}

func TestGetCohortLeaderboard_DefaultLimit(t *testing.T) {
	profiles := make([]profile.Profile, 0, 60)
	workouts := make([]workout.Record, 0, 60)
	connected := make([]string, 0, 60)
	for i := 0; i < 60; i++ {
		id := string(rune('a'+i%26)) + string(rune('A'+i/26))
		profiles = append(profiles, profile.Profile{ID: id})
		workouts = append(workouts, w(id, f(float64(i)), nil))
		connected = append(connected, id)
	}

	board := GetCohortLeaderboard(profiles, workouts, "me", connected, 0)

	assert.Len(t, board, DefaultCohortLimit)
}

func TestParseMetric(t *testing.T) {
	assert.Equal(t, MetricPoints, ParseMetric(""))
	assert.Equal(t, MetricPoints, ParseMetric("xp"))
	assert.Equal(t, MetricCalories, ParseMetric("Calories"))
	assert.Equal(t, MetricWorkouts, ParseMetric(" workouts "))
}
