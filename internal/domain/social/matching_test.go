package social

import (
	"testing"

	"github.com/fitbuddy/fitbuddy-hub/internal/domain/profile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func str(s string) *string { return &s }

func at(lat, lon float64) *profile.GeoPoint {
	return &profile.GeoPoint{Lat: lat, Lon: lon}
}

func TestMatch_GoalAndProximity(t *testing.T) {
	subject := profile.Profile{ID: "me", Goal: str("Weight Loss"), PreferredWorkout: str("Running"), Location: at(0, 0)}
	candidate := profile.Profile{ID: "c1", Goal: str("weight loss"), PreferredWorkout: str("Cycling"), Location: at(0, 0.01)}

	results := Match(subject, []profile.Profile{candidate})

	require.Len(t, results, 1)
	assert.Equal(t, 7, results[0].Score)
	require.NotNil(t, results[0].DistanceKm)
	assert.Equal(t, 1.1, *results[0].DistanceKm)
}

func TestMatch_WorkoutAt20Km(t *testing.T) {
	subject := profile.Profile{ID: "me", PreferredWorkout: str("Swimming"), Location: at(0, 0)}
	candidate := profile.Profile{ID: "c1", PreferredWorkout: str("SWIMMING"), Location: at(0, 0.18)}

	results := Match(subject, []profile.Profile{candidate})

	require.Len(t, results, 1)
	assert.Equal(t, 3, results[0].Score)
	require.NotNil(t, results[0].DistanceKm)
	assert.InDelta(t, 20.0, *results[0].DistanceKm, 0.1)
}

func TestMatch_ExcludesSubject(t *testing.T) {
	subject := profile.Profile{ID: "me", Goal: str("Strength")}
	candidates := []profile.Profile{
		{ID: "a", Goal: str("Strength")},
		{ID: "me", Goal: str("Strength")},
		{ID: "b"},
	}

	results := Match(subject, candidates)

	require.Len(t, results, 2)
	for _, r := range results {
		assert.NotEqual(t, "me", r.Profile.ID)
	}
}

func TestMatch_AbsentAttributesScoreNothing(t *testing.T) {
	subject := profile.Profile{ID: "me", Goal: str("Endurance"), Location: at(10, 10)}
	candidate := profile.Profile{ID: "c1", PreferredWorkout: str("Yoga")}

	results := Match(subject, []profile.Profile{candidate})

	require.Len(t, results, 1)
	assert.Equal(t, 0, results[0].Score)
	assert.Nil(t, results[0].DistanceKm, "distance must be absent, not zero")
}

func TestMatch_ZeroDistanceIsPresent(t *testing.T) {
	subject := profile.Profile{ID: "me", Location: at(51.5, -0.12)}
	candidate := profile.Profile{ID: "c1", Location: at(51.5, -0.12)}

	results := Match(subject, []profile.Profile{candidate})

	require.NotNil(t, results[0].DistanceKm)
	assert.Equal(t, 0.0, *results[0].DistanceKm)
	assert.Equal(t, 4, results[0].Score)
}

func TestMatch_StableOrderOnTies(t *testing.T) {
	subject := profile.Profile{ID: "me", Goal: str("Flexibility")}
	candidates := []profile.Profile{
		{ID: "first"},
		{ID: "best", Goal: str("flexibility")},
		{ID: "second"},
		{ID: "third"},
	}

	results := Match(subject, candidates)

	ids := make([]string, 0, len(results))
	for _, r := range results {
		ids = append(ids, r.Profile.ID)
	}
	assert.Equal(t, []string{"best", "first", "second", "third"}, ids)
}

func TestMatch_Empty(t *testing.T) {
	assert.Empty(t, Match(profile.Profile{ID: "me"}, nil))
}

func TestHaversineKm_Symmetric(t *testing.T) {
	almaty := profile.GeoPoint{Lat: 43.238, Lon: 76.945}
	astana := profile.GeoPoint{Lat: 51.169, Lon: 71.449}

	d1 := HaversineKm(almaty, astana)
	d2 := HaversineKm(astana, almaty)

	assert.InDelta(t, d1, d2, 1e-9)
	assert.Greater(t, d1, 900.0)
	assert.Less(t, d1, 1000.0)
}

func TestMatch_DistanceSymmetric(t *testing.T) {
	a := profile.Profile{ID: "a", Location: at(40.7128, -74.0060)}
	b := profile.Profile{ID: "b", Location: at(40.7306, -73.9352)}

	ab := Match(a, []profile.Profile{b})
	ba := Match(b, []profile.Profile{a})

	require.NotNil(t, ab[0].DistanceKm)
	require.NotNil(t, ba[0].DistanceKm)
	assert.Equal(t, *ab[0].DistanceKm, *ba[0].DistanceKm)
	assert.GreaterOrEqual(t, *ab[0].DistanceKm, 0.0)
}

func TestProximityScore(t *testing.T) {
	tests := []struct {
		km   float64
		want int
	}{
		{0, 4},
		{4.99, 4},
		{5, 2},
		{14.9, 2},
		{15, 1},
		{29.99, 1},
		{30, 0},
		{500, 0},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ProximityScore(tt.km), "distance %v", tt.km)
	}
}
