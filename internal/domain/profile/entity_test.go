package profile

import (
	"math"
	"testing"

	"github.com/fitbuddy/fitbuddy-hub/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func TestNewGeoPoint(t *testing.T) {
	tests := []struct {
		name     string
		lat, lon *float64
		want     *GeoPoint
	}{
		{"both present", ptr(43.25), ptr(76.95), &GeoPoint{Lat: 43.25, Lon: 76.95}},
		{"zero is a real location", ptr(0.0), ptr(0.0), &GeoPoint{}},
		{"missing latitude", nil, ptr(76.95), nil},
		{"missing longitude", ptr(43.25), nil, nil},
		{"latitude out of range", ptr(91.0), ptr(0.0), nil},
		{"longitude out of range", ptr(0.0), ptr(-180.5), nil},
		{"nan", ptr(math.NaN()), ptr(0.0), nil},
		{"inf", ptr(0.0), ptr(math.Inf(1)), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NewGeoPoint(tt.lat, tt.lon))
		})
	}
}

func TestNormalizeOptional(t *testing.T) {
	assert.Nil(t, NormalizeOptional(nil))
	assert.Nil(t, NormalizeOptional(ptr("   ")))
	assert.Equal(t, "Running", *NormalizeOptional(ptr("  Running ")))
}

func TestUpdateFields_Apply(t *testing.T) {
	base := Profile{
		ID:       "u1",
		Username: "anna",
		Goal:     ptr("Weight Loss"),
		Location: &GeoPoint{Lat: 1, Lon: 2},
	}

	t.Run("partial update keeps other fields", func(t *testing.T) {
		got, err := UpdateFields{PreferredWorkout: ptr("Yoga")}.Apply(base)
		require.NoError(t, err)
		assert.Equal(t, "Weight Loss", *got.Goal)
		assert.Equal(t, "Yoga", *got.PreferredWorkout)
		assert.Equal(t, base.Location, got.Location)
	})

	t.Run("blank goal clears it", func(t *testing.T) {
		got, err := UpdateFields{Goal: ptr("")}.Apply(base)
		require.NoError(t, err)
		assert.Nil(t, got.Goal)
	})

	t.Run("half a location is rejected", func(t *testing.T) {
		_, err := UpdateFields{Latitude: ptr(10.0)}.Apply(base)
		require.Error(t, err)
		assert.True(t, shared.IsValidation(err))
	})

	t.Run("clear location", func(t *testing.T) {
		got, err := UpdateFields{ClearLocation: true, Latitude: ptr(5.0)}.Apply(base)
		require.NoError(t, err)
		assert.Nil(t, got.Location)
	})

	t.Run("empty username is rejected", func(t *testing.T) {
		_, err := UpdateFields{Username: ptr(" ")}.Apply(base)
		assert.ErrorIs(t, err, shared.ErrEmptyValue)
	})
}

func TestUpdateFields_Names(t *testing.T) {
	u := UpdateFields{Goal: ptr("x"), Latitude: ptr(1.0), Longitude: ptr(2.0)}
	assert.Equal(t, []string{"goal", "location"}, u.Names())
	assert.True(t, UpdateFields{}.IsEmpty())
	assert.False(t, u.IsEmpty())
}
