package app

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fitbuddy/fitbuddy-hub/config"
	"github.com/fitbuddy/fitbuddy-hub/internal/application/command"
)

func memoryConfig() *config.Config {
	return &config.Config{
		App:      config.AppConfig{Name: "fitbuddy-test", Version: "test"},
		Database: config.DatabaseConfig{URL: "memory://", MaxConns: 1},
		Redis:    config.RedisConfig{Disabled: true},
	}
}

func TestOpenInMemory(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	infra, err := Open(context.Background(), memoryConfig(), log)
	require.NoError(t, err)
	t.Cleanup(infra.Close)

	assert.Nil(t, infra.Redis)
	assert.NotNil(t, infra.Bus)

	status := infra.Health.Check(context.Background())
	assert.True(t, status.Healthy)
	assert.Contains(t, status.Checks, "database")
}

func TestWorkoutAwardsBadges(t *testing.T) {
	ctx := context.Background()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	infra, err := Open(ctx, memoryConfig(), log)
	require.NoError(t, err)
	t.Cleanup(infra.Close)

	application := NewApplication(infra, log)
	require.NoError(t, application.RegisterEventHandlers(infra))

	user, err := application.CreateProfile.Handle(ctx, command.CreateProfileCommand{Username: "runner"})
	require.NoError(t, err)

	minutes := 75.0
	_, err = application.LogWorkout.Handle(ctx, command.LogWorkoutCommand{
		UserID:          user.ID,
		Type:            "running",
		DurationMinutes: &minutes,
	})
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		res, err := application.ListAchievements.Handle(ctx, user.ID)
		if err != nil {
			return false
		}
		earned := make(map[string]bool, len(res.Earned))
		for _, b := range res.Earned {
			earned[b.Type] = true
		}
		return earned["first_workout"] && earned["hour_club"] && earned["top_10"]
	}, 2*time.Second, 10*time.Millisecond)

	deps := application.HTTPDependencies(infra)
	assert.NotNil(t, deps.CreateProfile)
	assert.NotNil(t, deps.Events)
}
