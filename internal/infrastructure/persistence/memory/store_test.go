package memory

import (
	"context"
	"testing"
	"time"

	"github.com/fitbuddy/fitbuddy-hub/internal/domain/achievement"
	"github.com/fitbuddy/fitbuddy-hub/internal/domain/profile"
	"github.com/fitbuddy/fitbuddy-hub/internal/domain/shared"
	"github.com/fitbuddy/fitbuddy-hub/internal/domain/social"
	"github.com/fitbuddy/fitbuddy-hub/internal/domain/workout"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seed(t *testing.T, s *Store, ids ...string) {
	t.Helper()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range ids {
		require.NoError(t, s.Profiles().Create(context.Background(), &profile.Profile{
			ID:        id,
			Username:  id,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}
}

func TestProfileRepository_UniqueAndOrdered(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	seed(t, s, "b", "a")

	err := s.Profiles().Create(ctx, &profile.Profile{ID: "c", Username: "a"})
	assert.True(t, shared.IsAlreadyExists(err))

	list, err := s.Profiles().List(ctx, profile.ListFilter{})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "b", list[0].ID)

	_, err = s.Profiles().GetByID(ctx, "missing")
	assert.True(t, shared.IsNotFound(err))
}

func TestProfileRepository_DeleteCascades(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	seed(t, s, "alice", "bob")

	rec, err := workout.NewRecord("w1", "alice", "run", nil, nil, time.Time{})
	require.NoError(t, err)
	require.NoError(t, s.Workouts().Create(ctx, rec))

	conn, err := social.NewConnection("c1", "alice", "bob")
	require.NoError(t, err)
	require.NoError(t, s.Buddies().CreateRequest(ctx, conn))

	_, err = s.Achievements().Award(ctx, "alice", achievement.TypeFirstWorkout)
	require.NoError(t, err)

	require.NoError(t, s.Profiles().Delete(ctx, "alice"))

	workouts, _ := s.Workouts().List(ctx, workout.ListFilter{})
	assert.Empty(t, workouts)
	ids, _ := s.Buddies().ListConnections(ctx, "bob", social.ConnectionStatusPending)
	assert.Empty(t, ids)
	badges, _ := s.Achievements().List(ctx, "alice")
	assert.Empty(t, badges)
}

func TestBuddyRepository_PairIsUniqueInBothDirections(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	seed(t, s, "alice", "bob")

	c1, _ := social.NewConnection("c1", "alice", "bob")
	require.NoError(t, s.Buddies().CreateRequest(ctx, c1))

	c2, _ := social.NewConnection("c2", "bob", "alice")
	assert.True(t, shared.IsAlreadyExists(s.Buddies().CreateRequest(ctx, c2)))

	require.NoError(t, c1.Respond("bob", true))
	require.NoError(t, s.Buddies().UpdateStatus(ctx, c1))
	assert.True(t, shared.IsConflict(s.Buddies().UpdateStatus(ctx, c1)))

	n, err := s.Buddies().CountAccepted(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestBuddyRepository_RejectedPairCanRequestAgain(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	seed(t, s, "alice", "bob")

	c1, _ := social.NewConnection("c1", "alice", "bob")
	require.NoError(t, s.Buddies().CreateRequest(ctx, c1))
	require.NoError(t, c1.Respond("bob", false))
	require.NoError(t, s.Buddies().UpdateStatus(ctx, c1))

	c2, _ := social.NewConnection("c2", "bob", "alice")
	require.NoError(t, s.Buddies().CreateRequest(ctx, c2))

	c3, _ := social.NewConnection("c3", "alice", "bob")
	assert.True(t, shared.IsAlreadyExists(s.Buddies().CreateRequest(ctx, c3)))

	pending, err := s.Buddies().ListRequests(ctx, "alice", social.ConnectionStatusPending)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "c2", pending[0].ID)
}

func TestAchievementRepository_AwardOnce(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	seed(t, s, "alice")

	added, err := s.Achievements().Award(ctx, "alice", achievement.TypeBuddyUp)
	require.NoError(t, err)
	assert.True(t, added)

	added, err = s.Achievements().Award(ctx, "alice", achievement.TypeBuddyUp)
	require.NoError(t, err)
	assert.False(t, added)

	has, err := s.Achievements().HasAchievement(ctx, "alice", achievement.TypeBuddyUp)
	require.NoError(t, err)
	assert.True(t, has)

	_, err = s.Achievements().Award(ctx, "ghost", achievement.TypeBuddyUp)
	assert.True(t, shared.IsNotFound(err))
}
