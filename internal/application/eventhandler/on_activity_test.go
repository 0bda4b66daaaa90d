package eventhandler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fitbuddy/fitbuddy-hub/internal/application/saga"
	"github.com/fitbuddy/fitbuddy-hub/internal/domain/shared"
	"github.com/fitbuddy/fitbuddy-hub/internal/infrastructure/messaging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	mu    sync.Mutex
	calls map[string]int
	fail  map[string]error
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{calls: map[string]int{}, fail: map[string]error{}}
}

func (f *fakeRunner) Execute(_ context.Context, userID string) (*saga.AchievementFlowResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[userID]++
	if err := f.fail[userID]; err != nil {
		return nil, err
	}
	return &saga.AchievementFlowResult{UserID: userID}, nil
}

func (f *fakeRunner) count(userID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[userID]
}

func TestOnActivityHandler_RoutesEvents(t *testing.T) {
	runner := newFakeRunner()
	h := NewOnActivityHandler(runner, nil, DefaultOnActivityConfig())

	bus := messaging.NewInMemoryEventBus(messaging.InMemoryEventBusConfig{})
	require.NoError(t, h.Register(bus))

	require.NoError(t, bus.Publish(shared.NewWorkoutLoggedEvent("alice", "w1", "run", nil, nil)))
	require.NoError(t, bus.Publish(shared.NewBuddyConnectedEvent("c1", "alice", "bob")))
	require.NoError(t, bus.Publish(shared.NewProfileDeletedEvent("carol")))

	assert.Equal(t, 2, runner.count("alice"))
	assert.Equal(t, 1, runner.count("bob"))
	assert.Equal(t, 0, runner.count("carol"))
}

func TestOnActivityHandler_RetriesTransientFailures(t *testing.T) {
	runner := newFakeRunner()
	runner.fail["alice"] = errors.New("connection reset")
	runner.fail["ghost"] = shared.NewDomainError("profile", "Get", shared.ErrNotFound, "profile not found")

	h := NewOnActivityHandler(runner, nil, OnActivityConfig{Timeout: time.Second, MaxAttempts: 2})

	err := h.Handle(shared.NewWorkoutLoggedEvent("alice", "w1", "run", nil, nil))
	require.Error(t, err)
	assert.Equal(t, 2, runner.count("alice"))

	err = h.Handle(shared.NewWorkoutLoggedEvent("ghost", "w2", "run", nil, nil))
	require.Error(t, err)
	assert.Equal(t, 1, runner.count("ghost"))
}
