package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fitbuddy/fitbuddy-hub/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func syncBus() *InMemoryEventBus {
	return NewInMemoryEventBus(InMemoryEventBusConfig{AsyncMode: false})
}

func TestInMemoryEventBus_TypedDelivery(t *testing.T) {
	bus := syncBus()
	defer bus.Close()

	var workouts, all int32
	require.NoError(t, bus.Subscribe(shared.EventWorkoutLogged, func(shared.Event) error {
		atomic.AddInt32(&workouts, 1)
		return nil
	}))
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error {
		atomic.AddInt32(&all, 1)
		return nil
	}))

	require.NoError(t, bus.Publish(shared.NewWorkoutLoggedEvent("u1", "w1", "Running", nil, nil)))
	require.NoError(t, bus.Publish(shared.NewProfileDeletedEvent("u1")))

	assert.Equal(t, int32(1), atomic.LoadInt32(&workouts))
	assert.Equal(t, int32(2), atomic.LoadInt32(&all))
	assert.Equal(t, int64(2), bus.Metrics().Snapshot().TotalPublished)
}

func TestInMemoryEventBus_HandlerErrorsAndPanicsAreContained(t *testing.T) {
	bus := syncBus()
	defer bus.Close()

	var reached bool
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error { return errors.New("boom") }))
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error { panic("bad handler") }))
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error {
		reached = true
		return nil
	}))

	require.NoError(t, bus.Publish(shared.NewProfileDeletedEvent("u1")))

	assert.True(t, reached)
	assert.Equal(t, int64(2), bus.Metrics().Snapshot().HandlerFailures)
}

func TestInMemoryEventBus_AsyncCloseWaits(t *testing.T) {
	bus := NewInMemoryEventBus(DefaultInMemoryEventBusConfig())

	var done int32
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error {
		time.Sleep(10 * time.Millisecond)
		atomic.AddInt32(&done, 1)
		return nil
	}))

	for i := 0; i < 5; i++ {
		require.NoError(t, bus.Publish(shared.NewProfileDeletedEvent("u1")))
	}
	require.NoError(t, bus.Close())

	assert.Equal(t, int32(5), atomic.LoadInt32(&done))
	assert.ErrorIs(t, bus.Publish(shared.NewProfileDeletedEvent("u1")), ErrEventBusClosed)
	assert.ErrorIs(t, bus.Subscribe(shared.EventWorkoutLogged, func(shared.Event) error { return nil }), ErrEventBusClosed)
}

func TestInMemoryEventBus_RejectsNil(t *testing.T) {
	bus := syncBus()
	defer bus.Close()

	assert.ErrorIs(t, bus.Publish(nil), ErrNilEvent)
	assert.ErrorIs(t, bus.Subscribe(shared.EventWorkoutLogged, nil), ErrNilHandler)
}

// fakeRedis loops published messages back to subscribers, like a single Redis channel.
type fakeRedis struct {
	mu        sync.Mutex
	published []string
	subs      []chan RedisMessage
}

func (f *fakeRedis) Publish(_ context.Context, channel string, message interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	payload := message.(string)
	f.published = append(f.published, payload)
	for _, ch := range f.subs {
		ch <- RedisMessage{Channel: channel, Payload: payload}
	}
	return nil
}

func (f *fakeRedis) Subscribe(ctx context.Context, _ ...string) (<-chan RedisMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	ch := make(chan RedisMessage, 16)
	f.subs = append(f.subs, ch)
	return ch, nil
}

func (f *fakeRedis) Close() error { return nil }

func TestRedisEventBus_CrossInstanceDelivery(t *testing.T) {
	redis := &fakeRedis{}

	api, err := NewRedisEventBus(RedisEventBusConfig{
		Client:         redis,
		InstanceID:     "api",
		LocalBusConfig: InMemoryEventBusConfig{AsyncMode: false},
	})
	require.NoError(t, err)
	defer api.Close()

	worker, err := NewRedisEventBus(RedisEventBusConfig{
		Client:         redis,
		InstanceID:     "worker",
		LocalBusConfig: InMemoryEventBusConfig{AsyncMode: false},
	})
	require.NoError(t, err)
	defer worker.Close()

	var apiSeen, workerSeen int32
	received := make(chan shared.Event, 1)
	require.NoError(t, api.Subscribe(shared.EventBuddyConnected, func(shared.Event) error {
		atomic.AddInt32(&apiSeen, 1)
		return nil
	}))
	require.NoError(t, worker.Subscribe(shared.EventBuddyConnected, func(e shared.Event) error {
		atomic.AddInt32(&workerSeen, 1)
		received <- e
		return nil
	}))

	require.NoError(t, api.Publish(shared.NewBuddyConnectedEvent("c1", "alice", "bob")))

	select {
	case e := <-received:
		assert.Equal(t, shared.EventBuddyConnected, e.EventType())
		assert.Equal(t, "alice", PayloadString(e, "user_a_id"))
	case <-time.After(time.Second):
		t.Fatal("worker did not receive the event")
	}

	// give the api loop a chance to drop its own echo
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&apiSeen))
	assert.Equal(t, int32(1), atomic.LoadInt32(&workerSeen))

	var env Envelope
	require.NoError(t, json.Unmarshal([]byte(redis.published[0]), &env))
	assert.Equal(t, "api", env.InstanceID)
	assert.Equal(t, shared.EventBuddyConnected, env.EventType)
}
