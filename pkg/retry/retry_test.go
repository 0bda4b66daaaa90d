package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var (
	errTransient = errors.New("transient")
	errFatal     = errors.New("fatal")
)

func fast(opts ...Option) *Retrier {
	return New(WithInitialDelay(time.Millisecond), WithMaxDelay(2*time.Millisecond), WithJitter(0)).With(opts...)
}

func TestDo_RetriesUntilSuccess(t *testing.T) {
	calls := 0
	err := fast(WithMaxAttempts(5)).Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errTransient
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_ReturnsLastErrorAfterLastAttempt(t *testing.T) {
	calls := 0
	var retried []int
	r := fast(WithMaxAttempts(3), WithOnRetry(func(attempt int, _ error, _ time.Duration) {
		retried = append(retried, attempt)
	}))

	err := r.Do(context.Background(), func(context.Context) error {
		calls++
		return errTransient
	})

	assert.Same(t, errTransient, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, retried)
}

func TestDo_RetryIfStopsEarly(t *testing.T) {
	calls := 0
	r := fast(WithMaxAttempts(5), WithRetryIf(func(err error) bool { return !errors.Is(err, errFatal) }))

	err := r.Do(context.Background(), func(context.Context) error {
		calls++
		if calls == 2 {
			return errFatal
		}
		return errTransient
	})

	assert.Same(t, errFatal, err)
	assert.Equal(t, 2, calls)
}

func TestDo_HonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := fast().Do(ctx, func(context.Context) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWithLeavesOriginalUntouched(t *testing.T) {
	base := DatabaseRetrier()
	narrowed := base.With(WithMaxAttempts(7), WithRetryIf(func(error) bool { return false }))

	assert.Equal(t, 3, base.config.MaxAttempts)
	assert.Nil(t, base.config.RetryIf)
	assert.Equal(t, 7, narrowed.config.MaxAttempts)
	assert.NotNil(t, narrowed.config.RetryIf)
}

func TestCalculateDelayIsCapped(t *testing.T) {
	r := New(WithInitialDelay(100*time.Millisecond), WithMaxDelay(300*time.Millisecond), WithJitter(0))

	assert.Equal(t, 100*time.Millisecond, r.calculateDelay(1))
	assert.Equal(t, 200*time.Millisecond, r.calculateDelay(2))
	assert.Equal(t, 300*time.Millisecond, r.calculateDelay(5))
}
