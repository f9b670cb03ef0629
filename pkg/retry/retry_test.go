package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var errTransient = errors.New("serialization failure")

func isTransient(err error) bool { return errors.Is(err, errTransient) }

func TestRetrier_RetriesUntilSuccess(t *testing.T) {
	r := New(WithInitialDelay(time.Millisecond), WithJitter(0), WithRetryIf(isTransient))
	calls := 0
	err := r.Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errTransient
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetrier_StopsOnOtherErrors(t *testing.T) {
	r := New(WithMaxAttempts(4), WithInitialDelay(time.Millisecond), WithRetryIf(isTransient))
	other := errors.New("unique violation")
	calls := 0
	err := r.Do(context.Background(), func(context.Context) error {
		calls++
		if calls == 1 {
			return errTransient
		}
		return other
	})

	assert.Equal(t, other, err)
	assert.Equal(t, 2, calls)
}

func TestRetrier_ReturnsLastErrorWhenExhausted(t *testing.T) {
	r := New(WithMaxAttempts(2), WithInitialDelay(time.Millisecond), WithRetryIf(isTransient))
	calls := 0
	err := r.Do(context.Background(), func(context.Context) error {
		calls++
		return errTransient
	})

	assert.Equal(t, errTransient, err)
	assert.Equal(t, 2, calls)
}

func TestRetrier_NilClassifierRunsOnce(t *testing.T) {
	calls := 0
	err := New().Do(context.Background(), func(context.Context) error {
		calls++
		return errTransient
	})

	assert.ErrorIs(t, err, errTransient)
	assert.Equal(t, 1, calls)
}

func TestRetrier_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := DatabaseRetrier(3, isTransient).Do(ctx, func(context.Context) error { calls++; return nil })
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, calls)
}

func TestRetrier_Delay(t *testing.T) {
	r := New(WithInitialDelay(10*time.Millisecond), WithMaxDelay(25*time.Millisecond), WithJitter(0))
	assert.Equal(t, 10*time.Millisecond, r.delay(1))
	assert.Equal(t, 20*time.Millisecond, r.delay(2))
	assert.Equal(t, 25*time.Millisecond, r.delay(3), "capped")

	j := New(WithInitialDelay(100*time.Millisecond), WithJitter(0.5))
	for i := 0; i < 20; i++ {
		d := j.delay(1)
		assert.GreaterOrEqual(t, d, 50*time.Millisecond)
		assert.LessOrEqual(t, d, 150*time.Millisecond)
	}
}

func TestDatabaseRetrier_Defaults(t *testing.T) {
	r := DatabaseRetrier(0, isTransient)
	assert.Equal(t, 3, r.config.MaxAttempts)
	assert.Equal(t, 20*time.Millisecond, r.config.InitialDelay)
	assert.Equal(t, 500*time.Millisecond, r.config.MaxDelay)
}
