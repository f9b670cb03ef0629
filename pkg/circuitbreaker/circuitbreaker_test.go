package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var errDown = errors.New("connection refused")

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(opts ...Option) (*Breaker, *clock) {
	c := &clock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	b := New("test", opts...)
	b.now = c.now
	return b, c
}

func fail(context.Context) error { return errDown }
func ok(context.Context) error   { return nil }

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	var transitions []string
	b, _ := newTestBreaker(
		WithFailureThreshold(2),
		WithOnStateChange(func(_ string, from, to State) { transitions = append(transitions, from.String()+">"+to.String()) }),
	)
	ctx := context.Background()

	assert.ErrorIs(t, b.Do(ctx, fail), errDown)
	assert.Equal(t, StateClosed, b.State())
	assert.ErrorIs(t, b.Do(ctx, fail), errDown)
	assert.Equal(t, StateOpen, b.State())

	called := false
	err := b.Do(ctx, func(context.Context) error { called = true; return nil })
	assert.ErrorIs(t, err, ErrOpen)
	assert.True(t, IsRejected(err))
	assert.False(t, called)
	assert.Equal(t, []string{"closed>open"}, transitions)
	assert.Equal(t, 1, b.Counts().Rejected)
}

func TestBreaker_HalfOpenRecovery(t *testing.T) {
	b, c := newTestBreaker(WithFailureThreshold(1), WithSuccessThreshold(2), WithCooldown(time.Second))
	ctx := context.Background()

	_ = b.Do(ctx, fail)
	assert.Equal(t, StateOpen, b.State())

	c.advance(time.Second)
	assert.NoError(t, b.Do(ctx, ok))
	assert.Equal(t, StateHalfOpen, b.State())
	assert.NoError(t, b.Do(ctx, ok))
	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	b, c := newTestBreaker(WithFailureThreshold(1), WithCooldown(time.Second))
	ctx := context.Background()

	_ = b.Do(ctx, fail)
	c.advance(2 * time.Second)
	assert.ErrorIs(t, b.Do(ctx, fail), errDown)
	assert.Equal(t, StateOpen, b.State())
	assert.ErrorIs(t, b.Do(ctx, ok), ErrOpen)
}

func TestBreaker_ProbeLimit(t *testing.T) {
	b, c := newTestBreaker(WithFailureThreshold(1), WithCooldown(time.Second), WithMaxProbes(1))
	ctx := context.Background()

	_ = b.Do(ctx, fail)
	c.advance(time.Second)

	err := b.Do(ctx, func(ctx context.Context) error {
		return b.Do(ctx, ok)
	})
	assert.ErrorIs(t, err, ErrProbeLimit)
}

func TestBreaker_IgnoresCancellationAndClassifiedErrors(t *testing.T) {
	notFound := errors.New("not found")
	b, _ := newTestBreaker(
		WithFailureThreshold(1),
		WithIsFailure(func(err error) bool { return !errors.Is(err, notFound) }),
	)
	ctx := context.Background()

	_ = b.Do(ctx, func(context.Context) error { return context.Canceled })
	_ = b.Do(ctx, func(context.Context) error { return notFound })
	assert.Equal(t, StateClosed, b.State())

	b.Reset()
	assert.Equal(t, Counts{}, b.Counts())
	assert.Equal(t, "redis-cache", CacheBreaker(nil).Name())
}
