package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnforge/lms-ledger/internal/domain/catalog"
	"github.com/learnforge/lms-ledger/internal/domain/shared"
	"github.com/learnforge/lms-ledger/internal/infrastructure/messaging"
	"github.com/learnforge/lms-ledger/pkg/circuitbreaker"
)

func TestIntField(t *testing.T) {
	tests := []struct {
		name  string
		value interface{}
		want  int
		ok    bool
	}{
		{"int", 3, 3, true},
		{"int64", int64(7), 7, true},
		{"float64 from json", float64(12), 12, true},
		{"string", "12", 0, false},
		{"missing", nil, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := intField(map[string]interface{}{"n": tt.value}, "n")
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConfigOptions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.URL = "redis://:secret@cache.internal:6380/3"
	cfg.MinIdleConns = 2

	opts, err := cfg.options()
	require.NoError(t, err)
	assert.Equal(t, "cache.internal:6380", opts.Addr)
	assert.Equal(t, "secret", opts.Password)
	assert.Equal(t, 3, opts.DB)
	assert.Equal(t, 10, opts.PoolSize)
	assert.Equal(t, 2, opts.MinIdleConns)

	cfg.URL = "http://nope"
	_, err = cfg.options()
	assert.ErrorIs(t, err, ErrCacheConnection)
}

func TestInvalidator_NilCachesAreNoops(t *testing.T) {
	bus := messaging.NewInMemoryEventBus(messaging.DefaultInMemoryEventBusConfig())
	defer bus.Close()
	require.NoError(t, NewInvalidator(nil, nil, nil).Register(bus))

	require.NoError(t, bus.Publish(shared.NewAggregateChangedEvent(shared.EventCourseChanged, "C1", "")))
	require.NoError(t, bus.Publish(shared.NewSeatCountAdjustedEvent("B1", 1, 1)))
	assert.Zero(t, bus.Stats().Failed)
}

func TestOutlineCache_BreakerTripsOnUnreachableRedis(t *testing.T) {
	client := goredis.NewClient(&goredis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()
	breaker := circuitbreaker.New("test", circuitbreaker.WithFailureThreshold(2), circuitbreaker.WithCooldown(time.Hour))
	outlines := NewOutlineCache(NewCacheWithClient(client), time.Minute).WithBreaker(breaker)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, _, err := outlines.GetOutline(ctx, "C1")
		require.Error(t, err)
		assert.False(t, circuitbreaker.IsRejected(err))
	}
	_, _, err := outlines.GetOutline(ctx, "C1")
	assert.ErrorIs(t, err, circuitbreaker.ErrOpen)

	course := catalog.NewCourse("Go", "", "", nil, catalog.CourseStatusDraft)
	assert.ErrorIs(t, outlines.SetOutline(ctx, catalog.BuildOutline(course, nil, nil)), circuitbreaker.ErrOpen)
}

// newTestCache connects to LEDGER_TEST_REDIS_URL or skips.
func newTestCache(t *testing.T) *Cache {
	t.Helper()
	url := os.Getenv("LEDGER_TEST_REDIS_URL")
	if url == "" {
		t.Skip("LEDGER_TEST_REDIS_URL not set")
	}
	cfg := DefaultConfig()
	cfg.URL = url
	cache, err := NewCache(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })
	return cache
}

func TestOutlineCache_Integration(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()
	outlines := NewOutlineCache(cache, time.Minute)

	course := catalog.NewCourse("Cached "+uuid.NewString(), "", "", nil, catalog.CourseStatusDraft)
	t.Cleanup(func() { _ = outlines.Invalidate(ctx, course.ID) })

	_, ok, err := outlines.GetOutline(ctx, course.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.ErrorIs(t, outlines.SetOutline(ctx, &catalog.Outline{}), ErrCacheNilValue)
	require.NoError(t, outlines.SetOutline(ctx, catalog.BuildOutline(course, nil, nil)))

	got, ok, err := outlines.GetOutline(ctx, course.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, course.Title, got.Course.Title)

	require.NoError(t, outlines.Invalidate(ctx, course.ID))
	_, ok, err = outlines.GetOutline(ctx, course.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSeatBoard_Integration(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()
	board := &SeatBoard{client: cache.Client(), key: PrefixSeats + ":test:" + uuid.NewString()}
	t.Cleanup(func() { _ = cache.Delete(ctx, board.key, board.stampKey()) })

	bus := messaging.NewInMemoryEventBus(messaging.DefaultInMemoryEventBusConfig())
	defer bus.Close()
	require.NoError(t, NewInvalidator(nil, board, nil).Register(bus))

	require.NoError(t, bus.Publish(shared.NewSeatCountAdjustedEvent("B1", 1, 4)))
	require.NoError(t, bus.Publish(shared.NewSeatCountAdjustedEvent("B2", 1, 1)))

	n, err := board.Get(ctx, "B1")
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	require.NoError(t, bus.Publish(shared.NewAggregateChangedEvent(shared.EventBatchDeleted, "B1", "")))
	_, err = board.Get(ctx, "B1")
	assert.ErrorIs(t, err, ErrCacheMiss)

	snap, err := board.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"B2": 1}, snap)
}

func TestSeatBoard_OutOfOrderEvents(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()
	board := &SeatBoard{client: cache.Client(), key: PrefixSeats + ":test:" + uuid.NewString()}
	t.Cleanup(func() { _ = cache.Delete(ctx, board.key, board.stampKey()) })

	bus := messaging.NewInMemoryEventBus(messaging.DefaultInMemoryEventBusConfig())
	defer bus.Close()
	require.NoError(t, NewInvalidator(nil, board, nil).Register(bus))

	t0 := time.Now()
	newer := shared.NewSeatCountAdjustedEvent("B1", 1, 5)
	newer.Timestamp = t0.Add(time.Second)
	older := shared.NewSeatCountAdjustedEvent("B1", 1, 4)
	older.Timestamp = t0

	require.NoError(t, bus.Publish(newer))
	require.NoError(t, bus.Publish(older))
	n, err := board.Get(ctx, "B1")
	require.NoError(t, err)
	assert.Equal(t, 5, n, "a late event must not overwrite a newer count")

	applied, err := board.Record(ctx, "B1", 6, t0.Add(2*time.Second))
	require.NoError(t, err)
	assert.True(t, applied)

	require.NoError(t, board.Forget(ctx, "B1", t0.Add(3*time.Second)))
	applied, err = board.Record(ctx, "B1", 7, t0.Add(2500*time.Millisecond))
	require.NoError(t, err)
	assert.False(t, applied, "a deleted batch stays off the board")
	_, err = board.Get(ctx, "B1")
	assert.ErrorIs(t, err, ErrCacheMiss)
}
