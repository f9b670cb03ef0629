package messaging

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnforge/lms-ledger/internal/domain/shared"
)

func TestInMemoryEventBus_SyncDispatch(t *testing.T) {
	bus := NewInMemoryEventBus(DefaultInMemoryEventBusConfig())
	defer bus.Close()

	var got []string
	require.NoError(t, bus.Subscribe(shared.EventSeatCountAdjusted, func(ev shared.Event) error {
		got = append(got, "seats:"+ev.AggregateID())
		return nil
	}))
	require.NoError(t, bus.SubscribeAll(func(ev shared.Event) error {
		got = append(got, "all:"+string(ev.EventType()))
		return nil
	}))

	require.NoError(t, bus.Publish(shared.NewSeatCountAdjustedEvent("BATCH-1", 1, 3)))
	require.NoError(t, bus.Publish(shared.NewAggregateChangedEvent(shared.EventBatchDeleted, "BATCH-1", "")))

	assert.Equal(t, []string{
		"seats:BATCH-1",
		"all:" + string(shared.EventSeatCountAdjusted),
		"all:" + string(shared.EventBatchDeleted),
	}, got)
	assert.Equal(t, StatsSnapshot{Published: 2, Succeeded: 3}, bus.Stats())
}

func TestInMemoryEventBus_HandlerFailuresAreContained(t *testing.T) {
	bus := NewInMemoryEventBus(DefaultInMemoryEventBusConfig())
	defer bus.Close()

	calls := 0
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error { panic("boom") }))
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error { return errors.New("nope") }))
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error { calls++; return nil }))

	assert.NoError(t, bus.Publish(shared.NewSeatCountAdjustedEvent("B", -1, 0)))
	assert.Equal(t, 1, calls)
	assert.Equal(t, int64(2), bus.Stats().Failed)
}

func TestInMemoryEventBus_Guards(t *testing.T) {
	bus := NewInMemoryEventBus(DefaultInMemoryEventBusConfig())

	assert.ErrorIs(t, bus.Subscribe(shared.EventBatchDeleted, nil), ErrNilHandler)
	assert.ErrorIs(t, bus.Publish(nil), ErrNilEvent)

	require.NoError(t, bus.Close())
	require.NoError(t, bus.Close())
	assert.ErrorIs(t, bus.Publish(shared.NewSeatCountAdjustedEvent("B", 1, 1)), ErrEventBusClosed)
	assert.ErrorIs(t, bus.SubscribeAll(func(shared.Event) error { return nil }), ErrEventBusClosed)
}

func TestInMemoryEventBus_Async(t *testing.T) {
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{AsyncMode: true, WorkerPoolSize: 2})
	defer bus.Close()

	var mu sync.Mutex
	seen := 0
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error {
		mu.Lock()
		seen++
		mu.Unlock()
		return nil
	}))
	for i := 0; i < 3; i++ {
		require.NoError(t, bus.Publish(shared.NewSeatCountAdjustedEvent("B", 1, i+1)))
	}

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return seen == 3
	}, time.Second, 5*time.Millisecond)
}

func TestMessageRoundTrip(t *testing.T) {
	ev := shared.NewSeatCountAdjustedEvent("BATCH-9", -1, 4)

	data, err := encodeMessage("node-a", ev)
	require.NoError(t, err)

	origin, decoded, err := decodeMessage(data)
	require.NoError(t, err)
	assert.Equal(t, "node-a", origin)
	assert.Equal(t, shared.EventSeatCountAdjusted, decoded.EventType())
	assert.Equal(t, "BATCH-9", decoded.AggregateID())
	assert.WithinDuration(t, ev.OccurredAt(), decoded.OccurredAt(), time.Millisecond)
	// JSON numbers come back as float64.
	assert.Equal(t, float64(4), decoded.Payload()["current_enrollment"])

	_, _, err = decodeMessage("{not json")
	assert.Error(t, err)
}

func TestRedisEventBus_SkipsOwnMessages(t *testing.T) {
	local := NewInMemoryEventBus(DefaultInMemoryEventBusConfig())
	defer local.Close()
	bus := &RedisEventBus{localBus: local, instanceID: "self", logger: local.logger}

	var got []string
	require.NoError(t, bus.SubscribeAll(func(ev shared.Event) error {
		got = append(got, ev.AggregateID())
		return nil
	}))

	own, err := encodeMessage("self", shared.NewAggregateChangedEvent(shared.EventCourseChanged, "C-own", ""))
	require.NoError(t, err)
	other, err := encodeMessage("peer", shared.NewAggregateChangedEvent(shared.EventCourseChanged, "C-peer", ""))
	require.NoError(t, err)

	bus.handleMessage(own)
	bus.handleMessage(other)
	bus.handleMessage("garbage")

	assert.Equal(t, []string{"C-peer"}, got)
}
