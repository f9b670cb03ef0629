package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/learnforge/lms-ledger/internal/domain/shared"
	"github.com/learnforge/lms-ledger/pkg/logger"
)

// Invalidator subscribes to committed events and keeps the outline cache
// and the seat board in step with them.
type Invalidator struct {
	outlines *OutlineCache
	seats    *SeatBoard
	timeout  time.Duration
	log      *logger.Logger
}

// NewInvalidator creates an invalidator. Either cache may be nil.
func NewInvalidator(outlines *OutlineCache, seats *SeatBoard, log *logger.Logger) *Invalidator {
	if log == nil {
		log = logger.Discard()
	}
	return &Invalidator{
		outlines: outlines,
		seats:    seats,
		timeout:  2 * time.Second,
		log:      log.With(logger.Component("redis.invalidator")),
	}
}

// Register subscribes the invalidator's handlers on sub.
func (i *Invalidator) Register(sub shared.EventSubscriber) error {
	handlers := map[shared.EventType]shared.EventHandler{
		shared.EventCourseChanged:     i.onCourseChanged,
		shared.EventCourseDeleted:     i.onCourseChanged,
		shared.EventSeatCountAdjusted: i.onSeatsAdjusted,
		shared.EventBatchDeleted:      i.onBatchDeleted,
	}
	for typ, h := range handlers {
		if err := sub.Subscribe(typ, h); err != nil {
			return fmt.Errorf("subscribe %s: %w", typ, err)
		}
	}
	return nil
}

func (i *Invalidator) onCourseChanged(ev shared.Event) error {
	if i.outlines == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), i.timeout)
	defer cancel()
	if err := i.outlines.Invalidate(ctx, ev.AggregateID()); err != nil {
		return fmt.Errorf("invalidate outline %s: %w", ev.AggregateID(), err)
	}
	i.log.Debug("outline invalidated", logger.CourseID(ev.AggregateID()))
	return nil
}

func (i *Invalidator) onSeatsAdjusted(ev shared.Event) error {
	if i.seats == nil {
		return nil
	}
	current, ok := intField(ev.Payload(), "current_enrollment")
	if !ok {
		return fmt.Errorf("seat event for %s has no current_enrollment", ev.AggregateID())
	}
	ctx, cancel := context.WithTimeout(context.Background(), i.timeout)
	defer cancel()
	applied, err := i.seats.Record(ctx, ev.AggregateID(), current, ev.OccurredAt())
	if err != nil {
		return fmt.Errorf("record seats of %s: %w", ev.AggregateID(), err)
	}
	if !applied {
		i.log.Debug("stale seat event ignored", logger.BatchID(ev.AggregateID()), logger.SeatCount(current))
	}
	return nil
}

func (i *Invalidator) onBatchDeleted(ev shared.Event) error {
	if i.seats == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), i.timeout)
	defer cancel()
	return i.seats.Forget(ctx, ev.AggregateID(), ev.OccurredAt())
}

// intField reads a numeric payload field. Payloads that crossed a JSON
// boundary carry float64.
func intField(p map[string]interface{}, key string) (int, bool) {
	switch v := p[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	}
	return 0, false
}
