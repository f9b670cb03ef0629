// Package shared contains common domain types, errors, and events that are used
// across all domain packages.
package shared

import (
	"encoding/json"
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types. They are published after the owning transaction commits.
const (
	// Identity events
	EventStudentDeleted EventType = "student.deleted"

	// Catalog events
	EventCourseChanged EventType = "catalog.course_changed"
	EventCourseDeleted EventType = "catalog.course_deleted"

	// Batch events
	EventBatchChanged EventType = "batch.changed"
	EventBatchDeleted EventType = "batch.deleted"

	// Ledger events
	EventEnrolled          EventType = "enrollment.created"
	EventWithdrawn         EventType = "enrollment.withdrawn"
	EventEnrollmentClosed  EventType = "enrollment.closed"
	EventEnrollmentMoved   EventType = "enrollment.transferred"
	EventSeatCountAdjusted EventType = "batch.seats_adjusted"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type        EventType `json:"type"`
	Timestamp   time.Time `json:"timestamp"`
	AggregateId string    `json:"aggregate_id"`
	Version     int       `json:"version"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now().UTC(),
		AggregateId: aggregateID,
		Version:     1,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Ledger Events
// ═══════════════════════════════════════════════════════════════════════════

// EnrollmentEvent describes a change to one enrollment row.
// The aggregate is the enrollment id.
type EnrollmentEvent struct {
	BaseEvent
	EnrollmentNumber string `json:"enrollment_number"`
	StudentID        string `json:"student_id"`
	CourseID         string `json:"course_id"`
	BatchID          string `json:"batch_id"`
	Status           string `json:"status"`
}

// Payload implements Event interface.
func (e EnrollmentEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"enrollment_number": e.EnrollmentNumber,
		"student_id":        e.StudentID,
		"course_id":         e.CourseID,
		"batch_id":          e.BatchID,
		"status":            e.Status,
	}
}

// NewEnrollmentEvent creates a new EnrollmentEvent.
func NewEnrollmentEvent(eventType EventType, enrollmentID, number, studentID, courseID, batchID, status string) EnrollmentEvent {
	return EnrollmentEvent{
		BaseEvent:        NewBaseEvent(eventType, enrollmentID),
		EnrollmentNumber: number,
		StudentID:        studentID,
		CourseID:         courseID,
		BatchID:          batchID,
		Status:           status,
	}
}

// SeatCountAdjustedEvent is emitted once per committed seat-count change.
type SeatCountAdjustedEvent struct {
	BaseEvent
	Delta             int `json:"delta"`
	CurrentEnrollment int `json:"current_enrollment"`
}

// Payload implements Event interface.
func (e SeatCountAdjustedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"delta":              e.Delta,
		"current_enrollment": e.CurrentEnrollment,
	}
}

// NewSeatCountAdjustedEvent creates a new SeatCountAdjustedEvent for a batch.
func NewSeatCountAdjustedEvent(batchID string, delta, current int) SeatCountAdjustedEvent {
	return SeatCountAdjustedEvent{
		BaseEvent:         NewBaseEvent(EventSeatCountAdjusted, batchID),
		Delta:             delta,
		CurrentEnrollment: current,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Aggregate Change Events
// ═══════════════════════════════════════════════════════════════════════════

// AggregateChangedEvent is a generic change notice for catalog, batch and
// identity aggregates. Subscribers use it to drop cached reads.
type AggregateChangedEvent struct {
	BaseEvent
	ParentID string `json:"parent_id,omitempty"`
}

// Payload implements Event interface.
func (e AggregateChangedEvent) Payload() map[string]interface{} {
	p := map[string]interface{}{}
	if e.ParentID != "" {
		p["parent_id"] = e.ParentID
	}
	return p
}

// NewAggregateChangedEvent creates a change notice. parentID is optional.
func NewAggregateChangedEvent(eventType EventType, aggregateID, parentID string) AggregateChangedEvent {
	return AggregateChangedEvent{
		BaseEvent: NewBaseEvent(eventType, aggregateID),
		ParentID:  parentID,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Event Envelope (for serialization and transport)
// ═══════════════════════════════════════════════════════════════════════════

// EventEnvelope wraps an event for transport.
type EventEnvelope struct {
	Type        EventType       `json:"type"`
	AggregateID string          `json:"aggregate_id"`
	Timestamp   time.Time       `json:"timestamp"`
	Payload     json.RawMessage `json:"payload"`
}

// NewEventEnvelope serializes an event's payload into an envelope.
func NewEventEnvelope(event Event) (EventEnvelope, error) {
	payload, err := json.Marshal(event.Payload())
	if err != nil {
		return EventEnvelope{}, err
	}
	return EventEnvelope{
		Type:        event.EventType(),
		AggregateID: event.AggregateID(),
		Timestamp:   event.OccurredAt(),
		Payload:     payload,
	}, nil
}

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for an event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}

// NopPublisher drops every event. Used when no bus is wired.
type NopPublisher struct{}

// Publish implements EventPublisher.
func (NopPublisher) Publish(Event) error { return nil }
