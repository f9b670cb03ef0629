// Package batch models time-boxed cohorts of a course. A batch's seat count
// is owned by the enrollment ledger and is never written by client code.
package batch

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/learnforge/lms-ledger/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// STATUS
// ══════════════════════════════════════════════════════════════════════════════

// Status is the lifecycle state of a batch.
type Status string

const (
	StatusUpcoming  Status = "upcoming"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// transitions lists the allowed caller-driven moves.
var transitions = map[Status][]Status{
	StatusUpcoming: {StatusActive, StatusCancelled},
	StatusActive:   {StatusCompleted, StatusCancelled},
}

// IsValid reports whether s is a known batch status.
func (s Status) IsValid() bool {
	switch s {
	case StatusUpcoming, StatusActive, StatusCompleted, StatusCancelled:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no further transition is possible.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// AcceptsEnrollment reports whether new students may join.
func (s Status) AcceptsEnrollment() bool {
	return s == StatusUpcoming || s == StatusActive
}

// CanTransitionTo reports whether s → next is in the transition table.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ══════════════════════════════════════════════════════════════════════════════
// SCHEDULE
// ══════════════════════════════════════════════════════════════════════════════

// ScheduleType tags how a batch meets. It is stored, never expanded.
type ScheduleType string

const (
	ScheduleWeekday ScheduleType = "weekday"
	ScheduleWeekend ScheduleType = "weekend"
	ScheduleCustom  ScheduleType = "custom"
)

// IsValid reports whether t is a known schedule type.
func (t ScheduleType) IsValid() bool {
	return t == ScheduleWeekday || t == ScheduleWeekend || t == ScheduleCustom
}

// Weekday is a three-letter day tag.
type Weekday string

const (
	Monday    Weekday = "mon"
	Tuesday   Weekday = "tue"
	Wednesday Weekday = "wed"
	Thursday  Weekday = "thu"
	Friday    Weekday = "fri"
	Saturday  Weekday = "sat"
	Sunday    Weekday = "sun"
)

var weekdayOrder = map[Weekday]int{
	Monday: 0, Tuesday: 1, Wednesday: 2, Thursday: 3, Friday: 4, Saturday: 5, Sunday: 6,
}

// ParseWeekday accepts "Mon", "monday" or "MON".
func ParseWeekday(s string) (Weekday, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) > 3 {
		s = s[:3]
	}
	d := Weekday(s)
	_, ok := weekdayOrder[d]
	return d, ok
}

// Schedule describes when a batch meets.
type Schedule struct {
	Type     ScheduleType
	Days     []Weekday
	TimeSlot string
}

// Normalize deduplicates and sorts the day set Monday first.
func (s Schedule) Normalize() Schedule {
	seen := make(map[Weekday]bool, len(s.Days))
	days := make([]Weekday, 0, len(s.Days))
	for _, d := range s.Days {
		if !seen[d] {
			seen[d] = true
			days = append(days, d)
		}
	}
	sort.Slice(days, func(i, j int) bool { return weekdayOrder[days[i]] < weekdayOrder[days[j]] })
	if s.Type == "" {
		s.Type = ScheduleWeekday
	}
	s.Days = days
	s.TimeSlot = strings.TrimSpace(s.TimeSlot)
	return s
}

// Validate checks the schedule type and every day tag.
func (s Schedule) Validate() error {
	if !s.Type.IsValid() {
		return shared.WrapError("batch", "Validate", shared.ErrInvalidInput, "unknown schedule type "+string(s.Type), nil)
	}
	for _, d := range s.Days {
		if _, ok := weekdayOrder[d]; !ok {
			return shared.WrapError("batch", "Validate", shared.ErrInvalidInput, "unknown weekday "+string(d), nil)
		}
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// BATCH
// ══════════════════════════════════════════════════════════════════════════════

// DefaultMaxCapacity is used when a batch is created without a capacity.
const DefaultMaxCapacity = 30

// Batch is a scheduled cohort of one course.
type Batch struct {
	ID                string
	CourseID          string
	Name              string
	Code              string
	StartDate         time.Time
	EndDate           *time.Time
	Schedule          Schedule
	InstructorID      *string
	MaxCapacity       int
	CurrentEnrollment int
	Status            Status
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// NewBatchParams holds the inputs of NewBatch.
type NewBatchParams struct {
	CourseID     string
	Name         string
	Code         string
	StartDate    time.Time
	EndDate      *time.Time
	Schedule     Schedule
	InstructorID *string
	MaxCapacity  int
}

// NewBatch builds an upcoming batch with an empty seat count.
func NewBatch(p NewBatchParams) (*Batch, error) {
	now := time.Now().UTC()
	b := &Batch{
		ID:           uuid.New().String(),
		CourseID:     p.CourseID,
		Name:         strings.TrimSpace(p.Name),
		Code:         strings.TrimSpace(p.Code),
		StartDate:    DateOf(p.StartDate),
		EndDate:      dateOfPtr(p.EndDate),
		Schedule:     p.Schedule.Normalize(),
		InstructorID: p.InstructorID,
		MaxCapacity:  p.MaxCapacity,
		Status:       StatusUpcoming,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if b.MaxCapacity == 0 {
		b.MaxCapacity = DefaultMaxCapacity
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return b, nil
}

// Validate checks the settings a caller controls.
func (b *Batch) Validate() error {
	if b.Name == "" || b.Code == "" {
		return shared.WrapError("batch", "Validate", shared.ErrInvalidInput, "name and code are required", nil)
	}
	if b.StartDate.IsZero() {
		return shared.WrapError("batch", "Validate", shared.ErrInvalidInput, "start date is required", nil)
	}
	if b.EndDate != nil && b.EndDate.Before(b.StartDate) {
		return shared.ErrBatchDatesInverted
	}
	if b.MaxCapacity <= 0 {
		return shared.WrapError("batch", "Validate", shared.ErrInvalidInput, "max capacity must be positive", shared.ErrBatchInvalidSetting)
	}
	return b.Schedule.Validate()
}

// Transition moves the batch to next or returns ErrBatchTransition.
func (b *Batch) Transition(next Status) error {
	if !next.IsValid() || !b.Status.CanTransitionTo(next) {
		return shared.ErrBatchTransition
	}
	b.Status = next
	b.UpdatedAt = time.Now().UTC()
	return nil
}

// IsFull reports whether every seat is taken.
func (b *Batch) IsFull() bool {
	return b.CurrentEnrollment >= b.MaxCapacity
}

// SeatsLeft never goes below zero.
func (b *Batch) SeatsLeft() int {
	if b.IsFull() {
		return 0
	}
	return b.MaxCapacity - b.CurrentEnrollment
}

// DateOf truncates t to its UTC calendar date.
func DateOf(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func dateOfPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	d := DateOf(*t)
	return &d
}
