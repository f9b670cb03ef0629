// Package enrollment models the ledger row linking a student, a course and a
// batch. Seat counting lives in the application ledger, not here.
package enrollment

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/learnforge/lms-ledger/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// STATUS
// ══════════════════════════════════════════════════════════════════════════════

// Status is the lifecycle state of an enrollment.
type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusDropped   Status = "dropped"
)

var transitions = map[Status][]Status{
	StatusActive: {StatusCompleted, StatusDropped},
}

// IsValid reports whether s is a known enrollment status.
func (s Status) IsValid() bool {
	return s == StatusActive || s == StatusCompleted || s == StatusDropped
}

// HoldsSeat reports whether an enrollment in this state counts toward its
// batch's current enrollment.
func (s Status) HoldsSeat() bool {
	return s == StatusActive
}

// CanTransitionTo reports whether s → next is allowed.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS
// ══════════════════════════════════════════════════════════════════════════════

// Progress is a completion percentage in hundredths: 10000 is 100.00%.
type Progress int

// MaxProgress is 100.00%.
const MaxProgress Progress = 10000

// ParseProgress rounds pct to two decimals. Values outside [0, 100] and NaN
// return ErrProgressOutOfRange.
func ParseProgress(pct float64) (Progress, error) {
	if math.IsNaN(pct) || pct < 0 || pct > 100 {
		return 0, shared.ErrProgressOutOfRange
	}
	return Progress(math.Round(pct * 100)), nil
}

// Percent returns the value as a float with two-decimal precision.
func (p Progress) Percent() float64 {
	return float64(p) / 100
}

// String formats as "42.50".
func (p Progress) String() string {
	return fmt.Sprintf("%d.%02d", int(p)/100, int(p)%100)
}

// IsComplete reports 100.00%.
func (p Progress) IsComplete() bool {
	return p >= MaxProgress
}

// ══════════════════════════════════════════════════════════════════════════════
// ENROLLMENT
// ══════════════════════════════════════════════════════════════════════════════

// Enrollment is one row of the ledger.
type Enrollment struct {
	ID             string
	Number         string
	StudentID      string
	CourseID       string
	BatchID        string
	EnrollmentDate time.Time
	StartDate      time.Time
	CompletionDate *time.Time
	Status         Status
	Progress       Progress
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// New builds an active enrollment dated today (UTC) starting on startDate.
func New(studentID, courseID, batchID string, startDate time.Time) *Enrollment {
	now := time.Now().UTC()
	return &Enrollment{
		ID:             uuid.New().String(),
		Number:         NewNumber(now),
		StudentID:      studentID,
		CourseID:       courseID,
		BatchID:        batchID,
		EnrollmentDate: dateOf(now),
		StartDate:      dateOf(startDate),
		Status:         StatusActive,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// SetProgress stores p without touching the status.
func (e *Enrollment) SetProgress(p Progress) {
	e.Progress = p
	e.UpdatedAt = time.Now().UTC()
}

// Close moves an active enrollment to completed or dropped. Completing sets
// the completion date.
func (e *Enrollment) Close(next Status) error {
	if !e.Status.CanTransitionTo(next) {
		return shared.ErrEnrollmentTransition
	}
	now := time.Now().UTC()
	e.Status = next
	if next == StatusCompleted {
		d := dateOf(now)
		e.CompletionDate = &d
	}
	e.UpdatedAt = now
	return nil
}

// Clone returns a copy safe to mutate.
func (e *Enrollment) Clone() *Enrollment {
	c := *e
	if e.CompletionDate != nil {
		d := *e.CompletionDate
		c.CompletionDate = &d
	}
	return &c
}

// NewNumber returns "ENR-YYYYMMDD-" followed by 8 upper-case hex chars.
func NewNumber(at time.Time) string {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		panic("enrollment: crypto/rand failed: " + err.Error())
	}
	return "ENR-" + at.UTC().Format("20060102") + "-" + strings.ToUpper(hex.EncodeToString(b))
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
