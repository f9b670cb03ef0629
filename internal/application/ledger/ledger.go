// Package ledger is the only writer of enrollment rows. Each physical insert
// or delete, and each status change that gives a seat back, is paired with a
// seat-count step on the batch inside the caller's transaction.
package ledger

import (
	"context"
	"fmt"

	"github.com/learnforge/lms-ledger/internal/application/store"
	"github.com/learnforge/lms-ledger/internal/domain/enrollment"
	"github.com/learnforge/lms-ledger/internal/domain/shared"
)

// Tx binds the ledger to one transaction's repositories. Create a new Tx
// for every attempt of a transaction body.
type Tx struct {
	repos  store.Repositories
	seats  *Seats
	events []shared.Event
}

// Bind returns a ledger bound to repos.
func Bind(repos store.Repositories) *Tx {
	return &Tx{
		repos: repos,
		seats: &Seats{batches: repos.Batches},
	}
}

// Insert stores e and occupies a seat when e holds one.
func (t *Tx) Insert(ctx context.Context, e *enrollment.Enrollment) error {
	if err := t.repos.Enrollments.Insert(ctx, e); err != nil {
		return err
	}
	if e.Status.HoldsSeat() {
		if err := t.seats.Occupy(ctx, e.BatchID); err != nil {
			return err
		}
	}
	t.record(shared.EventEnrolled, e)
	return nil
}

// Delete removes e and frees its seat when it held one.
func (t *Tx) Delete(ctx context.Context, e *enrollment.Enrollment) error {
	if err := t.repos.Enrollments.Delete(ctx, e.ID); err != nil {
		return err
	}
	if e.Status.HoldsSeat() {
		if err := t.seats.Free(ctx, e.BatchID); err != nil {
			return err
		}
	}
	t.record(shared.EventWithdrawn, e)
	return nil
}

// Close moves an active enrollment to completed or dropped and frees its seat.
func (t *Tx) Close(ctx context.Context, e *enrollment.Enrollment, next enrollment.Status) error {
	held := e.Status.HoldsSeat()
	if err := e.Close(next); err != nil {
		return err
	}
	if err := t.repos.Enrollments.Update(ctx, e); err != nil {
		return err
	}
	if held && !e.Status.HoldsSeat() {
		if err := t.seats.Free(ctx, e.BatchID); err != nil {
			return err
		}
	}
	t.record(shared.EventEnrollmentClosed, e)
	return nil
}

// Move relocates e to batchID as a delete followed by an insert, so both
// batches see exactly one seat step each. e keeps id, number, dates and
// progress.
func (t *Tx) Move(ctx context.Context, e *enrollment.Enrollment, batchID string) (*enrollment.Enrollment, error) {
	if err := t.repos.Enrollments.Delete(ctx, e.ID); err != nil {
		return nil, err
	}
	if e.Status.HoldsSeat() {
		if err := t.seats.Free(ctx, e.BatchID); err != nil {
			return nil, err
		}
	}
	moved := e.Clone()
	moved.BatchID = batchID
	if err := t.repos.Enrollments.Insert(ctx, moved); err != nil {
		return nil, fmt.Errorf("reinsert into batch %s: %w", batchID, err)
	}
	if moved.Status.HoldsSeat() {
		if err := t.seats.Occupy(ctx, batchID); err != nil {
			return nil, err
		}
	}
	t.record(shared.EventEnrollmentMoved, moved)
	return moved, nil
}

// SeatChanges lists the seat steps taken so far, in order.
func (t *Tx) SeatChanges() []SeatChange {
	return t.seats.changes
}

// Events returns the ledger and seat events to publish after commit.
func (t *Tx) Events() []shared.Event {
	out := make([]shared.Event, 0, len(t.events)+len(t.seats.changes))
	out = append(out, t.events...)
	for _, c := range t.seats.changes {
		out = append(out, shared.NewSeatCountAdjustedEvent(c.BatchID, c.Delta, c.Current))
	}
	return out
}

func (t *Tx) record(typ shared.EventType, e *enrollment.Enrollment) {
	t.events = append(t.events, shared.NewEnrollmentEvent(typ, e.ID, e.Number, e.StudentID, e.CourseID, e.BatchID, string(e.Status)))
}
