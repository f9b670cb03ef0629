package enrollment

import (
	"context"

	"github.com/learnforge/lms-ledger/internal/domain/shared"
)

// Repository stores ledger rows. Only the application ledger calls Insert
// and Delete, so every physical change is paired with a seat adjustment.
type Repository interface {
	// Insert returns ErrEnrollmentDuplicate when the student already has an
	// active enrollment in the course and ErrNumberCollision on a number clash.
	Insert(ctx context.Context, e *Enrollment) error

	// Delete removes the row. ErrEnrollmentNotFound when absent.
	Delete(ctx context.Context, id string) error

	// Update persists status, progress and completion date.
	Update(ctx context.Context, e *Enrollment) error

	// GetByID returns ErrEnrollmentNotFound when absent.
	GetByID(ctx context.Context, id string) (*Enrollment, error)

	// GetForUpdate reads the row and holds its lock for the transaction.
	GetForUpdate(ctx context.Context, id string) (*Enrollment, error)

	// ExistsActive reports whether (student, course) already has an active row.
	ExistsActive(ctx context.Context, studentID, courseID string) (bool, error)

	// ListByStudent returns every enrollment of the student, oldest first.
	ListByStudent(ctx context.Context, studentID string) ([]*Enrollment, error)

	// CountSeatHolders counts rows of the batch that hold a seat.
	CountSeatHolders(ctx context.Context, batchID string) (int, error)

	// List returns one page of enrollments and the total match count.
	List(ctx context.Context, filter Filter) ([]*Enrollment, int, error)
}

// Filter narrows Repository.List. Empty fields match everything.
type Filter struct {
	shared.PageRequest
	StudentID string
	CourseID  string
	BatchID   string
	Status    Status
}
