package batch

import (
	"context"

	"github.com/learnforge/lms-ledger/internal/domain/shared"
)

// Repository stores batches.
type Repository interface {
	// Create inserts a batch. Returns ErrBatchCodeTaken on a code clash and
	// ErrCourseNotFound when the course is gone.
	Create(ctx context.Context, b *Batch) error

	// GetByID returns ErrBatchNotFound when absent.
	GetByID(ctx context.Context, id string) (*Batch, error)

	// GetForUpdate reads the batch and holds its row lock until the
	// surrounding transaction ends.
	GetForUpdate(ctx context.Context, id string) (*Batch, error)

	// GetByCode matches the code exactly (case-sensitive).
	GetByCode(ctx context.Context, code string) (*Batch, error)

	// Update persists caller-controlled fields. CurrentEnrollment is ignored.
	Update(ctx context.Context, b *Batch) error

	// AdjustEnrollment applies delta to the seat count atomically and
	// returns the new value. ErrBatchVanished if the row is gone.
	AdjustEnrollment(ctx context.Context, id string, delta int) (int, error)

	// Delete removes the batch; its enrollments cascade.
	Delete(ctx context.Context, id string) error

	// List returns one page of batches and the total match count.
	List(ctx context.Context, filter Filter) ([]*Batch, int, error)
}

// Filter narrows Repository.List. Search matches name or code.
type Filter struct {
	shared.PageRequest
	CourseID string
	Status   Status
	Search   string
}
