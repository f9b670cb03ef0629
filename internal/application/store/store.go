// Package store defines the transactional boundary every ledger write runs in.
package store

import (
	"context"

	"github.com/learnforge/lms-ledger/internal/domain/batch"
	"github.com/learnforge/lms-ledger/internal/domain/catalog"
	"github.com/learnforge/lms-ledger/internal/domain/enrollment"
	"github.com/learnforge/lms-ledger/internal/domain/identity"
)

// Repositories bundles one repository per aggregate. Inside WithinTx all of
// them share the same transaction.
type Repositories struct {
	Users       identity.UserRepository
	Students    identity.StudentRepository
	Courses     catalog.CourseRepository
	Modules     catalog.ModuleRepository
	Lessons     catalog.LessonRepository
	Batches     batch.Repository
	Enrollments enrollment.Repository
}

// TxFunc is the body of a transaction. It may run more than once when the
// store retries a transient conflict, so it must not leak side effects
// outside repos.
type TxFunc func(ctx context.Context, repos Repositories) error

// Store is implemented by the postgres and memory persistence packages.
type Store interface {
	// WithinTx runs fn atomically. A returned error rolls everything back.
	WithinTx(ctx context.Context, fn TxFunc) error

	// Repositories returns non-transactional repositories for reads.
	Repositories() Repositories
}
