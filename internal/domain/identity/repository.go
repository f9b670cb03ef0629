package identity

import (
	"context"

	"github.com/learnforge/lms-ledger/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Implementations live in infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// UserRepository stores platform users.
type UserRepository interface {
	// Create inserts a user. Returns ErrUserAlreadyExists on an email clash.
	Create(ctx context.Context, user *User) error

	// GetByID returns ErrUserNotFound when absent.
	GetByID(ctx context.Context, userID string) (*User, error)

	// GetByEmail compares the stored email exactly.
	GetByEmail(ctx context.Context, email string) (*User, error)

	// Update persists every mutable field and bumps updated_at.
	Update(ctx context.Context, user *User) error

	// List returns one page of users and the total match count.
	List(ctx context.Context, filter UserFilter) ([]*User, int, error)
}

// UserFilter narrows List. Search matches email or full name (ILIKE).
type UserFilter struct {
	shared.PageRequest
	Search string
	Role   Role
	Status UserStatus
}

// StudentRepository stores students.
type StudentRepository interface {
	// Create inserts a student. Returns ErrStudentAlreadyExists on an email clash.
	Create(ctx context.Context, student *Student) error

	// GetByID returns ErrStudentNotFound when absent.
	GetByID(ctx context.Context, studentID string) (*Student, error)

	// GetForUpdate is GetByID plus a row lock held until the transaction
	// ends. Inserting an enrollment for a locked student waits on it.
	GetForUpdate(ctx context.Context, studentID string) (*Student, error)

	// GetByEmail compares the stored email exactly.
	GetByEmail(ctx context.Context, email string) (*Student, error)

	// Update persists every mutable field and bumps updated_at.
	Update(ctx context.Context, student *Student) error

	// Delete removes the student row; enrollments cascade in storage.
	// Callers go through the enrollment ledger first so seat counts stay exact.
	Delete(ctx context.Context, studentID string) error

	// List returns one page of students and the total match count.
	// Search is a substring match on email, names and mobile number.
	List(ctx context.Context, filter StudentFilter) ([]*Student, int, error)

	// Search runs the full-text surface over StudentSearchDocument.
	Search(ctx context.Context, query string, page shared.PageRequest) ([]*Student, int, error)
}

// StudentFilter narrows StudentRepository.List.
type StudentFilter struct {
	shared.PageRequest
	Search string
	Status StudentStatus
}

// PasswordHasher turns a credential into the opaque secret stored on a User.
// Verification belongs to the authentication collaborator.
type PasswordHasher interface {
	Hash(plain string) (string, error)
	Compare(hash, plain string) error
}
