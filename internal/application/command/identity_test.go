package command

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnforge/lms-ledger/internal/application/store"
	"github.com/learnforge/lms-ledger/internal/domain/identity"
	"github.com/learnforge/lms-ledger/internal/domain/shared"
)

func TestCreateUser(t *testing.T) {
	f := newFixture(t)

	u, err := f.users.CreateUser(f.ctx, CreateUserCommand{Email: " Admin@LMS.io ", FullName: "Admin", Role: "admin", Password: "s3cret-pass"})
	require.NoError(t, err)
	assert.Equal(t, "admin@lms.io", u.Email)
	assert.Equal(t, identity.RoleAdmin, u.Role)
	assert.NoError(t, plainHasher{}.Compare(u.PasswordHash, "s3cret-pass"))

	_, err = f.users.CreateUser(f.ctx, CreateUserCommand{Email: "ADMIN@lms.io", FullName: "Again"})
	assert.True(t, shared.IsAlreadyExists(err))

	generated, err := f.users.CreateUser(f.ctx, CreateUserCommand{Email: "ops@lms.io", FullName: "Ops"})
	require.NoError(t, err)
	assert.NotEmpty(t, generated.PasswordHash)
	assert.Equal(t, identity.RoleUser, generated.Role)

	_, err = f.users.CreateUser(f.ctx, CreateUserCommand{Email: "not-an-email", FullName: "X"})
	assert.True(t, shared.IsValidation(err))

	_, err = f.users.CreateUser(f.ctx, CreateUserCommand{Email: "x@lms.io", FullName: "X", Role: "root"})
	assert.True(t, shared.IsValidation(err))
}

func TestDeactivateUser_Idempotent(t *testing.T) {
	f := newFixture(t)
	u, err := f.users.CreateUser(f.ctx, CreateUserCommand{Email: "a@lms.io", FullName: "A"})
	require.NoError(t, err)

	require.NoError(t, f.users.DeactivateUser(f.ctx, u.UserID))
	require.NoError(t, f.users.DeactivateUser(f.ctx, u.UserID))

	stored, err := f.store.Repositories().Users.GetByID(f.ctx, u.UserID)
	require.NoError(t, err)
	assert.Equal(t, identity.UserStatusInactive, stored.Status)

	assert.ErrorIs(t, f.users.DeactivateUser(f.ctx, "US404"), shared.ErrUserNotFound)
}

func TestCreateStudent(t *testing.T) {
	f := newFixture(t)

	s := f.student(t, "Asha")
	assert.Equal(t, identity.StudentStatusStudent, s.CurrentStatus)
	assert.Equal(t, identity.DefaultLeadSource, s.LeadSource)

	_, err := f.students.CreateStudent(f.ctx, CreateStudentCommand{FirstName: "Other", Email: "ASHA@example.com", MobileNumber: "1"})
	assert.True(t, shared.IsAlreadyExists(err))

	_, err = f.students.CreateStudent(f.ctx, CreateStudentCommand{FirstName: "Nobody", Email: "n@example.com"})
	assert.True(t, shared.IsValidation(err))

	future := time.Now().AddDate(1, 0, 0)
	_, err = f.students.CreateStudent(f.ctx, CreateStudentCommand{FirstName: "Future", Email: "f@example.com", MobileNumber: "1", DateOfBirth: &future})
	assert.True(t, shared.IsValidation(err))

	_, err = f.students.CreateStudent(f.ctx, CreateStudentCommand{FirstName: "Odd", Email: "o@example.com", MobileNumber: "1", CurrentStatus: "Astronaut"})
	assert.True(t, shared.IsValidation(err))
}

func TestUpdateStudent(t *testing.T) {
	f := newFixture(t)
	s := f.student(t, "Asha")
	f.student(t, "Bilal")

	status := string(identity.StudentStatusProfessional)
	last := "  Rao "
	updated, err := f.students.UpdateStudent(f.ctx, UpdateStudentCommand{StudentID: s.StudentID, LastName: &last, CurrentStatus: &status})
	require.NoError(t, err)
	assert.Equal(t, "Rao", updated.LastName)
	assert.Equal(t, identity.StudentStatusProfessional, updated.CurrentStatus)

	taken := "BILAL@example.com"
	_, err = f.students.UpdateStudent(f.ctx, UpdateStudentCommand{StudentID: s.StudentID, Email: &taken})
	assert.True(t, shared.IsAlreadyExists(err))

	_, err = f.students.UpdateStudent(f.ctx, UpdateStudentCommand{StudentID: "STU404", LastName: &last})
	assert.ErrorIs(t, err, shared.ErrStudentNotFound)
}

// firstIDTaken fails the first student insert as if the random id collided.
type firstIDTaken struct {
	identity.StudentRepository
	tried *[]string
}

func (r firstIDTaken) Create(ctx context.Context, s *identity.Student) error {
	*r.tried = append(*r.tried, s.StudentID)
	if len(*r.tried) == 1 {
		return shared.ErrStudentIDCollision
	}
	return r.StudentRepository.Create(ctx, s)
}

type collidingStore struct {
	store.Store
	tried []string
}

func (c *collidingStore) WithinTx(ctx context.Context, fn store.TxFunc) error {
	return c.Store.WithinTx(ctx, func(ctx context.Context, repos store.Repositories) error {
		repos.Students = firstIDTaken{StudentRepository: repos.Students, tried: &c.tried}
		return fn(ctx, repos)
	})
}

func TestCreateStudent_RetriesIDCollision(t *testing.T) {
	f := newFixture(t)
	cs := &collidingStore{Store: f.store}
	h := NewStudentHandler(Deps{Store: cs})

	s, err := h.CreateStudent(f.ctx, CreateStudentCommand{FirstName: "Asha", Email: "asha@example.com", MobileNumber: "1"})
	require.NoError(t, err)

	require.Len(t, cs.tried, 2)
	assert.NotEqual(t, cs.tried[0], cs.tried[1], "a retry draws a fresh id")
	assert.Equal(t, cs.tried[1], s.StudentID)
	_, err = f.store.Repositories().Students.GetByID(f.ctx, s.StudentID)
	assert.NoError(t, err)
}
