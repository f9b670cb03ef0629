package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/learnforge/lms-ledger/internal/domain/shared"
)

func TestWhere(t *testing.T) {
	w := &where{}
	assert.Equal(t, "", w.String())

	w.add(`course_id = ?`, "C1")
	w.add(`(email ILIKE ? OR first_name ILIKE ?)`, "%a%", "%a%")
	assert.Equal(t, ` WHERE course_id = $1 AND (email ILIKE $2 OR first_name ILIKE $3)`, w.String())

	limit, args := w.page(shared.PageRequest{Limit: 500, Offset: 10})
	assert.Equal(t, ` LIMIT $4 OFFSET $5`, limit)
	assert.Equal(t, []any{"C1", "%a%", "%a%", shared.MaxPageLimit, 10}, args)
	assert.Len(t, w.args, 3)
}

func TestLikePattern(t *testing.T) {
	assert.Equal(t, `%web%`, likePattern("web"))
	assert.Equal(t, `%100\%\_off\\%`, likePattern(`100%_off\`))
}

func TestTSPrefixQuery(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"   ", ""},
		{"Asha", "'asha':*"},
		{"asha  RAO", "'asha':* & 'rao':*"},
		{"o'brien & (x)", "'obrien':* & 'x':*"},
		{"!!! :*", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, tsPrefixQuery(tt.in))
		})
	}
}

func TestErrorClassifiers(t *testing.T) {
	pgErr := func(code, constraint string) error {
		return fmt.Errorf("wrapped: %w", &pgconn.PgError{Code: code, ConstraintName: constraint})
	}

	assert.True(t, IsUniqueViolation(pgErr("23505", "uq_enrollments_active")))
	assert.Equal(t, "uq_enrollments_active", ConstraintName(pgErr("23505", "uq_enrollments_active")))
	assert.True(t, IsForeignKeyViolation(pgErr("23503", "")))
	assert.True(t, IsCheckViolation(pgErr("23514", "")))
	assert.True(t, IsSerializationFailure(pgErr("40001", "")))
	assert.True(t, IsSerializationFailure(pgErr("40P01", "")))
	assert.True(t, IsTransient(pgErr("40001", "")))
	assert.False(t, IsTransient(errors.New("boom")))
	assert.True(t, IsNoRows(fmt.Errorf("x: %w", pgx.ErrNoRows)))
	assert.Equal(t, "", ConstraintName(errors.New("plain")))
}

func TestWriteErrors_DispatchOnConstraint(t *testing.T) {
	unique := func(constraint string) error {
		return &pgconn.PgError{Code: "23505", ConstraintName: constraint}
	}

	tests := []struct {
		name      string
		err       error
		want      error
		retryable bool
	}{
		{"student id", studentWriteError("create", unique(constraintStudentKey)), shared.ErrStudentIDCollision, true},
		{"student email", studentWriteError("create", unique(constraintStudentEmail)), shared.ErrStudentAlreadyExists, false},
		{"user id", userWriteError("create", unique(constraintUserKey)), shared.ErrUserIDCollision, true},
		{"user email", userWriteError("update", unique(constraintUserEmail)), shared.ErrUserAlreadyExists, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.err, tt.want)
			assert.Equal(t, tt.retryable, shared.IsRetryable(tt.err))
			assert.Equal(t, tt.retryable, IsTransient(tt.err))
		})
	}

	other := studentWriteError("create", unique("some_other_index"))
	assert.False(t, shared.IsAlreadyExists(other))
	assert.Contains(t, other.Error(), "failed to create student")
}

func TestGetMigrations(t *testing.T) {
	ms := GetMigrations()
	assert.NotEmpty(t, ms)
	for i, m := range ms {
		assert.Equal(t, i+1, m.Version, "versions are dense and ordered")
		assert.NotEmpty(t, m.Name)
		assert.NotEmpty(t, m.UpSQL)
		assert.NotEmpty(t, m.DownSQL)
	}
}
