package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/learnforge/lms-ledger/internal/domain/identity"
	"github.com/learnforge/lms-ledger/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// USER REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

type userRepo struct{ q Querier }

const userColumns = `user_id, email, full_name, role, status, password_hash, created_at, updated_at`

func (r *userRepo) Create(ctx context.Context, u *identity.User) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		u.UserID, u.Email, u.FullName, string(u.Role), string(u.Status), u.PasswordHash, u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		return userWriteError("create", err)
	}
	return nil
}

func (r *userRepo) GetByID(ctx context.Context, id string) (*identity.User, error) {
	return scanUser(r.q.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE user_id = $1`, id))
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*identity.User, error) {
	return scanUser(r.q.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
}

func (r *userRepo) Update(ctx context.Context, u *identity.User) error {
	u.UpdatedAt = time.Now().UTC()
	tag, err := r.q.Exec(ctx, `
		UPDATE users SET
			email = $1,
			full_name = $2,
			role = $3,
			status = $4,
			password_hash = $5,
			updated_at = $6
		WHERE user_id = $7`,
		u.Email, u.FullName, string(u.Role), string(u.Status), u.PasswordHash, u.UpdatedAt, u.UserID,
	)
	if err != nil {
		return userWriteError("update", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrUserNotFound
	}
	return nil
}

func (r *userRepo) List(ctx context.Context, f identity.UserFilter) ([]*identity.User, int, error) {
	w := &where{}
	if f.Search != "" {
		w.add(`(email ILIKE ? OR full_name ILIKE ?)`, likePattern(f.Search), likePattern(f.Search))
	}
	if f.Role != "" {
		w.add(`role = ?`, string(f.Role))
	}
	if f.Status != "" {
		w.add(`status = ?`, string(f.Status))
	}

	total, err := count(ctx, r.q, "users", w)
	if err != nil {
		return nil, 0, err
	}
	limit, args := w.page(f.PageRequest)
	rows, err := r.q.Query(ctx, `SELECT `+userColumns+` FROM users`+w.String()+` ORDER BY created_at, user_id`+limit, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var out []*identity.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, u)
	}
	return out, total, rows.Err()
}

// userWriteError maps constraint violations. A primary-key clash means the
// random id collided and the whole transaction can run again.
func userWriteError(op string, err error) error {
	if IsUniqueViolation(err) {
		switch ConstraintName(err) {
		case constraintUserKey:
			return shared.ErrUserIDCollision
		case constraintUserEmail:
			return shared.ErrUserAlreadyExists
		}
	}
	return fmt.Errorf("failed to %s user: %w", op, err)
}

func scanUser(row rowScanner) (*identity.User, error) {
	var u identity.User
	var role, status string
	err := row.Scan(&u.UserID, &u.Email, &u.FullName, &role, &status, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	if IsNoRows(err) {
		return nil, shared.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	u.Role = identity.Role(role)
	u.Status = identity.UserStatus(status)
	return &u, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// STUDENT REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

type studentRepo struct{ q Querier }

const studentColumns = `student_id, first_name, last_name, date_of_birth, gender, profile_photo_url,
	email, mobile_number, emergency_contact, residential_address, current_status,
	highest_qualification, id_proof_type, id_number, lead_source, created_at, updated_at`

// studentDocument is the indexed full-text expression; it must match
// idx_students_search exactly for the planner to use the index.
const studentDocument = `to_tsvector('simple', coalesce(first_name, '') || ' ' || coalesce(last_name, '') || ' ' || coalesce(email, ''))`

func (r *studentRepo) Create(ctx context.Context, s *identity.Student) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO students (`+studentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		s.StudentID, s.FirstName, s.LastName, s.DateOfBirth, s.Gender, s.ProfilePhotoURL,
		s.Email, s.MobileNumber, s.EmergencyContact, s.ResidentialAddress, string(s.CurrentStatus),
		s.HighestQualification, s.IDProofType, s.IDNumber, s.LeadSource, s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		return studentWriteError("create", err)
	}
	return nil
}

func (r *studentRepo) GetByID(ctx context.Context, id string) (*identity.Student, error) {
	return scanStudent(r.q.QueryRow(ctx, `SELECT `+studentColumns+` FROM students WHERE student_id = $1`, id))
}

func (r *studentRepo) GetForUpdate(ctx context.Context, id string) (*identity.Student, error) {
	return scanStudent(r.q.QueryRow(ctx, `SELECT `+studentColumns+` FROM students WHERE student_id = $1 FOR UPDATE`, id))
}

func (r *studentRepo) GetByEmail(ctx context.Context, email string) (*identity.Student, error) {
	return scanStudent(r.q.QueryRow(ctx, `SELECT `+studentColumns+` FROM students WHERE email = $1`, email))
}

func (r *studentRepo) Update(ctx context.Context, s *identity.Student) error {
	s.UpdatedAt = time.Now().UTC()
	tag, err := r.q.Exec(ctx, `
		UPDATE students SET
			first_name = $1,
			last_name = $2,
			date_of_birth = $3,
			gender = $4,
			profile_photo_url = $5,
			email = $6,
			mobile_number = $7,
			emergency_contact = $8,
			residential_address = $9,
			current_status = $10,
			highest_qualification = $11,
			id_proof_type = $12,
			id_number = $13,
			lead_source = $14,
			updated_at = $15
		WHERE student_id = $16`,
		s.FirstName, s.LastName, s.DateOfBirth, s.Gender, s.ProfilePhotoURL,
		s.Email, s.MobileNumber, s.EmergencyContact, s.ResidentialAddress, string(s.CurrentStatus),
		s.HighestQualification, s.IDProofType, s.IDNumber, s.LeadSource, s.UpdatedAt, s.StudentID,
	)
	if err != nil {
		return studentWriteError("update", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrStudentNotFound
	}
	return nil
}

func (r *studentRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.q.Exec(ctx, `DELETE FROM students WHERE student_id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete student: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrStudentNotFound
	}
	return nil
}

func (r *studentRepo) List(ctx context.Context, f identity.StudentFilter) ([]*identity.Student, int, error) {
	w := &where{}
	if f.Search != "" {
		p := likePattern(f.Search)
		w.add(`(email ILIKE ? OR first_name ILIKE ? OR last_name ILIKE ? OR mobile_number ILIKE ?)`, p, p, p, p)
	}
	if f.Status != "" {
		w.add(`current_status = ?`, string(f.Status))
	}
	return r.list(ctx, w, f.PageRequest, `created_at, student_id`)
}

func (r *studentRepo) Search(ctx context.Context, text string, page shared.PageRequest) ([]*identity.Student, int, error) {
	tsq := tsPrefixQuery(text)
	if tsq == "" {
		return nil, 0, nil
	}
	w := &where{}
	w.add(studentDocument+` @@ to_tsquery('simple', ?)`, tsq)
	return r.list(ctx, w, page, `created_at, student_id`)
}

func (r *studentRepo) list(ctx context.Context, w *where, page shared.PageRequest, order string) ([]*identity.Student, int, error) {
	total, err := count(ctx, r.q, "students", w)
	if err != nil {
		return nil, 0, err
	}
	limit, args := w.page(page)
	rows, err := r.q.Query(ctx, `SELECT `+studentColumns+` FROM students`+w.String()+` ORDER BY `+order+limit, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list students: %w", err)
	}
	defer rows.Close()

	var out []*identity.Student
	for rows.Next() {
		s, err := scanStudent(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, s)
	}
	return out, total, rows.Err()
}

func studentWriteError(op string, err error) error {
	if IsUniqueViolation(err) {
		switch ConstraintName(err) {
		case constraintStudentKey:
			return shared.ErrStudentIDCollision
		case constraintStudentEmail:
			return shared.ErrStudentAlreadyExists
		}
	}
	return fmt.Errorf("failed to %s student: %w", op, err)
}

func scanStudent(row rowScanner) (*identity.Student, error) {
	var s identity.Student
	var status string
	err := row.Scan(
		&s.StudentID,
		&s.FirstName,
		&s.LastName,
		&s.DateOfBirth,
		&s.Gender,
		&s.ProfilePhotoURL,
		&s.Email,
		&s.MobileNumber,
		&s.EmergencyContact,
		&s.ResidentialAddress,
		&status,
		&s.HighestQualification,
		&s.IDProofType,
		&s.IDNumber,
		&s.LeadSource,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if IsNoRows(err) {
		return nil, shared.ErrStudentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan student: %w", err)
	}
	s.CurrentStatus = identity.StudentStatus(status)
	return &s, nil
}
