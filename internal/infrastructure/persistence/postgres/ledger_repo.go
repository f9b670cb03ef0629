package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/learnforge/lms-ledger/internal/domain/batch"
	"github.com/learnforge/lms-ledger/internal/domain/enrollment"
	"github.com/learnforge/lms-ledger/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// BATCH REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

type batchRepo struct{ q Querier }

const batchColumns = `id, course_id, batch_name, batch_code, start_date, end_date, schedule_type,
	days_of_week, time_slot, instructor_id, max_capacity, current_enrollment, status,
	created_at, updated_at`

func (r *batchRepo) Create(ctx context.Context, b *batch.Batch) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO batches (`+batchColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, 0, $12, $13, $14)`,
		b.ID, b.CourseID, b.Name, b.Code, b.StartDate, b.EndDate, string(b.Schedule.Type),
		daysToText(b.Schedule.Days), b.Schedule.TimeSlot, b.InstructorID, b.MaxCapacity,
		string(b.Status), b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		return batchWriteError("create", err)
	}
	b.CurrentEnrollment = 0
	return nil
}

func (r *batchRepo) GetByID(ctx context.Context, id string) (*batch.Batch, error) {
	return scanBatch(r.q.QueryRow(ctx, `SELECT `+batchColumns+` FROM batches WHERE id = $1`, id))
}

// GetForUpdate holds the row lock until the transaction ends. Every check
// against current_enrollment happens after this lock is taken.
func (r *batchRepo) GetForUpdate(ctx context.Context, id string) (*batch.Batch, error) {
	return scanBatch(r.q.QueryRow(ctx, `SELECT `+batchColumns+` FROM batches WHERE id = $1 FOR UPDATE`, id))
}

func (r *batchRepo) GetByCode(ctx context.Context, code string) (*batch.Batch, error) {
	return scanBatch(r.q.QueryRow(ctx, `SELECT `+batchColumns+` FROM batches WHERE batch_code = $1`, code))
}

// Update never writes course_id or current_enrollment.
func (r *batchRepo) Update(ctx context.Context, b *batch.Batch) error {
	b.UpdatedAt = time.Now().UTC()
	tag, err := r.q.Exec(ctx, `
		UPDATE batches SET
			batch_name = $1,
			batch_code = $2,
			start_date = $3,
			end_date = $4,
			schedule_type = $5,
			days_of_week = $6,
			time_slot = $7,
			instructor_id = $8,
			max_capacity = $9,
			status = $10,
			updated_at = $11
		WHERE id = $12`,
		b.Name, b.Code, b.StartDate, b.EndDate, string(b.Schedule.Type),
		daysToText(b.Schedule.Days), b.Schedule.TimeSlot, b.InstructorID, b.MaxCapacity,
		string(b.Status), b.UpdatedAt, b.ID,
	)
	if err != nil {
		return batchWriteError("update", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrBatchNotFound
	}
	return nil
}

// AdjustEnrollment moves the seat count by delta in one statement and
// returns the new value. The row lock it takes lasts until commit.
func (r *batchRepo) AdjustEnrollment(ctx context.Context, id string, delta int) (int, error) {
	var current int
	err := r.q.QueryRow(ctx, `
		UPDATE batches
		SET current_enrollment = current_enrollment + $1, updated_at = NOW()
		WHERE id = $2
		RETURNING current_enrollment`, delta, id).Scan(&current)
	switch {
	case IsNoRows(err):
		return 0, shared.ErrBatchVanished
	case IsCheckViolation(err) && ConstraintName(err) == constraintSeatCount:
		return 0, shared.ErrBatchSeatUnderflow
	case err != nil:
		return 0, fmt.Errorf("failed to adjust seat count: %w", err)
	}
	return current, nil
}

func (r *batchRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.q.Exec(ctx, `DELETE FROM batches WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete batch: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrBatchNotFound
	}
	return nil
}

func (r *batchRepo) List(ctx context.Context, f batch.Filter) ([]*batch.Batch, int, error) {
	w := &where{}
	if f.CourseID != "" {
		w.add(`course_id = ?`, f.CourseID)
	}
	if f.Status != "" {
		w.add(`status = ?`, string(f.Status))
	}
	if f.Search != "" {
		p := likePattern(f.Search)
		w.add(`(batch_name ILIKE ? OR batch_code ILIKE ?)`, p, p)
	}

	total, err := count(ctx, r.q, "batches", w)
	if err != nil {
		return nil, 0, err
	}
	limit, args := w.page(f.PageRequest)
	rows, err := r.q.Query(ctx, `SELECT `+batchColumns+` FROM batches`+w.String()+` ORDER BY start_date, created_at, id`+limit, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list batches: %w", err)
	}
	defer rows.Close()

	var out []*batch.Batch
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, b)
	}
	return out, total, rows.Err()
}

func batchWriteError(op string, err error) error {
	switch {
	case IsUniqueViolation(err) && ConstraintName(err) == constraintBatchCode:
		return shared.ErrBatchCodeTaken
	case IsForeignKeyViolation(err) && ConstraintName(err) == constraintBatchCourse:
		return shared.ErrCourseNotFound
	case IsForeignKeyViolation(err) && ConstraintName(err) == constraintBatchInstructor:
		return shared.ErrInstructorNotFound
	case IsCheckViolation(err):
		return shared.WrapError("batch", "Validate", shared.ErrInvalidInput, "batch settings rejected by storage", shared.ErrBatchInvalidSetting)
	}
	return fmt.Errorf("failed to %s batch: %w", op, err)
}

func scanBatch(row rowScanner) (*batch.Batch, error) {
	var b batch.Batch
	var scheduleType, status string
	var days []string
	err := row.Scan(
		&b.ID,
		&b.CourseID,
		&b.Name,
		&b.Code,
		&b.StartDate,
		&b.EndDate,
		&scheduleType,
		&days,
		&b.Schedule.TimeSlot,
		&b.InstructorID,
		&b.MaxCapacity,
		&b.CurrentEnrollment,
		&status,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if IsNoRows(err) {
		return nil, shared.ErrBatchNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan batch: %w", err)
	}
	b.Schedule.Type = batch.ScheduleType(scheduleType)
	b.Schedule.Days = make([]batch.Weekday, 0, len(days))
	for _, d := range days {
		b.Schedule.Days = append(b.Schedule.Days, batch.Weekday(d))
	}
	b.Status = batch.Status(status)
	return &b, nil
}

func daysToText(days []batch.Weekday) []string {
	out := make([]string, 0, len(days))
	for _, d := range days {
		out = append(out, string(d))
	}
	return out
}

// ══════════════════════════════════════════════════════════════════════════════
// ENROLLMENT REPOSITORY
// progress_percentage is NUMERIC(5,2); it crosses the boundary as integer
// hundredths so no float rounding is involved.
// ══════════════════════════════════════════════════════════════════════════════

type enrollmentRepo struct{ q Querier }

const enrollmentColumns = `id, enrollment_number, student_id, course_id, batch_id, enrollment_date,
	start_date, completion_date, status, (progress_percentage * 100)::int, created_at, updated_at`

func (r *enrollmentRepo) Insert(ctx context.Context, e *enrollment.Enrollment) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO enrollments (
			id, enrollment_number, student_id, course_id, batch_id, enrollment_date,
			start_date, completion_date, status, progress_percentage, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10::int / 100.0, $11, $12)`,
		e.ID, e.Number, e.StudentID, e.CourseID, e.BatchID, e.EnrollmentDate,
		e.StartDate, e.CompletionDate, string(e.Status), int(e.Progress), e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		return enrollmentWriteError("insert", err)
	}
	return nil
}

func (r *enrollmentRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.q.Exec(ctx, `DELETE FROM enrollments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete enrollment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrEnrollmentNotFound
	}
	return nil
}

func (r *enrollmentRepo) Update(ctx context.Context, e *enrollment.Enrollment) error {
	e.UpdatedAt = time.Now().UTC()
	tag, err := r.q.Exec(ctx, `
		UPDATE enrollments SET
			status = $1,
			progress_percentage = $2::int / 100.0,
			completion_date = $3,
			updated_at = $4
		WHERE id = $5`,
		string(e.Status), int(e.Progress), e.CompletionDate, e.UpdatedAt, e.ID,
	)
	if err != nil {
		return enrollmentWriteError("update", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrEnrollmentNotFound
	}
	return nil
}

func (r *enrollmentRepo) GetByID(ctx context.Context, id string) (*enrollment.Enrollment, error) {
	return scanEnrollment(r.q.QueryRow(ctx, `SELECT `+enrollmentColumns+` FROM enrollments WHERE id = $1`, id))
}

func (r *enrollmentRepo) GetForUpdate(ctx context.Context, id string) (*enrollment.Enrollment, error) {
	return scanEnrollment(r.q.QueryRow(ctx, `SELECT `+enrollmentColumns+` FROM enrollments WHERE id = $1 FOR UPDATE`, id))
}

func (r *enrollmentRepo) ExistsActive(ctx context.Context, studentID, courseID string) (bool, error) {
	var exists bool
	err := r.q.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM enrollments
			WHERE student_id = $1 AND course_id = $2 AND status = 'active'
		)`, studentID, courseID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check active enrollment: %w", err)
	}
	return exists, nil
}

func (r *enrollmentRepo) ListByStudent(ctx context.Context, studentID string) ([]*enrollment.Enrollment, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+enrollmentColumns+` FROM enrollments
		WHERE student_id = $1
		ORDER BY created_at, id
		FOR UPDATE`, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list student enrollments: %w", err)
	}
	defer rows.Close()
	return scanEnrollments(rows)
}

func (r *enrollmentRepo) CountSeatHolders(ctx context.Context, batchID string) (int, error) {
	var n int
	err := r.q.QueryRow(ctx, `
		SELECT count(*) FROM enrollments
		WHERE batch_id = $1 AND status = 'active'`, batchID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count seat holders: %w", err)
	}
	return n, nil
}

func (r *enrollmentRepo) List(ctx context.Context, f enrollment.Filter) ([]*enrollment.Enrollment, int, error) {
	w := &where{}
	if f.StudentID != "" {
		w.add(`student_id = ?`, f.StudentID)
	}
	if f.CourseID != "" {
		w.add(`course_id = ?`, f.CourseID)
	}
	if f.BatchID != "" {
		w.add(`batch_id = ?`, f.BatchID)
	}
	if f.Status != "" {
		w.add(`status = ?`, string(f.Status))
	}

	total, err := count(ctx, r.q, "enrollments", w)
	if err != nil {
		return nil, 0, err
	}
	limit, args := w.page(f.PageRequest)
	rows, err := r.q.Query(ctx, `SELECT `+enrollmentColumns+` FROM enrollments`+w.String()+` ORDER BY created_at, id`+limit, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list enrollments: %w", err)
	}
	defer rows.Close()
	out, err := scanEnrollments(rows)
	return out, total, err
}

func enrollmentWriteError(op string, err error) error {
	name := ConstraintName(err)
	switch {
	case IsUniqueViolation(err) && name == constraintActiveEnrollment:
		return shared.ErrEnrollmentDuplicate
	case IsUniqueViolation(err) && name == constraintEnrollmentNumber:
		return shared.ErrNumberCollision
	case IsForeignKeyViolation(err) && name == constraintEnrollmentStudent:
		return shared.ErrStudentNotFound
	case IsForeignKeyViolation(err) && name == constraintEnrollmentCourse:
		return shared.ErrCourseNotFound
	case IsForeignKeyViolation(err) && name == constraintEnrollmentBatch:
		return shared.ErrBatchNotFound
	case IsCheckViolation(err) && name == constraintEnrollmentProgress:
		return shared.ErrProgressOutOfRange
	}
	return fmt.Errorf("failed to %s enrollment: %w", op, err)
}

func scanEnrollment(row rowScanner) (*enrollment.Enrollment, error) {
	var e enrollment.Enrollment
	var status string
	var progress int
	err := row.Scan(
		&e.ID,
		&e.Number,
		&e.StudentID,
		&e.CourseID,
		&e.BatchID,
		&e.EnrollmentDate,
		&e.StartDate,
		&e.CompletionDate,
		&status,
		&progress,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if IsNoRows(err) {
		return nil, shared.ErrEnrollmentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan enrollment: %w", err)
	}
	e.Status = enrollment.Status(status)
	e.Progress = enrollment.Progress(progress)
	return &e, nil
}

func scanEnrollments(rows interface {
	rowScanner
	Next() bool
	Err() error
}) ([]*enrollment.Enrollment, error) {
	var out []*enrollment.Enrollment
	for rows.Next() {
		e, err := scanEnrollment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
