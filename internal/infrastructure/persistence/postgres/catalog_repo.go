package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/learnforge/lms-ledger/internal/domain/catalog"
	"github.com/learnforge/lms-ledger/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// COURSE REPOSITORY
// Deleting a course cascades to modules, lessons, batches and enrollments
// through ON DELETE CASCADE.
// ══════════════════════════════════════════════════════════════════════════════

type courseRepo struct{ q Querier }

const courseColumns = `id, title, description, thumbnail_url, learning_points, status, created_at, updated_at`

func (r *courseRepo) Create(ctx context.Context, c *catalog.Course) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO courses (`+courseColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		c.ID, c.Title, c.Description, c.ThumbnailURL, nonNil(c.LearningPoints), string(c.Status), c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create course: %w", err)
	}
	return nil
}

func (r *courseRepo) GetByID(ctx context.Context, id string) (*catalog.Course, error) {
	return scanCourse(r.q.QueryRow(ctx, `SELECT `+courseColumns+` FROM courses WHERE id = $1`, id))
}

func (r *courseRepo) Update(ctx context.Context, c *catalog.Course) error {
	c.UpdatedAt = time.Now().UTC()
	tag, err := r.q.Exec(ctx, `
		UPDATE courses SET
			title = $1,
			description = $2,
			thumbnail_url = $3,
			learning_points = $4,
			status = $5,
			updated_at = $6
		WHERE id = $7`,
		c.Title, c.Description, c.ThumbnailURL, nonNil(c.LearningPoints), string(c.Status), c.UpdatedAt, c.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update course: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrCourseNotFound
	}
	return nil
}

func (r *courseRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.q.Exec(ctx, `DELETE FROM courses WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete course: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrCourseNotFound
	}
	return nil
}

func (r *courseRepo) List(ctx context.Context, f catalog.CourseFilter) ([]*catalog.Course, int, error) {
	w := &where{}
	if f.Search != "" {
		w.add(`title ILIKE ?`, likePattern(f.Search))
	}
	if f.Status != "" {
		w.add(`status = ?`, string(f.Status))
	}

	total, err := count(ctx, r.q, "courses", w)
	if err != nil {
		return nil, 0, err
	}
	limit, args := w.page(f.PageRequest)
	rows, err := r.q.Query(ctx, `SELECT `+courseColumns+` FROM courses`+w.String()+` ORDER BY created_at, id`+limit, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list courses: %w", err)
	}
	defer rows.Close()

	var out []*catalog.Course
	for rows.Next() {
		c, err := scanCourse(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, c)
	}
	return out, total, rows.Err()
}

func scanCourse(row rowScanner) (*catalog.Course, error) {
	var c catalog.Course
	var status string
	err := row.Scan(&c.ID, &c.Title, &c.Description, &c.ThumbnailURL, &c.LearningPoints, &status, &c.CreatedAt, &c.UpdatedAt)
	if IsNoRows(err) {
		return nil, shared.ErrCourseNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan course: %w", err)
	}
	c.Status = catalog.CourseStatus(status)
	return &c, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// MODULE REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

type moduleRepo struct{ q Querier }

const moduleColumns = `id, course_id, title, description, position, is_published, created_at, updated_at`

func (r *moduleRepo) Create(ctx context.Context, m *catalog.Module) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO modules (`+moduleColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		m.ID, m.CourseID, m.Title, m.Description, m.Position, m.IsPublished, m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		if IsForeignKeyViolation(err) {
			return shared.ErrCourseNotFound
		}
		return fmt.Errorf("failed to create module: %w", err)
	}
	return nil
}

func (r *moduleRepo) GetByID(ctx context.Context, id string) (*catalog.Module, error) {
	return scanModule(r.q.QueryRow(ctx, `SELECT `+moduleColumns+` FROM modules WHERE id = $1`, id))
}

func (r *moduleRepo) Update(ctx context.Context, m *catalog.Module) error {
	m.UpdatedAt = time.Now().UTC()
	tag, err := r.q.Exec(ctx, `
		UPDATE modules SET
			title = $1,
			description = $2,
			position = $3,
			is_published = $4,
			updated_at = $5
		WHERE id = $6`,
		m.Title, m.Description, m.Position, m.IsPublished, m.UpdatedAt, m.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update module: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrModuleNotFound
	}
	return nil
}

func (r *moduleRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.q.Exec(ctx, `DELETE FROM modules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete module: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrModuleNotFound
	}
	return nil
}

func (r *moduleRepo) ListByCourse(ctx context.Context, courseID string) ([]*catalog.Module, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+moduleColumns+` FROM modules
		WHERE course_id = $1
		ORDER BY position, created_at, id`, courseID)
	if err != nil {
		return nil, fmt.Errorf("failed to list modules: %w", err)
	}
	defer rows.Close()

	var out []*catalog.Module
	for rows.Next() {
		m, err := scanModule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func scanModule(row rowScanner) (*catalog.Module, error) {
	var m catalog.Module
	err := row.Scan(&m.ID, &m.CourseID, &m.Title, &m.Description, &m.Position, &m.IsPublished, &m.CreatedAt, &m.UpdatedAt)
	if IsNoRows(err) {
		return nil, shared.ErrModuleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan module: %w", err)
	}
	return &m, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// LESSON REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

type lessonRepo struct{ q Querier }

const lessonColumns = `l.id, l.module_id, l.title, l.lesson_type, l.content, l.media_url, l.resources,
	l.duration_minutes, l.position, l.is_published, l.created_at, l.updated_at`

func (r *lessonRepo) Create(ctx context.Context, l *catalog.Lesson) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO lessons (
			id, module_id, title, lesson_type, content, media_url, resources,
			duration_minutes, position, is_published, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		l.ID, l.ModuleID, l.Title, string(l.Type), l.Content, l.MediaURL, nonNil(l.Resources),
		l.DurationMinutes, l.Position, l.IsPublished, l.CreatedAt, l.UpdatedAt,
	)
	if err != nil {
		if IsForeignKeyViolation(err) {
			return shared.ErrModuleNotFound
		}
		return fmt.Errorf("failed to create lesson: %w", err)
	}
	return nil
}

func (r *lessonRepo) GetByID(ctx context.Context, id string) (*catalog.Lesson, error) {
	return scanLesson(r.q.QueryRow(ctx, `SELECT `+lessonColumns+` FROM lessons l WHERE l.id = $1`, id))
}

func (r *lessonRepo) Update(ctx context.Context, l *catalog.Lesson) error {
	l.UpdatedAt = time.Now().UTC()
	tag, err := r.q.Exec(ctx, `
		UPDATE lessons SET
			title = $1,
			lesson_type = $2,
			content = $3,
			media_url = $4,
			resources = $5,
			duration_minutes = $6,
			position = $7,
			is_published = $8,
			updated_at = $9
		WHERE id = $10`,
		l.Title, string(l.Type), l.Content, l.MediaURL, nonNil(l.Resources),
		l.DurationMinutes, l.Position, l.IsPublished, l.UpdatedAt, l.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update lesson: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrLessonNotFound
	}
	return nil
}

func (r *lessonRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.q.Exec(ctx, `DELETE FROM lessons WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete lesson: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrLessonNotFound
	}
	return nil
}

func (r *lessonRepo) ListByCourse(ctx context.Context, courseID string) ([]*catalog.Lesson, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+lessonColumns+`
		FROM lessons l
		JOIN modules m ON m.id = l.module_id
		WHERE m.course_id = $1
		ORDER BY l.module_id, l.position, l.created_at, l.id`, courseID)
	if err != nil {
		return nil, fmt.Errorf("failed to list lessons: %w", err)
	}
	defer rows.Close()

	var out []*catalog.Lesson
	for rows.Next() {
		l, err := scanLesson(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func scanLesson(row rowScanner) (*catalog.Lesson, error) {
	var l catalog.Lesson
	var typ string
	err := row.Scan(
		&l.ID, &l.ModuleID, &l.Title, &typ, &l.Content, &l.MediaURL, &l.Resources,
		&l.DurationMinutes, &l.Position, &l.IsPublished, &l.CreatedAt, &l.UpdatedAt,
	)
	if IsNoRows(err) {
		return nil, shared.ErrLessonNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan lesson: %w", err)
	}
	l.Type = catalog.LessonType(typ)
	return &l, nil
}

// nonNil keeps NOT NULL text[] columns from receiving NULL.
func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
