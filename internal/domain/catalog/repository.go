package catalog

import (
	"context"

	"github.com/learnforge/lms-ledger/internal/domain/shared"
)

// CourseRepository stores courses. Delete cascades to modules, lessons,
// batches and enrollments in storage.
type CourseRepository interface {
	Create(ctx context.Context, c *Course) error
	GetByID(ctx context.Context, id string) (*Course, error)
	Update(ctx context.Context, c *Course) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter CourseFilter) ([]*Course, int, error)
}

// CourseFilter narrows CourseRepository.List. Search matches the title.
type CourseFilter struct {
	shared.PageRequest
	Search string
	Status CourseStatus
}

// ModuleRepository stores modules. Delete cascades to lessons.
type ModuleRepository interface {
	Create(ctx context.Context, m *Module) error
	GetByID(ctx context.Context, id string) (*Module, error)
	Update(ctx context.Context, m *Module) error
	Delete(ctx context.Context, id string) error

	// ListByCourse orders by position, then creation time.
	ListByCourse(ctx context.Context, courseID string) ([]*Module, error)
}

// LessonRepository stores lessons.
type LessonRepository interface {
	Create(ctx context.Context, l *Lesson) error
	GetByID(ctx context.Context, id string) (*Lesson, error)
	Update(ctx context.Context, l *Lesson) error
	Delete(ctx context.Context, id string) error

	// ListByCourse returns every lesson under any module of the course.
	ListByCourse(ctx context.Context, courseID string) ([]*Lesson, error)
}
