package command

import (
	"context"
	"fmt"
	"strings"

	"github.com/learnforge/lms-ledger/internal/application/store"
	"github.com/learnforge/lms-ledger/internal/domain/catalog"
	"github.com/learnforge/lms-ledger/internal/domain/shared"
)

// CreateLessonCommand adds a lesson to a module. MediaURL and Resources are
// stored as opaque references.
type CreateLessonCommand struct {
	ModuleID        string   `validate:"required"`
	Title           string   `validate:"required,notblank,max=200"`
	Type            string   `validate:"required"`
	Content         string   `validate:"max=100000"`
	MediaURL        string   `validate:"max=2048"`
	Resources       []string `validate:"max=50,dive,max=2048"`
	DurationMinutes int      `validate:"gte=0,max=10000"`
	Position        int      `validate:"gte=0"`
}

// Validate checks rules the tags cannot express.
func (c CreateLessonCommand) Validate() error {
	if !catalog.LessonType(c.Type).IsValid() {
		return shared.Validationf("catalog", "CreateLesson", "unknown lesson type %q", c.Type)
	}
	return nil
}

// UpdateLessonCommand changes a lesson. Nil fields are left alone.
type UpdateLessonCommand struct {
	LessonID        string    `validate:"required"`
	Title           *string   `validate:"omitempty,notblank,max=200"`
	Type            *string   `validate:"omitempty"`
	Content         *string   `validate:"omitempty,max=100000"`
	MediaURL        *string   `validate:"omitempty,max=2048"`
	Resources       *[]string `validate:"omitempty,max=50,dive,max=2048"`
	DurationMinutes *int      `validate:"omitempty,gte=0,max=10000"`
	Position        *int      `validate:"omitempty,gte=0"`
}

// CreateLesson stores a new unpublished lesson.
func (h *CatalogHandler) CreateLesson(ctx context.Context, cmd CreateLessonCommand) (*catalog.Lesson, error) {
	if err := checkStruct("catalog", "CreateLesson", cmd); err != nil {
		return nil, err
	}
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	lesson := catalog.NewLesson(catalog.NewLessonParams{
		ModuleID:        cmd.ModuleID,
		Title:           cmd.Title,
		Type:            catalog.LessonType(cmd.Type),
		Content:         cmd.Content,
		MediaURL:        cmd.MediaURL,
		Resources:       cmd.Resources,
		DurationMinutes: cmd.DurationMinutes,
		Position:        cmd.Position,
	})
	var courseID string
	err := h.deps.Store.WithinTx(ctx, func(ctx context.Context, repos store.Repositories) error {
		m, err := repos.Modules.GetByID(ctx, cmd.ModuleID)
		if err != nil {
			return err
		}
		courseID = m.CourseID
		return repos.Lessons.Create(ctx, lesson)
	})
	if err != nil {
		return nil, fmt.Errorf("create_lesson: %w", err)
	}
	h.courseChanged(courseID)
	return lesson, nil
}

// UpdateLesson applies the non-nil fields of cmd.
func (h *CatalogHandler) UpdateLesson(ctx context.Context, cmd UpdateLessonCommand) (*catalog.Lesson, error) {
	if err := checkStruct("catalog", "UpdateLesson", cmd); err != nil {
		return nil, err
	}
	if cmd.Type != nil && !catalog.LessonType(*cmd.Type).IsValid() {
		return nil, shared.Validationf("catalog", "UpdateLesson", "unknown lesson type %q", *cmd.Type)
	}
	return h.mutateLesson(ctx, "update_lesson", cmd.LessonID, func(l *catalog.Lesson) {
		if cmd.Title != nil {
			l.Title = strings.TrimSpace(*cmd.Title)
		}
		if cmd.Type != nil {
			l.Type = catalog.LessonType(*cmd.Type)
		}
		if cmd.Content != nil {
			l.Content = *cmd.Content
		}
		if cmd.MediaURL != nil {
			l.MediaURL = *cmd.MediaURL
		}
		if cmd.Resources != nil {
			l.Resources = trimAll(*cmd.Resources)
		}
		if cmd.DurationMinutes != nil {
			l.DurationMinutes = *cmd.DurationMinutes
		}
		if cmd.Position != nil {
			l.Position = *cmd.Position
		}
	})
}

// SetLessonPublished flips the publish flag of one lesson.
func (h *CatalogHandler) SetLessonPublished(ctx context.Context, lessonID string, published bool) (*catalog.Lesson, error) {
	if lessonID == "" {
		return nil, shared.Validationf("catalog", "PublishLesson", "lesson id is required")
	}
	return h.mutateLesson(ctx, "publish_lesson", lessonID, func(l *catalog.Lesson) {
		l.IsPublished = published
	})
}

// DeleteLesson removes one lesson.
func (h *CatalogHandler) DeleteLesson(ctx context.Context, lessonID string) error {
	if lessonID == "" {
		return shared.Validationf("catalog", "DeleteLesson", "lesson id is required")
	}
	var courseID string
	err := h.deps.Store.WithinTx(ctx, func(ctx context.Context, repos store.Repositories) error {
		l, err := repos.Lessons.GetByID(ctx, lessonID)
		if err != nil {
			return err
		}
		if m, err := repos.Modules.GetByID(ctx, l.ModuleID); err == nil {
			courseID = m.CourseID
		}
		return repos.Lessons.Delete(ctx, lessonID)
	})
	if err != nil {
		return fmt.Errorf("delete_lesson: %w", err)
	}
	h.courseChanged(courseID)
	return nil
}

func (h *CatalogHandler) mutateLesson(ctx context.Context, op, lessonID string, apply func(*catalog.Lesson)) (*catalog.Lesson, error) {
	var (
		lesson   *catalog.Lesson
		courseID string
	)
	err := h.deps.Store.WithinTx(ctx, func(ctx context.Context, repos store.Repositories) error {
		l, err := repos.Lessons.GetByID(ctx, lessonID)
		if err != nil {
			return err
		}
		m, err := repos.Modules.GetByID(ctx, l.ModuleID)
		if err != nil {
			return err
		}
		courseID = m.CourseID
		apply(l)
		if err := repos.Lessons.Update(ctx, l); err != nil {
			return err
		}
		lesson = l
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	h.courseChanged(courseID)
	return lesson, nil
}
