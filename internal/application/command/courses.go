package command

import (
	"context"
	"fmt"
	"strings"

	"github.com/learnforge/lms-ledger/internal/application/store"
	"github.com/learnforge/lms-ledger/internal/domain/catalog"
	"github.com/learnforge/lms-ledger/internal/domain/shared"
	"github.com/learnforge/lms-ledger/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// CATALOG COMMANDS
// Course → Module → Lesson. Parents must exist; deletes cascade downward;
// positions are stored as given.
// ══════════════════════════════════════════════════════════════════════════════

// CreateCourseCommand creates a course. Status defaults to DRAFT.
type CreateCourseCommand struct {
	Title          string   `validate:"required,notblank,max=200"`
	Description    string   `validate:"max=5000"`
	ThumbnailURL   string   `validate:"omitempty,url"`
	LearningPoints []string `validate:"max=50,dive,max=300"`
	Status         string
}

// UpdateCourseCommand changes a course. Nil fields are left alone.
type UpdateCourseCommand struct {
	CourseID       string    `validate:"required"`
	Title          *string   `validate:"omitempty,notblank,max=200"`
	Description    *string   `validate:"omitempty,max=5000"`
	ThumbnailURL   *string   `validate:"omitempty,url"`
	LearningPoints *[]string `validate:"omitempty,max=50,dive,max=300"`
	Status         *string
}

// CatalogHandler handles course, module and lesson commands.
type CatalogHandler struct {
	deps Deps
}

// NewCatalogHandler creates a new CatalogHandler.
func NewCatalogHandler(deps Deps) *CatalogHandler {
	return &CatalogHandler{deps: deps.withDefaults()}
}

// CreateCourse stores a new course.
func (h *CatalogHandler) CreateCourse(ctx context.Context, cmd CreateCourseCommand) (*catalog.Course, error) {
	if err := checkStruct("catalog", "CreateCourse", cmd); err != nil {
		return nil, err
	}
	status, err := parseCourseStatus("CreateCourse", cmd.Status)
	if err != nil {
		return nil, err
	}

	course := catalog.NewCourse(cmd.Title, cmd.Description, cmd.ThumbnailURL, cmd.LearningPoints, status)
	err = h.deps.Store.WithinTx(ctx, func(ctx context.Context, repos store.Repositories) error {
		return repos.Courses.Create(ctx, course)
	})
	if err != nil {
		return nil, fmt.Errorf("create_course: %w", err)
	}

	h.courseChanged(course.ID)
	h.deps.Logger.Info("course created", logger.CourseID(course.ID))
	return course, nil
}

// UpdateCourse applies the non-nil fields of cmd.
func (h *CatalogHandler) UpdateCourse(ctx context.Context, cmd UpdateCourseCommand) (*catalog.Course, error) {
	if err := checkStruct("catalog", "UpdateCourse", cmd); err != nil {
		return nil, err
	}
	var status catalog.CourseStatus
	if cmd.Status != nil {
		s, err := parseCourseStatus("UpdateCourse", *cmd.Status)
		if err != nil {
			return nil, err
		}
		status = s
	}

	var course *catalog.Course
	err := h.deps.Store.WithinTx(ctx, func(ctx context.Context, repos store.Repositories) error {
		c, err := repos.Courses.GetByID(ctx, cmd.CourseID)
		if err != nil {
			return err
		}
		if cmd.Title != nil {
			c.Title = strings.TrimSpace(*cmd.Title)
		}
		if cmd.Description != nil {
			c.Description = *cmd.Description
		}
		if cmd.ThumbnailURL != nil {
			c.ThumbnailURL = *cmd.ThumbnailURL
		}
		if cmd.LearningPoints != nil {
			c.LearningPoints = trimAll(*cmd.LearningPoints)
		}
		if status != "" {
			c.Status = status
		}
		if err := repos.Courses.Update(ctx, c); err != nil {
			return err
		}
		course = c
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("update_course: %w", err)
	}

	h.courseChanged(course.ID)
	return course, nil
}

// DeleteCourse removes the course with its modules, lessons, batches and
// every enrollment that referenced them.
func (h *CatalogHandler) DeleteCourse(ctx context.Context, courseID string) error {
	if courseID == "" {
		return shared.Validationf("catalog", "DeleteCourse", "course id is required")
	}
	var batchIDs []string
	err := h.deps.Store.WithinTx(ctx, func(ctx context.Context, repos store.Repositories) error {
		if _, err := repos.Courses.GetByID(ctx, courseID); err != nil {
			return err
		}
		batches, err := allBatchesOfCourse(ctx, repos, courseID)
		if err != nil {
			return err
		}
		batchIDs = batchIDs[:0]
		for _, b := range batches {
			batchIDs = append(batchIDs, b.ID)
		}
		return repos.Courses.Delete(ctx, courseID)
	})
	if err != nil {
		return fmt.Errorf("delete_course: %w", err)
	}

	h.deps.publish(shared.NewAggregateChangedEvent(shared.EventCourseDeleted, courseID, ""))
	for _, id := range batchIDs {
		h.deps.publish(shared.NewAggregateChangedEvent(shared.EventBatchDeleted, id, courseID))
	}
	h.deps.Logger.Info("course deleted", logger.CourseID(courseID), logger.Int("batches", len(batchIDs)))
	return nil
}

func (h *CatalogHandler) courseChanged(courseID string) {
	h.deps.publish(shared.NewAggregateChangedEvent(shared.EventCourseChanged, courseID, ""))
}

func parseCourseStatus(op, raw string) (catalog.CourseStatus, error) {
	if raw == "" {
		return "", nil
	}
	s, ok := catalog.ParseCourseStatus(raw)
	if !ok {
		return "", shared.Validationf("catalog", op, "unknown course status %q", raw)
	}
	return s, nil
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
