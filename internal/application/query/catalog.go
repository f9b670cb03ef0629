package query

import (
	"context"
	"fmt"
	"strings"

	"github.com/learnforge/lms-ledger/internal/domain/catalog"
	"github.com/learnforge/lms-ledger/internal/domain/shared"
	"github.com/learnforge/lms-ledger/pkg/circuitbreaker"
	"github.com/learnforge/lms-ledger/pkg/logger"
)

// ListCoursesQuery filters courses by title search and status.
type ListCoursesQuery struct {
	shared.PageRequest
	Search string
	Status string
}

// ListCourses returns one page of courses.
func (r *Reader) ListCourses(ctx context.Context, q ListCoursesQuery) (Page[*catalog.Course], error) {
	req := q.PageRequest.Normalize()
	filter := catalog.CourseFilter{PageRequest: req, Search: strings.TrimSpace(q.Search)}
	if q.Status != "" {
		st, ok := catalog.ParseCourseStatus(q.Status)
		if !ok {
			return Page[*catalog.Course]{}, shared.Validationf("catalog", "ListCourses", "unknown course status %q", q.Status)
		}
		filter.Status = st
	}
	courses, total, err := r.repos.Courses.List(ctx, filter)
	if err != nil {
		return Page[*catalog.Course]{}, fmt.Errorf("list_courses: %w", err)
	}
	return NewPage(courses, total, req), nil
}

// GetCourse returns one course without its outline.
func (r *Reader) GetCourse(ctx context.Context, courseID string) (*catalog.Course, error) {
	return r.repos.Courses.GetByID(ctx, courseID)
}

// CourseOutline returns the course with its modules and lessons in position
// order. A cache failure falls through to storage.
func (r *Reader) CourseOutline(ctx context.Context, courseID string) (*catalog.Outline, error) {
	if courseID == "" {
		return nil, shared.Validationf("catalog", "Outline", "course id is required")
	}
	if r.cacheEnabled() {
		cached, ok, err := r.outlines.GetOutline(ctx, courseID)
		switch {
		case circuitbreaker.IsRejected(err):
			r.log.Debug("outline cache skipped", logger.CourseID(courseID))
		case err != nil:
			r.log.Warn("outline cache read failed", logger.CourseID(courseID), logger.Err(err))
		case ok:
			return cached, nil
		}
	}

	course, err := r.repos.Courses.GetByID(ctx, courseID)
	if err != nil {
		return nil, err
	}
	modules, err := r.repos.Modules.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("course_outline: %w", err)
	}
	lessons, err := r.repos.Lessons.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("course_outline: %w", err)
	}
	outline := catalog.BuildOutline(course, modules, lessons)

	if r.cacheEnabled() {
		if err := r.outlines.SetOutline(ctx, outline); err != nil && !circuitbreaker.IsRejected(err) {
			r.log.Warn("outline cache write failed", logger.CourseID(courseID), logger.Err(err))
		}
	}
	return outline, nil
}
