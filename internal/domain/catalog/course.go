// Package catalog models the Course → Module → Lesson ownership tree.
// Deleting a node removes its whole subtree; positions are caller-owned and
// never renumbered here.
package catalog

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// CourseStatus is the publication state of a course.
type CourseStatus string

const (
	CourseStatusDraft     CourseStatus = "DRAFT"
	CourseStatusPublished CourseStatus = "PUBLISHED"
	CourseStatusArchived  CourseStatus = "ARCHIVED"
)

// IsValid reports whether s is a known course status.
func (s CourseStatus) IsValid() bool {
	switch s {
	case CourseStatusDraft, CourseStatusPublished, CourseStatusArchived:
		return true
	default:
		return false
	}
}

// ParseCourseStatus accepts any casing ("published").
func ParseCourseStatus(s string) (CourseStatus, bool) {
	cs := CourseStatus(strings.ToUpper(strings.TrimSpace(s)))
	return cs, cs.IsValid()
}

// Course is the root of the catalog tree.
type Course struct {
	ID             string
	Title          string
	Description    string
	ThumbnailURL   string
	LearningPoints []string
	Status         CourseStatus
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewCourse builds a DRAFT course unless a status is given.
func NewCourse(title, description, thumbnailURL string, points []string, status CourseStatus) *Course {
	now := time.Now().UTC()
	if status == "" {
		status = CourseStatusDraft
	}
	return &Course{
		ID:             uuid.New().String(),
		Title:          strings.TrimSpace(title),
		Description:    description,
		ThumbnailURL:   thumbnailURL,
		LearningPoints: cleanList(points),
		Status:         status,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// cleanList trims entries and drops empty ones, keeping order.
func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
