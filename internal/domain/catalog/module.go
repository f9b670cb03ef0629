package catalog

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Module belongs to exactly one course. Position orders modules inside the
// course; duplicates are allowed.
type Module struct {
	ID          string
	CourseID    string
	Title       string
	Description string
	Position    int
	IsPublished bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewModule builds an unpublished module.
func NewModule(courseID, title, description string, position int) *Module {
	now := time.Now().UTC()
	return &Module{
		ID:          uuid.New().String(),
		CourseID:    courseID,
		Title:       strings.TrimSpace(title),
		Description: description,
		Position:    position,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// LessonType tags the kind of content a lesson carries.
type LessonType string

const (
	LessonTypeVideo      LessonType = "video"
	LessonTypeText       LessonType = "text"
	LessonTypeQuiz       LessonType = "quiz"
	LessonTypeAssignment LessonType = "assignment"
	LessonTypeLive       LessonType = "live"
)

// IsValid reports whether t is a known lesson type.
func (t LessonType) IsValid() bool {
	switch t {
	case LessonTypeVideo, LessonTypeText, LessonTypeQuiz, LessonTypeAssignment, LessonTypeLive:
		return true
	default:
		return false
	}
}

// Lesson belongs to exactly one module. MediaURL and Resources are opaque
// references; nothing here fetches them.
type Lesson struct {
	ID              string
	ModuleID        string
	Title           string
	Type            LessonType
	Content         string
	MediaURL        string
	Resources       []string
	DurationMinutes int
	Position        int
	IsPublished     bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// NewLessonParams holds the inputs of NewLesson.
type NewLessonParams struct {
	ModuleID        string
	Title           string
	Type            LessonType
	Content         string
	MediaURL        string
	Resources       []string
	DurationMinutes int
	Position        int
}

// NewLesson builds an unpublished lesson.
func NewLesson(p NewLessonParams) *Lesson {
	now := time.Now().UTC()
	return &Lesson{
		ID:              uuid.New().String(),
		ModuleID:        p.ModuleID,
		Title:           strings.TrimSpace(p.Title),
		Type:            p.Type,
		Content:         p.Content,
		MediaURL:        p.MediaURL,
		Resources:       cleanList(p.Resources),
		DurationMinutes: p.DurationMinutes,
		Position:        p.Position,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// OUTLINE
// ══════════════════════════════════════════════════════════════════════════════

// Outline is a course with its modules and lessons in display order.
type Outline struct {
	Course  *Course          `json:"course"`
	Modules []*OutlineModule `json:"modules"`
}

// OutlineModule is one module of an Outline.
type OutlineModule struct {
	Module  *Module   `json:"module"`
	Lessons []*Lesson `json:"lessons"`
}

// BuildOutline assembles an outline from flat module and lesson lists.
// Lessons whose module is not in modules are ignored. Ties on position keep
// creation order.
func BuildOutline(course *Course, modules []*Module, lessons []*Lesson) *Outline {
	ms := make([]*Module, len(modules))
	copy(ms, modules)
	sort.SliceStable(ms, func(i, j int) bool {
		if ms[i].Position != ms[j].Position {
			return ms[i].Position < ms[j].Position
		}
		return ms[i].CreatedAt.Before(ms[j].CreatedAt)
	})

	byModule := make(map[string][]*Lesson, len(ms))
	for _, l := range lessons {
		byModule[l.ModuleID] = append(byModule[l.ModuleID], l)
	}

	out := &Outline{Course: course, Modules: make([]*OutlineModule, 0, len(ms))}
	for _, m := range ms {
		ls := byModule[m.ID]
		sort.SliceStable(ls, func(i, j int) bool {
			if ls[i].Position != ls[j].Position {
				return ls[i].Position < ls[j].Position
			}
			return ls[i].CreatedAt.Before(ls[j].CreatedAt)
		})
		if ls == nil {
			ls = []*Lesson{}
		}
		out.Modules = append(out.Modules, &OutlineModule{Module: m, Lessons: ls})
	}
	return out
}

// TotalDuration sums lesson durations of the outline in minutes.
func (o *Outline) TotalDuration() int {
	total := 0
	for _, m := range o.Modules {
		for _, l := range m.Lessons {
			total += l.DurationMinutes
		}
	}
	return total
}
