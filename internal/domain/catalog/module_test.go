package catalog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCourse(t *testing.T) {
	c := NewCourse("  Go Basics ", "desc", "", []string{" types ", "", "channels"}, "")
	assert.Equal(t, "Go Basics", c.Title)
	assert.Equal(t, CourseStatusDraft, c.Status)
	assert.Equal(t, []string{"types", "channels"}, c.LearningPoints)
	assert.NotEmpty(t, c.ID)
}

func TestParseCourseStatus(t *testing.T) {
	s, ok := ParseCourseStatus("published")
	assert.True(t, ok)
	assert.Equal(t, CourseStatusPublished, s)

	_, ok = ParseCourseStatus("hidden")
	assert.False(t, ok)
}

func TestBuildOutline_Order(t *testing.T) {
	course := NewCourse("C", "", "", nil, CourseStatusPublished)
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	m2 := NewModule(course.ID, "second", "", 2)
	m1a := NewModule(course.ID, "first-a", "", 1)
	m1b := NewModule(course.ID, "first-b", "", 1)
	m1a.CreatedAt, m1b.CreatedAt, m2.CreatedAt = base, base.Add(time.Minute), base

	l1 := NewLesson(NewLessonParams{ModuleID: m1a.ID, Title: "l1", Type: LessonTypeVideo, Position: 2, DurationMinutes: 10})
	l2 := NewLesson(NewLessonParams{ModuleID: m1a.ID, Title: "l2", Type: LessonTypeText, Position: 1, DurationMinutes: 5})
	orphan := NewLesson(NewLessonParams{ModuleID: "gone", Title: "x", Type: LessonTypeQuiz, DurationMinutes: 99})

	o := BuildOutline(course, []*Module{m2, m1b, m1a}, []*Lesson{l1, l2, orphan})

	require.Len(t, o.Modules, 3)
	assert.Equal(t, "first-a", o.Modules[0].Module.Title)
	assert.Equal(t, "first-b", o.Modules[1].Module.Title)
	assert.Equal(t, "second", o.Modules[2].Module.Title)

	require.Len(t, o.Modules[0].Lessons, 2)
	assert.Equal(t, "l2", o.Modules[0].Lessons[0].Title)
	assert.Equal(t, "l1", o.Modules[0].Lessons[1].Title)
	assert.NotNil(t, o.Modules[1].Lessons)
	assert.Empty(t, o.Modules[1].Lessons)

	assert.Equal(t, 15, o.TotalDuration())
}

func TestLessonType_IsValid(t *testing.T) {
	for _, lt := range []LessonType{LessonTypeVideo, LessonTypeText, LessonTypeQuiz, LessonTypeAssignment, LessonTypeLive} {
		assert.True(t, lt.IsValid(), lt)
	}
	assert.False(t, LessonType("podcast").IsValid())
}
