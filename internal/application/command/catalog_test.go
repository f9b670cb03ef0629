package command

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnforge/lms-ledger/internal/domain/catalog"
	"github.com/learnforge/lms-ledger/internal/domain/enrollment"
	"github.com/learnforge/lms-ledger/internal/domain/shared"
)

func TestCreateCourse_Validation(t *testing.T) {
	f := newFixture(t)

	_, err := f.catalog.CreateCourse(f.ctx, CreateCourseCommand{Title: "   "})
	assert.True(t, shared.IsValidation(err))

	_, err = f.catalog.CreateCourse(f.ctx, CreateCourseCommand{Title: "Go", Status: "hidden"})
	assert.True(t, shared.IsValidation(err))

	c, err := f.catalog.CreateCourse(f.ctx, CreateCourseCommand{Title: "Go"})
	require.NoError(t, err)
	assert.Equal(t, catalog.CourseStatusDraft, c.Status)
}

func TestCatalogTree(t *testing.T) {
	f := newFixture(t)
	c := f.course(t, "Go")

	m, err := f.catalog.CreateModule(f.ctx, CreateModuleCommand{CourseID: c.ID, Title: "Basics", Position: 1})
	require.NoError(t, err)
	assert.False(t, m.IsPublished)

	_, err = f.catalog.CreateModule(f.ctx, CreateModuleCommand{CourseID: "missing", Title: "Orphan"})
	assert.ErrorIs(t, err, shared.ErrCourseNotFound)

	l, err := f.catalog.CreateLesson(f.ctx, CreateLessonCommand{ModuleID: m.ID, Title: "Hello", Type: "video", DurationMinutes: 12})
	require.NoError(t, err)

	_, err = f.catalog.CreateLesson(f.ctx, CreateLessonCommand{ModuleID: m.ID, Title: "Bad", Type: "podcast"})
	assert.True(t, shared.IsValidation(err))

	_, err = f.catalog.CreateLesson(f.ctx, CreateLessonCommand{ModuleID: "missing", Title: "Orphan", Type: "text"})
	assert.ErrorIs(t, err, shared.ErrModuleNotFound)

	pub, err := f.catalog.SetLessonPublished(f.ctx, l.ID, true)
	require.NoError(t, err)
	assert.True(t, pub.IsPublished)

	title := "Fundamentals"
	pos := 0
	m2, err := f.catalog.UpdateModule(f.ctx, UpdateModuleCommand{ModuleID: m.ID, Title: &title, Position: &pos})
	require.NoError(t, err)
	assert.Equal(t, "Fundamentals", m2.Title)
	assert.Equal(t, 0, m2.Position)

	require.NoError(t, f.catalog.DeleteModule(f.ctx, m.ID))
	_, err = f.store.Repositories().Lessons.GetByID(f.ctx, l.ID)
	assert.ErrorIs(t, err, shared.ErrLessonNotFound)
}

func TestDeleteCourse_Cascades(t *testing.T) {
	f := newFixture(t)
	c := f.course(t, "Go")
	other := f.course(t, "Rust")
	m, err := f.catalog.CreateModule(f.ctx, CreateModuleCommand{CourseID: c.ID, Title: "Basics"})
	require.NoError(t, err)
	l, err := f.catalog.CreateLesson(f.ctx, CreateLessonCommand{ModuleID: m.ID, Title: "Hello", Type: "text"})
	require.NoError(t, err)
	b := f.batch(t, c.ID, "GO-01", 10)
	keepBatch := f.batch(t, other.ID, "RS-01", 10)
	s := f.student(t, "Asha")
	res := f.enroll(t, s, c, b)
	kept := f.enroll(t, s, other, keepBatch)
	f.events.reset()

	require.NoError(t, f.catalog.DeleteCourse(f.ctx, c.ID))

	repos := f.store.Repositories()
	_, err = repos.Courses.GetByID(f.ctx, c.ID)
	assert.ErrorIs(t, err, shared.ErrCourseNotFound)
	_, err = repos.Modules.GetByID(f.ctx, m.ID)
	assert.ErrorIs(t, err, shared.ErrModuleNotFound)
	_, err = repos.Lessons.GetByID(f.ctx, l.ID)
	assert.ErrorIs(t, err, shared.ErrLessonNotFound)
	_, err = repos.Batches.GetByID(f.ctx, b.ID)
	assert.ErrorIs(t, err, shared.ErrBatchNotFound)
	_, err = repos.Enrollments.GetByID(f.ctx, res.Enrollment.ID)
	assert.ErrorIs(t, err, shared.ErrEnrollmentNotFound)

	_, err = repos.Students.GetByID(f.ctx, s.StudentID)
	assert.NoError(t, err)
	_, err = repos.Enrollments.GetByID(f.ctx, kept.Enrollment.ID)
	assert.NoError(t, err)
	assert.Equal(t, 1, f.seats(t, keepBatch.ID))

	assert.Equal(t, []shared.EventType{shared.EventCourseDeleted, shared.EventBatchDeleted}, f.events.types())

	err = f.catalog.DeleteCourse(f.ctx, c.ID)
	assert.True(t, shared.IsNotFound(err))
}

func TestBatchCommands(t *testing.T) {
	f := newFixture(t)
	c := f.course(t, "Go")
	b := f.batch(t, c.ID, "GO-01", 2)

	t.Run("code is unique", func(t *testing.T) {
		_, err := f.batches.CreateBatch(f.ctx, CreateBatchCommand{CourseID: c.ID, Name: "dup", Code: "GO-01", StartDate: b.StartDate})
		assert.True(t, shared.IsAlreadyExists(err))
	})

	t.Run("missing course", func(t *testing.T) {
		_, err := f.batches.CreateBatch(f.ctx, CreateBatchCommand{CourseID: "nope", Name: "x", Code: "X-1", StartDate: b.StartDate})
		assert.ErrorIs(t, err, shared.ErrCourseNotFound)
	})

	t.Run("unknown instructor", func(t *testing.T) {
		_, err := f.batches.CreateBatch(f.ctx, CreateBatchCommand{CourseID: c.ID, Name: "x", Code: "X-2", StartDate: b.StartDate, InstructorID: "US404"})
		assert.ErrorIs(t, err, shared.ErrInstructorNotFound)
	})

	t.Run("bad weekday", func(t *testing.T) {
		_, err := f.batches.CreateBatch(f.ctx, CreateBatchCommand{CourseID: c.ID, Name: "x", Code: "X-3", StartDate: b.StartDate, Days: []string{"someday"}})
		assert.True(t, shared.IsValidation(err))
	})

	t.Run("instructor assignment", func(t *testing.T) {
		u, err := f.users.CreateUser(f.ctx, CreateUserCommand{Email: "teach@lms.io", FullName: "Teacher", Role: "teacher"})
		require.NoError(t, err)
		updated, err := f.batches.UpdateBatch(f.ctx, UpdateBatchCommand{BatchID: b.ID, InstructorID: &u.UserID})
		require.NoError(t, err)
		require.NotNil(t, updated.InstructorID)
		assert.Equal(t, u.UserID, *updated.InstructorID)

		cleared, err := f.batches.UpdateBatch(f.ctx, UpdateBatchCommand{BatchID: b.ID, ClearInstructor: true})
		require.NoError(t, err)
		assert.Nil(t, cleared.InstructorID)
	})

	t.Run("capacity below seats taken", func(t *testing.T) {
		f.enroll(t, f.student(t, "Asha"), c, b)
		f.enroll(t, f.student(t, "Bilal"), c, b)
		one := 1
		_, err := f.batches.UpdateBatch(f.ctx, UpdateBatchCommand{BatchID: b.ID, MaxCapacity: &one})
		assert.ErrorIs(t, err, shared.ErrBatchInvalidSetting)
		assert.True(t, shared.IsConstraintViolation(err))

		five := 5
		updated, err := f.batches.UpdateBatch(f.ctx, UpdateBatchCommand{BatchID: b.ID, MaxCapacity: &five})
		require.NoError(t, err)
		assert.Equal(t, 5, updated.MaxCapacity)
		assert.Equal(t, 2, updated.CurrentEnrollment)
	})

	t.Run("delete removes enrollments", func(t *testing.T) {
		require.NoError(t, f.batches.DeleteBatch(f.ctx, b.ID))
		_, total, err := f.store.Repositories().Enrollments.List(f.ctx, enrollment.Filter{BatchID: b.ID})
		require.NoError(t, err)
		assert.Zero(t, total)
	})
}
