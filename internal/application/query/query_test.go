package query

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnforge/lms-ledger/internal/application/store"
	"github.com/learnforge/lms-ledger/internal/domain/batch"
	"github.com/learnforge/lms-ledger/internal/domain/catalog"
	"github.com/learnforge/lms-ledger/internal/domain/identity"
	"github.com/learnforge/lms-ledger/internal/domain/shared"
	"github.com/learnforge/lms-ledger/internal/infrastructure/persistence/memory"
)

type fakeOutlines struct {
	stored  map[string]*catalog.Outline
	gets    int
	sets    int
	readErr error
}

func newFakeOutlines() *fakeOutlines {
	return &fakeOutlines{stored: make(map[string]*catalog.Outline)}
}

func (f *fakeOutlines) GetOutline(_ context.Context, courseID string) (*catalog.Outline, bool, error) {
	f.gets++
	if f.readErr != nil {
		return nil, false, f.readErr
	}
	o, ok := f.stored[courseID]
	return o, ok, nil
}

func (f *fakeOutlines) SetOutline(_ context.Context, o *catalog.Outline) error {
	f.sets++
	f.stored[o.Course.ID] = o
	return nil
}

type flagSet map[string]bool

func (f flagSet) IsEnabled(name string) bool { return f[name] }

func seedCourse(t *testing.T, s *memory.Store, title string) *catalog.Course {
	t.Helper()
	c := catalog.NewCourse(title, "", "", nil, catalog.CourseStatusPublished)
	err := s.WithinTx(context.Background(), func(ctx context.Context, repos store.Repositories) error {
		if err := repos.Courses.Create(ctx, c); err != nil {
			return err
		}
		m := catalog.NewModule(c.ID, "Basics", "", 1)
		if err := repos.Modules.Create(ctx, m); err != nil {
			return err
		}
		return repos.Lessons.Create(ctx, catalog.NewLesson(catalog.NewLessonParams{
			ModuleID: m.ID, Title: "Intro", Type: catalog.LessonTypeVideo, DurationMinutes: 10, Position: 1,
		}))
	})
	require.NoError(t, err)
	return c
}

func seedBatch(t *testing.T, s *memory.Store, courseID, code string) *batch.Batch {
	t.Helper()
	b, err := batch.NewBatch(batch.NewBatchParams{
		CourseID:  courseID,
		Name:      code,
		Code:      code,
		StartDate: time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC),
		Schedule:  batch.Schedule{Type: batch.ScheduleWeekday, Days: []batch.Weekday{batch.Monday}, TimeSlot: "10:00-12:00"},
	})
	require.NoError(t, err)
	require.NoError(t, s.WithinTx(context.Background(), func(ctx context.Context, repos store.Repositories) error {
		return repos.Batches.Create(ctx, b)
	}))
	return b
}

func TestNewPage(t *testing.T) {
	req := shared.PageRequest{Limit: 2, Offset: 2}

	p := NewPage([]int{3, 4}, 5, req)
	assert.True(t, p.HasNext)
	require.NotNil(t, p.NextOffset)
	assert.Equal(t, 4, *p.NextOffset)

	last := NewPage([]int{5}, 5, shared.PageRequest{Limit: 2, Offset: 4})
	assert.False(t, last.HasNext)
	assert.Nil(t, last.NextOffset)

	empty := NewPage[int](nil, 0, req)
	assert.NotNil(t, empty.Items)
	assert.Empty(t, empty.Items)
}

func TestReader_ListBatchesJoinsCourseTitle(t *testing.T) {
	s := memory.New()
	c := seedCourse(t, s, "Data Science")
	seedBatch(t, s, c.ID, "DS-1")
	seedBatch(t, s, c.ID, "DS-2")
	r := NewReader(Deps{Store: s})

	page, err := r.ListBatches(context.Background(), ListBatchesQuery{PageRequest: shared.PageRequest{Limit: 1}})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Data Science", page.Items[0].CourseTitle)
	assert.Equal(t, page.Items[0].MaxCapacity, page.Items[0].SeatsLeft)
	assert.True(t, page.HasNext)

	_, err = r.ListBatches(context.Background(), ListBatchesQuery{Status: "paused"})
	assert.True(t, shared.IsValidation(err))
}

func TestReader_CourseOutlineReadThrough(t *testing.T) {
	s := memory.New()
	c := seedCourse(t, s, "Go")
	cache := newFakeOutlines()
	r := NewReader(Deps{Store: s, Outlines: cache, Flags: flagSet{flagOutlineCache: true}})
	ctx := context.Background()

	first, err := r.CourseOutline(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, first.Modules, 1)
	assert.Len(t, first.Modules[0].Lessons, 1)
	assert.Equal(t, 1, cache.sets)

	second, err := r.CourseOutline(ctx, c.ID)
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 1, cache.sets)

	_, err = r.CourseOutline(ctx, "missing")
	assert.ErrorIs(t, err, shared.ErrCourseNotFound)
	_, err = r.CourseOutline(ctx, "")
	assert.True(t, shared.IsValidation(err))
}

func TestReader_CourseOutlineCacheBypass(t *testing.T) {
	s := memory.New()
	c := seedCourse(t, s, "Go")
	ctx := context.Background()

	off := newFakeOutlines()
	r := NewReader(Deps{Store: s, Outlines: off, Flags: flagSet{}})
	_, err := r.CourseOutline(ctx, c.ID)
	require.NoError(t, err)
	assert.Zero(t, off.gets)
	assert.Zero(t, off.sets)

	broken := newFakeOutlines()
	broken.readErr = errors.New("connection refused")
	r = NewReader(Deps{Store: s, Outlines: broken})
	outline, err := r.CourseOutline(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, c.ID, outline.Course.ID)
}

func TestReader_SearchStudents(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	for i, name := range []string{"Asha", "Ashok", "Bilal"} {
		st := identity.NewStudent(identity.NewStudentParams{
			FirstName:    name,
			Email:        fmt.Sprintf("s%d@example.com", i),
			MobileNumber: "1",
		})
		require.NoError(t, s.WithinTx(ctx, func(ctx context.Context, repos store.Repositories) error {
			return repos.Students.Create(ctx, st)
		}))
	}
	r := NewReader(Deps{Store: s})

	page, err := r.SearchStudents(ctx, "  ", shared.PageRequest{})
	require.NoError(t, err)
	assert.Zero(t, page.Total)
	assert.Equal(t, shared.DefaultPageLimit, page.Limit)

	page, err = r.SearchStudents(ctx, "ash", shared.PageRequest{})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)
}
