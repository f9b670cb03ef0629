package memory

import (
	"sort"

	"github.com/learnforge/lms-ledger/internal/domain/batch"
	"github.com/learnforge/lms-ledger/internal/domain/catalog"
	"github.com/learnforge/lms-ledger/internal/domain/enrollment"
	"github.com/learnforge/lms-ledger/internal/domain/identity"
	"github.com/learnforge/lms-ledger/internal/domain/shared"
)

// state is one consistent snapshot of every table. Values are owned by the
// snapshot; repositories copy on the way in and out.
type state struct {
	seq         int64
	order       map[string]int64
	users       map[string]*identity.User
	students    map[string]*identity.Student
	courses     map[string]*catalog.Course
	modules     map[string]*catalog.Module
	lessons     map[string]*catalog.Lesson
	batches     map[string]*batch.Batch
	enrollments map[string]*enrollment.Enrollment
}

func newState() *state {
	return &state{
		order:       map[string]int64{},
		users:       map[string]*identity.User{},
		students:    map[string]*identity.Student{},
		courses:     map[string]*catalog.Course{},
		modules:     map[string]*catalog.Module{},
		lessons:     map[string]*catalog.Lesson{},
		batches:     map[string]*batch.Batch{},
		enrollments: map[string]*enrollment.Enrollment{},
	}
}

func (st *state) clone() *state {
	c := &state{
		seq:         st.seq,
		order:       make(map[string]int64, len(st.order)),
		users:       make(map[string]*identity.User, len(st.users)),
		students:    make(map[string]*identity.Student, len(st.students)),
		courses:     make(map[string]*catalog.Course, len(st.courses)),
		modules:     make(map[string]*catalog.Module, len(st.modules)),
		lessons:     make(map[string]*catalog.Lesson, len(st.lessons)),
		batches:     make(map[string]*batch.Batch, len(st.batches)),
		enrollments: make(map[string]*enrollment.Enrollment, len(st.enrollments)),
	}
	for k, v := range st.order {
		c.order[k] = v
	}
	for k, v := range st.users {
		c.users[k] = copyUser(v)
	}
	for k, v := range st.students {
		c.students[k] = copyStudent(v)
	}
	for k, v := range st.courses {
		c.courses[k] = copyCourse(v)
	}
	for k, v := range st.modules {
		c.modules[k] = copyModule(v)
	}
	for k, v := range st.lessons {
		c.lessons[k] = copyLesson(v)
	}
	for k, v := range st.batches {
		c.batches[k] = copyBatch(v)
	}
	for k, v := range st.enrollments {
		c.enrollments[k] = v.Clone()
	}
	return c
}

// track remembers insertion order so listings are stable.
func (st *state) track(id string) {
	st.seq++
	st.order[id] = st.seq
}

// ══════════════════════════════════════════════════════════════════════════════
// CASCADES
// ══════════════════════════════════════════════════════════════════════════════

func (st *state) deleteCourse(id string) {
	for mid, m := range st.modules {
		if m.CourseID == id {
			st.deleteModule(mid)
		}
	}
	for bid, b := range st.batches {
		if b.CourseID == id {
			st.deleteBatch(bid)
		}
	}
	for eid, e := range st.enrollments {
		if e.CourseID == id {
			st.drop(eid)
			delete(st.enrollments, eid)
		}
	}
	st.drop(id)
	delete(st.courses, id)
}

func (st *state) deleteModule(id string) {
	for lid, l := range st.lessons {
		if l.ModuleID == id {
			st.drop(lid)
			delete(st.lessons, lid)
		}
	}
	st.drop(id)
	delete(st.modules, id)
}

func (st *state) deleteBatch(id string) {
	for eid, e := range st.enrollments {
		if e.BatchID == id {
			st.drop(eid)
			delete(st.enrollments, eid)
		}
	}
	st.drop(id)
	delete(st.batches, id)
}

func (st *state) deleteStudent(id string) {
	for eid, e := range st.enrollments {
		if e.StudentID == id {
			st.drop(eid)
			delete(st.enrollments, eid)
		}
	}
	st.drop(id)
	delete(st.students, id)
}

func (st *state) drop(id string) {
	delete(st.order, id)
}

// ══════════════════════════════════════════════════════════════════════════════
// COPY HELPERS
// ══════════════════════════════════════════════════════════════════════════════

func copyUser(u *identity.User) *identity.User {
	c := *u
	return &c
}

func copyStudent(s *identity.Student) *identity.Student {
	c := *s
	if s.DateOfBirth != nil {
		d := *s.DateOfBirth
		c.DateOfBirth = &d
	}
	return &c
}

func copyCourse(co *catalog.Course) *catalog.Course {
	c := *co
	c.LearningPoints = append([]string(nil), co.LearningPoints...)
	return &c
}

func copyModule(m *catalog.Module) *catalog.Module {
	c := *m
	return &c
}

func copyLesson(l *catalog.Lesson) *catalog.Lesson {
	c := *l
	c.Resources = append([]string(nil), l.Resources...)
	return &c
}

func copyBatch(b *batch.Batch) *batch.Batch {
	c := *b
	c.Schedule.Days = append([]batch.Weekday(nil), b.Schedule.Days...)
	if b.EndDate != nil {
		d := *b.EndDate
		c.EndDate = &d
	}
	if b.InstructorID != nil {
		id := *b.InstructorID
		c.InstructorID = &id
	}
	return &c
}

// ══════════════════════════════════════════════════════════════════════════════
// LISTING
// ══════════════════════════════════════════════════════════════════════════════

// ordered sorts items by insertion order.
func ordered[T any](st *state, items []T, id func(T) string) []T {
	sort.SliceStable(items, func(i, j int) bool {
		return st.order[id(items[i])] < st.order[id(items[j])]
	})
	return items
}

// paginate cuts one page out of items and reports the total.
func paginate[T any](items []T, req shared.PageRequest) ([]T, int) {
	req = req.Normalize()
	start, end := req.Window(len(items))
	return items[start:end], len(items)
}
