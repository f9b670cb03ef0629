package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/learnforge/lms-ledger/internal/domain/catalog"
	"github.com/learnforge/lms-ledger/internal/domain/shared"
)

type courseRepo struct{ run runner }

func (r *courseRepo) Create(_ context.Context, c *catalog.Course) error {
	return r.run(func(st *state) error {
		if _, ok := st.courses[c.ID]; ok {
			return shared.NewDomainError("catalog", "CreateCourse", shared.ErrAlreadyExists, "course id already used")
		}
		st.courses[c.ID] = copyCourse(c)
		st.track(c.ID)
		return nil
	})
}

func (r *courseRepo) GetByID(_ context.Context, id string) (*catalog.Course, error) {
	var out *catalog.Course
	err := r.run(func(st *state) error {
		c, ok := st.courses[id]
		if !ok {
			return shared.ErrCourseNotFound
		}
		out = copyCourse(c)
		return nil
	})
	return out, err
}

func (r *courseRepo) Update(_ context.Context, c *catalog.Course) error {
	return r.run(func(st *state) error {
		if _, ok := st.courses[c.ID]; !ok {
			return shared.ErrCourseNotFound
		}
		c.UpdatedAt = time.Now().UTC()
		st.courses[c.ID] = copyCourse(c)
		return nil
	})
}

func (r *courseRepo) Delete(_ context.Context, id string) error {
	return r.run(func(st *state) error {
		if _, ok := st.courses[id]; !ok {
			return shared.ErrCourseNotFound
		}
		st.deleteCourse(id)
		return nil
	})
}

func (r *courseRepo) List(_ context.Context, f catalog.CourseFilter) ([]*catalog.Course, int, error) {
	var (
		page  []*catalog.Course
		total int
	)
	err := r.run(func(st *state) error {
		needle := strings.ToLower(strings.TrimSpace(f.Search))
		var all []*catalog.Course
		for _, c := range st.courses {
			if f.Status != "" && c.Status != f.Status {
				continue
			}
			if needle != "" && !containsFold(needle, c.Title) {
				continue
			}
			all = append(all, copyCourse(c))
		}
		all = ordered(st, all, func(c *catalog.Course) string { return c.ID })
		page, total = paginate(all, f.PageRequest)
		return nil
	})
	return page, total, err
}

type moduleRepo struct{ run runner }

func (r *moduleRepo) Create(_ context.Context, m *catalog.Module) error {
	return r.run(func(st *state) error {
		if _, ok := st.courses[m.CourseID]; !ok {
			return shared.ErrCourseNotFound
		}
		st.modules[m.ID] = copyModule(m)
		st.track(m.ID)
		return nil
	})
}

func (r *moduleRepo) GetByID(_ context.Context, id string) (*catalog.Module, error) {
	var out *catalog.Module
	err := r.run(func(st *state) error {
		m, ok := st.modules[id]
		if !ok {
			return shared.ErrModuleNotFound
		}
		out = copyModule(m)
		return nil
	})
	return out, err
}

func (r *moduleRepo) Update(_ context.Context, m *catalog.Module) error {
	return r.run(func(st *state) error {
		if _, ok := st.modules[m.ID]; !ok {
			return shared.ErrModuleNotFound
		}
		m.UpdatedAt = time.Now().UTC()
		st.modules[m.ID] = copyModule(m)
		return nil
	})
}

func (r *moduleRepo) Delete(_ context.Context, id string) error {
	return r.run(func(st *state) error {
		if _, ok := st.modules[id]; !ok {
			return shared.ErrModuleNotFound
		}
		st.deleteModule(id)
		return nil
	})
}

func (r *moduleRepo) ListByCourse(_ context.Context, courseID string) ([]*catalog.Module, error) {
	var out []*catalog.Module
	err := r.run(func(st *state) error {
		for _, m := range st.modules {
			if m.CourseID == courseID {
				out = append(out, copyModule(m))
			}
		}
		out = ordered(st, out, func(m *catalog.Module) string { return m.ID })
		sort.SliceStable(out, func(i, j int) bool { return out[i].Position < out[j].Position })
		return nil
	})
	return out, err
}

type lessonRepo struct{ run runner }

func (r *lessonRepo) Create(_ context.Context, l *catalog.Lesson) error {
	return r.run(func(st *state) error {
		if _, ok := st.modules[l.ModuleID]; !ok {
			return shared.ErrModuleNotFound
		}
		st.lessons[l.ID] = copyLesson(l)
		st.track(l.ID)
		return nil
	})
}

func (r *lessonRepo) GetByID(_ context.Context, id string) (*catalog.Lesson, error) {
	var out *catalog.Lesson
	err := r.run(func(st *state) error {
		l, ok := st.lessons[id]
		if !ok {
			return shared.ErrLessonNotFound
		}
		out = copyLesson(l)
		return nil
	})
	return out, err
}

func (r *lessonRepo) Update(_ context.Context, l *catalog.Lesson) error {
	return r.run(func(st *state) error {
		if _, ok := st.lessons[l.ID]; !ok {
			return shared.ErrLessonNotFound
		}
		l.UpdatedAt = time.Now().UTC()
		st.lessons[l.ID] = copyLesson(l)
		return nil
	})
}

func (r *lessonRepo) Delete(_ context.Context, id string) error {
	return r.run(func(st *state) error {
		if _, ok := st.lessons[id]; !ok {
			return shared.ErrLessonNotFound
		}
		st.drop(id)
		delete(st.lessons, id)
		return nil
	})
}

func (r *lessonRepo) ListByCourse(_ context.Context, courseID string) ([]*catalog.Lesson, error) {
	var out []*catalog.Lesson
	err := r.run(func(st *state) error {
		for _, l := range st.lessons {
			if m, ok := st.modules[l.ModuleID]; ok && m.CourseID == courseID {
				out = append(out, copyLesson(l))
			}
		}
		out = ordered(st, out, func(l *catalog.Lesson) string { return l.ID })
		return nil
	})
	return out, err
}
