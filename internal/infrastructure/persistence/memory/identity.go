package memory

import (
	"context"
	"strings"
	"time"

	"github.com/learnforge/lms-ledger/internal/domain/identity"
	"github.com/learnforge/lms-ledger/internal/domain/shared"
)

type userRepo struct{ run runner }

func (r *userRepo) Create(_ context.Context, u *identity.User) error {
	return r.run(func(st *state) error {
		for _, other := range st.users {
			if other.Email == u.Email {
				return shared.ErrUserAlreadyExists
			}
		}
		if _, ok := st.users[u.UserID]; ok {
			return shared.ErrUserIDCollision
		}
		st.users[u.UserID] = copyUser(u)
		st.track(u.UserID)
		return nil
	})
}

func (r *userRepo) GetByID(_ context.Context, id string) (*identity.User, error) {
	var out *identity.User
	err := r.run(func(st *state) error {
		u, ok := st.users[id]
		if !ok {
			return shared.ErrUserNotFound
		}
		out = copyUser(u)
		return nil
	})
	return out, err
}

func (r *userRepo) GetByEmail(_ context.Context, email string) (*identity.User, error) {
	var out *identity.User
	err := r.run(func(st *state) error {
		for _, u := range st.users {
			if u.Email == email {
				out = copyUser(u)
				return nil
			}
		}
		return shared.ErrUserNotFound
	})
	return out, err
}

func (r *userRepo) Update(_ context.Context, u *identity.User) error {
	return r.run(func(st *state) error {
		if _, ok := st.users[u.UserID]; !ok {
			return shared.ErrUserNotFound
		}
		for id, other := range st.users {
			if id != u.UserID && other.Email == u.Email {
				return shared.ErrUserAlreadyExists
			}
		}
		u.UpdatedAt = time.Now().UTC()
		st.users[u.UserID] = copyUser(u)
		return nil
	})
}

func (r *userRepo) List(_ context.Context, f identity.UserFilter) ([]*identity.User, int, error) {
	var (
		page  []*identity.User
		total int
	)
	err := r.run(func(st *state) error {
		needle := strings.ToLower(strings.TrimSpace(f.Search))
		var all []*identity.User
		for _, u := range st.users {
			if f.Role != "" && u.Role != f.Role {
				continue
			}
			if f.Status != "" && u.Status != f.Status {
				continue
			}
			if needle != "" && !containsFold(needle, u.Email, u.FullName) {
				continue
			}
			all = append(all, copyUser(u))
		}
		all = ordered(st, all, func(u *identity.User) string { return u.UserID })
		page, total = paginate(all, f.PageRequest)
		return nil
	})
	return page, total, err
}

type studentRepo struct{ run runner }

func (r *studentRepo) Create(_ context.Context, s *identity.Student) error {
	return r.run(func(st *state) error {
		for _, other := range st.students {
			if other.Email == s.Email {
				return shared.ErrStudentAlreadyExists
			}
		}
		if _, ok := st.students[s.StudentID]; ok {
			return shared.ErrStudentIDCollision
		}
		st.students[s.StudentID] = copyStudent(s)
		st.track(s.StudentID)
		return nil
	})
}

func (r *studentRepo) GetByID(_ context.Context, id string) (*identity.Student, error) {
	var out *identity.Student
	err := r.run(func(st *state) error {
		s, ok := st.students[id]
		if !ok {
			return shared.ErrStudentNotFound
		}
		out = copyStudent(s)
		return nil
	})
	return out, err
}

// GetForUpdate needs no extra locking: transactions are already serialized.
func (r *studentRepo) GetForUpdate(ctx context.Context, id string) (*identity.Student, error) {
	return r.GetByID(ctx, id)
}

func (r *studentRepo) GetByEmail(_ context.Context, email string) (*identity.Student, error) {
	var out *identity.Student
	err := r.run(func(st *state) error {
		for _, s := range st.students {
			if s.Email == email {
				out = copyStudent(s)
				return nil
			}
		}
		return shared.ErrStudentNotFound
	})
	return out, err
}

func (r *studentRepo) Update(_ context.Context, s *identity.Student) error {
	return r.run(func(st *state) error {
		if _, ok := st.students[s.StudentID]; !ok {
			return shared.ErrStudentNotFound
		}
		for id, other := range st.students {
			if id != s.StudentID && other.Email == s.Email {
				return shared.ErrStudentAlreadyExists
			}
		}
		s.UpdatedAt = time.Now().UTC()
		st.students[s.StudentID] = copyStudent(s)
		return nil
	})
}

func (r *studentRepo) Delete(_ context.Context, id string) error {
	return r.run(func(st *state) error {
		if _, ok := st.students[id]; !ok {
			return shared.ErrStudentNotFound
		}
		st.deleteStudent(id)
		return nil
	})
}

func (r *studentRepo) List(_ context.Context, f identity.StudentFilter) ([]*identity.Student, int, error) {
	return r.filter(f.PageRequest, func(s *identity.Student) bool {
		if f.Status != "" && s.CurrentStatus != f.Status {
			return false
		}
		needle := strings.ToLower(strings.TrimSpace(f.Search))
		return needle == "" || containsFold(needle, s.Email, s.FirstName, s.LastName, s.MobileNumber)
	})
}

func (r *studentRepo) Search(_ context.Context, query string, page shared.PageRequest) ([]*identity.Student, int, error) {
	return r.filter(page, func(s *identity.Student) bool { return s.MatchesSearch(query) })
}

func (r *studentRepo) filter(req shared.PageRequest, keep func(*identity.Student) bool) ([]*identity.Student, int, error) {
	var (
		page  []*identity.Student
		total int
	)
	err := r.run(func(st *state) error {
		var all []*identity.Student
		for _, s := range st.students {
			if keep(s) {
				all = append(all, copyStudent(s))
			}
		}
		all = ordered(st, all, func(s *identity.Student) string { return s.StudentID })
		page, total = paginate(all, req)
		return nil
	})
	return page, total, err
}

// containsFold reports whether any of fields contains the lower-cased needle.
func containsFold(needle string, fields ...string) bool {
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), needle) {
			return true
		}
	}
	return false
}
