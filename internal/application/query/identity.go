package query

import (
	"context"
	"fmt"
	"strings"

	"github.com/learnforge/lms-ledger/internal/domain/identity"
	"github.com/learnforge/lms-ledger/internal/domain/shared"
)

// ListUsersQuery filters users. Search matches email or name.
type ListUsersQuery struct {
	shared.PageRequest
	Search string
	Role   string
	Status string
}

// ListUsers returns one page of users in creation order.
func (r *Reader) ListUsers(ctx context.Context, q ListUsersQuery) (Page[*identity.User], error) {
	req := q.PageRequest.Normalize()
	filter := identity.UserFilter{PageRequest: req, Search: strings.TrimSpace(q.Search)}
	if q.Role != "" {
		role, ok := identity.ParseRole(q.Role)
		if !ok {
			return Page[*identity.User]{}, shared.Validationf("user", "List", "unknown role %q", q.Role)
		}
		filter.Role = role
	}
	if q.Status != "" {
		st := identity.UserStatus(q.Status)
		if !st.IsValid() {
			return Page[*identity.User]{}, shared.Validationf("user", "List", "unknown status %q", q.Status)
		}
		filter.Status = st
	}
	users, total, err := r.repos.Users.List(ctx, filter)
	if err != nil {
		return Page[*identity.User]{}, fmt.Errorf("list_users: %w", err)
	}
	return NewPage(users, total, req), nil
}

// GetUser returns one user.
func (r *Reader) GetUser(ctx context.Context, userID string) (*identity.User, error) {
	return r.repos.Users.GetByID(ctx, userID)
}

// ListStudentsQuery filters students by substring search and status.
type ListStudentsQuery struct {
	shared.PageRequest
	Search string
	Status string
}

// ListStudents returns one page of students.
func (r *Reader) ListStudents(ctx context.Context, q ListStudentsQuery) (Page[*identity.Student], error) {
	req := q.PageRequest.Normalize()
	filter := identity.StudentFilter{PageRequest: req, Search: strings.TrimSpace(q.Search)}
	if q.Status != "" {
		st := identity.StudentStatus(q.Status)
		if !st.IsValid() {
			return Page[*identity.Student]{}, shared.Validationf("student", "List", "unknown current status %q", q.Status)
		}
		filter.Status = st
	}
	students, total, err := r.repos.Students.List(ctx, filter)
	if err != nil {
		return Page[*identity.Student]{}, fmt.Errorf("list_students: %w", err)
	}
	return NewPage(students, total, req), nil
}

// SearchStudents runs the full-text search over names and email. Every
// query word must match the start of a document word.
func (r *Reader) SearchStudents(ctx context.Context, text string, page shared.PageRequest) (Page[*identity.Student], error) {
	req := page.Normalize()
	text = strings.TrimSpace(text)
	if text == "" {
		return NewPage[*identity.Student](nil, 0, req), nil
	}
	students, total, err := r.repos.Students.Search(ctx, text, req)
	if err != nil {
		return Page[*identity.Student]{}, fmt.Errorf("search_students: %w", err)
	}
	return NewPage(students, total, req), nil
}

// GetStudent returns one student.
func (r *Reader) GetStudent(ctx context.Context, studentID string) (*identity.Student, error) {
	return r.repos.Students.GetByID(ctx, studentID)
}
