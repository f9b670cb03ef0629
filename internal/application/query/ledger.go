package query

import (
	"context"
	"fmt"
	"strings"

	"github.com/learnforge/lms-ledger/internal/domain/batch"
	"github.com/learnforge/lms-ledger/internal/domain/enrollment"
	"github.com/learnforge/lms-ledger/internal/domain/identity"
	"github.com/learnforge/lms-ledger/internal/domain/shared"
)

// ListBatchesQuery filters batches.
type ListBatchesQuery struct {
	shared.PageRequest
	CourseID string
	Status   string
	Search   string
}

// BatchView is a batch with the title of its course.
type BatchView struct {
	*batch.Batch
	CourseTitle string `json:"course_title"`
	SeatsLeft   int    `json:"seats_left"`
}

// ListBatches returns one page of batches joined with their course titles.
func (r *Reader) ListBatches(ctx context.Context, q ListBatchesQuery) (Page[BatchView], error) {
	req := q.PageRequest.Normalize()
	filter := batch.Filter{PageRequest: req, CourseID: q.CourseID, Search: strings.TrimSpace(q.Search)}
	if q.Status != "" {
		st := batch.Status(strings.ToLower(q.Status))
		if !st.IsValid() {
			return Page[BatchView]{}, shared.Validationf("batch", "List", "unknown batch status %q", q.Status)
		}
		filter.Status = st
	}
	batches, total, err := r.repos.Batches.List(ctx, filter)
	if err != nil {
		return Page[BatchView]{}, fmt.Errorf("list_batches: %w", err)
	}

	titles := make(map[string]string)
	views := make([]BatchView, 0, len(batches))
	for _, b := range batches {
		title, ok := titles[b.CourseID]
		if !ok {
			c, err := r.repos.Courses.GetByID(ctx, b.CourseID)
			if err != nil && !shared.IsNotFound(err) {
				return Page[BatchView]{}, fmt.Errorf("list_batches: %w", err)
			}
			if c != nil {
				title = c.Title
			}
			titles[b.CourseID] = title
		}
		views = append(views, BatchView{Batch: b, CourseTitle: title, SeatsLeft: b.SeatsLeft()})
	}
	return NewPage(views, total, req), nil
}

// GetBatch returns one batch.
func (r *Reader) GetBatch(ctx context.Context, batchID string) (*batch.Batch, error) {
	return r.repos.Batches.GetByID(ctx, batchID)
}

// RosterEntry is one enrollment of a batch with its student.
type RosterEntry struct {
	Enrollment *enrollment.Enrollment `json:"enrollment"`
	Student    *identity.Student      `json:"student"`
}

// BatchRoster lists the enrollments of a batch with their students. An
// empty status lists every row.
func (r *Reader) BatchRoster(ctx context.Context, batchID, status string, page shared.PageRequest) (Page[RosterEntry], error) {
	req := page.Normalize()
	if _, err := r.repos.Batches.GetByID(ctx, batchID); err != nil {
		return Page[RosterEntry]{}, err
	}
	filter := enrollment.Filter{PageRequest: req, BatchID: batchID}
	if status != "" {
		st := enrollment.Status(status)
		if !st.IsValid() {
			return Page[RosterEntry]{}, shared.Validationf("batch", "Roster", "unknown enrollment status %q", status)
		}
		filter.Status = st
	}
	rows, total, err := r.repos.Enrollments.List(ctx, filter)
	if err != nil {
		return Page[RosterEntry]{}, fmt.Errorf("batch_roster: %w", err)
	}
	entries := make([]RosterEntry, 0, len(rows))
	for _, e := range rows {
		s, err := r.repos.Students.GetByID(ctx, e.StudentID)
		if err != nil {
			return Page[RosterEntry]{}, fmt.Errorf("batch_roster: student %s: %w", e.StudentID, err)
		}
		entries = append(entries, RosterEntry{Enrollment: e, Student: s})
	}
	return NewPage(entries, total, req), nil
}

// GetEnrollment returns one ledger row.
func (r *Reader) GetEnrollment(ctx context.Context, enrollmentID string) (*enrollment.Enrollment, error) {
	if enrollmentID == "" {
		return nil, shared.Validationf("enrollment", "Get", "enrollment id is required")
	}
	return r.repos.Enrollments.GetByID(ctx, enrollmentID)
}

// ListEnrollmentsQuery filters ledger rows. Empty fields match everything.
type ListEnrollmentsQuery struct {
	shared.PageRequest
	StudentID string
	CourseID  string
	BatchID   string
	Status    string
}

// ListEnrollments returns one page of ledger rows, oldest first.
func (r *Reader) ListEnrollments(ctx context.Context, q ListEnrollmentsQuery) (Page[*enrollment.Enrollment], error) {
	req := q.PageRequest.Normalize()
	filter := enrollment.Filter{
		PageRequest: req,
		StudentID:   q.StudentID,
		CourseID:    q.CourseID,
		BatchID:     q.BatchID,
	}
	if q.Status != "" {
		st := enrollment.Status(q.Status)
		if !st.IsValid() {
			return Page[*enrollment.Enrollment]{}, shared.Validationf("enrollment", "List", "unknown enrollment status %q", q.Status)
		}
		filter.Status = st
	}
	rows, total, err := r.repos.Enrollments.List(ctx, filter)
	if err != nil {
		return Page[*enrollment.Enrollment]{}, fmt.Errorf("list_enrollments: %w", err)
	}
	return NewPage(rows, total, req), nil
}
