package memory

import (
	"context"
	"strings"
	"time"

	"github.com/learnforge/lms-ledger/internal/domain/batch"
	"github.com/learnforge/lms-ledger/internal/domain/enrollment"
	"github.com/learnforge/lms-ledger/internal/domain/shared"
)

type batchRepo struct{ run runner }

func (r *batchRepo) Create(_ context.Context, b *batch.Batch) error {
	return r.run(func(st *state) error {
		if _, ok := st.courses[b.CourseID]; !ok {
			return shared.ErrCourseNotFound
		}
		if b.InstructorID != nil {
			if _, ok := st.users[*b.InstructorID]; !ok {
				return shared.ErrInstructorNotFound
			}
		}
		for _, other := range st.batches {
			if other.Code == b.Code {
				return shared.ErrBatchCodeTaken
			}
		}
		if b.CurrentEnrollment < 0 {
			return shared.ErrBatchSeatUnderflow
		}
		st.batches[b.ID] = copyBatch(b)
		st.track(b.ID)
		return nil
	})
}

func (r *batchRepo) GetByID(_ context.Context, id string) (*batch.Batch, error) {
	var out *batch.Batch
	err := r.run(func(st *state) error {
		b, ok := st.batches[id]
		if !ok {
			return shared.ErrBatchNotFound
		}
		out = copyBatch(b)
		return nil
	})
	return out, err
}

// GetForUpdate needs no extra locking: transactions are already serialized.
func (r *batchRepo) GetForUpdate(ctx context.Context, id string) (*batch.Batch, error) {
	return r.GetByID(ctx, id)
}

func (r *batchRepo) GetByCode(_ context.Context, code string) (*batch.Batch, error) {
	var out *batch.Batch
	err := r.run(func(st *state) error {
		for _, b := range st.batches {
			if b.Code == code {
				out = copyBatch(b)
				return nil
			}
		}
		return shared.ErrBatchNotFound
	})
	return out, err
}

func (r *batchRepo) Update(_ context.Context, b *batch.Batch) error {
	return r.run(func(st *state) error {
		cur, ok := st.batches[b.ID]
		if !ok {
			return shared.ErrBatchNotFound
		}
		if b.InstructorID != nil {
			if _, ok := st.users[*b.InstructorID]; !ok {
				return shared.ErrInstructorNotFound
			}
		}
		for id, other := range st.batches {
			if id != b.ID && other.Code == b.Code {
				return shared.ErrBatchCodeTaken
			}
		}
		next := copyBatch(b)
		next.CourseID = cur.CourseID
		next.CurrentEnrollment = cur.CurrentEnrollment
		next.CreatedAt = cur.CreatedAt
		next.UpdatedAt = time.Now().UTC()
		st.batches[b.ID] = next
		b.CurrentEnrollment = next.CurrentEnrollment
		b.UpdatedAt = next.UpdatedAt
		return nil
	})
}

func (r *batchRepo) AdjustEnrollment(_ context.Context, id string, delta int) (int, error) {
	var current int
	err := r.run(func(st *state) error {
		b, ok := st.batches[id]
		if !ok {
			return shared.ErrBatchVanished
		}
		if b.CurrentEnrollment+delta < 0 {
			return shared.ErrBatchSeatUnderflow
		}
		b.CurrentEnrollment += delta
		b.UpdatedAt = time.Now().UTC()
		current = b.CurrentEnrollment
		return nil
	})
	return current, err
}

func (r *batchRepo) Delete(_ context.Context, id string) error {
	return r.run(func(st *state) error {
		if _, ok := st.batches[id]; !ok {
			return shared.ErrBatchNotFound
		}
		st.deleteBatch(id)
		return nil
	})
}

func (r *batchRepo) List(_ context.Context, f batch.Filter) ([]*batch.Batch, int, error) {
	var (
		page  []*batch.Batch
		total int
	)
	err := r.run(func(st *state) error {
		needle := strings.ToLower(strings.TrimSpace(f.Search))
		var all []*batch.Batch
		for _, b := range st.batches {
			if f.CourseID != "" && b.CourseID != f.CourseID {
				continue
			}
			if f.Status != "" && b.Status != f.Status {
				continue
			}
			if needle != "" && !containsFold(needle, b.Name, b.Code) {
				continue
			}
			all = append(all, copyBatch(b))
		}
		all = ordered(st, all, func(b *batch.Batch) string { return b.ID })
		page, total = paginate(all, f.PageRequest)
		return nil
	})
	return page, total, err
}

type enrollmentRepo struct{ run runner }

func (r *enrollmentRepo) Insert(_ context.Context, e *enrollment.Enrollment) error {
	return r.run(func(st *state) error {
		if _, ok := st.students[e.StudentID]; !ok {
			return shared.ErrStudentNotFound
		}
		if _, ok := st.courses[e.CourseID]; !ok {
			return shared.ErrCourseNotFound
		}
		if _, ok := st.batches[e.BatchID]; !ok {
			return shared.ErrBatchNotFound
		}
		if _, ok := st.enrollments[e.ID]; ok {
			return shared.NewDomainError("enrollment", "Insert", shared.ErrAlreadyExists, "enrollment id already used")
		}
		for _, other := range st.enrollments {
			if other.Number == e.Number {
				return shared.ErrNumberCollision
			}
			if e.Status == enrollment.StatusActive && other.Status == enrollment.StatusActive &&
				other.StudentID == e.StudentID && other.CourseID == e.CourseID {
				return shared.ErrEnrollmentDuplicate
			}
		}
		if e.Progress < 0 || e.Progress > enrollment.MaxProgress {
			return shared.ErrProgressOutOfRange
		}
		st.enrollments[e.ID] = e.Clone()
		st.track(e.ID)
		return nil
	})
}

func (r *enrollmentRepo) Delete(_ context.Context, id string) error {
	return r.run(func(st *state) error {
		if _, ok := st.enrollments[id]; !ok {
			return shared.ErrEnrollmentNotFound
		}
		st.drop(id)
		delete(st.enrollments, id)
		return nil
	})
}

func (r *enrollmentRepo) Update(_ context.Context, e *enrollment.Enrollment) error {
	return r.run(func(st *state) error {
		cur, ok := st.enrollments[e.ID]
		if !ok {
			return shared.ErrEnrollmentNotFound
		}
		if e.Progress < 0 || e.Progress > enrollment.MaxProgress {
			return shared.ErrProgressOutOfRange
		}
		if e.Status == enrollment.StatusActive && cur.Status != enrollment.StatusActive {
			for id, other := range st.enrollments {
				if id != e.ID && other.Status == enrollment.StatusActive &&
					other.StudentID == cur.StudentID && other.CourseID == cur.CourseID {
					return shared.ErrEnrollmentDuplicate
				}
			}
		}
		cur.Status = e.Status
		cur.Progress = e.Progress
		cur.CompletionDate = nil
		if e.CompletionDate != nil {
			d := *e.CompletionDate
			cur.CompletionDate = &d
		}
		cur.UpdatedAt = time.Now().UTC()
		e.UpdatedAt = cur.UpdatedAt
		return nil
	})
}

func (r *enrollmentRepo) GetByID(_ context.Context, id string) (*enrollment.Enrollment, error) {
	var out *enrollment.Enrollment
	err := r.run(func(st *state) error {
		e, ok := st.enrollments[id]
		if !ok {
			return shared.ErrEnrollmentNotFound
		}
		out = e.Clone()
		return nil
	})
	return out, err
}

func (r *enrollmentRepo) GetForUpdate(ctx context.Context, id string) (*enrollment.Enrollment, error) {
	return r.GetByID(ctx, id)
}

func (r *enrollmentRepo) ExistsActive(_ context.Context, studentID, courseID string) (bool, error) {
	found := false
	err := r.run(func(st *state) error {
		for _, e := range st.enrollments {
			if e.StudentID == studentID && e.CourseID == courseID && e.Status == enrollment.StatusActive {
				found = true
				return nil
			}
		}
		return nil
	})
	return found, err
}

func (r *enrollmentRepo) ListByStudent(_ context.Context, studentID string) ([]*enrollment.Enrollment, error) {
	var out []*enrollment.Enrollment
	err := r.run(func(st *state) error {
		for _, e := range st.enrollments {
			if e.StudentID == studentID {
				out = append(out, e.Clone())
			}
		}
		out = ordered(st, out, func(e *enrollment.Enrollment) string { return e.ID })
		return nil
	})
	return out, err
}

func (r *enrollmentRepo) CountSeatHolders(_ context.Context, batchID string) (int, error) {
	n := 0
	err := r.run(func(st *state) error {
		for _, e := range st.enrollments {
			if e.BatchID == batchID && e.Status.HoldsSeat() {
				n++
			}
		}
		return nil
	})
	return n, err
}

func (r *enrollmentRepo) List(_ context.Context, f enrollment.Filter) ([]*enrollment.Enrollment, int, error) {
	var (
		page  []*enrollment.Enrollment
		total int
	)
	err := r.run(func(st *state) error {
		var all []*enrollment.Enrollment
		for _, e := range st.enrollments {
			if f.StudentID != "" && e.StudentID != f.StudentID {
				continue
			}
			if f.CourseID != "" && e.CourseID != f.CourseID {
				continue
			}
			if f.BatchID != "" && e.BatchID != f.BatchID {
				continue
			}
			if f.Status != "" && e.Status != f.Status {
				continue
			}
			all = append(all, e.Clone())
		}
		all = ordered(st, all, func(e *enrollment.Enrollment) string { return e.ID })
		page, total = paginate(all, f.PageRequest)
		return nil
	})
	return page, total, err
}
