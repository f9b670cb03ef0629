package command

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/learnforge/lms-ledger/internal/domain/batch"
	"github.com/learnforge/lms-ledger/internal/domain/catalog"
	"github.com/learnforge/lms-ledger/internal/domain/identity"
	"github.com/learnforge/lms-ledger/internal/domain/shared"
	"github.com/learnforge/lms-ledger/internal/infrastructure/persistence/memory"
)

// recorder collects published events.
type recorder struct {
	mu     sync.Mutex
	events []shared.Event
}

func (r *recorder) Publish(ev shared.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) types() []shared.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]shared.EventType, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.EventType())
	}
	return out
}

func (r *recorder) reset() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}

// flags is a mutable flag set; unknown names are on.
type flags map[string]bool

func (f flags) IsEnabled(name string) bool {
	on, ok := f[name]
	return !ok || on
}

// plainHasher keeps tests fast; bcrypt is covered in the security package.
type plainHasher struct{}

func (plainHasher) Hash(p string) (string, error) { return "plain:" + p, nil }
func (plainHasher) Compare(h, p string) error {
	if h != "plain:"+p {
		return fmt.Errorf("mismatch")
	}
	return nil
}

type fixture struct {
	ctx      context.Context
	store    *memory.Store
	events   *recorder
	flags    flags
	users    *UserHandler
	students *StudentHandler
	catalog  *CatalogHandler
	batches  *BatchHandler
	ledger   *LedgerHandler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		ctx:    context.Background(),
		store:  memory.New(),
		events: &recorder{},
		flags:  flags{},
	}
	deps := Deps{Store: f.store, Publisher: f.events, Flags: f.flags}
	f.users = NewUserHandler(deps, plainHasher{})
	f.students = NewStudentHandler(deps)
	f.catalog = NewCatalogHandler(deps)
	f.batches = NewBatchHandler(deps)
	f.ledger = NewLedgerHandler(deps)
	return f
}

func (f *fixture) student(t *testing.T, first string) *identity.Student {
	t.Helper()
	s, err := f.students.CreateStudent(f.ctx, CreateStudentCommand{
		FirstName:    first,
		LastName:     "Tester",
		Email:        strings.ToLower(first) + "@example.com",
		MobileNumber: "9000000000",
	})
	require.NoError(t, err)
	return s
}

func (f *fixture) course(t *testing.T, title string) *catalog.Course {
	t.Helper()
	c, err := f.catalog.CreateCourse(f.ctx, CreateCourseCommand{Title: title, Status: "published"})
	require.NoError(t, err)
	return c
}

func (f *fixture) batch(t *testing.T, courseID, code string, capacity int) *batch.Batch {
	t.Helper()
	b, err := f.batches.CreateBatch(f.ctx, CreateBatchCommand{
		CourseID:    courseID,
		Name:        code + " cohort",
		Code:        code,
		StartDate:   time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC),
		Days:        []string{"mon", "wed"},
		TimeSlot:    "18:00-20:00",
		MaxCapacity: capacity,
	})
	require.NoError(t, err)
	return b
}

// seats reads the committed seat count of a batch.
func (f *fixture) seats(t *testing.T, batchID string) int {
	t.Helper()
	b, err := f.store.Repositories().Batches.GetByID(f.ctx, batchID)
	require.NoError(t, err)
	return b.CurrentEnrollment
}

// consistent asserts the seat count equals the seat-holding rows.
func (f *fixture) consistent(t *testing.T, batchID string) {
	t.Helper()
	audit, err := f.ledger.AuditSeats(f.ctx, batchID)
	require.NoError(t, err)
	require.True(t, audit.Consistent(), "batch %s stored %d, rows %d", batchID, audit.Stored, audit.SeatHolders)
}

func (f *fixture) enroll(t *testing.T, s *identity.Student, c *catalog.Course, b *batch.Batch) *EnrollResult {
	t.Helper()
	res, err := f.ledger.Enroll(f.ctx, EnrollCommand{StudentID: s.StudentID, CourseID: c.ID, BatchID: b.ID})
	require.NoError(t, err)
	return res
}
