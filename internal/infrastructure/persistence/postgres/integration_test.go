package postgres_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnforge/lms-ledger/internal/application/command"
	"github.com/learnforge/lms-ledger/internal/application/query"
	"github.com/learnforge/lms-ledger/internal/domain/enrollment"
	"github.com/learnforge/lms-ledger/internal/domain/identity"
	"github.com/learnforge/lms-ledger/internal/domain/shared"
	"github.com/learnforge/lms-ledger/internal/infrastructure/persistence/postgres"
)

// openTestStore connects to LEDGER_TEST_DATABASE_URL, migrates it and wipes
// every table. Tests using it must not run in parallel.
func openTestStore(t *testing.T) *postgres.Store {
	t.Helper()
	url := os.Getenv("LEDGER_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("LEDGER_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()

	conn, err := postgres.NewConnection(ctx, postgres.DefaultConfig(url))
	require.NoError(t, err)
	t.Cleanup(conn.Close)

	_, err = postgres.NewMigrator(conn).Migrate(ctx)
	require.NoError(t, err)
	_, err = conn.Exec(ctx, `TRUNCATE users, students, courses RESTART IDENTITY CASCADE`)
	require.NoError(t, err)

	return postgres.NewStore(conn, postgres.WithTxAttempts(10), postgres.WithTxTimeout(10*time.Second))
}

type ledgerEnv struct {
	ctx      context.Context
	store    *postgres.Store
	students *command.StudentHandler
	catalog  *command.CatalogHandler
	batches  *command.BatchHandler
	ledger   *command.LedgerHandler
	reader   *query.Reader
}

func newLedgerEnv(t *testing.T) *ledgerEnv {
	s := openTestStore(t)
	deps := command.Deps{Store: s}
	return &ledgerEnv{
		ctx:      context.Background(),
		store:    s,
		students: command.NewStudentHandler(deps),
		catalog:  command.NewCatalogHandler(deps),
		batches:  command.NewBatchHandler(deps),
		ledger:   command.NewLedgerHandler(deps),
		reader:   query.NewReader(query.Deps{Store: s}),
	}
}

func (e *ledgerEnv) newStudent(t *testing.T, n int) *identity.Student {
	t.Helper()
	s, err := e.students.CreateStudent(e.ctx, command.CreateStudentCommand{
		FirstName:    fmt.Sprintf("Student%d", n),
		Email:        fmt.Sprintf("student%d@example.com", n),
		MobileNumber: "9000000000",
	})
	require.NoError(t, err)
	return s
}

func TestPostgres_ConcurrentEnrollRespectsCapacity(t *testing.T) {
	e := newLedgerEnv(t)

	c, err := e.catalog.CreateCourse(e.ctx, command.CreateCourseCommand{Title: "Cloud", Status: "published"})
	require.NoError(t, err)
	b, err := e.batches.CreateBatch(e.ctx, command.CreateBatchCommand{
		CourseID:    c.ID,
		Name:        "Cloud evening",
		Code:        "CLD-01",
		StartDate:   time.Now().UTC().AddDate(0, 0, 7),
		Days:        []string{"tue", "thu"},
		TimeSlot:    "19:00-21:00",
		MaxCapacity: 3,
	})
	require.NoError(t, err)

	const workers = 10
	students := make([]*identity.Student, workers)
	for i := range students {
		students[i] = e.newStudent(t, i)
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
	)
	for _, s := range students {
		wg.Add(1)
		go func(s *identity.Student) {
			defer wg.Done()
			_, err := e.ledger.Enroll(e.ctx, command.EnrollCommand{StudentID: s.StudentID, CourseID: c.ID, BatchID: b.ID})
			if err == nil {
				mu.Lock()
				success++
				mu.Unlock()
				return
			}
			assert.True(t, errors.Is(err, shared.ErrBatchFull) || postgres.IsTransient(err), "unexpected error: %v", err)
		}(s)
	}
	wg.Wait()

	assert.Positive(t, success)
	assert.LessOrEqual(t, success, 3)

	audit, err := e.ledger.AuditSeats(e.ctx, b.ID)
	require.NoError(t, err)
	assert.True(t, audit.Consistent(), "stored %d, rows %d", audit.Stored, audit.SeatHolders)
	assert.Equal(t, success, audit.Stored)
}

func TestPostgres_DeleteStudentRacingEnroll(t *testing.T) {
	e := newLedgerEnv(t)

	c, err := e.catalog.CreateCourse(e.ctx, command.CreateCourseCommand{Title: "Data", Status: "published"})
	require.NoError(t, err)
	b, err := e.batches.CreateBatch(e.ctx, command.CreateBatchCommand{
		CourseID:    c.ID,
		Name:        "Data weekend",
		Code:        "DAT-01",
		StartDate:   time.Now().UTC().AddDate(0, 0, 7),
		Days:        []string{"sat"},
		MaxCapacity: 100,
	})
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		s := e.newStudent(t, 100+i)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := e.ledger.Enroll(e.ctx, command.EnrollCommand{StudentID: s.StudentID, CourseID: c.ID, BatchID: b.ID})
			if err != nil {
				assert.True(t, shared.IsNotFound(err) || postgres.IsTransient(err), "enroll: %v", err)
			}
		}()
		go func() {
			defer wg.Done()
			_, err := e.students.DeleteStudent(e.ctx, s.StudentID)
			if err != nil {
				assert.True(t, postgres.IsTransient(err), "delete: %v", err)
			}
		}()
		wg.Wait()
	}

	audit, err := e.ledger.AuditSeats(e.ctx, b.ID)
	require.NoError(t, err)
	assert.True(t, audit.Consistent(), "stored %d, rows %d", audit.Stored, audit.SeatHolders)
}

func TestPostgres_ActiveUniquenessAndCascade(t *testing.T) {
	e := newLedgerEnv(t)

	c, err := e.catalog.CreateCourse(e.ctx, command.CreateCourseCommand{Title: "Security", Status: "published"})
	require.NoError(t, err)
	mk := func(code string) string {
		b, err := e.batches.CreateBatch(e.ctx, command.CreateBatchCommand{
			CourseID:  c.ID,
			Name:      code,
			Code:      code,
			StartDate: time.Now().UTC().AddDate(0, 0, 7),
			Days:      []string{"sat"},
			TimeSlot:  "10:00-13:00",
		})
		require.NoError(t, err)
		return b.ID
	}
	b1, b2 := mk("SEC-01"), mk("SEC-02")
	s := e.newStudent(t, 1)

	res, err := e.ledger.Enroll(e.ctx, command.EnrollCommand{StudentID: s.StudentID, CourseID: c.ID, BatchID: b1})
	require.NoError(t, err)
	assert.Regexp(t, `^ENR-\d{8}-[0-9A-F]{8}$`, res.Enrollment.Number)

	_, err = e.ledger.Enroll(e.ctx, command.EnrollCommand{StudentID: s.StudentID, CourseID: c.ID, BatchID: b2})
	assert.ErrorIs(t, err, shared.ErrEnrollmentDuplicate)

	moved, err := e.ledger.Transfer(e.ctx, command.TransferCommand{EnrollmentID: res.Enrollment.ID, BatchID: b2})
	require.NoError(t, err)
	assert.Equal(t, b2, moved.BatchID)

	page, err := e.reader.ListEnrollments(e.ctx, query.ListEnrollmentsQuery{CourseID: c.ID, Status: string(enrollment.StatusActive)})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)

	require.NoError(t, e.catalog.DeleteCourse(e.ctx, c.ID))
	_, err = e.reader.GetBatch(e.ctx, b2)
	assert.ErrorIs(t, err, shared.ErrBatchNotFound)
	_, err = e.reader.GetEnrollment(e.ctx, res.Enrollment.ID)
	assert.ErrorIs(t, err, shared.ErrEnrollmentNotFound)

	still, err := e.reader.GetStudent(e.ctx, s.StudentID)
	require.NoError(t, err)
	assert.Equal(t, s.Email, still.Email)
}

func TestPostgres_SearchStudents(t *testing.T) {
	e := newLedgerEnv(t)
	for _, name := range []string{"Asha", "Ashok", "Bilal"} {
		_, err := e.students.CreateStudent(e.ctx, command.CreateStudentCommand{
			FirstName: name, Email: name + "@example.com", MobileNumber: "1",
		})
		require.NoError(t, err)
	}

	page, err := e.reader.SearchStudents(e.ctx, "ash", shared.PageRequest{})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)

	page, err = e.reader.SearchStudents(e.ctx, "BIL", shared.PageRequest{})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)
}

func TestSeed_Idempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	first, err := postgres.Seed(ctx, s)
	require.NoError(t, err)
	assert.False(t, first.Skipped)
	assert.NotEmpty(t, first.BatchID)

	second, err := postgres.Seed(ctx, s)
	require.NoError(t, err)
	assert.True(t, second.Skipped)
}

func TestPostgres_ConnectionHealth(t *testing.T) {
	url := os.Getenv("LEDGER_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("LEDGER_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	cfg := postgres.DefaultConfig(url)
	cfg.MaxConns = 4

	conn, err := postgres.NewConnection(ctx, cfg)
	require.NoError(t, err)

	h, err := conn.Health(ctx)
	require.NoError(t, err)
	assert.True(t, h.Healthy)
	assert.Equal(t, int32(4), h.MaxConns)
	assert.Positive(t, h.TotalConns)
	assert.False(t, h.CheckedAt.IsZero())

	conn.Close()
	conn.Close()
	_, err = conn.Health(ctx)
	assert.ErrorIs(t, err, postgres.ErrConnectionClosed)
}
