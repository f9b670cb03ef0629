package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnforge/lms-ledger/internal/application/command"
	"github.com/learnforge/lms-ledger/internal/application/query"
	"github.com/learnforge/lms-ledger/internal/infrastructure/persistence/memory"
)

func TestSeatAuditJob(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	deps := command.Deps{Store: store}
	catalog := command.NewCatalogHandler(deps)
	batches := command.NewBatchHandler(deps)
	students := command.NewStudentHandler(deps)
	ledger := command.NewLedgerHandler(deps)
	reader := query.NewReader(query.Deps{Store: store})

	c, err := catalog.CreateCourse(ctx, command.CreateCourseCommand{Title: "Go", Status: "published"})
	require.NoError(t, err)
	var batchIDs []string
	for _, code := range []string{"GO-1", "GO-2"} {
		b, err := batches.CreateBatch(ctx, command.CreateBatchCommand{
			CourseID: c.ID, Name: code, Code: code,
			StartDate: time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC),
			Days:      []string{"mon"},
		})
		require.NoError(t, err)
		batchIDs = append(batchIDs, b.ID)
	}
	s, err := students.CreateStudent(ctx, command.CreateStudentCommand{FirstName: "Asha", Email: "asha@example.com", MobileNumber: "1"})
	require.NoError(t, err)
	_, err = ledger.Enroll(ctx, command.EnrollCommand{StudentID: s.StudentID, CourseID: c.ID, BatchID: batchIDs[0]})
	require.NoError(t, err)

	job := NewSeatAuditJob(reader, ledger, nil)
	report, err := job.Audit(ctx)
	require.NoError(t, err)
	assert.Len(t, report.Rows, 2)
	assert.Zero(t, report.Drift)
	assert.NoError(t, job.Run(ctx))

	// Bypass the ledger to simulate drift.
	_, err = store.Repositories().Batches.AdjustEnrollment(ctx, batchIDs[1], 2)
	require.NoError(t, err)

	report, err = job.Audit(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Drift)
	assert.ErrorIs(t, job.Run(ctx), ErrSeatDrift)
}

type fakeBoard struct {
	seats map[string]int
	err   error
}

func (b fakeBoard) Snapshot(context.Context) (map[string]int, error) { return b.seats, b.err }

func TestSeatAuditJob_ComparesBoard(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	deps := command.Deps{Store: store}
	batches := command.NewBatchHandler(deps)
	ledger := command.NewLedgerHandler(deps)
	reader := query.NewReader(query.Deps{Store: store})

	c, err := command.NewCatalogHandler(deps).CreateCourse(ctx, command.CreateCourseCommand{Title: "Go", Status: "published"})
	require.NoError(t, err)
	var ids []string
	for _, code := range []string{"GO-1", "GO-2", "GO-3"} {
		b, err := batches.CreateBatch(ctx, command.CreateBatchCommand{
			CourseID: c.ID, Name: code, Code: code,
			StartDate: time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC),
			Days:      []string{"mon"},
		})
		require.NoError(t, err)
		ids = append(ids, b.ID)
	}
	s, err := command.NewStudentHandler(deps).CreateStudent(ctx, command.CreateStudentCommand{FirstName: "Asha", Email: "asha@example.com", MobileNumber: "1"})
	require.NoError(t, err)
	_, err = ledger.Enroll(ctx, command.EnrollCommand{StudentID: s.StudentID, CourseID: c.ID, BatchID: ids[0]})
	require.NoError(t, err)

	// GO-1 is current, GO-2 lags behind, GO-3 never made it to the board.
	job := NewSeatAuditJob(reader, ledger, nil).WithBoard(fakeBoard{seats: map[string]int{ids[0]: 1, ids[1]: 3}})
	report, err := job.Audit(ctx)
	require.NoError(t, err)
	require.Len(t, report.Rows, 3)
	assert.Zero(t, report.Drift)
	assert.Equal(t, 1, report.Stale)

	rows := map[string]SeatRow{}
	for _, r := range report.Rows {
		rows[r.BatchID] = r
	}
	assert.True(t, rows[ids[0]].OnBoard)
	assert.False(t, rows[ids[0]].BoardStale())
	assert.Equal(t, 3, rows[ids[1]].Board)
	assert.True(t, rows[ids[1]].BoardStale())
	assert.False(t, rows[ids[2]].OnBoard)
	assert.NoError(t, job.Run(ctx), "a stale board is not drift")

	// An unreadable board degrades to a plain audit.
	report, err = NewSeatAuditJob(reader, ledger, nil).WithBoard(fakeBoard{err: errors.New("down")}).Audit(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.Stale)
	for _, r := range report.Rows {
		assert.False(t, r.OnBoard)
	}
}
