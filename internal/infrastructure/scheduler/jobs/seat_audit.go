// Package jobs holds the ledger's scheduled maintenance jobs.
package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/learnforge/lms-ledger/internal/application/command"
	"github.com/learnforge/lms-ledger/internal/application/query"
	"github.com/learnforge/lms-ledger/internal/domain/shared"
	"github.com/learnforge/lms-ledger/pkg/logger"
)

// ErrSeatDrift is returned by Run when at least one batch drifted.
var ErrSeatDrift = errors.New("seat count drift detected")

// BatchLister pages through batches.
type BatchLister interface {
	ListBatches(ctx context.Context, q query.ListBatchesQuery) (query.Page[query.BatchView], error)
}

// SeatAuditor compares one batch's stored count with its rows.
type SeatAuditor interface {
	AuditSeats(ctx context.Context, batchID string) (command.SeatAudit, error)
}

// SeatBoard is the live seat display fed by ledger events.
type SeatBoard interface {
	Snapshot(ctx context.Context) (map[string]int, error)
}

// SeatRow is the audit of one batch. Board is the count the seat board
// shows, valid when OnBoard is set.
type SeatRow struct {
	command.SeatAudit
	Code    string
	Board   int
	OnBoard bool
}

// BoardStale reports whether the board shows a different count than the
// batch row. The board catches up once in-flight events land.
func (r SeatRow) BoardStale() bool {
	return r.OnBoard && r.Board != r.Stored
}

// SeatReport is the outcome of one full pass.
type SeatReport struct {
	Rows  []SeatRow
	Drift int
	Stale int
}

// SeatAuditJob walks every batch and reports seat counts that disagree with
// the seat-holding enrollment rows. It never repairs anything.
type SeatAuditJob struct {
	batches BatchLister
	auditor SeatAuditor
	board   SeatBoard
	log     *logger.Logger
}

// NewSeatAuditJob creates the job.
func NewSeatAuditJob(batches BatchLister, auditor SeatAuditor, log *logger.Logger) *SeatAuditJob {
	if log == nil {
		log = logger.Discard()
	}
	return &SeatAuditJob{batches: batches, auditor: auditor, log: log.With(logger.Component("seat_audit"))}
}

// WithBoard makes each pass compare the seat board with the stored counts.
// A board that cannot be read is logged and skipped.
func (j *SeatAuditJob) WithBoard(board SeatBoard) *SeatAuditJob {
	j.board = board
	return j
}

// Name implements scheduler.Job.
func (j *SeatAuditJob) Name() string { return "seat_audit" }

// Description implements scheduler.Job.
func (j *SeatAuditJob) Description() string {
	return "Compare every batch's current_enrollment with its seat-holding enrollments"
}

// Run implements scheduler.Job.
func (j *SeatAuditJob) Run(ctx context.Context) error {
	report, err := j.Audit(ctx)
	if err != nil {
		return err
	}
	for _, row := range report.Rows {
		if !row.Consistent() {
			j.log.Warn("seat count drift",
				logger.BatchID(row.BatchID),
				logger.String("batch_code", row.Code),
				logger.SeatCount(row.Stored),
				logger.Int("seat_holders", row.SeatHolders),
			)
		}
		if row.BoardStale() {
			j.log.Debug("seat board behind",
				logger.BatchID(row.BatchID),
				logger.SeatCount(row.Stored),
				logger.Int("board", row.Board),
			)
		}
	}
	if report.Drift > 0 {
		return fmt.Errorf("%w in %d batch(es)", ErrSeatDrift, report.Drift)
	}
	j.log.Info("seat counts consistent", logger.Int("batches", len(report.Rows)))
	return nil
}

// Audit runs one pass. Batches deleted mid-pass are skipped.
func (j *SeatAuditJob) Audit(ctx context.Context) (SeatReport, error) {
	var report SeatReport
	board := j.snapshot(ctx)
	req := shared.PageRequest{Limit: shared.MaxPageLimit}
	for {
		page, err := j.batches.ListBatches(ctx, query.ListBatchesQuery{PageRequest: req})
		if err != nil {
			return report, err
		}
		for _, b := range page.Items {
			audit, err := j.auditor.AuditSeats(ctx, b.ID)
			if err != nil {
				if shared.IsNotFound(err) {
					continue
				}
				return report, err
			}
			if !audit.Consistent() {
				report.Drift++
			}
			row := SeatRow{SeatAudit: audit, Code: b.Code}
			row.Board, row.OnBoard = board[b.ID]
			if row.BoardStale() {
				report.Stale++
			}
			report.Rows = append(report.Rows, row)
		}
		if page.NextOffset == nil {
			return report, nil
		}
		req.Offset = *page.NextOffset
	}
}

func (j *SeatAuditJob) snapshot(ctx context.Context) map[string]int {
	if j.board == nil {
		return nil
	}
	snap, err := j.board.Snapshot(ctx)
	if err != nil {
		j.log.Warn("seat board unavailable", logger.Err(err))
		return nil
	}
	return snap
}
