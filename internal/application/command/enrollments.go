package command

import (
	"context"
	"fmt"

	"github.com/learnforge/lms-ledger/internal/application/ledger"
	"github.com/learnforge/lms-ledger/internal/application/store"
	"github.com/learnforge/lms-ledger/internal/domain/batch"
	"github.com/learnforge/lms-ledger/internal/domain/enrollment"
	"github.com/learnforge/lms-ledger/internal/domain/shared"
	"github.com/learnforge/lms-ledger/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENROLLMENT LEDGER COMMANDS
// Every write goes through ledger.Tx so the batch seat count moves in the
// same transaction as the row it counts.
// ══════════════════════════════════════════════════════════════════════════════

// EnrollCommand places a student into a batch of a course.
type EnrollCommand struct {
	StudentID string `validate:"required"`
	CourseID  string `validate:"required"`
	BatchID   string `validate:"required"`
}

// EnrollResult is the stored enrollment plus the seat count after commit.
type EnrollResult struct {
	Enrollment *enrollment.Enrollment
	SeatsTaken int
}

// UpdateProgressCommand sets the completion percentage.
type UpdateProgressCommand struct {
	EnrollmentID string `validate:"required"`
	Percentage   float64
}

// ChangeEnrollmentStatusCommand closes an active enrollment.
type ChangeEnrollmentStatusCommand struct {
	EnrollmentID string `validate:"required"`
	Status       string `validate:"required"`
}

// Validate checks rules the tags cannot express.
func (c ChangeEnrollmentStatusCommand) Validate() error {
	if !enrollment.Status(c.Status).IsValid() {
		return shared.Validationf("enrollment", "ChangeStatus", "unknown enrollment status %q", c.Status)
	}
	return nil
}

// TransferCommand moves an active enrollment to another batch of its course.
type TransferCommand struct {
	EnrollmentID string `validate:"required"`
	BatchID      string `validate:"required"`
}

// SeatAudit compares a batch's stored seat count with its seat-holding rows.
type SeatAudit struct {
	BatchID     string
	Stored      int
	SeatHolders int
}

// Consistent reports whether the stored count matches the rows.
func (a SeatAudit) Consistent() bool {
	return a.Stored == a.SeatHolders
}

// LedgerHandler handles enrollment commands.
type LedgerHandler struct {
	deps Deps
}

// NewLedgerHandler creates a new LedgerHandler.
func NewLedgerHandler(deps Deps) *LedgerHandler {
	return &LedgerHandler{deps: deps.withDefaults()}
}

// Enroll creates an active enrollment and takes one seat. The batch row is
// locked before any check, so concurrent enrollments into the same batch are
// decided one after another.
func (h *LedgerHandler) Enroll(ctx context.Context, cmd EnrollCommand) (*EnrollResult, error) {
	if err := checkStruct("enrollment", "Enroll", cmd); err != nil {
		return nil, err
	}

	var (
		result *EnrollResult
		lt     *ledger.Tx
	)
	err := h.deps.Store.WithinTx(ctx, func(ctx context.Context, repos store.Repositories) error {
		lt = ledger.Bind(repos)
		// Student before batch, the same order DeleteStudent locks in.
		if _, err := repos.Students.GetForUpdate(ctx, cmd.StudentID); err != nil {
			return err
		}
		if _, err := repos.Courses.GetByID(ctx, cmd.CourseID); err != nil {
			return err
		}
		b, err := repos.Batches.GetForUpdate(ctx, cmd.BatchID)
		if err != nil {
			return err
		}
		if b.CourseID != cmd.CourseID {
			return shared.ErrBatchCourseMismatch
		}
		if err := h.admit(b); err != nil {
			return err
		}
		exists, err := repos.Enrollments.ExistsActive(ctx, cmd.StudentID, cmd.CourseID)
		if err != nil {
			return err
		}
		if exists {
			return shared.ErrEnrollmentDuplicate
		}

		e := enrollment.New(cmd.StudentID, cmd.CourseID, b.ID, b.StartDate)
		if err := lt.Insert(ctx, e); err != nil {
			return err
		}
		result = &EnrollResult{Enrollment: e, SeatsTaken: lastSeatCount(lt, b.ID, b.CurrentEnrollment)}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("enroll: %w", err)
	}

	h.deps.publish(lt.Events()...)
	h.deps.Logger.Info("student enrolled",
		logger.EnrollmentID(result.Enrollment.ID),
		logger.EnrollmentNo(result.Enrollment.Number),
		logger.StudentID(cmd.StudentID),
		logger.BatchID(cmd.BatchID),
		logger.SeatCount(result.SeatsTaken),
	)
	return result, nil
}

// Withdraw physically removes the enrollment and frees its seat.
func (h *LedgerHandler) Withdraw(ctx context.Context, enrollmentID string) error {
	if enrollmentID == "" {
		return shared.Validationf("enrollment", "Withdraw", "enrollment id is required")
	}
	var lt *ledger.Tx
	err := h.deps.Store.WithinTx(ctx, func(ctx context.Context, repos store.Repositories) error {
		lt = ledger.Bind(repos)
		e, err := repos.Enrollments.GetForUpdate(ctx, enrollmentID)
		if err != nil {
			return err
		}
		return lt.Delete(ctx, e)
	})
	if err != nil {
		return fmt.Errorf("withdraw: %w", err)
	}

	h.deps.publish(lt.Events()...)
	h.deps.Logger.Info("enrollment withdrawn", logger.EnrollmentID(enrollmentID))
	return nil
}

// UpdateProgress stores the percentage rounded to two decimals. Reaching
// 100.00 leaves the status alone.
func (h *LedgerHandler) UpdateProgress(ctx context.Context, cmd UpdateProgressCommand) (*enrollment.Enrollment, error) {
	if err := checkStruct("enrollment", "UpdateProgress", cmd); err != nil {
		return nil, err
	}
	p, err := enrollment.ParseProgress(cmd.Percentage)
	if err != nil {
		return nil, err
	}

	var updated *enrollment.Enrollment
	err = h.deps.Store.WithinTx(ctx, func(ctx context.Context, repos store.Repositories) error {
		e, err := repos.Enrollments.GetForUpdate(ctx, cmd.EnrollmentID)
		if err != nil {
			return err
		}
		e.SetProgress(p)
		if err := repos.Enrollments.Update(ctx, e); err != nil {
			return err
		}
		updated = e
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("update_progress: %w", err)
	}

	h.deps.Logger.Debug("progress updated",
		logger.EnrollmentID(updated.ID),
		logger.String("progress", updated.Progress.String()),
	)
	return updated, nil
}

// ChangeEnrollmentStatus closes an active enrollment as completed or
// dropped. The row stays; its seat is given back.
func (h *LedgerHandler) ChangeEnrollmentStatus(ctx context.Context, cmd ChangeEnrollmentStatusCommand) (*enrollment.Enrollment, error) {
	if err := checkStruct("enrollment", "ChangeStatus", cmd); err != nil {
		return nil, err
	}
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	var (
		updated *enrollment.Enrollment
		lt      *ledger.Tx
	)
	err := h.deps.Store.WithinTx(ctx, func(ctx context.Context, repos store.Repositories) error {
		lt = ledger.Bind(repos)
		e, err := repos.Enrollments.GetForUpdate(ctx, cmd.EnrollmentID)
		if err != nil {
			return err
		}
		if _, err := repos.Batches.GetForUpdate(ctx, e.BatchID); err != nil {
			return err
		}
		if err := lt.Close(ctx, e, enrollment.Status(cmd.Status)); err != nil {
			return err
		}
		updated = e
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("change_enrollment_status: %w", err)
	}

	h.deps.publish(lt.Events()...)
	h.deps.Logger.Info("enrollment closed",
		logger.EnrollmentID(updated.ID),
		logger.String("status", string(updated.Status)),
	)
	return updated, nil
}

// Transfer moves an active enrollment to another batch of the same course.
// Both batches are locked in id order before either count moves.
func (h *LedgerHandler) Transfer(ctx context.Context, cmd TransferCommand) (*enrollment.Enrollment, error) {
	if err := checkStruct("enrollment", "Transfer", cmd); err != nil {
		return nil, err
	}

	var (
		moved *enrollment.Enrollment
		from  string
		lt    *ledger.Tx
	)
	err := h.deps.Store.WithinTx(ctx, func(ctx context.Context, repos store.Repositories) error {
		lt = ledger.Bind(repos)
		e, err := repos.Enrollments.GetForUpdate(ctx, cmd.EnrollmentID)
		if err != nil {
			return err
		}
		if e.Status != enrollment.StatusActive {
			return shared.ErrEnrollmentNotActive
		}
		from = e.BatchID
		if from == cmd.BatchID {
			moved = e
			return nil
		}

		_, target, err := lockPair(ctx, repos.Batches, from, cmd.BatchID)
		if err != nil {
			return err
		}
		if target.CourseID != e.CourseID {
			return shared.ErrBatchCourseMismatch
		}
		if err := h.admit(target); err != nil {
			return err
		}
		moved, err = lt.Move(ctx, e, target.ID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("transfer: %w", err)
	}

	if from != cmd.BatchID {
		h.deps.publish(lt.Events()...)
		h.deps.Logger.Info("enrollment transferred",
			logger.EnrollmentID(moved.ID),
			logger.String("from_batch", from),
			logger.BatchID(cmd.BatchID),
		)
	}
	return moved, nil
}

// AuditSeats reads the stored seat count of a batch next to the number of
// seat-holding rows in one transaction.
func (h *LedgerHandler) AuditSeats(ctx context.Context, batchID string) (SeatAudit, error) {
	if batchID == "" {
		return SeatAudit{}, shared.Validationf("batch", "AuditSeats", "batch id is required")
	}
	audit := SeatAudit{BatchID: batchID}
	err := h.deps.Store.WithinTx(ctx, func(ctx context.Context, repos store.Repositories) error {
		b, err := repos.Batches.GetForUpdate(ctx, batchID)
		if err != nil {
			return err
		}
		n, err := repos.Enrollments.CountSeatHolders(ctx, batchID)
		if err != nil {
			return err
		}
		audit.Stored, audit.SeatHolders = b.CurrentEnrollment, n
		return nil
	})
	if err != nil {
		return SeatAudit{}, fmt.Errorf("audit_seats: %w", err)
	}
	if !audit.Consistent() {
		h.deps.Logger.Error("seat count drift",
			logger.BatchID(batchID),
			logger.SeatCount(audit.Stored),
			logger.Int("seat_holders", audit.SeatHolders),
		)
	}
	return audit, nil
}

// admit applies the flag-controlled guards to a locked batch.
func (h *LedgerHandler) admit(b *batch.Batch) error {
	if h.deps.Flags.IsEnabled(flagOpenBatchesOnly) && !b.Status.AcceptsEnrollment() {
		return shared.ErrBatchClosed
	}
	if h.deps.Flags.IsEnabled(flagEnforceCapacity) && b.IsFull() {
		return shared.ErrBatchFull
	}
	return nil
}

// lockPair locks two batches in id order and returns them as (a, b).
func lockPair(ctx context.Context, repo batch.Repository, a, b string) (*batch.Batch, *batch.Batch, error) {
	first, second := a, b
	if second < first {
		first, second = second, first
	}
	x, err := repo.GetForUpdate(ctx, first)
	if err != nil {
		return nil, nil, err
	}
	y, err := repo.GetForUpdate(ctx, second)
	if err != nil {
		return nil, nil, err
	}
	if first == a {
		return x, y, nil
	}
	return y, x, nil
}

func lastSeatCount(lt *ledger.Tx, batchID string, fallback int) int {
	changes := lt.SeatChanges()
	for i := len(changes) - 1; i >= 0; i-- {
		if changes[i].BatchID == batchID {
			return changes[i].Current
		}
	}
	return fallback
}
