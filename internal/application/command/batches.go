package command

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/learnforge/lms-ledger/internal/application/store"
	"github.com/learnforge/lms-ledger/internal/domain/batch"
	"github.com/learnforge/lms-ledger/internal/domain/shared"
	"github.com/learnforge/lms-ledger/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// BATCH COMMANDS
// The seat count is never written here; only the ledger moves it.
// ══════════════════════════════════════════════════════════════════════════════

// CreateBatchCommand schedules a batch under a course. MaxCapacity 0 means
// the default of 30.
type CreateBatchCommand struct {
	CourseID     string     `validate:"required"`
	Name         string     `validate:"required,notblank,max=200"`
	Code         string     `validate:"required,notblank,max=50"`
	StartDate    time.Time  `validate:"required"`
	EndDate      *time.Time `validate:"omitempty"`
	ScheduleType string     `validate:"omitempty"`
	Days         []string   `validate:"max=7"`
	TimeSlot     string     `validate:"max=100"`
	InstructorID string
	MaxCapacity  int `validate:"gte=0,max=100000"`
}

// UpdateBatchCommand changes caller-controlled settings. Nil fields are left
// alone; ClearEndDate and ClearInstructor unset optional values.
type UpdateBatchCommand struct {
	BatchID         string     `validate:"required"`
	Name            *string    `validate:"omitempty,notblank,max=200"`
	Code            *string    `validate:"omitempty,notblank,max=50"`
	StartDate       *time.Time `validate:"omitempty"`
	EndDate         *time.Time `validate:"omitempty"`
	ClearEndDate    bool
	ScheduleType    *string
	Days            *[]string `validate:"omitempty,max=7"`
	TimeSlot        *string   `validate:"omitempty,max=100"`
	InstructorID    *string
	ClearInstructor bool
	MaxCapacity     *int `validate:"omitempty,gt=0,max=100000"`
}

// BatchHandler handles batch commands.
type BatchHandler struct {
	deps Deps
}

// NewBatchHandler creates a new BatchHandler.
func NewBatchHandler(deps Deps) *BatchHandler {
	return &BatchHandler{deps: deps.withDefaults()}
}

// CreateBatch stores a new upcoming batch with zero seats taken.
func (h *BatchHandler) CreateBatch(ctx context.Context, cmd CreateBatchCommand) (*batch.Batch, error) {
	if err := checkStruct("batch", "Create", cmd); err != nil {
		return nil, err
	}
	days, err := parseDays(cmd.Days)
	if err != nil {
		return nil, err
	}
	var instructor *string
	if id := strings.TrimSpace(cmd.InstructorID); id != "" {
		instructor = &id
	}

	b, err := batch.NewBatch(batch.NewBatchParams{
		CourseID:  cmd.CourseID,
		Name:      cmd.Name,
		Code:      cmd.Code,
		StartDate: cmd.StartDate,
		EndDate:   cmd.EndDate,
		Schedule: batch.Schedule{
			Type:     batch.ScheduleType(strings.ToLower(cmd.ScheduleType)),
			Days:     days,
			TimeSlot: cmd.TimeSlot,
		},
		InstructorID: instructor,
		MaxCapacity:  cmd.MaxCapacity,
	})
	if err != nil {
		return nil, err
	}

	err = h.deps.Store.WithinTx(ctx, func(ctx context.Context, repos store.Repositories) error {
		if _, err := repos.Courses.GetByID(ctx, cmd.CourseID); err != nil {
			return err
		}
		if instructor != nil {
			if _, err := repos.Users.GetByID(ctx, *instructor); err != nil {
				if shared.IsNotFound(err) {
					return shared.ErrInstructorNotFound
				}
				return err
			}
		}
		return repos.Batches.Create(ctx, b)
	})
	if err != nil {
		return nil, fmt.Errorf("create_batch: %w", err)
	}

	h.changed(b)
	h.deps.Logger.Info("batch created", logger.BatchID(b.ID), logger.CourseID(b.CourseID), logger.String("code", b.Code))
	return b, nil
}

// UpdateBatch applies the non-nil settings of cmd. Lowering MaxCapacity below
// the seats already taken is rejected while capacity is enforced.
func (h *BatchHandler) UpdateBatch(ctx context.Context, cmd UpdateBatchCommand) (*batch.Batch, error) {
	if err := checkStruct("batch", "Update", cmd); err != nil {
		return nil, err
	}
	var days []batch.Weekday
	if cmd.Days != nil {
		var err error
		if days, err = parseDays(*cmd.Days); err != nil {
			return nil, err
		}
	}

	var updated *batch.Batch
	err := h.deps.Store.WithinTx(ctx, func(ctx context.Context, repos store.Repositories) error {
		b, err := repos.Batches.GetForUpdate(ctx, cmd.BatchID)
		if err != nil {
			return err
		}
		if cmd.Name != nil {
			b.Name = strings.TrimSpace(*cmd.Name)
		}
		if cmd.Code != nil {
			b.Code = strings.TrimSpace(*cmd.Code)
		}
		if cmd.StartDate != nil {
			b.StartDate = batch.DateOf(*cmd.StartDate)
		}
		if cmd.ClearEndDate {
			b.EndDate = nil
		} else if cmd.EndDate != nil {
			d := batch.DateOf(*cmd.EndDate)
			b.EndDate = &d
		}
		if cmd.ScheduleType != nil {
			b.Schedule.Type = batch.ScheduleType(strings.ToLower(*cmd.ScheduleType))
		}
		if cmd.Days != nil {
			b.Schedule.Days = days
		}
		if cmd.TimeSlot != nil {
			b.Schedule.TimeSlot = *cmd.TimeSlot
		}
		b.Schedule = b.Schedule.Normalize()
		if cmd.ClearInstructor {
			b.InstructorID = nil
		} else if cmd.InstructorID != nil {
			id := strings.TrimSpace(*cmd.InstructorID)
			if _, err := repos.Users.GetByID(ctx, id); err != nil {
				if shared.IsNotFound(err) {
					return shared.ErrInstructorNotFound
				}
				return err
			}
			b.InstructorID = &id
		}
		if cmd.MaxCapacity != nil {
			if *cmd.MaxCapacity < b.CurrentEnrollment && h.deps.Flags.IsEnabled(flagEnforceCapacity) {
				return shared.WrapError("batch", "Update", shared.ErrConstraintViolation,
					fmt.Sprintf("capacity %d is below the %d seats taken", *cmd.MaxCapacity, b.CurrentEnrollment),
					shared.ErrBatchInvalidSetting)
			}
			b.MaxCapacity = *cmd.MaxCapacity
		}
		if err := b.Validate(); err != nil {
			return err
		}
		if err := repos.Batches.Update(ctx, b); err != nil {
			return err
		}
		updated = b
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("update_batch: %w", err)
	}

	h.changed(updated)
	return updated, nil
}

// TransitionBatch moves the batch along its status machine. Nothing is
// derived from dates.
func (h *BatchHandler) TransitionBatch(ctx context.Context, batchID string, next batch.Status) (*batch.Batch, error) {
	if batchID == "" {
		return nil, shared.Validationf("batch", "Transition", "batch id is required")
	}
	if !next.IsValid() {
		return nil, shared.Validationf("batch", "Transition", "unknown batch status %q", next)
	}

	var (
		updated *batch.Batch
		from    batch.Status
	)
	err := h.deps.Store.WithinTx(ctx, func(ctx context.Context, repos store.Repositories) error {
		b, err := repos.Batches.GetForUpdate(ctx, batchID)
		if err != nil {
			return err
		}
		from = b.Status
		if err := b.Transition(next); err != nil {
			return err
		}
		if err := repos.Batches.Update(ctx, b); err != nil {
			return err
		}
		updated = b
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("transition_batch: %w", err)
	}

	h.changed(updated)
	h.deps.Logger.Info("batch transitioned",
		logger.BatchID(batchID),
		logger.String("from", string(from)),
		logger.String("to", string(next)),
	)
	return updated, nil
}

// DeleteBatch removes the batch and, by cascade, its enrollments.
func (h *BatchHandler) DeleteBatch(ctx context.Context, batchID string) error {
	if batchID == "" {
		return shared.Validationf("batch", "Delete", "batch id is required")
	}
	var courseID string
	err := h.deps.Store.WithinTx(ctx, func(ctx context.Context, repos store.Repositories) error {
		b, err := repos.Batches.GetForUpdate(ctx, batchID)
		if err != nil {
			return err
		}
		courseID = b.CourseID
		return repos.Batches.Delete(ctx, batchID)
	})
	if err != nil {
		return fmt.Errorf("delete_batch: %w", err)
	}

	h.deps.publish(shared.NewAggregateChangedEvent(shared.EventBatchDeleted, batchID, courseID))
	h.deps.Logger.Info("batch deleted", logger.BatchID(batchID))
	return nil
}

func (h *BatchHandler) changed(b *batch.Batch) {
	h.deps.publish(shared.NewAggregateChangedEvent(shared.EventBatchChanged, b.ID, b.CourseID))
}

func parseDays(raw []string) ([]batch.Weekday, error) {
	days := make([]batch.Weekday, 0, len(raw))
	for _, r := range raw {
		d, ok := batch.ParseWeekday(r)
		if !ok {
			return nil, shared.Validationf("batch", "Validate", "unknown weekday %q", r)
		}
		days = append(days, d)
	}
	return days, nil
}

// allBatchesOfCourse pages through every batch of the course.
func allBatchesOfCourse(ctx context.Context, repos store.Repositories, courseID string) ([]*batch.Batch, error) {
	var out []*batch.Batch
	filter := batch.Filter{CourseID: courseID}
	filter.Limit = shared.MaxPageLimit
	for {
		page, total, err := repos.Batches.List(ctx, filter)
		if err != nil {
			return nil, err
		}
		out = append(out, page...)
		filter.Offset += len(page)
		if len(page) == 0 || filter.Offset >= total {
			return out, nil
		}
	}
}
