package ledger

import (
	"context"
	"fmt"

	"github.com/learnforge/lms-ledger/internal/domain/batch"
	"github.com/learnforge/lms-ledger/internal/domain/shared"
)

// SeatChange records one committed adjustment of a batch seat count.
type SeatChange struct {
	BatchID string
	Delta   int
	Current int
}

// Seats keeps batches.current_enrollment equal to the number of
// seat-holding enrollments. It is only reachable through Tx, so every call
// shares the transaction of the ledger row it accompanies.
type Seats struct {
	batches batch.Repository
	changes []SeatChange
}

// Occupy takes one seat in the batch.
func (s *Seats) Occupy(ctx context.Context, batchID string) error {
	return s.adjust(ctx, batchID, +1)
}

// Free gives one seat back.
func (s *Seats) Free(ctx context.Context, batchID string) error {
	return s.adjust(ctx, batchID, -1)
}

func (s *Seats) adjust(ctx context.Context, batchID string, delta int) error {
	current, err := s.batches.AdjustEnrollment(ctx, batchID, delta)
	if err != nil {
		return fmt.Errorf("seats %+d on batch %s: %w", delta, batchID, err)
	}
	if current < 0 {
		return shared.ErrBatchSeatUnderflow
	}
	s.changes = append(s.changes, SeatChange{BatchID: batchID, Delta: delta, Current: current})
	return nil
}
