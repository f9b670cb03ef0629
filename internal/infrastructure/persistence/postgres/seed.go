package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/learnforge/lms-ledger/internal/application/store"
	"github.com/learnforge/lms-ledger/internal/domain/batch"
	"github.com/learnforge/lms-ledger/internal/domain/catalog"
	"github.com/learnforge/lms-ledger/internal/domain/shared"
)

// SeedResult reports what Seed inserted.
type SeedResult struct {
	Skipped  bool
	CourseID string
	BatchID  string
}

// Seed inserts one sample course with one upcoming batch when the batches
// table is empty. It is safe to run repeatedly; concurrent runs collide on
// the batch code and one of them rolls back.
func Seed(ctx context.Context, s *Store) (*SeedResult, error) {
	result := &SeedResult{}
	err := s.WithinTx(ctx, func(ctx context.Context, repos store.Repositories) error {
		_, total, err := repos.Batches.List(ctx, batch.Filter{PageRequest: shared.PageRequest{Limit: 1}})
		if err != nil {
			return err
		}
		if total > 0 {
			result.Skipped = true
			return nil
		}

		course := catalog.NewCourse(
			"Full Stack Web Development",
			"HTML, CSS, JavaScript, a backend language and a relational database, end to end.",
			"",
			[]string{"Build responsive pages", "Design REST APIs", "Model data in SQL"},
			catalog.CourseStatusPublished,
		)
		if err := repos.Courses.Create(ctx, course); err != nil {
			return err
		}

		start := time.Now().UTC().AddDate(0, 0, 14)
		end := start.AddDate(0, 3, 0)
		b, err := batch.NewBatch(batch.NewBatchParams{
			CourseID:  course.ID,
			Name:      "Full Stack Weekday Morning",
			Code:      "FSWD-" + start.Format("200601") + "-01",
			StartDate: start,
			EndDate:   &end,
			Schedule: batch.Schedule{
				Type:     batch.ScheduleWeekday,
				Days:     []batch.Weekday{batch.Monday, batch.Wednesday, batch.Friday},
				TimeSlot: "09:00-11:00",
			},
		})
		if err != nil {
			return err
		}
		if err := repos.Batches.Create(ctx, b); err != nil {
			return err
		}
		result.CourseID, result.BatchID = course.ID, b.ID
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("seed: %w", err)
	}
	return result, nil
}
