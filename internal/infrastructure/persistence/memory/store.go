// Package memory is an in-process Store with the same constraints as the
// PostgreSQL schema: unique keys, foreign keys, cascades and the seat-count
// check. Transactions run one at a time against a private copy of the data
// and replace the committed copy only on success.
package memory

import (
	"context"
	"sync"

	"github.com/learnforge/lms-ledger/internal/application/store"
	"github.com/learnforge/lms-ledger/internal/domain/shared"
	"github.com/learnforge/lms-ledger/pkg/retry"
)

// Store implements store.Store.
type Store struct {
	mu      sync.Mutex
	data    *state
	retrier *retry.Retrier
}

// Option configures a Store.
type Option func(*Store)

// WithRetrier replaces the retrier used for transient conflicts.
func WithRetrier(r *retry.Retrier) Option {
	return func(s *Store) { s.retrier = r }
}

// New returns an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		data:    newState(),
		retrier: retry.DatabaseRetrier(3, shared.IsRetryable),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// WithinTx implements store.Store.
func (s *Store) WithinTx(ctx context.Context, fn store.TxFunc) error {
	return s.retrier.Do(ctx, func(ctx context.Context) error {
		return s.attempt(ctx, fn)
	})
}

func (s *Store) attempt(ctx context.Context, fn store.TxFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	work := s.data.clone()
	if err := fn(ctx, repositories(directRunner(work))); err != nil {
		return err
	}
	s.data = work
	return nil
}

// Repositories implements store.Store. Each call is atomic on its own.
func (s *Store) Repositories() store.Repositories {
	return repositories(s.lockedRunner())
}

// runner executes f against a state. Tx repositories run directly on the
// private copy; root repositories take the store lock per call.
type runner func(f func(st *state) error) error

func directRunner(st *state) runner {
	return func(f func(*state) error) error { return f(st) }
}

func (s *Store) lockedRunner() runner {
	return func(f func(*state) error) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		return f(s.data)
	}
}

func repositories(run runner) store.Repositories {
	return store.Repositories{
		Users:       &userRepo{run: run},
		Students:    &studentRepo{run: run},
		Courses:     &courseRepo{run: run},
		Modules:     &moduleRepo{run: run},
		Lessons:     &lessonRepo{run: run},
		Batches:     &batchRepo{run: run},
		Enrollments: &enrollmentRepo{run: run},
	}
}
