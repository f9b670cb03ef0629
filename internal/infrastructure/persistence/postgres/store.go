package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/learnforge/lms-ledger/internal/application/store"
	"github.com/learnforge/lms-ledger/internal/domain/shared"
	"github.com/learnforge/lms-ledger/pkg/logger"
	"github.com/learnforge/lms-ledger/pkg/retry"
)

// Store implements store.Store on a pgx pool. Transactions run at READ
// COMMITTED; the ledger takes row locks explicitly.
type Store struct {
	conn    *Connection
	retrier *retry.Retrier
	timeout time.Duration
	log     *logger.Logger
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithTxAttempts sets how often a transaction body runs before a
// serialization failure or deadlock is returned to the caller.
func WithTxAttempts(n int) StoreOption {
	return func(s *Store) { s.retrier = retry.DatabaseRetrier(n, IsTransient) }
}

// WithTxTimeout bounds each transaction attempt. Zero disables the bound.
func WithTxTimeout(d time.Duration) StoreOption {
	return func(s *Store) { s.timeout = d }
}

// WithLogger sets the logger used for retry diagnostics.
func WithLogger(l *logger.Logger) StoreOption {
	return func(s *Store) { s.log = l }
}

// NewStore wraps conn.
func NewStore(conn *Connection, opts ...StoreOption) *Store {
	s := &Store{
		conn:    conn,
		retrier: retry.DatabaseRetrier(3, IsTransient),
		log:     logger.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IsTransient reports failures after which the whole transaction may be run
// again from scratch.
func IsTransient(err error) bool {
	return IsSerializationFailure(err) || shared.IsRetryable(err)
}

// WithinTx implements store.Store. Every attempt starts a fresh
// transaction, so a retried body never sees the effects of a failed one.
func (s *Store) WithinTx(ctx context.Context, fn store.TxFunc) error {
	attempt := 0
	return s.retrier.Do(ctx, func(ctx context.Context) error {
		attempt++
		if s.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.timeout)
			defer cancel()
		}
		err := s.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
			return fn(ctx, repositories(tx))
		})
		if err != nil && IsTransient(err) {
			s.log.Warn("transaction conflict", logger.Attempt(attempt), logger.Err(err))
		}
		return err
	})
}

// Repositories implements store.Store. Each call runs on its own pooled
// connection.
func (s *Store) Repositories() store.Repositories {
	return repositories(s.conn)
}

func repositories(q Querier) store.Repositories {
	return store.Repositories{
		Users:       &userRepo{q: q},
		Students:    &studentRepo{q: q},
		Courses:     &courseRepo{q: q},
		Modules:     &moduleRepo{q: q},
		Lessons:     &lessonRepo{q: q},
		Batches:     &batchRepo{q: q},
		Enrollments: &enrollmentRepo{q: q},
	}
}
