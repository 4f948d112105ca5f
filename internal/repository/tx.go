package repository

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

const (
	pgErrCodeSerializationFailure = "40001"
	pgErrCodeDeadlockDetected     = "40P01"
)

var (
	ErrTransactionBegin   = errors.New("failed to begin transaction")
	ErrTransactionCommit  = errors.New("failed to commit transaction")
	ErrMaxRetriesExceeded = errors.New("transaction failed after max retries")
)

// TxOptions configures retry behaviour of a txManager.
type TxOptions struct {
	MaxRetries  int
	BaseBackoff time.Duration
}

// txManager runs units of work in READ COMMITTED transactions, retrying the
// whole unit on serialization failures and deadlocks.
type txManager struct {
	pool   *pgxpool.Pool
	opts   TxOptions
	logger zerolog.Logger
}

// NewTxManager creates a PostgreSQL-backed transaction manager.
func NewTxManager(pool *pgxpool.Pool, opts TxOptions, logger zerolog.Logger) TxManager {
	if opts.BaseBackoff <= 0 {
		opts.BaseBackoff = 20 * time.Millisecond
	}
	return &txManager{
		pool:   pool,
		opts:   opts,
		logger: logger.With().Str("component", "tx_manager").Logger(),
	}
}

// WithinTx commits when fn returns nil and rolls back otherwise. Errors
// returned by fn are passed through unchanged.
func (m *txManager) WithinTx(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	for attempt := 0; ; attempt++ {
		err := m.runOnce(ctx, fn)
		if err == nil {
			return nil
		}

		if !isRetryable(err) {
			return err
		}

		if attempt >= m.opts.MaxRetries {
			m.logger.Error().Err(err).Int("attempts", attempt+1).Msg("transaction failed after max retries")
			return errors.Mark(err, ErrMaxRetriesExceeded)
		}

		wait := backoff(attempt, m.opts.BaseBackoff)
		m.logger.Warn().
			Err(err).
			Int("attempt", attempt+1).
			Int64("wait_ms", wait.Milliseconds()).
			Msg("retrying transaction due to retryable error")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// runOnce keeps the rollback defer out of the retry loop.
func (m *txManager) runOnce(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	tx, err := m.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		m.logger.Error().Err(err).Msg("failed to begin transaction")
		return errors.Mark(err, ErrTransactionBegin)
	}

	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			m.logger.Warn().Err(rbErr).Msg("failed to rollback transaction")
		}
	}()

	if err := fn(ctx, tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Mark(err, ErrTransactionCommit)
	}
	return nil
}

func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == pgErrCodeSerializationFailure || pgErr.Code == pgErrCodeDeadlockDetected
}

func backoff(attempt int, base time.Duration) time.Duration {
	wait := time.Duration(1<<attempt) * base
	if jitter := int64(wait / 5); jitter > 0 {
		wait += time.Duration(rand.Int64N(jitter))
	}
	return wait
}
