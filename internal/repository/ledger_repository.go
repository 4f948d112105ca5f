package repository

import (
	"context"

	"shopcore/internal/model"

	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

const ledgerColumns = `id, product_id, old_quantity, new_quantity, adjustment, reason,
	reference_type, reference_id, actor_id, created_at`

// ledgerRepository implements LedgerRepository on the stock_ledger table.
type ledgerRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewLedgerRepository creates a new PostgreSQL-backed ledger store.
func NewLedgerRepository(pool *pgxpool.Pool, logger zerolog.Logger) LedgerRepository {
	return &ledgerRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "ledger").Logger(),
	}
}

// Append inserts one entry within tx.
func (r *ledgerRepository) Append(ctx context.Context, tx pgx.Tx, e *model.LedgerEntry) error {
	if err := e.Validate(); err != nil {
		return err
	}

	query := `
		INSERT INTO stock_ledger (` + ledgerColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := tx.Exec(ctx, query,
		e.ID,
		e.ProductID,
		e.OldQuantity,
		e.NewQuantity,
		e.Adjustment,
		e.Reason,
		string(e.Reference.Type()),
		e.Reference.Key(),
		e.ActorID,
		e.CreatedAt,
	)
	if err != nil {
		r.logger.Error().
			Err(err).
			Int64("product_id", e.ProductID).
			Int("adjustment", e.Adjustment).
			Msg("failed to append ledger entry")
		return errors.Wrap(err, "failed to append ledger entry")
	}

	return nil
}

// ListByProduct returns a product's movements, newest first.
func (r *ledgerRepository) ListByProduct(ctx context.Context, productID int64, limit, offset int) ([]model.LedgerEntry, error) {
	query := `SELECT ` + ledgerColumns + `
		FROM stock_ledger
		WHERE product_id = $1
		ORDER BY seq DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.pool.Query(ctx, query, productID, limit, offset)
	if err != nil {
		r.logger.Error().Err(err).Int64("product_id", productID).Msg("failed to query ledger")
		return nil, errors.Wrap(err, "failed to query ledger")
	}
	defer rows.Close()

	return r.collect(rows)
}

// ListByReference returns all movements tied to ref in commit order.
func (r *ledgerRepository) ListByReference(ctx context.Context, ref model.Reference) ([]model.LedgerEntry, error) {
	query := `SELECT ` + ledgerColumns + `
		FROM stock_ledger
		WHERE reference_type = $1 AND reference_id IS NOT DISTINCT FROM $2
		ORDER BY seq
	`

	rows, err := r.pool.Query(ctx, query, string(ref.Type()), ref.Key())
	if err != nil {
		r.logger.Error().Err(err).Str("reference_type", string(ref.Type())).Msg("failed to query ledger by reference")
		return nil, errors.Wrap(err, "failed to query ledger")
	}
	defer rows.Close()

	return r.collect(rows)
}

// LockReference takes a transaction-scoped advisory lock on ref and reports
// whether any movement is already recorded under it. Concurrent callers for
// the same ref queue on the lock, so the check holds until tx ends.
func (r *ledgerRepository) LockReference(ctx context.Context, tx pgx.Tx, ref model.Reference) (bool, error) {
	refType := string(ref.Type())
	key := ref.Key()

	_, err := tx.Exec(ctx,
		`SELECT pg_advisory_xact_lock(hashtext($1::text || ':' || coalesce($2::text, '')))`,
		refType, key,
	)
	if err != nil {
		r.logger.Error().Err(err).Str("reference_type", refType).Msg("failed to lock ledger reference")
		return false, errors.Wrap(err, "failed to lock ledger reference")
	}

	var recorded bool
	err = tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM stock_ledger
			WHERE reference_type = $1 AND reference_id IS NOT DISTINCT FROM $2
		)
	`, refType, key).Scan(&recorded)
	if err != nil {
		r.logger.Error().Err(err).Str("reference_type", refType).Msg("failed to check ledger reference")
		return false, errors.Wrap(err, "failed to check ledger reference")
	}

	return recorded, nil
}

func (r *ledgerRepository) collect(rows pgx.Rows) ([]model.LedgerEntry, error) {
	entries := []model.LedgerEntry{}
	for rows.Next() {
		var (
			e       model.LedgerEntry
			refType string
			refKey  *string
		)
		err := rows.Scan(
			&e.ID,
			&e.ProductID,
			&e.OldQuantity,
			&e.NewQuantity,
			&e.Adjustment,
			&e.Reason,
			&refType,
			&refKey,
			&e.ActorID,
			&e.CreatedAt,
		)
		if err != nil {
			r.logger.Error().Err(err).Msg("failed to scan ledger row")
			return nil, errors.Wrap(err, "failed to scan ledger entry")
		}

		ref, err := model.ParseReference(model.ReferenceType(refType), refKey)
		if err != nil {
			r.logger.Error().Err(err).Str("entry_id", e.ID.String()).Msg("ledger entry has malformed reference")
			return nil, errors.Wrapf(err, "ledger entry %s", e.ID)
		}
		e.Reference = ref
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error().Err(err).Msg("error iterating ledger rows")
		return nil, errors.Wrap(err, "error iterating ledger")
	}

	return entries, nil
}
