package repository

import (
	"context"
	"time"

	"shopcore/internal/model"

	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

const productColumns = `id, sku, name, price, stock_quantity, is_active, category_id, created_at, updated_at`

// productRepository implements the ProductRepository interface using PostgreSQL.
type productRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewProductRepository creates a new PostgreSQL-backed product repository.
func NewProductRepository(pool *pgxpool.Pool, logger zerolog.Logger) ProductRepository {
	return &productRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "product").Logger(),
	}
}

func scanProduct(row pgx.Row, p *model.Product) error {
	return row.Scan(
		&p.ID,
		&p.SKU,
		&p.Name,
		&p.Price,
		&p.StockQuantity,
		&p.IsActive,
		&p.CategoryID,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
}

// GetAll retrieves all products with pagination support.
func (r *productRepository) GetAll(ctx context.Context, limit, offset int) ([]model.Product, error) {
	query := `SELECT ` + productColumns + `
		FROM products
		ORDER BY id
		LIMIT $1 OFFSET $2
	`

	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		r.logger.Error().Err(err).
			Int("limit", limit).
			Int("offset", offset).
			Msg("failed to query products")
		return nil, errors.Wrap(err, "failed to query products")
	}
	defer rows.Close()

	return r.collect(rows)
}

// GetByID retrieves a single product by its ID.
func (r *productRepository) GetByID(ctx context.Context, id int64) (*model.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	var p model.Product
	if err := scanProduct(r.pool.QueryRow(ctx, query, id), &p); err != nil {
		if isNoRows(err) {
			r.logger.Debug().Int64("product_id", id).Msg("product not found")
			return nil, nil
		}
		r.logger.Error().Err(err).Int64("product_id", id).Msg("failed to query product")
		return nil, errors.Wrap(err, "failed to query product")
	}

	return &p, nil
}

// GetByIDs retrieves multiple products by their IDs.
func (r *productRepository) GetByIDs(ctx context.Context, ids []int64) ([]model.Product, error) {
	if len(ids) == 0 {
		return []model.Product{}, nil
	}

	query := `SELECT ` + productColumns + `
		FROM products
		WHERE id = ANY($1)
		ORDER BY id
	`

	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		r.logger.Error().Err(err).Int("id_count", len(ids)).Msg("failed to query products by IDs")
		return nil, errors.Wrap(err, "failed to query products")
	}
	defer rows.Close()

	return r.collect(rows)
}

// LockByID reads a product with SELECT ... FOR UPDATE.
func (r *productRepository) LockByID(ctx context.Context, tx pgx.Tx, id int64) (*model.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1 FOR UPDATE`

	var p model.Product
	if err := scanProduct(tx.QueryRow(ctx, query, id), &p); err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		r.logger.Error().Err(err).Int64("product_id", id).Msg("failed to lock product")
		return nil, errors.Wrap(err, "failed to lock product")
	}

	return &p, nil
}

// UpdateStock writes a new stock quantity within tx.
func (r *productRepository) UpdateStock(ctx context.Context, tx pgx.Tx, id int64, quantity int, updatedAt time.Time) error {
	query := `
		UPDATE products
		SET stock_quantity = $2, updated_at = $3
		WHERE id = $1
	`

	tag, err := tx.Exec(ctx, query, id, quantity, updatedAt)
	if err != nil {
		r.logger.Error().Err(err).
			Int64("product_id", id).
			Int("quantity", quantity).
			Msg("failed to update stock")
		return errors.Wrap(err, "failed to update stock")
	}
	if tag.RowsAffected() == 0 {
		return model.Errorf(model.KindNotFound, "product %d not found", id)
	}

	return nil
}

func (r *productRepository) collect(rows pgx.Rows) ([]model.Product, error) {
	products := []model.Product{}
	for rows.Next() {
		var p model.Product
		if err := scanProduct(rows, &p); err != nil {
			r.logger.Error().Err(err).Msg("failed to scan product row")
			return nil, errors.Wrap(err, "failed to scan product")
		}
		products = append(products, p)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error().Err(err).Msg("error iterating product rows")
		return nil, errors.Wrap(err, "error iterating products")
	}

	return products, nil
}
