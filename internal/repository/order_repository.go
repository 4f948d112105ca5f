package repository

import (
	"context"
	"time"

	"shopcore/internal/model"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// ErrDuplicateOrderNumber is returned when a generated order number collides.
var ErrDuplicateOrderNumber = errors.New("order number already exists")

const orderColumns = `id, order_number, customer_id, subtotal, discount_amount, shipping_cost,
	tax_amount, total_amount, status, coupon_id, shipping_address, notes, created_by,
	created_at, updated_at`

// orderRepository implements the OrderRepository interface using PostgreSQL.
type orderRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewOrderRepository creates a new PostgreSQL-backed order repository.
func NewOrderRepository(pool *pgxpool.Pool, logger zerolog.Logger) OrderRepository {
	return &orderRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "order").Logger(),
	}
}

// CreateOrder inserts a new order within the provided transaction.
func (r *orderRepository) CreateOrder(ctx context.Context, tx pgx.Tx, o *model.Order) error {
	query := `
		INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	_, err := tx.Exec(ctx, query,
		o.ID,
		o.OrderNumber,
		o.CustomerID,
		o.Subtotal,
		o.DiscountAmount,
		o.ShippingCost,
		o.TaxAmount,
		o.TotalAmount,
		string(o.Status),
		o.CouponID,
		o.ShippingAddress,
		o.Notes,
		o.CreatedBy,
		o.CreatedAt,
		o.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return errors.Mark(errors.Wrapf(err, "order number %s", o.OrderNumber), ErrDuplicateOrderNumber)
		}
		r.logger.Error().
			Err(err).
			Str("order_id", o.ID.String()).
			Msg("failed to create order")
		return errors.Wrap(err, "failed to create order")
	}

	r.logger.Debug().
		Str("order_id", o.ID.String()).
		Str("order_number", o.OrderNumber).
		Msg("order created successfully")

	return nil
}

// CreateOrderItems inserts multiple order items within the provided transaction.
func (r *orderRepository) CreateOrderItems(ctx context.Context, tx pgx.Tx, items []model.OrderItem) error {
	if len(items) == 0 {
		return nil
	}

	query := `
		INSERT INTO order_items (id, order_id, product_id, external_code, product_name, quantity, unit_price, line_total)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	batch := &pgx.Batch{}
	for _, item := range items {
		batch.Queue(query,
			item.ID,
			item.OrderID,
			item.ProductID,
			item.ExternalCode,
			item.ProductName,
			item.Quantity,
			item.UnitPrice,
			item.LineTotal,
		)
	}

	results := tx.SendBatch(ctx, batch)
	defer results.Close()

	for i := 0; i < len(items); i++ {
		if _, err := results.Exec(); err != nil {
			r.logger.Error().
				Err(err).
				Str("order_id", items[i].OrderID.String()).
				Str("product_name", items[i].ProductName).
				Msg("failed to create order item")
			return errors.Wrap(err, "failed to create order item")
		}
	}

	r.logger.Debug().
		Int("count", len(items)).
		Msg("order items created successfully")

	return nil
}

// GetByID retrieves an order by its ID along with its items and deal usages.
func (r *orderRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	order, err := r.load(ctx, r.pool, id, false)
	if err != nil || order == nil {
		return order, err
	}

	usages, err := r.dealUsages(ctx, id)
	if err != nil {
		return nil, err
	}
	order.DealUsages = usages

	return order, nil
}

// LockByID reads an order and its items with SELECT ... FOR UPDATE on the order row.
func (r *orderRepository) LockByID(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*model.Order, error) {
	return r.load(ctx, tx, id, true)
}

func (r *orderRepository) load(ctx context.Context, db querier, id uuid.UUID, forUpdate bool) (*model.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var (
		o      model.Order
		status string
	)
	err := db.QueryRow(ctx, query, id).Scan(
		&o.ID,
		&o.OrderNumber,
		&o.CustomerID,
		&o.Subtotal,
		&o.DiscountAmount,
		&o.ShippingCost,
		&o.TaxAmount,
		&o.TotalAmount,
		&status,
		&o.CouponID,
		&o.ShippingAddress,
		&o.Notes,
		&o.CreatedBy,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		if isNoRows(err) {
			r.logger.Debug().Str("order_id", id.String()).Msg("order not found")
			return nil, nil
		}
		r.logger.Error().Err(err).Str("order_id", id.String()).Msg("failed to query order")
		return nil, errors.Wrap(err, "failed to query order")
	}
	o.Status = model.OrderStatus(status)

	itemsQuery := `
		SELECT id, order_id, product_id, external_code, product_name, quantity, unit_price, line_total
		FROM order_items
		WHERE order_id = $1
		ORDER BY product_id NULLS LAST, id
	`

	rows, err := db.Query(ctx, itemsQuery, id)
	if err != nil {
		r.logger.Error().
			Err(err).
			Str("order_id", id.String()).
			Msg("failed to query order items")
		return nil, errors.Wrap(err, "failed to query order items")
	}
	defer rows.Close()

	o.Items = []model.OrderItem{}
	for rows.Next() {
		var item model.OrderItem
		err := rows.Scan(
			&item.ID,
			&item.OrderID,
			&item.ProductID,
			&item.ExternalCode,
			&item.ProductName,
			&item.Quantity,
			&item.UnitPrice,
			&item.LineTotal,
		)
		if err != nil {
			r.logger.Error().Err(err).Msg("failed to scan order item row")
			return nil, errors.Wrap(err, "failed to scan order item")
		}
		o.Items = append(o.Items, item)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error().Err(err).Msg("error iterating order item rows")
		return nil, errors.Wrap(err, "error iterating order items")
	}

	return &o, nil
}

func (r *orderRepository) dealUsages(ctx context.Context, orderID uuid.UUID) ([]model.UsageRecord, error) {
	query := `
		SELECT id, deal_id, order_id, customer_id, discount_amount, total_before_discount,
			total_after_discount, created_at
		FROM deal_usages
		WHERE order_id = $1
		ORDER BY created_at, id
	`

	rows, err := r.pool.Query(ctx, query, orderID)
	if err != nil {
		r.logger.Error().Err(err).Str("order_id", orderID.String()).Msg("failed to query deal usages")
		return nil, errors.Wrap(err, "failed to query deal usages")
	}
	defer rows.Close()

	usages := []model.UsageRecord{}
	for rows.Next() {
		u := model.UsageRecord{Kind: model.PromotionDeal}
		err := rows.Scan(
			&u.ID,
			&u.PromotionID,
			&u.OrderID,
			&u.CustomerID,
			&u.DiscountAmount,
			&u.TotalBeforeDiscount,
			&u.TotalAfterDiscount,
			&u.CreatedAt,
		)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan deal usage")
		}
		usages = append(usages, u)
	}

	return usages, errors.Wrap(rows.Err(), "error iterating deal usages")
}

// UpdateStatus sets the status of an order within tx.
func (r *orderRepository) UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status model.OrderStatus, updatedAt time.Time) error {
	query := `UPDATE orders SET status = $2, updated_at = $3 WHERE id = $1`

	tag, err := tx.Exec(ctx, query, id, string(status), updatedAt)
	if err != nil {
		r.logger.Error().Err(err).
			Str("order_id", id.String()).
			Str("status", string(status)).
			Msg("failed to update order status")
		return errors.Wrap(err, "failed to update order status")
	}
	if tag.RowsAffected() == 0 {
		return model.Errorf(model.KindNotFound, "order %s not found", id)
	}

	return nil
}

// Delete removes an order within tx.
func (r *orderRepository) Delete(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	tag, err := tx.Exec(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		r.logger.Error().Err(err).Str("order_id", id.String()).Msg("failed to delete order")
		return errors.Wrap(err, "failed to delete order")
	}
	if tag.RowsAffected() == 0 {
		return model.Errorf(model.KindNotFound, "order %s not found", id)
	}

	return nil
}
