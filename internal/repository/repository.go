package repository

import (
	"context"
	"time"

	"shopcore/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// TxManager runs a unit of work inside a single database transaction.
type TxManager interface {
	// WithinTx commits if fn returns nil and rolls back otherwise. fn may be
	// invoked more than once when the transaction hits a serialization failure
	// or deadlock, so it must not have effects outside tx.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error
}

// ProductRepository defines the interface for product data access operations.
type ProductRepository interface {
	// GetAll retrieves all products with pagination support.
	GetAll(ctx context.Context, limit, offset int) ([]model.Product, error)

	// GetByID retrieves a single product by its ID. Returns nil when absent.
	GetByID(ctx context.Context, id int64) (*model.Product, error)

	// GetByIDs retrieves multiple products by their IDs, ordered by ID.
	GetByIDs(ctx context.Context, ids []int64) ([]model.Product, error)

	// LockByID reads a product holding a row lock until tx ends. Returns nil
	// when absent.
	LockByID(ctx context.Context, tx pgx.Tx, id int64) (*model.Product, error)

	// UpdateStock writes a new stock quantity within tx.
	UpdateStock(ctx context.Context, tx pgx.Tx, id int64, quantity int, updatedAt time.Time) error
}

// LedgerRepository is the append-only store of stock movements.
type LedgerRepository interface {
	// Append validates and inserts one entry within tx.
	Append(ctx context.Context, tx pgx.Tx, entry *model.LedgerEntry) error

	// ListByProduct returns a product's movements, newest first.
	ListByProduct(ctx context.Context, productID int64, limit, offset int) ([]model.LedgerEntry, error)

	// ListByReference returns all movements tied to ref in commit order.
	ListByReference(ctx context.Context, ref model.Reference) ([]model.LedgerEntry, error)

	// LockReference serialises writers of ref until tx ends and reports
	// whether movements under ref already exist.
	LockReference(ctx context.Context, tx pgx.Tx, ref model.Reference) (bool, error)
}

// OrderRepository defines the interface for order data access operations.
type OrderRepository interface {
	// CreateOrder inserts a new order within the provided transaction.
	CreateOrder(ctx context.Context, tx pgx.Tx, order *model.Order) error

	// CreateOrderItems inserts multiple order items within the provided transaction.
	CreateOrderItems(ctx context.Context, tx pgx.Tx, items []model.OrderItem) error

	// GetByID retrieves an order with its items and deal usages. Returns nil
	// when absent.
	GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error)

	// LockByID reads an order and its items holding the order row lock until
	// tx ends. Returns nil when absent.
	LockByID(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*model.Order, error)

	// UpdateStatus sets the status of an order within tx.
	UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status model.OrderStatus, updatedAt time.Time) error

	// Delete removes an order and, by cascade, its items and usage records.
	Delete(ctx context.Context, tx pgx.Tx, id uuid.UUID) error
}

// PromotionRepository defines data access for coupons, deals and their usage.
type PromotionRepository interface {
	GetCouponByCode(ctx context.Context, code string) (*model.Coupon, error)
	GetDealByID(ctx context.Context, id int64) (*model.Deal, error)

	// LockCoupon and LockDeal read the promotion holding its row lock.
	LockCoupon(ctx context.Context, tx pgx.Tx, id int64) (*model.Coupon, error)
	LockDeal(ctx context.Context, tx pgx.Tx, id int64) (*model.Deal, error)

	// CountCustomerUsage counts the customer's redemptions of a promotion.
	CountCustomerUsage(ctx context.Context, kind model.PromotionKind, promotionID, customerID int64) (int, error)

	// CountCustomerUsageTx is CountCustomerUsage inside tx.
	CountCustomerUsageTx(ctx context.Context, tx pgx.Tx, kind model.PromotionKind, promotionID, customerID int64) (int, error)

	// IncrementUsage adds one to usage_count and returns the new count.
	IncrementUsage(ctx context.Context, tx pgx.Tx, kind model.PromotionKind, promotionID int64) (int, error)

	// InsertUsage writes one redemption record.
	InsertUsage(ctx context.Context, tx pgx.Tx, record *model.UsageRecord) error
}
