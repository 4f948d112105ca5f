package service

import (
	"context"

	"shopcore/internal/cart"
	"shopcore/internal/model"
	"shopcore/internal/promotion"
	"shopcore/internal/purchase"
	"shopcore/internal/stock"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ProductService defines read operations on the catalogue.
type ProductService interface {
	// GetAll returns one page of the catalogue in id order.
	GetAll(ctx context.Context, page model.Page) ([]model.Product, error)

	// GetByID retrieves a single product by ID.
	GetByID(ctx context.Context, id int64) (*model.Product, error)
}

// OrderService defines order assembly and the order lifecycle.
type OrderService interface {
	// CreateFromCart turns the customer's cart into a pending order, reserving
	// stock and redeeming promotions in one transaction.
	CreateFromCart(ctx context.Context, customerID int64, req model.CheckoutRequest) (*model.Order, error)

	// GetByID retrieves an order with its items and deal usages.
	GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error)

	// Transition moves an order to target. Entering cancelled releases stock.
	Transition(ctx context.Context, id uuid.UUID, target model.OrderStatus, actorID *int64) (*model.Order, error)

	// Cancel is Transition to cancelled.
	Cancel(ctx context.Context, id uuid.UUID, actorID *int64) (*model.Order, error)

	// Delete removes a non-delivered order, releasing its stock unless it was
	// already cancelled.
	Delete(ctx context.Context, id uuid.UUID, actorID *int64) error
}

// StockService is the stock manager surface used by the HTTP layer.
type StockService interface {
	Adjust(ctx context.Context, req stock.AdjustRequest) (*model.StockChange, error)
	SetAbsolute(ctx context.Context, productID int64, newQuantity int, reason string, actorID *int64) (*model.StockChange, error)
	BulkAdjust(ctx context.Context, reqs []stock.AdjustRequest) ([]model.StockChange, error)
	History(ctx context.Context, productID int64, limit, offset int) ([]model.LedgerEntry, error)
}

// PurchaseService records purchase order files into stock.
type PurchaseService interface {
	Import(ctx context.Context, source string, actorID *int64) (*purchase.Result, error)
	ImportAll(ctx context.Context, sources []string, actorID *int64) ([]purchase.Result, error)
}

// CartService is the cart provider.
type CartService interface {
	Get(ctx context.Context, customerID int64) (*model.Cart, error)
	AddItem(ctx context.Context, customerID int64, req cart.AddItemRequest) (*model.Cart, error)
	RemoveItem(ctx context.Context, customerID, productID int64) (*model.Cart, error)
	Clear(ctx context.Context, customerID int64) error
}

// PromotionService evaluates and redeems coupons and deals.
type PromotionService interface {
	ValidateCoupon(ctx context.Context, code string, items []model.CartItem, customerID *int64) (*promotion.Result, error)
	ValidateDeal(ctx context.Context, id int64, items []model.CartItem, customerID *int64) (*promotion.Result, error)
	RecordUsage(ctx context.Context, tx pgx.Tx, res *promotion.Result, orderID uuid.UUID, customerID *int64) (*model.UsageRecord, error)
}

// StockReserver locks products and moves the stock of whole orders.
type StockReserver interface {
	WithLock(ctx context.Context, tx pgx.Tx, productID int64, fn stock.LockedFunc) error
	ReserveOrder(ctx context.Context, tx pgx.Tx, o *model.Order, actorID *int64) ([]model.StockChange, error)
	ReleaseOrder(ctx context.Context, tx pgx.Tx, o *model.Order, actorID *int64) ([]model.StockChange, error)
}

// SettingsProvider supplies the pricing scalars of the shop.
type SettingsProvider interface {
	Settings(ctx context.Context) (model.ShopSettings, error)
}
