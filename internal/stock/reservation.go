package stock

import (
	"context"
	"fmt"
	"sort"

	"shopcore/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Reservation ties stock movements to orders. It does not remember what it
// reserved: callers must release a reservation at most once.
type Reservation struct {
	stock *Manager
}

// NewReservation creates the reservation protocol on top of m.
func NewReservation(m *Manager) *Reservation {
	return &Reservation{stock: m}
}

// WithLock locks a product for a caller about to reserve it.
func (r *Reservation) WithLock(ctx context.Context, tx pgx.Tx, productID int64, fn LockedFunc) error {
	return r.stock.WithLock(ctx, tx, productID, fn)
}

// Reserve takes qty units of a product for an order.
func (r *Reservation) Reserve(ctx context.Context, tx pgx.Tx, productID int64, qty int, orderID uuid.UUID, actorID *int64) (*model.StockChange, error) {
	if qty <= 0 {
		return nil, model.Errorf(model.KindValidation, "reserved quantity for product %d must be positive", productID)
	}
	return r.stock.AdjustTx(ctx, tx, AdjustRequest{
		ProductID: productID,
		Delta:     -qty,
		Reason:    fmt.Sprintf("reserved for order #%s", orderID),
		Reference: model.OrderRef{OrderID: orderID},
		ActorID:   actorID,
	})
}

// Release returns qty units of a product reserved for an order.
func (r *Reservation) Release(ctx context.Context, tx pgx.Tx, productID int64, qty int, orderID uuid.UUID, actorID *int64) (*model.StockChange, error) {
	if qty <= 0 {
		return nil, model.Errorf(model.KindValidation, "released quantity for product %d must be positive", productID)
	}
	return r.stock.AdjustTx(ctx, tx, AdjustRequest{
		ProductID: productID,
		Delta:     qty,
		Reason:    fmt.Sprintf("released from order #%s", orderID),
		Reference: model.OrderRef{OrderID: orderID},
		ActorID:   actorID,
	})
}

// ReserveOrder reserves every stocked line of o in ascending product id order.
func (r *Reservation) ReserveOrder(ctx context.Context, tx pgx.Tx, o *model.Order, actorID *int64) ([]model.StockChange, error) {
	return r.eachProduct(o, func(productID int64, qty int) (*model.StockChange, error) {
		return r.Reserve(ctx, tx, productID, qty, o.ID, actorID)
	})
}

// ReleaseOrder releases every stocked line of o in ascending product id order.
func (r *Reservation) ReleaseOrder(ctx context.Context, tx pgx.Tx, o *model.Order, actorID *int64) ([]model.StockChange, error) {
	return r.eachProduct(o, func(productID int64, qty int) (*model.StockChange, error) {
		return r.Release(ctx, tx, productID, qty, o.ID, actorID)
	})
}

func (r *Reservation) eachProduct(o *model.Order, fn func(productID int64, qty int) (*model.StockChange, error)) ([]model.StockChange, error) {
	quantities := o.StockedQuantities()
	ids := make([]int64, 0, len(quantities))
	for id := range quantities {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(a, b int) bool { return ids[a] < ids[b] })

	changes := make([]model.StockChange, 0, len(ids))
	for _, id := range ids {
		change, err := fn(id, quantities[id])
		if err != nil {
			return nil, err
		}
		changes = append(changes, *change)
	}
	return changes, nil
}
