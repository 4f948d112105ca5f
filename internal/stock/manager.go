// Package stock is the only writer of product stock counters. Every change
// locks the product row, checks the resulting balance and appends exactly one
// ledger entry in the same transaction.
package stock

import (
	"context"
	"sort"

	"shopcore/internal/clock"
	"shopcore/internal/metrics"
	"shopcore/internal/model"
	"shopcore/internal/repository"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "shopcore/stock"

// ErrAlreadyRecorded marks a BulkAdjustOnce rejected because its reference
// already has movements in the ledger.
var ErrAlreadyRecorded = errors.New("reference already recorded")

// AdjustRequest is one signed stock movement.
type AdjustRequest struct {
	ProductID int64           `json:"productId"`
	Delta     int             `json:"delta"`
	Reason    string          `json:"reason"`
	Reference model.Reference `json:"-"`
	ActorID   *int64          `json:"-"`
}

// Validate checks the request shape. It does not look at stock.
func (r AdjustRequest) Validate() error {
	if r.ProductID <= 0 {
		return model.Errorf(model.KindValidation, "product id must be positive")
	}
	if r.Delta == 0 {
		return model.Errorf(model.KindValidation, "adjustment for product %d must be non-zero", r.ProductID)
	}
	if r.Reason == "" {
		return model.Errorf(model.KindValidation, "adjustment for product %d requires a reason", r.ProductID)
	}
	if r.Reference == nil {
		return model.Errorf(model.KindValidation, "adjustment for product %d requires a reference", r.ProductID)
	}
	return nil
}

// LockedFunc observes a product while its row lock is held.
type LockedFunc func(ctx context.Context, tx pgx.Tx, product *model.Product) error

// Manager mutates product stock.
type Manager struct {
	txm      repository.TxManager
	products repository.ProductRepository
	ledger   repository.LedgerRepository
	clock    clock.Clock
	metrics  *metrics.Metrics
	tracer   trace.Tracer
	logger   zerolog.Logger
}

// NewManager creates a stock manager.
func NewManager(
	txm repository.TxManager,
	products repository.ProductRepository,
	ledger repository.LedgerRepository,
	clk clock.Clock,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *Manager {
	return &Manager{
		txm:      txm,
		products: products,
		ledger:   ledger,
		clock:    clk,
		metrics:  m,
		tracer:   otel.Tracer(tracerName),
		logger:   logger.With().Str("component", "stock_manager").Logger(),
	}
}

// WithLock locks the product row inside tx and hands the locked product to
// fn. The lock is held until tx ends.
func (m *Manager) WithLock(ctx context.Context, tx pgx.Tx, productID int64, fn LockedFunc) error {
	product, err := m.products.LockByID(ctx, tx, productID)
	if err != nil {
		return err
	}
	if product == nil {
		return model.Errorf(model.KindNotFound, "product %d not found", productID)
	}
	return fn(ctx, tx, product)
}

// Adjust applies one movement in its own transaction.
func (m *Manager) Adjust(ctx context.Context, req AdjustRequest) (*model.StockChange, error) {
	ctx, span := m.startSpan(ctx, "stock.Adjust", req.ProductID)
	defer span.End()

	var change *model.StockChange
	err := m.txm.WithinTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		var err error
		change, err = m.AdjustTx(ctx, tx, req)
		return err
	})
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}

	m.logger.Info().
		Int64("product_id", change.ProductID).
		Int("old_quantity", change.OldQuantity).
		Int("new_quantity", change.NewQuantity).
		Str("reference_type", string(req.Reference.Type())).
		Msg("stock adjusted")

	return change, nil
}

// AdjustTx applies one movement inside the caller's transaction.
func (m *Manager) AdjustTx(ctx context.Context, tx pgx.Tx, req AdjustRequest) (*model.StockChange, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var change *model.StockChange
	err := m.WithLock(ctx, tx, req.ProductID, func(ctx context.Context, tx pgx.Tx, p *model.Product) error {
		var err error
		change, err = m.apply(ctx, tx, p, req.Delta, req.Reason, req.Reference, req.ActorID)
		return err
	})

	m.metrics.ObserveStockAdjustment(string(req.Reference.Type()), err)
	if err != nil {
		return nil, err
	}
	return change, nil
}

// SetAbsolute moves a product's stock to newQuantity, recording the
// difference as a manual adjustment. An unchanged target still records a
// zero movement so the count is auditable.
func (m *Manager) SetAbsolute(ctx context.Context, productID int64, newQuantity int, reason string, actorID *int64) (*model.StockChange, error) {
	if newQuantity < 0 {
		return nil, model.Errorf(model.KindValidation, "stock for product %d cannot be set to %d", productID, newQuantity)
	}
	if reason == "" {
		return nil, model.Errorf(model.KindValidation, "stock count for product %d requires a reason", productID)
	}

	ctx, span := m.startSpan(ctx, "stock.SetAbsolute", productID)
	defer span.End()

	ref := model.ManualAdjustmentRef{}
	var change *model.StockChange
	err := m.txm.WithinTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		return m.WithLock(ctx, tx, productID, func(ctx context.Context, tx pgx.Tx, p *model.Product) error {
			var err error
			change, err = m.apply(ctx, tx, p, newQuantity-p.StockQuantity, reason, ref, actorID)
			return err
		})
	})
	m.metrics.ObserveStockAdjustment(string(ref.Type()), err)
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}

	m.logger.Info().
		Int64("product_id", productID).
		Int("old_quantity", change.OldQuantity).
		Int("new_quantity", change.NewQuantity).
		Msg("stock set")

	return change, nil
}

// BulkAdjust applies all requests in one transaction, in ascending product id
// order. Every failing item is reported in a *model.BatchError and nothing is
// applied when any item fails. Changes are returned in request order.
func (m *Manager) BulkAdjust(ctx context.Context, reqs []AdjustRequest) ([]model.StockChange, error) {
	return m.bulkAdjust(ctx, nil, reqs)
}

// BulkAdjustOnce is BulkAdjust for a batch that may be recorded under ref at
// most once. Every request must carry ref. When the ledger already holds
// movements under ref nothing is applied and the returned validation error is
// marked with ErrAlreadyRecorded.
func (m *Manager) BulkAdjustOnce(ctx context.Context, ref model.Reference, reqs []AdjustRequest) ([]model.StockChange, error) {
	if ref == nil {
		return nil, model.Errorf(model.KindValidation, "bulk adjustment requires a reference")
	}
	for i, req := range reqs {
		if req.Reference != ref {
			return nil, model.Errorf(model.KindValidation, "item %d is not recorded under %s %s", i, ref.Type(), refKey(ref))
		}
	}
	return m.bulkAdjust(ctx, ref, reqs)
}

func (m *Manager) bulkAdjust(ctx context.Context, once model.Reference, reqs []AdjustRequest) ([]model.StockChange, error) {
	if len(reqs) == 0 {
		return nil, model.Errorf(model.KindValidation, "bulk adjustment has no items")
	}

	var invalid []model.ItemFailure
	for i, req := range reqs {
		if err := req.Validate(); err != nil {
			invalid = append(invalid, model.ItemFailure{Index: i, ProductID: req.ProductID, Err: err})
		}
	}
	if len(invalid) > 0 {
		return nil, &model.BatchError{Failures: invalid}
	}

	ctx, span := m.tracer.Start(ctx, "stock.BulkAdjust")
	span.SetAttributes(attribute.Int("stock.items", len(reqs)))
	defer span.End()

	order := make([]int, len(reqs))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return reqs[order[a]].ProductID < reqs[order[b]].ProductID
	})

	changes := make([]model.StockChange, len(reqs))
	err := m.txm.WithinTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if once != nil {
			recorded, err := m.ledger.LockReference(ctx, tx, once)
			if err != nil {
				return err
			}
			if recorded {
				return errors.Mark(
					model.Errorf(model.KindValidation, "%s %s has already been recorded", once.Type(), refKey(once)),
					ErrAlreadyRecorded,
				)
			}
		}

		var failures []model.ItemFailure
		for _, i := range order {
			change, err := m.AdjustTx(ctx, tx, reqs[i])
			if err != nil {
				// A database error aborts the transaction, so only domain
				// failures can be collected and the loop continued.
				if model.KindOf(err) == "" {
					return err
				}
				failures = append(failures, model.ItemFailure{Index: i, ProductID: reqs[i].ProductID, Err: err})
				continue
			}
			changes[i] = *change
		}
		if len(failures) > 0 {
			sort.Slice(failures, func(a, b int) bool { return failures[a].Index < failures[b].Index })
			return &model.BatchError{Failures: failures}
		}
		return nil
	})
	if err != nil {
		recordSpanError(span, err)
		m.logger.Warn().Err(err).Int("items", len(reqs)).Msg("bulk adjustment rolled back")
		return nil, err
	}

	m.logger.Info().Int("items", len(reqs)).Msg("bulk adjustment applied")
	return changes, nil
}

// History returns a product's ledger, newest first.
func (m *Manager) History(ctx context.Context, productID int64, limit, offset int) ([]model.LedgerEntry, error) {
	product, err := m.products.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, model.Errorf(model.KindNotFound, "product %d not found", productID)
	}
	return m.ledger.ListByProduct(ctx, productID, limit, offset)
}

// apply writes the new balance and its ledger entry. The caller holds the
// product row lock.
func (m *Manager) apply(ctx context.Context, tx pgx.Tx, p *model.Product, delta int, reason string, ref model.Reference, actorID *int64) (*model.StockChange, error) {
	newQuantity := p.StockQuantity + delta
	if newQuantity < 0 {
		m.logger.Debug().
			Int64("product_id", p.ID).
			Int("available", p.StockQuantity).
			Int("delta", delta).
			Msg("adjustment rejected")
		return nil, model.Errorf(model.KindInsufficientStock,
			"insufficient stock for product %d (%s): available %d, requested %d",
			p.ID, p.Name, p.StockQuantity, -delta)
	}

	now := m.clock.Now()
	entry := &model.LedgerEntry{
		ID:          uuid.New(),
		ProductID:   p.ID,
		OldQuantity: p.StockQuantity,
		NewQuantity: newQuantity,
		Adjustment:  delta,
		Reason:      reason,
		Reference:   ref,
		ActorID:     actorID,
		CreatedAt:   now,
	}

	if err := m.products.UpdateStock(ctx, tx, p.ID, newQuantity, now); err != nil {
		return nil, err
	}
	if err := m.ledger.Append(ctx, tx, entry); err != nil {
		return nil, err
	}

	// Later movements on the same product in this tx see the new balance.
	p.StockQuantity = newQuantity
	p.UpdatedAt = now

	return &model.StockChange{
		ProductID:     p.ID,
		OldQuantity:   entry.OldQuantity,
		NewQuantity:   entry.NewQuantity,
		LedgerEntryID: entry.ID,
	}, nil
}

func refKey(ref model.Reference) string {
	if k := ref.Key(); k != nil {
		return *k
	}
	return "-"
}

func (m *Manager) startSpan(ctx context.Context, name string, productID int64) (context.Context, trace.Span) {
	ctx, span := m.tracer.Start(ctx, name)
	span.SetAttributes(attribute.Int64("product.id", productID))
	return ctx, span
}

func recordSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
