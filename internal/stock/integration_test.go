package stock

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"shopcore/internal/clock"
	"shopcore/internal/database/databasetest"
	"shopcore/internal/metrics"
	"shopcore/internal/model"
	"shopcore/internal/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stack struct {
	pool        *pgxpool.Pool
	txm         repository.TxManager
	ledger      repository.LedgerRepository
	manager     *Manager
	reservation *Reservation
}

func setupStack(t *testing.T) *stack {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping database test in short mode")
	}

	pool := databasetest.NewPool(t)
	logger := zerolog.Nop()
	txm := repository.NewTxManager(pool, repository.TxOptions{MaxRetries: 5, BaseBackoff: 5 * time.Millisecond}, logger)
	products := repository.NewProductRepository(pool, logger)
	ledger := repository.NewLedgerRepository(pool, logger)
	m := NewManager(txm, products, ledger, clock.NewRealClock(), metrics.NewNop(), logger)

	return &stack{pool: pool, txm: txm, ledger: ledger, manager: m, reservation: NewReservation(m)}
}

func TestIntegration_ConcurrentAdjustmentsLoseNothing(t *testing.T) {
	s := setupStack(t)
	ctx := context.Background()
	productID := databasetest.SeedProduct(t, s.pool, databasetest.ProductSeed{SKU: "CONC-1", Price: "1.00", Stock: 10})

	deltas := []int{-3, 5, -4, -6, 2, -1, 7, -9, -2, 4, -5, 1, -8, 3, -2, -1}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		applied   int
	)
	for _, d := range deltas {
		wg.Add(1)
		go func(delta int) {
			defer wg.Done()
			_, err := s.manager.Adjust(ctx, AdjustRequest{
				ProductID: productID,
				Delta:     delta,
				Reason:    "concurrent test",
				Reference: model.ManualAdjustmentRef{},
			})
			if err != nil {
				assert.True(t, errors.Is(err, model.ErrInsufficientStock), "unexpected error: %v", err)
				return
			}
			mu.Lock()
			succeeded++
			applied += delta
			mu.Unlock()
		}(d)
	}
	wg.Wait()

	final := databasetest.StockOf(t, s.pool, productID)
	assert.Equal(t, 10+applied, final)
	assert.GreaterOrEqual(t, final, 0)

	entries, err := s.ledger.ListByProduct(ctx, productID, 100, 0)
	require.NoError(t, err)
	require.Len(t, entries, succeeded)

	// Newest first: each entry starts where the one before it ended.
	for i := 0; i < len(entries)-1; i++ {
		assert.Equal(t, entries[i+1].NewQuantity, entries[i].OldQuantity)
	}
	if len(entries) > 0 {
		assert.Equal(t, final, entries[0].NewQuantity)
		assert.Equal(t, 10, entries[len(entries)-1].OldQuantity)
	}
}

func TestIntegration_ConcurrentReservationsNeverOversell(t *testing.T) {
	s := setupStack(t)
	ctx := context.Background()
	productID := databasetest.SeedProduct(t, s.pool, databasetest.ProductSeed{SKU: "CONC-2", Price: "1.00", Stock: 10})

	const workers = 25
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		reserved int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.txm.WithinTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
				_, err := s.reservation.Reserve(ctx, tx, productID, 1, uuid.New(), nil)
				return err
			})
			if err == nil {
				mu.Lock()
				reserved++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, reserved)
	assert.Equal(t, 0, databasetest.StockOf(t, s.pool, productID))
	assert.Equal(t, 10, databasetest.CountRows(t, s.pool, "stock_ledger", "product_id = $1", productID))
}

func TestIntegration_RejectedAdjustmentLeavesNoTrace(t *testing.T) {
	s := setupStack(t)
	ctx := context.Background()
	productID := databasetest.SeedProduct(t, s.pool, databasetest.ProductSeed{SKU: "NEG-1", Price: "1.00", Stock: 2})

	_, err := s.manager.Adjust(ctx, AdjustRequest{
		ProductID: productID,
		Delta:     -3,
		Reason:    "oversell",
		Reference: model.ManualAdjustmentRef{},
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrInsufficientStock))
	assert.Equal(t, 2, databasetest.StockOf(t, s.pool, productID))
	assert.Equal(t, 0, databasetest.CountRows(t, s.pool, "stock_ledger", "product_id = $1", productID))
}

func TestIntegration_ReserveReleaseRoundTrip(t *testing.T) {
	s := setupStack(t)
	ctx := context.Background()
	productID := databasetest.SeedProduct(t, s.pool, databasetest.ProductSeed{SKU: "RT-1", Price: "1.00", Stock: 6})
	orderID := uuid.New()
	actor := int64(11)

	err := s.txm.WithinTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		_, err := s.reservation.Reserve(ctx, tx, productID, 4, orderID, &actor)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 2, databasetest.StockOf(t, s.pool, productID))

	err = s.txm.WithinTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		_, err := s.reservation.Release(ctx, tx, productID, 4, orderID, &actor)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 6, databasetest.StockOf(t, s.pool, productID))

	entries, err := s.ledger.ListByReference(ctx, model.OrderRef{OrderID: orderID})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, -4, entries[0].Adjustment)
	assert.Equal(t, "reserved for order #"+orderID.String(), entries[0].Reason)
	assert.Equal(t, 4, entries[1].Adjustment)
	assert.Equal(t, &actor, entries[1].ActorID)
}

func TestIntegration_BulkAdjustIsAllOrNothing(t *testing.T) {
	s := setupStack(t)
	ctx := context.Background()
	a := databasetest.SeedProduct(t, s.pool, databasetest.ProductSeed{SKU: "BULK-A", Price: "1.00", Stock: 5})
	b := databasetest.SeedProduct(t, s.pool, databasetest.ProductSeed{SKU: "BULK-B", Price: "1.00", Stock: 1})
	ref := model.AdminPurchaseRef{PONumber: "PO-77"}

	_, err := s.manager.BulkAdjust(ctx, []AdjustRequest{
		{ProductID: a, Delta: 10, Reason: "restock", Reference: ref},
		{ProductID: b, Delta: -2, Reason: "restock", Reference: ref},
	})

	var batch *model.BatchError
	require.ErrorAs(t, err, &batch)
	require.Len(t, batch.Failures, 1)
	assert.Equal(t, b, batch.Failures[0].ProductID)
	assert.Equal(t, 5, databasetest.StockOf(t, s.pool, a))
	assert.Equal(t, 1, databasetest.StockOf(t, s.pool, b))
	assert.Equal(t, 0, databasetest.CountRows(t, s.pool, "stock_ledger", ""))

	changes, err := s.manager.BulkAdjust(ctx, []AdjustRequest{
		{ProductID: b, Delta: 4, Reason: "restock", Reference: ref},
		{ProductID: a, Delta: 10, Reason: "restock", Reference: ref},
		{ProductID: a, Delta: -3, Reason: "restock", Reference: ref},
	})
	require.NoError(t, err)
	require.Len(t, changes, 3)
	assert.Equal(t, 12, databasetest.StockOf(t, s.pool, a))
	assert.Equal(t, 5, databasetest.StockOf(t, s.pool, b))
	assert.Equal(t, 3, databasetest.CountRows(t, s.pool, "stock_ledger", "reference_id = $1", "PO-77"))
}

func TestIntegration_SetAbsolute(t *testing.T) {
	s := setupStack(t)
	ctx := context.Background()
	productID := databasetest.SeedProduct(t, s.pool, databasetest.ProductSeed{SKU: "SET-1", Price: "1.00", Stock: 9})

	change, err := s.manager.SetAbsolute(ctx, productID, 4, "cycle count", nil)
	require.NoError(t, err)
	assert.Equal(t, 9, change.OldQuantity)
	assert.Equal(t, 4, change.NewQuantity)

	history, err := s.manager.History(ctx, productID, 10, 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, -5, history[0].Adjustment)
	assert.Equal(t, model.ManualAdjustmentRef{}, history[0].Reference)
}
