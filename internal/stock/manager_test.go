package stock

import (
	"context"
	"errors"
	"testing"
	"time"

	"shopcore/internal/clock"
	"shopcore/internal/metrics"
	"shopcore/internal/model"
	"shopcore/internal/repository/mocks"

	crdberrors "github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

type managerFixture struct {
	manager  *Manager
	products *mocks.MockProductRepository
	ledger   *mocks.MockLedgerRepository
	txm      *mocks.FakeTxManager
	metrics  *metrics.Metrics
}

func newManagerFixture() *managerFixture {
	f := &managerFixture{
		products: &mocks.MockProductRepository{},
		ledger:   &mocks.MockLedgerRepository{},
		txm:      &mocks.FakeTxManager{},
		metrics:  metrics.NewNop(),
	}
	f.manager = NewManager(f.txm, f.products, f.ledger, clock.NewFixedClock(testNow), f.metrics, zerolog.Nop())
	return f
}

func product(id int64, stock int) *model.Product {
	return &model.Product{ID: id, Name: "widget", StockQuantity: stock, IsActive: true}
}

func (f *managerFixture) expectLock(id int64, stock int) {
	f.products.On("LockByID", mock.Anything, mock.Anything, id).Return(product(id, stock), nil).Once()
}

func (f *managerFixture) expectWrite(id int64, newQty int) {
	f.products.On("UpdateStock", mock.Anything, mock.Anything, id, newQty, testNow).Return(nil).Once()
	f.ledger.On("Append", mock.Anything, mock.Anything, mock.MatchedBy(func(e *model.LedgerEntry) bool {
		return e.ProductID == id && e.NewQuantity == newQty
	})).Return(nil).Once()
}

func TestAdjustRequest_Validate(t *testing.T) {
	base := AdjustRequest{ProductID: 1, Delta: -2, Reason: "count", Reference: model.ManualAdjustmentRef{}}

	tests := []struct {
		name   string
		mutate func(r *AdjustRequest)
	}{
		{name: "non-positive product id", mutate: func(r *AdjustRequest) { r.ProductID = 0 }},
		{name: "zero delta", mutate: func(r *AdjustRequest) { r.Delta = 0 }},
		{name: "missing reason", mutate: func(r *AdjustRequest) { r.Reason = "" }},
		{name: "missing reference", mutate: func(r *AdjustRequest) { r.Reference = nil }},
	}

	require.NoError(t, base.Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := base
			tt.mutate(&req)
			err := req.Validate()
			require.Error(t, err)
			assert.Equal(t, model.KindValidation, model.KindOf(err))
		})
	}
}

func TestManager_Adjust(t *testing.T) {
	ctx := context.Background()
	actor := int64(9)

	t.Run("writes stock and exactly one ledger entry", func(t *testing.T) {
		f := newManagerFixture()
		f.expectLock(1, 10)
		f.products.On("UpdateStock", mock.Anything, mock.Anything, int64(1), 7, testNow).Return(nil).Once()

		var appended *model.LedgerEntry
		f.ledger.On("Append", mock.Anything, mock.Anything, mock.Anything).
			Run(func(args mock.Arguments) { appended = args.Get(2).(*model.LedgerEntry) }).
			Return(nil).Once()

		change, err := f.manager.Adjust(ctx, AdjustRequest{
			ProductID: 1,
			Delta:     -3,
			Reason:    "damaged in warehouse",
			Reference: model.ManualAdjustmentRef{},
			ActorID:   &actor,
		})

		require.NoError(t, err)
		assert.Equal(t, 10, change.OldQuantity)
		assert.Equal(t, 7, change.NewQuantity)

		require.NotNil(t, appended)
		assert.Equal(t, change.LedgerEntryID, appended.ID)
		assert.Equal(t, 10, appended.OldQuantity)
		assert.Equal(t, 7, appended.NewQuantity)
		assert.Equal(t, -3, appended.Adjustment)
		assert.Equal(t, "damaged in warehouse", appended.Reason)
		assert.Equal(t, model.ManualAdjustmentRef{}, appended.Reference)
		assert.Equal(t, &actor, appended.ActorID)
		assert.Equal(t, testNow, appended.CreatedAt)

		assert.Equal(t, 1, f.txm.Commits)
		assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.StockAdjustments.WithLabelValues("adjustment", metrics.OutcomeSuccess)))
		f.products.AssertExpectations(t)
		f.ledger.AssertExpectations(t)
	})

	t.Run("rejects a movement below zero without writing", func(t *testing.T) {
		f := newManagerFixture()
		f.expectLock(1, 2)

		_, err := f.manager.Adjust(ctx, AdjustRequest{
			ProductID: 1,
			Delta:     -3,
			Reason:    "sale",
			Reference: model.ManualAdjustmentRef{},
		})

		require.Error(t, err)
		assert.True(t, errors.Is(err, model.ErrInsufficientStock))
		assert.Contains(t, err.Error(), "product 1")
		assert.Equal(t, 1, f.txm.Rollbacks)
		f.products.AssertNotCalled(t, "UpdateStock", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		f.ledger.AssertNotCalled(t, "Append", mock.Anything, mock.Anything, mock.Anything)
		assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.StockAdjustments.WithLabelValues("adjustment", metrics.OutcomeFailure)))
	})

	t.Run("unknown product is NotFound", func(t *testing.T) {
		f := newManagerFixture()
		f.products.On("LockByID", mock.Anything, mock.Anything, int64(5)).Return(nil, nil).Once()

		_, err := f.manager.Adjust(ctx, AdjustRequest{
			ProductID: 5,
			Delta:     1,
			Reason:    "found",
			Reference: model.ManualAdjustmentRef{},
		})

		assert.Equal(t, model.KindNotFound, model.KindOf(err))
	})

	t.Run("ledger failure rolls back", func(t *testing.T) {
		f := newManagerFixture()
		f.expectLock(1, 4)
		f.products.On("UpdateStock", mock.Anything, mock.Anything, int64(1), 5, testNow).Return(nil).Once()
		f.ledger.On("Append", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("disk full")).Once()

		_, err := f.manager.Adjust(ctx, AdjustRequest{
			ProductID: 1,
			Delta:     1,
			Reason:    "return",
			Reference: model.ManualAdjustmentRef{},
		})

		require.Error(t, err)
		assert.Equal(t, 1, f.txm.Rollbacks)
		assert.Equal(t, 0, f.txm.Commits)
	})

	t.Run("invalid request never locks", func(t *testing.T) {
		f := newManagerFixture()

		_, err := f.manager.Adjust(ctx, AdjustRequest{ProductID: 1, Delta: 0, Reason: "x", Reference: model.ManualAdjustmentRef{}})

		assert.Equal(t, model.KindValidation, model.KindOf(err))
		f.products.AssertNotCalled(t, "LockByID", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestManager_WithLock(t *testing.T) {
	f := newManagerFixture()
	f.expectLock(3, 12)

	var seen *model.Product
	err := f.manager.WithLock(context.Background(), &mocks.MockTx{}, 3, func(_ context.Context, _ pgx.Tx, p *model.Product) error {
		seen = p
		return nil
	})

	require.NoError(t, err)
	require.NotNil(t, seen)
	assert.Equal(t, 12, seen.StockQuantity)
}

func TestManager_SetAbsolute(t *testing.T) {
	ctx := context.Background()

	t.Run("records the difference as a manual adjustment", func(t *testing.T) {
		f := newManagerFixture()
		f.expectLock(2, 8)
		f.products.On("UpdateStock", mock.Anything, mock.Anything, int64(2), 20, testNow).Return(nil).Once()
		f.ledger.On("Append", mock.Anything, mock.Anything, mock.MatchedBy(func(e *model.LedgerEntry) bool {
			return e.Adjustment == 12 && e.Reference == model.ManualAdjustmentRef{}
		})).Return(nil).Once()

		change, err := f.manager.SetAbsolute(ctx, 2, 20, "cycle count", nil)

		require.NoError(t, err)
		assert.Equal(t, 8, change.OldQuantity)
		assert.Equal(t, 20, change.NewQuantity)
		f.ledger.AssertExpectations(t)
	})

	t.Run("unchanged target still records a zero movement", func(t *testing.T) {
		f := newManagerFixture()
		f.expectLock(2, 8)
		f.products.On("UpdateStock", mock.Anything, mock.Anything, int64(2), 8, testNow).Return(nil).Once()
		f.ledger.On("Append", mock.Anything, mock.Anything, mock.MatchedBy(func(e *model.LedgerEntry) bool {
			return e.Adjustment == 0
		})).Return(nil).Once()

		change, err := f.manager.SetAbsolute(ctx, 2, 8, "cycle count", nil)

		require.NoError(t, err)
		assert.Equal(t, change.OldQuantity, change.NewQuantity)
	})

	t.Run("negative target is rejected", func(t *testing.T) {
		f := newManagerFixture()

		_, err := f.manager.SetAbsolute(ctx, 2, -1, "cycle count", nil)

		assert.Equal(t, model.KindValidation, model.KindOf(err))
		assert.Equal(t, 0, f.txm.Commits+f.txm.Rollbacks)
	})
}

func TestManager_BulkAdjust(t *testing.T) {
	ctx := context.Background()
	ref := model.AdminPurchaseRef{PONumber: "PO-1"}

	t.Run("applies in ascending product order and returns request order", func(t *testing.T) {
		f := newManagerFixture()
		var locked []int64
		for _, tc := range []struct {
			id    int64
			stock int
		}{{3, 1}, {1, 5}, {2, 0}} {
			id := tc.id
			f.products.On("LockByID", mock.Anything, mock.Anything, id).
				Run(func(mock.Arguments) { locked = append(locked, id) }).
				Return(product(id, tc.stock), nil).Once()
		}
		f.expectWrite(1, 6)
		f.expectWrite(2, 2)
		f.expectWrite(3, 4)

		changes, err := f.manager.BulkAdjust(ctx, []AdjustRequest{
			{ProductID: 3, Delta: 3, Reason: "po", Reference: ref},
			{ProductID: 1, Delta: 1, Reason: "po", Reference: ref},
			{ProductID: 2, Delta: 2, Reason: "po", Reference: ref},
		})

		require.NoError(t, err)
		assert.Equal(t, []int64{1, 2, 3}, locked)
		require.Len(t, changes, 3)
		assert.Equal(t, int64(3), changes[0].ProductID)
		assert.Equal(t, 4, changes[0].NewQuantity)
		assert.Equal(t, int64(1), changes[1].ProductID)
		assert.Equal(t, 1, f.txm.Commits)
	})

	t.Run("collects every failure and rolls back the batch", func(t *testing.T) {
		f := newManagerFixture()
		f.expectLock(1, 5)
		f.expectWrite(1, 4)
		f.products.On("LockByID", mock.Anything, mock.Anything, int64(2)).Return(nil, nil).Once()
		f.expectLock(3, 0)

		_, err := f.manager.BulkAdjust(ctx, []AdjustRequest{
			{ProductID: 3, Delta: -1, Reason: "po", Reference: ref},
			{ProductID: 1, Delta: -1, Reason: "po", Reference: ref},
			{ProductID: 2, Delta: 1, Reason: "po", Reference: ref},
		})

		var batch *model.BatchError
		require.ErrorAs(t, err, &batch)
		require.Len(t, batch.Failures, 2)
		assert.Equal(t, 0, batch.Failures[0].Index)
		assert.Equal(t, int64(3), batch.Failures[0].ProductID)
		assert.True(t, errors.Is(batch.Failures[0].Err, model.ErrInsufficientStock))
		assert.Equal(t, 2, batch.Failures[1].Index)
		assert.True(t, errors.Is(batch.Failures[1].Err, model.ErrNotFound))

		assert.True(t, errors.Is(err, model.ErrInsufficientStock))
		assert.Equal(t, 1, f.txm.Rollbacks)
		assert.Equal(t, 0, f.txm.Commits)
	})

	t.Run("invalid items fail before the transaction", func(t *testing.T) {
		f := newManagerFixture()

		_, err := f.manager.BulkAdjust(ctx, []AdjustRequest{
			{ProductID: 1, Delta: 0, Reason: "po", Reference: ref},
			{ProductID: 2, Delta: 1, Reason: "", Reference: ref},
		})

		var batch *model.BatchError
		require.ErrorAs(t, err, &batch)
		assert.Len(t, batch.Failures, 2)
		assert.Equal(t, 0, f.txm.Commits+f.txm.Rollbacks)
	})

	t.Run("infrastructure error aborts immediately", func(t *testing.T) {
		f := newManagerFixture()
		f.products.On("LockByID", mock.Anything, mock.Anything, int64(1)).Return(nil, errors.New("connection reset")).Once()

		_, err := f.manager.BulkAdjust(ctx, []AdjustRequest{
			{ProductID: 1, Delta: 1, Reason: "po", Reference: ref},
			{ProductID: 2, Delta: 1, Reason: "po", Reference: ref},
		})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "connection reset")
		f.products.AssertNotCalled(t, "LockByID", mock.Anything, mock.Anything, int64(2))
	})

	t.Run("empty batch", func(t *testing.T) {
		f := newManagerFixture()
		_, err := f.manager.BulkAdjust(ctx, nil)
		assert.Equal(t, model.KindValidation, model.KindOf(err))
	})
}

func TestManager_BulkAdjustOnce(t *testing.T) {
	ctx := context.Background()
	ref := model.AdminPurchaseRef{PONumber: "PO-7"}

	t.Run("applies a reference not yet recorded", func(t *testing.T) {
		f := newManagerFixture()
		f.ledger.On("LockReference", mock.Anything, mock.Anything, ref).Return(false, nil).Once()
		f.expectLock(1, 2)
		f.expectWrite(1, 7)

		changes, err := f.manager.BulkAdjustOnce(ctx, ref, []AdjustRequest{
			{ProductID: 1, Delta: 5, Reason: "po", Reference: ref},
		})

		require.NoError(t, err)
		require.Len(t, changes, 1)
		assert.Equal(t, 7, changes[0].NewQuantity)
		assert.Equal(t, 1, f.txm.Commits)
	})

	t.Run("recorded reference applies nothing", func(t *testing.T) {
		f := newManagerFixture()
		f.ledger.On("LockReference", mock.Anything, mock.Anything, ref).Return(true, nil).Once()

		_, err := f.manager.BulkAdjustOnce(ctx, ref, []AdjustRequest{
			{ProductID: 1, Delta: 5, Reason: "po", Reference: ref},
		})

		require.Error(t, err)
		assert.True(t, crdberrors.Is(err, ErrAlreadyRecorded))
		assert.Equal(t, model.KindValidation, model.KindOf(err))
		assert.Equal(t, 1, f.txm.Rollbacks)
		f.products.AssertNotCalled(t, "LockByID", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("items under another reference are rejected", func(t *testing.T) {
		f := newManagerFixture()

		_, err := f.manager.BulkAdjustOnce(ctx, ref, []AdjustRequest{
			{ProductID: 1, Delta: 5, Reason: "po", Reference: model.AdminPurchaseRef{PONumber: "PO-8"}},
		})

		assert.Equal(t, model.KindValidation, model.KindOf(err))
		assert.False(t, crdberrors.Is(err, ErrAlreadyRecorded))
		assert.Equal(t, 0, f.txm.Commits+f.txm.Rollbacks)
	})
}

func TestManager_History(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown product", func(t *testing.T) {
		f := newManagerFixture()
		f.products.On("GetByID", mock.Anything, int64(4)).Return(nil, nil).Once()

		_, err := f.manager.History(ctx, 4, 10, 0)

		assert.Equal(t, model.KindNotFound, model.KindOf(err))
	})

	t.Run("reads the ledger", func(t *testing.T) {
		f := newManagerFixture()
		f.products.On("GetByID", mock.Anything, int64(4)).Return(product(4, 1), nil).Once()
		entries := []model.LedgerEntry{{ProductID: 4, OldQuantity: 0, NewQuantity: 1, Adjustment: 1}}
		f.ledger.On("ListByProduct", mock.Anything, int64(4), 10, 0).Return(entries, nil).Once()

		got, err := f.manager.History(ctx, 4, 10, 0)

		require.NoError(t, err)
		assert.Equal(t, entries, got)
	})
}
