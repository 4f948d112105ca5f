package model

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseReference(t *testing.T) {
	orderID := uuid.New()
	po := "PO-1001"
	orderKey := orderID.String()
	bad := "not-a-uuid"

	tests := []struct {
		name    string
		refType ReferenceType
		key     *string
		want    Reference
		wantErr bool
	}{
		{name: "order", refType: ReferenceOrder, key: &orderKey, want: OrderRef{OrderID: orderID}},
		{name: "return", refType: ReferenceReturn, key: &orderKey, want: ReturnRef{OrderID: orderID}},
		{name: "admin purchase", refType: ReferenceAdminPurchase, key: &po, want: AdminPurchaseRef{PONumber: po}},
		{name: "manual adjustment ignores key", refType: ReferenceAdjustment, key: nil, want: ManualAdjustmentRef{}},
		{name: "order without key", refType: ReferenceOrder, key: nil, wantErr: true},
		{name: "order with malformed key", refType: ReferenceOrder, key: &bad, wantErr: true},
		{name: "purchase without number", refType: ReferenceAdminPurchase, key: nil, wantErr: true},
		{name: "unknown type", refType: ReferenceType("gift"), key: nil, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseReference(tt.refType, tt.key)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrValidation))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.refType, got.Type())
		})
	}
}

func TestReference_KeyRoundTrip(t *testing.T) {
	refs := []Reference{
		OrderRef{OrderID: uuid.New()},
		ReturnRef{OrderID: uuid.New()},
		AdminPurchaseRef{PONumber: "PO-7"},
		ManualAdjustmentRef{},
	}
	for _, ref := range refs {
		parsed, err := ParseReference(ref.Type(), ref.Key())
		require.NoError(t, err)
		assert.Equal(t, ref, parsed)
	}
}

func TestLedgerEntry_Validate(t *testing.T) {
	t.Run("balanced entry", func(t *testing.T) {
		e := LedgerEntry{ProductID: 1, OldQuantity: 5, Adjustment: -3, NewQuantity: 2, Reference: ManualAdjustmentRef{}}
		assert.NoError(t, e.Validate())
	})

	t.Run("unbalanced entry", func(t *testing.T) {
		e := LedgerEntry{ProductID: 1, OldQuantity: 5, Adjustment: -3, NewQuantity: 3, Reference: ManualAdjustmentRef{}}
		assert.ErrorIs(t, e.Validate(), ErrValidation)
	})

	t.Run("negative balance", func(t *testing.T) {
		e := LedgerEntry{ProductID: 1, OldQuantity: 2, Adjustment: -3, NewQuantity: -1, Reference: ManualAdjustmentRef{}}
		assert.ErrorIs(t, e.Validate(), ErrInsufficientStock)
	})

	t.Run("missing reference", func(t *testing.T) {
		e := LedgerEntry{ProductID: 1, OldQuantity: 2, Adjustment: 1, NewQuantity: 3}
		assert.ErrorIs(t, e.Validate(), ErrValidation)
	})
}

func TestLedgerEntry_MarshalJSONFlattensReference(t *testing.T) {
	orderID := uuid.MustParse("0b7e4c1d-2f3a-4b5c-8d9e-0f1a2b3c4d5e")
	raw, err := json.Marshal(LedgerEntry{ProductID: 4, OldQuantity: 5, NewQuantity: 3, Adjustment: -2, Reference: OrderRef{OrderID: orderID}})
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, "order", got["referenceType"])
	assert.Equal(t, orderID.String(), got["referenceId"])
	assert.Equal(t, float64(-2), got["adjustment"])

	raw, err = json.Marshal(LedgerEntry{ProductID: 4, Reference: ManualAdjustmentRef{}})
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"referenceType":"adjustment"`)
	assert.NotContains(t, string(raw), "referenceId")
}
