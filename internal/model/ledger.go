package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ReferenceType is the persisted discriminator of a ledger reference.
type ReferenceType string

const (
	ReferenceOrder         ReferenceType = "order"
	ReferenceAdjustment    ReferenceType = "adjustment"
	ReferenceAdminPurchase ReferenceType = "admin_purchase"
	ReferenceReturn        ReferenceType = "return"
)

// Reference ties a stock movement to the business event that caused it.
// The set of implementations is closed: OrderRef, AdminPurchaseRef,
// ManualAdjustmentRef and ReturnRef.
type Reference interface {
	Type() ReferenceType
	// Key is the persisted reference_id, nil for references without payload.
	Key() *string
	isReference()
}

// OrderRef references an order reservation or release.
type OrderRef struct {
	OrderID uuid.UUID
}

func (OrderRef) Type() ReferenceType { return ReferenceOrder }
func (r OrderRef) Key() *string {
	s := r.OrderID.String()
	return &s
}
func (OrderRef) isReference() {}

// AdminPurchaseRef references a purchase order received into stock.
type AdminPurchaseRef struct {
	PONumber string
}

func (AdminPurchaseRef) Type() ReferenceType { return ReferenceAdminPurchase }
func (r AdminPurchaseRef) Key() *string {
	s := r.PONumber
	return &s
}
func (AdminPurchaseRef) isReference() {}

// ManualAdjustmentRef marks an operator correction with no external document.
type ManualAdjustmentRef struct{}

func (ManualAdjustmentRef) Type() ReferenceType { return ReferenceAdjustment }
func (ManualAdjustmentRef) Key() *string        { return nil }
func (ManualAdjustmentRef) isReference()        {}

// ReturnRef references goods returned against an order.
type ReturnRef struct {
	OrderID uuid.UUID
}

func (ReturnRef) Type() ReferenceType { return ReferenceReturn }
func (r ReturnRef) Key() *string {
	s := r.OrderID.String()
	return &s
}
func (ReturnRef) isReference() {}

// ParseReference rebuilds a Reference from its persisted columns.
func ParseReference(t ReferenceType, key *string) (Reference, error) {
	switch t {
	case ReferenceAdjustment:
		return ManualAdjustmentRef{}, nil
	case ReferenceAdminPurchase:
		if key == nil || *key == "" {
			return nil, Errorf(KindValidation, "admin_purchase reference requires a purchase order number")
		}
		return AdminPurchaseRef{PONumber: *key}, nil
	case ReferenceOrder, ReferenceReturn:
		if key == nil {
			return nil, Errorf(KindValidation, "%s reference requires an order id", t)
		}
		id, err := uuid.Parse(*key)
		if err != nil {
			return nil, Errorf(KindValidation, "%s reference has malformed order id %q", t, *key)
		}
		if t == ReferenceOrder {
			return OrderRef{OrderID: id}, nil
		}
		return ReturnRef{OrderID: id}, nil
	default:
		return nil, Errorf(KindValidation, "unknown reference type %q", t)
	}
}

// LedgerEntry is one immutable stock movement.
type LedgerEntry struct {
	ID          uuid.UUID `json:"id"`
	ProductID   int64     `json:"productId"`
	OldQuantity int       `json:"oldQuantity"`
	NewQuantity int       `json:"newQuantity"`
	Adjustment  int       `json:"adjustment"`
	Reason      string    `json:"reason"`
	Reference   Reference `json:"-"`
	ActorID     *int64    `json:"actorId,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// MarshalJSON flattens the reference into referenceType and referenceId.
func (e LedgerEntry) MarshalJSON() ([]byte, error) {
	type plain LedgerEntry
	out := struct {
		plain
		ReferenceType ReferenceType `json:"referenceType,omitempty"`
		ReferenceID   *string       `json:"referenceId,omitempty"`
	}{plain: plain(e)}
	if e.Reference != nil {
		out.ReferenceType = e.Reference.Type()
		out.ReferenceID = e.Reference.Key()
	}
	return json.Marshal(out)
}

// Validate checks the balance invariants of the entry.
func (e *LedgerEntry) Validate() error {
	if e.NewQuantity != e.OldQuantity+e.Adjustment {
		return Errorf(KindValidation, "ledger entry for product %d does not balance: %d %+d != %d",
			e.ProductID, e.OldQuantity, e.Adjustment, e.NewQuantity)
	}
	if e.NewQuantity < 0 {
		return Errorf(KindInsufficientStock, "ledger entry for product %d would leave %d in stock",
			e.ProductID, e.NewQuantity)
	}
	if e.Reference == nil {
		return Errorf(KindValidation, "ledger entry for product %d has no reference", e.ProductID)
	}
	return nil
}

// StockChange is the outcome of a successful adjustment.
type StockChange struct {
	ProductID     int64     `json:"productId"`
	OldQuantity   int       `json:"oldQuantity"`
	NewQuantity   int       `json:"newQuantity"`
	LedgerEntryID uuid.UUID `json:"ledgerEntryId"`
}
