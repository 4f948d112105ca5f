package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderStatus is a state of the order lifecycle.
type OrderStatus string

const (
	StatusPending    OrderStatus = "pending"
	StatusProcessing OrderStatus = "processing"
	StatusShipped    OrderStatus = "shipped"
	StatusDelivered  OrderStatus = "delivered"
	StatusCancelled  OrderStatus = "cancelled"
)

var transitions = map[OrderStatus][]OrderStatus{
	StatusPending:    {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusShipped, StatusCancelled},
	StatusShipped:    {StatusDelivered, StatusCancelled},
}

// Valid reports whether s is a known status.
func (s OrderStatus) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether no transition leaves s.
func (s OrderStatus) IsTerminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// CanTransitionTo reports whether moving from s to next is legal.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Order is a placed customer order.
type Order struct {
	ID              uuid.UUID       `json:"id" db:"id"`
	OrderNumber     string          `json:"orderNumber" db:"order_number"`
	CustomerID      int64           `json:"customerId" db:"customer_id"`
	Subtotal        decimal.Decimal `json:"subtotal" db:"subtotal"`
	DiscountAmount  decimal.Decimal `json:"discountAmount" db:"discount_amount"`
	ShippingCost    decimal.Decimal `json:"shippingCost" db:"shipping_cost"`
	TaxAmount       decimal.Decimal `json:"taxAmount" db:"tax_amount"`
	TotalAmount     decimal.Decimal `json:"totalAmount" db:"total_amount"`
	Status          OrderStatus     `json:"status" db:"status"`
	CouponID        *int64          `json:"couponId,omitempty" db:"coupon_id"`
	ShippingAddress string          `json:"shippingAddress" db:"shipping_address"`
	Notes           string          `json:"notes,omitempty" db:"notes"`
	CreatedBy       *int64          `json:"createdBy,omitempty" db:"created_by"`
	Items           []OrderItem     `json:"items"`
	DealUsages      []UsageRecord   `json:"dealUsages,omitempty"`
	CreatedAt       time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt       time.Time       `json:"updatedAt" db:"updated_at"`
}

// OrderItem is a priced snapshot of a cart line at purchase time.
type OrderItem struct {
	ID           uuid.UUID       `json:"id" db:"id"`
	OrderID      uuid.UUID       `json:"-" db:"order_id"`
	ProductID    *int64          `json:"productId,omitempty" db:"product_id"`
	ExternalCode string          `json:"externalCode,omitempty" db:"external_code"`
	ProductName  string          `json:"productName" db:"product_name"`
	Quantity     int             `json:"quantity" db:"quantity"`
	UnitPrice    decimal.Decimal `json:"unitPrice" db:"unit_price"`
	LineTotal    decimal.Decimal `json:"lineTotal" db:"line_total"`
}

// StockedQuantities sums item quantities per bound product. Dropship lines
// are skipped.
func (o *Order) StockedQuantities() map[int64]int {
	qty := make(map[int64]int)
	for _, item := range o.Items {
		if item.ProductID == nil {
			continue
		}
		qty[*item.ProductID] += item.Quantity
	}
	return qty
}

// CheckoutRequest carries the caller supplied part of a checkout.
type CheckoutRequest struct {
	ShippingAddress string  `json:"shippingAddress"`
	Notes           string  `json:"notes,omitempty"`
	CouponCode      *string `json:"couponCode,omitempty"`
	DealIDs         []int64 `json:"dealIds,omitempty"`
	ActorID         *int64  `json:"-"`
}
