package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Cart is a read-only snapshot of a customer's cart.
type Cart struct {
	CustomerID int64      `json:"customerId"`
	Items      []CartItem `json:"items"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

// CartItem is one cart line. Lines without a ProductID are dropship items
// identified by ExternalCode; they are priced but carry no stock.
type CartItem struct {
	ProductID     *int64          `json:"productId,omitempty"`
	ExternalCode  string          `json:"externalCode,omitempty"`
	Name          string          `json:"name"`
	Quantity      int             `json:"quantity"`
	CapturedPrice decimal.Decimal `json:"capturedPrice"`
}

// LineTotal is the captured price times quantity.
func (i CartItem) LineTotal() decimal.Decimal {
	return i.CapturedPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// IsEmpty reports whether the cart has no lines.
func (c *Cart) IsEmpty() bool {
	return c == nil || len(c.Items) == 0
}

// ShopSettings are the site-wide pricing scalars used at checkout.
type ShopSettings struct {
	ShippingRate          decimal.Decimal
	FreeShippingThreshold decimal.Decimal
	TaxRate               decimal.Decimal
	TaxInclusive          bool
}
