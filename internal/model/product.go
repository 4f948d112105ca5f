package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is a catalogue entry. StockQuantity is only ever written through
// the stock manager.
type Product struct {
	ID            int64           `json:"id" db:"id"`
	SKU           string          `json:"sku" db:"sku"`
	Name          string          `json:"name" db:"name"`
	Price         decimal.Decimal `json:"price" db:"price"`
	StockQuantity int             `json:"stockQuantity" db:"stock_quantity"`
	IsActive      bool            `json:"isActive" db:"is_active"`
	CategoryID    *int64          `json:"categoryId,omitempty" db:"category_id"`
	CreatedAt     time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time       `json:"updatedAt" db:"updated_at"`
}

// InCategory reports whether the product belongs to one of the given categories.
func (p *Product) InCategory(ids []int64) bool {
	if p.CategoryID == nil {
		return false
	}
	for _, id := range ids {
		if id == *p.CategoryID {
			return true
		}
	}
	return false
}

// RoundMoney rounds an amount to cents.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
