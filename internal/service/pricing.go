package service

import (
	"context"

	"shopcore/internal/model"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// staticSettings serves fixed settings, normally read from the environment.
type staticSettings struct {
	settings model.ShopSettings
}

// NewStaticSettings returns a provider that always yields s.
func NewStaticSettings(s model.ShopSettings) SettingsProvider {
	return staticSettings{settings: s}
}

func (p staticSettings) Settings(context.Context) (model.ShopSettings, error) {
	return p.settings, nil
}

// Totals are the money figures of an order.
type Totals struct {
	Subtotal       decimal.Decimal
	DiscountAmount decimal.Decimal
	ShippingCost   decimal.Decimal
	TaxAmount      decimal.Decimal
	TotalAmount    decimal.Decimal
}

// ShippingCost is the flat rate, waived when the subtotal reaches a positive
// free shipping threshold.
func ShippingCost(subtotal decimal.Decimal, s model.ShopSettings) decimal.Decimal {
	if s.FreeShippingThreshold.IsPositive() && subtotal.GreaterThanOrEqual(s.FreeShippingThreshold) {
		return decimal.Zero
	}
	return model.RoundMoney(s.ShippingRate)
}

// TaxAmount is the tax contained in subtotal when prices include tax, or the
// tax to add on top otherwise.
func TaxAmount(subtotal decimal.Decimal, s model.ShopSettings) decimal.Decimal {
	if !s.TaxRate.IsPositive() {
		return decimal.Zero
	}
	if s.TaxInclusive {
		return model.RoundMoney(subtotal.Mul(s.TaxRate).Div(hundred.Add(s.TaxRate)))
	}
	return model.RoundMoney(subtotal.Mul(s.TaxRate).Div(hundred))
}

// ComputeTotals prices a set of lines. Shipping and tax are computed on the
// undiscounted subtotal; discount is capped at the subtotal.
func ComputeTotals(items []model.CartItem, discount decimal.Decimal, s model.ShopSettings) Totals {
	subtotal := decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(item.LineTotal())
	}
	subtotal = model.RoundMoney(subtotal)

	discount = model.RoundMoney(decimal.Min(decimal.Max(discount, decimal.Zero), subtotal))

	t := Totals{
		Subtotal:       subtotal,
		DiscountAmount: discount,
		ShippingCost:   ShippingCost(subtotal, s),
		TaxAmount:      TaxAmount(subtotal, s),
	}

	total := subtotal.Sub(discount).Add(t.ShippingCost)
	if !s.TaxInclusive {
		total = total.Add(t.TaxAmount)
	}
	t.TotalAmount = model.RoundMoney(total)
	return t
}
