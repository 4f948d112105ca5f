package promotion

import (
	"shopcore/internal/model"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// basis is what a rule is evaluated against: the applicable part of a cart.
type basis struct {
	Subtotal decimal.Decimal
	Quantity int
	// GetPrice is the unit price of the free product of a BuyXGetY rule.
	GetPrice decimal.Decimal
}

// DiscountRule is how a promotion turns a cart into a discount. The set of
// rules is closed: Percentage, Fixed and BuyXGetY.
type DiscountRule interface {
	apply(b basis) decimal.Decimal
}

// Percentage takes Value percent of the subtotal, up to Cap when set.
type Percentage struct {
	Value decimal.Decimal
	Cap   *decimal.Decimal
}

func (r Percentage) apply(b basis) decimal.Decimal {
	d := b.Subtotal.Mul(r.Value).Div(hundred)
	if r.Cap != nil && d.GreaterThan(*r.Cap) {
		d = *r.Cap
	}
	return d
}

// Fixed takes a flat amount, never more than the subtotal.
type Fixed struct {
	Value decimal.Decimal
}

func (r Fixed) apply(b basis) decimal.Decimal {
	return decimal.Min(r.Value, b.Subtotal)
}

// BuyXGetY gives GetQty units of GetProductID free for every BuyQty units
// bought, counted over all matching lines together. The free product need not
// be in scope, so the discount is not bounded by the applicable subtotal.
type BuyXGetY struct {
	BuyQty       int
	GetQty       int
	GetProductID int64
}

func (r BuyXGetY) apply(b basis) decimal.Decimal {
	if r.BuyQty <= 0 {
		return decimal.Zero
	}
	sets := b.Quantity / r.BuyQty
	return b.GetPrice.Mul(decimal.NewFromInt(int64(sets * r.GetQty)))
}

// evaluate applies rule and normalises the result: rounded half away from
// zero to cents and never negative. Bounds beyond that belong to the rule.
func evaluate(rule DiscountRule, b basis) decimal.Decimal {
	d := model.RoundMoney(rule.apply(b))
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// RuleForCoupon maps a coupon's discount type to its rule.
func RuleForCoupon(c *model.Coupon) (DiscountRule, error) {
	return ruleFor(c.Type, c.DiscountValue, c.MaximumDiscount)
}

// RuleForDeal maps a deal to its rule.
func RuleForDeal(d *model.Deal) (DiscountRule, error) {
	if d.Type == model.DealBuyXGetY {
		if d.BuyQuantity == nil || d.GetQuantity == nil || d.GetProductID == nil ||
			*d.BuyQuantity <= 0 || *d.GetQuantity <= 0 {
			return nil, model.Errorf(model.KindInvalidPromotion, "deal %d is missing its buy/get terms", d.ID)
		}
		return BuyXGetY{BuyQty: *d.BuyQuantity, GetQty: *d.GetQuantity, GetProductID: *d.GetProductID}, nil
	}
	return ruleFor(d.DiscountType, d.DiscountValue, d.MaximumDiscount)
}

func ruleFor(t model.DiscountType, value decimal.Decimal, limit *decimal.Decimal) (DiscountRule, error) {
	switch t {
	case model.DiscountPercentage:
		if value.IsNegative() || value.GreaterThan(hundred) {
			return nil, model.Errorf(model.KindInvalidPromotion, "percentage discount %s is out of range", value)
		}
		return Percentage{Value: value, Cap: limit}, nil
	case model.DiscountFixed:
		if value.IsNegative() {
			return nil, model.Errorf(model.KindInvalidPromotion, "fixed discount %s is negative", value)
		}
		return Fixed{Value: value}, nil
	default:
		return nil, model.Errorf(model.KindInvalidPromotion, "unknown discount type %q", t)
	}
}
