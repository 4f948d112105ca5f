// Package promotion evaluates coupons and deals against a cart. Validation is
// read-only; a redemption is only counted by RecordUsage inside the order
// transaction.
package promotion

import (
	"context"
	"time"

	"shopcore/internal/clock"
	"shopcore/internal/metrics"
	"shopcore/internal/model"
	"shopcore/internal/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Result is the outcome of a successful validation.
type Result struct {
	Kind               model.PromotionKind `json:"kind"`
	PromotionID        int64               `json:"promotionId"`
	Label              string              `json:"label"`
	Subtotal           decimal.Decimal     `json:"subtotal"`
	DiscountAmount     decimal.Decimal     `json:"discountAmount"`
	TotalAfterDiscount decimal.Decimal     `json:"totalAfterDiscount"`
	ApplicableItems    []model.CartItem    `json:"applicableItems"`
	Coupon             *model.Coupon       `json:"coupon,omitempty"`
	Deal               *model.Deal         `json:"deal,omitempty"`
}

// terms is the part of a coupon or deal the shared algorithm needs.
type terms struct {
	kind        model.PromotionKind
	id          int64
	label       string
	active      bool
	validFrom   *time.Time
	validUntil  *time.Time
	usageLimit  *int
	usageCount  int
	perCustomer *int
	minimum     *decimal.Decimal
	rule        DiscountRule
	applies     func(item model.CartItem, p *model.Product) bool
}

// Engine validates promotions and records their redemptions.
type Engine struct {
	promotions repository.PromotionRepository
	products   repository.ProductRepository
	clock      clock.Clock
	metrics    *metrics.Metrics
	logger     zerolog.Logger
}

// NewEngine creates a discount engine.
func NewEngine(
	promotions repository.PromotionRepository,
	products repository.ProductRepository,
	clk clock.Clock,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *Engine {
	return &Engine{
		promotions: promotions,
		products:   products,
		clock:      clk,
		metrics:    m,
		logger:     logger.With().Str("component", "discount_engine").Logger(),
	}
}

// ValidateCoupon evaluates a coupon code against items.
func (e *Engine) ValidateCoupon(ctx context.Context, code string, items []model.CartItem, customerID *int64) (*Result, error) {
	if code == "" {
		return nil, model.Errorf(model.KindValidation, "coupon code is required")
	}

	c, err := e.promotions.GetCouponByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, model.Errorf(model.KindNotFound, "coupon %q not found", code)
	}

	rule, err := RuleForCoupon(c)
	if err != nil {
		return nil, err
	}

	t := terms{
		kind:        model.PromotionCoupon,
		id:          c.ID,
		label:       c.Code,
		active:      c.IsActive,
		validFrom:   c.ValidFrom,
		validUntil:  c.ValidUntil,
		usageLimit:  c.UsageLimit,
		usageCount:  c.UsageCount,
		perCustomer: c.UsageLimitPerCustomer,
		minimum:     c.MinimumPurchase,
		rule:        rule,
		applies:     scopeFor(c.ApplicableProducts, c.ApplicableCategories),
	}

	res, err := e.validate(ctx, t, items, customerID)
	if err != nil {
		e.logger.Debug().Err(err).Str("coupon_code", code).Msg("coupon rejected")
		return nil, err
	}
	res.Coupon = c
	return res, nil
}

// ValidateDeal evaluates a deal against items.
func (e *Engine) ValidateDeal(ctx context.Context, id int64, items []model.CartItem, customerID *int64) (*Result, error) {
	d, err := e.promotions.GetDealByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, model.Errorf(model.KindNotFound, "deal %d not found", id)
	}

	if d.Type == model.DealFlash && d.ValidUntil == nil {
		return nil, model.Errorf(model.KindInvalidPromotion, "flash deal %d has no end time", d.ID)
	}

	rule, err := RuleForDeal(d)
	if err != nil {
		return nil, err
	}

	t := terms{
		kind:        model.PromotionDeal,
		id:          d.ID,
		label:       d.Name,
		active:      d.IsActive,
		validFrom:   d.ValidFrom,
		validUntil:  d.ValidUntil,
		usageLimit:  d.UsageLimit,
		usageCount:  d.UsageCount,
		perCustomer: d.UsageLimitPerCustomer,
		minimum:     d.MinimumPurchaseAmount,
		rule:        rule,
		applies:     dealScope(d),
	}

	res, err := e.validate(ctx, t, items, customerID)
	if err != nil {
		e.logger.Debug().Err(err).Int64("deal_id", id).Msg("deal rejected")
		return nil, err
	}
	res.Deal = d
	return res, nil
}

func (e *Engine) validate(ctx context.Context, t terms, items []model.CartItem, customerID *int64) (*Result, error) {
	if !t.active {
		return nil, model.Errorf(model.KindInvalidPromotion, "%s %q is not active", t.kind, t.label)
	}
	now := e.clock.Now()
	if t.validFrom != nil && now.Before(*t.validFrom) {
		return nil, model.Errorf(model.KindInvalidPromotion, "%s %q is not valid yet", t.kind, t.label)
	}
	if t.validUntil != nil && now.After(*t.validUntil) {
		return nil, model.Errorf(model.KindInvalidPromotion, "%s %q has expired", t.kind, t.label)
	}
	if t.usageLimit != nil && t.usageCount >= *t.usageLimit {
		return nil, model.Errorf(model.KindInvalidPromotion, "%s %q has reached its usage limit", t.kind, t.label)
	}

	if customerID != nil && t.perCustomer != nil {
		used, err := e.promotions.CountCustomerUsage(ctx, t.kind, t.id, *customerID)
		if err != nil {
			return nil, err
		}
		if used >= *t.perCustomer {
			return nil, model.Errorf(model.KindUnauthorized, "customer %d has already used %s %q", *customerID, t.kind, t.label)
		}
	}

	catalog, err := e.catalog(ctx, items)
	if err != nil {
		return nil, err
	}

	var (
		applicable []model.CartItem
		b          basis
	)
	for _, item := range items {
		var p *model.Product
		if item.ProductID != nil {
			p = catalog[*item.ProductID]
		}
		if !t.applies(item, p) {
			continue
		}
		applicable = append(applicable, item)
		b.Subtotal = b.Subtotal.Add(item.LineTotal())
		b.Quantity += item.Quantity
	}
	if len(applicable) == 0 {
		return nil, model.Errorf(model.KindInvalidPromotion, "%s %q does not apply to any item in the cart", t.kind, t.label)
	}

	if t.minimum != nil && b.Subtotal.LessThan(*t.minimum) {
		return nil, model.Errorf(model.KindBelowMinimumPurchase,
			"%s %q requires a minimum purchase of %s, cart has %s", t.kind, t.label, t.minimum.StringFixed(2), b.Subtotal.StringFixed(2))
	}

	if bxgy, ok := t.rule.(BuyXGetY); ok {
		price, err := e.getPrice(ctx, bxgy.GetProductID, items, catalog)
		if err != nil {
			return nil, err
		}
		b.GetPrice = price
	}

	discount := evaluate(t.rule, b)
	return &Result{
		Kind:               t.kind,
		PromotionID:        t.id,
		Label:              t.label,
		Subtotal:           b.Subtotal,
		DiscountAmount:     discount,
		TotalAfterDiscount: decimal.Max(b.Subtotal.Sub(discount), decimal.Zero),
		ApplicableItems:    applicable,
	}, nil
}

// catalog loads the products referenced by items.
func (e *Engine) catalog(ctx context.Context, items []model.CartItem) (map[int64]*model.Product, error) {
	ids := make([]int64, 0, len(items))
	for _, item := range items {
		if item.ProductID != nil {
			ids = append(ids, *item.ProductID)
		}
	}
	products, err := e.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]*model.Product, len(products))
	for i := range products {
		byID[products[i].ID] = &products[i]
	}
	return byID, nil
}

// getPrice is the captured cart price of the free product, or its catalogue
// price when it is not in the cart.
func (e *Engine) getPrice(ctx context.Context, productID int64, items []model.CartItem, catalog map[int64]*model.Product) (decimal.Decimal, error) {
	for _, item := range items {
		if item.ProductID != nil && *item.ProductID == productID {
			return item.CapturedPrice, nil
		}
	}
	if p, ok := catalog[productID]; ok {
		return p.Price, nil
	}
	p, err := e.products.GetByID(ctx, productID)
	if err != nil {
		return decimal.Zero, err
	}
	if p == nil {
		return decimal.Zero, model.Errorf(model.KindInvalidPromotion, "free product %d of the deal no longer exists", productID)
	}
	return p.Price, nil
}

// RecordUsage counts one redemption of res for an order. It locks the
// promotion row, re-checks the global and per-customer limits, increments
// usage_count by one and writes a usage record, all inside tx.
func (e *Engine) RecordUsage(ctx context.Context, tx pgx.Tx, res *Result, orderID uuid.UUID, customerID *int64) (*model.UsageRecord, error) {
	var (
		usageLimit  *int
		usageCount  int
		perCustomer *int
	)
	switch res.Kind {
	case model.PromotionCoupon:
		c, err := e.promotions.LockCoupon(ctx, tx, res.PromotionID)
		if err != nil {
			return nil, err
		}
		if c == nil {
			return nil, model.Errorf(model.KindNotFound, "coupon %d not found", res.PromotionID)
		}
		usageLimit, usageCount, perCustomer = c.UsageLimit, c.UsageCount, c.UsageLimitPerCustomer
	case model.PromotionDeal:
		d, err := e.promotions.LockDeal(ctx, tx, res.PromotionID)
		if err != nil {
			return nil, err
		}
		if d == nil {
			return nil, model.Errorf(model.KindNotFound, "deal %d not found", res.PromotionID)
		}
		usageLimit, usageCount, perCustomer = d.UsageLimit, d.UsageCount, d.UsageLimitPerCustomer
	default:
		return nil, model.Errorf(model.KindValidation, "unknown promotion kind %q", res.Kind)
	}

	if usageLimit != nil && usageCount >= *usageLimit {
		return nil, model.Errorf(model.KindInvalidPromotion, "%s %q has reached its usage limit", res.Kind, res.Label)
	}
	if customerID != nil && perCustomer != nil {
		used, err := e.promotions.CountCustomerUsageTx(ctx, tx, res.Kind, res.PromotionID, *customerID)
		if err != nil {
			return nil, err
		}
		if used >= *perCustomer {
			return nil, model.Errorf(model.KindUnauthorized, "customer %d has already used %s %q", *customerID, res.Kind, res.Label)
		}
	}

	if _, err := e.promotions.IncrementUsage(ctx, tx, res.Kind, res.PromotionID); err != nil {
		return nil, err
	}

	record := &model.UsageRecord{
		ID:                  uuid.New(),
		Kind:                res.Kind,
		PromotionID:         res.PromotionID,
		OrderID:             orderID,
		CustomerID:          customerID,
		DiscountAmount:      res.DiscountAmount,
		TotalBeforeDiscount: res.Subtotal,
		TotalAfterDiscount:  res.TotalAfterDiscount,
		CreatedAt:           e.clock.Now(),
	}
	if err := e.promotions.InsertUsage(ctx, tx, record); err != nil {
		return nil, err
	}

	e.metrics.PromotionRedemptions.WithLabelValues(string(res.Kind)).Inc()
	e.logger.Info().
		Str("kind", string(res.Kind)).
		Int64("promotion_id", res.PromotionID).
		Str("order_id", orderID.String()).
		Str("discount", res.DiscountAmount.StringFixed(2)).
		Msg("promotion redeemed")

	return record, nil
}

// scopeFor matches items by explicit product ids or category ids. With
// neither set every item applies.
func scopeFor(productIDs, categoryIDs []int64) func(model.CartItem, *model.Product) bool {
	if len(productIDs) == 0 && len(categoryIDs) == 0 {
		return applyAll
	}
	return matching(productIDs, categoryIDs)
}

// matching never applies to dropship lines, which carry no product.
func matching(productIDs, categoryIDs []int64) func(model.CartItem, *model.Product) bool {
	return func(item model.CartItem, p *model.Product) bool {
		if item.ProductID == nil {
			return false
		}
		for _, id := range productIDs {
			if id == *item.ProductID {
				return true
			}
		}
		return p != nil && p.InCategory(categoryIDs)
	}
}

func dealScope(d *model.Deal) func(model.CartItem, *model.Product) bool {
	switch d.Type {
	case model.DealProduct:
		return matching(d.ProductIDs, nil)
	case model.DealCategory:
		return matching(nil, d.CategoryIDs)
	case model.DealBuyXGetY:
		return scopeFor(d.ProductIDs, nil)
	default:
		return applyAll
	}
}

func applyAll(model.CartItem, *model.Product) bool { return true }
