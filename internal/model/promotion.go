package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PromotionKind distinguishes coupons from deals.
type PromotionKind string

const (
	PromotionCoupon PromotionKind = "coupon"
	PromotionDeal   PromotionKind = "deal"
)

// DiscountType is how a promotion's value is applied.
type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

// DealType scopes a deal to part of the cart or to a special rule.
type DealType string

const (
	DealProduct         DealType = "product"
	DealCategory        DealType = "category"
	DealFlash           DealType = "flash"
	DealBuyXGetY        DealType = "buy_x_get_y"
	DealMinimumPurchase DealType = "minimum_purchase"
)

// Coupon is a code-redeemed promotion.
type Coupon struct {
	ID                    int64            `json:"id"`
	Code                  string           `json:"code"`
	Type                  DiscountType     `json:"type"`
	DiscountValue         decimal.Decimal  `json:"discountValue"`
	MinimumPurchase       *decimal.Decimal `json:"minimumPurchase,omitempty"`
	MaximumDiscount       *decimal.Decimal `json:"maximumDiscount,omitempty"`
	UsageLimit            *int             `json:"usageLimit,omitempty"`
	UsageLimitPerCustomer *int             `json:"usageLimitPerCustomer,omitempty"`
	UsageCount            int              `json:"usageCount"`
	ValidFrom             *time.Time       `json:"validFrom,omitempty"`
	ValidUntil            *time.Time       `json:"validUntil,omitempty"`
	ApplicableProducts    []int64          `json:"applicableProducts"`
	ApplicableCategories  []int64          `json:"applicableCategories"`
	IsActive              bool             `json:"isActive"`
	CreatedAt             time.Time        `json:"createdAt"`
	UpdatedAt             time.Time        `json:"updatedAt"`
}

// Deal is an automatically offered promotion.
type Deal struct {
	ID                    int64            `json:"id"`
	Name                  string           `json:"name"`
	Type                  DealType         `json:"type"`
	DiscountType          DiscountType     `json:"discountType"`
	DiscountValue         decimal.Decimal  `json:"discountValue"`
	MinimumPurchaseAmount *decimal.Decimal `json:"minimumPurchaseAmount,omitempty"`
	MaximumDiscount       *decimal.Decimal `json:"maximumDiscount,omitempty"`
	BuyQuantity           *int             `json:"buyQuantity,omitempty"`
	GetQuantity           *int             `json:"getQuantity,omitempty"`
	GetProductID          *int64           `json:"getProductId,omitempty"`
	UsageLimit            *int             `json:"usageLimit,omitempty"`
	UsageLimitPerCustomer *int             `json:"usageLimitPerCustomer,omitempty"`
	UsageCount            int              `json:"usageCount"`
	ValidFrom             *time.Time       `json:"validFrom,omitempty"`
	ValidUntil            *time.Time       `json:"validUntil,omitempty"`
	ProductIDs            []int64          `json:"productIds"`
	CategoryIDs           []int64          `json:"categoryIds"`
	IsActive              bool             `json:"isActive"`
	CreatedAt             time.Time        `json:"createdAt"`
	UpdatedAt             time.Time        `json:"updatedAt"`
}

// UsageRecord is one redemption of a coupon or deal by an order.
type UsageRecord struct {
	ID                  uuid.UUID       `json:"id"`
	Kind                PromotionKind   `json:"kind"`
	PromotionID         int64           `json:"promotionId"`
	OrderID             uuid.UUID       `json:"orderId"`
	CustomerID          *int64          `json:"customerId,omitempty"`
	DiscountAmount      decimal.Decimal `json:"discountAmount"`
	TotalBeforeDiscount decimal.Decimal `json:"totalBeforeDiscount"`
	TotalAfterDiscount  decimal.Decimal `json:"totalAfterDiscount"`
	CreatedAt           time.Time       `json:"createdAt"`
}
