package handler

import (
	"net/http"
	"strings"

	"shopcore/internal/model"
	"shopcore/internal/promotion"
	"shopcore/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// ValidateCouponRequest asks whether a coupon applies to a customer's cart.
type ValidateCouponRequest struct {
	CustomerID int64  `json:"customerId"`
	Code       string `json:"code"`
}

// ValidateDealRequest asks whether a deal applies to a customer's cart.
type ValidateDealRequest struct {
	CustomerID int64 `json:"customerId"`
}

// PromotionHandler previews coupons and deals against the current cart.
// Nothing is redeemed here; redemption happens at checkout.
type PromotionHandler struct {
	promotions service.PromotionService
	carts      service.CartService
	logger     zerolog.Logger
}

// NewPromotionHandler creates a new promotion handler.
func NewPromotionHandler(promotions service.PromotionService, carts service.CartService, logger zerolog.Logger) *PromotionHandler {
	return &PromotionHandler{
		promotions: promotions,
		carts:      carts,
		logger:     logger.With().Str("handler", "promotion").Logger(),
	}
}

// ValidateCoupon handles POST /api/promotions/coupons/validate.
func (h *PromotionHandler) ValidateCoupon(c *gin.Context) {
	var req ValidateCouponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBadRequest(c, model.ErrCodeInvalidJSON, "invalid request body")
		return
	}
	code := strings.TrimSpace(req.Code)
	if code == "" {
		writeError(c, model.Errorf(model.KindValidation, "coupon code is required"), h.logger)
		return
	}

	h.respond(c, req.CustomerID, func(items []model.CartItem, customerID *int64) (*promotion.Result, error) {
		return h.promotions.ValidateCoupon(c.Request.Context(), code, items, customerID)
	})
}

// ValidateDeal handles POST /api/promotions/deals/:id/validate.
func (h *PromotionHandler) ValidateDeal(c *gin.Context) {
	dealID, err := int64Param(c, "id")
	if err != nil {
		writeError(c, err, h.logger)
		return
	}

	var req ValidateDealRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBadRequest(c, model.ErrCodeInvalidJSON, "invalid request body")
		return
	}

	h.respond(c, req.CustomerID, func(items []model.CartItem, customerID *int64) (*promotion.Result, error) {
		return h.promotions.ValidateDeal(c.Request.Context(), dealID, items, customerID)
	})
}

func (h *PromotionHandler) respond(c *gin.Context, customerID int64, validate func([]model.CartItem, *int64) (*promotion.Result, error)) {
	if customerID <= 0 {
		writeError(c, model.Errorf(model.KindValidation, "customerId must be a positive integer"), h.logger)
		return
	}

	cart, err := h.carts.Get(c.Request.Context(), customerID)
	if err != nil {
		writeError(c, err, h.logger)
		return
	}
	if cart.IsEmpty() {
		writeError(c, model.Errorf(model.KindEmptyCart, "cart of customer %d is empty", customerID), h.logger)
		return
	}

	result, err := validate(cart.Items, &customerID)
	if err != nil {
		writeError(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, result)
}
