package handler

import (
	"net/http"

	"shopcore/internal/cart"
	"shopcore/internal/model"
	"shopcore/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// CartHandler handles customer carts.
type CartHandler struct {
	service service.CartService
	logger  zerolog.Logger
}

// NewCartHandler creates a new cart handler.
func NewCartHandler(service service.CartService, logger zerolog.Logger) *CartHandler {
	return &CartHandler{
		service: service,
		logger:  logger.With().Str("handler", "cart").Logger(),
	}
}

// Get handles GET /api/carts/:customerId.
func (h *CartHandler) Get(c *gin.Context) {
	customerID, err := int64Param(c, "customerId")
	if err != nil {
		writeError(c, err, h.logger)
		return
	}

	customerCart, err := h.service.Get(c.Request.Context(), customerID)
	if err != nil {
		writeError(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, customerCart)
}

// AddItem handles POST /api/carts/:customerId/items.
func (h *CartHandler) AddItem(c *gin.Context) {
	customerID, err := int64Param(c, "customerId")
	if err != nil {
		writeError(c, err, h.logger)
		return
	}

	var req cart.AddItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBadRequest(c, model.ErrCodeInvalidJSON, "invalid request body")
		return
	}

	updated, err := h.service.AddItem(c.Request.Context(), customerID, req)
	if err != nil {
		writeError(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, updated)
}

// RemoveItem handles DELETE /api/carts/:customerId/items/:productId.
func (h *CartHandler) RemoveItem(c *gin.Context) {
	customerID, err := int64Param(c, "customerId")
	if err != nil {
		writeError(c, err, h.logger)
		return
	}
	productID, err := int64Param(c, "productId")
	if err != nil {
		writeError(c, err, h.logger)
		return
	}

	updated, err := h.service.RemoveItem(c.Request.Context(), customerID, productID)
	if err != nil {
		writeError(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, updated)
}

// Clear handles DELETE /api/carts/:customerId.
func (h *CartHandler) Clear(c *gin.Context) {
	customerID, err := int64Param(c, "customerId")
	if err != nil {
		writeError(c, err, h.logger)
		return
	}

	if err := h.service.Clear(c.Request.Context(), customerID); err != nil {
		writeError(c, err, h.logger)
		return
	}

	c.Status(http.StatusNoContent)
}
