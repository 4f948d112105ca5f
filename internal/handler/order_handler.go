package handler

import (
	"net/http"

	"shopcore/internal/model"
	"shopcore/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// CreateOrderRequest checks out a customer's cart.
type CreateOrderRequest struct {
	CustomerID int64 `json:"customerId"`
	model.CheckoutRequest
}

// UpdateStatusRequest moves an order through its lifecycle.
type UpdateStatusRequest struct {
	Status model.OrderStatus `json:"status"`
}

// OrderHandler handles order-related HTTP requests.
type OrderHandler struct {
	service service.OrderService
	logger  zerolog.Logger
}

// NewOrderHandler creates a new order handler.
func NewOrderHandler(service service.OrderService, logger zerolog.Logger) *OrderHandler {
	return &OrderHandler{
		service: service,
		logger:  logger.With().Str("handler", "order").Logger(),
	}
}

// Create handles POST /api/orders requests.
func (h *OrderHandler) Create(c *gin.Context) {
	actor, err := actorID(c)
	if err != nil {
		writeError(c, err, h.logger)
		return
	}

	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBadRequest(c, model.ErrCodeInvalidJSON, "invalid request body")
		return
	}
	req.ActorID = actor

	order, err := h.service.CreateFromCart(c.Request.Context(), req.CustomerID, req.CheckoutRequest)
	if err != nil {
		writeError(c, err, h.logger)
		return
	}

	c.JSON(http.StatusCreated, order)
}

// GetByID handles GET /api/orders/:id requests.
func (h *OrderHandler) GetByID(c *gin.Context) {
	id, err := uuidParam(c, "id")
	if err != nil {
		writeError(c, err, h.logger)
		return
	}

	order, err := h.service.GetByID(c.Request.Context(), id)
	if err != nil {
		writeError(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, order)
}

// UpdateStatus handles PATCH /api/orders/:id/status.
func (h *OrderHandler) UpdateStatus(c *gin.Context) {
	id, err := uuidParam(c, "id")
	if err != nil {
		writeError(c, err, h.logger)
		return
	}
	actor, err := actorID(c)
	if err != nil {
		writeError(c, err, h.logger)
		return
	}

	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBadRequest(c, model.ErrCodeInvalidJSON, "invalid request body")
		return
	}

	order, err := h.service.Transition(c.Request.Context(), id, req.Status, actor)
	if err != nil {
		writeError(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, order)
}

// Cancel handles POST /api/orders/:id/cancel.
func (h *OrderHandler) Cancel(c *gin.Context) {
	id, err := uuidParam(c, "id")
	if err != nil {
		writeError(c, err, h.logger)
		return
	}
	actor, err := actorID(c)
	if err != nil {
		writeError(c, err, h.logger)
		return
	}

	order, err := h.service.Cancel(c.Request.Context(), id, actor)
	if err != nil {
		writeError(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, order)
}

// Delete handles DELETE /api/orders/:id.
func (h *OrderHandler) Delete(c *gin.Context) {
	id, err := uuidParam(c, "id")
	if err != nil {
		writeError(c, err, h.logger)
		return
	}
	actor, err := actorID(c)
	if err != nil {
		writeError(c, err, h.logger)
		return
	}

	if err := h.service.Delete(c.Request.Context(), id, actor); err != nil {
		writeError(c, err, h.logger)
		return
	}

	c.Status(http.StatusNoContent)
}
