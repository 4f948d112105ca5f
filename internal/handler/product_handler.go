package handler

import (
	"net/http"

	"shopcore/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// ProductHandler handles product-related HTTP requests.
type ProductHandler struct {
	service service.ProductService
	logger  zerolog.Logger
}

// NewProductHandler creates a new product handler.
func NewProductHandler(service service.ProductService, logger zerolog.Logger) *ProductHandler {
	return &ProductHandler{
		service: service,
		logger:  logger.With().Str("handler", "product").Logger(),
	}
}

// GetAll handles GET /api/products requests with pagination.
func (h *ProductHandler) GetAll(c *gin.Context) {
	page, err := pagination(c)
	if err != nil {
		writeError(c, err, h.logger)
		return
	}

	products, err := h.service.GetAll(c.Request.Context(), page)
	if err != nil {
		writeError(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, products)
}

// GetByID handles GET /api/products/:id requests.
func (h *ProductHandler) GetByID(c *gin.Context) {
	id, err := int64Param(c, "id")
	if err != nil {
		writeError(c, err, h.logger)
		return
	}

	product, err := h.service.GetByID(c.Request.Context(), id)
	if err != nil {
		writeError(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, product)
}
