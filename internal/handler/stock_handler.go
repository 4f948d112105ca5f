package handler

import (
	"net/http"
	"strings"

	"shopcore/internal/model"
	"shopcore/internal/service"
	"shopcore/internal/stock"

	"github.com/gin-gonic/gin"
	"github.com/jinzhu/copier"
	"github.com/rs/zerolog"
)

// AdjustStockRequest is the body of a single stock movement.
type AdjustStockRequest struct {
	Delta         int                 `json:"delta"`
	Reason        string              `json:"reason"`
	ReferenceType model.ReferenceType `json:"referenceType,omitempty"`
	ReferenceID   string              `json:"referenceId,omitempty"`
}

// BulkAdjustItem is one line of a bulk adjustment.
type BulkAdjustItem struct {
	ProductID     int64               `json:"productId"`
	Delta         int                 `json:"delta"`
	Reason        string              `json:"reason"`
	ReferenceType model.ReferenceType `json:"referenceType,omitempty"`
	ReferenceID   string              `json:"referenceId,omitempty"`
}

// BulkAdjustRequest is the body of POST /api/stock/bulk.
type BulkAdjustRequest struct {
	Items []BulkAdjustItem `json:"items"`
}

// SetStockRequest is the body of a stock count.
type SetStockRequest struct {
	Quantity *int   `json:"quantity"`
	Reason   string `json:"reason"`
}

// ImportRequest names purchase order files to receive.
type ImportRequest struct {
	Sources []string `json:"sources"`
}

// StockHandler exposes stock movements, the ledger and purchase imports.
type StockHandler struct {
	stock     service.StockService
	purchases service.PurchaseService
	logger    zerolog.Logger
}

// NewStockHandler creates a new stock handler.
func NewStockHandler(stockService service.StockService, purchases service.PurchaseService, logger zerolog.Logger) *StockHandler {
	return &StockHandler{
		stock:     stockService,
		purchases: purchases,
		logger:    logger.With().Str("handler", "stock").Logger(),
	}
}

// reference builds the ledger reference of an HTTP adjustment. Order
// references are written by checkout and cancellation only.
func reference(t model.ReferenceType, id string) (model.Reference, error) {
	if t == "" {
		return model.ManualAdjustmentRef{}, nil
	}
	if t == model.ReferenceOrder {
		return nil, model.Errorf(model.KindValidation, "order references cannot be written by hand")
	}
	var key *string
	if id = strings.TrimSpace(id); id != "" {
		key = &id
	}
	return model.ParseReference(t, key)
}

// Adjust handles POST /api/products/:id/stock/adjust.
func (h *StockHandler) Adjust(c *gin.Context) {
	productID, err := int64Param(c, "id")
	if err != nil {
		writeError(c, err, h.logger)
		return
	}
	actor, err := actorID(c)
	if err != nil {
		writeError(c, err, h.logger)
		return
	}

	var body AdjustStockRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		writeBadRequest(c, model.ErrCodeInvalidJSON, "invalid request body")
		return
	}
	ref, err := reference(body.ReferenceType, body.ReferenceID)
	if err != nil {
		writeError(c, err, h.logger)
		return
	}

	change, err := h.stock.Adjust(c.Request.Context(), stock.AdjustRequest{
		ProductID: productID,
		Delta:     body.Delta,
		Reason:    body.Reason,
		Reference: ref,
		ActorID:   actor,
	})
	if err != nil {
		writeError(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, change)
}

// Set handles PUT /api/products/:id/stock.
func (h *StockHandler) Set(c *gin.Context) {
	productID, err := int64Param(c, "id")
	if err != nil {
		writeError(c, err, h.logger)
		return
	}
	actor, err := actorID(c)
	if err != nil {
		writeError(c, err, h.logger)
		return
	}

	var body SetStockRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		writeBadRequest(c, model.ErrCodeInvalidJSON, "invalid request body")
		return
	}
	if body.Quantity == nil {
		writeError(c, model.Errorf(model.KindValidation, "quantity is required"), h.logger)
		return
	}

	change, err := h.stock.SetAbsolute(c.Request.Context(), productID, *body.Quantity, body.Reason, actor)
	if err != nil {
		writeError(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, change)
}

// Ledger handles GET /api/products/:id/ledger, newest entries first.
func (h *StockHandler) Ledger(c *gin.Context) {
	productID, err := int64Param(c, "id")
	if err != nil {
		writeError(c, err, h.logger)
		return
	}
	page, err := pagination(c)
	if err != nil {
		writeError(c, err, h.logger)
		return
	}

	entries, err := h.stock.History(c.Request.Context(), productID, page.Limit, page.Offset)
	if err != nil {
		writeError(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, entries)
}

// Bulk handles POST /api/stock/bulk. Either every line applies or none does.
func (h *StockHandler) Bulk(c *gin.Context) {
	actor, err := actorID(c)
	if err != nil {
		writeError(c, err, h.logger)
		return
	}

	var body BulkAdjustRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		writeBadRequest(c, model.ErrCodeInvalidJSON, "invalid request body")
		return
	}

	reqs := make([]stock.AdjustRequest, len(body.Items))
	var failures []model.ItemFailure
	for i, item := range body.Items {
		if err := copier.Copy(&reqs[i], &item); err != nil {
			writeError(c, err, h.logger)
			return
		}
		ref, err := reference(item.ReferenceType, item.ReferenceID)
		if err != nil {
			failures = append(failures, model.ItemFailure{Index: i, ProductID: item.ProductID, Err: err})
			continue
		}
		reqs[i].Reference = ref
		reqs[i].ActorID = actor
	}
	if len(failures) > 0 {
		writeError(c, &model.BatchError{Failures: failures}, h.logger)
		return
	}

	changes, err := h.stock.BulkAdjust(c.Request.Context(), reqs)
	if err != nil {
		writeError(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, changes)
}

// Import handles POST /api/purchases/import.
func (h *StockHandler) Import(c *gin.Context) {
	actor, err := actorID(c)
	if err != nil {
		writeError(c, err, h.logger)
		return
	}

	var body ImportRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		writeBadRequest(c, model.ErrCodeInvalidJSON, "invalid request body")
		return
	}

	results, err := h.purchases.ImportAll(c.Request.Context(), body.Sources, actor)
	if err != nil {
		h.logger.Warn().Int("applied", len(results)).Int("files", len(body.Sources)).Msg("purchase import stopped")
		writeError(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, results)
}
