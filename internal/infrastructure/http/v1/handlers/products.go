package handlers

import (
	"github.com/gin-gonic/gin"

	"stockflow/internal/domain/fulfillment"
	"stockflow/internal/infrastructure/http/v1/dto"
)

// ProductHandler handles products and their stock counters.
type ProductHandler struct {
	*BaseHandler
	service *fulfillment.Service
}

// NewProductHandler creates a new product handler.
func NewProductHandler(base *BaseHandler, service *fulfillment.Service) *ProductHandler {
	return &ProductHandler{BaseHandler: base, service: service}
}

// Create handles POST /products
func (h *ProductHandler) Create(c *gin.Context) {
	var req dto.CreateProductRequest
	if !h.BindJSON(c, &req) {
		return
	}

	p := req.ToEntity()
	if err := h.service.CreateProduct(c.Request.Context(), p); err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, dto.FromProduct(p))
}

// GetStock handles GET /products/:id/stock
func (h *ProductHandler) GetStock(c *gin.Context) {
	productID, ok := h.PathID(c, "id")
	if !ok {
		return
	}

	p, err := h.service.ProductAvailability(c.Request.Context(), productID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromProduct(p))
}

// Adjust handles POST /products/:id/adjustments
func (h *ProductHandler) Adjust(c *gin.Context) {
	productID, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	var req dto.AdjustStockRequest
	if !h.BindJSON(c, &req) {
		return
	}

	p, adj, err := h.service.AdjustStock(c.Request.Context(), productID, req.Delta, req.Note)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, dto.AdjustStockResponse{Product: dto.FromProduct(p), Adjustment: adj})
}

// ListAdjustments handles GET /products/:id/adjustments
func (h *ProductHandler) ListAdjustments(c *gin.Context) {
	productID, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	var q dto.LimitQuery
	if !h.BindQuery(c, &q) {
		return
	}
	q.Defaults()

	items, err := h.service.ListAdjustments(c.Request.Context(), productID, q.Limit)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.AdjustmentListResponse{ProductID: productID.String(), Items: items})
}
