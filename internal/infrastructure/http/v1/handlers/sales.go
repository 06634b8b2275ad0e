package handlers

import (
	"github.com/gin-gonic/gin"

	"stockflow/internal/domain/fulfillment"
	"stockflow/internal/infrastructure/http/v1/dto"
)

// SalesHandler handles sales transactions and their deliveries.
type SalesHandler struct {
	*BaseHandler
	service *fulfillment.Service
}

// NewSalesHandler creates a new sales handler.
func NewSalesHandler(base *BaseHandler, service *fulfillment.Service) *SalesHandler {
	return &SalesHandler{BaseHandler: base, service: service}
}

// Create handles POST /sales
func (h *SalesHandler) Create(c *gin.Context) {
	var req dto.CreateSalesRequest
	if !h.BindJSON(c, &req) {
		return
	}
	in, err := req.ToInput()
	if err != nil {
		h.Error(c, err)
		return
	}

	t, err := h.service.IssueTransaction(c.Request.Context(), in)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, dto.FromTransaction(t))
}

// Get handles GET /sales/:id
func (h *SalesHandler) Get(c *gin.Context) {
	transactionID, ok := h.PathID(c, "id")
	if !ok {
		return
	}

	t, err := h.service.GetTransaction(c.Request.Context(), transactionID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromTransaction(t))
}

// Delete handles DELETE /sales/:id
func (h *SalesHandler) Delete(c *gin.Context) {
	transactionID, ok := h.PathID(c, "id")
	if !ok {
		return
	}

	if err := h.service.DeleteTransaction(c.Request.Context(), transactionID); err != nil {
		h.Error(c, err)
		return
	}
	h.NoContent(c)
}

// MarkAsTaken handles POST /sales/:id/deliveries
func (h *SalesHandler) MarkAsTaken(c *gin.Context) {
	transactionID, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	var req dto.MarkAsTakenRequest
	if !h.BindJSON(c, &req) {
		return
	}
	items, err := req.ToItems()
	if err != nil {
		h.Error(c, err)
		return
	}

	res, err := h.service.MarkAsTaken(c.Request.Context(), transactionID, items, req.Metadata())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, dto.FromDeliveryResult(res))
}

// ListDeliveries handles GET /sales/:id/deliveries
func (h *SalesHandler) ListDeliveries(c *gin.Context) {
	transactionID, ok := h.PathID(c, "id")
	if !ok {
		return
	}

	records, err := h.service.ListDeliveries(c.Request.Context(), transactionID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.DeliveryListResponse{TransactionID: transactionID.String(), Items: records})
}
