package handlers

import (
	"github.com/gin-gonic/gin"

	"stockflow/internal/domain/fulfillment"
	"stockflow/internal/infrastructure/http/v1/dto"
)

// ReturnHandler handles sales returns.
type ReturnHandler struct {
	*BaseHandler
	service *fulfillment.Service
}

// NewReturnHandler creates a new return handler.
func NewReturnHandler(base *BaseHandler, service *fulfillment.Service) *ReturnHandler {
	return &ReturnHandler{BaseHandler: base, service: service}
}

// Create handles POST /returns
func (h *ReturnHandler) Create(c *gin.Context) {
	var req dto.CreateReturnRequest
	if !h.BindJSON(c, &req) {
		return
	}
	in, err := req.ToInput()
	if err != nil {
		h.Error(c, err)
		return
	}

	r, err := h.service.CreateReturn(c.Request.Context(), in)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, r)
}

// Get handles GET /returns/:id
func (h *ReturnHandler) Get(c *gin.Context) {
	returnID, ok := h.PathID(c, "id")
	if !ok {
		return
	}

	r, err := h.service.GetReturn(c.Request.Context(), returnID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, r)
}

// SetRefundStatus handles PATCH /returns/:id/refund-status
func (h *ReturnHandler) SetRefundStatus(c *gin.Context) {
	returnID, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	var req dto.SetRefundStatusRequest
	if !h.BindJSON(c, &req) {
		return
	}

	r, err := h.service.SetRefundStatus(c.Request.Context(), returnID, req.RefundStatus())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, r)
}
