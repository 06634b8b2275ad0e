package handlers

import (
	"github.com/gin-gonic/gin"

	"stockflow/internal/domain/fulfillment"
	"stockflow/internal/infrastructure/http/v1/dto"
)

// CounterpartyHandler handles HTTP requests for counterparties.
type CounterpartyHandler struct {
	*BaseHandler
	service *fulfillment.Service
}

// NewCounterpartyHandler creates a new counterparty handler.
func NewCounterpartyHandler(base *BaseHandler, service *fulfillment.Service) *CounterpartyHandler {
	return &CounterpartyHandler{BaseHandler: base, service: service}
}

// Create handles POST /counterparties
func (h *CounterpartyHandler) Create(c *gin.Context) {
	var req dto.CreateCounterpartyRequest
	if !h.BindJSON(c, &req) {
		return
	}

	cp := req.ToEntity()
	if err := h.service.CreateCounterparty(c.Request.Context(), cp); err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, cp)
}

// Get handles GET /counterparties/:id
func (h *CounterpartyHandler) Get(c *gin.Context) {
	counterpartyID, ok := h.PathID(c, "id")
	if !ok {
		return
	}

	cp, err := h.service.GetCounterparty(c.Request.Context(), counterpartyID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, cp)
}
