package handlers

import (
	"github.com/gin-gonic/gin"

	"stockflow/internal/domain/fulfillment"
	"stockflow/internal/infrastructure/http/v1/dto"
)

// AuditHandler exposes the audit trail.
type AuditHandler struct {
	*BaseHandler
	service *fulfillment.Service
}

// NewAuditHandler creates a new audit handler.
func NewAuditHandler(base *BaseHandler, service *fulfillment.Service) *AuditHandler {
	return &AuditHandler{BaseHandler: base, service: service}
}

// History handles GET /audit/:entityType/:entityId
func (h *AuditHandler) History(c *gin.Context) {
	entityType := c.Param("entityType")
	entityID, ok := h.PathID(c, "entityId")
	if !ok {
		return
	}
	var q dto.LimitQuery
	if !h.BindQuery(c, &q) {
		return
	}
	q.Defaults()

	items, err := h.service.AuditHistory(c.Request.Context(), entityType, entityID, q.Limit)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.AuditHistoryResponse{
		EntityType: entityType,
		EntityID:   entityID.String(),
		Items:      items,
	})
}
