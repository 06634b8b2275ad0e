package dto

import "stockflow/internal/domain/audit"

// AuditHistoryResponse lists recorded changes of one entity, newest first.
type AuditHistoryResponse struct {
	EntityType string        `json:"entityType"`
	EntityID   string        `json:"entityId"`
	Items      []audit.Entry `json:"items"`
}
