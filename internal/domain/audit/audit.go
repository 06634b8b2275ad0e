// Package audit provides the audit trail contract and creator enrichment for documents.
package audit

import (
	"context"
	"encoding/json"
	"time"

	appctx "stockflow/internal/core/context"
	"stockflow/internal/core/entity"
	"stockflow/internal/core/id"
)

// Action represents the type of audited operation.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	ActionAdjust Action = "adjust"
)

// Logger records entity changes within the caller's transaction.
type Logger interface {
	LogChange(ctx context.Context, entityType string, entityID id.ID, action Action, changes map[string]any) error
}

// Entry is one recorded change. Changes holds the JSON document passed to LogChange.
type Entry struct {
	ID         id.ID           `db:"id" json:"id"`
	EntityType string          `db:"entity_type" json:"entityType"`
	EntityID   id.ID           `db:"entity_id" json:"entityId"`
	Action     Action          `db:"action" json:"action"`
	UserID     string          `db:"user_id" json:"userId,omitempty"`
	Changes    json.RawMessage `db:"changes" json:"changes"`
	CreatedAt  time.Time       `db:"created_at" json:"createdAt"`
}

// Trail is a Logger that can also read history back, newest first.
type Trail interface {
	Logger
	History(ctx context.Context, entityType string, entityID id.ID, limit int) ([]Entry, error)
}

// EnrichCreatedBy stamps CreatedBy from the context user unless already set.
// If no user is in context, this is a no-op.
func EnrichCreatedBy(ctx context.Context, doc *entity.BaseDocument) {
	if doc.CreatedBy != "" {
		return
	}
	doc.CreatedBy = appctx.GetUserID(ctx)
}

// Actor returns explicit if set, otherwise the context user id, otherwise "system".
func Actor(ctx context.Context, explicit string) string {
	if explicit != "" {
		return explicit
	}
	if uid := appctx.GetUserID(ctx); uid != "" {
		return uid
	}
	return "system"
}
