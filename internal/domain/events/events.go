// Package events defines the domain events written to the transactional outbox.
package events

import (
	"context"

	"stockflow/internal/core/id"
)

// Event types.
const (
	SalesTransactionIssued  = "SalesTransactionIssued"
	SalesTransactionDeleted = "SalesTransactionDeleted"
	DeliveryRecorded        = "DeliveryRecorded"
	ReturnCreated           = "ReturnCreated"
	ReorderLevelReached     = "ReorderLevelReached"
)

// Aggregate types.
const (
	AggregateSalesTransaction = "SalesTransaction"
	AggregateSalesReturn      = "SalesReturn"
	AggregateProduct          = "Product"
)

// Event is published in the same transaction as the change it describes.
// Payload must be JSON-serializable.
type Event struct {
	AggregateType string
	AggregateID   id.ID
	Type          string
	Payload       any
}

// Publisher writes events within the caller's transaction.
type Publisher interface {
	Publish(ctx context.Context, events ...Event) error
}
