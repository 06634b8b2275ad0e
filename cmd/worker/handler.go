package main

import (
	"context"
	"encoding/json"

	"stockflow/internal/domain/events"
	"stockflow/internal/infrastructure/storage/postgres"
	"stockflow/pkg/logger"
)

// newEventLogger returns the relay handler. Events leave the service as
// structured log records; low-stock alerts are raised at warn level.
func newEventLogger(log *logger.Logger) postgres.OutboxHandler {
	return postgres.OutboxHandlerFunc(func(ctx context.Context, msg *postgres.OutboxMessage) error {
		var payload map[string]any
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			return err
		}

		fields := []any{
			"event_id", msg.ID,
			"event_type", msg.EventType,
			"aggregate_type", msg.AggregateType,
			"aggregate_id", msg.AggregateID,
			"attempt", msg.RetryCount + 1,
			"payload", payload,
		}
		if msg.EventType == events.ReorderLevelReached {
			log.Warnw("reorder level reached", fields...)
			return nil
		}
		log.Infow("domain event", fields...)
		return nil
	})
}
