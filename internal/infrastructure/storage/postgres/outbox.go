package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"

	"stockflow/internal/core/id"
	"stockflow/internal/domain/events"
	"stockflow/pkg/logger"
)

const (
	outboxTable = "sys_outbox"
	outboxDLQ   = "sys_outbox_dlq"
)

// OutboxStatus represents the state of an outbox message.
type OutboxStatus string

const (
	OutboxStatusPending   OutboxStatus = "pending"
	OutboxStatusPublished OutboxStatus = "published"
	OutboxStatusFailed    OutboxStatus = "failed"
)

// OutboxMessage is one row of sys_outbox.
type OutboxMessage struct {
	ID            id.ID        `db:"id"`
	AggregateType string       `db:"aggregate_type"`
	AggregateID   id.ID        `db:"aggregate_id"`
	EventType     string       `db:"event_type"`
	Payload       []byte       `db:"payload"`
	Status        OutboxStatus `db:"status"`
	RetryCount    int          `db:"retry_count"`
	LastError     *string      `db:"last_error"`
	NextRetryAt   *time.Time   `db:"next_retry_at"`
	CreatedAt     time.Time    `db:"created_at"`
	PublishedAt   *time.Time   `db:"published_at"`
}

var outboxColumns = []string{
	"id", "aggregate_type", "aggregate_id", "event_type", "payload", "status", "created_at",
}

// OutboxPublisher writes events to sys_outbox on the querier of one unit of work,
// so events commit or roll back with the change they describe.
type OutboxPublisher struct {
	q       Querier
	builder squirrel.StatementBuilderType
	now     func() time.Time
}

var _ events.Publisher = (*OutboxPublisher)(nil)

// NewOutboxPublisher binds a publisher to q.
func NewOutboxPublisher(q Querier) *OutboxPublisher {
	return &OutboxPublisher{
		q:       q,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Publish inserts all events in one statement.
func (p *OutboxPublisher) Publish(ctx context.Context, evts ...events.Event) error {
	if len(evts) == 0 {
		return nil
	}
	sql, args, err := p.insertQuery(evts)
	if err != nil {
		return err
	}
	if _, err := p.q.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert outbox messages: %w", err)
	}
	return nil
}

func (p *OutboxPublisher) insertQuery(evts []events.Event) (string, []any, error) {
	now := p.now()
	q := p.builder.Insert(outboxTable).Columns(outboxColumns...)
	for _, e := range evts {
		payload, err := json.Marshal(e.Payload)
		if err != nil {
			return "", nil, fmt.Errorf("marshal %s payload: %w", e.Type, err)
		}
		q = q.Values(id.New(), e.AggregateType, e.AggregateID, e.Type, payload, OutboxStatusPending, now)
	}
	sql, args, err := q.ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("build outbox insert: %w", err)
	}
	return sql, args, nil
}

// OutboxHandler processes outbox messages.
type OutboxHandler interface {
	Handle(ctx context.Context, msg *OutboxMessage) error
}

// OutboxHandlerFunc adapts a function to OutboxHandler.
type OutboxHandlerFunc func(ctx context.Context, msg *OutboxMessage) error

// Handle implements OutboxHandler.
func (f OutboxHandlerFunc) Handle(ctx context.Context, msg *OutboxMessage) error { return f(ctx, msg) }

// RelayConfig tunes the relay.
type RelayConfig struct {
	BatchSize  int
	MaxRetries int
	// Backoff is multiplied by the attempt number.
	Backoff time.Duration
}

// DefaultRelayConfig returns batch 100, 5 retries, linear 1 minute backoff.
func DefaultRelayConfig() RelayConfig {
	return RelayConfig{BatchSize: 100, MaxRetries: 5, Backoff: time.Minute}
}

// OutboxRelay reads pending messages and hands them to a handler.
// Several relays may run at once: rows are claimed with FOR UPDATE SKIP LOCKED.
type OutboxRelay struct {
	txm     *TxManager
	cfg     RelayConfig
	handler OutboxHandler
	builder squirrel.StatementBuilderType
}

// NewOutboxRelay creates a relay.
func NewOutboxRelay(txm *TxManager, cfg RelayConfig, handler OutboxHandler) *OutboxRelay {
	def := DefaultRelayConfig()
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = def.Backoff
	}
	return &OutboxRelay{
		txm:     txm,
		cfg:     cfg,
		handler: handler,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func (r *OutboxRelay) claimQuery(now time.Time) (string, []any, error) {
	return r.builder.
		Select("id", "aggregate_type", "aggregate_id", "event_type", "payload", "status",
			"retry_count", "last_error", "next_retry_at", "created_at", "published_at").
		From(outboxTable).
		Where(squirrel.Eq{"status": OutboxStatusPending}).
		Where(squirrel.Or{
			squirrel.Eq{"next_retry_at": nil},
			squirrel.LtOrEq{"next_retry_at": now},
		}).
		OrderBy("created_at").
		Limit(uint64(r.cfg.BatchSize)).
		Suffix("FOR UPDATE SKIP LOCKED").
		ToSql()
}

// ProcessBatch claims up to BatchSize messages and processes them in one
// transaction. It returns how many were published.
func (r *OutboxRelay) ProcessBatch(ctx context.Context) (int, error) {
	processed := 0
	err := r.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		q := r.txm.GetQuerier(ctx)
		now := time.Now().UTC()

		sql, args, err := r.claimQuery(now)
		if err != nil {
			return fmt.Errorf("build claim query: %w", err)
		}
		var messages []*OutboxMessage
		if err := pgxscan.Select(ctx, q, &messages, sql, args...); err != nil {
			return fmt.Errorf("fetch outbox messages: %w", err)
		}

		batch := &pgx.Batch{}
		for _, msg := range messages {
			if err := r.handler.Handle(ctx, msg); err != nil {
				logger.Warn(ctx, "outbox message failed",
					"message_id", msg.ID,
					"event_type", msg.EventType,
					"attempt", msg.RetryCount+1,
					"error", err,
				)
				r.queueFailure(batch, msg, err, now)
				continue
			}
			batch.Queue(
				"UPDATE "+outboxTable+" SET status = $1, published_at = $2 WHERE id = $3",
				OutboxStatusPublished, now, msg.ID,
			)
			processed++
		}
		if batch.Len() == 0 {
			return nil
		}

		results := q.SendBatch(ctx, batch)
		defer results.Close()
		for i := 0; i < batch.Len(); i++ {
			if _, err := results.Exec(); err != nil {
				return fmt.Errorf("update outbox status: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return processed, nil
}

func (r *OutboxRelay) queueFailure(batch *pgx.Batch, msg *OutboxMessage, cause error, now time.Time) {
	attempt := msg.RetryCount + 1
	status := OutboxStatusPending
	if attempt >= r.cfg.MaxRetries {
		status = OutboxStatusFailed
	}
	batch.Queue(
		"UPDATE "+outboxTable+" SET retry_count = $1, last_error = $2, next_retry_at = $3, status = $4 WHERE id = $5",
		attempt, cause.Error(), now.Add(time.Duration(attempt)*r.cfg.Backoff), status, msg.ID,
	)
}

// MoveToDLQ moves exhausted messages to the dead letter table.
func (r *OutboxRelay) MoveToDLQ(ctx context.Context) (int64, error) {
	result, err := r.txm.GetQuerier(ctx).Exec(ctx, `
		WITH moved AS (
			DELETE FROM `+outboxTable+`
			WHERE status = $1
			RETURNING *
		)
		INSERT INTO `+outboxDLQ+`
		SELECT *, NOW() AS failed_at, last_error AS failure_reason FROM moved
	`, OutboxStatusFailed)
	if err != nil {
		return 0, fmt.Errorf("move to DLQ: %w", err)
	}
	return result.RowsAffected(), nil
}
