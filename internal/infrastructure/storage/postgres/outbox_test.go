package postgres

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockflow/internal/core/id"
	"stockflow/internal/domain/events"
)

func TestOutboxPublisher_InsertsAllEventsInOneStatement(t *testing.T) {
	p := NewOutboxPublisher(nil)
	now := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return now }
	aggID := id.New()

	sql, args, err := p.insertQuery([]events.Event{
		{AggregateType: events.AggregateSalesTransaction, AggregateID: aggID, Type: events.SalesTransactionIssued, Payload: map[string]any{"number": "INV-20260315-0001"}},
		{AggregateType: events.AggregateProduct, AggregateID: aggID, Type: events.ReorderLevelReached, Payload: nil},
	})
	require.NoError(t, err)

	assert.Contains(t, sql, "INSERT INTO sys_outbox (id,aggregate_type,aggregate_id,event_type,payload,status,created_at)")
	assert.Contains(t, sql, "($8,$9,$10,$11,$12,$13,$14)")
	require.Len(t, args, 14)
	assert.Equal(t, events.SalesTransactionIssued, args[3])
	assert.JSONEq(t, `{"number":"INV-20260315-0001"}`, string(args[4].([]byte)))
	assert.Equal(t, OutboxStatusPending, args[5])
	assert.Equal(t, now, args[6])
}

func TestOutboxPublisher_RejectsUnencodablePayload(t *testing.T) {
	_, _, err := NewOutboxPublisher(nil).insertQuery([]events.Event{
		{Type: "Broken", Payload: make(chan int)},
	})
	var typeErr *json.UnsupportedTypeError
	assert.ErrorAs(t, err, &typeErr)
}

func TestOutboxRelay_ClaimQuerySkipsLockedRows(t *testing.T) {
	r := NewOutboxRelay(nil, RelayConfig{BatchSize: 10}, nil)
	assert.Equal(t, 5, r.cfg.MaxRetries)

	sql, args, err := r.claimQuery(time.Now())
	require.NoError(t, err)
	assert.Contains(t, sql, "WHERE status = $1 AND (next_retry_at IS NULL OR next_retry_at <= $2)")
	assert.Contains(t, sql, "ORDER BY created_at LIMIT 10 FOR UPDATE SKIP LOCKED")
	assert.Equal(t, OutboxStatusPending, args[0])
}

func TestAuditCodec_CompressesLargeDocuments(t *testing.T) {
	codec, err := NewAuditCodec(64)
	require.NoError(t, err)

	small := auditRow{Changes: json.RawMessage(`{"qty":1}`)}
	codec.encode(&small)
	assert.Equal(t, CompressionNone, small.CompressionAlgo)
	assert.Nil(t, small.ChangesCompressed)

	doc := map[string]string{}
	for i := 0; i < 50; i++ {
		doc[id.New().String()] = "restocked"
	}
	raw, err := json.Marshal(doc)
	require.NoError(t, err)

	large := auditRow{Changes: raw}
	codec.encode(&large)
	assert.Equal(t, CompressionZstd, large.CompressionAlgo)
	assert.Nil(t, large.Changes)
	assert.Less(t, len(large.ChangesCompressed), len(raw))

	require.NoError(t, codec.decode(&large))
	assert.JSONEq(t, string(raw), string(large.Changes))
}
