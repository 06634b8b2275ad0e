package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/klauspost/compress/zstd"

	appctx "stockflow/internal/core/context"
	"stockflow/internal/core/id"
	"stockflow/internal/domain/audit"
)

const auditTable = "sys_audit"

// CompressionAlgo specifies how a stored change document is encoded.
type CompressionAlgo string

const (
	CompressionNone CompressionAlgo = "none"
	CompressionZstd CompressionAlgo = "zstd"
)

// auditRow is the stored form of audit.Entry.
type auditRow struct {
	ID                id.ID           `db:"id"`
	EntityType        string          `db:"entity_type"`
	EntityID          id.ID           `db:"entity_id"`
	Action            audit.Action    `db:"action"`
	UserID            string          `db:"user_id"`
	Changes           json.RawMessage `db:"changes"`
	ChangesCompressed []byte          `db:"changes_compressed"`
	CompressionAlgo   CompressionAlgo `db:"compression_algo"`
	CreatedAt         time.Time       `db:"created_at"`
}

// AuditCodec compresses large change documents with zstd.
// One codec is shared by all units; EncodeAll and DecodeAll are safe for concurrent use.
type AuditCodec struct {
	encoder           *zstd.Encoder
	decoder           *zstd.Decoder
	compressThreshold int
}

// NewAuditCodec creates a codec that compresses documents above threshold bytes.
// A threshold <= 0 uses 4 KiB.
func NewAuditCodec(threshold int) (*AuditCodec, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	if threshold <= 0 {
		threshold = 4 * 1024
	}
	return &AuditCodec{encoder: encoder, decoder: decoder, compressThreshold: threshold}, nil
}

func (c *AuditCodec) encode(row *auditRow) {
	row.CompressionAlgo = CompressionNone
	if len(row.Changes) > c.compressThreshold {
		row.ChangesCompressed = c.encoder.EncodeAll(row.Changes, nil)
		row.Changes = nil
		row.CompressionAlgo = CompressionZstd
	}
}

func (c *AuditCodec) decode(row *auditRow) error {
	if row.CompressionAlgo != CompressionZstd || len(row.ChangesCompressed) == 0 {
		return nil
	}
	plain, err := c.decoder.DecodeAll(row.ChangesCompressed, nil)
	if err != nil {
		return fmt.Errorf("decompress changes: %w", err)
	}
	row.Changes = plain
	row.ChangesCompressed = nil
	return nil
}

// AuditService writes and reads sys_audit on the querier of one unit of work.
type AuditService struct {
	q       Querier
	codec   *AuditCodec
	builder squirrel.StatementBuilderType
}

var _ audit.Trail = (*AuditService)(nil)

// NewAuditService binds an audit trail to q.
func NewAuditService(q Querier, codec *AuditCodec) *AuditService {
	return &AuditService{
		q:       q,
		codec:   codec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// LogChange records changes as JSON, attributed to the context user.
func (s *AuditService) LogChange(ctx context.Context, entityType string, entityID id.ID, action audit.Action, changes map[string]any) error {
	raw, err := json.Marshal(changes)
	if err != nil {
		return fmt.Errorf("marshal changes: %w", err)
	}
	row := auditRow{
		ID:         id.New(),
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
		UserID:     appctx.GetUserID(ctx),
		Changes:    raw,
		CreatedAt:  time.Now().UTC(),
	}
	s.codec.encode(&row)

	sql, args, err := s.builder.Insert(auditTable).
		Columns("id", "entity_type", "entity_id", "action", "user_id",
			"changes", "changes_compressed", "compression_algo", "created_at").
		Values(row.ID, row.EntityType, row.EntityID, row.Action, row.UserID,
			row.Changes, row.ChangesCompressed, row.CompressionAlgo, row.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build audit insert: %w", err)
	}
	if _, err := s.q.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// History returns entries of one entity, newest first, decompressed.
func (s *AuditService) History(ctx context.Context, entityType string, entityID id.ID, limit int) ([]audit.Entry, error) {
	q := s.builder.
		Select("id", "entity_type", "entity_id", "action", "user_id",
			"changes", "changes_compressed", "compression_algo", "created_at").
		From(auditTable).
		Where(squirrel.Eq{"entity_type": entityType, "entity_id": entityID}).
		OrderBy("created_at DESC")
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build audit query: %w", err)
	}

	var rows []auditRow
	if err := pgxscan.Select(ctx, s.q, &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("select audit history: %w", err)
	}

	out := make([]audit.Entry, 0, len(rows))
	for i := range rows {
		if err := s.codec.decode(&rows[i]); err != nil {
			return nil, err
		}
		r := rows[i]
		out = append(out, audit.Entry{
			ID:         r.ID,
			EntityType: r.EntityType,
			EntityID:   r.EntityID,
			Action:     r.Action,
			UserID:     r.UserID,
			Changes:    r.Changes,
			CreatedAt:  r.CreatedAt,
		})
	}
	return out, nil
}
