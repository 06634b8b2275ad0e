package postgres

import (
	"context"
	"fmt"

	"stockflow/pkg/numerator"
)

// SequenceRepo advances counters in sys_sequences on one querier.
// The upsert takes a row lock, so concurrent units numbering the same key
// queue behind each other and a rolled back unit returns its values.
type SequenceRepo struct {
	q Querier
}

var _ numerator.Sequencer = (*SequenceRepo)(nil)

// NewSequenceRepo binds a sequencer to q.
func NewSequenceRepo(q Querier) *SequenceRepo {
	return &SequenceRepo{q: q}
}

const advanceSQL = `
	INSERT INTO sys_sequences (key, value, updated_at)
	VALUES ($1, $2, NOW())
	ON CONFLICT (key) DO UPDATE
	SET value = sys_sequences.value + EXCLUDED.value, updated_at = NOW()
	RETURNING value
`

// Advance adds n to key and returns the new value.
func (r *SequenceRepo) Advance(ctx context.Context, key string, n int64) (int64, error) {
	if n <= 0 {
		return 0, fmt.Errorf("advance %s: step must be positive, got %d", key, n)
	}
	var value int64
	if err := r.q.QueryRow(ctx, advanceSQL, key, n).Scan(&value); err != nil {
		return 0, fmt.Errorf("advance sequence %s: %w", key, err)
	}
	return value, nil
}
