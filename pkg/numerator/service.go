// Package numerator provides date-scoped document numbering.
//
// Numbers look like PREFIX-20260315-0007. The counter lives in sys_sequences
// and is advanced through a Sequencer bound to the caller's transaction, so a
// rolled back document gives its number back.
package numerator

import (
	"context"
	"fmt"
	"time"
)

const defaultPadWidth = 4

// Config holds numbering configuration for one document kind.
type Config struct {
	Prefix   string
	PadWidth int
}

// DefaultConfig returns the daily PREFIX-YYYYMMDD-NNNN scheme.
func DefaultConfig(prefix string) Config {
	return Config{
		Prefix:   prefix,
		PadWidth: defaultPadWidth,
	}
}

// Sequencer atomically advances a named counter by n and returns the new value.
// A missing counter starts at zero.
type Sequencer interface {
	Advance(ctx context.Context, key string, n int64) (int64, error)
}

// Service formats numbers. It holds no state and is safe to share.
type Service struct{}

// New creates a numerator service.
func New() *Service {
	return &Service{}
}

// GetNextNumber allocates the next number for cfg on the day containing period.
// Each call advances the counter by one, so numbers are gapless per transaction.
func (s *Service) GetNextNumber(ctx context.Context, seq Sequencer, cfg Config, period time.Time) (string, error) {
	if s == nil {
		return "", fmt.Errorf("numerator service is not initialized")
	}
	if cfg.Prefix == "" {
		return "", fmt.Errorf("numerator: empty prefix")
	}

	key := BuildKey(cfg, period)
	num, err := seq.Advance(ctx, key, 1)
	if err != nil {
		return "", fmt.Errorf("next %s: %w", key, err)
	}
	return formatNumber(cfg, period, num), nil
}

// BuildKey creates the sequence key: the counter restarts every day.
func BuildKey(cfg Config, period time.Time) string {
	return cfg.Prefix + "_" + period.Format("20060102")
}

func formatNumber(cfg Config, period time.Time, num int64) string {
	padWidth := cfg.PadWidth
	if padWidth == 0 {
		padWidth = defaultPadWidth
	}
	return fmt.Sprintf("%s-%s-%0*d", cfg.Prefix, period.Format("20060102"), padWidth, num)
}
