package idempotency

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"stockflow/internal/core/apperror"
)

type memoryRecord struct {
	userID      string
	operation   string
	requestHash string
	status      Status
	replay      Replay
	updatedAt   time.Time
	expiresAt   time.Time
}

// MemoryStore keeps keys in process memory.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]*memoryRecord
	ttl     time.Duration
	now     func() time.Time
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates a store. ttl <= 0 uses DefaultTTL.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{
		records: make(map[string]*memoryRecord),
		ttl:     ttl,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// AcquireKey implements Store.
func (s *MemoryStore) AcquireKey(_ context.Context, key, userID, operation, requestHash string) (*Replay, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	rec, ok := s.records[key]
	if !ok || now.After(rec.expiresAt) {
		s.records[key] = &memoryRecord{
			userID:      userID,
			operation:   operation,
			requestHash: requestHash,
			status:      StatusPending,
			updatedAt:   now,
			expiresAt:   now.Add(s.ttl),
		}
		return nil, nil
	}

	if rec.userID != userID || rec.operation != operation || rec.requestHash != requestHash {
		return nil, apperror.NewIdempotencyMismatch(key).
			WithDetail("stored_operation", rec.operation).
			WithDetail("request_operation", operation)
	}

	switch rec.status {
	case StatusSuccess, StatusFailed:
		replay := rec.replay
		return NormalizeReplay(&replay), nil
	default:
		if now.Sub(rec.updatedAt) > StaleAfter {
			rec.updatedAt = now
			return nil, nil
		}
		return nil, apperror.NewIdempotencyConflict(key)
	}
}

// CompleteKey implements Store.
func (s *MemoryStore) CompleteKey(_ context.Context, key string, statusCode int, contentType string, response any) error {
	return s.finish(key, StatusSuccess, statusCode, contentType, response)
}

// FailKey implements Store.
func (s *MemoryStore) FailKey(_ context.Context, key string, statusCode int, contentType string, response any) error {
	return s.finish(key, StatusFailed, statusCode, contentType, response)
}

func (s *MemoryStore) finish(key string, status Status, statusCode int, contentType string, response any) error {
	body, err := marshalResponse(response)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[key]
	if !ok {
		return nil
	}
	rec.status = status
	rec.replay = Replay{StatusCode: statusCode, ContentType: contentType, Body: body}
	rec.updatedAt = s.now()
	return nil
}

// CleanupExpired drops expired keys and returns how many were removed.
func (s *MemoryStore) CleanupExpired(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	var n int64
	for k, rec := range s.records {
		if now.After(rec.expiresAt) {
			delete(s.records, k)
			n++
		}
	}
	return n, nil
}

// MarshalResponse encodes a handler response for storage.
func MarshalResponse(response any) ([]byte, error) {
	return marshalResponse(response)
}

func marshalResponse(response any) ([]byte, error) {
	if response == nil {
		return nil, nil
	}
	if raw, ok := response.([]byte); ok {
		return raw, nil
	}
	return json.Marshal(response)
}
