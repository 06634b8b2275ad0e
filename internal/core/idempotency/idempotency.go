// Package idempotency defines the request deduplication contract used by the
// HTTP layer and an in-memory store for single-process deployments.
package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"time"
)

// Status represents the state of an idempotent operation.
type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// DefaultTTL is how long a completed key is replayed.
const DefaultTTL = 24 * time.Hour

// StaleAfter is how long a pending key blocks retries before it is reclaimed.
const StaleAfter = time.Minute

// Replay is the cached HTTP response of a completed operation.
type Replay struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// Store manages idempotency keys.
//
// AcquireKey returns (nil, nil) when the caller now owns the key, a Replay
// when the operation already completed, IDEMPOTENCY_CONFLICT while another
// request holds the key and IDEMPOTENCY_MISMATCH when the key was used for a
// different request.
type Store interface {
	AcquireKey(ctx context.Context, key, userID, operation, requestHash string) (*Replay, error)
	CompleteKey(ctx context.Context, key string, statusCode int, contentType string, response any) error
	FailKey(ctx context.Context, key string, statusCode int, contentType string, response any) error
}

// HashRequest returns the hex SHA-256 of a request body.
func HashRequest(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// NormalizeReplay fills a default status and content type for records
// written without them.
func NormalizeReplay(r *Replay) *Replay {
	if r.StatusCode == 0 {
		r.StatusCode = http.StatusOK
	}
	if r.ContentType == "" {
		r.ContentType = "application/json"
	}
	return r
}
