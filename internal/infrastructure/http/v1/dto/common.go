// Package dto provides Data Transfer Objects for API requests/responses.
package dto

import (
	"strings"
	"time"

	"stockflow/internal/core/apperror"
	"stockflow/internal/core/id"
)

// --- Common Query ---

// LimitQuery bounds list endpoints that return newest entries first.
type LimitQuery struct {
	Limit int `form:"limit" binding:"omitempty,min=1,max=500"`
}

// Defaults sets the default limit.
func (q *LimitQuery) Defaults() {
	if q.Limit == 0 {
		q.Limit = 50
	}
}

// --- ID Response ---

// IDResponse for create operations.
type IDResponse struct {
	ID string `json:"id"`
}

// NewIDResponse creates ID response.
func NewIDResponse(i id.ID) IDResponse {
	return IDResponse{ID: i.String()}
}

// --- Error Response ---

// ErrorResponse for error details.
type ErrorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// --- Helpers ---

// ParseID parses a path or body id, reporting the field on failure.
func ParseID(field, raw string) (id.ID, error) {
	v, err := id.Parse(strings.TrimSpace(raw))
	if err != nil || id.IsNil(v) {
		return id.Nil(), apperror.NewValidation("invalid id").
			WithDetail("field", field).
			WithDetail("value", raw)
	}
	return v, nil
}

// dateOrZero returns the value of an optional date.
func dateOrZero(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return t.UTC()
}
