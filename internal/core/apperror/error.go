// Package apperror provides structured error handling following RFC 7807 Problem Details.
// Every failure of the fulfillment engine surfaces as an AppError so callers can
// render it without string matching.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes following domain-driven design
const (
	// Infrastructure errors (5xx)
	CodeInternal = "INTERNAL_ERROR"

	// Validation errors (400)
	CodeValidation = "VALIDATION_ERROR"

	// Business rule violations (422)
	CodeBusinessRule            = "BUSINESS_RULE_VIOLATION"
	CodeInsufficientStock       = "INSUFFICIENT_STOCK"
	CodeInsufficientReservation = "INSUFFICIENT_RESERVATION"
	CodeOverDelivery            = "OVER_DELIVERY"
	CodeOverReturn              = "OVER_RETURN"
	CodeAlreadyFulfilled        = "ALREADY_FULFILLED"
	CodeHasReturns              = "HAS_RETURNS"

	// Consistency violations (500): stored state contradicts an invariant
	CodeConsistencyViolation = "CONSISTENCY_VIOLATION"

	// Authorization errors (401, 403)
	CodeUnauthorized = "UNAUTHORIZED"
	CodeForbidden    = "FORBIDDEN"

	// Not found (404)
	CodeNotFound             = "NOT_FOUND"
	CodeCounterpartyNotFound = "COUNTERPARTY_NOT_FOUND"
	CodeTransactionNotFound  = "TRANSACTION_NOT_FOUND"
	CodeLineNotFound         = "LINE_NOT_FOUND"
	CodeProductNotFound      = "PRODUCT_NOT_FOUND"
	CodeReturnNotFound       = "RETURN_NOT_FOUND"

	// Conflict (409)
	CodeConflict    = "CONFLICT"
	CodeIdempotency = "IDEMPOTENCY_CONFLICT"

	CodeIdempotencyMismatch = "IDEMPOTENCY_MISMATCH"
)

// AppError is the standard error type for the platform.
// It implements error interface and provides structured details for API responses.
type AppError struct {
	// Code is a machine-readable error identifier
	Code string `json:"code"`

	// Message is a human-readable error description
	Message string `json:"message"`

	// Details contains additional context (field errors, quantities, etc.)
	Details map[string]any `json:"details,omitempty"`

	// HTTPStatus is the suggested HTTP status code
	HTTPStatus int `json:"-"`

	// Err is the underlying error (not exposed in JSON)
	Err error `json:"-"`
}

// Error implements error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetail adds a key-value pair to error details
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithCause sets the underlying error
func (e *AppError) WithCause(err error) *AppError {
	e.Err = err
	return e
}

// --- Factory functions for common errors ---

// NewValidation creates a validation error (400)
func NewValidation(message string) *AppError {
	return &AppError{
		Code:       CodeValidation,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
	}
}

// NewNotFound creates a not found error (404)
func NewNotFound(entity string, id any) *AppError {
	return &AppError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", entity),
		HTTPStatus: http.StatusNotFound,
		Details:    map[string]any{"entity": entity, "id": id},
	}
}

// NewBusinessRule creates a business rule violation error (422)
func NewBusinessRule(code, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: http.StatusUnprocessableEntity,
	}
}

// NewIdempotencyConflict is returned while another request holds the same key.
func NewIdempotencyConflict(key string) *AppError {
	return &AppError{
		Code:       CodeIdempotency,
		Message:    "Operation already in progress",
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"idempotency_key": key},
	}
}

// NewIdempotencyMismatch is returned when a key is reused for a different
// request (user, route or body hash).
func NewIdempotencyMismatch(key string) *AppError {
	return &AppError{
		Code:       CodeIdempotencyMismatch,
		Message:    "Idempotency key reused for a different request",
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    map[string]any{"idempotency_key": key},
	}
}

// NewInsufficientStock creates a stock shortage error
func NewInsufficientStock(productID string, requested, available float64) *AppError {
	return &AppError{
		Code:       CodeInsufficientStock,
		Message:    "Insufficient stock",
		HTTPStatus: http.StatusUnprocessableEntity,
		Details: map[string]any{
			"product_id": productID,
			"requested":  requested,
			"available":  available,
		},
	}
}

// NewInsufficientReservation is returned when a release asks for more than is reserved.
func NewInsufficientReservation(productID string, requested, reserved float64) *AppError {
	return &AppError{
		Code:       CodeInsufficientReservation,
		Message:    "Reserved stock is lower than the quantity being released",
		HTTPStatus: http.StatusUnprocessableEntity,
		Details: map[string]any{
			"product_id": productID,
			"requested":  requested,
			"reserved":   reserved,
		},
	}
}

// NewOverDelivery creates an error for a delivery exceeding the undelivered quantity of a line.
func NewOverDelivery(lineID string, requested, remaining float64) *AppError {
	return &AppError{
		Code:       CodeOverDelivery,
		Message:    "Delivery quantity exceeds the remaining quantity",
		HTTPStatus: http.StatusUnprocessableEntity,
		Details: map[string]any{
			"line_id":   lineID,
			"requested": requested,
			"remaining": remaining,
		},
	}
}

// NewOverReturn creates an error for a return exceeding what is still returnable on a line.
func NewOverReturn(lineID string, requested, returnable float64) *AppError {
	return &AppError{
		Code:       CodeOverReturn,
		Message:    "Return quantity exceeds the returnable quantity",
		HTTPStatus: http.StatusUnprocessableEntity,
		Details: map[string]any{
			"line_id":    lineID,
			"requested":  requested,
			"returnable": returnable,
		},
	}
}

// NewAlreadyFulfilled creates an error for a delivery against a fully taken transaction.
func NewAlreadyFulfilled(transactionID string) *AppError {
	return &AppError{
		Code:       CodeAlreadyFulfilled,
		Message:    "Transaction is already fully delivered",
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"transaction_id": transactionID},
	}
}

// NewConsistencyViolation reports stored state that breaks a stock or delivery invariant.
// It is never caused by user input.
func NewConsistencyViolation(message string) *AppError {
	return &AppError{
		Code:       CodeConsistencyViolation,
		Message:    message,
		HTTPStatus: http.StatusInternalServerError,
	}
}

// NewCounterpartyNotFound creates a referential error for a missing counterparty.
func NewCounterpartyNotFound(id any) *AppError {
	return newNotFound(CodeCounterpartyNotFound, "counterparty", id)
}

// NewTransactionNotFound creates a referential error for a missing sales transaction.
func NewTransactionNotFound(id any) *AppError {
	return newNotFound(CodeTransactionNotFound, "sales transaction", id)
}

// NewLineNotFound creates a referential error for a line that does not belong to the transaction.
func NewLineNotFound(id any) *AppError {
	return newNotFound(CodeLineNotFound, "sales line", id)
}

// NewProductNotFound creates a referential error for a missing product.
func NewProductNotFound(id any) *AppError {
	return newNotFound(CodeProductNotFound, "product", id)
}

// NewReturnNotFound creates a referential error for a missing sales return.
func NewReturnNotFound(id any) *AppError {
	return newNotFound(CodeReturnNotFound, "sales return", id)
}

func newNotFound(code, entity string, id any) *AppError {
	return &AppError{
		Code:       code,
		Message:    fmt.Sprintf("%s not found", entity),
		HTTPStatus: http.StatusNotFound,
		Details:    map[string]any{"entity": entity, "id": id},
	}
}

// NewInternal creates an internal server error (hides details from client)
func NewInternal(err error) *AppError {
	return &AppError{
		Code:       CodeInternal,
		Message:    "Internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// NewUnauthorized creates an authentication error (401)
func NewUnauthorized(message string) *AppError {
	return &AppError{
		Code:       CodeUnauthorized,
		Message:    message,
		HTTPStatus: http.StatusUnauthorized,
	}
}

// NewForbidden creates an authorization error (403)
func NewForbidden(message string) *AppError {
	return &AppError{
		Code:       CodeForbidden,
		Message:    message,
		HTTPStatus: http.StatusForbidden,
	}
}

// NewConflict creates a conflict error (409)
func NewConflict(message string) *AppError {
	return &AppError{
		Code:       CodeConflict,
		Message:    message,
		HTTPStatus: http.StatusConflict,
	}
}

// --- Helper functions ---

// IsAppError checks if error is AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// AsAppError extracts AppError from error chain
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// GetHTTPStatus returns appropriate HTTP status for any error
func GetHTTPStatus(err error) int {
	if appErr, ok := AsAppError(err); ok {
		return appErr.HTTPStatus
	}
	return http.StatusInternalServerError
}

// IsNotFound reports whether err is any of the not-found errors.
func IsNotFound(err error) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.HTTPStatus == http.StatusNotFound
	}
	return false
}

// HasCode reports whether err is an AppError with the given code.
func HasCode(err error, code string) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code == code
	}
	return false
}
