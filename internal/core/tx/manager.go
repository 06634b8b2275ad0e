// Package tx provides transaction management abstractions.
// This package defines interfaces that decouple domain logic from specific
// storage implementations.
package tx

import (
	"context"
)

// Manager defines the contract for transaction management.
// If fn returns an error, the transaction is rolled back; otherwise it is committed.
// Nested calls reuse the existing transaction from context.
type Manager interface {
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// ReadOnlyManager extends Manager with read-only transaction support.
type ReadOnlyManager interface {
	Manager
	ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error
}

// Runner hands fn an explicit handle U bound to one open transaction.
//
// Everything fn does through u commits together when fn returns nil and is
// discarded otherwise. The handle must not be retained after fn returns.
type Runner[U any] interface {
	Atomic(ctx context.Context, fn func(ctx context.Context, u U) error) error
	ReadOnly(ctx context.Context, fn func(ctx context.Context, u U) error) error
}
