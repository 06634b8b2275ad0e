// Package guard holds the checks that keep stock counters and line progress
// consistent. Services call it before every mutation; it never writes state.
package guard

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"stockflow/internal/core/apperror"
	"stockflow/internal/core/types"
	"stockflow/pkg/logger"
)

// Policy decides what happens when a release asks for more than is reserved.
type Policy string

const (
	// PolicyStrict fails the operation with INSUFFICIENT_RESERVATION.
	PolicyStrict Policy = "strict"
	// PolicyLenient clamps the release to what is reserved and reports a violation.
	// Meant for data migrated with stale reservations.
	PolicyLenient Policy = "lenient"
)

// ParsePolicy parses a policy name; empty means strict.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyStrict:
		return PolicyStrict, nil
	case PolicyLenient:
		return PolicyLenient, nil
	default:
		return "", fmt.Errorf("unknown reservation policy %q", s)
	}
}

// Violation describes stored state that contradicts an invariant.
type Violation struct {
	Kind      string
	Entity    string
	EntityID  string
	Requested types.Quantity
	Actual    types.Quantity
	Message   string
}

// Reporter receives consistency violations.
type Reporter interface {
	Report(ctx context.Context, v Violation)
}

// LogReporter writes violations to the error log.
type LogReporter struct{}

// Report implements Reporter.
func (LogReporter) Report(ctx context.Context, v Violation) {
	logger.Error(ctx, "consistency violation",
		"kind", v.Kind,
		"entity", v.Entity,
		"entity_id", v.EntityID,
		"requested", v.Requested.String(),
		"actual", v.Actual.String(),
		"message", v.Message,
	)
}

// Violation kinds.
const (
	KindReservationShortfall = "reservation_shortfall"
	KindStockInvariant       = "stock_invariant"
	KindLineInvariant        = "line_invariant"
)

// Guard runs invariant checks. It is safe for concurrent use.
type Guard struct {
	policy     Policy
	reporter   Reporter
	violations atomic.Int64
}

// New creates a Guard. A nil reporter logs.
func New(policy Policy, reporter Reporter) *Guard {
	if policy == "" {
		policy = PolicyStrict
	}
	if reporter == nil {
		reporter = LogReporter{}
	}
	return &Guard{policy: policy, reporter: reporter}
}

// Policy returns the configured reservation policy.
func (g *Guard) Policy() Policy { return g.policy }

// Violations returns how many violations were reported since start.
func (g *Guard) Violations() int64 { return g.violations.Load() }

func (g *Guard) report(ctx context.Context, v Violation) {
	g.violations.Add(1)
	g.reporter.Report(ctx, v)
}

// RequireAvailable fails with INSUFFICIENT_STOCK unless physical-reserved covers qty.
func (g *Guard) RequireAvailable(productID string, physical, reserved, qty types.Quantity) error {
	if available := physical - reserved; available < qty {
		return apperror.NewInsufficientStock(productID, qty.Float64(), available.Float64())
	}
	return nil
}

// RequireReservation returns how much reserved stock a consuming release may take.
//
// With enough reserved stock that is qty. On a shortfall the strict policy
// fails and the lenient policy returns what is reserved; both report it.
func (g *Guard) RequireReservation(ctx context.Context, productID string, reserved, qty types.Quantity) (types.Quantity, error) {
	if reserved >= qty {
		return qty, nil
	}
	v := Violation{
		Kind:      KindReservationShortfall,
		Entity:    "product",
		EntityID:  productID,
		Requested: qty,
		Actual:    reserved,
		Message:   "release exceeds reserved stock",
	}
	g.report(ctx, v)
	if g.policy == PolicyStrict {
		return 0, apperror.NewInsufficientReservation(productID, qty.Float64(), reserved.Float64())
	}
	return max(reserved, 0), nil
}

// ClampRelease returns min(qty, reserved) for a release that never fails,
// reporting when the reservation was short.
func (g *Guard) ClampRelease(ctx context.Context, productID string, reserved, qty types.Quantity) types.Quantity {
	if reserved >= qty {
		return qty
	}
	g.report(ctx, Violation{
		Kind:      KindReservationShortfall,
		Entity:    "product",
		EntityID:  productID,
		Requested: qty,
		Actual:    reserved,
		Message:   "release clamped to reserved stock",
	})
	return max(reserved, 0)
}

// RequireStockInvariant checks 0 <= reserved <= physical.
func (g *Guard) RequireStockInvariant(ctx context.Context, productID string, physical, reserved types.Quantity) error {
	if reserved >= 0 && reserved <= physical {
		return nil
	}
	g.report(ctx, Violation{
		Kind:      KindStockInvariant,
		Entity:    "product",
		EntityID:  productID,
		Requested: reserved,
		Actual:    physical,
		Message:   "reserved stock outside [0, physical]",
	})
	return apperror.NewConsistencyViolation("reserved stock must stay between zero and physical stock").
		WithDetail("product_id", productID).
		WithDetail("physical", physical.Float64()).
		WithDetail("reserved", reserved.Float64())
}

// RequireRemaining fails with OVER_DELIVERY when requested exceeds quantity-delivered-cancelled.
func (g *Guard) RequireRemaining(lineID string, quantity, delivered, cancelled, requested types.Quantity) error {
	if remaining := quantity - delivered - cancelled; requested > remaining {
		return apperror.NewOverDelivery(lineID, requested.Float64(), remaining.Float64())
	}
	return nil
}

// RequireReturnable fails with OVER_RETURN when requested exceeds quantity-returned.
func (g *Guard) RequireReturnable(lineID string, quantity, returned, requested types.Quantity) error {
	if returnable := quantity - returned; requested > returnable {
		return apperror.NewOverReturn(lineID, requested.Float64(), returnable.Float64())
	}
	return nil
}

// RequireLineInvariant checks 0 <= delivered and delivered+cancelled <= quantity.
func (g *Guard) RequireLineInvariant(ctx context.Context, lineID string, quantity, delivered, cancelled types.Quantity) error {
	if delivered >= 0 && cancelled >= 0 && delivered+cancelled <= quantity {
		return nil
	}
	g.report(ctx, Violation{
		Kind:      KindLineInvariant,
		Entity:    "sales_line",
		EntityID:  lineID,
		Requested: delivered + cancelled,
		Actual:    quantity,
		Message:   "delivered plus cancelled exceeds ordered quantity",
	})
	return apperror.NewConsistencyViolation("line progress exceeds ordered quantity").
		WithDetail("line_id", lineID)
}
