package fulfillment

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"stockflow/internal/core/id"
	"stockflow/internal/core/types"
	"stockflow/internal/domain/audit"
	"stockflow/internal/domain/catalogs/counterparty"
	"stockflow/internal/domain/documents/delivery"
	"stockflow/internal/domain/documents/sales"
	"stockflow/internal/domain/documents/salesreturn"
	"stockflow/internal/domain/registers/stock"
	"stockflow/internal/domain/uow"
)

var tracer = otel.Tracer("stockflow/fulfillment")

// Service runs each Engine operation in its own unit of work.
type Service struct {
	store  uow.Store
	engine *Engine
}

// NewService creates a Service.
func NewService(store uow.Store, engine *Engine) *Service {
	return &Service{store: store, engine: engine}
}

// Engine returns the underlying engine for callers composing their own units.
func (s *Service) Engine() *Engine { return s.engine }

func (s *Service) atomic(ctx context.Context, op string, fn func(ctx context.Context, u uow.UnitOfWork) error, attrs ...attribute.KeyValue) error {
	ctx, span := tracer.Start(ctx, "fulfillment."+op, trace.WithAttributes(attrs...))
	defer span.End()

	err := s.store.Atomic(ctx, fn)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (s *Service) readOnly(ctx context.Context, op string, fn func(ctx context.Context, u uow.UnitOfWork) error) error {
	ctx, span := tracer.Start(ctx, "fulfillment."+op)
	defer span.End()
	return s.store.ReadOnly(ctx, fn)
}

// IssueTransaction creates an invoice or quotation.
func (s *Service) IssueTransaction(ctx context.Context, in IssueInput) (*sales.Transaction, error) {
	var out *sales.Transaction
	err := s.atomic(ctx, "IssueTransaction", func(ctx context.Context, u uow.UnitOfWork) error {
		var err error
		out, err = s.engine.IssueTransaction(ctx, u, in)
		return err
	}, attribute.Int("lines", len(in.Lines)), attribute.Bool("quotation", in.IsQuotation))
	return out, err
}

// DeleteTransaction voids a transaction.
func (s *Service) DeleteTransaction(ctx context.Context, transactionID id.ID) error {
	return s.atomic(ctx, "DeleteTransaction", func(ctx context.Context, u uow.UnitOfWork) error {
		return s.engine.DeleteTransaction(ctx, u, transactionID)
	}, attribute.String("transaction_id", transactionID.String()))
}

// MarkAsTaken records a delivery.
func (s *Service) MarkAsTaken(ctx context.Context, transactionID id.ID, items []DeliveryItem, meta delivery.Metadata) (*DeliveryResult, error) {
	var out *DeliveryResult
	err := s.atomic(ctx, "MarkAsTaken", func(ctx context.Context, u uow.UnitOfWork) error {
		var err error
		out, err = s.engine.MarkAsTaken(ctx, u, transactionID, items, meta)
		return err
	}, attribute.String("transaction_id", transactionID.String()), attribute.Int("items", len(items)))
	return out, err
}

// CreateReturn records a sales return.
func (s *Service) CreateReturn(ctx context.Context, in ReturnInput) (*salesreturn.Record, error) {
	var out *salesreturn.Record
	err := s.atomic(ctx, "CreateReturn", func(ctx context.Context, u uow.UnitOfWork) error {
		var err error
		out, err = s.engine.CreateReturn(ctx, u, in)
		return err
	}, attribute.String("transaction_id", in.TransactionID.String()))
	return out, err
}

// SetRefundStatus updates refund progress of a return.
func (s *Service) SetRefundStatus(ctx context.Context, returnID id.ID, status salesreturn.RefundStatus) (*salesreturn.Record, error) {
	var out *salesreturn.Record
	err := s.atomic(ctx, "SetRefundStatus", func(ctx context.Context, u uow.UnitOfWork) error {
		var err error
		out, err = s.engine.SetRefundStatus(ctx, u, returnID, status)
		return err
	})
	return out, err
}

// AdjustStock applies a manual stock correction.
func (s *Service) AdjustStock(ctx context.Context, productID id.ID, delta types.Quantity, note string) (*stock.Product, *stock.Adjustment, error) {
	var (
		p   *stock.Product
		adj *stock.Adjustment
	)
	err := s.atomic(ctx, "AdjustStock", func(ctx context.Context, u uow.UnitOfWork) error {
		var err error
		p, adj, err = s.engine.AdjustStock(ctx, u, productID, delta, note)
		return err
	}, attribute.String("product_id", productID.String()))
	return p, adj, err
}

// ProductAvailability reads a product's stock counters.
func (s *Service) ProductAvailability(ctx context.Context, productID id.ID) (*stock.Product, error) {
	var out *stock.Product
	err := s.readOnly(ctx, "ProductAvailability", func(ctx context.Context, u uow.UnitOfWork) error {
		var err error
		out, err = s.engine.ProductAvailability(ctx, u, productID)
		return err
	})
	return out, err
}

// GetTransaction reads a transaction with its lines.
func (s *Service) GetTransaction(ctx context.Context, transactionID id.ID) (*sales.Transaction, error) {
	var out *sales.Transaction
	err := s.readOnly(ctx, "GetTransaction", func(ctx context.Context, u uow.UnitOfWork) error {
		var err error
		out, err = s.engine.GetTransaction(ctx, u, transactionID)
		return err
	})
	return out, err
}

// ListDeliveries reads the delivery records of a transaction.
func (s *Service) ListDeliveries(ctx context.Context, transactionID id.ID) ([]delivery.Record, error) {
	var out []delivery.Record
	err := s.readOnly(ctx, "ListDeliveries", func(ctx context.Context, u uow.UnitOfWork) error {
		var err error
		out, err = s.engine.ListDeliveries(ctx, u, transactionID)
		return err
	})
	return out, err
}

// GetReturn reads a sales return.
func (s *Service) GetReturn(ctx context.Context, returnID id.ID) (*salesreturn.Record, error) {
	var out *salesreturn.Record
	err := s.readOnly(ctx, "GetReturn", func(ctx context.Context, u uow.UnitOfWork) error {
		var err error
		out, err = s.engine.GetReturn(ctx, u, returnID)
		return err
	})
	return out, err
}

// CreateProduct registers a product.
func (s *Service) CreateProduct(ctx context.Context, p *stock.Product) error {
	return s.atomic(ctx, "CreateProduct", func(ctx context.Context, u uow.UnitOfWork) error {
		return s.engine.CreateProduct(ctx, u, p)
	}, attribute.String("code", p.Code))
}

// CreateCounterparty registers a counterparty.
func (s *Service) CreateCounterparty(ctx context.Context, c *counterparty.Counterparty) error {
	return s.atomic(ctx, "CreateCounterparty", func(ctx context.Context, u uow.UnitOfWork) error {
		return s.engine.CreateCounterparty(ctx, u, c)
	}, attribute.String("code", c.Code))
}

// GetCounterparty reads a counterparty with its balances.
func (s *Service) GetCounterparty(ctx context.Context, counterpartyID id.ID) (*counterparty.Counterparty, error) {
	var out *counterparty.Counterparty
	err := s.readOnly(ctx, "GetCounterparty", func(ctx context.Context, u uow.UnitOfWork) error {
		var err error
		out, err = s.engine.GetCounterparty(ctx, u, counterpartyID)
		return err
	})
	return out, err
}

// ListAdjustments reads the adjustment journal of a product.
func (s *Service) ListAdjustments(ctx context.Context, productID id.ID, limit int) ([]stock.Adjustment, error) {
	var out []stock.Adjustment
	err := s.readOnly(ctx, "ListAdjustments", func(ctx context.Context, u uow.UnitOfWork) error {
		var err error
		out, err = s.engine.ListAdjustments(ctx, u, productID, limit)
		return err
	})
	return out, err
}

// AuditHistory reads the audit trail of one entity.
func (s *Service) AuditHistory(ctx context.Context, entityType string, entityID id.ID, limit int) ([]audit.Entry, error) {
	var out []audit.Entry
	err := s.readOnly(ctx, "AuditHistory", func(ctx context.Context, u uow.UnitOfWork) error {
		var err error
		out, err = s.engine.AuditHistory(ctx, u, entityType, entityID, limit)
		return err
	})
	return out, err
}
