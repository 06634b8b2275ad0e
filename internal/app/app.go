// Package app wires the fulfillment service to a storage driver.
package app

import (
	"context"
	"fmt"
	"strings"

	"stockflow/internal/core/idempotency"
	"stockflow/internal/domain/fulfillment"
	"stockflow/internal/domain/guard"
	"stockflow/internal/domain/registers/stock"
	"stockflow/internal/domain/uow"
	"stockflow/internal/infrastructure/storage/memory"
	"stockflow/internal/infrastructure/storage/postgres"
	"stockflow/internal/infrastructure/storage/postgres/store"
	"stockflow/pkg/logger"
	"stockflow/pkg/numerator"
)

// Storage drivers.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config selects the driver and the engine settings.
type Config struct {
	Driver      string
	DatabaseURL string
	MaxConns    int32

	BaseCurrency      string
	ReservationPolicy string
	ReorderRule       string

	// AuditCompressThreshold is the size above which audit documents are
	// zstd-compressed. Zero uses the codec default.
	AuditCompressThreshold int
}

// App is an assembled fulfillment service.
type App struct {
	Driver      string
	Service     *fulfillment.Service
	Guard       *guard.Guard
	Idempotency idempotency.Store

	// Pool and TxManager are nil for the memory driver.
	Pool      *postgres.Pool
	TxManager *postgres.TxManager

	// Memory is set for the memory driver only.
	Memory *memory.Store
}

// New builds an App. The caller closes it.
func New(ctx context.Context, cfg Config) (*App, error) {
	policy, err := guard.ParsePolicy(cfg.ReservationPolicy)
	if err != nil {
		return nil, err
	}
	rule, err := stock.NewReorderRule(cfg.ReorderRule)
	if err != nil {
		return nil, err
	}

	g := guard.New(policy, guard.LogReporter{})
	engine := fulfillment.NewEngine(stock.NewLedger(g, rule), g, numerator.New(), fulfillment.Config{
		BaseCurrency: strings.ToUpper(cfg.BaseCurrency),
	})

	a := &App{Driver: cfg.Driver, Guard: g}

	var units uow.Store
	switch cfg.Driver {
	case DriverMemory:
		a.Memory = memory.New()
		a.Idempotency = idempotency.NewMemoryStore(idempotency.DefaultTTL)
		units = a.Memory
	case DriverPostgres, "":
		a.Driver = DriverPostgres
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required for the %s driver", DriverPostgres)
		}
		poolCfg := postgres.DefaultPoolConfig(cfg.DatabaseURL)
		if cfg.MaxConns > 0 {
			poolCfg.MaxConns = cfg.MaxConns
		}
		a.Pool, err = postgres.NewPool(ctx, poolCfg)
		if err != nil {
			return nil, err
		}
		a.TxManager = postgres.NewTxManager(a.Pool)
		a.Idempotency = postgres.NewIdempotencyStore(a.Pool, idempotency.DefaultTTL)
		codec, err := postgres.NewAuditCodec(cfg.AuditCompressThreshold)
		if err != nil {
			return nil, err
		}
		units = store.New(a.TxManager, codec)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}

	a.Service = fulfillment.NewService(units, engine)

	logger.Info(ctx, "fulfillment service ready",
		"driver", a.Driver,
		"policy", g.Policy(),
		"reorder_rule", rule.Expression(),
	)
	return a, nil
}

// Close releases the database pool.
func (a *App) Close() {
	if a.Pool != nil {
		a.Pool.Close()
	}
}
