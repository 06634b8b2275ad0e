package v1

import (
	"github.com/gin-gonic/gin"

	"stockflow/internal/core/idempotency"
	"stockflow/internal/domain/fulfillment"
	"stockflow/internal/infrastructure/http/v1/handlers"
	"stockflow/internal/infrastructure/http/v1/middleware"
	"stockflow/pkg/logger"
)

// RouterConfig holds router configuration.
type RouterConfig struct {
	// Logger for request logging
	Logger *logger.Logger

	// Service runs the fulfillment operations
	Service *fulfillment.Service

	// JWTValidator enables bearer auth when set. Without it the operator is
	// taken from X-User-ID and role checks are skipped.
	JWTValidator middleware.JWTValidator

	// Idempotency enables the idempotency middleware when set
	Idempotency idempotency.Store

	// DB is pinged by the readiness probe; nil for the memory driver
	DB handlers.Pinger

	// Driver names the storage driver in health output
	Driver string
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Logger == nil {
		cfg.Logger = logger.NewNop()
	}

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	healthHandler := handlers.NewHealthHandler(cfg.DB, cfg.Driver)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
	}

	api := router.Group("/api/v1")

	acl := access{enabled: cfg.JWTValidator != nil}
	if acl.enabled {
		api.Use(middleware.Auth(cfg.JWTValidator))
	} else {
		api.Use(middleware.UserContext())
	}

	// Runs after auth so keys are scoped to the caller.
	if cfg.Idempotency != nil {
		api.Use(middleware.Idempotency(cfg.Idempotency))
	}

	registerRoutes(api, cfg, acl)

	return router
}

func registerRoutes(api *gin.RouterGroup, cfg RouterConfig, acl access) {
	base := handlers.NewBaseHandler()

	// --- SALES ---
	{
		h := handlers.NewSalesHandler(base, cfg.Service)
		sales := api.Group("/sales")
		registerResourceRoutes(sales, h, acl, RoleSales)
		sales.DELETE("/:id", acl.roles(RoleSales), h.Delete)
		sales.POST("/:id/deliveries", acl.roles(RoleWarehouse), h.MarkAsTaken)
		sales.GET("/:id/deliveries", h.ListDeliveries)
	}

	// --- RETURNS ---
	{
		h := handlers.NewReturnHandler(base, cfg.Service)
		returns := api.Group("/returns")
		registerResourceRoutes(returns, h, acl, RoleSales)
		returns.PATCH("/:id/refund-status", acl.roles(RoleSales), h.SetRefundStatus)
	}

	// --- PRODUCTS ---
	{
		h := handlers.NewProductHandler(base, cfg.Service)
		products := api.Group("/products")
		products.POST("", acl.roles(RoleWarehouse), h.Create)
		products.GET("/:id/stock", h.GetStock)
		products.POST("/:id/adjustments", acl.roles(RoleWarehouse), h.Adjust)
		products.GET("/:id/adjustments", h.ListAdjustments)
	}

	// --- COUNTERPARTIES ---
	{
		h := handlers.NewCounterpartyHandler(base, cfg.Service)
		registerResourceRoutes(api.Group("/counterparties"), h, acl, RoleSales)
	}

	// --- AUDIT ---
	{
		h := handlers.NewAuditHandler(base, cfg.Service)
		api.GET("/audit/:entityType/:entityId", acl.roles(RoleAuditor), h.History)
	}
}
