// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"

	"stockflow/internal/infrastructure/http/v1/middleware"
)

// Roles carried in bearer tokens.
const (
	RoleAdmin     = "admin"
	RoleSales     = "sales"
	RoleWarehouse = "warehouse"
	RoleAuditor   = "auditor"
)

// access builds role checks. With auth disabled every check passes.
type access struct {
	enabled bool
}

func (a access) roles(roles ...string) gin.HandlerFunc {
	return middleware.RequireRole(a.enabled, append([]string{RoleAdmin}, roles...)...)
}

// ResourceRouteHandler is implemented by handlers exposing create and read by id.
type ResourceRouteHandler interface {
	Create(c *gin.Context)
	Get(c *gin.Context)
}

// registerResourceRoutes registers POST "" and GET "/:id" for a resource.
// Reads are open to any authenticated caller; writes need one of writeRoles.
//
// Usage:
//
//	handler := handlers.NewCounterpartyHandler(base, cfg.Service)
//	registerResourceRoutes(api.Group("/counterparties"), handler, acl, RoleSales)
func registerResourceRoutes(group *gin.RouterGroup, handler ResourceRouteHandler, acl access, writeRoles ...string) {
	group.POST("", acl.roles(writeRoles...), handler.Create)
	group.GET("/:id", handler.Get)
}
