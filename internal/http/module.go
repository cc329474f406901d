// Package http provides HTTP server infrastructure including the Module interface
// that all domain modules must implement for route registration.
package http

import (
	"github.com/frank1beans/tender-reconciler/platform/config"
	"github.com/frank1beans/tender-reconciler/platform/httpkit"

	"github.com/gin-gonic/gin"
)

// Module represents a bounded context that can register its HTTP routes.
// Each domain module implements this interface to encapsulate its own
// route setup, keeping the main router decoupled from specific endpoints.
type Module interface {
	// Name returns the module's identifier for logging purposes.
	Name() string
	// RegisterRoutes mounts the module's routes on the provided router group.
	// The RouterContext provides access to shared middleware and configuration.
	RegisterRoutes(ctx *RouterContext)
}

// RouterContext provides shared dependencies for module route registration.
// This avoids passing many parameters to each module's RegisterRoutes method.
// Per spec.md §1, authentication/RBAC are out of scope: there is no
// Protected/Admin group split here, only the shared /api/v1 group.
type RouterContext struct {
	// Engine is the root Gin engine for modules that need engine-level access.
	Engine *gin.Engine
	// V1 is the /api/v1 route group.
	V1 *gin.RouterGroup
	// Config carries the HTTP-facing configuration (CORS, listen address).
	Config config.HTTPConfig
	// WriteRateLimiter is the stricter rate limiter for mutating routes
	// (import commits, manual price overrides).
	WriteRateLimiter *httpkit.AuthRateLimiter
}
