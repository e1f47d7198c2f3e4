// Package v1 exposes the versioned JSON API.
package v1

import (
	"github.com/labstack/echo/v4"

	"github.com/hrygo/citypulse/internal/profile"
	"github.com/hrygo/citypulse/search"
)

// APIV1Service groups the v1 route handlers.
type APIV1Service struct {
	Profile *profile.Profile
	Engine  *search.Engine
}

// NewAPIV1Service creates the v1 API surface.
func NewAPIV1Service(p *profile.Profile, engine *search.Engine) *APIV1Service {
	return &APIV1Service{Profile: p, Engine: engine}
}

// Register mounts the v1 routes.
func (s *APIV1Service) Register(e *echo.Echo) {
	g := e.Group("/api/v1")
	g.POST("/search", s.handleSearch)
	g.GET("/diagnostics", s.handleDiagnostics)
	g.GET("/flags", s.handleListFlags)
	g.PUT("/flags/:name", s.handleToggleFlag)
}
