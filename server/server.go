// Package server hosts the HTTP surface: the search API, health and
// diagnostics endpoints, and the Prometheus exporter.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/hrygo/citypulse/internal/profile"
	"github.com/hrygo/citypulse/search"
	"github.com/hrygo/citypulse/search/metrics"
	apiv1 "github.com/hrygo/citypulse/server/router/api/v1"
)

// Server owns the echo instance and its graceful lifecycle.
type Server struct {
	e       *echo.Echo
	profile *profile.Profile
	engine  *search.Engine
}

// NewServer wires the API routes onto a fresh echo instance.
func NewServer(_ context.Context, p *profile.Profile, engine *search.Engine, exporter *metrics.PrometheusExporter) (*Server, error) {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:    true,
		LogStatus: true,
		LogMethod: true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			slog.Info("request", "method", v.Method, "uri", v.URI, "status", v.Status)
			return nil
		},
	}))
	e.Use(middleware.TimeoutWithConfig(middleware.TimeoutConfig{
		Timeout: 30 * time.Second,
	}))

	s := &Server{e: e, profile: p, engine: engine}

	e.GET("/healthz", s.handleHealth)
	if exporter != nil {
		e.GET("/metrics", echo.WrapHandler(exporter.Handler()))
	}

	apiv1.NewAPIV1Service(p, engine).Register(e)
	return s, nil
}

// Start begins serving; it blocks until the listener fails or closes.
func (s *Server) Start(_ context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.profile.Addr, s.profile.Port)
	return s.e.Start(addr)
}

// Shutdown drains in-flight requests with a deadline.
func (s *Server) Shutdown(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := s.e.Shutdown(ctx); err != nil {
		slog.Error("server shutdown failed", "error", err)
	}
	slog.Info("server stopped")
}

// Echo exposes the router for tests.
func (s *Server) Echo() *echo.Echo { return s.e }

func (s *Server) handleHealth(c echo.Context) error {
	h := s.engine.CheckHealth()
	code := http.StatusOK
	if h.Status == "down" {
		code = http.StatusServiceUnavailable
	}
	return c.JSON(code, h)
}
