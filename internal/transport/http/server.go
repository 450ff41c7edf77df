// Package http provides the HTTP server implementation for the session API.
package http

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/xiaot623/negarena/internal/metrics"
	"github.com/xiaot623/negarena/internal/service"
	v1 "github.com/xiaot623/negarena/internal/transport/http/v1"
	"github.com/xiaot623/negarena/internal/transport/ws"
)

// NewServer creates and configures the HTTP server: the v1 session API, the
// WebSocket push stream, health and Prometheus metrics.
func NewServer(svc *service.Service, m *metrics.Metrics, streamPing time.Duration) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	// Handlers
	v1Handler := v1.NewHandler(svc)
	streamServer := ws.NewServer(svc, streamPing)

	// Register Routes
	v1Handler.RegisterRoutes(e)
	streamServer.RegisterRoutes(e)
	e.GET("/metrics", echo.WrapHandler(m.Handler()))

	return e
}
