// Package api exposes the HTTP interface: detection intake, alert rule
// management, delivery history, and notifications.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kestrelcam/kestrel-go/internal/alerting"
	"github.com/kestrelcam/kestrel-go/internal/conf"
	"github.com/kestrelcam/kestrel-go/internal/datastore/repository"
	"github.com/kestrelcam/kestrel-go/internal/logger"
	"github.com/kestrelcam/kestrel-go/internal/notification"
)

const shutdownTimeout = 10 * time.Second

// RuleTester runs a rule in test mode against recent events. Implemented
// by alerting.Engine.
type RuleTester interface {
	TestRule(ctx context.Context, ruleID uint, sampleSize int) (*alerting.RuleTestResult, error)
}

// EventSubmitter accepts detections into the intake queue. Implemented by
// ingest.Pipeline.
type EventSubmitter interface {
	Submit(event *alerting.Event) bool
}

// Controller holds the HTTP handlers and their dependencies.
type Controller struct {
	echo          *echo.Echo
	rules         repository.AlertRuleRepository
	events        repository.CameraEventRepository
	logs          repository.DeliveryLogRepository
	notifications *notification.Service
	tester        RuleTester
	submitter     EventSubmitter
	log           logger.Logger
}

// ControllerConfig collects the controller's dependencies.
type ControllerConfig struct {
	Rules         repository.AlertRuleRepository
	Events        repository.CameraEventRepository
	DeliveryLogs  repository.DeliveryLogRepository
	Notifications *notification.Service
	Tester        RuleTester
	Submitter     EventSubmitter
	// Registry serves /metrics; nil disables the endpoint.
	Registry *prometheus.Registry
	Log      logger.Logger
}

// NewController creates the echo application and registers all routes.
func NewController(cfg ControllerConfig) *Controller {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())

	c := &Controller{
		echo:          e,
		rules:         cfg.Rules,
		events:        cfg.Events,
		logs:          cfg.DeliveryLogs,
		notifications: cfg.Notifications,
		tester:        cfg.Tester,
		submitter:     cfg.Submitter,
		log:           cfg.Log,
	}

	e.GET("/healthz", c.Health)
	if cfg.Registry != nil {
		e.GET("/metrics", echo.WrapHandler(
			promhttp.HandlerFor(cfg.Registry, promhttp.HandlerOpts{})))
	}

	v1 := e.Group("/api/v1")
	c.initEventRoutes(v1)
	c.initRuleRoutes(v1)
	c.initHistoryRoutes(v1)
	c.initNotificationRoutes(v1)
	return c
}

// Health reports liveness.
func (c *Controller) Health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// Start blocks serving HTTP until the listener fails or Shutdown is called.
func (c *Controller) Start(cfg conf.ServerSettings) error {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	c.log.Info("http server listening", logger.String("addr", addr))
	if err := c.echo.Start(addr); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests and stops the listener.
func (c *Controller) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	return c.echo.Shutdown(ctx)
}

// errorResponse is the uniform error body.
func errorResponse(ctx echo.Context, status int, message string) error {
	return ctx.JSON(status, map[string]string{"error": message})
}
