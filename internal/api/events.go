package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/kestrelcam/kestrel-go/internal/datastore/repository"
	"github.com/kestrelcam/kestrel-go/internal/ingest"
	"github.com/kestrelcam/kestrel-go/internal/logger"
)

const (
	maxEventBodyBytes = 64 * 1024
	maxRecentEvents   = 500
)

func (c *Controller) initEventRoutes(g *echo.Group) {
	events := g.Group("/events")
	events.POST("", c.SubmitEvent)
	events.GET("", c.ListEvents)
	events.GET("/:id", c.GetEvent)
}

// SubmitEvent accepts one detection over HTTP and enqueues it for
// evaluation. 202 means accepted into the queue, not yet evaluated.
func (c *Controller) SubmitEvent(ctx echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(ctx.Request().Body, maxEventBodyBytes))
	if err != nil {
		return errorResponse(ctx, http.StatusBadRequest, "Failed to read request body")
	}

	event, err := ingest.DecodeDetection(body, time.Now)
	if err != nil {
		return errorResponse(ctx, http.StatusBadRequest, "Invalid detection payload: "+err.Error())
	}

	if !c.submitter.Submit(event) {
		// Duplicate or shed under load; either way the event was not queued.
		return ctx.JSON(http.StatusTooManyRequests, map[string]string{
			"status":   "rejected",
			"event_id": event.ID,
		})
	}
	return ctx.JSON(http.StatusAccepted, map[string]string{
		"status":   "accepted",
		"event_id": event.ID,
	})
}

// ListEvents returns recent camera events, newest first.
func (c *Controller) ListEvents(ctx echo.Context) error {
	limit := 50
	if p := ctx.QueryParam("limit"); p != "" {
		v, err := strconv.Atoi(p)
		if err != nil || v < 1 || v > maxRecentEvents {
			return errorResponse(ctx, http.StatusBadRequest, "Invalid limit")
		}
		limit = v
	}

	events, err := c.events.ListRecent(ctx.Request().Context(), limit)
	if err != nil {
		c.log.Error("failed to list camera events", logger.Error(err))
		return errorResponse(ctx, http.StatusInternalServerError, "Failed to list events")
	}
	return ctx.JSON(http.StatusOK, map[string]any{
		"events": events,
		"count":  len(events),
	})
}

// GetEvent returns one stored camera event.
func (c *Controller) GetEvent(ctx echo.Context) error {
	event, err := c.events.GetEvent(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrEventNotFound) {
			return errorResponse(ctx, http.StatusNotFound, "Event not found")
		}
		c.log.Error("failed to get camera event", logger.Error(err))
		return errorResponse(ctx, http.StatusInternalServerError, "Failed to get event")
	}
	return ctx.JSON(http.StatusOK, event)
}
