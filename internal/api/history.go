package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/kestrelcam/kestrel-go/internal/datastore/repository"
	"github.com/kestrelcam/kestrel-go/internal/logger"
)

const maxHistoryLimit = 200

func (c *Controller) initHistoryRoutes(g *echo.Group) {
	g.GET("/history", c.ListHistory)
}

// ListHistory returns the delivery audit log, newest first, with optional
// rule_id / event_id / success filters.
func (c *Controller) ListHistory(ctx echo.Context) error {
	filter := repository.DeliveryLogFilter{Limit: 50}

	if p := ctx.QueryParam("rule_id"); p != "" {
		v, err := strconv.ParseUint(p, 10, 32)
		if err != nil {
			return errorResponse(ctx, http.StatusBadRequest, "Invalid rule_id")
		}
		filter.RuleID = uint(v)
	}
	if p := ctx.QueryParam("event_id"); p != "" {
		filter.EventID = p
	}
	if p := ctx.QueryParam("success"); p != "" {
		v := p == "true"
		filter.Success = &v
	}
	if p := ctx.QueryParam("limit"); p != "" {
		v, err := strconv.Atoi(p)
		if err != nil || v < 1 || v > maxHistoryLimit {
			return errorResponse(ctx, http.StatusBadRequest, "Invalid limit")
		}
		filter.Limit = v
	}
	if p := ctx.QueryParam("offset"); p != "" {
		v, err := strconv.Atoi(p)
		if err != nil || v < 0 {
			return errorResponse(ctx, http.StatusBadRequest, "Invalid offset")
		}
		filter.Offset = v
	}

	logs, total, err := c.logs.ListLogs(ctx.Request().Context(), filter)
	if err != nil {
		c.log.Error("failed to list delivery history", logger.Error(err))
		return errorResponse(ctx, http.StatusInternalServerError, "Failed to list delivery history")
	}
	return ctx.JSON(http.StatusOK, map[string]any{
		"history": logs,
		"total":   total,
	})
}
