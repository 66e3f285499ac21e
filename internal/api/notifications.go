package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/kestrelcam/kestrel-go/internal/datastore/repository"
	"github.com/kestrelcam/kestrel-go/internal/logger"
)

func (c *Controller) initNotificationRoutes(g *echo.Group) {
	notifs := g.Group("/notifications")
	notifs.GET("", c.ListNotifications)
	notifs.GET("/unread-count", c.UnreadCount)
	notifs.PATCH("/:id/read", c.MarkNotificationRead)
	notifs.POST("/read-all", c.MarkAllNotificationsRead)
}

// ListNotifications returns stored notifications, newest first.
func (c *Controller) ListNotifications(ctx echo.Context) error {
	filter := repository.NotificationFilter{Limit: 50}

	if p := ctx.QueryParam("unread"); p == "true" {
		filter.UnreadOnly = true
	}
	if p := ctx.QueryParam("rule_id"); p != "" {
		v, err := strconv.ParseUint(p, 10, 32)
		if err != nil {
			return errorResponse(ctx, http.StatusBadRequest, "Invalid rule_id")
		}
		filter.RuleID = uint(v)
	}
	if p := ctx.QueryParam("limit"); p != "" {
		v, err := strconv.Atoi(p)
		if err != nil || v < 1 || v > 200 {
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

	items, total, err := c.notifications.List(ctx.Request().Context(), filter)
	if err != nil {
		c.log.Error("failed to list notifications", logger.Error(err))
		return errorResponse(ctx, http.StatusInternalServerError, "Failed to list notifications")
	}
	return ctx.JSON(http.StatusOK, map[string]any{
		"notifications": items,
		"total":         total,
	})
}

// UnreadCount returns the number of unread notifications.
func (c *Controller) UnreadCount(ctx echo.Context) error {
	count, err := c.notifications.Unread(ctx.Request().Context())
	if err != nil {
		c.log.Error("failed to count unread notifications", logger.Error(err))
		return errorResponse(ctx, http.StatusInternalServerError, "Failed to count notifications")
	}
	return ctx.JSON(http.StatusOK, map[string]int64{"unread": count})
}

// MarkNotificationRead flags one notification read or unread.
func (c *Controller) MarkNotificationRead(ctx echo.Context) error {
	id, err := parseUintParam(ctx, "id")
	if err != nil {
		return errorResponse(ctx, http.StatusBadRequest, "Invalid notification ID")
	}

	body := struct {
		Read bool `json:"read"`
	}{Read: true}
	if err := ctx.Bind(&body); err != nil {
		return errorResponse(ctx, http.StatusBadRequest, "Invalid request body")
	}

	if err := c.notifications.MarkRead(ctx.Request().Context(), id, body.Read); err != nil {
		if errors.Is(err, repository.ErrNotificationNotFound) {
			return errorResponse(ctx, http.StatusNotFound, "Notification not found")
		}
		c.log.Error("failed to mark notification", logger.Error(err))
		return errorResponse(ctx, http.StatusInternalServerError, "Failed to update notification")
	}
	return ctx.JSON(http.StatusOK, map[string]any{"id": id, "read": body.Read})
}

// MarkAllNotificationsRead flags every unread notification as read.
func (c *Controller) MarkAllNotificationsRead(ctx echo.Context) error {
	marked, err := c.notifications.MarkAllRead(ctx.Request().Context())
	if err != nil {
		c.log.Error("failed to mark all notifications read", logger.Error(err))
		return errorResponse(ctx, http.StatusInternalServerError, "Failed to update notifications")
	}
	return ctx.JSON(http.StatusOK, map[string]int64{"marked": marked})
}
