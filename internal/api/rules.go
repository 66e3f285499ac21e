package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/kestrelcam/kestrel-go/internal/alerting"
	"github.com/kestrelcam/kestrel-go/internal/datastore/entities"
	"github.com/kestrelcam/kestrel-go/internal/datastore/repository"
	"github.com/kestrelcam/kestrel-go/internal/logger"
)

// defaultTestSampleSize bounds how many recent events a rule test examines.
const defaultTestSampleSize = 100

func (c *Controller) initRuleRoutes(g *echo.Group) {
	rules := g.Group("/rules")
	rules.GET("", c.ListRules)
	rules.POST("", c.CreateRule)
	rules.GET("/:id", c.GetRule)
	rules.PUT("/:id", c.UpdateRule)
	rules.DELETE("/:id", c.DeleteRule)
	rules.PATCH("/:id/toggle", c.ToggleRule)
	rules.POST("/:id/test", c.TestRule)
}

func parseUintParam(ctx echo.Context, name string) (uint, error) {
	v, err := strconv.ParseUint(ctx.Param(name), 10, 32)
	if err != nil {
		return 0, err
	}
	return uint(v), nil
}

// validateRule rejects rule payloads the engine could never evaluate.
// Conditions and actions are parsed here so misconfiguration is caught at
// write time instead of silently failing closed at evaluation time.
func validateRule(rule *entities.AlertRule) string {
	if rule.Name == "" {
		return "Rule name is required"
	}
	if rule.CooldownMinutes < 0 {
		return "Cooldown must not be negative"
	}
	if _, err := alerting.ParseConditions(rule.Conditions); err != nil {
		return "Invalid conditions: " + err.Error()
	}
	if _, err := alerting.ParseActions(rule.Actions); err != nil {
		return "Invalid actions: " + err.Error()
	}
	return ""
}

// ListRules returns alert rules, optionally filtered by enabled/built_in.
func (c *Controller) ListRules(ctx echo.Context) error {
	filter := repository.AlertRuleFilter{}
	if p := ctx.QueryParam("enabled"); p != "" {
		v := p == "true"
		filter.Enabled = &v
	}
	if p := ctx.QueryParam("built_in"); p != "" {
		v := p == "true"
		filter.BuiltIn = &v
	}

	rules, err := c.rules.ListRules(ctx.Request().Context(), filter)
	if err != nil {
		c.log.Error("failed to list alert rules", logger.Error(err))
		return errorResponse(ctx, http.StatusInternalServerError, "Failed to list alert rules")
	}
	return ctx.JSON(http.StatusOK, map[string]any{
		"rules": rules,
		"count": len(rules),
	})
}

// GetRule returns one alert rule.
func (c *Controller) GetRule(ctx echo.Context) error {
	id, err := parseUintParam(ctx, "id")
	if err != nil {
		return errorResponse(ctx, http.StatusBadRequest, "Invalid rule ID")
	}

	rule, err := c.rules.GetRule(ctx.Request().Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrAlertRuleNotFound) {
			return errorResponse(ctx, http.StatusNotFound, "Alert rule not found")
		}
		c.log.Error("failed to get alert rule", logger.Error(err))
		return errorResponse(ctx, http.StatusInternalServerError, "Failed to get alert rule")
	}
	return ctx.JSON(http.StatusOK, rule)
}

// CreateRule creates an alert rule.
func (c *Controller) CreateRule(ctx echo.Context) error {
	var rule entities.AlertRule
	if err := ctx.Bind(&rule); err != nil {
		return errorResponse(ctx, http.StatusBadRequest, "Invalid request body")
	}
	if msg := validateRule(&rule); msg != "" {
		return errorResponse(ctx, http.StatusBadRequest, msg)
	}

	reqCtx := ctx.Request().Context()
	count, err := c.rules.CountRulesByName(reqCtx, rule.Name)
	if err != nil {
		c.log.Error("failed to check rule name uniqueness", logger.Error(err))
		return errorResponse(ctx, http.StatusInternalServerError, "Failed to create alert rule")
	}
	if count > 0 {
		return errorResponse(ctx, http.StatusConflict, "A rule with this name already exists")
	}

	// Client-supplied trigger state is never trusted.
	rule.ID = 0
	rule.BuiltIn = false
	rule.LastTriggeredAt = nil
	rule.TriggerCount = 0

	if err := c.rules.CreateRule(reqCtx, &rule); err != nil {
		c.log.Error("failed to create alert rule", logger.Error(err))
		return errorResponse(ctx, http.StatusInternalServerError, "Failed to create alert rule")
	}

	c.log.Info("alert rule created",
		logger.String("name", rule.Name),
		logger.Uint64("id", uint64(rule.ID)))
	return ctx.JSON(http.StatusCreated, rule)
}

// UpdateRule replaces an alert rule's configuration.
func (c *Controller) UpdateRule(ctx echo.Context) error {
	id, err := parseUintParam(ctx, "id")
	if err != nil {
		return errorResponse(ctx, http.StatusBadRequest, "Invalid rule ID")
	}

	var rule entities.AlertRule
	if err := ctx.Bind(&rule); err != nil {
		return errorResponse(ctx, http.StatusBadRequest, "Invalid request body")
	}
	if msg := validateRule(&rule); msg != "" {
		return errorResponse(ctx, http.StatusBadRequest, msg)
	}

	rule.ID = id
	if err := c.rules.UpdateRule(ctx.Request().Context(), &rule); err != nil {
		if errors.Is(err, repository.ErrAlertRuleNotFound) {
			return errorResponse(ctx, http.StatusNotFound, "Alert rule not found")
		}
		c.log.Error("failed to update alert rule", logger.Error(err))
		return errorResponse(ctx, http.StatusInternalServerError, "Failed to update alert rule")
	}

	updated, err := c.rules.GetRule(ctx.Request().Context(), id)
	if err != nil {
		return errorResponse(ctx, http.StatusInternalServerError, "Failed to load updated rule")
	}
	return ctx.JSON(http.StatusOK, updated)
}

// DeleteRule removes an alert rule.
func (c *Controller) DeleteRule(ctx echo.Context) error {
	id, err := parseUintParam(ctx, "id")
	if err != nil {
		return errorResponse(ctx, http.StatusBadRequest, "Invalid rule ID")
	}

	if err := c.rules.DeleteRule(ctx.Request().Context(), id); err != nil {
		if errors.Is(err, repository.ErrAlertRuleNotFound) {
			return errorResponse(ctx, http.StatusNotFound, "Alert rule not found")
		}
		c.log.Error("failed to delete alert rule", logger.Error(err))
		return errorResponse(ctx, http.StatusInternalServerError, "Failed to delete alert rule")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// ToggleRule enables or disables an alert rule.
func (c *Controller) ToggleRule(ctx echo.Context) error {
	id, err := parseUintParam(ctx, "id")
	if err != nil {
		return errorResponse(ctx, http.StatusBadRequest, "Invalid rule ID")
	}

	var body struct {
		Enabled bool `json:"enabled"`
	}
	if err := ctx.Bind(&body); err != nil {
		return errorResponse(ctx, http.StatusBadRequest, "Invalid request body")
	}

	if err := c.rules.ToggleRule(ctx.Request().Context(), id, body.Enabled); err != nil {
		if errors.Is(err, repository.ErrAlertRuleNotFound) {
			return errorResponse(ctx, http.StatusNotFound, "Alert rule not found")
		}
		c.log.Error("failed to toggle alert rule", logger.Error(err))
		return errorResponse(ctx, http.StatusInternalServerError, "Failed to toggle alert rule")
	}
	return ctx.JSON(http.StatusOK, map[string]any{"id": id, "enabled": body.Enabled})
}

// TestRule evaluates a rule against recent events without dispatching.
func (c *Controller) TestRule(ctx echo.Context) error {
	id, err := parseUintParam(ctx, "id")
	if err != nil {
		return errorResponse(ctx, http.StatusBadRequest, "Invalid rule ID")
	}

	sampleSize := defaultTestSampleSize
	if p := ctx.QueryParam("sample_size"); p != "" {
		v, err := strconv.Atoi(p)
		if err != nil || v < 1 || v > 1000 {
			return errorResponse(ctx, http.StatusBadRequest, "Invalid sample_size")
		}
		sampleSize = v
	}

	result, err := c.tester.TestRule(ctx.Request().Context(), id, sampleSize)
	if err != nil {
		if errors.Is(err, repository.ErrAlertRuleNotFound) {
			return errorResponse(ctx, http.StatusNotFound, "Alert rule not found")
		}
		if errors.Is(err, alerting.ErrInvalidConditions) {
			return errorResponse(ctx, http.StatusUnprocessableEntity, "Rule conditions are malformed")
		}
		c.log.Error("failed to test alert rule", logger.Error(err))
		return errorResponse(ctx, http.StatusInternalServerError, "Failed to test alert rule")
	}
	return ctx.JSON(http.StatusOK, result)
}
