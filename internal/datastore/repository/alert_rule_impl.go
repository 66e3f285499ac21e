package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/kestrelcam/kestrel-go/internal/datastore/entities"
)

// alertRuleRepository implements AlertRuleRepository.
type alertRuleRepository struct {
	db *gorm.DB
}

// NewAlertRuleRepository creates a new AlertRuleRepository.
func NewAlertRuleRepository(db *gorm.DB) AlertRuleRepository {
	return &alertRuleRepository{db: db}
}

// ListRules returns alert rules matching the given filter.
func (r *alertRuleRepository) ListRules(ctx context.Context, filter AlertRuleFilter) ([]entities.AlertRule, error) {
	var rules []entities.AlertRule
	query := r.db.WithContext(ctx)

	if filter.Enabled != nil {
		query = query.Where("enabled = ?", *filter.Enabled)
	}
	if filter.BuiltIn != nil {
		query = query.Where("built_in = ?", *filter.BuiltIn)
	}
	if filter.Name != "" {
		query = query.Where("name = ?", filter.Name)
	}

	if err := query.Order("id ASC").Find(&rules).Error; err != nil {
		return nil, fmt.Errorf("failed to list alert rules: %w", err)
	}
	return rules, nil
}

// GetRule returns a single alert rule by ID.
// Returns ErrAlertRuleNotFound if the rule does not exist.
func (r *alertRuleRepository) GetRule(ctx context.Context, id uint) (*entities.AlertRule, error) {
	var rule entities.AlertRule
	if err := r.db.WithContext(ctx).First(&rule, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAlertRuleNotFound
		}
		return nil, fmt.Errorf("failed to get alert rule %d: %w", id, err)
	}
	return &rule, nil
}

// CreateRule creates a new alert rule.
func (r *alertRuleRepository) CreateRule(ctx context.Context, rule *entities.AlertRule) error {
	if err := r.db.WithContext(ctx).Create(rule).Error; err != nil {
		return fmt.Errorf("failed to create alert rule: %w", err)
	}
	return nil
}

// UpdateRule replaces an alert rule's configurable fields. Trigger state
// (last_triggered_at, trigger_count) is deliberately excluded: only
// RecordTrigger may advance it.
func (r *alertRuleRepository) UpdateRule(ctx context.Context, rule *entities.AlertRule) error {
	if rule.ID == 0 {
		return fmt.Errorf("failed to update alert rule: missing rule ID")
	}
	result := r.db.WithContext(ctx).Model(&entities.AlertRule{}).
		Where("id = ?", rule.ID).
		Updates(map[string]any{
			"name":             rule.Name,
			"description":      rule.Description,
			"enabled":          rule.Enabled,
			"conditions":       rule.Conditions,
			"actions":          rule.Actions,
			"cooldown_minutes": rule.CooldownMinutes,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update alert rule %d: %w", rule.ID, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrAlertRuleNotFound
	}
	return nil
}

// DeleteRule deletes an alert rule.
func (r *alertRuleRepository) DeleteRule(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&entities.AlertRule{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete alert rule %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrAlertRuleNotFound
	}
	return nil
}

// ToggleRule enables or disables an alert rule.
func (r *alertRuleRepository) ToggleRule(ctx context.Context, id uint, enabled bool) error {
	result := r.db.WithContext(ctx).Model(&entities.AlertRule{}).Where("id = ?", id).Update("enabled", enabled)
	if result.Error != nil {
		return fmt.Errorf("failed to toggle alert rule %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrAlertRuleNotFound
	}
	return nil
}

// GetEnabledRules returns all enabled alert rules.
func (r *alertRuleRepository) GetEnabledRules(ctx context.Context) ([]entities.AlertRule, error) {
	enabled := true
	return r.ListRules(ctx, AlertRuleFilter{Enabled: &enabled})
}

// CountRulesByName returns the number of rules with the given name.
func (r *alertRuleRepository) CountRulesByName(ctx context.Context, name string) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&entities.AlertRule{}).Where("name = ?", name).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count rules by name: %w", err)
	}
	return count, nil
}

// RecordTrigger performs the atomic cooldown advance. The WHERE clause pins
// last_triggered_at to the value the caller read, so of two concurrent
// callers that both passed the cooldown check only one UPDATE matches; the
// other sees RowsAffected == 0 and gets ErrTriggerConflict. Correct across
// processes, not just goroutines, since the compare happens in the database.
func (r *alertRuleRepository) RecordTrigger(ctx context.Context, id uint, prev *time.Time, now time.Time) error {
	query := r.db.WithContext(ctx).Model(&entities.AlertRule{}).Where("id = ?", id)
	if prev == nil {
		query = query.Where("last_triggered_at IS NULL")
	} else {
		query = query.Where("last_triggered_at = ?", *prev)
	}

	result := query.Updates(map[string]any{
		"last_triggered_at": now,
		"trigger_count":     gorm.Expr("trigger_count + 1"),
	})
	if result.Error != nil {
		return fmt.Errorf("failed to record trigger for rule %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		// Either the rule is gone or someone else won the quiet period.
		var count int64
		if err := r.db.WithContext(ctx).Model(&entities.AlertRule{}).Where("id = ?", id).Count(&count).Error; err == nil && count == 0 {
			return ErrAlertRuleNotFound
		}
		return ErrTriggerConflict
	}
	return nil
}
