package repository

import (
	"context"
	"time"

	"github.com/kestrelcam/kestrel-go/internal/datastore/entities"
)

// AlertRuleRepository handles alert rule CRUD and trigger-state operations.
type AlertRuleRepository interface {
	// Rule CRUD
	ListRules(ctx context.Context, filter AlertRuleFilter) ([]entities.AlertRule, error)
	GetRule(ctx context.Context, id uint) (*entities.AlertRule, error)
	CreateRule(ctx context.Context, rule *entities.AlertRule) error
	UpdateRule(ctx context.Context, rule *entities.AlertRule) error
	DeleteRule(ctx context.Context, id uint) error
	ToggleRule(ctx context.Context, id uint, enabled bool) error

	// Bulk operations
	GetEnabledRules(ctx context.Context) ([]entities.AlertRule, error)
	CountRulesByName(ctx context.Context, name string) (int64, error)

	// RecordTrigger advances a rule's cooldown state with a conditional
	// UPDATE keyed on the previously observed last_triggered_at (prev,
	// nil meaning the rule has never fired). It sets last_triggered_at to
	// now and increments trigger_count in the same statement. Returns
	// ErrTriggerConflict when the stored value no longer matches prev.
	RecordTrigger(ctx context.Context, id uint, prev *time.Time, now time.Time) error
}

// AlertRuleFilter controls rule listing queries.
type AlertRuleFilter struct {
	Enabled *bool
	BuiltIn *bool
	Name    string
}
