package alerting

import (
	"context"
	"fmt"
	"time"

	"github.com/kestrelcam/kestrel-go/internal/datastore/entities"
	"github.com/kestrelcam/kestrel-go/internal/datastore/repository"
)

// CooldownGate answers whether a rule may fire now and records firings.
// The cooldown state lives on the rule row itself, so the gate holds no
// in-memory state and survives restarts and multi-instance deployment.
type CooldownGate struct {
	rules repository.AlertRuleRepository
}

// NewCooldownGate creates a CooldownGate backed by the rule repository.
func NewCooldownGate(rules repository.AlertRuleRepository) *CooldownGate {
	return &CooldownGate{rules: rules}
}

// CanTrigger reports whether the rule's cooldown window has elapsed at now.
// A rule that has never fired may always fire. The boundary is inclusive:
// exactly cooldown_minutes elapsed allows the trigger.
func (g *CooldownGate) CanTrigger(rule *entities.AlertRule, now time.Time) bool {
	if rule.LastTriggeredAt == nil {
		return true
	}
	cooldown := time.Duration(rule.CooldownMinutes) * time.Minute
	return now.Sub(*rule.LastTriggeredAt) >= cooldown
}

// RecordTrigger advances the rule's cooldown state through the repository's
// conditional update, keyed on the LastTriggeredAt value this caller
// observed. On conflict the repository returns ErrTriggerConflict and the
// in-memory rule is left untouched; the caller must not dispatch. On
// success the in-memory rule is updated to match the store.
func (g *CooldownGate) RecordTrigger(ctx context.Context, rule *entities.AlertRule, now time.Time) error {
	if err := g.rules.RecordTrigger(ctx, rule.ID, rule.LastTriggeredAt, now); err != nil {
		return fmt.Errorf("failed to record trigger for rule %q: %w", rule.Name, err)
	}
	t := now
	rule.LastTriggeredAt = &t
	rule.TriggerCount++
	return nil
}
