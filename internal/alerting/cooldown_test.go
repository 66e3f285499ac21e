package alerting

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrelcam/kestrel-go/internal/datastore/entities"
	"github.com/kestrelcam/kestrel-go/internal/datastore/repository"
)

func TestCanTrigger_NeverFired(t *testing.T) {
	gate := NewCooldownGate(newMockRuleRepo())
	rule := &entities.AlertRule{ID: 1, CooldownMinutes: 10}

	assert.True(t, gate.CanTrigger(rule, time.Now()))
}

func TestCanTrigger_Boundary(t *testing.T) {
	gate := NewCooldownGate(newMockRuleRepo())
	last := time.Date(2026, 8, 19, 12, 0, 0, 0, time.UTC)
	rule := &entities.AlertRule{ID: 1, CooldownMinutes: 10, LastTriggeredAt: &last}

	assert.True(t, gate.CanTrigger(rule, last.Add(10*time.Minute)),
		"exactly the cooldown duration elapsed is allowed")
	assert.False(t, gate.CanTrigger(rule, last.Add(10*time.Minute-time.Second)),
		"one second short of the cooldown is blocked")
	assert.True(t, gate.CanTrigger(rule, last.Add(11*time.Minute)))
}

func TestCanTrigger_ZeroCooldown(t *testing.T) {
	gate := NewCooldownGate(newMockRuleRepo())
	last := time.Date(2026, 8, 19, 12, 0, 0, 0, time.UTC)
	rule := &entities.AlertRule{ID: 1, CooldownMinutes: 0, LastTriggeredAt: &last}

	assert.True(t, gate.CanTrigger(rule, last), "zero cooldown never blocks")
}

func TestRecordTrigger_UpdatesStoreAndRule(t *testing.T) {
	repo := newMockRuleRepo(entities.AlertRule{ID: 1, Name: "r", Enabled: true, CooldownMinutes: 10})
	gate := NewCooldownGate(repo)
	rule, err := repo.GetRule(t.Context(), 1)
	require.NoError(t, err)

	now := time.Date(2026, 8, 19, 12, 0, 0, 0, time.UTC)
	require.NoError(t, gate.RecordTrigger(t.Context(), rule, now))

	require.NotNil(t, rule.LastTriggeredAt)
	assert.True(t, rule.LastTriggeredAt.Equal(now))
	assert.Equal(t, int64(1), rule.TriggerCount)

	storedLast, storedCount := repo.triggerState(1)
	require.NotNil(t, storedLast)
	assert.True(t, storedLast.Equal(now))
	assert.Equal(t, int64(1), storedCount)
}

func TestRecordTrigger_ConflictLeavesRuleUntouched(t *testing.T) {
	repo := newMockRuleRepo(entities.AlertRule{ID: 1, Name: "r", Enabled: true, CooldownMinutes: 10})
	gate := NewCooldownGate(repo)

	// Two callers read the same never-fired rule.
	first, err := repo.GetRule(t.Context(), 1)
	require.NoError(t, err)
	second, err := repo.GetRule(t.Context(), 1)
	require.NoError(t, err)

	now := time.Date(2026, 8, 19, 12, 0, 0, 0, time.UTC)
	require.NoError(t, gate.RecordTrigger(t.Context(), first, now))

	err = gate.RecordTrigger(t.Context(), second, now.Add(time.Millisecond))
	require.ErrorIs(t, err, repository.ErrTriggerConflict)
	assert.Nil(t, second.LastTriggeredAt, "loser's in-memory rule is not advanced")
	assert.Zero(t, second.TriggerCount)

	_, storedCount := repo.triggerState(1)
	assert.Equal(t, int64(1), storedCount, "only the winner recorded a firing")
}

func TestRecordTrigger_SequentialFiringsAccumulate(t *testing.T) {
	repo := newMockRuleRepo(entities.AlertRule{ID: 1, Name: "r", Enabled: true, CooldownMinutes: 10})
	gate := NewCooldownGate(repo)
	rule, err := repo.GetRule(t.Context(), 1)
	require.NoError(t, err)

	base := time.Date(2026, 8, 19, 12, 0, 0, 0, time.UTC)
	require.NoError(t, gate.RecordTrigger(t.Context(), rule, base))
	require.NoError(t, gate.RecordTrigger(t.Context(), rule, base.Add(11*time.Minute)))

	assert.Equal(t, int64(2), rule.TriggerCount)
	_, storedCount := repo.triggerState(1)
	assert.Equal(t, int64(2), storedCount)
}
