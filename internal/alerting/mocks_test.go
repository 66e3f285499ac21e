package alerting

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/kestrelcam/kestrel-go/internal/datastore/entities"
	"github.com/kestrelcam/kestrel-go/internal/datastore/repository"
	"github.com/kestrelcam/kestrel-go/internal/logger"
)

func testLogger() logger.Logger {
	return logger.NewSlogLogger(io.Discard, logger.LogLevelError, nil)
}

// fakeClock is a settable clock for deterministic cooldown tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// mockRuleRepo is an in-memory AlertRuleRepository with the same
// conditional-update semantics as the real implementation.
type mockRuleRepo struct {
	mu    sync.Mutex
	rules map[uint]*entities.AlertRule
}

func newMockRuleRepo(rules ...entities.AlertRule) *mockRuleRepo {
	m := &mockRuleRepo{rules: make(map[uint]*entities.AlertRule)}
	for i := range rules {
		r := rules[i]
		m.rules[r.ID] = &r
	}
	return m
}

func (m *mockRuleRepo) ListRules(_ context.Context, filter repository.AlertRuleFilter) ([]entities.AlertRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []entities.AlertRule
	for _, r := range m.rules {
		if filter.Enabled != nil && r.Enabled != *filter.Enabled {
			continue
		}
		if filter.Name != "" && r.Name != filter.Name {
			continue
		}
		out = append(out, *r)
	}
	return out, nil
}

func (m *mockRuleRepo) GetRule(_ context.Context, id uint) (*entities.AlertRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rules[id]
	if !ok {
		return nil, repository.ErrAlertRuleNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *mockRuleRepo) CreateRule(_ context.Context, rule *entities.AlertRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rule.ID == 0 {
		rule.ID = uint(len(m.rules) + 1)
	}
	cp := *rule
	m.rules[rule.ID] = &cp
	return nil
}

func (m *mockRuleRepo) UpdateRule(_ context.Context, rule *entities.AlertRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.rules[rule.ID]
	if !ok {
		return repository.ErrAlertRuleNotFound
	}
	existing.Name = rule.Name
	existing.Description = rule.Description
	existing.Enabled = rule.Enabled
	existing.Conditions = rule.Conditions
	existing.Actions = rule.Actions
	existing.CooldownMinutes = rule.CooldownMinutes
	return nil
}

func (m *mockRuleRepo) DeleteRule(_ context.Context, id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rules[id]; !ok {
		return repository.ErrAlertRuleNotFound
	}
	delete(m.rules, id)
	return nil
}

func (m *mockRuleRepo) ToggleRule(_ context.Context, id uint, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rules[id]
	if !ok {
		return repository.ErrAlertRuleNotFound
	}
	r.Enabled = enabled
	return nil
}

func (m *mockRuleRepo) GetEnabledRules(ctx context.Context) ([]entities.AlertRule, error) {
	enabled := true
	return m.ListRules(ctx, repository.AlertRuleFilter{Enabled: &enabled})
}

func (m *mockRuleRepo) CountRulesByName(_ context.Context, name string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var count int64
	for _, r := range m.rules {
		if r.Name == name {
			count++
		}
	}
	return count, nil
}

func (m *mockRuleRepo) RecordTrigger(_ context.Context, id uint, prev *time.Time, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rules[id]
	if !ok {
		return repository.ErrAlertRuleNotFound
	}
	switch {
	case prev == nil && r.LastTriggeredAt != nil:
		return repository.ErrTriggerConflict
	case prev != nil && (r.LastTriggeredAt == nil || !r.LastTriggeredAt.Equal(*prev)):
		return repository.ErrTriggerConflict
	}
	t := now
	r.LastTriggeredAt = &t
	r.TriggerCount++
	return nil
}

// triggerState returns the persisted cooldown fields for assertions.
func (m *mockRuleRepo) triggerState(id uint) (*time.Time, int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.rules[id]
	return r.LastTriggeredAt, r.TriggerCount
}

// mockEventRepo is an in-memory CameraEventRepository.
type mockEventRepo struct {
	mu     sync.Mutex
	events []entities.CameraEvent
}

func (m *mockEventRepo) CreateEvent(_ context.Context, event *entities.CameraEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, *event)
	return nil
}

func (m *mockEventRepo) GetEvent(_ context.Context, id string) (*entities.CameraEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.events {
		if m.events[i].ID == id {
			cp := m.events[i]
			return &cp, nil
		}
	}
	return nil, repository.ErrEventNotFound
}

func (m *mockEventRepo) ListRecent(_ context.Context, limit int) ([]entities.CameraEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]entities.CameraEvent, len(m.events))
	copy(out, m.events)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockEventRepo) DeleteEventsBefore(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var kept []entities.CameraEvent
	var deleted int64
	for _, e := range m.events {
		if e.Timestamp.Before(before) {
			deleted++
			continue
		}
		kept = append(kept, e)
	}
	m.events = kept
	return deleted, nil
}

// mockLogRepo is an in-memory DeliveryLogRepository.
type mockLogRepo struct {
	mu      sync.Mutex
	logs    []entities.DeliveryLog
	failOne bool // next CreateLog returns an error
}

func (m *mockLogRepo) CreateLog(_ context.Context, log *entities.DeliveryLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failOne {
		m.failOne = false
		return context.DeadlineExceeded
	}
	log.ID = uint(len(m.logs) + 1)
	m.logs = append(m.logs, *log)
	return nil
}

func (m *mockLogRepo) ListLogs(_ context.Context, _ repository.DeliveryLogFilter) ([]entities.DeliveryLog, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]entities.DeliveryLog, len(m.logs))
	copy(out, m.logs)
	return out, int64(len(out)), nil
}

func (m *mockLogRepo) DeleteLogsBefore(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}

func (m *mockLogRepo) all() []entities.DeliveryLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]entities.DeliveryLog, len(m.logs))
	copy(out, m.logs)
	return out
}

// mockNotifRepo is an in-memory NotificationRepository.
type mockNotifRepo struct {
	mu            sync.Mutex
	notifications []entities.Notification
}

func (m *mockNotifRepo) CreateNotification(_ context.Context, n *entities.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n.ID = uint(len(m.notifications) + 1)
	m.notifications = append(m.notifications, *n)
	return nil
}

func (m *mockNotifRepo) ListNotifications(_ context.Context, _ repository.NotificationFilter) ([]entities.Notification, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]entities.Notification, len(m.notifications))
	copy(out, m.notifications)
	return out, int64(len(out)), nil
}

func (m *mockNotifRepo) MarkRead(_ context.Context, _ uint, _ bool) error { return nil }
func (m *mockNotifRepo) MarkAllRead(_ context.Context) (int64, error)     { return 0, nil }
func (m *mockNotifRepo) CountUnread(_ context.Context) (int64, error)     { return 0, nil }
func (m *mockNotifRepo) DeleteNotificationsBefore(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}

// mockNotifier records CreateAndBroadcast calls.
type mockNotifier struct {
	mu      sync.Mutex
	created []entities.Notification
	err     error
}

func (m *mockNotifier) CreateAndBroadcast(_ context.Context, n *entities.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.created = append(m.created, *n)
	return nil
}

func (m *mockNotifier) all() []entities.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]entities.Notification, len(m.created))
	copy(out, m.created)
	return out
}

// recordingDispatcher records Dispatch calls for engine tests.
type recordingDispatcher struct {
	mu      sync.Mutex
	calls   []uint // rule IDs in dispatch order
	err     error
	advance func(rule *entities.AlertRule) // simulates trigger recording
}

func (d *recordingDispatcher) Dispatch(_ context.Context, rule *entities.AlertRule, _ *Actions, _ *Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.calls = append(d.calls, rule.ID)
	if d.advance != nil {
		d.advance(rule)
	}
	return nil
}

func (d *recordingDispatcher) callCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.calls)
}
