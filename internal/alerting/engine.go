package alerting

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kestrelcam/kestrel-go/internal/datastore/entities"
	"github.com/kestrelcam/kestrel-go/internal/datastore/repository"
	"github.com/kestrelcam/kestrel-go/internal/logger"
	"github.com/kestrelcam/kestrel-go/internal/observability/metrics"
)

const (
	// cleanupTimeout is the context deadline for one retention sweep.
	cleanupTimeout = 30 * time.Second
	// cleanupInterval is how often the retention goroutine runs.
	cleanupInterval = 1 * time.Hour
)

// Dispatcher executes a matched rule's actions. Implemented by
// ActionDispatcher; abstracted so engine tests can observe dispatches
// without real deliveries.
type Dispatcher interface {
	Dispatch(ctx context.Context, rule *entities.AlertRule, actions *Actions, event *Event) error
}

// Engine is the rule evaluation facade. For each incoming event it pulls
// the enabled rules, evaluates their conditions, gates matches on the
// per-rule cooldown, and hands cleared matches to the dispatcher. All
// dependencies are injected; the engine holds no global state.
type Engine struct {
	rules      repository.AlertRuleRepository
	events     repository.CameraEventRepository
	logs       repository.DeliveryLogRepository
	notifs     repository.NotificationRepository
	gate       *CooldownGate
	dispatcher Dispatcher
	metrics    *metrics.Alerting
	clock      func() time.Time
	log        logger.Logger

	cleanupMu   sync.Mutex
	cleanupStop chan struct{}
}

// EngineConfig collects the engine's injected dependencies.
type EngineConfig struct {
	Rules         repository.AlertRuleRepository
	Events        repository.CameraEventRepository
	DeliveryLogs  repository.DeliveryLogRepository
	Notifications repository.NotificationRepository
	Gate          *CooldownGate
	Dispatcher    Dispatcher
	Metrics       *metrics.Alerting
	// Clock defaults to time.Now; tests inject a fake.
	Clock func() time.Time
	Log   logger.Logger
}

// NewEngine creates the rule engine.
func NewEngine(cfg EngineConfig) *Engine {
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Engine{
		rules:      cfg.Rules,
		events:     cfg.Events,
		logs:       cfg.DeliveryLogs,
		notifs:     cfg.Notifications,
		gate:       cfg.Gate,
		dispatcher: cfg.Dispatcher,
		metrics:    cfg.Metrics,
		clock:      clock,
		log:        cfg.Log,
	}
}

// ProcessEvent evaluates one event against every enabled rule. Rules are
// independent: a malformed or failing rule is logged and skipped without
// affecting the others. Malformed condition or action documents fail
// closed: the rule does not match until its configuration is repaired.
func (e *Engine) ProcessEvent(ctx context.Context, event *Event) error {
	rules, err := e.rules.GetEnabledRules(ctx)
	if err != nil {
		return fmt.Errorf("failed to load enabled rules: %w", err)
	}
	if e.metrics != nil {
		e.metrics.EventsProcessed.Inc()
	}

	for i := range rules {
		e.processRule(ctx, &rules[i], event)
	}
	return nil
}

func (e *Engine) processRule(ctx context.Context, rule *entities.AlertRule, event *Event) {
	if e.metrics != nil {
		e.metrics.RulesEvaluated.Inc()
	}

	conditions, err := ParseConditions(rule.Conditions)
	if err != nil {
		e.markMalformed(rule, err)
		return
	}

	matched, _ := Evaluate(conditions, event)
	if !matched {
		return
	}
	if e.metrics != nil {
		e.metrics.RulesMatched.Inc()
	}

	if !e.gate.CanTrigger(rule, e.clock()) {
		if e.metrics != nil {
			e.metrics.CooldownBlocked.Inc()
		}
		e.log.Debug("rule match suppressed by cooldown",
			logger.Uint64("rule_id", uint64(rule.ID)),
			logger.String("event_id", event.ID))
		return
	}

	actions, err := ParseActions(rule.Actions)
	if err != nil {
		e.markMalformed(rule, err)
		return
	}

	start := e.clock()
	if err := e.dispatcher.Dispatch(ctx, rule, actions, event); err != nil {
		if errors.Is(err, repository.ErrTriggerConflict) {
			// Lost the quiet period to a concurrent event; not a failure.
			return
		}
		if e.metrics != nil {
			e.metrics.DispatchFailures.Inc()
		}
		e.log.Error("dispatch failed",
			logger.Uint64("rule_id", uint64(rule.ID)),
			logger.String("event_id", event.ID),
			logger.Error(err))
		return
	}
	if e.metrics != nil {
		e.metrics.RulesFired.Inc()
		e.metrics.WebhookLatency.Observe(e.clock().Sub(start).Seconds())
	}
	e.log.Info("rule fired",
		logger.Uint64("rule_id", uint64(rule.ID)),
		logger.String("rule", rule.Name),
		logger.String("event_id", event.ID))
}

func (e *Engine) markMalformed(rule *entities.AlertRule, err error) {
	if e.metrics != nil {
		e.metrics.MalformedRules.Inc()
	}
	e.log.Error("rule configuration is malformed, skipping",
		logger.Uint64("rule_id", uint64(rule.ID)),
		logger.String("rule", rule.Name),
		logger.Error(err))
}

// RuleTestResult summarizes a side-effect-free test-mode evaluation.
type RuleTestResult struct {
	RuleID           uint     `json:"rule_id"`
	EventsTested     int      `json:"events_tested"`
	EventsMatched    int      `json:"events_matched"`
	MatchingEventIDs []string `json:"matching_event_ids"`
}

// TestRule evaluates a rule's conditions against up to sampleSize recent
// events, purely for match statistics. Nothing is dispatched and the
// rule's persisted trigger state is never touched: the evaluation runs on
// a copy with cleared cooldown fields.
func (e *Engine) TestRule(ctx context.Context, ruleID uint, sampleSize int) (*RuleTestResult, error) {
	rule, err := e.rules.GetRule(ctx, ruleID)
	if err != nil {
		return nil, err
	}

	conditions, err := ParseConditions(rule.Conditions)
	if err != nil {
		return nil, fmt.Errorf("rule %d: %w", ruleID, err)
	}

	// Evaluate as if the rule had never fired. The copy keeps the
	// stored row and the caller's struct untouched.
	candidate := *rule
	candidate.LastTriggeredAt = nil
	candidate.TriggerCount = 0

	sample, err := e.events.ListRecent(ctx, sampleSize)
	if err != nil {
		return nil, fmt.Errorf("failed to load event sample: %w", err)
	}

	result := &RuleTestResult{
		RuleID:           candidate.ID,
		MatchingEventIDs: []string{},
	}
	for i := range sample {
		event, err := EventFromEntity(&sample[i])
		if err != nil {
			e.log.Warn("skipping undecodable event in test sample",
				logger.String("event_id", sample[i].ID),
				logger.Error(err))
			continue
		}
		result.EventsTested++
		if matched, _ := Evaluate(conditions, event); matched {
			result.EventsMatched++
			result.MatchingEventIDs = append(result.MatchingEventIDs, event.ID)
		}
	}
	return result, nil
}

// StartRetentionCleanup starts a background goroutine that periodically
// deletes delivery logs, notifications, and raw camera events older than
// retentionDays. A value of 0 disables cleanup.
func (e *Engine) StartRetentionCleanup(retentionDays int) {
	if retentionDays <= 0 {
		return
	}
	e.stopCleanup()
	e.cleanupMu.Lock()
	e.cleanupStop = make(chan struct{})
	stopCh := e.cleanupStop
	e.cleanupMu.Unlock()
	go func() {
		ticker := time.NewTicker(cleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				e.runCleanup(retentionDays)
			case <-stopCh:
				return
			}
		}
	}()
}

func (e *Engine) runCleanup(retentionDays int) {
	cutoff := e.clock().AddDate(0, 0, -retentionDays)
	ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()

	var total int64
	for name, del := range map[string]func(context.Context, time.Time) (int64, error){
		"delivery_logs": e.logs.DeleteLogsBefore,
		"notifications": e.notifs.DeleteNotificationsBefore,
		"camera_events": e.events.DeleteEventsBefore,
	} {
		deleted, err := del(ctx, cutoff)
		if err != nil {
			e.log.Error("retention cleanup failed",
				logger.String("table", name),
				logger.Error(err))
			continue
		}
		total += deleted
	}
	if total > 0 {
		e.log.Info("retention cleanup completed",
			logger.Int64("deleted", total),
			logger.Int("retention_days", retentionDays))
	}
}

// stopCleanup signals the cleanup goroutine to exit. The mutex makes the
// nil-check-then-close atomic, preventing double-close panics when Stop
// and StartRetentionCleanup race.
func (e *Engine) stopCleanup() {
	e.cleanupMu.Lock()
	ch := e.cleanupStop
	e.cleanupStop = nil
	e.cleanupMu.Unlock()
	if ch != nil {
		close(ch)
	}
}

// Stop shuts down background goroutines.
func (e *Engine) Stop() {
	e.stopCleanup()
}
