package alerting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kestrelcam/kestrel-go/internal/datastore/entities"
	"github.com/kestrelcam/kestrel-go/internal/datastore/repository"
	"github.com/kestrelcam/kestrel-go/internal/logger"
	"github.com/kestrelcam/kestrel-go/internal/retry"
)

// NotificationCreator abstracts the notification service for testability.
type NotificationCreator interface {
	CreateAndBroadcast(ctx context.Context, n *entities.Notification) error
}

// ActionDispatcher executes a matched rule's actions: dashboard
// notification, webhook delivery with retry, cooldown recording, and the
// delivery audit log.
type ActionDispatcher struct {
	notifier NotificationCreator
	webhooks *WebhookClient
	gate     *CooldownGate
	logs     repository.DeliveryLogRepository
	policy   retry.Policy
	clock    func() time.Time
	log      logger.Logger
}

// NewActionDispatcher creates an ActionDispatcher. A nil clock uses
// time.Now.
func NewActionDispatcher(
	notifier NotificationCreator,
	webhooks *WebhookClient,
	gate *CooldownGate,
	logs repository.DeliveryLogRepository,
	policy retry.Policy,
	clock func() time.Time,
	log logger.Logger,
) *ActionDispatcher {
	if clock == nil {
		clock = time.Now
	}
	return &ActionDispatcher{
		notifier: notifier,
		webhooks: webhooks,
		gate:     gate,
		logs:     logs,
		policy:   policy,
		clock:    clock,
		log:      log,
	}
}

// Dispatch runs the rule's actions for a matched event. The cooldown is
// recorded after target validation but before delivery, so two events
// racing on the same rule can never both reach the webhook; a failed
// delivery still consumes the quiet period rather than hammering a broken
// endpoint on every subsequent event. Exactly one DeliveryLog row is
// written unless a concurrent caller won the trigger first.
func (d *ActionDispatcher) Dispatch(ctx context.Context, rule *entities.AlertRule, actions *Actions, event *Event) error {
	now := d.clock()

	// Dashboard notification is best-effort: its failure never blocks
	// webhook delivery.
	if actions.Notify {
		d.createNotification(ctx, rule, event)
	}

	if !actions.HasWebhook() {
		if err := d.gate.RecordTrigger(ctx, rule, now); err != nil {
			return err
		}
		// Notification-only firings still get an audit row so the
		// delivery history is a complete record of every dispatch.
		return d.writeLog(ctx, &entities.DeliveryLog{
			RuleID:  rule.ID,
			EventID: event.ID,
			Success: true,
		})
	}

	if err := d.webhooks.Validate(actions.WebhookURL); err != nil {
		d.log.Warn("webhook target rejected",
			logger.Uint64("rule_id", uint64(rule.ID)),
			logger.String("target", actions.WebhookURL),
			logger.Error(err))
		// Invalid targets are logged with zero attempts and do not
		// consume the cooldown window.
		return d.writeLog(ctx, &entities.DeliveryLog{
			RuleID:      rule.ID,
			EventID:     event.ID,
			TargetURL:   actions.WebhookURL,
			Success:     false,
			ErrorDetail: err.Error(),
		})
	}

	if err := d.gate.RecordTrigger(ctx, rule, now); err != nil {
		if errors.Is(err, repository.ErrTriggerConflict) {
			// A concurrent dispatch owns this quiet period; it writes
			// the delivery log for it.
			d.log.Debug("trigger lost to concurrent dispatch",
				logger.Uint64("rule_id", uint64(rule.ID)),
				logger.String("event_id", event.ID))
		}
		return err
	}

	payload := &WebhookPayload{
		RuleID:       rule.ID,
		RuleName:     rule.Name,
		EventID:      event.ID,
		CameraID:     event.CameraID,
		Labels:       event.Labels,
		Confidence:   event.Confidence,
		AnomalyScore: event.AnomalyScore,
		EventTime:    event.Timestamp.UTC().Format(time.RFC3339),
		FiredAt:      now.UTC().Format(time.RFC3339),
	}

	start := d.clock()
	var last Delivery
	attempts, err := retry.Do(ctx, d.policy, func(ctx context.Context) error {
		last = d.webhooks.Send(ctx, actions.WebhookURL, payload, actions.WebhookHeaders)
		return last.Err
	})

	logRow := &entities.DeliveryLog{
		RuleID:     rule.ID,
		EventID:    event.ID,
		TargetURL:  actions.WebhookURL,
		StatusCode: last.StatusCode,
		Attempts:   attempts,
		Success:    err == nil && last.Success,
		LatencyMs:  d.clock().Sub(start).Milliseconds(),
	}
	if err != nil {
		logRow.ErrorDetail = err.Error()
		d.log.Warn("webhook delivery failed",
			logger.Uint64("rule_id", uint64(rule.ID)),
			logger.String("event_id", event.ID),
			logger.Int("attempts", attempts),
			logger.Error(err))
	} else {
		d.log.Info("webhook delivered",
			logger.Uint64("rule_id", uint64(rule.ID)),
			logger.String("event_id", event.ID),
			logger.Int("attempts", attempts),
			logger.Int("status", last.StatusCode),
			logger.Duration("latency", last.Latency))
	}
	return d.writeLog(ctx, logRow)
}

func (d *ActionDispatcher) createNotification(ctx context.Context, rule *entities.AlertRule, event *Event) {
	if d.notifier == nil {
		return
	}
	n := &entities.Notification{
		EventID:  event.ID,
		RuleID:   rule.ID,
		RuleName: rule.Name,
		Message:  event.Description(),
	}
	if err := d.notifier.CreateAndBroadcast(ctx, n); err != nil {
		d.log.Error("failed to create dashboard notification",
			logger.Uint64("rule_id", uint64(rule.ID)),
			logger.String("event_id", event.ID),
			logger.Error(err))
	}
}

// saveLogTimeout is the context deadline for persisting a delivery log.
const saveLogTimeout = 3 * time.Second

// writeLog persists the audit row. The write is detached from the dispatch
// context so a shutdown that truncated the retry sequence still leaves its
// audit row behind. Persistence failures surface to the caller: the trigger
// state may already be advanced, and the engine needs to know the trail is
// incomplete.
func (d *ActionDispatcher) writeLog(ctx context.Context, row *entities.DeliveryLog) error {
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), saveLogTimeout)
	defer cancel()
	if err := d.logs.CreateLog(saveCtx, row); err != nil {
		return fmt.Errorf("failed to persist delivery log: %w", err)
	}
	return nil
}
