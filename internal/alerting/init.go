package alerting

import (
	"context"
	"time"

	"github.com/kestrelcam/kestrel-go/internal/datastore/repository"
	"github.com/kestrelcam/kestrel-go/internal/logger"
	"github.com/kestrelcam/kestrel-go/internal/observability/metrics"
	"github.com/kestrelcam/kestrel-go/internal/retry"
)

// Config collects everything needed to assemble the alerting subsystem.
type Config struct {
	Rules         repository.AlertRuleRepository
	Events        repository.CameraEventRepository
	DeliveryLogs  repository.DeliveryLogRepository
	Notifications repository.NotificationRepository
	// Notifier creates dashboard notifications; nil disables them.
	Notifier NotificationCreator
	Metrics  *metrics.Alerting
	// WebhookTimeout bounds a single delivery attempt.
	WebhookTimeout time.Duration
	// SeedDefaults creates the built-in rules when missing.
	SeedDefaults bool
	// RetentionDays bounds how long audit data is kept; 0 disables cleanup.
	RetentionDays int
	Log           logger.Logger
}

// Initialize wires up and returns the alerting engine: seeds default rules,
// builds the webhook client, cooldown gate, and dispatcher, and starts
// retention cleanup.
func Initialize(ctx context.Context, cfg Config) (*Engine, error) {
	if cfg.SeedDefaults {
		if err := seedDefaultRules(ctx, cfg.Rules, cfg.Log); err != nil {
			return nil, err
		}
	}

	gate := NewCooldownGate(cfg.Rules)
	webhooks := NewWebhookClient(cfg.WebhookTimeout, cfg.Log)
	dispatcher := NewActionDispatcher(
		cfg.Notifier, webhooks, gate, cfg.DeliveryLogs,
		retry.WebhookPolicy(), nil, cfg.Log)

	engine := NewEngine(EngineConfig{
		Rules:         cfg.Rules,
		Events:        cfg.Events,
		DeliveryLogs:  cfg.DeliveryLogs,
		Notifications: cfg.Notifications,
		Gate:          gate,
		Dispatcher:    dispatcher,
		Metrics:       cfg.Metrics,
		Log:           cfg.Log,
	})
	engine.StartRetentionCleanup(cfg.RetentionDays)

	cfg.Log.Info("alerting engine initialized")
	return engine, nil
}

// seedDefaultRules ensures all built-in default rules exist. It checks by
// name so partial seeds from previous runs self-heal on restart.
func seedDefaultRules(ctx context.Context, rules repository.AlertRuleRepository, log logger.Logger) error {
	existing, err := rules.ListRules(ctx, repository.AlertRuleFilter{})
	if err != nil {
		return err
	}

	existingNames := make(map[string]struct{}, len(existing))
	for i := range existing {
		existingNames[existing[i].Name] = struct{}{}
	}

	defaults := DefaultRules()
	var created int
	for i := range defaults {
		if _, exists := existingNames[defaults[i].Name]; exists {
			continue
		}
		if err := rules.CreateRule(ctx, &defaults[i]); err != nil {
			return err
		}
		created++
	}
	if created > 0 {
		log.Info("seeded default alert rules", logger.Int("created", created))
	}
	return nil
}
