// Command kestrel runs the camera alerting service: detection intake over
// HTTP/MQTT/Kafka, rule evaluation, and notification dispatch.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/kestrelcam/kestrel-go/internal/alerting"
	"github.com/kestrelcam/kestrel-go/internal/api"
	"github.com/kestrelcam/kestrel-go/internal/conf"
	"github.com/kestrelcam/kestrel-go/internal/datastore"
	"github.com/kestrelcam/kestrel-go/internal/datastore/repository"
	"github.com/kestrelcam/kestrel-go/internal/ingest"
	"github.com/kestrelcam/kestrel-go/internal/logger"
	"github.com/kestrelcam/kestrel-go/internal/notification"
	"github.com/kestrelcam/kestrel-go/internal/observability/metrics"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "kestrel",
		Short:         "Camera alerting service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file")

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the alerting service",
		RunE: func(cmd *cobra.Command, _ []string) error {
			settings, err := conf.Load(configPath)
			if err != nil {
				return err
			}
			return run(cmd.Context(), settings)
		},
	}
	root.AddCommand(serve)
	return root
}

func run(ctx context.Context, settings *conf.Settings) error {
	log := logger.NewSlogLogger(os.Stdout, logger.ParseLevel(settings.LogLevel), nil)

	db, err := datastore.Open(&settings.Database, log)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	ruleRepo := repository.NewAlertRuleRepository(db)
	eventRepo := repository.NewCameraEventRepository(db)
	logRepo := repository.NewDeliveryLogRepository(db)
	notifRepo := repository.NewNotificationRepository(db)

	notifService, err := notification.NewService(notifRepo, settings.Notification.PushURLs, log)
	if err != nil {
		return err
	}

	engine, err := alerting.Initialize(ctx, alerting.Config{
		Rules:          ruleRepo,
		Events:         eventRepo,
		DeliveryLogs:   logRepo,
		Notifications:  notifRepo,
		Notifier:       notifService,
		Metrics:        metrics.NewAlerting(registry),
		WebhookTimeout: settings.Alerting.WebhookTimeout.Std(),
		SeedDefaults:   settings.Alerting.SeedDefaults,
		RetentionDays:  settings.Alerting.HistoryRetentionDays,
		Log:            log,
	})
	if err != nil {
		return err
	}
	defer engine.Stop()

	pipeline := ingest.NewPipeline(ingest.PipelineConfig{
		Workers:   settings.Ingest.Workers,
		QueueSize: settings.Ingest.QueueSize,
		DedupeTTL: settings.Ingest.DedupeTTL.Std(),
		Events:    eventRepo,
		Processor: engine,
		Metrics:   metrics.NewIngest(registry),
		Log:       log,
	})
	defer pipeline.Stop()

	if settings.Ingest.MQTT.Enabled {
		subscriber, err := ingest.NewMQTTSubscriber(settings.Ingest.MQTT, pipeline, log)
		if err != nil {
			return err
		}
		defer subscriber.Close()
	}
	if settings.Ingest.Kafka.Enabled {
		reader, err := ingest.NewKafkaReader(settings.Ingest.Kafka, pipeline, log)
		if err != nil {
			return err
		}
		defer func() {
			if err := reader.Close(); err != nil {
				log.Warn("kafka reader shutdown failed", logger.Error(err))
			}
		}()
	}

	controller := api.NewController(api.ControllerConfig{
		Rules:         ruleRepo,
		Events:        eventRepo,
		DeliveryLogs:  logRepo,
		Notifications: notifService,
		Tester:        engine,
		Submitter:     pipeline,
		Registry:      registry,
		Log:           log,
	})

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- controller.Start(settings.Server)
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
		log.Info("shutting down")
		if err := controller.Shutdown(context.Background()); err != nil {
			log.Warn("http shutdown failed", logger.Error(err))
		}
		return nil
	}
}
