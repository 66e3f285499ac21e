package ingest

import (
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/kestrelcam/kestrel-go/internal/conf"
	"github.com/kestrelcam/kestrel-go/internal/logger"
)

const (
	mqttConnectTimeout = 30 * time.Second
	// mqttQoS 1 gives at-least-once delivery; the pipeline's dedupe cache
	// absorbs the resulting duplicates.
	mqttQoS byte = 1
)

// MQTTSubscriber feeds detections published on an MQTT topic into the
// pipeline.
type MQTTSubscriber struct {
	client mqtt.Client
	topic  string
	log    logger.Logger
}

// NewMQTTSubscriber connects to the broker and subscribes to the detection
// topic.
func NewMQTTSubscriber(cfg conf.MQTTSettings, pipeline *Pipeline, log logger.Logger) (*MQTTSubscriber, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(false)
	opts.SetConnectTimeout(mqttConnectTimeout)
	opts.SetOnConnectHandler(func(mqtt.Client) {
		log.Info("mqtt connected", logger.String("broker", cfg.Broker))
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Warn("mqtt connection lost", logger.Error(err))
	})

	s := &MQTTSubscriber{
		client: mqtt.NewClient(opts),
		topic:  cfg.Topic,
		log:    log,
	}

	if token := s.client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to mqtt broker %s: %w", cfg.Broker, token.Error())
	}

	handler := func(_ mqtt.Client, msg mqtt.Message) {
		event, err := DecodeDetection(msg.Payload(), time.Now)
		if err != nil {
			log.Warn("ignoring undecodable mqtt detection",
				logger.String("topic", msg.Topic()), logger.Error(err))
			return
		}
		pipeline.Submit(event)
	}
	if token := s.client.Subscribe(cfg.Topic, mqttQoS, handler); token.Wait() && token.Error() != nil {
		s.client.Disconnect(0)
		return nil, fmt.Errorf("failed to subscribe to %s: %w", cfg.Topic, token.Error())
	}

	log.Info("mqtt detection subscriber started",
		logger.String("broker", cfg.Broker),
		logger.String("topic", cfg.Topic))
	return s, nil
}

// Close unsubscribes and disconnects from the broker.
func (s *MQTTSubscriber) Close() {
	if token := s.client.Unsubscribe(s.topic); token.Wait() && token.Error() != nil {
		s.log.Warn("mqtt unsubscribe failed", logger.Error(token.Error()))
	}
	s.client.Disconnect(250)
}
