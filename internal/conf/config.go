// Package conf loads application settings from a YAML file with environment
// variable overrides, via viper.
package conf

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Settings is the full application configuration.
type Settings struct {
	LogLevel string `mapstructure:"log_level"`

	Database     DatabaseSettings     `mapstructure:"database"`
	Server       ServerSettings       `mapstructure:"server"`
	Ingest       IngestSettings       `mapstructure:"ingest"`
	Alerting     AlertingSettings     `mapstructure:"alerting"`
	Notification NotificationSettings `mapstructure:"notification"`
}

// DatabaseSettings selects and configures the storage backend.
type DatabaseSettings struct {
	// Driver is "sqlite" or "mysql".
	Driver string `mapstructure:"driver"`
	// Path is the SQLite database file.
	Path string `mapstructure:"path"`

	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
}

// ServerSettings configures the HTTP API listener.
type ServerSettings struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// IngestSettings configures how detection events reach the engine.
type IngestSettings struct {
	// Workers is the number of goroutines processing events concurrently.
	Workers int `mapstructure:"workers"`
	// QueueSize is the capacity of the intake channel; events beyond it
	// are dropped rather than blocking the transport callback.
	QueueSize int `mapstructure:"queue_size"`
	// DedupeTTL is how long seen event IDs are remembered to absorb
	// at-least-once redelivery from MQTT/Kafka.
	DedupeTTL Duration `mapstructure:"dedupe_ttl"`

	MQTT  MQTTSettings  `mapstructure:"mqtt"`
	Kafka KafkaSettings `mapstructure:"kafka"`
}

// MQTTSettings configures the MQTT detection subscriber.
type MQTTSettings struct {
	Enabled  bool   `mapstructure:"enabled"`
	Broker   string `mapstructure:"broker"`
	Topic    string `mapstructure:"topic"`
	ClientID string `mapstructure:"client_id"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// KafkaSettings configures the Kafka detection reader.
type KafkaSettings struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
	GroupID string   `mapstructure:"group_id"`
}

// AlertingSettings tunes the rules engine.
type AlertingSettings struct {
	// SeedDefaults creates the built-in starter rules when missing.
	SeedDefaults bool `mapstructure:"seed_defaults"`
	// HistoryRetentionDays bounds how long delivery logs, notifications
	// and raw events are kept. 0 disables cleanup.
	HistoryRetentionDays int `mapstructure:"history_retention_days"`
	// WebhookTimeout bounds a single delivery attempt.
	WebhookTimeout Duration `mapstructure:"webhook_timeout"`
}

// NotificationSettings configures notification fan-out.
type NotificationSettings struct {
	// PushURLs are optional shoutrrr service URLs notified alongside the
	// dashboard record (e.g. "telegram://token@telegram?chats=@channel").
	PushURLs []string `mapstructure:"push_urls"`
}

// Load reads settings from the given YAML file (optional) and KESTREL_*
// environment variables, applying defaults for anything unset.
func Load(path string) (*Settings, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("KESTREL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	var settings Settings
	if err := v.Unmarshal(&settings, viper.DecodeHook(DurationDecodeHook())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return &settings, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "kestrel.db")
	v.SetDefault("database.port", 3306)

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)

	v.SetDefault("ingest.workers", 4)
	v.SetDefault("ingest.queue_size", 1000)
	v.SetDefault("ingest.dedupe_ttl", "5m")
	v.SetDefault("ingest.mqtt.topic", "kestrel/detections")
	v.SetDefault("ingest.mqtt.client_id", "kestrel-alerting")
	v.SetDefault("ingest.kafka.topic", "kestrel.detections")
	v.SetDefault("ingest.kafka.group_id", "kestrel-alerting")

	v.SetDefault("alerting.seed_defaults", true)
	v.SetDefault("alerting.history_retention_days", 30)
	v.SetDefault("alerting.webhook_timeout", "10s")
}

// Validate rejects configurations the process cannot start with.
func (s *Settings) Validate() error {
	switch s.Database.Driver {
	case "sqlite":
		if s.Database.Path == "" {
			return fmt.Errorf("database.path is required for the sqlite driver")
		}
	case "mysql":
		if s.Database.Host == "" || s.Database.Name == "" {
			return fmt.Errorf("database.host and database.name are required for the mysql driver")
		}
	default:
		return fmt.Errorf("unsupported database driver %q", s.Database.Driver)
	}

	if s.Ingest.Workers < 1 {
		return fmt.Errorf("ingest.workers must be at least 1")
	}
	if s.Ingest.QueueSize < 1 {
		return fmt.Errorf("ingest.queue_size must be at least 1")
	}
	if s.Ingest.MQTT.Enabled && s.Ingest.MQTT.Broker == "" {
		return fmt.Errorf("ingest.mqtt.broker is required when MQTT ingest is enabled")
	}
	if s.Ingest.Kafka.Enabled && len(s.Ingest.Kafka.Brokers) == 0 {
		return fmt.Errorf("ingest.kafka.brokers is required when Kafka ingest is enabled")
	}
	return nil
}

// MySQLDSN builds the go-sql-driver DSN for the configured MySQL database.
func (s *DatabaseSettings) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		s.User, s.Password, s.Host, s.Port, s.Name)
}
