package conf

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "kestrel.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	settings, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "info", settings.LogLevel)
	assert.Equal(t, "sqlite", settings.Database.Driver)
	assert.Equal(t, "kestrel.db", settings.Database.Path)
	assert.Equal(t, 8080, settings.Server.Port)
	assert.Equal(t, 4, settings.Ingest.Workers)
	assert.Equal(t, 1000, settings.Ingest.QueueSize)
	assert.Equal(t, 5*time.Minute, settings.Ingest.DedupeTTL.Std())
	assert.Equal(t, 10*time.Second, settings.Alerting.WebhookTimeout.Std())
	assert.True(t, settings.Alerting.SeedDefaults)
	assert.Equal(t, 30, settings.Alerting.HistoryRetentionDays)
}

func TestLoad_YAMLOverrides(t *testing.T) {
	path := writeConfig(t, `
log_level: debug
database:
  driver: mysql
  host: db.internal
  name: kestrel
  user: kestrel
  password: secret
ingest:
  workers: 8
  dedupe_ttl: 90s
  mqtt:
    enabled: true
    broker: tcp://broker:1883
alerting:
  webhook_timeout: 5s
  history_retention_days: 7
`)

	settings, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", settings.LogLevel)
	assert.Equal(t, "mysql", settings.Database.Driver)
	assert.Equal(t, 8, settings.Ingest.Workers)
	assert.Equal(t, 90*time.Second, settings.Ingest.DedupeTTL.Std())
	assert.True(t, settings.Ingest.MQTT.Enabled)
	assert.Equal(t, "tcp://broker:1883", settings.Ingest.MQTT.Broker)
	assert.Equal(t, 5*time.Second, settings.Alerting.WebhookTimeout.Std())
	assert.Equal(t, 7, settings.Alerting.HistoryRetentionDays)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("KESTREL_SERVER_PORT", "9090")

	settings, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 9090, settings.Server.Port)
}

func TestLoad_InvalidDriver(t *testing.T) {
	path := writeConfig(t, "database:\n  driver: mongodb\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported database driver")
}

func TestLoad_MySQLRequiresHost(t *testing.T) {
	path := writeConfig(t, "database:\n  driver: mysql\n")

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoad_MQTTRequiresBroker(t *testing.T) {
	path := writeConfig(t, "ingest:\n  mqtt:\n    enabled: true\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ingest.mqtt.broker")
}

func TestMySQLDSN(t *testing.T) {
	db := DatabaseSettings{
		Host:     "db.internal",
		Port:     3306,
		User:     "kestrel",
		Password: "secret",
		Name:     "kestrel",
	}
	assert.Equal(t,
		"kestrel:secret@tcp(db.internal:3306)/kestrel?charset=utf8mb4&parseTime=True&loc=UTC",
		db.MySQLDSN())
}
