//go:build integration

package containers

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const mosquittoImage = "eclipse-mosquitto:2.0"

// mosquittoConf allows anonymous connections; the default 2.x config
// refuses everything.
const mosquittoConf = `listener 1883
allow_anonymous true
`

// MosquittoContainer wraps an Eclipse Mosquitto broker for MQTT intake
// integration tests.
type MosquittoContainer struct {
	container  testcontainers.Container
	brokerURL  string
	configFile string
}

// NewMosquittoContainer starts a Mosquitto broker that accepts anonymous
// connections and verifies it is reachable.
func NewMosquittoContainer(ctx context.Context) (*MosquittoContainer, error) {
	configFile, err := writeTempConfig()
	if err != nil {
		return nil, err
	}

	req := testcontainers.ContainerRequest{
		Image:        mosquittoImage,
		ExposedPorts: []string{"1883/tcp"},
		Cmd:          []string{"mosquitto", "-c", "/mosquitto-test.conf"},
		Files: []testcontainers.ContainerFile{{
			HostFilePath:      configFile,
			ContainerFilePath: "/mosquitto-test.conf",
			FileMode:          0o644,
		}},
		WaitingFor: wait.ForLog("mosquitto version").WithStartupTimeout(30 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		_ = os.Remove(configFile)
		return nil, fmt.Errorf("failed to start mosquitto container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		_ = os.Remove(configFile)
		return nil, fmt.Errorf("failed to get container host: %w", err)
	}
	mappedPort, err := container.MappedPort(ctx, "1883")
	if err != nil {
		_ = container.Terminate(ctx)
		_ = os.Remove(configFile)
		return nil, fmt.Errorf("failed to get mapped port: %w", err)
	}

	mc := &MosquittoContainer{
		container:  container,
		brokerURL:  fmt.Sprintf("tcp://%s", net.JoinHostPort(host, strconv.Itoa(mappedPort.Int()))),
		configFile: configFile,
	}
	if err := mc.healthCheck(); err != nil {
		_ = container.Terminate(ctx)
		_ = os.Remove(configFile)
		return nil, err
	}
	return mc, nil
}

func writeTempConfig() (string, error) {
	tmp, err := os.CreateTemp("", "mosquitto-*.conf")
	if err != nil {
		return "", fmt.Errorf("failed to create mosquitto config: %w", err)
	}
	if _, err := tmp.WriteString(mosquittoConf); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to write mosquitto config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to close mosquitto config: %w", err)
	}
	return tmp.Name(), nil
}

// BrokerURL returns the broker address, e.g. "tcp://localhost:32771".
func (c *MosquittoContainer) BrokerURL() string {
	return c.brokerURL
}

func (c *MosquittoContainer) healthCheck() error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(c.brokerURL)
	opts.SetClientID("healthcheck")
	opts.SetConnectTimeout(5 * time.Second)
	opts.SetAutoReconnect(false)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("broker health check timed out")
	}
	if token.Error() != nil {
		return fmt.Errorf("failed to connect to broker: %w", token.Error())
	}
	client.Disconnect(250)
	return nil
}

// Publish sends one message to the broker, for driving subscriber tests.
func (c *MosquittoContainer) Publish(topic string, qos byte, payload []byte) error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(c.brokerURL)
	opts.SetClientID("test-publisher")
	opts.SetConnectTimeout(5 * time.Second)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); !token.WaitTimeout(5*time.Second) || token.Error() != nil {
		return fmt.Errorf("failed to connect publisher: %w", token.Error())
	}
	defer client.Disconnect(250)

	token := client.Publish(topic, qos, false, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish to %s timed out", topic)
	}
	if token.Error() != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, token.Error())
	}
	return nil
}

// Terminate removes the container and its temporary config file.
func (c *MosquittoContainer) Terminate(ctx context.Context) error {
	var terminateErr error
	if c.container != nil {
		if err := c.container.Terminate(ctx); err != nil {
			terminateErr = fmt.Errorf("failed to terminate mosquitto container: %w", err)
		}
	}
	if c.configFile != "" {
		_ = os.Remove(c.configFile)
	}
	return terminateErr
}
