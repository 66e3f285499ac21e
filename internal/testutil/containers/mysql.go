//go:build integration

package containers

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/mysql"
)

// kestrelTables lists every table the schema migration creates, in a
// truncation order that satisfies no foreign keys.
var kestrelTables = []string{"alert_rules", "camera_events", "notifications", "delivery_logs"}

// MySQLContainer wraps a testcontainers MySQL instance for repository
// integration tests.
type MySQLContainer struct {
	container *mysql.MySQLContainer
	db        *sql.DB
	dsn       string
}

// MySQLConfig holds MySQL container settings.
type MySQLConfig struct {
	Database string
	Username string
	Password string
	ImageTag string
}

// DefaultMySQLConfig returns the settings used by the test suites.
func DefaultMySQLConfig() MySQLConfig {
	return MySQLConfig{
		Database: "kestrel_test",
		Username: "kestrel",
		Password: "kestrel",
		ImageTag: "8.0",
	}
}

// NewMySQLContainer starts a MySQL container and opens a verified
// connection to it. If config is nil, DefaultMySQLConfig is used.
func NewMySQLContainer(ctx context.Context, config *MySQLConfig) (*MySQLContainer, error) {
	if config == nil {
		defaultCfg := DefaultMySQLConfig()
		config = &defaultCfg
	}

	opts := []testcontainers.ContainerCustomizer{
		mysql.WithDatabase(config.Database),
		mysql.WithUsername(config.Username),
		mysql.WithPassword(config.Password),
	}

	container, err := mysql.RunContainer(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to start mysql container: %w", err)
	}

	dsn, err := container.ConnectionString(ctx, "parseTime=true", "loc=UTC")
	if err != nil {
		_ = container.Terminate(context.Background())
		return nil, fmt.Errorf("failed to get connection string: %w", err)
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		_ = container.Terminate(context.Background())
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		_ = container.Terminate(context.Background())
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &MySQLContainer{container: container, db: db, dsn: dsn}, nil
}

// DSN returns the connection string, suitable for the gorm mysql driver.
func (c *MySQLContainer) DSN() string {
	return c.dsn
}

// DB returns the shared database connection. It is owned by the container
// wrapper; individual tests must not close it.
func (c *MySQLContainer) DB() *sql.DB {
	return c.db
}

// Reset truncates the application tables so each test starts from an empty
// schema without paying container startup again.
func (c *MySQLContainer) Reset(ctx context.Context) error {
	for _, table := range kestrelTables {
		if _, err := c.db.ExecContext(ctx, "TRUNCATE TABLE `"+table+"`"); err != nil {
			return fmt.Errorf("failed to truncate %s: %w", table, err)
		}
	}
	return nil
}

// Terminate closes the connection and removes the container.
func (c *MySQLContainer) Terminate(ctx context.Context) error {
	if c.db != nil {
		_ = c.db.Close()
		c.db = nil
	}
	if c.container != nil {
		if err := c.container.Terminate(ctx); err != nil {
			return fmt.Errorf("failed to terminate mysql container: %w", err)
		}
	}
	return nil
}
