// Package datastore opens the database connection and migrates the schema
// shared by the repository implementations.
package datastore

import (
	"fmt"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/kestrelcam/kestrel-go/internal/conf"
	"github.com/kestrelcam/kestrel-go/internal/datastore/entities"
	"github.com/kestrelcam/kestrel-go/internal/logger"
)

// Open connects to the configured database and migrates the schema.
func Open(cfg *conf.DatabaseSettings, log logger.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.Path + "?_foreign_keys=ON")
	case "mysql":
		dialector = mysql.Open(cfg.MySQLDSN())
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", cfg.Driver, err)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	log.Info("database ready", logger.String("driver", cfg.Driver))
	return db, nil
}

// Migrate creates or updates the tables for all entities.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&entities.AlertRule{},
		&entities.CameraEvent{},
		&entities.Notification{},
		&entities.DeliveryLog{},
	); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}
