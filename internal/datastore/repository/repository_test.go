package repository

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/kestrelcam/kestrel-go/internal/datastore/entities"
)

// setupTestDB opens a private in-memory sqlite database. A single pooled
// connection keeps the :memory: database alive and serializes access for
// concurrent tests.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:?_foreign_keys=ON"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&entities.AlertRule{},
		&entities.CameraEvent{},
		&entities.Notification{},
		&entities.DeliveryLog{},
	))
	return db
}
