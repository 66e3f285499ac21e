package repository

import (
	"context"
	"time"

	"github.com/kestrelcam/kestrel-go/internal/datastore/entities"
)

// CameraEventRepository persists detection events from the perception
// pipeline and serves the recent-event samples used by rule test mode.
type CameraEventRepository interface {
	CreateEvent(ctx context.Context, event *entities.CameraEvent) error
	GetEvent(ctx context.Context, id string) (*entities.CameraEvent, error)
	// ListRecent returns up to limit events, newest first.
	ListRecent(ctx context.Context, limit int) ([]entities.CameraEvent, error)
	DeleteEventsBefore(ctx context.Context, before time.Time) (int64, error)
}
