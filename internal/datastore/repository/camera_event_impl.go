package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/kestrelcam/kestrel-go/internal/datastore/entities"
)

// cameraEventRepository implements CameraEventRepository.
type cameraEventRepository struct {
	db *gorm.DB
}

// NewCameraEventRepository creates a new CameraEventRepository.
func NewCameraEventRepository(db *gorm.DB) CameraEventRepository {
	return &cameraEventRepository{db: db}
}

// CreateEvent inserts a camera event.
func (r *cameraEventRepository) CreateEvent(ctx context.Context, event *entities.CameraEvent) error {
	if err := r.db.WithContext(ctx).Create(event).Error; err != nil {
		return fmt.Errorf("failed to create camera event: %w", err)
	}
	return nil
}

// GetEvent returns a single camera event by ID.
// Returns ErrEventNotFound if the event does not exist.
func (r *cameraEventRepository) GetEvent(ctx context.Context, id string) (*entities.CameraEvent, error) {
	var event entities.CameraEvent
	if err := r.db.WithContext(ctx).First(&event, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to get camera event %s: %w", id, err)
	}
	return &event, nil
}

// ListRecent returns up to limit events ordered newest first.
func (r *cameraEventRepository) ListRecent(ctx context.Context, limit int) ([]entities.CameraEvent, error) {
	var events []entities.CameraEvent
	query := r.db.WithContext(ctx).Order("timestamp DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&events).Error; err != nil {
		return nil, fmt.Errorf("failed to list recent camera events: %w", err)
	}
	return events, nil
}

// DeleteEventsBefore deletes camera events older than the given time.
func (r *cameraEventRepository) DeleteEventsBefore(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Where("timestamp < ?", before).Delete(&entities.CameraEvent{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete camera events before %v: %w", before, result.Error)
	}
	return result.RowsAffected, nil
}
