package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/kestrelcam/kestrel-go/internal/datastore/entities"
)

// deliveryLogRepository implements DeliveryLogRepository.
type deliveryLogRepository struct {
	db *gorm.DB
}

// NewDeliveryLogRepository creates a new DeliveryLogRepository.
func NewDeliveryLogRepository(db *gorm.DB) DeliveryLogRepository {
	return &deliveryLogRepository{db: db}
}

// CreateLog appends a delivery log entry.
func (r *deliveryLogRepository) CreateLog(ctx context.Context, log *entities.DeliveryLog) error {
	if err := r.db.WithContext(ctx).Create(log).Error; err != nil {
		return fmt.Errorf("failed to create delivery log: %w", err)
	}
	return nil
}

// ListLogs returns delivery logs matching the filter with pagination,
// newest first.
func (r *deliveryLogRepository) ListLogs(ctx context.Context, filter DeliveryLogFilter) ([]entities.DeliveryLog, int64, error) {
	var items []entities.DeliveryLog
	var total int64

	base := r.db.WithContext(ctx).Model(&entities.DeliveryLog{})
	if filter.RuleID > 0 {
		base = base.Where("rule_id = ?", filter.RuleID)
	}
	if filter.EventID != "" {
		base = base.Where("event_id = ?", filter.EventID)
	}
	if filter.Success != nil {
		base = base.Where("success = ?", *filter.Success)
	}
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count delivery logs: %w", err)
	}

	query := base.Order("created_at DESC")
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}
	if err := query.Find(&items).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list delivery logs: %w", err)
	}
	return items, total, nil
}

// DeleteLogsBefore deletes delivery logs older than the given time.
func (r *deliveryLogRepository) DeleteLogsBefore(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Where("created_at < ?", before).Delete(&entities.DeliveryLog{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete delivery logs before %v: %w", before, result.Error)
	}
	return result.RowsAffected, nil
}
