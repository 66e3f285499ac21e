package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/kestrelcam/kestrel-go/internal/datastore/entities"
)

// notificationRepository implements NotificationRepository.
type notificationRepository struct {
	db *gorm.DB
}

// NewNotificationRepository creates a new NotificationRepository.
func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

// CreateNotification inserts a notification row.
func (r *notificationRepository) CreateNotification(ctx context.Context, n *entities.Notification) error {
	if err := r.db.WithContext(ctx).Create(n).Error; err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

// ListNotifications returns notifications matching the filter with pagination.
func (r *notificationRepository) ListNotifications(ctx context.Context, filter NotificationFilter) ([]entities.Notification, int64, error) {
	var items []entities.Notification
	var total int64

	base := r.db.WithContext(ctx).Model(&entities.Notification{})
	if filter.RuleID > 0 {
		base = base.Where("rule_id = ?", filter.RuleID)
	}
	if filter.UnreadOnly {
		base = base.Where("read = ?", false)
	}
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count notifications: %w", err)
	}

	query := base.Order("created_at DESC")
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}
	if err := query.Find(&items).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list notifications: %w", err)
	}
	return items, total, nil
}

// MarkRead sets a notification's read flag.
func (r *notificationRepository) MarkRead(ctx context.Context, id uint, read bool) error {
	result := r.db.WithContext(ctx).Model(&entities.Notification{}).Where("id = ?", id).Update("read", read)
	if result.Error != nil {
		return fmt.Errorf("failed to mark notification %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

// MarkAllRead marks every unread notification as read.
func (r *notificationRepository) MarkAllRead(ctx context.Context) (int64, error) {
	result := r.db.WithContext(ctx).Model(&entities.Notification{}).Where("read = ?", false).Update("read", true)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to mark all notifications read: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// CountUnread returns the number of unread notifications.
func (r *notificationRepository) CountUnread(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&entities.Notification{}).Where("read = ?", false).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}
	return count, nil
}

// DeleteNotificationsBefore deletes notifications older than the given time.
func (r *notificationRepository) DeleteNotificationsBefore(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Where("created_at < ?", before).Delete(&entities.Notification{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete notifications before %v: %w", before, result.Error)
	}
	return result.RowsAffected, nil
}
