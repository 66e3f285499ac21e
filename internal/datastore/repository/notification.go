package repository

import (
	"context"
	"time"

	"github.com/kestrelcam/kestrel-go/internal/datastore/entities"
)

// NotificationRepository persists dashboard notification rows. Rows are
// created by the dispatcher; only the read flag is mutated afterwards,
// through the notifications API.
type NotificationRepository interface {
	CreateNotification(ctx context.Context, n *entities.Notification) error
	ListNotifications(ctx context.Context, filter NotificationFilter) ([]entities.Notification, int64, error)
	MarkRead(ctx context.Context, id uint, read bool) error
	MarkAllRead(ctx context.Context) (int64, error)
	CountUnread(ctx context.Context) (int64, error)
	DeleteNotificationsBefore(ctx context.Context, before time.Time) (int64, error)
}

// NotificationFilter controls notification listing queries.
type NotificationFilter struct {
	RuleID     uint
	UnreadOnly bool
	Limit      int
	Offset     int
}
