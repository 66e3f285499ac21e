package repository

import (
	"context"
	"time"

	"github.com/kestrelcam/kestrel-go/internal/datastore/entities"
)

// DeliveryLogRepository appends and serves the dispatch audit trail.
// Logs are append-only; there is no update operation.
type DeliveryLogRepository interface {
	CreateLog(ctx context.Context, log *entities.DeliveryLog) error
	ListLogs(ctx context.Context, filter DeliveryLogFilter) ([]entities.DeliveryLog, int64, error)
	DeleteLogsBefore(ctx context.Context, before time.Time) (int64, error)
}

// DeliveryLogFilter controls delivery log listing queries.
type DeliveryLogFilter struct {
	RuleID  uint
	EventID string
	Success *bool
	Limit   int
	Offset  int
}
