package entities

import "time"

// DeliveryLog is the append-only audit record of one dispatch attempt
// sequence. Exactly one row is written per dispatch, whatever the outcome:
// skipped (invalid target, zero attempts), failed after retries, or
// delivered. Rows are never mutated after creation.
type DeliveryLog struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	RuleID      uint      `gorm:"not null;index:idx_delivery_logs_rule_created,priority:1" json:"rule_id"`
	EventID     string    `gorm:"size:36;not null;index" json:"event_id"`
	TargetURL   string    `gorm:"size:2048;default:''" json:"target_url"`
	StatusCode  int       `gorm:"not null;default:0" json:"status_code"`
	Attempts    int       `gorm:"not null;default:0" json:"attempts"`
	Success     bool      `gorm:"not null" json:"success"`
	LatencyMs   int64     `gorm:"not null;default:0" json:"latency_ms"`
	ErrorDetail string    `gorm:"size:2000;default:''" json:"error_detail"`
	CreatedAt   time.Time `gorm:"autoCreateTime;index:idx_delivery_logs_rule_created,priority:2" json:"created_at"`
}

// TableName returns the table name for GORM.
func (DeliveryLog) TableName() string {
	return "delivery_logs"
}
