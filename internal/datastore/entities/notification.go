package entities

import "time"

// Notification is a dashboard notification created when a rule fires.
// RuleName and Message are snapshots taken at dispatch time so the record
// stays meaningful after the rule is renamed or deleted.
type Notification struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	EventID   string    `gorm:"size:36;not null;index" json:"event_id"`
	RuleID    uint      `gorm:"not null;index" json:"rule_id"`
	RuleName  string    `gorm:"size:255;not null" json:"rule_name"`
	Message   string    `gorm:"size:2000;default:''" json:"message"`
	Read      bool      `gorm:"not null;default:false;index" json:"read"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName returns the table name for GORM.
func (Notification) TableName() string {
	return "notifications"
}
