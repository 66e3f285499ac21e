package entities

import "time"

// AlertRule defines a user-configurable alerting rule evaluated against
// camera events. Conditions and Actions are stored as JSON documents and
// parsed into typed structures by the alerting package at evaluation time.
//
// LastTriggeredAt and TriggerCount are the only fields the engine mutates,
// and only through the repository's conditional RecordTrigger update.
type AlertRule struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	Name            string     `gorm:"size:255;not null" json:"name"`
	Description     string     `gorm:"size:1000;default:''" json:"description"`
	Enabled         bool       `gorm:"not null;index" json:"enabled"`
	BuiltIn         bool       `gorm:"not null;default:false" json:"built_in"`
	Conditions      string     `gorm:"type:text;default:''" json:"conditions"`
	Actions         string     `gorm:"type:text;default:''" json:"actions"`
	CooldownMinutes int        `gorm:"not null;default:10" json:"cooldown_minutes"`
	LastTriggeredAt *time.Time `gorm:"index" json:"last_triggered_at"`
	TriggerCount    int64      `gorm:"not null;default:0" json:"trigger_count"`
	CreatedAt       time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName returns the table name for GORM.
func (AlertRule) TableName() string {
	return "alert_rules"
}
