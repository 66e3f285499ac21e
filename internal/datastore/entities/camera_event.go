package entities

import "time"

// CameraEvent is one detection record produced by the perception pipeline.
// Labels holds the detected object labels as a JSON string array.
// AnomalyScore is nil when the pipeline did not compute one for this event.
type CameraEvent struct {
	ID           string    `gorm:"primaryKey;size:36" json:"id"`
	CameraID     string    `gorm:"size:100;not null;index" json:"camera_id"`
	Timestamp    time.Time `gorm:"not null;index" json:"timestamp"`
	Labels       string    `gorm:"type:text;default:''" json:"labels"`
	Confidence   float64   `gorm:"not null" json:"confidence"`
	AnomalyScore *float64  `json:"anomaly_score"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName returns the table name for GORM.
func (CameraEvent) TableName() string {
	return "camera_events"
}
