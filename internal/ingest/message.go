// Package ingest moves detection events from the transports (HTTP, MQTT,
// Kafka) through deduplication and a bounded worker queue into the rule
// engine.
package ingest

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kestrelcam/kestrel-go/internal/alerting"
)

// detectionMessage is the wire format detections arrive in, shared by every
// transport. Perception nodes that predate event IDs may omit them.
type detectionMessage struct {
	ID           string    `json:"id"`
	CameraID     string    `json:"camera_id"`
	Timestamp    time.Time `json:"timestamp"`
	Labels       []string  `json:"labels"`
	Confidence   float64   `json:"confidence"`
	AnomalyScore *float64  `json:"anomaly_score"`
}

// DecodeDetection parses one detection payload. Missing IDs get a generated
// UUID, missing timestamps default to now; a missing camera ID is an error
// since rules cannot be evaluated without one.
func DecodeDetection(payload []byte, now func() time.Time) (*alerting.Event, error) {
	var msg detectionMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return nil, fmt.Errorf("failed to decode detection payload: %w", err)
	}
	if msg.CameraID == "" {
		return nil, fmt.Errorf("detection payload has no camera_id")
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = now()
	}
	return &alerting.Event{
		ID:           msg.ID,
		CameraID:     msg.CameraID,
		Timestamp:    msg.Timestamp,
		Labels:       msg.Labels,
		Confidence:   msg.Confidence,
		AnomalyScore: msg.AnomalyScore,
	}, nil
}
