// Package alerting implements the alert rule engine: condition evaluation,
// per-rule cooldown gating, and action dispatch with retry.
package alerting

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/kestrelcam/kestrel-go/internal/datastore/entities"
)

// Event is one detection from the perception pipeline, as the engine sees
// it. It is a read-only input: the engine never mutates events.
// AnomalyScore is nil when the pipeline did not compute one.
type Event struct {
	ID           string
	CameraID     string
	Timestamp    time.Time
	Labels       []string
	Confidence   float64
	AnomalyScore *float64
}

// Description renders the human-readable summary snapshotted into
// notifications.
func (e *Event) Description() string {
	labels := "activity"
	if len(e.Labels) > 0 {
		labels = strings.Join(e.Labels, ", ")
	}
	return fmt.Sprintf("%s detected on camera %s (confidence %.0f%%)", labels, e.CameraID, e.Confidence)
}

// EventFromEntity converts a stored camera event into the engine's value
// type, decoding the JSON label array.
func EventFromEntity(ce *entities.CameraEvent) (*Event, error) {
	var labels []string
	if ce.Labels != "" {
		if err := json.Unmarshal([]byte(ce.Labels), &labels); err != nil {
			return nil, fmt.Errorf("failed to decode labels for event %s: %w", ce.ID, err)
		}
	}
	return &Event{
		ID:           ce.ID,
		CameraID:     ce.CameraID,
		Timestamp:    ce.Timestamp,
		Labels:       labels,
		Confidence:   ce.Confidence,
		AnomalyScore: ce.AnomalyScore,
	}, nil
}

// ToEntity converts the event to its storage representation.
func (e *Event) ToEntity() (*entities.CameraEvent, error) {
	labels, err := json.Marshal(e.Labels)
	if err != nil {
		return nil, fmt.Errorf("failed to encode labels for event %s: %w", e.ID, err)
	}
	return &entities.CameraEvent{
		ID:           e.ID,
		CameraID:     e.CameraID,
		Timestamp:    e.Timestamp,
		Labels:       string(labels),
		Confidence:   e.Confidence,
		AnomalyScore: e.AnomalyScore,
	}, nil
}
