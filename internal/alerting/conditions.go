package alerting

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidConditions indicates a rule's condition document is malformed.
// Malformed conditions fail closed: the rule never matches until fixed.
var ErrInvalidConditions = errors.New("invalid rule conditions")

// Predicate keys used in the per-predicate evaluation breakdown.
const (
	PredicateObjectTypes   = "object_types"
	PredicateCameras       = "cameras"
	PredicateTimeWindow    = "time_window"
	PredicateDaysOfWeek    = "days_of_week"
	PredicateMinConfidence = "min_confidence"
	PredicateMinAnomaly    = "min_anomaly_score"
)

// Conditions is a rule's parsed, validated condition set. Every predicate
// is optional; an unset predicate is vacuously true during evaluation.
type Conditions struct {
	// ObjectTypes matches when any detected label is in the list.
	ObjectTypes []string `json:"object_types,omitempty"`
	// Cameras matches when the event's camera is in the list.
	Cameras []string `json:"cameras,omitempty"`
	// TimeStart/TimeEnd bound a time-of-day window in "HH:MM". A start
	// after the end describes an overnight window (22:00–06:00).
	// Both must be set together.
	TimeStart string `json:"time_start,omitempty"`
	TimeEnd   string `json:"time_end,omitempty"`
	// DaysOfWeek uses ISO numbering, 1=Monday through 7=Sunday.
	DaysOfWeek []int `json:"days_of_week,omitempty"`
	// MinConfidence is a 0–100 threshold on the event confidence.
	MinConfidence *float64 `json:"min_confidence,omitempty"`
	// MinAnomalyScore is a 0.0–1.0 threshold on the event anomaly score.
	// An event without an anomaly score fails this predicate.
	MinAnomalyScore *float64 `json:"min_anomaly_score,omitempty"`

	// Parsed window bounds, minutes since midnight.
	startMinute int
	endMinute   int
}

// HasTimeWindow reports whether a time-of-day window is configured.
func (c *Conditions) HasTimeWindow() bool {
	return c.TimeStart != "" || c.TimeEnd != ""
}

// ParseConditions decodes and validates a rule's JSON condition document.
// An empty document means no predicates (the rule matches every event).
// Any malformed input returns an error wrapping ErrInvalidConditions;
// there is no fail-open fallback.
func ParseConditions(raw string) (*Conditions, error) {
	c := &Conditions{}
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "{}" || raw == "null" {
		return c, nil
	}

	dec := json.NewDecoder(strings.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(c); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConditions, err)
	}

	if err := c.validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConditions, err)
	}
	return c, nil
}

// Encode serializes the condition set back to its storage form.
func (c *Conditions) Encode() (string, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("failed to encode conditions: %w", err)
	}
	return string(b), nil
}

func (c *Conditions) validate() error {
	for _, label := range c.ObjectTypes {
		if strings.TrimSpace(label) == "" {
			return errors.New("object_types entries must be non-empty")
		}
	}
	for _, cam := range c.Cameras {
		if strings.TrimSpace(cam) == "" {
			return errors.New("cameras entries must be non-empty")
		}
	}

	if c.HasTimeWindow() {
		if c.TimeStart == "" || c.TimeEnd == "" {
			return errors.New("time_start and time_end must be set together")
		}
		start, err := parseMinuteOfDay(c.TimeStart)
		if err != nil {
			return fmt.Errorf("time_start: %w", err)
		}
		end, err := parseMinuteOfDay(c.TimeEnd)
		if err != nil {
			return fmt.Errorf("time_end: %w", err)
		}
		c.startMinute = start
		c.endMinute = end
	}

	for _, day := range c.DaysOfWeek {
		if day < 1 || day > 7 {
			return fmt.Errorf("days_of_week value %d out of range 1-7", day)
		}
	}

	if c.MinConfidence != nil && (*c.MinConfidence < 0 || *c.MinConfidence > 100) {
		return fmt.Errorf("min_confidence %v out of range 0-100", *c.MinConfidence)
	}
	if c.MinAnomalyScore != nil && (*c.MinAnomalyScore < 0 || *c.MinAnomalyScore > 1) {
		return fmt.Errorf("min_anomaly_score %v out of range 0.0-1.0", *c.MinAnomalyScore)
	}
	return nil
}

// parseMinuteOfDay parses "HH:MM" into minutes since midnight.
func parseMinuteOfDay(s string) (int, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid time %q: expected HH:MM", s)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid time %q: expected HH:MM", s)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("invalid time %q: expected HH:MM", s)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("invalid time %q: hour 0-23 and minute 0-59", s)
	}
	return hour*60 + minute, nil
}
