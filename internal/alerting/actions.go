package alerting

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidActions indicates a rule's action document is malformed.
var ErrInvalidActions = errors.New("invalid rule actions")

// Actions is a rule's parsed action set.
type Actions struct {
	// Notify creates a dashboard notification when the rule fires.
	Notify bool `json:"notify"`
	// WebhookURL, when set, is POSTed the event summary. Custom headers
	// are sent alongside the standard content type.
	WebhookURL     string            `json:"webhook_url,omitempty"`
	WebhookHeaders map[string]string `json:"webhook_headers,omitempty"`
}

// HasWebhook reports whether a webhook target is configured.
func (a *Actions) HasWebhook() bool {
	return a.WebhookURL != ""
}

// ParseActions decodes and validates a rule's JSON action document.
// An empty document yields an action set that does nothing.
func ParseActions(raw string) (*Actions, error) {
	a := &Actions{}
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "{}" || raw == "null" {
		return a, nil
	}

	dec := json.NewDecoder(strings.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(a); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidActions, err)
	}

	for name := range a.WebhookHeaders {
		if strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("%w: webhook header names must be non-empty", ErrInvalidActions)
		}
	}
	if len(a.WebhookHeaders) > 0 && a.WebhookURL == "" {
		return nil, fmt.Errorf("%w: webhook_headers set without webhook_url", ErrInvalidActions)
	}
	return a, nil
}

// Encode serializes the action set back to its storage form.
func (a *Actions) Encode() (string, error) {
	b, err := json.Marshal(a)
	if err != nil {
		return "", fmt.Errorf("failed to encode actions: %w", err)
	}
	return string(b), nil
}
