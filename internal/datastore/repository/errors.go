package repository

import "errors"

// Sentinel errors returned by repository implementations. Callers branch
// with errors.Is rather than matching message text.
var (
	// ErrAlertRuleNotFound indicates the requested rule does not exist.
	ErrAlertRuleNotFound = errors.New("alert rule not found")

	// ErrEventNotFound indicates the requested camera event does not exist.
	ErrEventNotFound = errors.New("camera event not found")

	// ErrNotificationNotFound indicates the requested notification does not exist.
	ErrNotificationNotFound = errors.New("notification not found")

	// ErrTriggerConflict indicates a concurrent caller already recorded a
	// trigger for the same quiet period: the conditional update matched
	// zero rows because last_triggered_at no longer holds the value the
	// caller observed. The loser must not dispatch.
	ErrTriggerConflict = errors.New("trigger state changed concurrently")
)
