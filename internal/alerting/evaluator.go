package alerting

import "time"

// Evaluate checks an event against a parsed condition set. It returns the
// overall match (AND of every configured predicate) and a per-predicate
// breakdown for diagnostics. Unconfigured predicates are vacuously true and
// omitted from the breakdown. The breakdown is complete even when an early
// predicate already failed.
func Evaluate(c *Conditions, event *Event) (bool, map[string]bool) {
	results := make(map[string]bool)
	matched := true

	record := func(key string, ok bool) {
		results[key] = ok
		if !ok {
			matched = false
		}
	}

	if len(c.ObjectTypes) > 0 {
		record(PredicateObjectTypes, labelsIntersect(c.ObjectTypes, event.Labels))
	}
	if len(c.Cameras) > 0 {
		record(PredicateCameras, contains(c.Cameras, event.CameraID))
	}
	if c.HasTimeWindow() {
		record(PredicateTimeWindow, inTimeWindow(c.startMinute, c.endMinute, event.Timestamp))
	}
	if len(c.DaysOfWeek) > 0 {
		record(PredicateDaysOfWeek, containsInt(c.DaysOfWeek, isoWeekday(event.Timestamp)))
	}
	if c.MinConfidence != nil {
		record(PredicateMinConfidence, event.Confidence >= *c.MinConfidence)
	}
	if c.MinAnomalyScore != nil {
		// An event without an anomaly score fails the predicate: absence
		// is not evidence the score would have cleared the threshold.
		ok := event.AnomalyScore != nil && *event.AnomalyScore >= *c.MinAnomalyScore
		record(PredicateMinAnomaly, ok)
	}

	return matched, results
}

// labelsIntersect reports whether any event label is in the allow-list.
func labelsIntersect(allowed, labels []string) bool {
	for _, l := range labels {
		if contains(allowed, l) {
			return true
		}
	}
	return false
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func containsInt(list []int, n int) bool {
	for _, v := range list {
		if v == n {
			return true
		}
	}
	return false
}

// inTimeWindow checks the event's local time-of-day against the window.
// Both bounds are inclusive. A start after the end describes an overnight
// window: match when the time is at or past the start, or at or before
// the end.
func inTimeWindow(startMinute, endMinute int, ts time.Time) bool {
	minute := ts.Hour()*60 + ts.Minute()
	if startMinute <= endMinute {
		return minute >= startMinute && minute <= endMinute
	}
	return minute >= startMinute || minute <= endMinute
}

// isoWeekday maps time.Weekday to ISO numbering, 1=Monday through 7=Sunday.
func isoWeekday(ts time.Time) int {
	wd := int(ts.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}
