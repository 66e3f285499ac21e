// Package metrics defines the prometheus instrumentation for the alerting
// pipeline. Collectors are created against an injected registerer so tests
// can use isolated registries.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Alerting holds the rule engine collectors.
type Alerting struct {
	EventsProcessed  prometheus.Counter
	RulesEvaluated   prometheus.Counter
	RulesMatched     prometheus.Counter
	RulesFired       prometheus.Counter
	CooldownBlocked  prometheus.Counter
	MalformedRules   prometheus.Counter
	DispatchFailures prometheus.Counter
	WebhookLatency   prometheus.Histogram
}

// NewAlerting registers and returns the rule engine collectors.
func NewAlerting(reg prometheus.Registerer) *Alerting {
	factory := promauto.With(reg)
	return &Alerting{
		EventsProcessed: factory.NewCounter(prometheus.CounterOpts{
			Name: "kestrel_alerting_events_processed_total",
			Help: "Camera events evaluated by the rule engine.",
		}),
		RulesEvaluated: factory.NewCounter(prometheus.CounterOpts{
			Name: "kestrel_alerting_rules_evaluated_total",
			Help: "Rule evaluations performed (rules × events).",
		}),
		RulesMatched: factory.NewCounter(prometheus.CounterOpts{
			Name: "kestrel_alerting_rules_matched_total",
			Help: "Rule evaluations whose conditions matched.",
		}),
		RulesFired: factory.NewCounter(prometheus.CounterOpts{
			Name: "kestrel_alerting_rules_fired_total",
			Help: "Rules that fired (matched, cleared cooldown, dispatched).",
		}),
		CooldownBlocked: factory.NewCounter(prometheus.CounterOpts{
			Name: "kestrel_alerting_cooldown_blocked_total",
			Help: "Matches suppressed by an active cooldown.",
		}),
		MalformedRules: factory.NewCounter(prometheus.CounterOpts{
			Name: "kestrel_alerting_malformed_rules_total",
			Help: "Rules skipped because their conditions or actions failed to parse.",
		}),
		DispatchFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "kestrel_alerting_dispatch_failures_total",
			Help: "Dispatches that returned an error.",
		}),
		WebhookLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "kestrel_alerting_webhook_latency_seconds",
			Help:    "End-to-end webhook delivery latency including retries.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// Ingest holds the event intake collectors.
type Ingest struct {
	EventsReceived prometheus.Counter
	EventsDeduped  prometheus.Counter
	EventsDropped  prometheus.Counter
	QueueDepth     prometheus.Gauge
}

// NewIngest registers and returns the intake collectors.
func NewIngest(reg prometheus.Registerer) *Ingest {
	factory := promauto.With(reg)
	return &Ingest{
		EventsReceived: factory.NewCounter(prometheus.CounterOpts{
			Name: "kestrel_ingest_events_received_total",
			Help: "Detection events received from all transports.",
		}),
		EventsDeduped: factory.NewCounter(prometheus.CounterOpts{
			Name: "kestrel_ingest_events_deduped_total",
			Help: "Events discarded as redeliveries of an already-seen ID.",
		}),
		EventsDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "kestrel_ingest_events_dropped_total",
			Help: "Events dropped because the intake queue was full.",
		}),
		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "kestrel_ingest_queue_depth",
			Help: "Events waiting in the intake queue.",
		}),
	}
}
