package ingest

import (
	"context"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/kestrelcam/kestrel-go/internal/alerting"
	"github.com/kestrelcam/kestrel-go/internal/datastore/repository"
	"github.com/kestrelcam/kestrel-go/internal/logger"
	"github.com/kestrelcam/kestrel-go/internal/observability/metrics"
)

// EventProcessor evaluates one event against the alert rules. Implemented
// by alerting.Engine.
type EventProcessor interface {
	ProcessEvent(ctx context.Context, event *alerting.Event) error
}

// PipelineConfig configures the intake pipeline.
type PipelineConfig struct {
	// Workers is the number of goroutines draining the queue.
	Workers int
	// QueueSize bounds the intake channel.
	QueueSize int
	// DedupeTTL is how long seen event IDs are remembered. Zero disables
	// deduplication.
	DedupeTTL time.Duration

	Events    repository.CameraEventRepository
	Processor EventProcessor
	Metrics   *metrics.Ingest
	Log       logger.Logger
}

// Pipeline is the bounded intake queue in front of the rule engine. All
// transports funnel through Submit; MQTT and Kafka redeliveries are
// absorbed by a TTL cache on event IDs, and a full queue sheds load by
// dropping rather than blocking the transport callback.
type Pipeline struct {
	queue     chan *alerting.Event
	seen      *gocache.Cache
	events    repository.CameraEventRepository
	processor EventProcessor
	metrics   *metrics.Ingest
	log       logger.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPipeline creates the intake pipeline. Start must be called before
// Submit.
func NewPipeline(cfg PipelineConfig) *Pipeline {
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	queueSize := cfg.QueueSize
	if queueSize < 1 {
		queueSize = 1
	}

	p := &Pipeline{
		queue:     make(chan *alerting.Event, queueSize),
		events:    cfg.Events,
		processor: cfg.Processor,
		metrics:   cfg.Metrics,
		log:       cfg.Log,
	}
	if cfg.DedupeTTL > 0 {
		p.seen = gocache.New(cfg.DedupeTTL, 2*cfg.DedupeTTL)
	}
	p.startWorkers(workers)
	return p
}

func (p *Pipeline) startWorkers(workers int) {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	for range workers {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.worker(ctx)
		}()
	}
}

// Submit enqueues one event. It never blocks: false means the event was
// discarded, either as a redelivery of an already-seen ID or because the
// queue is full.
func (p *Pipeline) Submit(event *alerting.Event) bool {
	if p.metrics != nil {
		p.metrics.EventsReceived.Inc()
	}

	if p.seen != nil {
		if _, dup := p.seen.Get(event.ID); dup {
			if p.metrics != nil {
				p.metrics.EventsDeduped.Inc()
			}
			p.log.Debug("discarding duplicate event", logger.String("event_id", event.ID))
			return false
		}
		p.seen.SetDefault(event.ID, struct{}{})
	}

	select {
	case p.queue <- event:
		if p.metrics != nil {
			p.metrics.QueueDepth.Set(float64(len(p.queue)))
		}
		return true
	default:
		if p.metrics != nil {
			p.metrics.EventsDropped.Inc()
		}
		p.log.Warn("intake queue full, dropping event",
			logger.String("event_id", event.ID),
			logger.String("camera_id", event.CameraID))
		return false
	}
}

func (p *Pipeline) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-p.queue:
			if p.metrics != nil {
				p.metrics.QueueDepth.Set(float64(len(p.queue)))
			}
			p.handle(ctx, event)
		}
	}
}

func (p *Pipeline) handle(ctx context.Context, event *alerting.Event) {
	entity, err := event.ToEntity()
	if err != nil {
		p.log.Error("failed to encode event for storage",
			logger.String("event_id", event.ID), logger.Error(err))
		return
	}
	// The stored event feeds history queries and rule test mode; a storage
	// failure is logged but the event is still evaluated so alerts are not
	// lost to a transient database problem.
	if err := p.events.CreateEvent(ctx, entity); err != nil {
		p.log.Error("failed to store camera event",
			logger.String("event_id", event.ID), logger.Error(err))
	}

	if err := p.processor.ProcessEvent(ctx, event); err != nil {
		p.log.Error("failed to process event",
			logger.String("event_id", event.ID), logger.Error(err))
	}
}

// Stop cancels the workers and waits for in-flight events to finish.
// Pending retries inside dispatch observe the cancellation and give up;
// queued events that no worker picked up yet are abandoned.
func (p *Pipeline) Stop() {
	p.cancel()
	p.wg.Wait()
}
