//go:build integration

package ingest

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrelcam/kestrel-go/internal/conf"
	"github.com/kestrelcam/kestrel-go/internal/logger"
	"github.com/kestrelcam/kestrel-go/internal/testutil/containers"
)

// TestMQTTSubscriber_EndToEnd publishes a detection to a real broker and
// expects it to come out of the pipeline.
func TestMQTTSubscriber_EndToEnd(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	ctx := context.Background()
	broker, err := containers.NewMosquittoContainer(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = broker.Terminate(ctx) })

	log := logger.NewSlogLogger(io.Discard, logger.LogLevelError, nil)
	processor := &captureProcessor{done: make(chan string, 8)}
	pipeline := NewPipeline(PipelineConfig{
		Workers:   1,
		QueueSize: 8,
		DedupeTTL: time.Minute,
		Events:    &captureEventRepo{},
		Processor: processor,
		Log:       log,
	})
	t.Cleanup(pipeline.Stop)

	const topic = "kestrel/detections"
	subscriber, err := NewMQTTSubscriber(conf.MQTTSettings{
		Broker:   broker.BrokerURL(),
		Topic:    topic,
		ClientID: "kestrel-test",
	}, pipeline, log)
	require.NoError(t, err)
	t.Cleanup(subscriber.Close)

	payload := []byte(`{"id": "ev-mqtt-1", "camera_id": "front-door", "labels": ["person"], "confidence": 80}`)
	require.NoError(t, broker.Publish(topic, 1, payload))

	select {
	case id := <-processor.done:
		assert.Equal(t, "ev-mqtt-1", id)
	case <-time.After(10 * time.Second):
		t.Fatal("detection never reached the pipeline")
	}

	// A redelivery of the same event ID is absorbed by the dedupe cache.
	require.NoError(t, broker.Publish(topic, 1, payload))
	select {
	case id := <-processor.done:
		t.Fatalf("duplicate event %s was processed", id)
	case <-time.After(2 * time.Second):
	}
}
