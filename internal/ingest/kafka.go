package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/kestrelcam/kestrel-go/internal/conf"
	"github.com/kestrelcam/kestrel-go/internal/logger"
)

// KafkaReader feeds detections from a Kafka topic into the pipeline using
// consumer-group offsets for at-least-once delivery.
type KafkaReader struct {
	reader *kafka.Reader
	log    logger.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewKafkaReader starts consuming the detection topic.
func NewKafkaReader(cfg conf.KafkaSettings, pipeline *Pipeline, log logger.Logger) (*KafkaReader, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers are not configured")
	}

	r := &KafkaReader{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:        cfg.Brokers,
			Topic:          cfg.Topic,
			GroupID:        cfg.GroupID,
			MinBytes:       1,
			MaxBytes:       10e6,
			MaxWait:        time.Second,
			CommitInterval: time.Second,
			StartOffset:    kafka.LastOffset,
		}),
		log: log,
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.consume(ctx, pipeline)
	}()

	log.Info("kafka detection reader started",
		logger.Any("brokers", cfg.Brokers),
		logger.String("topic", cfg.Topic),
		logger.String("group_id", cfg.GroupID))
	return r, nil
}

func (r *KafkaReader) consume(ctx context.Context, pipeline *Pipeline) {
	for {
		msg, err := r.reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
				return
			}
			r.log.Error("kafka read failed", logger.Error(err))
			continue
		}

		event, decodeErr := DecodeDetection(msg.Value, time.Now)
		if decodeErr != nil {
			// Poison messages are logged and skipped; the committed offset
			// moves past them.
			r.log.Warn("ignoring undecodable kafka detection",
				logger.String("topic", msg.Topic),
				logger.Int64("offset", msg.Offset),
				logger.Error(decodeErr))
			continue
		}
		pipeline.Submit(event)
	}
}

// Close stops the consume loop and closes the reader.
func (r *KafkaReader) Close() error {
	r.cancel()
	r.wg.Wait()
	if err := r.reader.Close(); err != nil {
		return fmt.Errorf("failed to close kafka reader: %w", err)
	}
	return nil
}
