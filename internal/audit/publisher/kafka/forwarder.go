package kafka

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"bastion/internal/audit"
)

// Producer is the subset of *kgo.Client the forwarder needs.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// Forwarder buffers security events and ships them to a Kafka topic in
// batches for SIEM ingestion. Forward never blocks on the broker.
type Forwarder struct {
	producer  Producer
	topic     string
	buffer    *ringBuffer
	logger    *slog.Logger
	batchSize int
	interval  time.Duration
	wake      chan struct{}
}

type Option func(*Forwarder)

func WithLogger(logger *slog.Logger) Option {
	return func(f *Forwarder) { f.logger = logger }
}

func WithBatchSize(n int) Option {
	return func(f *Forwarder) { f.batchSize = n }
}

func WithBufferCapacity(n int) Option {
	return func(f *Forwarder) { f.buffer = newRingBuffer(n) }
}

func WithFlushInterval(d time.Duration) Option {
	return func(f *Forwarder) { f.interval = d }
}

func New(producer Producer, topic string, opts ...Option) *Forwarder {
	f := &Forwarder{
		producer:  producer,
		topic:     topic,
		buffer:    newRingBuffer(0),
		logger:    slog.Default(),
		batchSize: 100,
		interval:  time.Second,
		wake:      make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Forward implements audit.Forwarder.
func (f *Forwarder) Forward(_ context.Context, event audit.SecurityEvent) {
	f.buffer.enqueue(event)
	if f.buffer.len() >= f.batchSize {
		select {
		case f.wake <- struct{}{}:
		default:
		}
	}
}

// Run flushes until ctx is done, then drains what is left.
func (f *Forwarder) Run(ctx context.Context) error {
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			drainCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			for f.buffer.len() > 0 {
				if err := f.Flush(drainCtx); err != nil {
					break
				}
			}
			return ctx.Err()
		case <-ticker.C:
		case <-f.wake:
		}
		if err := f.Flush(ctx); err != nil {
			f.logger.WarnContext(ctx, "security event forward failed",
				"error", err,
				"dropped_total", f.buffer.droppedCount(),
			)
		}
	}
}

// Flush produces one batch. Events from a failed batch are re-queued.
func (f *Forwarder) Flush(ctx context.Context) error {
	batch := f.buffer.dequeueBatch(f.batchSize)
	if len(batch) == 0 {
		return nil
	}
	records := make([]*kgo.Record, 0, len(batch))
	for _, e := range batch {
		value, err := json.Marshal(e)
		if err != nil {
			f.logger.ErrorContext(ctx, "marshal security event", "error", err, "event_id", e.ID)
			continue
		}
		records = append(records, &kgo.Record{
			Topic: f.topic,
			Key:   []byte(e.SubjectID),
			Value: value,
			Headers: []kgo.RecordHeader{
				{Key: "severity", Value: []byte(e.Severity)},
				{Key: "event_type", Value: []byte(e.EventType)},
			},
		})
	}
	if err := f.producer.ProduceSync(ctx, records...).FirstErr(); err != nil {
		for _, e := range batch {
			f.buffer.enqueue(e)
		}
		return err
	}
	return nil
}

// Pending reports buffered events, for health and tests.
func (f *Forwarder) Pending() int {
	return f.buffer.len()
}
