package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/openshelf/bibsync-service/internal/domain"
)

// publishTimeout bounds each Kafka write; the run never waits longer than
// this on the event surface.
const publishTimeout = 10 * time.Second

// KafkaConfig holds settings for the Kafka publisher.
type KafkaConfig struct {
	// Brokers is the list of broker addresses.
	Brokers []string
	// Topic is the topic terminal sync events are published to.
	Topic string
	// BatchTimeout is the maximum time to wait for a batch to fill.
	BatchTimeout time.Duration
}

// messageWriter is the slice of kafka.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// kafkaEnvelope is the wire shape of a published terminal event.
type kafkaEnvelope struct {
	EventID   string                 `json:"event_id"`
	EventType string                 `json:"event_type"`
	Service   string                 `json:"service"`
	Payload   domain.CompletionEvent `json:"payload"`
	EmittedAt time.Time              `json:"emitted_at"`
}

// KafkaPublisher publishes each run's terminal event to a Kafka topic.
// Progress events stay in-process; only completions cross the wire.
// Publish failures are logged and never affect the run.
type KafkaPublisher struct {
	writer messageWriter
	logger zerolog.Logger
}

var _ Sink = (*KafkaPublisher)(nil)

// NewKafkaPublisher creates a publisher writing to the configured topic.
func NewKafkaPublisher(cfg KafkaConfig, logger zerolog.Logger) *KafkaPublisher {
	batchTimeout := cfg.BatchTimeout
	if batchTimeout <= 0 {
		batchTimeout = 10 * time.Millisecond
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: batchTimeout,
		RequiredAcks: kafka.RequireOne,
	}

	return &KafkaPublisher{
		writer: writer,
		logger: logger.With().Str("component", "kafka_publisher").Logger(),
	}
}

// SyncProgress is a no-op; incremental progress is in-process only.
func (p *KafkaPublisher) SyncProgress(domain.ProgressEvent) {}

// SyncCompleted publishes the terminal event of a run.
func (p *KafkaPublisher) SyncCompleted(event domain.CompletionEvent) {
	eventType := domain.EventTypeSyncCompleted
	if event.Cancelled {
		eventType = domain.EventTypeSyncCancelled
	}

	envelope := kafkaEnvelope{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Service:   "bibsync-service",
		Payload:   event,
		EmittedAt: time.Now().UTC(),
	}

	value, err := json.Marshal(envelope)
	if err != nil {
		p.logger.Error().Err(err).Msg("failed to marshal sync event")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(eventType),
		Value: value,
	})
	if err != nil {
		p.logger.Error().Err(err).Str("event_type", eventType).Msg("failed to publish sync event")
		return
	}

	p.logger.Debug().Str("event_type", eventType).Str("event_id", envelope.EventID).Msg("sync event published")
}

// Close flushes and closes the underlying writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
