package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/alem-hub/mentorship-engine/internal/domain/shared"
	"github.com/alem-hub/mentorship-engine/pkg/circuitbreaker"
	"github.com/alem-hub/mentorship-engine/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// KAFKA FORWARDER
// Subscribes to every bus event and writes it to a Kafka topic as a JSON
// EventEnvelope. Messages are keyed by aggregate id so the events of one match
// stay ordered within a partition.
// ══════════════════════════════════════════════════════════════════════════════

// KafkaWriter is the subset of kafka.Writer the forwarder uses.
type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaConfig configures the forwarder.
type KafkaConfig struct {
	Brokers []string
	Topic   string

	// WriteTimeout bounds one publish including retries.
	WriteTimeout time.Duration
}

// NewKafkaWriter creates a kafka-go writer for the configured topic.
func NewKafkaWriter(cfg KafkaConfig) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
	}
}

// KafkaForwarder publishes domain events to Kafka.
type KafkaForwarder struct {
	writer  KafkaWriter
	timeout time.Duration
	retrier *retry.Retrier
	breaker *circuitbreaker.CircuitBreaker
	logger  *slog.Logger
	newID   func() string
}

// NewKafkaForwarder creates a forwarder on top of writer.
func NewKafkaForwarder(writer KafkaWriter, cfg KafkaConfig, logger *slog.Logger) *KafkaForwarder {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	logger = logger.With("component", "kafka_forwarder", "topic", cfg.Topic)

	return &KafkaForwarder{
		writer:  writer,
		timeout: cfg.WriteTimeout,
		retrier: retry.BrokerRetrier(),
		breaker: circuitbreaker.KafkaBreaker(func(name string, from, to circuitbreaker.State) {
			logger.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		}),
		logger: logger,
		newID:  uuid.NewString,
	}
}

// Register subscribes the forwarder to every event on the bus.
func (f *KafkaForwarder) Register(sub shared.EventSubscriber) error {
	return sub.SubscribeAll(f.Handle)
}

// Handle implements shared.EventHandler.
func (f *KafkaForwarder) Handle(event shared.Event) error {
	msg, err := f.message(event)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), f.timeout)
	defer cancel()

	err = f.retrier.Do(ctx, func(ctx context.Context) error {
		return f.breaker.Execute(ctx, func(ctx context.Context) error {
			if err := f.writer.WriteMessages(ctx, msg); err != nil {
				return retry.Retryable(err)
			}
			return nil
		})
	})
	if err != nil {
		return fmt.Errorf("kafka: publish %s: %w", event.EventType(), err)
	}

	f.logger.Debug("event forwarded", "event_type", event.EventType(), "aggregate_id", event.AggregateID())
	return nil
}

func (f *KafkaForwarder) message(event shared.Event) (kafka.Message, error) {
	env, err := shared.NewEventEnvelope(f.newID(), event)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("kafka: envelope: %w", err)
	}
	value, err := json.Marshal(env)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("kafka: marshal: %w", err)
	}

	return kafka.Message{
		Key:   []byte(event.AggregateID()),
		Value: value,
		Time:  event.OccurredAt(),
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType())},
			{Key: "event_id", Value: []byte(env.ID)},
		},
	}, nil
}

// Close closes the underlying writer.
func (f *KafkaForwarder) Close() error {
	return f.writer.Close()
}
