package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/yanqian/agri-market/internal/domain/market"
)

// KafkaConfig controls batch event publishing.
type KafkaConfig struct {
	Brokers      []string
	Topic        string
	WriteTimeout time.Duration
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes one message per accepted loader batch, keyed by category.
type KafkaPublisher struct {
	writer  messageWriter
	topic   string
	timeout time.Duration
	logger  *slog.Logger
}

// NewKafkaPublisher builds a publisher for the configured topic.
func NewKafkaPublisher(cfg KafkaConfig, logger *slog.Logger) (*KafkaPublisher, error) {
	brokers := make([]string, 0, len(cfg.Brokers))
	for _, b := range cfg.Brokers {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	if len(brokers) == 0 {
		return nil, errors.New("kafka publisher requires at least one broker")
	}
	if strings.TrimSpace(cfg.Topic) == "" {
		return nil, errors.New("kafka publisher requires a topic")
	}
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
	return newKafkaPublisher(writer, cfg, logger), nil
}

func newKafkaPublisher(writer messageWriter, cfg KafkaConfig, logger *slog.Logger) *KafkaPublisher {
	timeout := cfg.WriteTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &KafkaPublisher{
		writer:  writer,
		topic:   cfg.Topic,
		timeout: timeout,
		logger:  logger.With("component", "events.kafka", "topic", cfg.Topic),
	}
}

// PublishBatch implements market.EventPublisher.
func (p *KafkaPublisher) PublishBatch(ctx context.Context, event market.BatchEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode batch event: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	msg := kafka.Message{
		Key:   []byte(event.Category),
		Value: payload,
		Time:  event.IngestedAt,
		Headers: []kafka.Header{
			{Key: "session_id", Value: []byte(event.SessionID)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write batch event: %w", err)
	}
	p.logger.Debug("batch event published", "category", event.Category, "batch", event.Batch, "records", event.Records)
	return nil
}

// Close flushes pending writes.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// LogPublisher records batch events in the application log when no broker is configured.
type LogPublisher struct {
	logger *slog.Logger
}

// NewLogPublisher constructs a publisher that only logs.
func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger.With("component", "events.log")}
}

// PublishBatch implements market.EventPublisher.
func (p *LogPublisher) PublishBatch(_ context.Context, event market.BatchEvent) error {
	p.logger.Debug("batch ingested",
		"generation", event.Generation,
		"category", event.Category,
		"batch", event.Batch,
		"records", event.Records,
	)
	return nil
}

var (
	_ market.EventPublisher = (*KafkaPublisher)(nil)
	_ market.EventPublisher = (*LogPublisher)(nil)
)
