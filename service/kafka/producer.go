package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/IBM/sarama"
	"github.com/brojonat/xray/service/metrics"
	"github.com/brojonat/xray/service/nats"
)

// Producer publishes classified transactions to a Kafka topic. It satisfies
// nats.Publisher so either sink can back the server and the worker.
type Producer struct {
	topic   string
	sp      sarama.SyncProducer
	logger  *slog.Logger
	metrics *metrics.Metrics
}

var _ nats.Publisher = (*Producer)(nil)

// NewProducer dials brokers and returns a producer that waits for all
// in-sync replicas to acknowledge each message. m may be nil.
func NewProducer(brokers []string, topic string, logger *slog.Logger, m *metrics.Metrics) (*Producer, error) {
	if topic == "" {
		return nil, errors.New("topic empty")
	}
	if len(brokers) == 0 {
		return nil, errors.New("no brokers")
	}

	cfg := sarama.NewConfig()
	cfg.ClientID = "xray-publisher"
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 10
	cfg.Producer.Retry.Backoff = 200 * time.Millisecond
	cfg.Producer.Partitioner = sarama.NewHashPartitioner

	// SyncProducer requires both
	cfg.Producer.Return.Successes = true
	cfg.Producer.Return.Errors = true

	sp, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	logger.Info("Kafka producer initialized",
		"brokers", brokers,
		"topic", topic,
	)

	return NewProducerFrom(sp, topic, logger, m), nil
}

// NewProducerFrom wraps an existing SyncProducer.
func NewProducerFrom(sp sarama.SyncProducer, topic string, logger *slog.Logger, m *metrics.Metrics) *Producer {
	return &Producer{
		topic:   topic,
		sp:      sp,
		logger:  logger,
		metrics: m,
	}
}

// PublishTransaction sends one event keyed by signature, so every narration of
// a transaction lands on the same partition.
func (p *Producer) PublishTransaction(ctx context.Context, event *nats.TransactionEvent) error {
	// SyncProducer takes no context, so only check it before sending.
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal transaction event: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(event.Signature),
		Value: sarama.ByteEncoder(data),
		Headers: []sarama.RecordHeader{
			{Key: []byte("type"), Value: []byte(event.Type)},
			{Key: []byte("subject"), Value: []byte(event.Subject())},
		},
	}

	start := time.Now()
	partition, offset, err := p.sp.SendMessage(msg)
	if p.metrics != nil {
		p.metrics.RecordSinkPublish("kafka", p.topic, err, time.Since(start).Seconds())
	}
	if err != nil {
		return fmt.Errorf("kafka publish failed: %w", err)
	}

	p.logger.DebugContext(ctx, "published transaction event",
		"topic", p.topic,
		"partition", partition,
		"offset", offset,
		"signature", event.Signature,
	)
	return nil
}

// PublishTransactionBatch sends each event in order and returns how many the
// brokers acknowledged. Failures are logged and skipped.
func (p *Producer) PublishTransactionBatch(ctx context.Context, events []*nats.TransactionEvent) (int, error) {
	published := 0
	for _, event := range events {
		if err := p.PublishTransaction(ctx, event); err != nil {
			if ctx.Err() != nil {
				return published, ctx.Err()
			}
			p.logger.ErrorContext(ctx, "failed to publish transaction in batch",
				"signature", event.Signature,
				"error", err,
			)
			continue
		}
		published++
	}

	p.logger.DebugContext(ctx, "published transaction batch",
		"count", len(events),
		"failed", len(events)-published,
	)
	return published, nil
}

func (p *Producer) Close() error {
	if p.sp != nil {
		return p.sp.Close()
	}
	return nil
}
