// Package sink selects where classified transactions are published.
package sink

import (
	"fmt"
	"log/slog"

	"github.com/brojonat/xray/service/config"
	"github.com/brojonat/xray/service/kafka"
	"github.com/brojonat/xray/service/metrics"
	natspkg "github.com/brojonat/xray/service/nats"
)

// New returns the publisher configured by cfg.Sink, or nil for config.SinkNone.
// The caller owns the publisher and must Close it.
func New(cfg *config.Config, m *metrics.Metrics, logger *slog.Logger) (natspkg.Publisher, error) {
	switch cfg.Sink {
	case config.SinkNone, "":
		logger.Info("no sink configured, classified transactions will not be published")
		return nil, nil

	case config.SinkNATS:
		p, err := natspkg.NewPublisher(cfg.NATSURL, logger, m)
		if err != nil {
			return nil, fmt.Errorf("failed to create NATS publisher: %w", err)
		}
		logger.Info("publishing to NATS JetStream", "url", cfg.NATSURL, "stream", natspkg.StreamName)
		return p, nil

	case config.SinkKafka:
		p, err := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic, logger, m)
		if err != nil {
			return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
		}
		logger.Info("publishing to Kafka", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
		return p, nil

	default:
		return nil, fmt.Errorf("unknown sink %q", cfg.Sink)
	}
}
