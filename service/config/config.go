package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Sink names where classified transactions are published.
const (
	SinkNone  = "none"
	SinkNATS  = "nats"
	SinkKafka = "kafka"
)

// Config holds all application configuration loaded from environment variables.
// Every field is validated at startup so misconfiguration fails fast.
type Config struct {
	// Server configuration
	ServerAddr     string
	LogLevel       string
	RequestTimeout time.Duration

	// Classification configuration
	ClassifyConcurrency int
	MaxBatchSize        int

	// Sink configuration
	Sink         string
	NATSURL      string
	KafkaBrokers []string
	KafkaTopic   string

	// Temporal configuration
	TemporalHost      string
	TemporalNamespace string
	TemporalTaskQueue string
}

// Load reads configuration from environment variables and validates it.
// All problems are reported together.
func Load() (*Config, error) {
	cfg := &Config{}
	var errs []error

	// Server configuration
	cfg.ServerAddr = getEnvOrDefault("SERVER_ADDR", ":8080")
	cfg.LogLevel = strings.ToLower(getEnvOrDefault("LOG_LEVEL", "info"))

	timeout, err := parseDuration("REQUEST_TIMEOUT", "15s")
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.RequestTimeout = timeout
	}

	// Classification configuration
	concurrency, err := parseInt("CLASSIFY_CONCURRENCY", 8)
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.ClassifyConcurrency = concurrency
	}

	maxBatch, err := parseInt("MAX_BATCH_SIZE", 100)
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.MaxBatchSize = maxBatch
	}

	// Sink configuration
	cfg.Sink = strings.ToLower(getEnvOrDefault("SINK", SinkNone))
	cfg.NATSURL = getEnvOrDefault("NATS_URL", "nats://localhost:4222")
	cfg.KafkaBrokers = parseList(os.Getenv("KAFKA_BROKERS"))
	cfg.KafkaTopic = getEnvOrDefault("KAFKA_TOPIC", "classified-transactions")

	if cfg.Sink == SinkKafka && len(cfg.KafkaBrokers) == 0 {
		errs = append(errs, fmt.Errorf("KAFKA_BROKERS is required when SINK=kafka"))
	}

	// Temporal configuration
	cfg.TemporalHost = getEnvOrDefault("TEMPORAL_HOST", "localhost:7233")
	cfg.TemporalNamespace = getEnvOrDefault("TEMPORAL_NAMESPACE", "default")
	cfg.TemporalTaskQueue = getEnvOrDefault("TEMPORAL_TASK_QUEUE", "xray-classify")

	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %v", errs)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// MustLoad is like Load but panics if configuration is invalid.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// Validate checks if the configuration is valid.
// This is useful for testing configuration without loading from env.
func (c *Config) Validate() error {
	var errs []error

	if c.ServerAddr == "" {
		errs = append(errs, fmt.Errorf("ServerAddr is required"))
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("LogLevel must be one of debug, info, warn, error (got %q)", c.LogLevel))
	}

	if c.RequestTimeout < time.Second {
		errs = append(errs, fmt.Errorf("RequestTimeout must be at least 1 second"))
	}

	if c.ClassifyConcurrency < 1 {
		errs = append(errs, fmt.Errorf("ClassifyConcurrency must be at least 1"))
	}

	if c.MaxBatchSize < 1 {
		errs = append(errs, fmt.Errorf("MaxBatchSize must be at least 1"))
	}

	switch c.Sink {
	case SinkNone:
	case SinkNATS:
		if c.NATSURL == "" {
			errs = append(errs, fmt.Errorf("NATSURL is required when Sink is nats"))
		}
	case SinkKafka:
		if len(c.KafkaBrokers) == 0 {
			errs = append(errs, fmt.Errorf("KafkaBrokers is required when Sink is kafka"))
		}
		if c.KafkaTopic == "" {
			errs = append(errs, fmt.Errorf("KafkaTopic is required when Sink is kafka"))
		}
	default:
		errs = append(errs, fmt.Errorf("Sink must be one of none, nats, kafka (got %q)", c.Sink))
	}

	if c.TemporalHost == "" {
		errs = append(errs, fmt.Errorf("TemporalHost is required"))
	}

	if c.TemporalNamespace == "" {
		errs = append(errs, fmt.Errorf("TemporalNamespace is required"))
	}

	if c.TemporalTaskQueue == "" {
		errs = append(errs, fmt.Errorf("TemporalTaskQueue is required"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errs)
	}

	return nil
}

// getEnvOrDefault returns the environment variable value or a default if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseDuration parses a duration from an environment variable or uses a default.
func parseDuration(key, defaultValue string) (time.Duration, error) {
	value := getEnvOrDefault(key, defaultValue)
	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", key, value, err)
	}
	return duration, nil
}

// parseInt parses an integer from an environment variable or uses a default.
func parseInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	result, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q: %w", key, value, err)
	}
	return result, nil
}

// parseList splits a comma-separated value, dropping blanks.
func parseList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
