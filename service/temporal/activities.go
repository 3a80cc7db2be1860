package temporal

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/brojonat/xray/service/classifier"
	"github.com/brojonat/xray/service/helius"
	"github.com/brojonat/xray/service/metrics"
	natspkg "github.com/brojonat/xray/service/nats"
	"github.com/brojonat/xray/service/proton"
)

// ClassifyTransactionsInput contains parameters for the ClassifyTransactions activity.
type ClassifyTransactionsInput struct {
	Transactions []helius.EnrichedTransaction `json:"transactions"`
	Viewer       string                       `json:"viewer,omitempty"`
}

// ClassifyTransactionsResult contains the classified transactions in input order.
type ClassifyTransactionsResult struct {
	Transactions []proton.Transaction `json:"transactions"`
	Summary      classifier.Summary   `json:"summary"`
}

// PublishTransactionsInput contains parameters for the PublishTransactions activity.
type PublishTransactionsInput struct {
	Transactions []proton.Transaction `json:"transactions"`
	Viewer       string               `json:"viewer,omitempty"`
}

// PublishTransactionsResult contains the result of publishing transactions.
type PublishTransactionsResult struct {
	Published int `json:"published"`
	Failed    int `json:"failed"`
}

// PublisherInterface defines the publishing operations needed by activities.
// Both the NATS and Kafka sinks satisfy it.
type PublisherInterface interface {
	PublishTransaction(ctx context.Context, event *natspkg.TransactionEvent) error
	PublishTransactionBatch(ctx context.Context, events []*natspkg.TransactionEvent) (int, error)
}

// Activities holds the dependencies needed by Temporal activities.
type Activities struct {
	classifier *classifier.Classifier
	publisher  PublisherInterface
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// NewActivities creates a new Activities instance with explicit dependencies.
// publisher and m may be nil.
func NewActivities(c *classifier.Classifier, publisher PublisherInterface, m *metrics.Metrics, logger *slog.Logger) *Activities {
	if logger == nil {
		logger = slog.Default()
	}
	if c == nil {
		c = classifier.New(m, logger, classifier.DefaultConcurrency)
	}
	return &Activities{
		classifier: c,
		publisher:  publisher,
		metrics:    m,
		logger:     logger,
	}
}

// ClassifyTransactions runs every transaction through the parser router.
func (a *Activities) ClassifyTransactions(ctx context.Context, input ClassifyTransactionsInput) (result *ClassifyTransactionsResult, err error) {
	start := time.Now()
	defer func() {
		if a.metrics != nil {
			a.metrics.RecordActivityDuration("ClassifyTransactions", time.Since(start).Seconds(), err)
		}
	}()

	a.logger.DebugContext(ctx, "classifying transactions",
		"count", len(input.Transactions),
		"viewer", input.Viewer,
	)

	results, err := a.classifier.ClassifyBatch(ctx, input.Transactions, input.Viewer)
	if err != nil {
		a.logger.ErrorContext(ctx, "failed to classify transactions", "error", err)
		return nil, fmt.Errorf("failed to classify transactions: %w", err)
	}

	parsed := make([]proton.Transaction, len(results))
	for i, r := range results {
		parsed[i] = r.Parsed
	}

	summary := classifier.Summarize(parsed)
	a.logger.InfoContext(ctx, "classified transactions",
		"count", summary.Count,
		"unknown", summary.Unknown,
	)

	return &ClassifyTransactionsResult{
		Transactions: parsed,
		Summary:      summary,
	}, nil
}

// PublishTransactions sends classified transactions to the configured sink.
// Without a sink it publishes nothing and succeeds.
func (a *Activities) PublishTransactions(ctx context.Context, input PublishTransactionsInput) (result *PublishTransactionsResult, err error) {
	start := time.Now()
	defer func() {
		if a.metrics != nil {
			a.metrics.RecordActivityDuration("PublishTransactions", time.Since(start).Seconds(), err)
		}
	}()

	if a.publisher == nil {
		a.logger.WarnContext(ctx, "no publisher configured, skipping publish",
			"count", len(input.Transactions),
		)
		return &PublishTransactionsResult{}, nil
	}

	if len(input.Transactions) == 0 {
		return &PublishTransactionsResult{}, nil
	}

	events := make([]*natspkg.TransactionEvent, len(input.Transactions))
	for i, tx := range input.Transactions {
		events[i] = natspkg.FromTransaction(tx, input.Viewer)
	}

	published, err := a.publisher.PublishTransactionBatch(ctx, events)
	if err != nil {
		a.logger.ErrorContext(ctx, "failed to publish transactions",
			"published", published,
			"error", err,
		)
		return nil, fmt.Errorf("failed to publish transactions: %w", err)
	}

	failed := len(events) - published
	if failed > 0 {
		a.logger.WarnContext(ctx, "some transactions were not published",
			"published", published,
			"failed", failed,
		)
	} else {
		a.logger.InfoContext(ctx, "published transactions", "count", published)
	}
	return &PublishTransactionsResult{Published: published, Failed: failed}, nil
}
