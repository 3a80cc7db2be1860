package classifier

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/brojonat/xray/service/helius"
	"github.com/brojonat/xray/service/metrics"
	"github.com/brojonat/xray/service/proton"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency bounds ClassifyBatch when no limit is configured.
const DefaultConcurrency = 8

// Result pairs a classified transaction with the payload it was built from.
type Result struct {
	Parsed proton.Transaction          `json:"parsed"`
	Raw    *helius.EnrichedTransaction `json:"raw"`
}

// Classifier wraps the parser router with logging and metrics.
type Classifier struct {
	metrics     *metrics.Metrics
	logger      *slog.Logger
	concurrency int
}

// New returns a Classifier. m may be nil; concurrency below 1 uses
// DefaultConcurrency.
func New(m *metrics.Metrics, logger *slog.Logger, concurrency int) *Classifier {
	if concurrency < 1 {
		concurrency = DefaultConcurrency
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{
		metrics:     m,
		logger:      logger.With("component", "classifier"),
		concurrency: concurrency,
	}
}

// Classify parses a single transaction for viewer.
func (c *Classifier) Classify(tx *helius.EnrichedTransaction, viewer string) proton.Transaction {
	start := time.Now()
	parsed := proton.Parse(tx, viewer)

	if c.metrics != nil {
		c.metrics.RecordClassification(string(parsed.Type), parsed.IsUnknown(), len(parsed.Actions), time.Since(start).Seconds())
	}
	if parsed.IsUnknown() && tx != nil && proton.Supported(tx.Type) {
		// a supported tag without its event payload
		c.logger.Debug("transaction fell back to unknown",
			"signature", tx.Signature,
			"type", tx.Type,
		)
	}
	return parsed
}

// ClassifyBatch classifies txs concurrently. Results keep the input order.
// It stops early and returns the context error if ctx is cancelled.
func (c *Classifier) ClassifyBatch(ctx context.Context, txs []helius.EnrichedTransaction, viewer string) ([]Result, error) {
	if c.metrics != nil {
		c.metrics.RecordBatchSize(len(txs))
	}

	results := make([]Result, len(txs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)

	for i := range txs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			raw := &txs[i]
			results[i] = Result{Parsed: c.Classify(raw, viewer), Raw: raw}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("classify batch: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("classify batch: %w", err)
	}

	c.logger.DebugContext(ctx, "classified batch", "count", len(txs), "viewer", viewer)
	return results, nil
}

// ClassifyJSON decodes one transaction or an array of them and classifies
// the lot.
func (c *Classifier) ClassifyJSON(ctx context.Context, data []byte, viewer string) ([]Result, error) {
	txs, err := helius.DecodeBytes(data)
	if err != nil {
		c.RecordDecodeError("json")
		return nil, err
	}
	return c.ClassifyBatch(ctx, txs, viewer)
}

// RecordDecodeError counts a payload that could not be decoded. origin names
// the entry point, such as "http" or "json".
func (c *Classifier) RecordDecodeError(origin string) {
	if c.metrics != nil {
		c.metrics.RecordDecodeError(origin)
	}
}

// Summary counts classified transactions by type.
type Summary struct {
	Count   int            `json:"count"`
	Unknown int            `json:"unknown"`
	ByType  map[string]int `json:"by_type"`
}

// Summarize tallies parsed transactions.
func Summarize(txs []proton.Transaction) Summary {
	s := Summary{ByType: make(map[string]int)}
	for _, tx := range txs {
		s.Count++
		s.ByType[string(tx.Type)]++
		if tx.IsUnknown() {
			s.Unknown++
		}
	}
	return s
}
