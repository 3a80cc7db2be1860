package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/brojonat/xray/service/classifier"
	"github.com/brojonat/xray/service/helius"
	natspkg "github.com/brojonat/xray/service/nats"
	"github.com/brojonat/xray/service/proton"
	"github.com/brojonat/xray/service/temporal"
	solanago "github.com/gagliardetto/solana-go"
)

const (
	// maxRequestBodySize bounds a single enriched transaction payload.
	maxRequestBodySize = 1 << 20 // 1MB

	// defaultMaxBatchSize applies when the config leaves the batch size unset.
	defaultMaxBatchSize = 100

	// Solana addresses are base58 encoded and 32-44 characters
	maxAddressLength = 64
)

var validAddressRegex = regexp.MustCompile(`^[1-9A-HJ-NP-Za-km-z]+$`)

// ParseBatchResponse is the body returned by the batch endpoint.
type ParseBatchResponse struct {
	Transactions []classifier.Result `json:"transactions"`
	Count        int                 `json:"count"`
}

// TypesResponse lists the transaction types with a dedicated parser.
type TypesResponse struct {
	Types []helius.TransactionType `json:"types"`
	Count int                      `json:"count"`
}

// ClassifyJobResponse is returned when an asynchronous classify job is accepted.
type ClassifyJobResponse struct {
	WorkflowID string `json:"workflow_id"`
	Count      int    `json:"count"`
}

// handleParseTransaction classifies a single enriched transaction.
// The optional ?address= query parameter narrates it for that wallet.
func handleParseTransaction(c *classifier.Classifier, publisher natspkg.Publisher, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		viewer, err := viewerFromQuery(r)
		if err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

		var tx helius.EnrichedTransaction
		if err := json.NewDecoder(r.Body).Decode(&tx); err != nil {
			c.RecordDecodeError("http")
			writeBodyError(w, err, "invalid request body: expected a single enriched transaction")
			return
		}

		parsed := c.Classify(&tx, viewer)

		publishBestEffort(r.Context(), publisher, []proton.Transaction{parsed}, viewer, logger)

		logger.DebugContext(r.Context(), "classified transaction",
			"signature", parsed.Signature,
			"type", parsed.Type,
			"actions", len(parsed.Actions),
		)

		writeJSON(w, parsed, http.StatusOK)
	})
}

// handleParseBatch classifies an array of enriched transactions, preserving order.
// Each element of the response carries the parsed transaction and its raw input.
func handleParseBatch(c *classifier.Classifier, publisher natspkg.Publisher, maxBatch int, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		viewer, err := viewerFromQuery(r)
		if err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		txs, ok := decodeBatch(w, r, c, maxBatch)
		if !ok {
			return
		}

		results, err := c.ClassifyBatch(r.Context(), txs, viewer)
		if err != nil {
			logger.ErrorContext(r.Context(), "failed to classify batch",
				"count", len(txs),
				"error", err,
			)
			writeError(w, "failed to classify batch", http.StatusInternalServerError)
			return
		}

		parsed := make([]proton.Transaction, len(results))
		for i, res := range results {
			parsed[i] = res.Parsed
		}
		publishBestEffort(r.Context(), publisher, parsed, viewer, logger)

		logger.InfoContext(r.Context(), "classified batch",
			"count", len(results),
			"viewer", viewer,
		)

		writeJSON(w, ParseBatchResponse{
			Transactions: results,
			Count:        len(results),
		}, http.StatusOK)
	})
}

// handleListTypes reports the transaction types with a dedicated parser.
func handleListTypes() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		types := proton.SupportedTypes()
		writeJSON(w, TypesResponse{Types: types, Count: len(types)}, http.StatusOK)
	})
}

// handleStartClassifyJob hands a batch to the classify workflow and returns
// immediately with the workflow ID. Pass ?publish=true to publish the results.
func handleStartClassifyJob(starter temporal.Starter, maxBatch int, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		viewer, err := viewerFromQuery(r)
		if err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		publish := false
		if raw := r.URL.Query().Get("publish"); raw != "" {
			publish, err = strconv.ParseBool(raw)
			if err != nil {
				writeError(w, "invalid publish parameter: must be a boolean", http.StatusBadRequest)
				return
			}
		}

		txs, ok := decodeBatch(w, r, nil, maxBatch)
		if !ok {
			return
		}

		id, err := starter.StartClassifyBatch(r.Context(), temporal.ClassifyBatchInput{
			Transactions: txs,
			Viewer:       viewer,
			Publish:      publish,
		})
		if err != nil {
			logger.ErrorContext(r.Context(), "failed to start classify workflow",
				"count", len(txs),
				"error", err,
			)
			writeError(w, "failed to start classify job", http.StatusInternalServerError)
			return
		}

		logger.InfoContext(r.Context(), "classify job started",
			"workflow_id", id,
			"count", len(txs),
			"publish", publish,
		)

		writeJSON(w, ClassifyJobResponse{WorkflowID: id, Count: len(txs)}, http.StatusAccepted)
	})
}

// handleGetClassifyJob reports the status of a classify workflow.
func handleGetClassifyJob(starter temporal.Starter, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("workflow_id")
		if id == "" {
			writeError(w, "workflow_id is required", http.StatusBadRequest)
			return
		}

		status, err := starter.GetClassifyBatch(r.Context(), id)
		if err != nil {
			logger.WarnContext(r.Context(), "classify job lookup failed",
				"workflow_id", id,
				"error", err,
			)
			writeError(w, "classify job not found", http.StatusNotFound)
			return
		}

		writeJSON(w, status, http.StatusOK)
	})
}

// decodeBatch reads a JSON array of enriched transactions and enforces the
// batch bounds. It writes the error response itself and reports false on failure.
func decodeBatch(w http.ResponseWriter, r *http.Request, c *classifier.Classifier, maxBatch int) ([]helius.EnrichedTransaction, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize*int64(maxBatch))

	var txs []helius.EnrichedTransaction
	if err := json.NewDecoder(r.Body).Decode(&txs); err != nil {
		if c != nil {
			c.RecordDecodeError("http")
		}
		writeBodyError(w, err, "invalid request body: expected an array of enriched transactions")
		return nil, false
	}

	if len(txs) == 0 {
		writeError(w, "at least one transaction is required", http.StatusBadRequest)
		return nil, false
	}
	if len(txs) > maxBatch {
		writeError(w, fmt.Sprintf("too many transactions: maximum batch size is %d", maxBatch), http.StatusBadRequest)
		return nil, false
	}

	return txs, true
}

// publishBestEffort forwards classified transactions to the configured sink.
// Failures are logged and never fail the request.
func publishBestEffort(ctx context.Context, publisher natspkg.Publisher, txs []proton.Transaction, viewer string, logger *slog.Logger) {
	if publisher == nil || len(txs) == 0 {
		return
	}

	events := make([]*natspkg.TransactionEvent, len(txs))
	for i := range txs {
		events[i] = natspkg.FromTransaction(txs[i], viewer)
	}

	published, err := publisher.PublishTransactionBatch(ctx, events)
	if err != nil || published < len(events) {
		logger.WarnContext(ctx, "failed to publish classified transactions",
			"count", len(events),
			"published", published,
			"error", err,
		)
	}
}

func viewerFromQuery(r *http.Request) (string, error) {
	viewer := r.URL.Query().Get("address")
	if viewer == "" {
		return "", nil
	}
	if err := validateAddress(viewer); err != nil {
		return "", err
	}
	return viewer, nil
}

func writeBodyError(w http.ResponseWriter, err error, message string) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, "request body too large", http.StatusRequestEntityTooLarge)
		return
	}
	if errors.Is(err, io.EOF) {
		writeError(w, "request body is empty", http.StatusBadRequest)
		return
	}
	writeError(w, message, http.StatusBadRequest)
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}

// validateAddress validates a wallet address for security and format.
func validateAddress(address string) error {
	if address == "" {
		return errorf("address is required")
	}

	if len(address) > maxAddressLength {
		return errorf("address too long: maximum length is %d characters", maxAddressLength)
	}

	for _, r := range address {
		if r == 0 || unicode.IsControl(r) {
			return errorf("invalid characters in address: control characters not allowed")
		}
	}

	if !validAddressRegex.MatchString(address) {
		return errorf("invalid address format: must contain only valid base58 characters")
	}

	// Must also decode to a 32 byte public key.
	if _, err := solanago.PublicKeyFromBase58(address); err != nil {
		return errorf("invalid address: %v", err)
	}

	return nil
}

func errorf(format string, args ...interface{}) error {
	return &validationError{msg: strings.TrimSpace(fmt.Sprintf(format, args...))}
}

type validationError struct {
	msg string
}

func (e *validationError) Error() string {
	return e.msg
}
