package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/brojonat/xray/service/helius"
	"github.com/brojonat/xray/service/proton"
)

// ErrStopStream can be returned from a Stream callback to end the stream
// without an error.
var ErrStopStream = errors.New("stop stream")

// BatchResult pairs a classified transaction with the raw payload it came from.
type BatchResult struct {
	Parsed proton.Transaction `json:"parsed"`
	Raw    json.RawMessage    `json:"raw"`
}

// Job is an asynchronous classify job as reported by the server.
type Job struct {
	WorkflowID string     `json:"workflow_id"`
	Status     string     `json:"status"`
	Result     *JobResult `json:"result,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// JobResult is the outcome of a completed classify job.
type JobResult struct {
	Count         int                  `json:"count"`
	Unknown       int                  `json:"unknown"`
	ByType        map[string]int       `json:"by_type"`
	Published     int                  `json:"published"`
	PublishFailed int                  `json:"publish_failed"`
	Transactions  []proton.Transaction `json:"transactions"`
	Error         *string              `json:"error,omitempty"`
}

// Event is a classified transaction delivered over the SSE stream.
type Event struct {
	Signature   string             `json:"signature"`
	Type        string             `json:"type"`
	Source      string             `json:"source"`
	PrimaryUser string             `json:"primary_user"`
	Viewer      string             `json:"viewer,omitempty"`
	Fee         float64            `json:"fee"`
	ActionCount int                `json:"action_count"`
	Timestamp   time.Time          `json:"timestamp"`
	PublishedAt time.Time          `json:"published_at"`
	Transaction proton.Transaction `json:"transaction"`
}

// Client is the HTTP client for the xray classification service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new classification service client.
func NewClient(baseURL string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
	}
}

// Parse classifies a single enriched transaction. An empty address asks for
// the neutral narration.
func (c *Client) Parse(ctx context.Context, tx *helius.EnrichedTransaction, address string) (*proton.Transaction, error) {
	body, err := json.Marshal(tx)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	return c.ParseRaw(ctx, body, address)
}

// ParseRaw is Parse for a payload that is already JSON encoded.
func (c *Client) ParseRaw(ctx context.Context, body []byte, address string) (*proton.Transaction, error) {
	var parsed proton.Transaction
	if err := c.do(ctx, http.MethodPost, c.endpoint("/api/v1/transactions/parse", address, nil), body, http.StatusOK, &parsed); err != nil {
		return nil, err
	}

	c.logger.Debug("transaction parsed", "signature", parsed.Signature, "type", parsed.Type)
	return &parsed, nil
}

// ParseBatch classifies several transactions in one request. Results keep
// the input order.
func (c *Client) ParseBatch(ctx context.Context, txs []helius.EnrichedTransaction, address string) ([]BatchResult, error) {
	body, err := json.Marshal(txs)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	return c.ParseBatchRaw(ctx, body, address)
}

// ParseBatchRaw is ParseBatch for a JSON array that is already encoded.
func (c *Client) ParseBatchRaw(ctx context.Context, body []byte, address string) ([]BatchResult, error) {
	var response struct {
		Transactions []BatchResult `json:"transactions"`
		Count        int           `json:"count"`
	}
	if err := c.do(ctx, http.MethodPost, c.endpoint("/api/v1/transactions/parse-batch", address, nil), body, http.StatusOK, &response); err != nil {
		return nil, err
	}

	c.logger.Debug("batch parsed", "count", response.Count)
	return response.Transactions, nil
}

// Types lists the transaction types the server has a dedicated parser for.
func (c *Client) Types(ctx context.Context) ([]helius.TransactionType, error) {
	var response struct {
		Types []helius.TransactionType `json:"types"`
	}
	if err := c.do(ctx, http.MethodGet, c.baseURL+"/api/v1/types", nil, http.StatusOK, &response); err != nil {
		return nil, err
	}
	return response.Types, nil
}

// StartClassifyJob submits txs for asynchronous classification and returns
// the workflow ID to poll with GetClassifyJob.
func (c *Client) StartClassifyJob(ctx context.Context, txs []helius.EnrichedTransaction, address string, publish bool) (string, error) {
	body, err := json.Marshal(txs)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	extra := url.Values{}
	if publish {
		extra.Set("publish", strconv.FormatBool(publish))
	}

	var response struct {
		WorkflowID string `json:"workflow_id"`
	}
	if err := c.do(ctx, http.MethodPost, c.endpoint("/api/v1/classify-jobs", address, extra), body, http.StatusAccepted, &response); err != nil {
		return "", err
	}

	c.logger.Debug("classify job started", "workflow_id", response.WorkflowID, "count", len(txs))
	return response.WorkflowID, nil
}

// GetClassifyJob fetches the status of a classify job.
func (c *Client) GetClassifyJob(ctx context.Context, workflowID string) (*Job, error) {
	u := fmt.Sprintf("%s/api/v1/classify-jobs/%s", c.baseURL, url.PathEscape(workflowID))

	var job Job
	if err := c.do(ctx, http.MethodGet, u, nil, http.StatusOK, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// Health reports whether the server answers its health check.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, c.baseURL+"/health", nil, http.StatusOK, nil)
}

// Stream subscribes to classified transactions, optionally narrowed to the
// ones whose primary user is address, and calls fn for each. It runs until ctx
// is done, the server closes the stream, or fn returns an error. Returning
// ErrStopStream ends the stream cleanly.
func (c *Client) Stream(ctx context.Context, address string, fn func(*Event) error) error {
	u := c.baseURL + "/api/v1/stream/transactions"
	if address != "" {
		u += "/" + url.PathEscape(address)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	// The stream outlives the client's request timeout.
	streamClient := *c.httpClient
	streamClient.Timeout = 0

	resp, err := streamClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.parseErrorResponse(resp)
	}

	c.logger.Debug("stream connected", "address", address)

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)

	var eventType string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			eventType = ""
		case strings.HasPrefix(line, ":"):
			// keepalive
		case strings.HasPrefix(line, "event:"):
			eventType = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			if eventType != "" && eventType != "transaction" {
				continue
			}
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))

			var event Event
			if err := json.Unmarshal([]byte(data), &event); err != nil {
				c.logger.Warn("failed to decode stream event", "error", err)
				continue
			}
			if err := fn(&event); err != nil {
				if errors.Is(err, ErrStopStream) {
					return nil
				}
				return err
			}
		}
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("stream read failed: %w", err)
	}
	return nil
}

func (c *Client) endpoint(path, address string, extra url.Values) string {
	q := url.Values{}
	for k, v := range extra {
		q[k] = v
	}
	if address != "" {
		q.Set("address", address)
	}
	if len(q) == 0 {
		return c.baseURL + path
	}
	return c.baseURL + path + "?" + q.Encode()
}

func (c *Client) do(ctx context.Context, method, u string, body []byte, wantStatus int, out interface{}) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		return c.parseErrorResponse(resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// parseErrorResponse attempts to parse an error response from the server.
func (c *Client) parseErrorResponse(resp *http.Response) error {
	var errResp struct {
		Error string `json:"error"`
	}

	body, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error == "" {
		return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(body))
	}

	return fmt.Errorf("request failed: %s", errResp.Error)
}
