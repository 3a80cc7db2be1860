package temporal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/brojonat/xray/service/metrics"
	"github.com/google/uuid"
	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/client"
)

// Job statuses reported by GetClassifyBatch.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// ClassifyBatchStatus is the state of a classify batch workflow.
type ClassifyBatchStatus struct {
	WorkflowID string               `json:"workflow_id"`
	Status     string               `json:"status"`
	Result     *ClassifyBatchResult `json:"result,omitempty"`
	Error      string               `json:"error,omitempty"`
}

// Starter starts and inspects classify batch workflows. The HTTP server
// depends on this rather than on Client so handlers can be tested without
// a Temporal cluster.
type Starter interface {
	StartClassifyBatch(ctx context.Context, input ClassifyBatchInput) (string, error)
	GetClassifyBatch(ctx context.Context, workflowID string) (*ClassifyBatchStatus, error)
}

// Client is the production implementation of Starter that talks to Temporal.
type Client struct {
	client    client.Client
	taskQueue string
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

var _ Starter = (*Client)(nil)

// NewClient creates a new Temporal client. m may be nil.
func NewClient(host, namespace, taskQueue string, m *metrics.Metrics, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("connecting to temporal",
		"host", host,
		"namespace", namespace,
		"task_queue", taskQueue,
	)

	c, err := client.Dial(client.Options{
		HostPort:  host,
		Namespace: namespace,
		Logger:    newTemporalLogger(logger),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Temporal: %w", err)
	}

	logger.Info("connected to temporal successfully")

	return NewClientFrom(c, taskQueue, m, logger), nil
}

// NewClientFrom wraps an existing SDK client.
func NewClientFrom(c client.Client, taskQueue string, m *metrics.Metrics, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		client:    c,
		taskQueue: taskQueue,
		metrics:   m,
		logger:    logger,
	}
}

// StartClassifyBatch starts a ClassifyBatchWorkflow and returns its workflow ID
// without waiting for it to finish.
func (c *Client) StartClassifyBatch(ctx context.Context, input ClassifyBatchInput) (string, error) {
	id := workflowID()

	run, err := c.client.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        id,
		TaskQueue: c.taskQueue,
		Memo: map[string]interface{}{
			"count":      len(input.Transactions),
			"viewer":     input.Viewer,
			"created_by": "xray",
		},
	}, ClassifyBatchWorkflowName, input)
	if err != nil {
		c.logger.ErrorContext(ctx, "failed to start classify workflow",
			"workflow_id", id,
			"error", err,
		)
		return "", fmt.Errorf("failed to start workflow %q: %w", id, err)
	}

	c.logger.InfoContext(ctx, "classify workflow started",
		"workflow_id", run.GetID(),
		"run_id", run.GetRunID(),
		"count", len(input.Transactions),
	)

	return run.GetID(), nil
}

// ClassifyBatch starts a ClassifyBatchWorkflow and waits for its result.
func (c *Client) ClassifyBatch(ctx context.Context, input ClassifyBatchInput) (*ClassifyBatchResult, error) {
	start := time.Now()

	id, err := c.StartClassifyBatch(ctx, input)
	if err != nil {
		return nil, err
	}

	var result ClassifyBatchResult
	err = c.client.GetWorkflow(ctx, id, "").Get(ctx, &result)
	if c.metrics != nil {
		status := StatusCompleted
		if err != nil {
			status = StatusFailed
		}
		c.metrics.RecordWorkflowDuration(status, time.Since(start).Seconds())
	}
	if err != nil {
		return nil, fmt.Errorf("workflow %q failed: %w", id, err)
	}

	return &result, nil
}

// GetClassifyBatch reports the status of a workflow started by
// StartClassifyBatch, with its result once completed.
func (c *Client) GetClassifyBatch(ctx context.Context, workflowID string) (*ClassifyBatchStatus, error) {
	desc, err := c.client.DescribeWorkflowExecution(ctx, workflowID, "")
	if err != nil {
		return nil, fmt.Errorf("failed to describe workflow %q: %w", workflowID, err)
	}

	status := &ClassifyBatchStatus{WorkflowID: workflowID}

	switch desc.GetWorkflowExecutionInfo().GetStatus() {
	case enumspb.WORKFLOW_EXECUTION_STATUS_RUNNING:
		status.Status = StatusRunning
		return status, nil
	case enumspb.WORKFLOW_EXECUTION_STATUS_COMPLETED:
		var result ClassifyBatchResult
		if err := c.client.GetWorkflow(ctx, workflowID, "").Get(ctx, &result); err != nil {
			return nil, fmt.Errorf("failed to get workflow result %q: %w", workflowID, err)
		}
		status.Status = StatusCompleted
		status.Result = &result
		return status, nil
	default:
		status.Status = StatusFailed
		err := c.client.GetWorkflow(ctx, workflowID, "").Get(ctx, nil)
		if err == nil {
			err = errors.New(desc.GetWorkflowExecutionInfo().GetStatus().String())
		}
		status.Error = err.Error()
		return status, nil
	}
}

// SDKClient returns the underlying Temporal SDK client for direct workflow operations.
func (c *Client) SDKClient() client.Client {
	return c.client
}

// TaskQueue returns the configured task queue for this client.
func (c *Client) TaskQueue() string {
	return c.taskQueue
}

// Close closes the Temporal client connection.
func (c *Client) Close() {
	c.logger.Info("closing temporal client")
	c.client.Close()
}

func workflowID() string {
	return "classify-batch-" + uuid.NewString()
}

// temporalLogger adapts slog.Logger to Temporal's logger interface.
type temporalLogger struct {
	logger *slog.Logger
}

func newTemporalLogger(logger *slog.Logger) *temporalLogger {
	return &temporalLogger{logger: logger}
}

func (l *temporalLogger) Debug(msg string, keyvals ...interface{}) {
	l.logger.Debug(msg, keyvals...)
}

func (l *temporalLogger) Info(msg string, keyvals ...interface{}) {
	l.logger.Info(msg, keyvals...)
}

func (l *temporalLogger) Warn(msg string, keyvals ...interface{}) {
	l.logger.Warn(msg, keyvals...)
}

func (l *temporalLogger) Error(msg string, keyvals ...interface{}) {
	l.logger.Error(msg, keyvals...)
}
