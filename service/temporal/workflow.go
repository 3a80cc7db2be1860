package temporal

import (
	"fmt"
	"time"

	"github.com/brojonat/xray/service/helius"
	"github.com/brojonat/xray/service/proton"
	temporalsdk "go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

var a *Activities // for type-safe activity invocation

// ClassifyBatchWorkflowName is the registered name of ClassifyBatchWorkflow.
const ClassifyBatchWorkflowName = "ClassifyBatchWorkflow"

// ClassifyBatchInput contains the input parameters for classifying a batch.
type ClassifyBatchInput struct {
	Transactions []helius.EnrichedTransaction `json:"transactions"`
	Viewer       string                       `json:"viewer,omitempty"`
	Publish      bool                         `json:"publish"`
}

// ClassifyBatchResult summarizes a classified batch.
type ClassifyBatchResult struct {
	Count         int                  `json:"count"`
	Unknown       int                  `json:"unknown"`
	ByType        map[string]int       `json:"by_type"`
	Published     int                  `json:"published"`
	PublishFailed int                  `json:"publish_failed"`
	Transactions  []proton.Transaction `json:"transactions"`
	Error         *string              `json:"error,omitempty"`
}

// ClassifyBatchWorkflow classifies a batch of enriched transactions and,
// when asked, publishes the results.
//
// The workflow performs these steps:
// 1. Classify every transaction (ClassifyTransactions activity)
// 2. Publish the classified transactions (PublishTransactions activity, optional)
//
// A publish failure is recorded on the result but does not fail the workflow.
func ClassifyBatchWorkflow(ctx workflow.Context, input ClassifyBatchInput) (*ClassifyBatchResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("ClassifyBatchWorkflow started",
		"count", len(input.Transactions),
		"viewer", input.Viewer,
		"publish", input.Publish,
	)

	result := &ClassifyBatchResult{
		ByType:       map[string]int{},
		Transactions: []proton.Transaction{},
	}

	if len(input.Transactions) == 0 {
		logger.Info("no transactions to classify")
		return result, nil
	}

	activityOptions := workflow.ActivityOptions{
		StartToCloseTimeout: 60 * time.Second,
		RetryPolicy: &temporalsdk.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    30 * time.Second,
			MaximumAttempts:    3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, activityOptions)

	// Step 1: Classify
	var classified *ClassifyTransactionsResult
	err := workflow.ExecuteActivity(ctx, a.ClassifyTransactions, ClassifyTransactionsInput{
		Transactions: input.Transactions,
		Viewer:       input.Viewer,
	}).Get(ctx, &classified)
	if err != nil {
		errMsg := fmt.Sprintf("failed to classify transactions: %v", err)
		result.Error = &errMsg
		return result, fmt.Errorf("failed to classify transactions: %w", err)
	}

	result.Count = classified.Summary.Count
	result.Unknown = classified.Summary.Unknown
	if classified.Summary.ByType != nil {
		result.ByType = classified.Summary.ByType
	}
	result.Transactions = classified.Transactions

	logger.Info("classified transactions",
		"count", result.Count,
		"unknown", result.Unknown,
	)

	if !input.Publish {
		return result, nil
	}

	// Step 2: Publish
	var published *PublishTransactionsResult
	err = workflow.ExecuteActivity(ctx, a.PublishTransactions, PublishTransactionsInput{
		Transactions: classified.Transactions,
		Viewer:       input.Viewer,
	}).Get(ctx, &published)
	if err != nil {
		logger.Warn("failed to publish transactions", "error", err)
		errMsg := fmt.Sprintf("failed to publish transactions: %v", err)
		result.Error = &errMsg
		return result, nil
	}
	result.Published = published.Published
	result.PublishFailed = published.Failed

	logger.Info("ClassifyBatchWorkflow completed successfully",
		"count", result.Count,
		"published", result.Published,
		"publish_failed", result.PublishFailed,
	)

	return result, nil
}
