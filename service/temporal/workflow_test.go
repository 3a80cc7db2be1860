package temporal

import (
	"errors"
	"testing"
	"time"

	"github.com/brojonat/xray/service/classifier"
	"github.com/brojonat/xray/service/helius"
	"github.com/brojonat/xray/service/proton"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/testsuite"
)

func batchInput(publish bool) ClassifyBatchInput {
	return ClassifyBatchInput{
		Transactions: []helius.EnrichedTransaction{
			{Type: helius.TypeTransfer, Signature: "sig1"},
			{Type: helius.TypeSwap, Signature: "sig2"},
		},
		Viewer:  "A1ice",
		Publish: publish,
	}
}

func classifiedResult() *ClassifyTransactionsResult {
	return &ClassifyTransactionsResult{
		Transactions: []proton.Transaction{
			{Type: helius.TypeTransfer, Signature: "sig1", Actions: []proton.Action{{ActionType: proton.ActionSent}}},
			{Type: helius.TypeSwap, Signature: "sig2", Actions: []proton.Action{}},
		},
		Summary: classifier.Summary{
			Count:   2,
			Unknown: 1,
			ByType:  map[string]int{"TRANSFER": 1, "SWAP": 1},
		},
	}
}

func TestClassifyBatchWorkflow(t *testing.T) {
	tests := []struct {
		name           string
		input          ClassifyBatchInput
		mockActivities func(classifyMock, publishMock *testsuite.MockCallWrapper)
		expectedError  bool
		validateResult func(*testing.T, *ClassifyBatchResult)
	}{
		{
			name:  "classify without publishing",
			input: batchInput(false),
			mockActivities: func(classifyMock, publishMock *testsuite.MockCallWrapper) {
				classifyMock.Return(classifiedResult(), nil)
				publishMock.Never()
			},
			validateResult: func(t *testing.T, result *ClassifyBatchResult) {
				assert.Equal(t, 2, result.Count)
				assert.Equal(t, 1, result.Unknown)
				assert.Equal(t, map[string]int{"TRANSFER": 1, "SWAP": 1}, result.ByType)
				assert.Zero(t, result.Published)
				assert.Len(t, result.Transactions, 2)
				assert.Nil(t, result.Error)
			},
		},
		{
			name:  "classify and publish",
			input: batchInput(true),
			mockActivities: func(classifyMock, publishMock *testsuite.MockCallWrapper) {
				classifyMock.Return(classifiedResult(), nil)
				publishMock.Return(&PublishTransactionsResult{Published: 2}, nil)
			},
			validateResult: func(t *testing.T, result *ClassifyBatchResult) {
				assert.Equal(t, 2, result.Published)
				assert.Nil(t, result.Error)
			},
		},
		{
			name:  "partially published batch",
			input: batchInput(true),
			mockActivities: func(classifyMock, publishMock *testsuite.MockCallWrapper) {
				classifyMock.Return(classifiedResult(), nil)
				publishMock.Return(&PublishTransactionsResult{Published: 1, Failed: 1}, nil)
			},
			validateResult: func(t *testing.T, result *ClassifyBatchResult) {
				assert.Equal(t, 1, result.Published)
				assert.Equal(t, 1, result.PublishFailed)
			},
		},
		{
			name:  "publish failure is reported but not fatal",
			input: batchInput(true),
			mockActivities: func(classifyMock, publishMock *testsuite.MockCallWrapper) {
				classifyMock.Return(classifiedResult(), nil)
				publishMock.Return(nil, errors.New("nats unavailable"))
			},
			validateResult: func(t *testing.T, result *ClassifyBatchResult) {
				assert.Equal(t, 2, result.Count)
				assert.Zero(t, result.Published)
				require.NotNil(t, result.Error)
				assert.Contains(t, *result.Error, "failed to publish transactions")
			},
		},
		{
			name:  "classify fails",
			input: batchInput(true),
			mockActivities: func(classifyMock, publishMock *testsuite.MockCallWrapper) {
				classifyMock.Return(nil, errors.New("context deadline exceeded"))
				publishMock.Never()
			},
			expectedError: true,
		},
		{
			name:  "empty batch skips activities",
			input: ClassifyBatchInput{},
			mockActivities: func(classifyMock, publishMock *testsuite.MockCallWrapper) {
				classifyMock.Never()
				publishMock.Never()
			},
			validateResult: func(t *testing.T, result *ClassifyBatchResult) {
				assert.Zero(t, result.Count)
				assert.NotNil(t, result.ByType)
				assert.NotNil(t, result.Transactions)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			testSuite := &testsuite.WorkflowTestSuite{}
			env := testSuite.NewTestWorkflowEnvironment()

			activities := &Activities{}
			env.RegisterActivity(activities.ClassifyTransactions)
			env.RegisterActivity(activities.PublishTransactions)

			classifyMock := env.OnActivity(activities.ClassifyTransactions, mock.Anything, mock.Anything)
			publishMock := env.OnActivity(activities.PublishTransactions, mock.Anything, mock.Anything)
			tt.mockActivities(classifyMock, publishMock)

			env.ExecuteWorkflow(ClassifyBatchWorkflow, tt.input)

			require.True(t, env.IsWorkflowCompleted())

			if tt.expectedError {
				assert.Error(t, env.GetWorkflowError())
				return
			}

			require.NoError(t, env.GetWorkflowError())
			var result ClassifyBatchResult
			require.NoError(t, env.GetWorkflowResult(&result))
			tt.validateResult(t, &result)
		})
	}
}

func TestClassifyBatchWorkflow_ActivityRetries(t *testing.T) {
	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestWorkflowEnvironment()

	activities := &Activities{}
	env.RegisterActivity(activities.ClassifyTransactions)
	env.RegisterActivity(activities.PublishTransactions)

	callCount := 0
	env.OnActivity(activities.ClassifyTransactions, mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		callCount++
		if callCount < 3 {
			panic("transient error") // Temporal retries on panics
		}
	}).Return(classifiedResult(), nil)

	env.ExecuteWorkflow(ClassifyBatchWorkflow, batchInput(false))

	assert.NoError(t, env.GetWorkflowError())
	assert.Equal(t, 3, callCount)
}

func TestClassifyBatchWorkflow_RealActivities(t *testing.T) {
	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestWorkflowEnvironment()

	activities := NewActivities(nil, nil, nil, testLogger())
	env.RegisterActivity(activities.ClassifyTransactions)
	env.RegisterActivity(activities.PublishTransactions)

	input := ClassifyBatchInput{
		Transactions: []helius.EnrichedTransaction{
			{
				Type:      helius.TypeTransfer,
				FeePayer:  "A1ice",
				Signature: "sig1",
				NativeTransfers: []helius.NativeTransfer{
					{FromUserAccount: "A1ice", ToUserAccount: "Bob", Amount: 500_000_000},
				},
			},
			{Type: "STAKE_SOL", Signature: "sig2"},
		},
		Viewer:  "Bob",
		Publish: true,
	}

	start := env.Now()
	env.ExecuteWorkflow(ClassifyBatchWorkflow, input)

	require.NoError(t, env.GetWorkflowError())
	var result ClassifyBatchResult
	require.NoError(t, env.GetWorkflowResult(&result))

	assert.Equal(t, 2, result.Count)
	assert.Equal(t, 1, result.Unknown)
	assert.Zero(t, result.Published)
	require.Len(t, result.Transactions, 2)
	assert.Equal(t, proton.ActionReceived, result.Transactions[0].Actions[0].ActionType)
	assert.Equal(t, 0.5, result.Transactions[0].Actions[0].Amount)
	assert.Less(t, env.Now().Sub(start), 60*time.Second)
}
