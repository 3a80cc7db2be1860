package temporal

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/brojonat/xray/service/helius"
	"github.com/brojonat/xray/service/kafka"
	"github.com/brojonat/xray/service/metrics"
	natspkg "github.com/brojonat/xray/service/nats"
	"github.com/brojonat/xray/service/proton"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// MockPublisher records publish calls through testify/mock.
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishTransaction(ctx context.Context, event *natspkg.TransactionEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockPublisher) PublishTransactionBatch(ctx context.Context, events []*natspkg.TransactionEvent) (int, error) {
	args := m.Called(ctx, events)
	return args.Int(0), args.Error(1)
}

func TestActivities_ClassifyTransactions(t *testing.T) {
	activities := NewActivities(nil, nil, metrics.NewMetrics(prometheus.NewRegistry()), testLogger())

	result, err := activities.ClassifyTransactions(context.Background(), ClassifyTransactionsInput{
		Transactions: []helius.EnrichedTransaction{
			{
				Type:      helius.TypeTransfer,
				FeePayer:  "A1ice",
				Signature: "sig1",
				NativeTransfers: []helius.NativeTransfer{
					{FromUserAccount: "A1ice", ToUserAccount: "Bob", Amount: 1_000_000_000},
				},
			},
			{Type: helius.TypeUnknown, Signature: "sig2"},
		},
		Viewer: "A1ice",
	})
	require.NoError(t, err)

	require.Len(t, result.Transactions, 2)
	assert.Equal(t, "sig1", result.Transactions[0].Signature)
	assert.Equal(t, proton.ActionSent, result.Transactions[0].Actions[0].ActionType)
	assert.Equal(t, 2, result.Summary.Count)
	assert.Equal(t, 1, result.Summary.Unknown)
}

func TestActivities_ClassifyTransactions_Cancelled(t *testing.T) {
	activities := NewActivities(nil, nil, nil, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := activities.ClassifyTransactions(ctx, ClassifyTransactionsInput{
		Transactions: []helius.EnrichedTransaction{{Type: helius.TypeSwap}},
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestActivities_PublishTransactions(t *testing.T) {
	txs := []proton.Transaction{
		{Type: helius.TypeTransfer, Signature: "sig1", PrimaryUser: "A1ice"},
		{Type: helius.TypeSwap, Signature: "sig2", PrimaryUser: "Bob"},
	}

	t.Run("publishes a batch", func(t *testing.T) {
		publisher := new(MockPublisher)
		publisher.On("PublishTransactionBatch", mock.Anything, mock.MatchedBy(func(events []*natspkg.TransactionEvent) bool {
			return len(events) == 2 &&
				events[0].Subject() == "classified.A1ice" &&
				events[1].Viewer == "Bob"
		})).Return(2, nil)

		activities := NewActivities(nil, publisher, nil, testLogger())
		result, err := activities.PublishTransactions(context.Background(), PublishTransactionsInput{Transactions: txs, Viewer: "Bob"})
		require.NoError(t, err)
		assert.Equal(t, 2, result.Published)
		assert.Zero(t, result.Failed)
		publisher.AssertExpectations(t)
	})

	t.Run("reports events the sink skipped", func(t *testing.T) {
		publisher := new(MockPublisher)
		publisher.On("PublishTransactionBatch", mock.Anything, mock.Anything).Return(1, nil)

		activities := NewActivities(nil, publisher, nil, testLogger())
		result, err := activities.PublishTransactions(context.Background(), PublishTransactionsInput{Transactions: txs})
		require.NoError(t, err)
		assert.Equal(t, 1, result.Published)
		assert.Equal(t, 1, result.Failed)
	})

	t.Run("kafka sink that rejects every message", func(t *testing.T) {
		sp := mocks.NewSyncProducer(t, nil)
		sp.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)
		sp.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)
		producer := kafka.NewProducerFrom(sp, "classified-transactions", testLogger(), nil)
		defer producer.Close()

		activities := NewActivities(nil, producer, nil, testLogger())
		result, err := activities.PublishTransactions(context.Background(), PublishTransactionsInput{Transactions: txs})
		require.NoError(t, err)
		assert.Zero(t, result.Published)
		assert.Equal(t, 2, result.Failed)
	})

	t.Run("propagates publisher errors", func(t *testing.T) {
		publisher := new(MockPublisher)
		publisher.On("PublishTransactionBatch", mock.Anything, mock.Anything).Return(0, errors.New("connection closed"))

		activities := NewActivities(nil, publisher, nil, testLogger())
		_, err := activities.PublishTransactions(context.Background(), PublishTransactionsInput{Transactions: txs})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "connection closed")
	})

	t.Run("no publisher", func(t *testing.T) {
		activities := NewActivities(nil, nil, nil, testLogger())
		result, err := activities.PublishTransactions(context.Background(), PublishTransactionsInput{Transactions: txs})
		require.NoError(t, err)
		assert.Zero(t, result.Published)
	})

	t.Run("empty batch", func(t *testing.T) {
		publisher := new(MockPublisher)
		activities := NewActivities(nil, publisher, nil, testLogger())
		result, err := activities.PublishTransactions(context.Background(), PublishTransactionsInput{})
		require.NoError(t, err)
		assert.Zero(t, result.Published)
		publisher.AssertNotCalled(t, "PublishTransactionBatch", mock.Anything, mock.Anything)
	})
}

func TestMockStarter(t *testing.T) {
	ctx := context.Background()
	m := NewMockStarter()

	id, err := m.StartClassifyBatch(ctx, batchInput(true))
	require.NoError(t, err)
	assert.Contains(t, id, "classify-batch-")

	status, err := m.GetClassifyBatch(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, status.Status)

	m.Complete(id, &ClassifyBatchResult{Count: 2})
	status, err = m.GetClassifyBatch(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, status.Status)
	assert.Equal(t, 2, status.Result.Count)

	_, err = m.GetClassifyBatch(ctx, "missing")
	assert.Error(t, err)

	m.SetStartError(errors.New("unavailable"))
	_, err = m.StartClassifyBatch(ctx, batchInput(false))
	assert.Error(t, err)
	assert.Len(t, m.Started(), 1)
}
