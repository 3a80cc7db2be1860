package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/brojonat/xray/service/helius"
	"github.com/brojonat/xray/service/nats"
	"github.com/brojonat/xray/service/proton"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func event(signature string) *nats.TransactionEvent {
	return nats.FromTransaction(proton.Transaction{
		Type:        helius.TypeTransfer,
		PrimaryUser: "A1ice",
		Signature:   signature,
		Actions:     []proton.Action{{ActionType: proton.ActionSent, From: "A1ice", To: "Bob", Sent: proton.SOL, Amount: 1}},
	}, "A1ice")
}

func TestProducer_PublishTransaction(t *testing.T) {
	sp := mocks.NewSyncProducer(t, nil)
	sp.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		key, err := msg.Key.Encode()
		if err != nil {
			return err
		}
		if string(key) != "sig-1" {
			return errors.New("unexpected key " + string(key))
		}
		value, err := msg.Value.Encode()
		if err != nil {
			return err
		}
		var decoded nats.TransactionEvent
		if err := json.Unmarshal(value, &decoded); err != nil {
			return err
		}
		if decoded.Type != "TRANSFER" {
			return errors.New("unexpected type " + decoded.Type)
		}
		return nil
	})

	p := NewProducerFrom(sp, "classified-transactions", testLogger(), nil)
	defer p.Close()

	require.NoError(t, p.PublishTransaction(context.Background(), event("sig-1")))
}

func TestProducer_PublishTransactionError(t *testing.T) {
	sp := mocks.NewSyncProducer(t, nil)
	sp.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	p := NewProducerFrom(sp, "classified-transactions", testLogger(), nil)
	defer p.Close()

	err := p.PublishTransaction(context.Background(), event("sig-1"))
	require.Error(t, err)
	assert.ErrorIs(t, err, sarama.ErrOutOfBrokers)
}

func TestProducer_PublishTransactionBatchSkipsFailures(t *testing.T) {
	sp := mocks.NewSyncProducer(t, nil)
	sp.ExpectSendMessageAndSucceed()
	sp.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)
	sp.ExpectSendMessageAndSucceed()

	p := NewProducerFrom(sp, "classified-transactions", testLogger(), nil)
	defer p.Close()

	published, err := p.PublishTransactionBatch(context.Background(), []*nats.TransactionEvent{
		event("sig-1"), event("sig-2"), event("sig-3"),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, published)
}

func TestProducer_PublishTransactionBatchAllFailed(t *testing.T) {
	sp := mocks.NewSyncProducer(t, nil)
	sp.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)
	sp.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	p := NewProducerFrom(sp, "classified-transactions", testLogger(), nil)
	defer p.Close()

	published, err := p.PublishTransactionBatch(context.Background(), []*nats.TransactionEvent{
		event("sig-1"), event("sig-2"),
	})
	require.NoError(t, err)
	assert.Zero(t, published)
}

func TestProducer_CancelledContext(t *testing.T) {
	sp := mocks.NewSyncProducer(t, nil)

	p := NewProducerFrom(sp, "classified-transactions", testLogger(), nil)
	defer p.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, p.PublishTransaction(ctx, event("sig-1")), context.Canceled)
	published, err := p.PublishTransactionBatch(ctx, []*nats.TransactionEvent{event("sig-1")})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, published)
}

func TestNewProducer_Validation(t *testing.T) {
	_, err := NewProducer(nil, "topic", testLogger(), nil)
	assert.EqualError(t, err, "no brokers")

	_, err = NewProducer([]string{"localhost:9092"}, "", testLogger(), nil)
	assert.EqualError(t, err, "topic empty")
}
