package classifier

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/brojonat/xray/service/helius"
	"github.com/brojonat/xray/service/metrics"
	"github.com/brojonat/xray/service/proton"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func transfer(signature string, lamports helius.Int) helius.EnrichedTransaction {
	return helius.EnrichedTransaction{
		Type:      helius.TypeTransfer,
		FeePayer:  "A1ice",
		Signature: signature,
		Timestamp: 1700000000,
		NativeTransfers: []helius.NativeTransfer{
			{FromUserAccount: "A1ice", ToUserAccount: "Bob", Amount: lamports},
		},
	}
}

func TestClassify(t *testing.T) {
	c := New(metrics.NewMetrics(prometheus.NewRegistry()), testLogger(), 2)
	tx := transfer("sig-1", 1_000_000_000)

	got := c.Classify(&tx, "Bob")

	require.Len(t, got.Actions, 1)
	assert.Equal(t, proton.ActionReceived, got.Actions[0].ActionType)
	assert.Equal(t, "Bob", got.PrimaryUser)
}

func TestClassify_NilTransaction(t *testing.T) {
	c := New(nil, nil, 0)

	got := c.Classify(nil, "")

	assert.Equal(t, helius.TypeUnknown, got.Type)
	assert.True(t, got.IsUnknown())
}

func TestClassifyBatch_PreservesOrder(t *testing.T) {
	c := New(nil, testLogger(), 3)

	txs := make([]helius.EnrichedTransaction, 50)
	for i := range txs {
		txs[i] = transfer(fmt.Sprintf("sig-%d", i), helius.Int(i+1)*1_000_000)
	}
	txs[7] = helius.EnrichedTransaction{Type: helius.TypeUnknown, Signature: "sig-7"}

	results, err := c.ClassifyBatch(context.Background(), txs, "A1ice")
	require.NoError(t, err)
	require.Len(t, results, len(txs))

	for i, r := range results {
		assert.Equal(t, fmt.Sprintf("sig-%d", i), r.Parsed.Signature)
		assert.Same(t, &txs[i], r.Raw)
	}
	assert.True(t, results[7].Parsed.IsUnknown())
	assert.Equal(t, 0.001, results[0].Parsed.Actions[0].Amount)
}

func TestClassifyBatch_Empty(t *testing.T) {
	c := New(nil, testLogger(), 1)

	results, err := c.ClassifyBatch(context.Background(), nil, "")
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestClassifyBatch_CancelledContext(t *testing.T) {
	c := New(nil, testLogger(), 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.ClassifyBatch(ctx, []helius.EnrichedTransaction{transfer("sig-1", 1)}, "")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClassifyJSON(t *testing.T) {
	c := New(nil, testLogger(), 4)

	results, err := c.ClassifyJSON(context.Background(), []byte(`[{"type":"SWAP","signature":"a"},{"type":"NFT_SALE","signature":"b"}]`), "")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].Parsed.Signature)
	assert.True(t, results[1].Parsed.IsUnknown())

	_, err = c.ClassifyJSON(context.Background(), []byte(`not json`), "")
	assert.Error(t, err)
}

func TestSummarize(t *testing.T) {
	c := New(nil, testLogger(), 1)
	a := transfer("a", 1)
	b := helius.EnrichedTransaction{Type: helius.TypeSwap, Signature: "b"}

	s := Summarize([]proton.Transaction{c.Classify(&a, ""), c.Classify(&b, ""), c.Classify(&a, "")})

	assert.Equal(t, 3, s.Count)
	assert.Equal(t, 1, s.Unknown)
	assert.Equal(t, map[string]int{"TRANSFER": 2, "SWAP": 1}, s.ByType)
}
