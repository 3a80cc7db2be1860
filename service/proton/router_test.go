package proton

import (
	"encoding/json"
	"sort"
	"testing"

	"github.com/brojonat/xray/service/helius"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoute_EveryTagHasAParser(t *testing.T) {
	tags := append(SupportedTypes(),
		helius.TypeUnknown,
		"",
		"STAKE_SOL",
		"SOMETHING_NEW",
	)

	for _, tag := range tags {
		t.Run(string(tag), func(t *testing.T) {
			assert.NotNil(t, Route(tag))
		})
	}
}

func TestRoute_UnsupportedTagsFallBack(t *testing.T) {
	for _, tag := range []helius.TransactionType{helius.TypeUnknown, "", "STAKE_SOL"} {
		tx := nftTransaction(tag, 1_000_000_000)

		got := Parse(tx, buyer)

		assert.True(t, got.IsUnknown())
		assert.Equal(t, buyer, got.PrimaryUser)
		assert.Equal(t, tag, got.Type)
	}
}

func TestParse_DispatchesByType(t *testing.T) {
	got := Parse(nftTransaction(helius.TypeNFTListing, 1_000_000_000), "")

	require.Len(t, got.Actions, 1)
	assert.Equal(t, ActionNFTListing, got.Actions[0].ActionType)
}

func TestParse_NilTransaction(t *testing.T) {
	got := Parse(nil, buyer)

	assert.Equal(t, helius.TypeUnknown, got.Type)
	assert.NotNil(t, got.Actions)
	assert.NotNil(t, got.Accounts)
}

func TestParse_Deterministic(t *testing.T) {
	tx := nftTransaction(helius.TypeNFTSale, 2_000_000_000)

	first, err := json.Marshal(Parse(tx, seller))
	require.NoError(t, err)
	second, err := json.Marshal(Parse(tx, seller))
	require.NoError(t, err)

	assert.JSONEq(t, string(first), string(second))
}

func TestSupportedTypes(t *testing.T) {
	types := SupportedTypes()

	assert.Len(t, types, 13)
	assert.True(t, sort.SliceIsSorted(types, func(i, j int) bool { return types[i] < types[j] }))
	assert.Contains(t, types, helius.TypeCompressedNFTTransfer)
	assert.NotContains(t, types, helius.TypeUnknown)
	assert.True(t, Supported(helius.TypeSwap))
	assert.False(t, Supported(helius.TypeUnknown))
}

func TestParseActionType(t *testing.T) {
	assert.Equal(t, ActionAirdrop, ParseActionType("AIRDROP"))
	assert.Equal(t, ActionOther, ParseActionType("STAKE"))
	assert.True(t, ActionBurn.Valid())
	assert.False(t, ActionType("nope").Valid())
}
