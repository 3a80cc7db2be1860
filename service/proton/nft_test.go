package proton

import (
	"testing"

	"github.com/brojonat/xray/service/helius"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	buyer  = "BuyerWa11et1111111111111111111111111111111"
	seller = "Se11erWa11et111111111111111111111111111111"
	mint   = "NftMint111111111111111111111111111111111111"
	other  = "0therWa11et11111111111111111111111111111111"
)

func nftTransaction(txType helius.TransactionType, amount helius.Int) *helius.EnrichedTransaction {
	return &helius.EnrichedTransaction{
		Type:      txType,
		Source:    helius.SourceMagicEden,
		Fee:       5000,
		FeePayer:  buyer,
		Signature: "tx-sig",
		Timestamp: 1700000000,
		AccountData: []helius.AccountData{
			{Account: buyer, NativeBalanceChange: -2000005000},
			{Account: seller, NativeBalanceChange: 2000000000},
		},
		Events: helius.Events{
			NFT: &helius.NFTEvent{
				Type:      txType,
				Source:    helius.SourceMagicEden,
				Amount:    amount,
				Signature: "event-sig",
				Timestamp: 1700000001,
				Buyer:     buyer,
				Seller:    seller,
				NFTs:      []helius.NFT{{Mint: mint}},
			},
		},
	}
}

// TestParseNFTSale_ViewedByBuyer checks the buyer sees SOL go out, then the NFT come in.
func TestParseNFTSale_ViewedByBuyer(t *testing.T) {
	tx := nftTransaction(helius.TypeNFTSale, 2_000_000_000)

	got := ParseNFTSale(tx, buyer)

	require.Len(t, got.Actions, 2)
	assert.Equal(t, Action{ActionType: ActionSent, From: buyer, To: seller, Sent: SOL, Amount: 2.0}, got.Actions[0])
	assert.Equal(t, Action{ActionType: ActionReceived, From: seller, To: buyer, Received: mint, Amount: 1}, got.Actions[1])
	assert.Equal(t, buyer, got.PrimaryUser)
	assert.Equal(t, TypeNFTBuy, got.Type)
}

// TestParseNFTSale_ViewedBySeller checks the mirrored pair for the seller.
func TestParseNFTSale_ViewedBySeller(t *testing.T) {
	tx := nftTransaction(helius.TypeNFTSale, 2_000_000_000)

	got := ParseNFTSale(tx, seller)

	require.Len(t, got.Actions, 2)
	assert.Equal(t, Action{ActionType: ActionSent, From: seller, To: buyer, Sent: mint, Amount: 1}, got.Actions[0])
	assert.Equal(t, Action{ActionType: ActionReceived, From: buyer, To: seller, Received: SOL, Amount: 2.0}, got.Actions[1])
	assert.Equal(t, seller, got.PrimaryUser)
	assert.Equal(t, TypeNFTSell, got.Type)
}

func TestParseNFTSale_Neutral(t *testing.T) {
	tests := []struct {
		name     string
		viewer   string
		wantType helius.TransactionType
	}{
		{name: "no viewer", viewer: "", wantType: helius.TypeNFTSale},
		{name: "uninvolved viewer", viewer: other, wantType: helius.TypeNFTSale},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := nftTransaction(helius.TypeNFTSale, 2_000_000_000)

			got := ParseNFTSale(tx, tt.viewer)

			require.Len(t, got.Actions, 2)
			assert.Equal(t, Action{ActionType: ActionTransfer, From: buyer, To: seller, Sent: SOL, Amount: 2.0}, got.Actions[0])
			assert.Equal(t, Action{ActionType: ActionTransfer, From: seller, To: buyer, Received: mint, Amount: 1}, got.Actions[1])
			assert.Equal(t, seller, got.PrimaryUser)
			assert.Equal(t, tt.wantType, got.Type)
		})
	}
}

func TestParseNFTSale_UsesEventMetadata(t *testing.T) {
	tx := nftTransaction(helius.TypeNFTSale, 1_500_000_000)

	got := ParseNFTSale(tx, "")

	assert.Equal(t, "event-sig", got.Signature)
	assert.Equal(t, int64(1700000001000), got.Timestamp)
	assert.Equal(t, 0.000005, got.Fee)
	assert.Equal(t, helius.SourceMagicEden, got.Source)
	require.Len(t, got.Accounts, 2)
	assert.Equal(t, buyer, got.Accounts[0].Address)
}

func TestParseNFTSale_DoesNotMutateInput(t *testing.T) {
	tx := nftTransaction(helius.TypeNFTSale, 1_000_000_000)

	ParseNFTSale(tx, buyer)

	assert.Equal(t, helius.TypeNFTSale, tx.Type)
}

func TestParseNFTSale_EmptyNFTList(t *testing.T) {
	tx := nftTransaction(helius.TypeNFTSale, 1_000_000_000)
	tx.Events.NFT.NFTs = nil

	got := ParseNFTSale(tx, buyer)

	require.Len(t, got.Actions, 2)
	assert.Empty(t, got.Actions[1].Received)
}

func TestNFTParsers_MissingEventFallsBack(t *testing.T) {
	parsers := map[helius.TransactionType]Parser{
		helius.TypeNFTSale:          ParseNFTSale,
		helius.TypeNFTListing:       ParseNFTListing,
		helius.TypeNFTCancelListing: ParseNFTCancelListing,
		helius.TypeNFTBid:           ParseNFTBid,
		helius.TypeNFTBidCancelled:  ParseNFTCancelBid,
		helius.TypeNFTGlobalBid:     ParseNFTGlobalBid,
		helius.TypeNFTMint:          ParseNFTMint,
	}

	for txType, parse := range parsers {
		t.Run(string(txType), func(t *testing.T) {
			tx := nftTransaction(txType, 1_000_000_000)
			tx.Events.NFT = nil

			got := parse(tx, buyer)

			assert.Empty(t, got.Actions)
			assert.NotNil(t, got.Actions)
			assert.Equal(t, txType, got.Type)
			assert.Equal(t, 0.000005, got.Fee)
			assert.Equal(t, int64(1700000000000), got.Timestamp)
		})
	}
}

func TestParseNFTListing(t *testing.T) {
	for _, viewer := range []string{"", seller, other} {
		tx := nftTransaction(helius.TypeNFTListing, 3_000_000_000)

		got := ParseNFTListing(tx, viewer)

		require.Len(t, got.Actions, 1)
		assert.Equal(t, Action{ActionType: ActionNFTListing, From: seller, To: "", Sent: mint, Amount: 3.0}, got.Actions[0])
		assert.Equal(t, seller, got.PrimaryUser)
		assert.Equal(t, helius.TypeNFTListing, got.Type)
	}
}

func TestParseNFTCancelListing(t *testing.T) {
	tx := nftTransaction(helius.TypeNFTCancelListing, 3_000_000_000)

	got := ParseNFTCancelListing(tx, "")

	require.Len(t, got.Actions, 1)
	assert.Equal(t, ActionNFTCancelListing, got.Actions[0].ActionType)
	assert.Equal(t, seller, got.Actions[0].From)
	assert.Equal(t, mint, got.Actions[0].Sent)
	assert.Equal(t, seller, got.PrimaryUser)
}

func TestParseNFTBid(t *testing.T) {
	tests := []struct {
		name       string
		parse      Parser
		txType     helius.TransactionType
		wantAction ActionType
		buyer      string
		viewer     string
	}{
		{name: "bid", parse: ParseNFTBid, txType: helius.TypeNFTBid, wantAction: ActionNFTBid, buyer: buyer},
		{name: "cancelled bid", parse: ParseNFTCancelBid, txType: helius.TypeNFTBidCancelled, wantAction: ActionNFTBidCancelled, buyer: buyer},
		{name: "bid without buyer", parse: ParseNFTBid, txType: helius.TypeNFTBid, wantAction: ActionNFTBid, buyer: ""},
		{name: "bid viewed by bidder", parse: ParseNFTBid, txType: helius.TypeNFTBid, wantAction: ActionNFTBid, buyer: buyer, viewer: buyer},
		{name: "cancelled bid viewed by bidder", parse: ParseNFTCancelBid, txType: helius.TypeNFTBidCancelled, wantAction: ActionNFTBidCancelled, buyer: buyer, viewer: buyer},
		{name: "bid viewed by outsider", parse: ParseNFTBid, txType: helius.TypeNFTBid, wantAction: ActionNFTBid, buyer: buyer, viewer: other},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := nftTransaction(tt.txType, 500_000_000)
			tx.Events.NFT.Buyer = tt.buyer

			got := tt.parse(tx, tt.viewer)

			require.Len(t, got.Actions, 1)
			assert.Equal(t, Action{ActionType: tt.wantAction, From: "", To: tt.buyer, Sent: mint, Amount: 0.5}, got.Actions[0])
			assert.Equal(t, seller, got.PrimaryUser)
		})
	}
}

func TestParseNFTGlobalBid(t *testing.T) {
	tx := nftTransaction(helius.TypeNFTGlobalBid, 250_000_000)

	got := ParseNFTGlobalBid(tx, other)

	require.Len(t, got.Actions, 1)
	assert.Equal(t, Action{ActionType: ActionNFTGlobalBid, From: buyer, To: "", Sent: SOL, Amount: 0.25}, got.Actions[0])
	assert.Equal(t, buyer, got.PrimaryUser)
}

func TestParseNFTMint(t *testing.T) {
	tests := []struct {
		name        string
		viewer      string
		source      helius.Source
		wantActions []Action
	}{
		{
			name:   "no viewer",
			viewer: "",
			source: helius.SourceMagicEden,
			wantActions: []Action{
				{ActionType: ActionTransfer, From: buyer, To: "", Sent: SOL, Amount: 1.0},
				{ActionType: ActionTransfer, From: "", To: buyer, Received: mint, Amount: 1},
			},
		},
		{
			name:   "viewer is minter",
			viewer: buyer,
			source: helius.SourceMagicEden,
			wantActions: []Action{
				{ActionType: ActionSent, From: buyer, To: "", Sent: SOL, Amount: 1.0},
				{ActionType: ActionReceived, From: "", To: buyer, Received: mint, Amount: 1},
			},
		},
		{
			name:   "other viewer sees an airdrop",
			viewer: other,
			source: helius.SourceMagicEden,
			wantActions: []Action{
				{ActionType: ActionAirdrop, From: "", To: buyer, Received: mint, Amount: 1},
			},
		},
		{
			name:   "token program mint sums native transfers",
			viewer: buyer,
			source: helius.SourceSolanaProgramLibrary,
			wantActions: []Action{
				{ActionType: ActionSent, From: buyer, To: "", Sent: SOL, Amount: 1.5},
				{ActionType: ActionReceived, From: "", To: buyer, Received: mint, Amount: 1},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := nftTransaction(helius.TypeNFTMint, 1_000_000_000)
			tx.Source = tt.source
			tx.NativeTransfers = []helius.NativeTransfer{
				{FromUserAccount: buyer, ToUserAccount: "Creator1", Amount: 1_000_000_000},
				{FromUserAccount: buyer, ToUserAccount: "Creator2", Amount: 500_000_000},
			}

			got := ParseNFTMint(tx, tt.viewer)

			assert.Equal(t, tt.wantActions, got.Actions)
			assert.Equal(t, buyer, got.PrimaryUser)
		})
	}
}

func TestParseNFTMint_MissingNativeTransfers(t *testing.T) {
	tx := nftTransaction(helius.TypeNFTMint, 1_000_000_000)
	tx.NativeTransfers = nil

	got := ParseNFTMint(tx, buyer)

	assert.True(t, got.IsUnknown())
	assert.Equal(t, helius.TypeNFTMint, got.Type)
}
