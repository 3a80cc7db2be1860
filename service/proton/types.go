package proton

import (
	"github.com/brojonat/xray/service/helius"
	"github.com/gagliardetto/solana-go"
)

// LamportsPerSOL converts native lamport amounts to SOL.
const LamportsPerSOL = float64(solana.LAMPORTS_PER_SOL)

// SOL is the fungible identifier used for native legs of an action.
var SOL = solana.MustPublicKeyFromBase58("So11111111111111111111111111111111111111112").String()

// Transaction types that only appear on output, when a sale is narrated from
// one side of the trade.
const (
	TypeNFTBuy  helius.TransactionType = "NFT_BUY"
	TypeNFTSell helius.TransactionType = "NFT_SELL"
)

// ActionType tags a single value flow inside a Transaction.
type ActionType string

const (
	ActionSent             ActionType = "SENT"
	ActionReceived         ActionType = "RECEIVED"
	ActionTransfer         ActionType = "TRANSFER"
	ActionTransferSent     ActionType = "TRANSFER_SENT"
	ActionTransferReceived ActionType = "TRANSFER_RECEIVED"
	ActionAirdrop          ActionType = "AIRDROP"
	ActionNFTListing       ActionType = "NFT_LISTING"
	ActionNFTCancelListing ActionType = "NFT_CANCEL_LISTING"
	ActionNFTBid           ActionType = "NFT_BID"
	ActionNFTBidCancelled  ActionType = "NFT_BID_CANCELLED"
	ActionNFTGlobalBid     ActionType = "NFT_GLOBAL_BID"
	ActionBurn             ActionType = "BURN"

	// ActionOther stands in for tags this package does not model yet.
	ActionOther ActionType = "OTHER"
)

var actionTypes = map[ActionType]struct{}{
	ActionSent:             {},
	ActionReceived:         {},
	ActionTransfer:         {},
	ActionTransferSent:     {},
	ActionTransferReceived: {},
	ActionAirdrop:          {},
	ActionNFTListing:       {},
	ActionNFTCancelListing: {},
	ActionNFTBid:           {},
	ActionNFTBidCancelled:  {},
	ActionNFTGlobalBid:     {},
	ActionBurn:             {},
	ActionOther:            {},
}

// ParseActionType maps a wire tag onto the enumeration. Unrecognized tags
// become ActionOther.
func ParseActionType(s string) ActionType {
	if _, ok := actionTypes[ActionType(s)]; ok {
		return ActionType(s)
	}
	return ActionOther
}

// Valid reports whether a is one of the declared action types.
func (a ActionType) Valid() bool {
	_, ok := actionTypes[a]
	return ok
}

// Action is one directional value flow. An empty From or To means the
// program itself rather than a user account. Sent and Received carry either
// SOL or an asset identifier.
type Action struct {
	ActionType ActionType `json:"actionType"`
	From       string     `json:"from"`
	To         string     `json:"to"`
	Sent       string     `json:"sent,omitempty"`
	Received   string     `json:"received,omitempty"`
	Amount     float64    `json:"amount"`
}

type TokenBalanceChange struct {
	Mint   string  `json:"mint"`
	Amount float64 `json:"amount"`
}

// Account is a participant with its balance deltas, in display units.
type Account struct {
	Address             string               `json:"address"`
	NativeBalanceChange float64              `json:"nativeBalanceChange"`
	TokenBalanceChanges []TokenBalanceChange `json:"tokenBalanceChanges"`
}

// Transaction is the canonical, display-ready form of an enriched transaction.
// Fee is in SOL and Timestamp in unix milliseconds.
type Transaction struct {
	Type        helius.TransactionType `json:"type"`
	PrimaryUser string                 `json:"primaryUser"`
	Fee         float64                `json:"fee"`
	Signature   string                 `json:"signature"`
	Timestamp   int64                  `json:"timestamp"`
	Source      helius.Source          `json:"source"`
	Accounts    []Account              `json:"accounts"`
	Actions     []Action               `json:"actions"`
}

// IsUnknown reports whether the transaction resolved to the fallback shape.
func (t Transaction) IsUnknown() bool {
	return len(t.Actions) == 0
}

// Unknown builds the fallback record for tx: the original type tag as given
// (even when blank), normalized fee and timestamp, and no actions. A nil tx has
// no tag, so it is reported as UNKNOWN.
func Unknown(tx *helius.EnrichedTransaction) Transaction {
	if tx == nil {
		return Transaction{
			Type:     helius.TypeUnknown,
			Accounts: []Account{},
			Actions:  []Action{},
		}
	}

	return Transaction{
		Type:        tx.Type,
		PrimaryUser: tx.FeePayer,
		Fee:         lamportsToSOL(tx.Fee),
		Signature:   tx.Signature,
		Timestamp:   millis(tx.Timestamp),
		Source:      tx.Source,
		Accounts:    TraverseAccountData(tx.AccountData),
		Actions:     []Action{},
	}
}

// eventMeta is the signature, source and timestamp an event reports about itself.
type eventMeta struct {
	signature string
	source    helius.Source
	timestamp helius.Int
}

// resolved builds a parsed transaction. Event metadata wins over the
// transaction's own when present.
func resolved(tx *helius.EnrichedTransaction, txType helius.TransactionType, meta eventMeta, primaryUser string, actions []Action) Transaction {
	out := Transaction{
		Type:        txType,
		PrimaryUser: primaryUser,
		Fee:         lamportsToSOL(tx.Fee),
		Signature:   tx.Signature,
		Timestamp:   millis(tx.Timestamp),
		Source:      tx.Source,
		Accounts:    TraverseAccountData(tx.AccountData),
		Actions:     actions,
	}
	if meta.signature != "" {
		out.Signature = meta.signature
	}
	if meta.source != "" {
		out.Source = meta.source
	}
	if meta.timestamp != 0 {
		out.Timestamp = millis(meta.timestamp)
	}
	if out.Actions == nil {
		out.Actions = []Action{}
	}
	return out
}

func lamportsToSOL(l helius.Int) float64 {
	return float64(l) / LamportsPerSOL
}

func millis(seconds helius.Int) int64 {
	return int64(seconds) * 1000
}
