package proton

import (
	"github.com/brojonat/xray/service/helius"
)

// Compressed NFT transactions carry a single synthetic event; the first entry
// is authoritative and the fee payer is always the primary user.

// ParseCompressedNFTMint narrates a compressed mint into the new leaf owner's
// wallet, or the fee payer's when the event does not name one.
func ParseCompressedNFTMint(tx *helius.EnrichedTransaction, viewer string) Transaction {
	if len(tx.Events.Compressed) == 0 {
		return Unknown(tx)
	}
	ev := tx.Events.Compressed[0]

	recipient := ev.NewLeafOwner
	if recipient == "" {
		recipient = tx.FeePayer
	}
	minted := leg{from: "", to: recipient, asset: ev.AssetID, amount: 1}

	var action Action
	switch resolveRole(viewer, "", recipient) {
	case roleNone:
		action = minted.give(ActionTransfer)
	case roleReceiver:
		action = minted.take(ActionReceived)
	default:
		action = minted.take(ActionAirdrop)
	}

	return resolved(tx, tx.Type, eventMeta{}, tx.FeePayer, []Action{action})
}

// ParseCompressedNFTTransfer narrates a change of leaf owner.
func ParseCompressedNFTTransfer(tx *helius.EnrichedTransaction, viewer string) Transaction {
	if len(tx.Events.Compressed) == 0 {
		return Unknown(tx)
	}
	ev := tx.Events.Compressed[0]

	moved := leg{from: ev.OldLeafOwner, to: ev.NewLeafOwner, asset: ev.AssetID, amount: 1}
	action := ownerShift.narrate(viewer, moved, true)

	return resolved(tx, tx.Type, eventMeta{}, tx.FeePayer, []Action{action})
}
