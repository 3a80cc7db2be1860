package proton

import (
	"github.com/brojonat/xray/service/helius"
)

func nftMeta(ev *helius.NFTEvent) eventMeta {
	return eventMeta{signature: ev.Signature, source: ev.Source, timestamp: ev.Timestamp}
}

// firstMint is the asset a marketplace event refers to. Events with no NFTs
// yield an empty identifier.
func firstMint(ev *helius.NFTEvent) string {
	if len(ev.NFTs) == 0 {
		return ""
	}
	return ev.NFTs[0].Mint
}

// ParseNFTSale narrates a marketplace sale. A viewing buyer or seller turns the
// type into NFT_BUY or NFT_SELL; any other viewer sees a plain NFT_SALE.
func ParseNFTSale(tx *helius.EnrichedTransaction, viewer string) Transaction {
	ev := tx.Events.NFT
	if ev == nil {
		return Unknown(tx)
	}

	payment := leg{from: ev.Buyer, to: ev.Seller, asset: SOL, amount: lamportsToSOL(ev.Amount)}
	item := leg{from: ev.Seller, to: ev.Buyer, asset: firstMint(ev), amount: 1}
	actions := trade.exchange(viewer, payment, item)

	txType := tx.Type
	switch resolveRole(viewer, ev.Buyer, ev.Seller) {
	case roleGiver:
		txType = TypeNFTBuy
	case roleReceiver:
		txType = TypeNFTSell
	case roleThirdParty:
		txType = helius.TypeNFTSale
	}

	return resolved(tx, txType, nftMeta(ev), primary(viewer, ev.Seller, ev.Buyer, ev.Seller), actions)
}

// ParseNFTListing reports the seller putting an NFT up at a price.
func ParseNFTListing(tx *helius.EnrichedTransaction, viewer string) Transaction {
	return parseSellerNotice(tx, viewer, ActionNFTListing)
}

// ParseNFTCancelListing reports the seller withdrawing a listing.
func ParseNFTCancelListing(tx *helius.EnrichedTransaction, viewer string) Transaction {
	return parseSellerNotice(tx, viewer, ActionNFTCancelListing)
}

func parseSellerNotice(tx *helius.EnrichedTransaction, viewer string, tag ActionType) Transaction {
	ev := tx.Events.NFT
	if ev == nil {
		return Unknown(tx)
	}

	notice := leg{from: ev.Seller, to: "", asset: firstMint(ev), amount: lamportsToSOL(ev.Amount)}
	actions := []Action{notice.give(tag)}

	return resolved(tx, tx.Type, nftMeta(ev), primary(viewer, ev.Seller, ev.Seller), actions)
}

// ParseNFTBid reports an offer on a specific NFT.
func ParseNFTBid(tx *helius.EnrichedTransaction, viewer string) Transaction {
	return parseBidNotice(tx, ActionNFTBid)
}

// ParseNFTCancelBid reports an offer being withdrawn.
func ParseNFTCancelBid(tx *helius.EnrichedTransaction, viewer string) Transaction {
	return parseBidNotice(tx, ActionNFTBidCancelled)
}

func parseBidNotice(tx *helius.EnrichedTransaction, tag ActionType) Transaction {
	ev := tx.Events.NFT
	if ev == nil {
		return Unknown(tx)
	}

	notice := leg{from: "", to: ev.Buyer, asset: firstMint(ev), amount: lamportsToSOL(ev.Amount)}
	actions := []Action{notice.give(tag)}

	// Bids belong to the NFT holder for every viewer.
	return resolved(tx, tx.Type, nftMeta(ev), ev.Seller, actions)
}

// ParseNFTGlobalBid reports a collection-wide offer, paid in SOL.
func ParseNFTGlobalBid(tx *helius.EnrichedTransaction, viewer string) Transaction {
	ev := tx.Events.NFT
	if ev == nil {
		return Unknown(tx)
	}

	offer := leg{from: ev.Buyer, to: "", asset: SOL, amount: lamportsToSOL(ev.Amount)}
	actions := []Action{offer.give(ActionNFTGlobalBid)}

	return resolved(tx, tx.Type, nftMeta(ev), primary(viewer, ev.Buyer, ev.Buyer), actions)
}

// ParseNFTMint narrates a mint. The minter pays SOL to the program and receives
// the NFT; a viewer who is not the minter sees it as an airdrop to them.
//
// Mints through the token program can split payment across several native
// transfers, so their price is the sum of all of them.
func ParseNFTMint(tx *helius.EnrichedTransaction, viewer string) Transaction {
	ev := tx.Events.NFT
	if ev == nil || tx.NativeTransfers == nil {
		return Unknown(tx)
	}

	price := lamportsToSOL(ev.Amount)
	if tx.Source == helius.SourceSolanaProgramLibrary {
		var total helius.Int
		for _, nt := range tx.NativeTransfers {
			total += nt.Amount
		}
		price = lamportsToSOL(total)
	}

	payment := leg{from: ev.Buyer, to: "", asset: SOL, amount: price}
	item := leg{from: "", to: ev.Buyer, asset: firstMint(ev), amount: 1}

	var actions []Action
	if resolveRole(viewer, ev.Buyer, "") == roleThirdParty {
		actions = []Action{item.take(ActionAirdrop)}
	} else {
		actions = trade.exchange(viewer, payment, item)
	}

	return resolved(tx, tx.Type, nftMeta(ev), ev.Buyer, actions)
}
