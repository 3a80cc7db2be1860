package proton

import (
	"sort"

	"github.com/brojonat/xray/service/helius"
)

// Parser turns an enriched transaction into its canonical form, narrated for
// viewer. An empty viewer asks for a neutral narration.
type Parser func(tx *helius.EnrichedTransaction, viewer string) Transaction

var parsers = map[helius.TransactionType]Parser{
	helius.TypeNFTSale:               ParseNFTSale,
	helius.TypeNFTListing:            ParseNFTListing,
	helius.TypeNFTCancelListing:      ParseNFTCancelListing,
	helius.TypeNFTBid:                ParseNFTBid,
	helius.TypeNFTBidCancelled:       ParseNFTCancelBid,
	helius.TypeNFTGlobalBid:          ParseNFTGlobalBid,
	helius.TypeNFTMint:               ParseNFTMint,
	helius.TypeCompressedNFTMint:     ParseCompressedNFTMint,
	helius.TypeCompressedNFTTransfer: ParseCompressedNFTTransfer,
	helius.TypeSwap:                  ParseSwap,
	helius.TypeTransfer:              ParseTransfer,
	helius.TypeBurn:                  ParseBurn,
	helius.TypeBurnNFT:               ParseBurn,
}

func parseUnknown(tx *helius.EnrichedTransaction, _ string) Transaction {
	return Unknown(tx)
}

// Route returns the parser registered for t. Unregistered tags, UNKNOWN
// included, get a parser that always yields the Unknown fallback.
func Route(t helius.TransactionType) Parser {
	if p, ok := parsers[t]; ok {
		return p
	}
	return parseUnknown
}

// Parse routes tx by its type tag and parses it for viewer.
func Parse(tx *helius.EnrichedTransaction, viewer string) Transaction {
	if tx == nil {
		return Unknown(nil)
	}
	return Route(tx.Type)(tx, viewer)
}

// Supported reports whether t has a dedicated parser.
func Supported(t helius.TransactionType) bool {
	_, ok := parsers[t]
	return ok
}

// SupportedTypes lists the tags with a dedicated parser, sorted.
func SupportedTypes() []helius.TransactionType {
	types := make([]helius.TransactionType, 0, len(parsers))
	for t := range parsers {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}
