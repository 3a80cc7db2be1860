package proton

import (
	"github.com/brojonat/xray/service/helius"
)

// ParseTransfer narrates plain SOL and token transfers, native legs first.
func ParseTransfer(tx *helius.EnrichedTransaction, viewer string) Transaction {
	if len(tx.NativeTransfers) == 0 && len(tx.TokenTransfers) == 0 {
		return Unknown(tx)
	}

	legs := make([]leg, 0, len(tx.NativeTransfers)+len(tx.TokenTransfers))
	for _, nt := range tx.NativeTransfers {
		legs = append(legs, leg{
			from:   nt.FromUserAccount,
			to:     nt.ToUserAccount,
			asset:  SOL,
			amount: lamportsToSOL(nt.Amount),
		})
	}
	for _, tt := range tx.TokenTransfers {
		legs = append(legs, leg{
			from:   tt.FromUserAccount,
			to:     tt.ToUserAccount,
			asset:  tt.Mint,
			amount: float64(tt.TokenAmount),
		})
	}

	actions := make([]Action, 0, len(legs))
	parties := make([]string, 0, 2*len(legs))
	for _, l := range legs {
		actions = append(actions, trade.narrate(viewer, l, true))
		parties = append(parties, l.from, l.to)
	}

	fallback := tx.FeePayer
	if fallback == "" {
		fallback = legs[0].from
	}

	return resolved(tx, tx.Type, eventMeta{}, primary(viewer, fallback, parties...), actions)
}
