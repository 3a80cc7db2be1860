package proton

import (
	"github.com/brojonat/xray/service/helius"
)

// ParseBurn narrates token or NFT burns from the balance decreases Helius
// reports in accountData. Each decrease becomes one BURN action into the program.
func ParseBurn(tx *helius.EnrichedTransaction, viewer string) Transaction {
	var legs []leg
	for _, record := range tx.AccountData {
		for _, change := range record.TokenBalanceChanges {
			delta := tokenAmount(change.RawTokenAmount)
			if delta >= 0 {
				continue
			}
			legs = append(legs, leg{
				from:   orDefault(change.UserAccount, record.Account),
				to:     "",
				asset:  change.Mint,
				amount: -delta,
			})
		}
	}

	if len(legs) == 0 {
		return Unknown(tx)
	}

	actions := make([]Action, 0, len(legs))
	owners := make([]string, 0, len(legs))
	for _, l := range legs {
		actions = append(actions, burning.narrate(viewer, l, true))
		owners = append(owners, l.from)
	}

	fallback := orDefault(legs[0].from, tx.FeePayer)

	return resolved(tx, tx.Type, eventMeta{}, primary(viewer, fallback, owners...), actions)
}
