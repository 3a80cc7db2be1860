package proton

import (
	"math"
	"math/big"
	"strings"

	"github.com/brojonat/xray/service/helius"
)

// TraverseAccountData turns raw per-account balance deltas into participants.
//
// Accounts keep first-encounter order and appear once each. Native deltas of a
// repeated address are summed; token deltas are appended in raw order and never
// merged, attributed to the owning wallet when Helius reports one.
func TraverseAccountData(data []helius.AccountData) []Account {
	accounts := make([]Account, 0, len(data))
	index := make(map[string]int, len(data))

	entry := func(address string) *Account {
		if i, ok := index[address]; ok {
			return &accounts[i]
		}
		accounts = append(accounts, Account{
			Address:             address,
			TokenBalanceChanges: []TokenBalanceChange{},
		})
		index[address] = len(accounts) - 1
		return &accounts[len(accounts)-1]
	}

	for _, record := range data {
		acct := entry(record.Account)
		acct.NativeBalanceChange += lamportsToSOL(record.NativeBalanceChange)

		for _, change := range record.TokenBalanceChanges {
			owner := change.UserAccount
			if owner == "" {
				owner = record.Account
			}
			holder := entry(owner)
			holder.TokenBalanceChanges = append(holder.TokenBalanceChanges, TokenBalanceChange{
				Mint:   change.Mint,
				Amount: tokenAmount(change.RawTokenAmount),
			})
		}
	}

	return accounts
}

// tokenAmount scales a raw base-unit amount by the mint's decimals. Malformed
// amounts, including decimals outside 0..255, are zero.
func tokenAmount(raw helius.RawTokenAmount) float64 {
	s := strings.TrimSpace(raw.TokenAmount)
	if s == "" {
		return 0
	}
	decimals := int64(raw.Decimals)
	if decimals < 0 || decimals > 255 {
		return 0
	}
	r, ok := new(big.Rat).SetString(s)
	if !ok {
		return 0
	}
	if decimals > 0 {
		scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(decimals), nil)
		r.Quo(r, new(big.Rat).SetInt(scale))
	}
	f, _ := r.Float64()
	if math.IsInf(f, 0) {
		return 0
	}
	return f
}
