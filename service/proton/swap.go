package proton

import (
	"github.com/brojonat/xray/service/helius"
)

// ParseSwap narrates a token swap: every input the swapper pays into the
// program, then every output paid back out.
func ParseSwap(tx *helius.EnrichedTransaction, viewer string) Transaction {
	ev := tx.Events.Swap
	if ev == nil {
		return Unknown(tx)
	}

	swapper := swapperOf(ev, tx.FeePayer)

	var inputs, outputs []leg
	if ev.NativeInput != nil && ev.NativeInput.Amount > 0 {
		inputs = append(inputs, leg{
			from:   orDefault(ev.NativeInput.Account, swapper),
			asset:  SOL,
			amount: lamportsToSOL(ev.NativeInput.Amount),
		})
	}
	for _, in := range ev.TokenInputs {
		inputs = append(inputs, leg{
			from:   orDefault(in.UserAccount, swapper),
			asset:  in.Mint,
			amount: tokenAmount(in.RawTokenAmount),
		})
	}
	if ev.NativeOutput != nil && ev.NativeOutput.Amount > 0 {
		outputs = append(outputs, leg{
			to:     orDefault(ev.NativeOutput.Account, swapper),
			asset:  SOL,
			amount: lamportsToSOL(ev.NativeOutput.Amount),
		})
	}
	for _, out := range ev.TokenOutputs {
		outputs = append(outputs, leg{
			to:     orDefault(out.UserAccount, swapper),
			asset:  out.Mint,
			amount: tokenAmount(out.RawTokenAmount),
		})
	}

	if len(inputs) == 0 && len(outputs) == 0 {
		return Unknown(tx)
	}

	actions := make([]Action, 0, len(inputs)+len(outputs))
	for _, l := range inputs {
		actions = append(actions, trade.narrate(viewer, l, true))
	}
	for _, l := range outputs {
		actions = append(actions, trade.narrate(viewer, l, false))
	}

	return resolved(tx, tx.Type, eventMeta{}, primary(viewer, swapper, swapper), actions)
}

// swapperOf picks the account that initiated the swap.
func swapperOf(ev *helius.SwapEvent, feePayer string) string {
	switch {
	case ev.NativeInput != nil && ev.NativeInput.Account != "":
		return ev.NativeInput.Account
	case len(ev.TokenInputs) > 0 && ev.TokenInputs[0].UserAccount != "":
		return ev.TokenInputs[0].UserAccount
	case ev.NativeOutput != nil && ev.NativeOutput.Account != "":
		return ev.NativeOutput.Account
	case len(ev.TokenOutputs) > 0 && ev.TokenOutputs[0].UserAccount != "":
		return ev.TokenOutputs[0].UserAccount
	default:
		return feePayer
	}
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
