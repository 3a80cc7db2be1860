package proton

// leg is a single value flow before it is narrated for a viewer.
type leg struct {
	from   string
	to     string
	asset  string
	amount float64
}

func (l leg) give(t ActionType) Action {
	return Action{ActionType: t, From: l.from, To: l.to, Sent: l.asset, Amount: l.amount}
}

func (l leg) take(t ActionType) Action {
	return Action{ActionType: t, From: l.from, To: l.to, Received: l.asset, Amount: l.amount}
}

// perspective holds the action tags a category uses when the viewer gives,
// receives, or is not a party to a leg.
type perspective struct {
	giving    ActionType
	receiving ActionType
	neutral   ActionType
}

var (
	trade      = perspective{giving: ActionSent, receiving: ActionReceived, neutral: ActionTransfer}
	ownerShift = perspective{giving: ActionTransferSent, receiving: ActionTransferReceived, neutral: ActionTransfer}
	burning    = perspective{giving: ActionBurn, receiving: ActionBurn, neutral: ActionBurn}
)

// narrate tags l from the viewer's side. When the viewer is not on the leg,
// outbound picks whether the asset is reported as sent or received.
func (p perspective) narrate(viewer string, l leg, outbound bool) Action {
	switch {
	case viewer != "" && viewer == l.from:
		return l.give(p.giving)
	case viewer != "" && viewer == l.to:
		return l.take(p.receiving)
	case outbound:
		return l.give(p.neutral)
	default:
		return l.take(p.neutral)
	}
}

// exchange narrates a two-sided trade where a flows from party A to party B and
// b flows back. The viewer's outgoing leg always comes first; without a
// participating viewer the trade is told from party A's side.
func (p perspective) exchange(viewer string, a, b leg) []Action {
	if viewer != "" && viewer == b.from && viewer != a.from {
		return []Action{p.narrate(viewer, b, true), p.narrate(viewer, a, false)}
	}
	return []Action{p.narrate(viewer, a, true), p.narrate(viewer, b, false)}
}

// role is where the viewer stands relative to two named parties.
type role int

const (
	roleNone       role = iota // no viewer supplied
	roleGiver                  // viewer is the giving party
	roleReceiver               // viewer is the receiving party
	roleThirdParty             // viewer supplied but not a party
)

func resolveRole(viewer, giver, receiver string) role {
	switch {
	case viewer == "":
		return roleNone
	case viewer == giver:
		return roleGiver
	case viewer == receiver:
		return roleReceiver
	default:
		return roleThirdParty
	}
}

// primary returns the viewer when they are one of parties, else fallback.
func primary(viewer, fallback string, parties ...string) string {
	if viewer != "" {
		for _, p := range parties {
			if p == viewer {
				return viewer
			}
		}
	}
	return fallback
}
