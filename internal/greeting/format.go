package greeting

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/yolodolo42/greeter/internal/chain"
)

// RecentLimit is how many events the activity list shows.
const RecentLimit = 10

// Recent returns at most n events from the front of events, keeping their
// order.
func Recent(events []Event, n int) []Event {
	if len(events) <= n {
		return events
	}
	return events[:n]
}

// FormatSent renders the attached value as "Sent: 0.0100 ETH", or "" when
// nothing was attached.
func FormatSent(value *big.Int, unit string) string {
	if value == nil || value.Sign() <= 0 {
		return ""
	}
	return "Sent: " + chain.FormatUnits(value, 18, 4) + " " + unit
}

// FormatCounter renders a counter, showing 0 until it has been read.
func FormatCounter(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

// DisplayGreeting is the greeting as shown to users: quoted, with a
// placeholder while it is unread or empty.
func DisplayGreeting(g *string) string {
	text := "Loading..."
	if g != nil && *g != "" {
		text = *g
	}
	return `"` + text + `"`
}

// ShortAddress abbreviates an address as 0x1234...abcd.
func ShortAddress(addr common.Address) string {
	hex := addr.Hex()
	return hex[:6] + "..." + hex[len(hex)-4:]
}
