// Package window implements alignment of millisecond timestamps to the
// 15-minute windows Polymarket's Up/Down markets settle against.
package window

// Size is the window length in milliseconds (15 minutes).
const Size int64 = 900_000

// Start returns the start of the 15-minute window containing tMs, aligned
// to :00, :15, :30, :45 by integer division. Idempotent:
// Start(Start(t)) == Start(t).
func Start(tMs int64) int64 {
	return (tMs / Size) * Size
}

// TimeRemaining returns the milliseconds left in the window containing
// tMs, floored at zero.
func TimeRemaining(tMs int64) int64 {
	remaining := Start(tMs) + Size - tMs
	if remaining < 0 {
		return 0
	}
	return remaining
}
