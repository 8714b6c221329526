package domain

import "github.com/jonboulle/clockwork"

// clock stamps table builds (ColorTable.BuiltAt) and styled snapshots
// (StyledSnapshot.StyledAt).
var clock clockwork.Clock = clockwork.NewRealClock()

// SetClock swaps the time source and returns a func restoring the previous
// one. A nil clock means real time.
func SetClock(c clockwork.Clock) (restore func()) {
	prev := clock
	if c == nil {
		c = clockwork.NewRealClock()
	}
	clock = c
	return func() { clock = prev }
}
