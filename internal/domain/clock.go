package domain

import "github.com/jonboulle/clockwork"

// clock backs the relative "last updated" labels. Tests freeze it via SetClock.
var clock = clockwork.NewRealClock()

// SetClock swaps the time source for label rendering. Pass nil to reset to real time.
func SetClock(c clockwork.Clock) {
	if c == nil {
		clock = clockwork.NewRealClock()
		return
	}
	clock = c
}
