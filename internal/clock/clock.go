// Package clock abstracts the tick source that drives playback.
package clock

import "time"

// Clock provides the time source for playback.
type Clock interface {
	// Now returns the current time according to this clock.
	Now() time.Time

	// Ticker returns a ticker that emits at the specified interval according to this clock.
	Ticker(d time.Duration) *Ticker
}

// New returns a real clock for speed 1 and a scaled clock otherwise.
func New(speed float64) Clock {
	if speed <= 0 || speed == 1 {
		return NewRealClock()
	}
	return NewScaledClock(speed)
}
