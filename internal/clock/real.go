package clock

import "time"

// RealClock implements Clock using actual system time.
type RealClock struct{}

// NewRealClock creates a new RealClock.
func NewRealClock() *RealClock {
	return &RealClock{}
}

// Now returns the current system time.
func (c *RealClock) Now() time.Time {
	return time.Now()
}

// Ticker returns a ticker that emits at the specified interval.
func (c *RealClock) Ticker(d time.Duration) *Ticker {
	t := time.NewTicker(d)
	return &Ticker{
		C:          t.C,
		realTicker: t,
	}
}

// ScaledClock runs tickers faster (speed > 1) or slower (speed < 1) than real time.
type ScaledClock struct {
	speed float64
}

// NewScaledClock creates a ScaledClock. Non-positive speeds are treated as 1.
func NewScaledClock(speed float64) *ScaledClock {
	if speed <= 0 {
		speed = 1
	}
	return &ScaledClock{speed: speed}
}

// Now returns the current system time.
func (c *ScaledClock) Now() time.Time {
	return time.Now()
}

// Ticker returns a real ticker with interval d/speed, at least one millisecond.
func (c *ScaledClock) Ticker(d time.Duration) *Ticker {
	return NewRealClock().Ticker(c.Interval(d))
}

// Interval returns the real interval used for a nominal interval d.
func (c *ScaledClock) Interval(d time.Duration) time.Duration {
	interval := time.Duration(float64(d) / c.speed)
	if interval < time.Millisecond {
		interval = time.Millisecond // Minimum interval
	}
	return interval
}

// Speed returns the scale factor.
func (c *ScaledClock) Speed() float64 {
	return c.speed
}
