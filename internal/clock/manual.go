package clock

import (
	"sync"
	"time"
)

// ManualClock only ticks when told to. Tests use it to drive playback
// deterministically.
type ManualClock struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*manualTicker
}

type manualTicker struct {
	interval time.Duration
	ch       chan time.Time
	ticker   *Ticker
}

// NewManualClock creates a ManualClock starting at start.
func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

// Now returns the manual time.
func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Ticker registers a ticker that fires on Tick.
func (c *ManualClock) Ticker(d time.Duration) *Ticker {
	ch := make(chan time.Time)
	t := &Ticker{C: ch, stopCh: make(chan struct{})}

	c.mu.Lock()
	c.tickers = append(c.tickers, &manualTicker{interval: d, ch: ch, ticker: t})
	c.mu.Unlock()
	return t
}

// Tick advances the clock by the interval of the first running ticker and
// delivers one tick to every running ticker. It blocks until each receiver
// takes the tick or stops its ticker, and returns how many ticks were taken.
func (c *ManualClock) Tick() int {
	c.mu.Lock()
	running := c.tickers[:0]
	for _, mt := range c.tickers {
		select {
		case <-mt.ticker.stopCh:
		default:
			running = append(running, mt)
		}
	}
	c.tickers = running
	targets := make([]*manualTicker, len(running))
	copy(targets, running)
	if len(targets) > 0 {
		c.now = c.now.Add(targets[0].interval)
	}
	now := c.now
	c.mu.Unlock()

	delivered := 0
	for _, mt := range targets {
		select {
		case mt.ch <- now:
			delivered++
		case <-mt.ticker.stopCh:
		}
	}
	return delivered
}

// Running returns the number of tickers that have not been stopped.
func (c *ManualClock) Running() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, mt := range c.tickers {
		select {
		case <-mt.ticker.stopCh:
		default:
			n++
		}
	}
	return n
}
