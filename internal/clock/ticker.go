package clock

import "time"

// Ticker wraps time.Ticker to support real and manually driven clocks.
type Ticker struct {
	C          <-chan time.Time
	realTicker *time.Ticker
	stopCh     chan struct{}
}

// Stop stops the ticker. Safe to call more than once.
func (t *Ticker) Stop() {
	if t.realTicker != nil {
		t.realTicker.Stop()
	}
	if t.stopCh != nil {
		select {
		case <-t.stopCh:
			// Already stopped
		default:
			close(t.stopCh)
		}
	}
}

// Stopped returns a channel closed by Stop. Nil for real tickers.
func (t *Ticker) Stopped() <-chan struct{} {
	return t.stopCh
}
