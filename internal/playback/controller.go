// Package playback owns the playhead and drives fixed-rate playback over a
// timeline, notifying observers of every new instant.
package playback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"github.com/seatrack/gpxplayer/internal/clock"
	"github.com/seatrack/gpxplayer/internal/timeline"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	// ErrOutOfRange is returned by Seek for NaN or infinite positions
	ErrOutOfRange = errors.New("position out of range")
	// ErrEmptyTimeline is returned when there is no instant to resolve
	ErrEmptyTimeline = timeline.ErrEmptyTimeline
)

// State is the playback state.
type State int

const (
	Stopped State = iota
	Playing
)

func (s State) String() string {
	switch s {
	case Playing:
		return "playing"
	default:
		return "stopped"
	}
}

// Stats summarises controller activity.
type Stats struct {
	Ticks            int64
	Notifications    int64
	ObserverFailures int64
	LatencyP50       time.Duration
	LatencyP99       time.Duration
	LatencyMax       time.Duration
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock sets the tick source.
func WithClock(c clock.Clock) Option {
	return func(ctl *Controller) { ctl.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(ctl *Controller) { ctl.logger = l }
}

// Controller owns the playhead. All state transitions happen under mu and
// queue their instant for delivery in the same critical section. One caller
// at a time drains the queue, so observers see instants in transition order
// and never run under mu.
type Controller struct {
	cfg    Config
	tl     timeline.Timeline
	clock  clock.Clock
	logger *slog.Logger

	// OTEL metrics
	tickCounter    metric.Int64Counter
	failureCounter metric.Int64Counter

	obsMu     sync.RWMutex
	observers []registered

	mu       sync.Mutex
	state    State
	position int
	run      uint64
	cancel   context.CancelFunc
	ticker   *clock.Ticker
	done     chan struct{}

	notifyMu sync.Mutex
	pending  []time.Time
	draining bool

	loops sync.WaitGroup

	ticks         atomic.Int64
	notifications atomic.Int64
	failures      atomic.Int64

	histMu sync.Mutex
	hist   *hdrhistogram.Histogram
}

// New creates a stopped controller at position 0.
// Uses the global OTel meter for metrics (no-op if not configured).
func New(tl timeline.Timeline, cfg Config, opts ...Option) (*Controller, error) {
	c := &Controller{
		cfg:    cfg.withDefaults(),
		tl:     tl,
		clock:  clock.NewRealClock(),
		logger: slog.Default(),
		hist:   hdrhistogram.New(1, 60000000, 3), // 1us to 60s
	}
	for _, opt := range opts {
		opt(c)
	}

	m := meter()

	var err error
	c.tickCounter, err = m.Int64Counter(
		"playback.ticks",
		metric.WithDescription("Total playback ticks handled"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating tick counter: %w", err)
	}

	c.failureCounter, err = m.Int64Counter(
		"playback.observer.failures",
		metric.WithDescription("Total observer errors and panics"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating observer failure counter: %w", err)
	}

	return c, nil
}

// Observe registers an observer. Observers are called in registration order.
func (c *Controller) Observe(name string, o Observer) {
	c.obsMu.Lock()
	defer c.obsMu.Unlock()
	c.observers = append(c.observers, registered{name: name, obs: o})
}

// Seek moves the playhead. Finite positions are floored and clamped to
// [0, Resolution]; NaN and infinities fail with ErrOutOfRange.
//
// Observers are notified before Seek returns. When a notification is already
// being delivered, as when an observer seeks, the new instant is queued behind
// it and Seek returns without waiting.
//
// Landing on Resolution while playing ends the run unless the end policy loops.
func (c *Controller) Seek(position float64) error {
	if math.IsNaN(position) || math.IsInf(position, 0) {
		return fmt.Errorf("seek %v: %w", position, ErrOutOfRange)
	}
	if c.tl.Len() == 0 {
		return ErrEmptyTimeline
	}
	res := c.cfg.Resolution
	p := int(math.Max(0, math.Min(math.Floor(position), float64(res))))

	c.mu.Lock()
	c.position = p
	ended := p == res && c.state == Playing && c.cfg.EndPolicy != EndLoop
	if ended {
		c.stopLocked()
	}
	instant, _ := c.tl.At(p, res)
	drain := c.enqueueLocked(instant)
	c.mu.Unlock()

	ctx := context.Background()
	if ended {
		c.logger.Debug("playback reached end", "policy", string(c.cfg.EndPolicy), "seek", true)
	}
	if drain {
		c.drain(ctx)
	}
	if ended && c.cfg.EndPolicy == EndRewind {
		c.rewind(ctx)
	}
	return nil
}

// SeekTime moves the playhead to the first position at or after t.
func (c *Controller) SeekTime(t time.Time) error {
	p, err := c.tl.PositionOf(t, c.cfg.Resolution)
	if err != nil {
		return err
	}
	return c.Seek(float64(p))
}

// Play starts ticking from the current position. It is a no-op while playing
// and, unless the end policy loops, at the last position.
func (c *Controller) Play() error {
	if c.tl.Len() == 0 {
		return ErrEmptyTimeline
	}

	c.mu.Lock()
	if c.state == Playing {
		c.mu.Unlock()
		return nil
	}
	pos := c.position
	if pos >= c.cfg.Resolution && c.cfg.EndPolicy != EndLoop {
		c.mu.Unlock()
		c.logger.Debug("play ignored at end of timeline", "position", pos)
		return nil
	}

	c.run++
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.state = Playing
	c.done = make(chan struct{})
	c.ticker = c.clock.Ticker(c.cfg.TickInterval)

	c.loops.Add(1)
	go c.loop(ctx, c.run, c.ticker)
	c.mu.Unlock()

	// logging happens outside mu: log handlers may read the controller state
	c.logger.Debug("playback started", "position", pos, "interval", c.cfg.TickInterval)
	return nil
}

// Pause stops the tick source. Idempotent.
func (c *Controller) Pause() {
	c.mu.Lock()
	paused := c.state == Playing
	c.stopLocked()
	pos := c.position
	c.mu.Unlock()

	if paused {
		c.logger.Debug("playback paused", "position", pos)
	}
}

// stopLocked ends the current run. A tick of that run that already fired
// sees the new run number and does nothing.
func (c *Controller) stopLocked() {
	if c.state != Playing {
		return
	}
	c.state = Stopped
	c.run++
	c.cancel()
	c.cancel = nil
	c.ticker.Stop()
	c.ticker = nil
	close(c.done)
}

// Close pauses playback and waits for the tick goroutine to exit.
// It must not be called from an observer.
func (c *Controller) Close() {
	c.Pause()
	c.loops.Wait()
}

func (c *Controller) loop(ctx context.Context, run uint64, ticker *clock.Ticker) {
	defer c.loops.Done()
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !c.tick(ctx, run) {
				return
			}
		}
	}
}

// tick advances the playhead by one and reports whether the run continues.
func (c *Controller) tick(ctx context.Context, run uint64) bool {
	c.mu.Lock()
	if c.run != run || c.state != Playing {
		c.mu.Unlock()
		return false
	}

	c.ticks.Add(1)
	c.tickCounter.Add(ctx, 1)

	res := c.cfg.Resolution
	next := c.position + 1
	if c.position >= res {
		if c.cfg.EndPolicy != EndLoop {
			// never wrap outside EndLoop
			c.stopLocked()
			c.mu.Unlock()
			return false
		}
		next = 0
	}
	c.position = next

	rewind, ended := false, false
	if next == res && c.cfg.EndPolicy != EndLoop {
		rewind = c.cfg.EndPolicy == EndRewind
		ended = true
		c.stopLocked()
	}
	playing := c.state == Playing
	instant, _ := c.tl.At(next, res)
	drain := c.enqueueLocked(instant)
	c.mu.Unlock()

	if ended {
		c.logger.Debug("playback reached end", "policy", string(c.cfg.EndPolicy))
	}

	// the run may already be cancelled; observers still get a live context
	nctx := context.WithoutCancel(ctx)
	if drain {
		c.drain(nctx)
	}
	if rewind {
		c.rewind(nctx)
	}
	return playing
}

// rewind seeks to 0 after the end was reached, unless someone moved the
// playhead or restarted playback in between.
func (c *Controller) rewind(ctx context.Context) {
	c.mu.Lock()
	if c.position != c.cfg.Resolution || c.state != Stopped {
		c.mu.Unlock()
		return
	}
	c.position = 0
	instant, _ := c.tl.At(0, c.cfg.Resolution)
	drain := c.enqueueLocked(instant)
	c.mu.Unlock()

	if drain {
		c.drain(ctx)
	}
}

// enqueueLocked queues instant for delivery. It reports whether the caller
// has to drain the queue; false means another caller is already draining and
// will deliver it.
func (c *Controller) enqueueLocked(instant time.Time) bool {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()
	c.pending = append(c.pending, instant)
	if c.draining {
		return false
	}
	c.draining = true
	return true
}

// drain notifies observers of queued instants until the queue is empty.
func (c *Controller) drain(ctx context.Context) {
	for {
		c.notifyMu.Lock()
		if len(c.pending) == 0 {
			c.draining = false
			c.pending = nil
			c.notifyMu.Unlock()
			return
		}
		instant := c.pending[0]
		c.pending = c.pending[1:]
		c.notifyMu.Unlock()

		c.notify(ctx, instant)
	}
}

func (c *Controller) notify(ctx context.Context, instant time.Time) {
	start := time.Now()

	c.obsMu.RLock()
	observers := slices.Clone(c.observers)
	c.obsMu.RUnlock()

	for _, r := range observers {
		c.call(ctx, r, instant)
	}

	c.notifications.Add(1)
	c.histMu.Lock()
	_ = c.hist.RecordValue(time.Since(start).Microseconds())
	c.histMu.Unlock()
}

// call isolates one observer: errors and panics are logged and counted.
func (c *Controller) call(ctx context.Context, r registered, instant time.Time) {
	defer func() {
		if rec := recover(); rec != nil {
			c.fail(ctx, r.name)
			c.logger.Error("observer panicked", "observer", r.name, "instant", instant, "panic", rec)
		}
	}()
	if err := r.obs.OnTimeChange(ctx, instant); err != nil {
		c.fail(ctx, r.name)
		c.logger.Warn("observer failed", "observer", r.name, "instant", instant, "error", err)
	}
}

func (c *Controller) fail(ctx context.Context, name string) {
	c.failures.Add(1)
	c.failureCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("observer", name)))
}

// IsPlaying reports whether the tick source is running.
func (c *Controller) IsPlaying() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == Playing
}

// State returns the playback state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Position returns the playhead.
func (c *Controller) Position() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.position
}

// Instant returns the instant at the playhead.
func (c *Controller) Instant() (time.Time, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tl.At(c.position, c.cfg.Resolution)
}

// Done returns a channel closed when the current run stops. When not
// playing the returned channel is already closed.
func (c *Controller) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Playing {
		return c.done
	}
	closed := make(chan struct{})
	close(closed)
	return closed
}

// Resolution returns the number of playhead steps.
func (c *Controller) Resolution() int {
	return c.cfg.Resolution
}

// Timeline returns the axis the playhead maps onto.
func (c *Controller) Timeline() timeline.Timeline {
	return c.tl
}

// Config returns the effective configuration.
func (c *Controller) Config() Config {
	return c.cfg
}

// Stats returns counters and notification latency percentiles.
func (c *Controller) Stats() Stats {
	c.histMu.Lock()
	p50 := c.hist.ValueAtQuantile(50)
	p99 := c.hist.ValueAtQuantile(99)
	maxUs := c.hist.Max()
	c.histMu.Unlock()

	return Stats{
		Ticks:            c.ticks.Load(),
		Notifications:    c.notifications.Load(),
		ObserverFailures: c.failures.Load(),
		LatencyP50:       time.Duration(p50) * time.Microsecond,
		LatencyP99:       time.Duration(p99) * time.Microsecond,
		LatencyMax:       time.Duration(maxUs) * time.Microsecond,
	}
}
