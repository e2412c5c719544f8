package overlay

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/seatrack/gpxplayer/internal/geo"
)

const (
	DefaultStep    = time.Hour
	DefaultTimeout = 10 * time.Second
	DefaultTTL     = time.Hour
)

// PublishFunc receives loaded overlays, off the playback loop.
type PublishFunc func(Overlay)

// Stats counts loader outcomes.
type Stats struct {
	Requested int64
	Loaded    int64
	CacheHits int64
	Failures  int64
	Stale     int64
}

type request struct {
	gen     uint64
	instant time.Time
	slot    time.Time
}

// Loader is a playback observer that loads the overlay for the current
// instant in the background. Only the most recent request is kept; a
// result for an older request is dropped.
type Loader struct {
	src     Source
	cache   Cache
	publish PublishFunc
	logger  *slog.Logger
	bounds  geo.Bounds
	step    time.Duration
	ttl     time.Duration
	timeout time.Duration

	mu       sync.Mutex
	gen      uint64
	lastSlot time.Time
	pending  *request

	wake   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once

	requested atomic.Int64
	loaded    atomic.Int64
	hits      atomic.Int64
	failures  atomic.Int64
	stale     atomic.Int64
}

// Option configures a Loader.
type Option func(*Loader)

// WithCache stores loaded grids in c.
func WithCache(c Cache) Option {
	return func(l *Loader) { l.cache = c }
}

// WithBounds sets the area requested from the source.
func WithBounds(b geo.Bounds) Option {
	return func(l *Loader) { l.bounds = b }
}

// WithStep sets the slot width. Instants inside one slot share a grid.
func WithStep(d time.Duration) Option {
	return func(l *Loader) {
		if d > 0 {
			l.step = d
		}
	}
}

// WithTTL sets how long cached grids stay valid.
func WithTTL(d time.Duration) Option {
	return func(l *Loader) { l.ttl = d }
}

// WithTimeout bounds a single source call.
func WithTimeout(d time.Duration) Option {
	return func(l *Loader) {
		if d > 0 {
			l.timeout = d
		}
	}
}

// WithLogger sets the logger used for load failures.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) { l.logger = logger }
}

// NewLoader starts a loader reading from src. Close must be called to stop it.
func NewLoader(src Source, publish PublishFunc, opts ...Option) *Loader {
	ctx, cancel := context.WithCancel(context.Background())
	l := &Loader{
		src:     src,
		publish: publish,
		logger:  slog.Default(),
		step:    DefaultStep,
		ttl:     DefaultTTL,
		timeout: DefaultTimeout,
		wake:    make(chan struct{}, 1),
		ctx:     ctx,
		cancel:  cancel,
	}
	for _, opt := range opts {
		opt(l)
	}

	l.wg.Add(1)
	go l.run()
	return l
}

// OnTimeChange implements playback.Observer. It never blocks and never fails.
// Instants in the slot already requested are ignored, so a failed slot is
// not retried until the playhead leaves it.
func (l *Loader) OnTimeChange(_ context.Context, instant time.Time) error {
	slot := Slot(instant, l.step)

	l.mu.Lock()
	if slot.Equal(l.lastSlot) && l.gen > 0 {
		l.mu.Unlock()
		return nil
	}
	l.gen++
	l.lastSlot = slot
	l.pending = &request{gen: l.gen, instant: instant, slot: slot}
	l.mu.Unlock()

	l.requested.Add(1)
	select {
	case l.wake <- struct{}{}:
	default:
	}
	return nil
}

func (l *Loader) run() {
	defer l.wg.Done()
	for {
		select {
		case <-l.ctx.Done():
			return
		case <-l.wake:
		}

		l.mu.Lock()
		req := l.pending
		l.pending = nil
		l.mu.Unlock()

		if req != nil {
			l.load(*req)
		}
	}
}

func (l *Loader) load(req request) {
	key := cacheKey(req.slot, l.bounds)

	if l.cache != nil {
		g, ok, err := l.cache.Get(key)
		if err != nil {
			l.logger.Warn("overlay cache read failed", "slot", req.slot, "error", err)
		}
		if ok {
			l.hits.Add(1)
			l.deliver(req, Overlay{Instant: req.instant, Slot: req.slot, Cached: true, Grid: g})
			return
		}
	}

	ctx, cancel := context.WithTimeout(l.ctx, l.timeout)
	g, err := l.src.Grid(ctx, l.bounds, req.slot)
	cancel()
	if err != nil {
		l.failures.Add(1)
		switch {
		case errors.Is(err, context.Canceled):
		case errors.Is(err, ErrNotAvailable):
			l.logger.Debug("overlay not available", "slot", req.slot)
		default:
			l.logger.Warn("overlay load failed", "slot", req.slot, "error", err)
		}
		return
	}
	l.loaded.Add(1)

	if l.cache != nil {
		if err := l.cache.Set(key, g, l.ttl); err != nil {
			l.logger.Warn("overlay cache write failed", "slot", req.slot, "error", err)
		}
	}
	l.deliver(req, Overlay{Instant: req.instant, Slot: req.slot, Grid: g})
}

func (l *Loader) deliver(req request, o Overlay) {
	l.mu.Lock()
	current := req.gen == l.gen
	l.mu.Unlock()

	if !current {
		l.stale.Add(1)
		return
	}
	if l.publish != nil {
		l.publish(o)
	}
}

// Stats returns a snapshot of the loader counters.
func (l *Loader) Stats() Stats {
	return Stats{
		Requested: l.requested.Load(),
		Loaded:    l.loaded.Load(),
		CacheHits: l.hits.Load(),
		Failures:  l.failures.Load(),
		Stale:     l.stale.Load(),
	}
}

// Close stops the loader and cancels an in-flight load. The cache is left open.
func (l *Loader) Close() {
	l.once.Do(func() {
		l.cancel()
		l.wg.Wait()
	})
}
