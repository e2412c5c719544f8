// Package player connects the playback controller to the track sampler and
// hands every resolved frame to the registered sinks.
package player

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/seatrack/gpxplayer/internal/playback"
	"github.com/seatrack/gpxplayer/internal/sampler"
	"github.com/seatrack/gpxplayer/internal/util"
)

// Frame is the resolved state of every vessel at one instant.
type Frame struct {
	Seq      uint64                  `json:"seq"`
	Position int                     `json:"position"`
	Instant  time.Time               `json:"instant"`
	Clock    util.RaceClock          `json:"clock"`
	States   []sampler.ResolvedState `json:"states"`
}

// Sink consumes frames. Sinks run inline on the playback tick.
type Sink interface {
	WriteFrame(ctx context.Context, f Frame) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, f Frame) error

// WriteFrame calls f(ctx, frame).
func (f SinkFunc) WriteFrame(ctx context.Context, frame Frame) error {
	return f(ctx, frame)
}

type namedSink struct {
	name string
	sink Sink
}

// Player resolves frames for a controller.
type Player struct {
	ctl       *playback.Controller
	smp       *sampler.Sampler
	raceStart time.Time
	logger    *slog.Logger

	mu    sync.RWMutex
	sinks []namedSink

	seq    atomic.Uint64
	latest atomic.Pointer[Frame]
}

// Option configures a Player.
type Option func(*Player)

// WithRaceStart sets the instant the race clock counts from.
func WithRaceStart(t time.Time) Option {
	return func(p *Player) { p.raceStart = t }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Player) { p.logger = l }
}

// New creates a Player and registers it as an observer of ctl.
func New(ctl *playback.Controller, smp *sampler.Sampler, opts ...Option) *Player {
	p := &Player{
		ctl:    ctl,
		smp:    smp,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	ctl.Observe("player", p)
	return p
}

// AddSink registers a sink. Sinks are called in registration order.
func (p *Player) AddSink(name string, s Sink) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sinks = append(p.sinks, namedSink{name: name, sink: s})
}

// OnTimeChange resolves the frame for instant and fans it out. A failing or
// panicking sink does not keep the others from receiving the frame.
func (p *Player) OnTimeChange(ctx context.Context, instant time.Time) error {
	f := p.FrameAt(instant)
	f.Seq = p.seq.Add(1)
	p.latest.Store(&f)

	p.mu.RLock()
	sinks := make([]namedSink, len(p.sinks))
	copy(sinks, p.sinks)
	p.mu.RUnlock()

	var errs []error
	for _, s := range sinks {
		if err := p.write(ctx, s, f); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (p *Player) write(ctx context.Context, s namedSink, f Frame) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("sink %s panicked: %v", s.name, rec)
		}
	}()
	if err := s.sink.WriteFrame(ctx, f); err != nil {
		return fmt.Errorf("sink %s: %w", s.name, err)
	}
	return nil
}

// FrameAt resolves a frame without delivering it. Seq is left at zero.
func (p *Player) FrameAt(instant time.Time) Frame {
	return Frame{
		Position: p.ctl.Position(),
		Instant:  instant,
		Clock:    util.NewRaceClock(instant, p.raceStart),
		States:   p.smp.ResolveAll(instant),
	}
}

// Latest returns the last delivered frame.
func (p *Player) Latest() (Frame, bool) {
	f := p.latest.Load()
	if f == nil {
		return Frame{}, false
	}
	return *f, true
}

// Controller returns the controller driving this player.
func (p *Player) Controller() *playback.Controller {
	return p.ctl
}

// Sampler returns the sampler used to resolve frames.
func (p *Player) Sampler() *sampler.Sampler {
	return p.smp
}
