// Package sampler resolves, for every loaded vessel track, the sample that is
// current at a given instant.
package sampler

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/seatrack/gpxplayer/internal/timeline"
	"github.com/seatrack/gpxplayer/internal/track"
	"github.com/seatrack/gpxplayer/pkg/core"
)

// ResolvedState is the state of one entity at one instant.
type ResolvedState struct {
	EntityID string       `json:"id"`
	Name     string       `json:"name,omitempty"`
	Index    int          `json:"index"`
	Sample   core.Sample  `json:"sample"`
	Metrics  core.Metrics `json:"metrics"`
	// Heading is the course over ground in degrees, 0 for single sample series.
	Heading float64 `json:"heading"`
	// Clamped is set when the instant lies outside the series span.
	Clamped bool `json:"clamped"`
	// TrailStart is the first index of the trail to draw, Sample included at Index.
	TrailStart int `json:"trailStart"`
}

// Stats counts how queries were answered.
type Stats struct {
	Queries   uint64
	Fallbacks uint64
}

// Option configures a Sampler.
type Option func(*Sampler)

// WithStrategy sets the search strategy.
func WithStrategy(st Strategy) Option {
	return func(s *Sampler) { s.strategy = st }
}

// WithTrackOptions sets how missing metrics are derived at load.
func WithTrackOptions(opts track.Options) Option {
	return func(s *Sampler) { s.trackOpts = opts }
}

// WithTimeline supplies an explicit axis instead of the union of sample instants.
func WithTimeline(tl timeline.Timeline) Option {
	return func(s *Sampler) {
		s.timeline = tl
		s.explicitTimeline = true
	}
}

// WithRaceStart limits trails to the last length samples once the race is running.
func WithRaceStart(start time.Time, length int) Option {
	return func(s *Sampler) {
		s.raceStart = start
		s.trailLength = length
	}
}

// WithLogger sets the logger used for load warnings.
func WithLogger(l *slog.Logger) Option {
	return func(s *Sampler) { s.logger = l }
}

// Sampler holds immutable series and the per-entity search cursors.
type Sampler struct {
	strategy         Strategy
	trackOpts        track.Options
	raceStart        time.Time
	trailLength      int
	logger           *slog.Logger
	explicitTimeline bool

	mu       sync.Mutex
	series   map[string]core.TimeSeries
	ids      []string
	cursors  map[string]*cursor
	timeline timeline.Timeline
	stats    Stats
}

// New creates an empty sampler.
func New(opts ...Option) *Sampler {
	s := &Sampler{
		strategy:    StrategyCursor,
		trackOpts:   track.DefaultOptions(),
		trailLength: track.DefaultTrailLength,
		logger:      slog.Default(),
		series:      map[string]core.TimeSeries{},
		cursors:     map[string]*cursor{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load validates and installs a new set of series, replacing the previous one.
// Nothing changes when any series fails validation.
func (s *Sampler) Load(series map[string]core.TimeSeries) error {
	ids := make([]string, 0, len(series))
	for id := range series {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	loaded := make(map[string]core.TimeSeries, len(series))
	all := make([]core.TimeSeries, 0, len(series))
	for _, id := range ids {
		ts := series[id]
		ts.EntityID = id
		if err := validate(ts); err != nil {
			return err
		}

		ts, clamped := track.EnsureMetrics(ts, s.trackOpts)
		for _, c := range clamped {
			s.logger.Warn("speed exceeds maximum, zeroed",
				"entity", id,
				"index", c.Index,
				"speed", c.Speed,
				"maxSpeed", s.trackOpts.MaxSpeed,
				"time", ts.Samples[c.Index].Time)
		}
		loaded[id] = ts
		all = append(all, ts)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.series = loaded
	s.ids = ids
	s.cursors = make(map[string]*cursor, len(ids))
	for _, id := range ids {
		s.cursors[id] = &cursor{}
	}
	if !s.explicitTimeline {
		s.timeline = timeline.Build(all...)
	}
	s.stats = Stats{}

	s.logger.Debug("series loaded", "entities", len(ids), "instants", s.timeline.Len(), "strategy", string(s.strategy))
	return nil
}

func validate(ts core.TimeSeries) error {
	if ts.Len() == 0 {
		return fmt.Errorf("entity %q: %w", ts.EntityID, ErrEmptySeries)
	}
	for i := 1; i < len(ts.Samples); i++ {
		if ts.Samples[i].Time.Before(ts.Samples[i-1].Time) {
			return &UnsortedSeriesError{
				EntityID: ts.EntityID,
				Index:    i,
				Time:     ts.Samples[i].Time,
				Previous: ts.Samples[i-1].Time,
			}
		}
	}
	return nil
}

// Resolve returns the last sample of the entity at or before instant,
// clamped to the first or last sample outside the series span.
func (s *Sampler) Resolve(entityID string, instant time.Time) (ResolvedState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resolveLocked(entityID, instant)
}

// ResolveAll resolves every loaded entity, ordered by entity ID.
func (s *Sampler) ResolveAll(instant time.Time) []ResolvedState {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]ResolvedState, 0, len(s.ids))
	for _, id := range s.ids {
		st, err := s.resolveLocked(id, instant)
		if err != nil {
			continue
		}
		out = append(out, st)
	}
	return out
}

func (s *Sampler) resolveLocked(entityID string, instant time.Time) (ResolvedState, error) {
	ts, ok := s.series[entityID]
	if !ok {
		return ResolvedState{}, fmt.Errorf("entity %q: %w", entityID, ErrUnknownEntity)
	}
	samples := ts.Samples

	var idx int
	switch s.strategy {
	case StrategyBinary:
		idx = binarySearch(samples, instant)
	case StrategyLinear:
		idx = linearSearch(samples, instant)
	default:
		var fallback bool
		idx, fallback = s.cursors[entityID].advance(samples, instant)
		if fallback {
			s.stats.Fallbacks++
		}
	}
	s.stats.Queries++

	sample := samples[idx]
	st := ResolvedState{
		EntityID:   entityID,
		Name:       ts.Name,
		Index:      idx,
		Sample:     sample,
		Clamped:    instant.Before(samples[0].Time) || instant.After(samples[len(samples)-1].Time),
		TrailStart: track.TrailStart(samples, idx, instant, s.raceStart, s.trailLength),
	}
	if sample.Metrics != nil {
		st.Metrics = *sample.Metrics
	}
	if h, ok := track.Heading(samples, idx); ok {
		st.Heading = h
	}
	return st, nil
}

// Timeline returns the axis the playhead maps onto.
func (s *Sampler) Timeline() timeline.Timeline {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timeline
}

// Entities returns the loaded entity IDs in sorted order.
func (s *Sampler) Entities() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.ids))
	copy(out, s.ids)
	return out
}

// Series returns the loaded series of an entity, including derived metrics.
func (s *Sampler) Series(entityID string) (core.TimeSeries, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ts, ok := s.series[entityID]
	return ts, ok
}

// Stats returns query counters since the last Load.
func (s *Sampler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}
