// Package timeline builds the shared instant axis that a playhead position maps onto.
package timeline

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/seatrack/gpxplayer/pkg/core"
)

// DefaultResolution is the number of playhead steps across the whole timeline.
const DefaultResolution = 1000

var (
	// ErrEmptyTimeline is returned when the timeline has no instants
	ErrEmptyTimeline = errors.New("empty timeline")
	// ErrUnsortedTimeline is returned when supplied instants go backwards
	ErrUnsortedTimeline = errors.New("timeline instants not non-decreasing")
)

// Timeline is an immutable non-decreasing sequence of instants.
type Timeline struct {
	instants []time.Time
}

// Build returns the sorted distinct union of every sample instant in the given series.
func Build(series ...core.TimeSeries) Timeline {
	var total int
	for _, ts := range series {
		total += ts.Len()
	}
	all := make([]time.Time, 0, total)
	for _, ts := range series {
		for _, s := range ts.Samples {
			all = append(all, s.Time)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Before(all[j]) })

	distinct := all[:0]
	for i, t := range all {
		if i > 0 && t.Equal(distinct[len(distinct)-1]) {
			continue
		}
		distinct = append(distinct, t)
	}
	return Timeline{instants: distinct}
}

// FromInstants wraps an externally supplied axis. The slice is copied.
func FromInstants(instants []time.Time) (Timeline, error) {
	for i := 1; i < len(instants); i++ {
		if instants[i].Before(instants[i-1]) {
			return Timeline{}, fmt.Errorf("instant %d (%s) before instant %d (%s): %w",
				i, instants[i].Format(time.RFC3339), i-1, instants[i-1].Format(time.RFC3339), ErrUnsortedTimeline)
		}
	}
	cp := make([]time.Time, len(instants))
	copy(cp, instants)
	return Timeline{instants: cp}, nil
}

// Len returns the number of instants.
func (t Timeline) Len() int {
	return len(t.instants)
}

// Start returns the first instant, or the zero time when empty.
func (t Timeline) Start() time.Time {
	if len(t.instants) == 0 {
		return time.Time{}
	}
	return t.instants[0]
}

// End returns the last instant, or the zero time when empty.
func (t Timeline) End() time.Time {
	if len(t.instants) == 0 {
		return time.Time{}
	}
	return t.instants[len(t.instants)-1]
}

// Span returns End - Start.
func (t Timeline) Span() time.Duration {
	return t.End().Sub(t.Start())
}

// Instant returns the i-th instant. It panics when i is out of range.
func (t Timeline) Instant(i int) time.Time {
	return t.instants[i]
}

// Index maps a playhead position in [0, resolution] to an instant index:
// floor(position*(N-1)/resolution). Out of range positions are clamped.
func (t Timeline) Index(position, resolution int) (int, error) {
	n := len(t.instants)
	if n == 0 {
		return 0, ErrEmptyTimeline
	}
	if n == 1 || resolution <= 0 {
		return 0, nil
	}
	position = max(0, min(position, resolution))
	return position * (n - 1) / resolution, nil
}

// At resolves a playhead position to its instant.
func (t Timeline) At(position, resolution int) (time.Time, error) {
	i, err := t.Index(position, resolution)
	if err != nil {
		return time.Time{}, err
	}
	return t.instants[i], nil
}

// PositionOf returns the smallest playhead position whose instant is at or after ts,
// the inverse used when seeking by time. Instants past the end map to resolution.
func (t Timeline) PositionOf(ts time.Time, resolution int) (int, error) {
	n := len(t.instants)
	if n == 0 {
		return 0, ErrEmptyTimeline
	}
	if n == 1 || resolution <= 0 {
		return 0, nil
	}
	p := sort.Search(resolution+1, func(p int) bool {
		return !t.instants[p*(n-1)/resolution].Before(ts)
	})
	return min(p, resolution), nil
}
