package track

import (
	"sort"
	"time"

	"github.com/seatrack/gpxplayer/internal/geo"
	"github.com/seatrack/gpxplayer/pkg/core"
)

// DefaultTrailLength is the number of samples drawn behind a vessel once the race runs.
const DefaultTrailLength = 60

// Heading returns the course over ground at sample i, taken from the leg
// ending at i. ok is false when the series has fewer than two samples.
func Heading(samples []core.Sample, i int) (deg float64, ok bool) {
	if len(samples) < 2 || i < 0 || i >= len(samples) {
		return 0, false
	}
	if i == 0 {
		return geo.Heading(samples[0].Position(), samples[1].Position()), true
	}
	return geo.Heading(samples[i-1].Position(), samples[i].Position()), true
}

// TrailStart returns the first index of the visible trail ending at idx.
// Without a race start, or before it, the whole history is shown. After the
// start the trail holds at most length samples and never reaches back before
// the first sample at or after the start.
func TrailStart(samples []core.Sample, idx int, instant, raceStart time.Time, length int) int {
	if raceStart.IsZero() || instant.Before(raceStart) || length <= 0 {
		return 0
	}
	first := sort.Search(len(samples), func(i int) bool {
		return !samples[i].Time.Before(raceStart)
	})
	return max(0, min(max(first, idx+1-length), idx))
}
