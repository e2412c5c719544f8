package sampler

import (
	"fmt"
	"sort"
	"time"

	"github.com/seatrack/gpxplayer/pkg/core"
)

// Strategy selects how Resolve finds the anchor sample.
type Strategy string

const (
	// StrategyCursor walks forward from the previous answer while queries do not
	// go backwards and falls back to binary search when they do.
	StrategyCursor Strategy = "cursor"
	// StrategyBinary always binary searches.
	StrategyBinary Strategy = "binary"
	// StrategyLinear rescans from the first sample on every query.
	StrategyLinear Strategy = "linear"
)

// ParseStrategy parses a strategy name; the empty string selects StrategyCursor.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case "":
		return StrategyCursor, nil
	case StrategyCursor, StrategyBinary, StrategyLinear:
		return Strategy(s), nil
	default:
		return "", fmt.Errorf("unknown sampler strategy %q", s)
	}
}

// All three searches return the index of the last sample with Time <= instant,
// or 0 when the instant precedes the series.

func binarySearch(samples []core.Sample, instant time.Time) int {
	i := sort.Search(len(samples), func(i int) bool {
		return samples[i].Time.After(instant)
	})
	return max(i-1, 0)
}

func linearSearch(samples []core.Sample, instant time.Time) int {
	idx := 0
	for i := range samples {
		if samples[i].Time.After(instant) {
			break
		}
		idx = i
	}
	return idx
}

// cursor remembers the last answer for one entity.
type cursor struct {
	idx   int
	last  time.Time
	valid bool
}

// advance resolves instant starting from the cursor. fallback reports whether
// the query went backwards and a binary search was needed.
func (c *cursor) advance(samples []core.Sample, instant time.Time) (idx int, fallback bool) {
	if !c.valid || instant.Before(c.last) {
		c.idx = binarySearch(samples, instant)
		fallback = c.valid
	} else {
		for c.idx+1 < len(samples) && !samples[c.idx+1].Time.After(instant) {
			c.idx++
		}
	}
	c.last = instant
	c.valid = true
	return c.idx, fallback
}
