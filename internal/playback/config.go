package playback

import (
	"fmt"
	"time"

	"github.com/seatrack/gpxplayer/internal/timeline"
)

// EndPolicy decides what happens when playback reaches the end of the timeline.
type EndPolicy string

const (
	// EndStop stops at the last position.
	EndStop EndPolicy = "stop"
	// EndRewind stops and seeks back to position 0.
	EndRewind EndPolicy = "rewind"
	// EndLoop wraps to position 0 and keeps playing.
	EndLoop EndPolicy = "loop"
)

// ParseEndPolicy parses a policy name; the empty string selects EndStop.
func ParseEndPolicy(s string) (EndPolicy, error) {
	switch EndPolicy(s) {
	case "":
		return EndStop, nil
	case EndStop, EndRewind, EndLoop:
		return EndPolicy(s), nil
	default:
		return "", fmt.Errorf("unknown end policy %q", s)
	}
}

// DefaultTickInterval is the wall time between two playback steps.
const DefaultTickInterval = 100 * time.Millisecond

// Config holds the playback parameters.
type Config struct {
	Resolution   int
	TickInterval time.Duration
	EndPolicy    EndPolicy
}

// DefaultConfig returns a 1000 step, 100ms, stop-at-end configuration.
func DefaultConfig() Config {
	return Config{
		Resolution:   timeline.DefaultResolution,
		TickInterval: DefaultTickInterval,
		EndPolicy:    EndStop,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Resolution <= 0 {
		c.Resolution = def.Resolution
	}
	if c.TickInterval <= 0 {
		c.TickInterval = def.TickInterval
	}
	if c.EndPolicy == "" {
		c.EndPolicy = def.EndPolicy
	}
	return c
}
