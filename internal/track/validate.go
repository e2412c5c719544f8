package track

import (
	"errors"
	"fmt"
	"time"

	"github.com/seatrack/gpxplayer/internal/geo"
	"github.com/seatrack/gpxplayer/pkg/core"
)

var (
	// ErrDuplicateTimestamp is returned when two consecutive samples share a timestamp
	ErrDuplicateTimestamp = errors.New("duplicate timestamp")
	// ErrNotIncreasing is returned when a timestamp goes backwards
	ErrNotIncreasing = errors.New("timestamps not strictly increasing")
)

// TimestampError reports the first offending sample of a strict check.
type TimestampError struct {
	EntityID string
	Index    int
	Time     time.Time
	Previous time.Time
	Err      error
}

func (e *TimestampError) Error() string {
	return fmt.Sprintf("track %q sample %d: %v: %s does not come after %s",
		e.EntityID, e.Index, e.Err,
		e.Time.Format(time.RFC3339Nano), e.Previous.Format(time.RFC3339Nano))
}

func (e *TimestampError) Unwrap() error {
	return e.Err
}

// ValidateStrict requires strictly increasing timestamps and valid coordinates.
// The sampler itself tolerates equal timestamps; this is the stricter import check.
func ValidateStrict(ts core.TimeSeries) error {
	for i, s := range ts.Samples {
		if err := geo.ValidatePosition(s.Lat, s.Lon); err != nil {
			return fmt.Errorf("track %q sample %d (%f,%f): %w", ts.EntityID, i, s.Lat, s.Lon, err)
		}
		if i == 0 {
			continue
		}
		prev := ts.Samples[i-1].Time
		switch {
		case s.Time.Equal(prev):
			return &TimestampError{EntityID: ts.EntityID, Index: i, Time: s.Time, Previous: prev, Err: ErrDuplicateTimestamp}
		case s.Time.Before(prev):
			return &TimestampError{EntityID: ts.EntityID, Index: i, Time: s.Time, Previous: prev, Err: ErrNotIncreasing}
		}
	}
	return nil
}
