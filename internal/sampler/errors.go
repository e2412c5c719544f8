package sampler

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrUnsortedSeries is returned by Load when a series has a decreasing timestamp
	ErrUnsortedSeries = errors.New("unsorted series")
	// ErrUnknownEntity is returned by Resolve for an entity that was not loaded
	ErrUnknownEntity = errors.New("unknown entity")
	// ErrEmptySeries is returned by Load for a series without samples
	ErrEmptySeries = errors.New("empty series")
)

// UnsortedSeriesError names the entity and the first sample that goes back in time.
type UnsortedSeriesError struct {
	EntityID string
	Index    int
	Time     time.Time
	Previous time.Time
}

func (e *UnsortedSeriesError) Error() string {
	return fmt.Sprintf("%s: entity %q sample %d at %s is before %s",
		ErrUnsortedSeries, e.EntityID, e.Index,
		e.Time.Format(time.RFC3339Nano), e.Previous.Format(time.RFC3339Nano))
}

func (e *UnsortedSeriesError) Is(target error) bool {
	return target == ErrUnsortedSeries
}
