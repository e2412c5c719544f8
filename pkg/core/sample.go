// pkg/core/sample.go
package core

import "time"

// Position2D is a WGS84 latitude/longitude pair in decimal degrees.
type Position2D struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Metrics holds the derived values for one sample.
// Speed and RunningAverageSpeed are in knots, CumulativeDistance in nautical miles.
type Metrics struct {
	Speed               float64 `json:"speed"`
	CumulativeDistance  float64 `json:"cumulativeDistance"`
	RunningAverageSpeed float64 `json:"runningAverageSpeed"`
}

// Sample is one recorded observation of an entity. Immutable once loaded.
type Sample struct {
	Time      time.Time `json:"time"`
	Lat       float64   `json:"lat"`
	Lon       float64   `json:"lon"`
	Elevation float64   `json:"ele,omitempty"`

	// Metrics is nil when the producer did not supply derived values;
	// they are then computed when the series is loaded.
	Metrics *Metrics `json:"metrics,omitempty"`
}

// Position returns the sample location.
func (s Sample) Position() Position2D {
	return Position2D{Lat: s.Lat, Lon: s.Lon}
}

// TimeSeries is the ordered sample sequence of one entity (e.g. a vessel).
// Samples are ordered by non-decreasing Time; ties keep sequence order.
type TimeSeries struct {
	EntityID string   `json:"id"`
	Name     string   `json:"name"`
	Samples  []Sample `json:"points"`
}

// Len returns the number of samples.
func (ts TimeSeries) Len() int {
	return len(ts.Samples)
}

// Start returns the time of the first sample, or the zero time for an empty series.
func (ts TimeSeries) Start() time.Time {
	if len(ts.Samples) == 0 {
		return time.Time{}
	}
	return ts.Samples[0].Time
}

// End returns the time of the last sample, or the zero time for an empty series.
func (ts TimeSeries) End() time.Time {
	if len(ts.Samples) == 0 {
		return time.Time{}
	}
	return ts.Samples[len(ts.Samples)-1].Time
}

// HasMetrics reports whether every sample carries precomputed metrics.
func (ts TimeSeries) HasMetrics() bool {
	for i := range ts.Samples {
		if ts.Samples[i].Metrics == nil {
			return false
		}
	}
	return len(ts.Samples) > 0
}
