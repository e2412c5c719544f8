// Package track holds the load-time transformations applied to a vessel track:
// metric derivation, cutting, windowing and strict timestamp validation.
package track

import (
	"github.com/seatrack/gpxplayer/internal/geo"
	"github.com/seatrack/gpxplayer/pkg/core"
)

// DefaultMaxSpeed is the speed in knots above which a leg is treated as dirty data.
const DefaultMaxSpeed = 12.0

// Options controls metric derivation.
type Options struct {
	// MaxSpeed zeroes leg speeds above this value. Zero or negative disables the check.
	MaxSpeed float64
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{MaxSpeed: DefaultMaxSpeed}
}

// Clamped describes a leg speed that was zeroed by the MaxSpeed check.
type Clamped struct {
	Index int
	Speed float64
}

// Derive computes the metrics of every sample and returns a new slice; the
// input is not modified. The speed of sample i is the speed of the leg from
// sample i-1, so the first sample always has speed 0.
func Derive(samples []core.Sample, opts Options) ([]core.Sample, []Clamped) {
	out := make([]core.Sample, len(samples))
	copy(out, samples)
	if len(out) == 0 {
		return out, nil
	}

	var clamped []Clamped
	var distance float64
	start := out[0].Time

	out[0].Metrics = &core.Metrics{}
	for i := 1; i < len(out); i++ {
		prev, cur := out[i-1], out[i]

		meters := geo.Haversine(prev.Position(), cur.Position())
		distance += meters / geo.MetersPerNauticalMile

		var speed float64
		if dt := cur.Time.Sub(prev.Time).Seconds(); dt > 0 {
			speed = meters / dt * geo.KnotsPerMeterPerSecond
			if opts.MaxSpeed > 0 && speed > opts.MaxSpeed {
				clamped = append(clamped, Clamped{Index: i, Speed: speed})
				speed = 0
			}
		}

		var avg float64
		if hours := cur.Time.Sub(start).Hours(); hours > 0 {
			avg = distance / hours
		}

		out[i].Metrics = &core.Metrics{
			Speed:               speed,
			CumulativeDistance:  distance,
			RunningAverageSpeed: avg,
		}
	}
	return out, clamped
}

// EnsureMetrics returns the series unchanged when every sample already carries
// metrics, otherwise a copy with metrics derived for all samples.
func EnsureMetrics(ts core.TimeSeries, opts Options) (core.TimeSeries, []Clamped) {
	if ts.HasMetrics() || ts.Len() == 0 {
		return ts, nil
	}
	samples, clamped := Derive(ts.Samples, opts)
	ts.Samples = samples
	return ts, clamped
}
