package geo

import (
	"fmt"

	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/seatrack/gpxplayer/pkg/core"
)

// Bounds is a lat/lon bounding box used to fit a view around tracks.
type Bounds struct {
	South float64 `json:"south"`
	West  float64 `json:"west"`
	North float64 `json:"north"`
	East  float64 `json:"east"`
}

// Pad grows the box by margin degrees on every side.
func (b Bounds) Pad(margin float64) Bounds {
	return Bounds{
		South: b.South - margin,
		West:  b.West - margin,
		North: b.North + margin,
		East:  b.East + margin,
	}
}

// TrackLine builds a lon/lat LineString from a series.
func TrackLine(series core.TimeSeries) (geom.LineString, error) {
	if len(series.Samples) < 2 {
		return geom.LineString{}, fmt.Errorf("track %q must have at least 2 points, got %d", series.EntityID, len(series.Samples))
	}

	flatCoords := make([]float64, 0, len(series.Samples)*2)
	for _, s := range series.Samples {
		flatCoords = append(flatCoords, s.Lon, s.Lat)
	}

	seq := geom.NewSequence(flatCoords, geom.DimXY)
	return geom.NewLineString(seq), nil
}

// TrackBounds returns the bounding box of all samples across the given series.
// ok is false when there are no samples at all.
func TrackBounds(series ...core.TimeSeries) (bounds Bounds, ok bool) {
	for _, ts := range series {
		for _, s := range ts.Samples {
			if !ok {
				bounds = Bounds{South: s.Lat, West: s.Lon, North: s.Lat, East: s.Lon}
				ok = true
				continue
			}
			bounds.South = min(bounds.South, s.Lat)
			bounds.North = max(bounds.North, s.Lat)
			bounds.West = min(bounds.West, s.Lon)
			bounds.East = max(bounds.East, s.Lon)
		}
	}
	return bounds, ok
}

// TrackLengthNM sums the great-circle legs of a series in nautical miles.
func TrackLengthNM(series core.TimeSeries) float64 {
	var total float64
	for i := 1; i < len(series.Samples); i++ {
		total += NauticalMiles(series.Samples[i-1].Position(), series.Samples[i].Position())
	}
	return total
}
