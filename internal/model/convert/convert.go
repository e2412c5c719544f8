package convert

import (
	"encoding/json"
	"sort"

	"github.com/seatrack/gpxplayer/internal/model"
	"github.com/seatrack/gpxplayer/pkg/core"
)

// VesselToCore converts a GORM Vessel and its points back to a core.TimeSeries.
// Points are ordered by Seq. Stored metrics are attached only when the vessel
// was saved with metrics for every sample.
func VesselToCore(v model.Vessel, points []model.TrackPoint) core.TimeSeries {
	sorted := make([]model.TrackPoint, len(points))
	copy(sorted, points)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Seq < sorted[j].Seq })

	ts := core.TimeSeries{
		EntityID: v.EntityID,
		Name:     v.Name,
		Samples:  make([]core.Sample, 0, len(sorted)),
	}
	for _, p := range sorted {
		s := core.Sample{
			Time:      p.Time,
			Lat:       p.Lat,
			Lon:       p.Lon,
			Elevation: p.Elevation,
		}
		if v.HasMetrics {
			s.Metrics = &core.Metrics{
				Speed:               p.Speed,
				CumulativeDistance:  p.CumulativeDistance,
				RunningAverageSpeed: p.RunningAverageSpeed,
			}
		}
		ts.Samples = append(ts.Samples, s)
	}
	return ts
}

// VesselMetadata decodes the metadata column, returning nil on empty or invalid JSON.
func VesselMetadata(v model.Vessel) map[string]string {
	if len(v.Metadata) == 0 {
		return nil
	}
	var meta map[string]string
	if err := json.Unmarshal(v.Metadata, &meta); err != nil {
		return nil
	}
	if len(meta) == 0 {
		return nil
	}
	return meta
}
