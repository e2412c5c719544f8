// Package convert provides functions to convert between GORM models and core models
package convert

import (
	"encoding/json"

	"github.com/seatrack/gpxplayer/internal/geo"
	"github.com/seatrack/gpxplayer/internal/model"
	"github.com/seatrack/gpxplayer/pkg/core"
	"gorm.io/datatypes"
)

// metadataToJSON converts free-form track metadata to datatypes.JSON for DB storage.
func metadataToJSON(meta map[string]string) datatypes.JSON {
	if len(meta) == 0 {
		return datatypes.JSON("{}")
	}
	data, _ := json.Marshal(meta)
	return datatypes.JSON(data)
}

// CoreToVessel converts a core.TimeSeries to a GORM model.Vessel.
// Path is left empty for series with fewer than two samples.
func CoreToVessel(ts core.TimeSeries, sessionID uint, sourceFile string, meta map[string]string) model.Vessel {
	v := model.Vessel{
		SessionID:  sessionID,
		EntityID:   ts.EntityID,
		Name:       ts.Name,
		SourceFile: sourceFile,
		PointCount: ts.Len(),
		HasMetrics: ts.HasMetrics(),
		StartTime:  ts.Start(),
		EndTime:    ts.End(),
		Metadata:   metadataToJSON(meta),
	}
	if path, err := geo.TrackLine(ts); err == nil {
		v.Path = path
	}
	return v
}

// CoreToTrackPoints converts the samples of a series to GORM track points.
// Samples without metrics are stored with zeroed metric columns.
func CoreToTrackPoints(ts core.TimeSeries, vesselID uint) []model.TrackPoint {
	points := make([]model.TrackPoint, 0, len(ts.Samples))
	for i, s := range ts.Samples {
		p := model.TrackPoint{
			VesselID:  vesselID,
			Seq:       i,
			Time:      s.Time,
			Lat:       s.Lat,
			Lon:       s.Lon,
			Elevation: s.Elevation,
			Location:  geo.Project(s.Lat, s.Lon),
		}
		if s.Metrics != nil {
			p.Speed = s.Metrics.Speed
			p.CumulativeDistance = s.Metrics.CumulativeDistance
			p.RunningAverageSpeed = s.Metrics.RunningAverageSpeed
		}
		points = append(points, p)
	}
	return points
}
