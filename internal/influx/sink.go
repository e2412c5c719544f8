package influx

import (
	"context"
	"time"

	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/seatrack/gpxplayer/internal/playback"
	"github.com/seatrack/gpxplayer/internal/player"
)

// MeasurementVesselState holds one point per vessel per frame.
const MeasurementVesselState = "vessel_state"

// MeasurementPlayback holds controller statistics.
const MeasurementPlayback = "playback"

// FramePoints converts a frame into one vessel_state point per vessel,
// timestamped with the track instant, not wall time.
func FramePoints(session string, f player.Frame) []*influxdb2_write.Point {
	points := make([]*influxdb2_write.Point, 0, len(f.States))
	for _, st := range f.States {
		p := influxdb2_write.NewPointWithMeasurement(MeasurementVesselState).
			AddTag("session", session).
			AddTag("entity", st.EntityID).
			AddField("lat", st.Sample.Lat).
			AddField("lon", st.Sample.Lon).
			AddField("speed_kn", st.Metrics.Speed).
			AddField("distance_nm", st.Metrics.CumulativeDistance).
			AddField("avg_speed_kn", st.Metrics.RunningAverageSpeed).
			AddField("heading", st.Heading).
			AddField("clamped", st.Clamped).
			AddField("position", f.Position).
			SetTime(f.Instant)
		if st.Name != "" {
			p.AddTag("name", st.Name)
		}
		points = append(points, p)
	}
	return points
}

// StatsPoint converts controller statistics into a playback point.
func StatsPoint(session string, s playback.Stats, at time.Time) *influxdb2_write.Point {
	return influxdb2_write.NewPointWithMeasurement(MeasurementPlayback).
		AddTag("session", session).
		AddField("ticks", s.Ticks).
		AddField("notifications", s.Notifications).
		AddField("observer_failures", s.ObserverFailures).
		AddField("latency_p50_us", s.LatencyP50.Microseconds()).
		AddField("latency_p99_us", s.LatencyP99.Microseconds()).
		AddField("latency_max_us", s.LatencyMax.Microseconds()).
		SetTime(at)
}

// Sink writes every frame to the configured bucket.
type Sink struct {
	Manager *Manager
	Bucket  string
	Session string
}

// WriteFrame implements player.Sink.
func (s Sink) WriteFrame(_ context.Context, f player.Frame) error {
	for _, p := range FramePoints(s.Session, f) {
		if err := s.Manager.WritePoint(s.Bucket, p); err != nil {
			return err
		}
	}
	return nil
}
