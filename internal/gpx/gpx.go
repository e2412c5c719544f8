// Package gpx converts GPX files to and from time series.
package gpx

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/seatrack/gpxplayer/internal/geo"
	"github.com/seatrack/gpxplayer/internal/track"
	"github.com/seatrack/gpxplayer/internal/util"
	"github.com/seatrack/gpxplayer/pkg/core"
	gpxgo "github.com/tkrajina/gpxgo/gpx"
)

const creator = "gpxplayer"

var (
	// ErrNoTracks is returned for files without any track point.
	ErrNoTracks = errors.New("no tracks")
	// ErrMissingTime is returned for track points without a timestamp.
	ErrMissingTime = errors.New("track point without time")
	// ErrDuplicateEntity is returned when two files yield the same entity ID.
	ErrDuplicateEntity = errors.New("duplicate entity")
)

// EntityID names track index of a file: "Kiel Week.gpx", 0 -> "kiel-week-0".
func EntityID(path string, index int) string {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	slug := util.Slug(strings.NewReplacer("-", " ", ".", " ").Replace(base))
	if slug == "" {
		slug = "track"
	}
	return slug + "-" + strconv.Itoa(index)
}

// ReadFile parses one GPX file into one series per track.
func ReadFile(path string) ([]core.TimeSeries, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(path, data)
}

// Parse decodes GPX data. name is used for entity IDs and as the fallback
// track name. Segments of a track are joined; empty tracks are skipped.
func Parse(name string, data []byte) ([]core.TimeSeries, error) {
	doc, err := gpxgo.ParseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}

	var out []core.TimeSeries
	for i, trk := range doc.Tracks {
		ts := core.TimeSeries{
			EntityID: EntityID(name, i),
			Name:     trk.Name,
		}
		if ts.Name == "" {
			ts.Name = strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
		}

		for _, seg := range trk.Segments {
			for _, p := range seg.Points {
				if p.Timestamp.IsZero() {
					return nil, fmt.Errorf("%s track %d point %d: %w", name, i, len(ts.Samples), ErrMissingTime)
				}
				if err := geo.ValidatePosition(p.Latitude, p.Longitude); err != nil {
					return nil, fmt.Errorf("%s track %d point %d: %w", name, i, len(ts.Samples), err)
				}
				s := core.Sample{
					Time: p.Timestamp.UTC(),
					Lat:  p.Latitude,
					Lon:  p.Longitude,
				}
				if p.Elevation.NotNull() {
					s.Elevation = p.Elevation.Value()
				}
				ts.Samples = append(ts.Samples, s)
			}
		}
		if len(ts.Samples) > 0 {
			out = append(out, ts)
		}
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("%s: %w", name, ErrNoTracks)
	}
	return out, nil
}

// ReadFiles parses every file and keys the series by entity ID.
func ReadFiles(paths ...string) (map[string]core.TimeSeries, error) {
	all := make(map[string]core.TimeSeries)
	for _, path := range paths {
		series, err := ReadFile(path)
		if err != nil {
			return nil, err
		}
		for _, ts := range series {
			if _, ok := all[ts.EntityID]; ok {
				return nil, fmt.Errorf("%w %q from %s", ErrDuplicateEntity, ts.EntityID, path)
			}
			all[ts.EntityID] = ts
		}
	}
	return all, nil
}

// Write encodes the series as a GPX 1.1 document, one track per series.
// Derived metrics are not written.
func Write(w io.Writer, series ...core.TimeSeries) error {
	doc := &gpxgo.GPX{Creator: creator}
	for _, ts := range series {
		seg := gpxgo.GPXTrackSegment{Points: make([]gpxgo.GPXPoint, 0, len(ts.Samples))}
		for _, s := range ts.Samples {
			p := gpxgo.GPXPoint{
				Point: gpxgo.Point{
					Latitude:  s.Lat,
					Longitude: s.Lon,
				},
				Timestamp: s.Time.UTC(),
			}
			if s.Elevation != 0 {
				p.Elevation = *gpxgo.NewNullableFloat64(s.Elevation)
			}
			seg.Points = append(seg.Points, p)
		}
		doc.Tracks = append(doc.Tracks, gpxgo.GPXTrack{
			Name:     ts.Name,
			Segments: []gpxgo.GPXTrackSegment{seg},
		})
	}

	data, err := doc.ToXml(gpxgo.ToXmlParams{Version: "1.1", Indent: true})
	if err != nil {
		return fmt.Errorf("encode gpx: %w", err)
	}
	_, err = w.Write(data)
	return err
}

// WriteFile writes the series to path.
func WriteFile(path string, series ...core.TimeSeries) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Write(f, series...); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// CutPath returns the output path of a cut: race.gpx -> race_cut.gpx.
func CutPath(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + "_cut" + ext
}

// CutFile keeps the samples on one side of at in every track and writes the
// result next to the input. It returns the new path.
func CutFile(path string, at time.Time, keep track.CutType) (string, error) {
	series, err := ReadFile(path)
	if err != nil {
		return "", err
	}
	for i := range series {
		series[i] = track.Cut(series[i], at, keep)
	}

	out := CutPath(path)
	if err := WriteFile(out, series...); err != nil {
		return "", err
	}
	return out, nil
}

// ValidateFile parses path and checks that every track has strictly
// increasing timestamps.
func ValidateFile(path string) error {
	series, err := ReadFile(path)
	if err != nil {
		return err
	}
	var errs []error
	for _, ts := range series {
		if err := track.ValidateStrict(ts); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
